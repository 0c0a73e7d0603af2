package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fyerfyer/multimodal-rag/internal/document"
	"github.com/fyerfyer/multimodal-rag/internal/models"
	"github.com/fyerfyer/multimodal-rag/internal/services"
)

const (
	exitNoInput    = 1
	exitBuildError = 2
)

var (
	indexRebuild bool
	indexForce   bool
)

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Index every supported file under a directory",
	Long: `Scans a directory recursively for PDF, image, markdown and text files,
parses and chunks each one, and adds the chunks to the collection.
Exits with 1 when nothing can be indexed and 2 when the index build fails.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexRebuild, "rebuild", false, "clear the collection before indexing")
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "re-index files that were already indexed")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	files, err := scanDir(args[0])
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return exitWith(exitNoInput, "no supported files found in %s", args[0])
	}
	cmd.Printf("Found %d file(s) in %s\n", len(files), args[0])

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Ingest.Ingest(context.Background(), files, services.IngestOptions{
		Rebuild: indexRebuild,
		Force:   indexForce,
	})
	if report != nil {
		printReport(cmd, report)
	}

	switch {
	case err == nil:
		cmd.Printf("Collection %q now holds %d vectors\n", report.Collection, report.Vectors)
		return nil
	case errors.Is(err, models.ErrNothingToIndex):
		if report != nil && report.Skipped > 0 && report.Failed == 0 {
			cmd.Println("All files are already indexed, use --force to re-index")
			return nil
		}
		return exitWith(exitNoInput, "no chunks produced from %d file(s)", len(files))
	case models.IsStage(err, models.StageIndex):
		return exitWith(exitBuildError, "index build failed: %w", err)
	default:
		return err
	}
}

// scanDir 递归收集目录下受支持的文件，按路径排序
func scanDir(dir string) ([]services.UploadFile, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || document.ValidateFilename(d.Name()) != nil {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(paths)

	files := make([]services.UploadFile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		files = append(files, services.UploadFile{Name: filepath.Base(path), Data: data})
	}
	return files, nil
}

func printReport(cmd *cobra.Command, report *services.IngestReport) {
	for _, f := range report.Files {
		switch f.Status {
		case models.FileStatusIndexed:
			cmd.Printf("  [ok]      %s (%d pages, %d chunks)\n", f.FileName, f.Pages, f.Chunks)
		case models.FileStatusFailed:
			cmd.Printf("  [failed]  %s: %s\n", f.FileName, f.Error)
		default:
			cmd.Printf("  [%s] %s\n", f.Status, f.FileName)
		}
	}
	cmd.Printf("Indexed %d, skipped %d, failed %d, chunks %d\n",
		report.Indexed, report.Skipped, report.Failed, report.Chunks)
}
