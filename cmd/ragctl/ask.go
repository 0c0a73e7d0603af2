package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyerfyer/multimodal-rag/internal/document"
	"github.com/fyerfyer/multimodal-rag/internal/models"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.QA.Answer(context.Background(), args[0])
	if errors.Is(err, models.ErrIndexNotFound) {
		return exitWith(exitNoInput, "collection %q has no index, run `ragctl index <dir>` first", a.Ingest.Collection())
	}
	if err != nil {
		return err
	}

	if askJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	printAnswer(cmd, result)
	return nil
}

func printAnswer(cmd *cobra.Command, result *document.QueryResult) {
	cmd.Println(result.Answer)
	if len(result.Sources) == 0 {
		return
	}
	cmd.Println()
	cmd.Println("Sources:")
	for i, src := range result.Sources {
		cmd.Printf("  [%d] %s, page %d\n", i+1, src.Source, src.Page)
		if src.Preview != "" {
			cmd.Printf("      %s\n", src.Preview)
		}
	}
}
