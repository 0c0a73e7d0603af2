package main

import (
	"context"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show collection statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Ingest.Stats(context.Background())
		if err != nil {
			return err
		}
		cmd.Printf("Collection: %s\n", stats.Collection)
		cmd.Printf("Backend:    %s\n", stats.Backend)
		if !stats.Exists {
			cmd.Println("Index:      not built")
			return nil
		}
		cmd.Printf("Vectors:    %d\n", stats.Vectors)
		cmd.Printf("Dimension:  %d\n", stats.Dimension)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
