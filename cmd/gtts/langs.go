package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/go-gtts/internal/lang"
)

func newLangsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "langs",
		Short: "List supported languages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}
			return writeLangs(cmd.OutOrStdout(), format, lang.Default().Languages())
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")

	return cmd
}

func writeLangs(w io.Writer, format string, langs []lang.Language) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(langs)
	}
	for _, l := range langs {
		if _, err := fmt.Fprintf(w, "%-6s %s\n", l.Code, l.Name); err != nil {
			return err
		}
	}
	return nil
}
