// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/insurance-extract/internal/format"
)

var formatCmd = &cobra.Command{
	Use:   "format [file]",
	Short: "Render OCR text as HTML",
	Long: `Format reads OCR text from a file, or stdin when no file is given, and
prints the HTML the web UI would display for it. Headings, emphasis,
links, code, bullet lists and embedded base64 images are recognised;
everything else is escaped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFormat,
}

func init() {
	rootCmd.AddCommand(formatCmd)
}

func runFormat(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), format.ToHTML(string(data)))
	return nil
}
