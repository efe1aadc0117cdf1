// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/insurance-extract/internal/remote"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the extraction service is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		client := remote.NewClient(cfg.Service)

		hs, err := client.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("%s: %w", client.BaseURL(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", client.BaseURL(), hs.Status, hs.Message)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
