// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the insurance-extract CLI: upload
// insurance PDFs to the extraction service, save the spreadsheet export,
// browse local history, and serve the web UI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/insurance-extract/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds values loaded from .secrets/ at startup.
var loadedSecrets secrets.Secrets

// rootCmd is the base command for the insurance-extract CLI.
var rootCmd = &cobra.Command{
	Use:   "insurance-extract",
	Short: "Extract fields from insurance PDFs and export them as spreadsheets",
	Long: `insurance-extract is a client for the insurance PDF extraction service.
It uploads a quote or policy PDF, shows the extracted fields and OCR text,
and saves the spreadsheet the service generates from the result.

Run "serve" for the single-page web UI, or use extract and download from
the command line. Extractions can be kept in a local history database.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger(viper.GetString("log.level"), cmd.Name() == "serve")

		s, err := secrets.Load(secrets.DefaultDir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			slog.Debug("loaded secrets", "keys", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./insurance-extract.yaml or ~/.config/insurance-extract/insurance-extract.yaml)")
	rootCmd.PersistentFlags().String("base-url", "", "extraction service URL (default http://localhost:5001)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default info)")

	viper.BindPFlag("service.base_url", rootCmd.PersistentFlags().Lookup("base-url"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	setDefaults()
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: reading .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("insurance-extract")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "insurance-extract"))
		}
	}

	viper.SetEnvPrefix("INSURANCE_EXTRACT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setupLogger installs the default slog logger. The web server logs JSON;
// the CLI logs text to stderr.
func setupLogger(level string, jsonOutput bool) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if jsonOutput {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
