// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/insurance-extract/internal/history"
	"github.com/pdiddy/insurance-extract/internal/remote"
	"github.com/pdiddy/insurance-extract/internal/secrets"
	"github.com/pdiddy/insurance-extract/internal/server"
	"github.com/pdiddy/insurance-extract/pkg/types"
)

func setDefaults() {
	viper.SetDefault("service.base_url", remote.DefaultBaseURL)
	viper.SetDefault("service.timeout", remote.DefaultTimeout)
	viper.SetDefault("service.user_agent", remote.DefaultUserAgent)
	viper.SetDefault("service.max_retries", 0)
	viper.SetDefault("download.dir", ".")
	viper.SetDefault("history.enabled", false)
	viper.SetDefault("history.dir", defaultHistoryDir())
	viper.SetDefault("history.max_results", history.DefaultMaxResults)
	viper.SetDefault("serve.addr", server.DefaultAddr)
	viper.SetDefault("serve.max_upload_bytes", server.DefaultMaxUploadBytes)
	viper.SetDefault("batch.concurrency", 1)
	viper.SetDefault("batch.download", false)
	viper.SetDefault("log.level", "info")
}

func defaultHistoryDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".insurance-extract"
	}
	return filepath.Join(home, ".config", "insurance-extract")
}

// loadConfig assembles the effective configuration from defaults, the
// config file, INSURANCE_EXTRACT_* variables and flags bound to viper.
func loadConfig() types.Config {
	return types.Config{
		Service: types.ServiceConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("service.timeout"),
				UserAgent: viper.GetString("service.user_agent"),
			},
			BaseURL:    viper.GetString("service.base_url"),
			APIToken:   loadedSecrets.Get(secrets.KeyServiceToken, viper.GetString("service.api_token")),
			MaxRetries: viper.GetInt("service.max_retries"),
		},
		Download: types.DownloadConfig{
			Dir: viper.GetString("download.dir"),
		},
		History: types.HistoryConfig{
			Enabled:    viper.GetBool("history.enabled"),
			Dir:        viper.GetString("history.dir"),
			MaxResults: viper.GetInt("history.max_results"),
		},
		Serve: types.ServeConfig{
			Addr:           viper.GetString("serve.addr"),
			MaxUploadBytes: viper.GetInt("serve.max_upload_bytes"),
		},
		Batch: types.BatchConfig{
			Concurrency: viper.GetInt("batch.concurrency"),
			Download:    viper.GetBool("batch.download"),
		},
	}
}

// bindFlag ties a command flag to a config key so the flag overrides the
// file and environment only when set.
func bindFlag(cmd *cobra.Command, key, flag string) {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		viper.Set(key, f.Value.String())
	}
}

// openHistory opens the history store when recording is enabled, or when
// force is set for commands that only read history.
func openHistory(cfg types.HistoryConfig, force bool) (*history.Store, error) {
	if !cfg.Enabled && !force {
		return nil, nil
	}
	store, err := history.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	return store, nil
}
