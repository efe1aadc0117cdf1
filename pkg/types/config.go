// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings for calls to the extraction service.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with every request
	// (e.g. "insurance-extract/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ServiceConfig locates and authenticates against the extraction service.
type ServiceConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the service root, e.g. "http://localhost:5001".
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIToken is sent as a bearer token when non-empty.
	APIToken string `json:"-" yaml:"-"`

	// MaxRetries is the number of retries on HTTP 429/503. Zero disables
	// retrying.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// DownloadConfig controls where spreadsheet artifacts are saved.
type DownloadConfig struct {
	// Dir is the directory spreadsheets are written to.
	Dir string `json:"dir" yaml:"dir"`
}

// HistoryConfig controls the local extraction ledger.
type HistoryConfig struct {
	// Enabled turns recording on. Off by default.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Dir holds history.db and export files.
	Dir string `json:"dir" yaml:"dir"`

	// MaxResults is the default row limit for list and search (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// ServeConfig holds settings for the local web UI.
type ServeConfig struct {
	// Addr is the listen address, e.g. ":3000".
	Addr string `json:"addr" yaml:"addr"`

	// MaxUploadBytes bounds the multipart body size.
	MaxUploadBytes int `json:"max_upload_bytes" yaml:"max_upload_bytes"`
}

// BatchConfig holds settings for multi-file extraction from the CLI.
type BatchConfig struct {
	// Concurrency is the number of uploads in flight (default 1).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Download saves the spreadsheet for every successful extraction.
	Download bool `json:"download" yaml:"download"`
}

// Config groups every section of insurance-extract.yaml.
type Config struct {
	Service  ServiceConfig  `json:"service" yaml:"service"`
	Download DownloadConfig `json:"download" yaml:"download"`
	History  HistoryConfig  `json:"history" yaml:"history"`
	Serve    ServeConfig    `json:"serve" yaml:"serve"`
	Batch    BatchConfig    `json:"batch" yaml:"batch"`
}
