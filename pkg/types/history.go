// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HistoryEntry is one recorded extraction.
type HistoryEntry struct {
	ID        string    `json:"id" yaml:"id"`
	Filename  string    `json:"filename" yaml:"filename"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// Message is the service's informational summary, if any.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// RawText is the OCR text, or the key/value fallback when the service
	// returned none.
	RawText string `json:"raw_text" yaml:"raw_text"`

	Result   ExtractionResult `json:"result" yaml:"result"`
	Analysis *PDFAnalysis     `json:"pdf_analysis,omitempty" yaml:"pdf_analysis,omitempty"`
}

// HistorySummary is a listing row without the bulky text.
type HistorySummary struct {
	ID         string    `json:"id" yaml:"id"`
	Filename   string    `json:"filename" yaml:"filename"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	FieldCount int       `json:"field_count" yaml:"field_count"`

	// Snippet is a highlighted excerpt, set only by search.
	Snippet string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
}
