// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// PDFAnalysis describes how the service classified the uploaded PDF.
type PDFAnalysis struct {
	// Type is one of "text_dominant", "image_dominant" or "mixed".
	Type       string `json:"type" yaml:"type"`
	TotalPages int    `json:"total_pages" yaml:"total_pages"`
	TextPages  int    `json:"text_pages" yaml:"text_pages"`
	ImagePages int    `json:"image_pages" yaml:"image_pages"`
	MixedPages int    `json:"mixed_pages" yaml:"mixed_pages"`
}

// UploadResponse is the JSON body returned by POST /upload.
type UploadResponse struct {
	Success bool             `json:"success"`
	Data    ExtractionResult `json:"data"`

	// OCRText is the raw text recovered from the document. Nil when the
	// service omitted it.
	OCRText *string `json:"ocr_text,omitempty"`

	// Error carries the service's message on failure.
	Error string `json:"error,omitempty"`

	// Message is an informational summary on success.
	Message string `json:"message,omitempty"`

	Analysis *PDFAnalysis `json:"pdf_analysis,omitempty"`
}

// HealthStatus is the JSON body returned by GET /health.
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Spreadsheet is the binary artifact returned by the export endpoint.
type Spreadsheet struct {
	Filename    string
	ContentType string
	Data        []byte
}
