// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session holds the state of one user's interaction with the
// extraction service: the selected file, the loading flag, the last result
// with its raw text, and the error and success messages shown to the user.
// It runs the upload-and-extract and download-as-spreadsheet flows.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/pdiddy/insurance-extract/internal/pdfinfo"
	"github.com/pdiddy/insurance-extract/internal/remote"
	"github.com/pdiddy/insurance-extract/pkg/types"
)

// Messages shown to the user.
const (
	InitialRawText = "Text content will appear here..."

	MsgUploadSuccess   = "PDF processed successfully! You can now download the Excel file."
	MsgProcessFailed   = "Failed to process PDF"
	MsgUploadError     = "An error occurred while processing the PDF"
	MsgNoFile          = "Please select a PDF file first"
	MsgInvalidFile     = "Please select a valid PDF file"
	MsgNoData          = "No data to download"
	MsgDownloadFailed  = "Failed to download Excel file"
	MsgDownloadSuccess = "Excel file downloaded successfully!"
)

var (
	// ErrInvalidFile is returned when a selected file is not a PDF.
	ErrInvalidFile = errors.New("not a PDF file")

	// ErrNoFile is returned when uploading with no file selected.
	ErrNoFile = errors.New("no file selected")

	// ErrUploadPending is returned when an upload is already in flight.
	ErrUploadPending = errors.New("upload already in progress")

	// ErrProcessFailed is returned when the service answers with success=false.
	ErrProcessFailed = errors.New("service could not process the document")

	// ErrNoResult is returned when downloading before any extraction.
	ErrNoResult = errors.New("no extraction result")
)

// Extractor is the remote service as the controller uses it.
type Extractor interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*types.UploadResponse, error)
	Download(ctx context.Context, result types.ExtractionResult) (*types.Spreadsheet, error)
}

// Recorder persists successful extractions. Record fills in ID and
// CreatedAt.
type Recorder interface {
	Record(ctx context.Context, e *types.HistoryEntry) error
}

// File is a selected document.
type File struct {
	Name        string
	ContentType string
	Data        []byte

	// Pages is zero when the page count could not be determined.
	Pages int
}

// State is a point-in-time copy of the controller's fields.
type State struct {
	FileName  string `json:"file_name,omitempty"`
	FileSize  int    `json:"file_size,omitempty"`
	FilePages int    `json:"file_pages,omitempty"`
	Loading   bool   `json:"loading"`
	CanUpload bool   `json:"can_upload"`

	Result   *types.ExtractionResult `json:"result"`
	RawText  string                 `json:"raw_text"`
	Analysis *types.PDFAnalysis      `json:"pdf_analysis,omitempty"`
	Message  string                 `json:"message,omitempty"`
	EntryID  string                 `json:"entry_id,omitempty"`

	Error   string `json:"error,omitempty"`
	Success string `json:"success,omitempty"`
}

// HasFile reports whether a file is selected.
func (s State) HasFile() bool {
	return s.FileName != ""
}

// Option configures a Controller.
type Option func(*Controller)

// WithRecorder records every successful extraction with r.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithLogger sets the logger for recording failures and page-count probes.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller is safe for concurrent use. Network calls run without holding
// the lock; the loading flag keeps uploads from overlapping.
type Controller struct {
	ext      Extractor
	recorder Recorder
	logger   *slog.Logger

	mu       sync.Mutex
	file     *File
	loading  bool
	result   *types.ExtractionResult
	rawText  string
	analysis *types.PDFAnalysis
	message  string
	entryID  string
	errMsg   string
	success  string
}

// New creates a controller in its initial state.
func New(ext Extractor, opts ...Option) *Controller {
	c := &Controller{
		ext:     ext,
		logger:  slog.Default(),
		rawText: InitialRawText,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SelectFile validates and selects a document. The content type is taken
// from contentType when given, otherwise sniffed from data. A non-PDF
// clears the current selection and sets the invalid-file message.
func (c *Controller) SelectFile(name, contentType string, data []byte) error {
	ct := mediaType(contentType)
	if ct == "" {
		ct = sniff(data)
	}

	var pages int
	if ct == pdfinfo.MIMEType {
		n, err := pdfinfo.PageCount(data)
		if err != nil {
			c.logger.Debug("page count unavailable", "file", name, "error", err)
		}
		pages = n
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ct != pdfinfo.MIMEType {
		c.file = nil
		c.errMsg = MsgInvalidFile
		return fmt.Errorf("%s (%s): %w", name, ct, ErrInvalidFile)
	}
	c.file = &File{Name: name, ContentType: ct, Data: data, Pages: pages}
	c.errMsg = ""
	return nil
}

// SelectPath reads a file from disk and selects it, sniffing its type.
func (c *Controller) SelectPath(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return c.SelectFile(filepath.Base(path), "", data)
}

// CanUpload reports whether Upload would issue a request.
func (c *Controller) CanUpload() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file != nil && !c.loading
}

// Upload sends the selected file to the service and stores the result.
func (c *Controller) Upload(ctx context.Context) error {
	c.mu.Lock()
	if c.file == nil {
		c.errMsg = MsgNoFile
		c.mu.Unlock()
		return ErrNoFile
	}
	if c.loading {
		c.mu.Unlock()
		return ErrUploadPending
	}
	file := c.file
	c.loading = true
	c.errMsg = ""
	c.success = ""
	c.mu.Unlock()

	resp, err := c.ext.Upload(ctx, file.Name, bytes.NewReader(file.Data))

	c.mu.Lock()
	c.loading = false

	if errors.Is(err, remote.ErrMalformedResponse) {
		c.errMsg = MsgProcessFailed
		c.mu.Unlock()
		return fmt.Errorf("uploading %s: %w: %w", file.Name, ErrProcessFailed, err)
	}
	if err != nil {
		c.errMsg = MsgUploadError
		var se *remote.ServiceError
		if errors.As(err, &se) && se.Message != "" {
			c.errMsg = se.Message
		}
		c.mu.Unlock()
		return fmt.Errorf("uploading %s: %w", file.Name, err)
	}
	if !resp.Success {
		c.errMsg = MsgProcessFailed
		c.mu.Unlock()
		return fmt.Errorf("uploading %s: %w", file.Name, ErrProcessFailed)
	}

	result := resp.Data
	c.result = &result
	c.analysis = resp.Analysis
	c.message = resp.Message
	c.entryID = ""
	c.success = MsgUploadSuccess
	if resp.OCRText != nil && *resp.OCRText != "" {
		c.rawText = *resp.OCRText
	} else {
		c.rawText = result.RawText()
	}
	entry := &types.HistoryEntry{
		Filename: file.Name,
		Message:  resp.Message,
		RawText:  c.rawText,
		Result:   result,
		Analysis: resp.Analysis,
	}
	c.mu.Unlock()

	if c.recorder == nil {
		return nil
	}
	if err := c.recorder.Record(ctx, entry); err != nil {
		c.logger.Warn("recording extraction failed", "file", file.Name, "error", err)
		return nil
	}

	c.mu.Lock()
	if c.result == &result {
		c.entryID = entry.ID
	}
	c.mu.Unlock()
	return nil
}

// Download requests a spreadsheet for the current result.
func (c *Controller) Download(ctx context.Context) (*types.Spreadsheet, error) {
	c.mu.Lock()
	if c.result == nil {
		c.errMsg = MsgNoData
		c.mu.Unlock()
		return nil, ErrNoResult
	}
	result := *c.result
	c.mu.Unlock()

	sheet, err := c.ext.Download(ctx, result)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.errMsg = MsgDownloadFailed
		return nil, fmt.Errorf("downloading spreadsheet: %w", err)
	}
	c.success = MsgDownloadSuccess
	return sheet, nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Loading:   c.loading,
		CanUpload: c.file != nil && !c.loading,
		RawText:   c.rawText,
		Analysis:  c.analysis,
		Message:   c.message,
		EntryID:   c.entryID,
		Error:     c.errMsg,
		Success:   c.success,
	}
	if c.file != nil {
		s.FileName = c.file.Name
		s.FileSize = len(c.file.Data)
		s.FilePages = c.file.Pages
	}
	if c.result != nil {
		r := *c.result
		s.Result = &r
	}
	return s
}

// SetResult installs a result obtained elsewhere, such as a history entry
// or an exported file, so it can be downloaded.
func (c *Controller) SetResult(result types.ExtractionResult, rawText string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = &result
	if rawText == "" {
		rawText = result.RawText()
	}
	c.rawText = rawText
	c.analysis = nil
	c.message = ""
	c.entryID = ""
}

// sniff detects the media type of data from its content.
func sniff(data []byte) string {
	if pdfinfo.IsPDF(data) {
		return pdfinfo.MIMEType
	}
	return mediaType(http.DetectContentType(data))
}

// mediaType strips parameters from a Content-Type value.
func mediaType(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ct
	}
	return mt
}
