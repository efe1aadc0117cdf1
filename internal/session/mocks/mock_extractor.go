// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mocks provides testify mocks for the session package interfaces.
package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"github.com/pdiddy/insurance-extract/pkg/types"
)

// MockExtractor is a mock session.Extractor. Upload also accepts a
// function return value, called with the request arguments.
type MockExtractor struct {
	mock.Mock
}

// Upload records the call and returns the configured response.
func (m *MockExtractor) Upload(ctx context.Context, filename string, r io.Reader) (*types.UploadResponse, error) {
	args := m.Called(ctx, filename, r)
	if f, ok := args.Get(0).(func(context.Context, string, io.Reader) *types.UploadResponse); ok {
		return f(ctx, filename, r), args.Error(1)
	}
	resp, _ := args.Get(0).(*types.UploadResponse)
	return resp, args.Error(1)
}

// Download records the call and returns the configured spreadsheet.
func (m *MockExtractor) Download(ctx context.Context, result types.ExtractionResult) (*types.Spreadsheet, error) {
	args := m.Called(ctx, result)
	sheet, _ := args.Get(0).(*types.Spreadsheet)
	return sheet, args.Error(1)
}

// MockRecorder is a mock session.Recorder.
type MockRecorder struct {
	mock.Mock
}

// Record records the call and returns the configured error.
func (m *MockRecorder) Record(ctx context.Context, e *types.HistoryEntry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}
