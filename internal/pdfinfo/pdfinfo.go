// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdfinfo inspects PDF documents locally before they are uploaded.
package pdfinfo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// MIMEType is the media type accepted for upload.
const MIMEType = "application/pdf"

// ErrStreamLength is returned when a stream declares more bytes than the
// document holds. pdfcpu allocates the declared length up front.
var ErrStreamLength = errors.New("stream length exceeds document size")

var (
	directLength   = regexp.MustCompile(`/Length\s+(\d+)(\s+(\d+)\s+R)?`)
	indirectObject = `(?:^|[^0-9])%s\s+%s\s+obj\s*(\d+)`
)

// countPages is replaced in tests.
var countPages = func(rs io.ReadSeeker, conf *model.Configuration) (int, error) {
	return api.PageCount(rs, conf)
}

func init() {
	// Keep pdfcpu from writing a config directory under the user's home.
	api.DisableConfigDir()
}

// IsPDF reports whether data looks like a PDF by content sniffing.
func IsPDF(data []byte) bool {
	return http.DetectContentType(data) == MIMEType
}

// PageCount parses data in relaxed validation mode and returns its page
// count. It is best effort: malformed documents yield an error, never a
// panic.
func PageCount(data []byte) (n int, err error) {
	if err := checkLengths(data); err != nil {
		return 0, err
	}

	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("counting pages: malformed document: %v", r)
		}
	}()

	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed

	n, err = countPages(bytes.NewReader(data), cfg)
	if err != nil {
		return 0, fmt.Errorf("counting pages: %w", err)
	}
	return n, nil
}

// checkLengths rejects documents whose stream /Length entries, direct or
// indirect, are larger than the document itself.
func checkLengths(data []byte) error {
	limit := int64(len(data))
	for _, m := range directLength.FindAllSubmatch(data, -1) {
		if len(m[2]) > 0 {
			// "/Length 7 0 R": look up the referenced integer object.
			re, err := regexp.Compile(fmt.Sprintf(indirectObject, m[1], m[3]))
			if err != nil {
				continue
			}
			ref := re.FindSubmatch(data)
			if ref == nil {
				continue
			}
			if tooLong(ref[1], limit) {
				return fmt.Errorf("counting pages: %w", ErrStreamLength)
			}
			continue
		}
		if tooLong(m[1], limit) {
			return fmt.Errorf("counting pages: %w", ErrStreamLength)
		}
	}
	return nil
}

func tooLong(digits []byte, limit int64) bool {
	v, err := strconv.ParseInt(string(digits), 10, 64)
	return err != nil || v > limit
}
