package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"invoice-backend/internal/llm"
	"invoice-backend/internal/shared/apperr"
)

const (
	MimePDF  = "application/pdf"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"

	DefaultMaxPages = 20
	maxTextBytes    = 60000
)

// Converter turns stored document bytes into model input.
type Converter struct {
	MaxPages int
}

// NewConverter returns a converter rejecting PDFs longer than maxPages.
func NewConverter(maxPages int) *Converter {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Converter{MaxPages: maxPages}
}

// Prepare builds an llm.Input for the given bytes. Images become data URLs,
// PDFs are reduced to their text layer. The result depends only on the input.
func (c *Converter) Prepare(ctx context.Context, data []byte, fileType, fileName string) (llm.Input, error) {
	if err := ctx.Err(); err != nil {
		return llm.Input{}, apperr.WrapError(apperr.ErrExtractionUnavailable, "extract.prepare", err)
	}
	if len(data) == 0 {
		return llm.Input{}, apperr.New(apperr.ErrExtractionUnavailable, "extract.prepare", "empty document")
	}

	switch fileType {
	case MimePNG, MimeJPEG:
		return llm.Input{ImageDataURL: DataURL(fileType, data), FileName: fileName}, nil
	case MimePDF:
		text, err := c.pdfText(data)
		if err != nil {
			return llm.Input{}, err
		}
		return llm.Input{Text: text, FileName: fileName}, nil
	default:
		return llm.Input{}, apperr.New(apperr.ErrValidation, "extract.prepare", "unsupported file type "+fileType)
	}
}

// DataURL encodes data as a base64 data URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// PageCount validates the PDF structure and returns its page count.
func PageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	return api.PageCount(bytes.NewReader(data), conf)
}

func (c *Converter) pdfText(data []byte) (string, error) {
	pages, err := PageCount(data)
	if err != nil {
		return "", apperr.WrapError(apperr.ErrExtractionUnavailable, "extract.pdf", fmt.Errorf("unreadable pdf: %w", err))
	}
	maxPages := c.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	if pages > maxPages {
		return "", apperr.New(apperr.ErrValidation, "extract.pdf", fmt.Sprintf("pdf has %d pages, limit is %d", pages, maxPages))
	}

	text, err := extractPDF(data)
	if err != nil {
		return "", apperr.WrapError(apperr.ErrExtractionUnavailable, "extract.pdf", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperr.New(apperr.ErrExtractionUnavailable, "extract.pdf", "no text layer")
	}
	return truncateUTF8(text, maxTextBytes), nil
}

func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pdf text: %v", rec)
		}
	}()
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
