package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"invoice-backend/internal/shared/apperr"
)

// buildPDF writes a minimal PDF with one Helvetica text line per page.
func buildPDF(pages []string) []byte {
	var (
		buf     bytes.Buffer
		offsets []int
	)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+i*2)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	for i, text := range pages {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>", 5+i*2))
		stream := ""
		if text != "" {
			stream = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestPrepareImageDataURL(t *testing.T) {
	c := NewConverter(0)
	in, err := c.Prepare(context.Background(), []byte{0x89, 'P', 'N', 'G'}, MimePNG, "scan.png")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if in.ImageDataURL != "data:image/png;base64,iVBORw==" {
		t.Fatalf("unexpected data url %q", in.ImageDataURL)
	}
	if in.Text != "" || in.FileName != "scan.png" {
		t.Fatalf("unexpected input %+v", in)
	}
}

func TestPreparePDFText(t *testing.T) {
	c := NewConverter(5)
	data := buildPDF([]string{"Invoice 42 total 12.50"})

	in, err := c.Prepare(context.Background(), data, MimePDF, "inv.pdf")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !strings.Contains(in.Text, "12.50") {
		t.Fatalf("expected text layer, got %q", in.Text)
	}
	if in.ImageDataURL != "" {
		t.Fatalf("expected text input only")
	}

	again, err := c.Prepare(context.Background(), data, MimePDF, "inv.pdf")
	if err != nil || again != in {
		t.Fatalf("expected deterministic conversion, got %+v, %v", again, err)
	}
}

func TestPreparePDFTooManyPages(t *testing.T) {
	c := NewConverter(2)
	data := buildPDF([]string{"a", "b", "c"})

	_, err := c.Prepare(context.Background(), data, MimePDF, "long.pdf")
	if !apperr.IsKind(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPreparePDFWithoutTextLayer(t *testing.T) {
	c := NewConverter(5)
	data := buildPDF([]string{""})

	_, err := c.Prepare(context.Background(), data, MimePDF, "scan.pdf")
	if !apperr.IsKind(err, apperr.ErrExtractionUnavailable) {
		t.Fatalf("expected extraction unavailable, got %v", err)
	}
}

func TestPrepareCorruptPDF(t *testing.T) {
	c := NewConverter(5)
	_, err := c.Prepare(context.Background(), []byte("%PDF-1.4 garbage"), MimePDF, "bad.pdf")
	if !apperr.IsKind(err, apperr.ErrExtractionUnavailable) {
		t.Fatalf("expected extraction unavailable, got %v", err)
	}
}

func TestPrepareRejectsUnsupportedType(t *testing.T) {
	c := NewConverter(5)
	_, err := c.Prepare(context.Background(), []byte("hello"), "text/plain", "a.txt")
	if !apperr.IsKind(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTruncateUTF8(t *testing.T) {
	s := "aé"
	if got := truncateUTF8(s, 2); got != "a" {
		t.Fatalf("expected cut before multibyte rune, got %q", got)
	}
	if got := truncateUTF8(s, 10); got != s {
		t.Fatalf("expected unchanged, got %q", got)
	}
}

func TestPageCount(t *testing.T) {
	n, err := PageCount(buildPDF([]string{"one", "two"}))
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 pages, got %d", n)
	}
}
