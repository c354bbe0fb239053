// Package ingest extracts plain text from uploaded annual reports.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText is returned when a PDF parses but holds no extractable text,
// typically a scanned document without an OCR layer.
var ErrNoText = errors.New("no extractable text in PDF")

// Document is the extracted text of a report. Pages are concatenated in
// document order without boundary markers.
type Document struct {
	Text  string
	Pages int
}

// ExtractBytes reads a PDF held in memory.
func ExtractBytes(data []byte) (Document, error) {
	return Extract(bytes.NewReader(data), int64(len(data)))
}

// ExtractFile reads a PDF from disk.
func ExtractFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return ExtractBytes(data)
}

// Extract reads the text of every page. Corrupt or encrypted documents come
// back as errors; the PDF library panics on some malformed inputs, and those
// panics are recovered into errors too.
func Extract(r io.ReaderAt, size int64) (doc Document, err error) {
	defer func() {
		if p := recover(); p != nil {
			doc = Document{}
			err = fmt.Errorf("corrupt PDF: %v", p)
		}
	}()

	if size <= 0 {
		return Document{}, errors.New("empty PDF")
	}

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return Document{}, fmt.Errorf("opening PDF: %w", err)
	}

	var sb strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return Document{}, fmt.Errorf("extracting page %d: %w", i, err)
		}
		sb.WriteString(text)
	}

	doc = Document{Text: sb.String(), Pages: pages}
	if strings.TrimSpace(doc.Text) == "" {
		return doc, ErrNoText
	}
	return doc, nil
}
