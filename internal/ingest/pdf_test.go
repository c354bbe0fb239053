package ingest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPDF builds a one-page PDF whose page shows text. Offsets in the
// cross-reference table are computed while writing.
func minimalPDF(t *testing.T, text string) []byte {
	t.Helper()
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractBytes(t *testing.T) {
	doc, err := ExtractBytes(minimalPDF(t, "Acme annual report 2024"))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Pages)
	assert.Contains(t, doc.Text, "Acme annual report 2024")
}

func TestExtractFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, minimalPDF(t, "Revenue grew"), 0644))

	doc, err := ExtractFile(path)
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "Revenue grew")

	_, err = ExtractFile(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestExtract_CorruptInputs(t *testing.T) {
	valid := minimalPDF(t, "x")
	inputs := map[string][]byte{
		"empty":       nil,
		"not a pdf":   []byte("this is a plain text file, not a PDF"),
		"truncated":   valid[:len(valid)/2],
		"header only": []byte("%PDF-1.4\n%%EOF\n"),
	}
	for name, data := range inputs {
		t.Run(name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { _, err = ExtractBytes(data) })
			assert.Error(t, err)
		})
	}
}
