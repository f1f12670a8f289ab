package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vacalyser/internal/errors"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>%s</w:body></w:document>`, body)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// buildPDF writes a one-page PDF with one text line per entry
func buildPDF(t *testing.T, lines ...string) []byte {
	t.Helper()
	var content strings.Builder
	content.WriteString("BT /F1 12 Tf 16 TL 72 720 Td\n")
	for i, line := range lines {
		if i > 0 {
			content.WriteString("T*\n")
		}
		fmt.Fprintf(&content, "(%s) Tj\n", line)
	}
	content.WriteString("ET\n")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestFile(t *testing.T) {
	docx := buildDocx(t, `<w:p><w:r><w:t>Senior</w:t></w:r><w:r><w:t xml:space="preserve"> Engineer</w:t></w:r></w:p><w:p></w:p><w:p><w:r><w:t>Berlin</w:t></w:r></w:p>`)

	tests := []struct {
		name string
		file string
		data []byte
		want string
	}{
		{"text", "ad.txt", []byte("  We hire.\n"), "We hire."},
		{"markdown", "ad.md", []byte("# Role\n- Go"), "# Role\n- Go"},
		{"html", "ad.html", []byte(`<html><head><title>x</title><style>p{}</style></head><body><h1>Data  Scientist</h1><p>Join <b>Acme</b></p><script>alert(1)</script></body></html>`), "Data Scientist\nJoin Acme"},
		{"docx", "ad.docx", docx, "Senior Engineer\nBerlin"},
	}

	e := New(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.File(writeFile(t, tt.file, tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilePDF(t *testing.T) {
	path := writeFile(t, "ad.pdf", buildPDF(t, "Data Scientist", "Industry - Retail"))

	got, err := New(0).File(path)
	require.NoError(t, err)
	assert.Contains(t, got, "Data Scientist")
	assert.Contains(t, got, "Industry - Retail")
}

func TestDocxBodyLimit(t *testing.T) {
	// compresses to a few hundred bytes but inflates far beyond the limit
	body := `<w:p><w:r><w:t>` + strings.Repeat("a", 64*1024) + `</w:t></w:r></w:p>`
	docx := buildDocx(t, body)
	require.Less(t, len(docx), 1024)

	_, err := New(1024).File(writeFile(t, "bomb.docx", docx))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidFormat))
	assert.Contains(t, err.Error(), "Document body is larger than")
}

func TestFileErrors(t *testing.T) {
	e := New(16)

	_, err := e.File(writeFile(t, "ad.odt", []byte("PK")))
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnsupported))

	_, err = e.File(writeFile(t, "broken.pdf", []byte("%PDF-1.4")))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidFormat))

	_, err = e.File(filepath.Join(t.TempDir(), "missing.txt"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeFileNotFound))

	_, err = e.File(writeFile(t, "big.txt", bytes.Repeat([]byte("a"), 17)))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidFormat))

	_, err = e.File(writeFile(t, "broken.docx", []byte("not a zip")))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidFormat))
}

func TestURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gone":
			http.NotFound(w, r)
			return
		case "/broken":
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = fmt.Fprint(w, `<div>Industry - Retail</div><div>Company Location - Hamburg</div>`)
	}))
	defer srv.Close()

	e := New(0)
	got, err := e.URL(context.Background(), srv.URL+"/about")
	require.NoError(t, err)
	assert.Equal(t, "Industry - Retail\nCompany Location - Hamburg", got)

	tests := []struct {
		name string
		path string
		code string
	}{
		{"not found", "/gone", errors.ErrCodePageNotFound},
		{"server error", "/broken", errors.ErrCodeNetworkFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.URL(context.Background(), srv.URL+tt.path)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}

	_, err = e.URL(context.Background(), "ftp://example.com")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest))
}

func TestURLTransportErrors(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer slow.Close()

	e := New(0)
	e.HTTPClient = &http.Client{Timeout: 20 * time.Millisecond}
	_, err := e.URL(context.Background(), slow.URL)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNetworkTimeout), "got %v", err)

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()
	_, err = New(0).URL(context.Background(), closedURL)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNetworkFailed), "got %v", err)
}

func TestHTMLTextDropsEmptyLines(t *testing.T) {
	got, err := HTMLText(strings.NewReader("<ul><li>a</li>\n\n<li> b </li></ul><br/>c"))
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc", got)
}
