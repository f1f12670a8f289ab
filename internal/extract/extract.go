package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"vacalyser/internal/errors"
	"vacalyser/internal/utils"
)

// URLTimeout bounds a page fetch
const URLTimeout = 10 * time.Second

// DefaultMaxSize caps how much of a file or page is read
const DefaultMaxSize int64 = 5 * 1024 * 1024

// Extractor turns documents and web pages into plain text
type Extractor struct {
	MaxSize    int64
	HTTPClient *http.Client
}

// New returns an extractor reading at most maxSize bytes per source
func New(maxSize int64) *Extractor {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Extractor{
		MaxSize:    maxSize,
		HTTPClient: &http.Client{Timeout: URLTimeout},
	}
}

// File reads path and returns its text. The format follows the extension:
// .txt and .md as text, .docx paragraphs, .pdf page text, .html without markup.
func (e *Extractor) File(path string) (string, error) {
	if err := utils.ValidateInputFile(path); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return "", errors.NewIOError(errors.ErrCodeFileNotFound, fmt.Sprintf("File not found: %s", path), err)
		}
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable, fmt.Sprintf("Cannot read file: %s", path), err)
	}

	ext := utils.GetFileExtension(path)
	switch {
	case utils.IsTextFile(path):
		data, err := e.readFile(path)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	case ext == ".html" || ext == ".htm":
		data, err := e.readFile(path)
		if err != nil {
			return "", err
		}
		return HTMLText(bytes.NewReader(data))
	case ext == ".docx":
		data, err := e.readFile(path)
		if err != nil {
			return "", err
		}
		return docxText(data, e.MaxSize)
	case ext == ".pdf":
		data, err := e.readFile(path)
		if err != nil {
			return "", err
		}
		return pdfText(data, e.MaxSize)
	default:
		return "", errors.NewValidationError(errors.ErrCodeUnsupported,
			fmt.Sprintf("Unsupported file type %q; use .txt, .md, .docx, .pdf or .html", ext), nil).
			WithContext("file", path)
	}
}

func (e *Extractor) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable, fmt.Sprintf("Cannot read file: %s", path), err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, e.MaxSize+1))
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable, fmt.Sprintf("Failed to read file content: %s", path), err)
	}
	if int64(len(data)) > e.MaxSize {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("File is larger than %s", utils.FormatFileSize(e.MaxSize)), nil).
			WithContext("file", path)
	}
	return data, nil
}

// URL fetches a web page and returns its visible text
func (e *Extractor) URL(ctx context.Context, url string) (string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", errors.NewValidationError(errors.ErrCodeInvalidRequest, "URL must start with http:// or https://", nil).
			WithContext("url", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.NewValidationError(errors.ErrCodeInvalidRequest, "invalid URL", err).WithContext("url", url)
	}
	req.Header.Set("User-Agent", "vacalyser/1.0")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		code, msg := errors.ErrCodeNetworkFailed, "Failed to fetch the page"
		if isTimeout(err) {
			code, msg = errors.ErrCodeNetworkTimeout, "Timed out fetching the page"
		}
		return "", errors.NewNetworkError(code, msg, err).WithContext("url", url)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return "", errors.NewNotFoundError(errors.ErrCodePageNotFound,
			fmt.Sprintf("Page not found: status %d", resp.StatusCode), nil).
			WithContext("url", url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", errors.NewNetworkError(errors.ErrCodeNetworkFailed,
			fmt.Sprintf("Failed to fetch the page: status %d", resp.StatusCode), nil).
			WithContext("url", url).
			WithContext("status", resp.StatusCode)
	}
	return HTMLText(io.LimitReader(resp.Body, e.MaxSize))
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return stderrors.As(err, &ne) && ne.Timeout()
}

// skipElements hold no readable text
var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "head": true, "template": true, "svg": true,
}

// blockElements end a line of text
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "ul": true, "ol": true,
	"header": true, "footer": true, "main": true, "table": true,
}

// HTMLText strips markup and returns the visible text, one block per line
func HTMLText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var (
		b    strings.Builder
		skip int
	)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return collapseLines(b.String()), nil
			}
			return "", errors.NewValidationError(errors.ErrCodeInvalidFormat, "failed to parse HTML", z.Err())
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipElements[tag] {
				switch {
				case tt == html.StartTagToken:
					skip++
				case tt == html.EndTagToken && skip > 0:
					skip--
				}
			}
			if blockElements[tag] {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

// collapseLines trims every line, folds runs of spaces and drops empty lines
func collapseLines(s string) string {
	var lines []string
	for line := range strings.Lines(s) {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// DocxText returns the paragraphs of word/document.xml, one per line. The
// decompressed body may be at most DefaultMaxSize bytes.
func DocxText(data []byte) (string, error) {
	return docxText(data, DefaultMaxSize)
}

func docxText(data []byte, maxSize int64) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.NewValidationError(errors.ErrCodeInvalidFormat, "not a valid .docx file", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", errors.NewIOError(errors.ErrCodeFileNotReadable, "cannot open document body", err)
		}
		defer func() { _ = rc.Close() }()
		body, err := io.ReadAll(io.LimitReader(rc, maxSize+1))
		if err != nil {
			return "", errors.NewValidationError(errors.ErrCodeInvalidFormat, "cannot decompress document body", err)
		}
		if int64(len(body)) > maxSize {
			return "", errors.NewValidationError(errors.ErrCodeInvalidFormat,
				fmt.Sprintf("Document body is larger than %s", utils.FormatFileSize(maxSize)), nil)
		}
		return docxParagraphs(bytes.NewReader(body))
	}
	return "", errors.NewValidationError(errors.ErrCodeInvalidFormat, "document body missing from .docx file", nil)
}

func docxParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.NewValidationError(errors.ErrCodeInvalidFormat, "malformed document body", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(current.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}

// PDFText returns the text of every page, one line per text run. At most
// DefaultMaxSize bytes of text are kept.
func PDFText(data []byte) (string, error) {
	return pdfText(data, DefaultMaxSize)
}

func pdfText(data []byte, maxSize int64) (text string, err error) {
	// the reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			text, err = "", errors.NewValidationError(errors.ErrCodeInvalidFormat, "malformed PDF document", fmt.Errorf("%v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.NewValidationError(errors.ErrCodeInvalidFormat, "not a valid PDF file", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", errors.NewValidationError(errors.ErrCodeInvalidFormat, "cannot read PDF text", err)
	}
	raw, err := io.ReadAll(io.LimitReader(plain, maxSize))
	if err != nil {
		return "", errors.NewIOError(errors.ErrCodeFileNotReadable, "cannot read PDF text", err)
	}
	return collapseLines(string(raw)), nil
}
