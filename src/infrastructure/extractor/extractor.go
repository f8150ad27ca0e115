package extractor

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"ragdesk/src/core/rag"
)

const (
	BackendNative       = "native"
	BackendUnstructured = "unstructured"
)

// Partitioner converts a document into text through a remote service.
type Partitioner interface {
	PartitionText(ctx context.Context, filename string, content []byte) (string, error)
}

// Extractor turns PDF and TXT uploads into plain text. PDFs are parsed in
// process unless a Partitioner is configured.
type Extractor struct {
	partitioner Partitioner
}

type Option func(e *Extractor)

// WithPartitioner routes PDFs to a remote partition service.
func WithPartitioner(p Partitioner) Option {
	return func(e *Extractor) {
		e.partitioner = p
	}
}

func New(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extractor) Extract(ctx context.Context, filename string, content []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		if e.partitioner != nil {
			return e.partitioner.PartitionText(ctx, filename, content)
		}
		return extractPDF(content)
	case ".txt":
		return extractText(content)
	default:
		return "", fmt.Errorf("%w: %s", rag.ErrUnsupportedFileType, filename)
	}
}

func extractText(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: text file is not valid UTF-8", rag.ErrInvalidRequest)
	}
	return string(content), nil
}

func extractPDF(content []byte) (text string, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to parse PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read page %d: %w", i, err)
		}
		pages = append(pages, pageText)
	}
	return strings.Join(pages, "\n"), nil
}
