package pdfmerge

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/shrinkray/compression-backend/pkg/errors"
)

type part struct {
	name string
	data []byte
}

// Document accumulates PDFs page-by-page in append order and serializes
// them into one combined file. A Document is built once, finalized once
// and then discarded.
type Document struct {
	parts []part
	pages int
}

// NewDocument creates an empty combined document
func NewDocument() *Document {
	return &Document{}
}

// AppendFile validates data as a PDF and appends all of its pages after
// any pages already present. Safe to call repeatedly as batch files
// finish; append order is preserved in the final document.
func (d *Document) AppendFile(name string, data []byte) error {
	pages, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return errors.MergeFailed(name, fmt.Errorf("not a readable pdf: %w", err))
	}
	if pages == 0 {
		return errors.MergeFailed(name, fmt.Errorf("document has no pages"))
	}

	d.parts = append(d.parts, part{name: name, data: data})
	d.pages += pages
	return nil
}

// PageCount returns the total pages appended so far
func (d *Document) PageCount() int {
	return d.pages
}

// Files returns the number of appended source files
func (d *Document) Files() int {
	return len(d.parts)
}

// Finalize serializes the combined document. At least one file must have
// been appended.
func (d *Document) Finalize() ([]byte, error) {
	if len(d.parts) == 0 {
		return nil, errors.MergeFailed("combined document", fmt.Errorf("no documents appended"))
	}
	if len(d.parts) == 1 {
		out := make([]byte, len(d.parts[0].data))
		copy(out, d.parts[0].data)
		return out, nil
	}

	readers := make([]io.ReadSeeker, len(d.parts))
	for i, p := range d.parts {
		readers[i] = bytes.NewReader(p.data)
	}

	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, nil); err != nil {
		return nil, errors.MergeFailed("combined document", err)
	}
	return buf.Bytes(), nil
}

// PageCount reads the page count of a standalone PDF
func PageCount(data []byte) (int, error) {
	pages, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("pdf page count: %w", err)
	}
	return pages, nil
}

// ExtractPageRange copies an inclusive 1-based page range into a
// standalone PDF. The source bytes are left untouched, so the same
// document can be sliced into successive chunks.
func ExtractPageRange(data []byte, startPage, endPage int) ([]byte, error) {
	if startPage < 1 || endPage < startPage {
		return nil, fmt.Errorf("invalid page range %d-%d", startPage, endPage)
	}

	// pdfcpu consumes the reader, so each extraction works on its own copy
	src := make([]byte, len(data))
	copy(src, data)

	var buf bytes.Buffer
	selection := []string{fmt.Sprintf("%d-%d", startPage, endPage)}
	if err := api.Trim(bytes.NewReader(src), &buf, selection, nil); err != nil {
		return nil, fmt.Errorf("extract pages %d-%d: %w", startPage, endPage, err)
	}
	return buf.Bytes(), nil
}
