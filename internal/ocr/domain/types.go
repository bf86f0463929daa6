package domain

import "strings"

// PageImage is one image extracted from a document page. Either Data holds
// the full base64 payload, or Unresolved is set and Ref names the image the
// remote service mentioned but did not deliver.
type PageImage struct {
	PageIndex  int    `json:"page_index"`
	ID         string `json:"id"`
	Data       string `json:"data,omitempty"`
	Unresolved bool   `json:"unresolved,omitempty"`
	Ref        string `json:"ref,omitempty"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
}

// Page is one page of an analysis result. Index is relative to the
// analyzed document, zero-based.
type Page struct {
	Index  int         `json:"index"`
	Text   string      `json:"text"`
	Images []PageImage `json:"images,omitempty"`
}

// AnalysisResult is the raw outcome of one OCR call, covering either a
// whole document or one chunk of it
type AnalysisResult struct {
	Pages    []Page `json:"pages"`
	Language string `json:"language,omitempty"`
}

// WordCount sums the whitespace-separated words across all pages
func (r *AnalysisResult) WordCount() int {
	total := 0
	for _, p := range r.Pages {
		total += len(strings.Fields(p.Text))
	}
	return total
}

// Metadata is the combined OCR outcome for one document. Image page
// indices are always absolute against the analyzed document, never
// relative to the chunk they came from.
type Metadata struct {
	PageCount     int         `json:"page_count"`
	TotalWords    int         `json:"total_words"`
	Language      string      `json:"language,omitempty"`
	HasImages     bool        `json:"has_images"`
	ExtractedText string      `json:"extracted_text"`
	FullText      string      `json:"full_text"`
	Images        []PageImage `json:"images,omitempty"`
	Chunked       bool        `json:"chunked"`
}

// ChunkRange is a contiguous page range, 1-based and inclusive
type ChunkRange struct {
	StartPage int `json:"start_page"`
	EndPage   int `json:"end_page"`
}

// Pages returns the number of pages the range covers
func (r ChunkRange) Pages() int {
	return r.EndPage - r.StartPage + 1
}
