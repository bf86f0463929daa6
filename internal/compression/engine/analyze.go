package engine

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/shrinkray/compression-backend/internal/compression/domain"
	"github.com/shrinkray/compression-backend/internal/compression/filetype"
	"github.com/shrinkray/compression-backend/internal/compression/transformer"
)

const (
	largePDFBytes    = 10 << 20
	largeImagePixels = 8.0
	largeTextBytes   = 1 << 20
)

// Analysis describes a file before compression: its category, format
// metadata and suggested settings
type Analysis struct {
	FileName        string              `json:"file_name"`
	Size            int64               `json:"size"`
	Category        domain.FileCategory `json:"category"`
	Supported       bool                `json:"supported"`
	Metadata        any                 `json:"metadata,omitempty"`
	Recommendations []string            `json:"recommendations"`
}

// Analyze inspects a file without compressing it
func (e *Engine) Analyze(file domain.SourceFile) *Analysis {
	analysis := &Analysis{
		FileName:        file.Name,
		Size:            file.Size,
		Recommendations: []string{},
	}

	category, supported := filetype.DetectCategory(file.Name, file.ContentType)
	analysis.Category = category
	analysis.Supported = supported
	if !supported {
		analysis.Recommendations = append(analysis.Recommendations,
			"file type is not supported; it will be skipped during batch compression")
		return analysis
	}

	switch category {
	case domain.CategoryPDF:
		e.analyzePDF(file, analysis)
	case domain.CategoryImage:
		e.analyzeImage(file, analysis)
	case domain.CategoryText:
		e.analyzeText(file, analysis)
	default:
		if p, ok := e.registry.FindTransformer(category).(*transformer.Passthrough); ok && p != nil {
			analysis.Recommendations = append(analysis.Recommendations, p.Note(category))
		}
	}
	return analysis
}

type pdfMetadata struct {
	PageCount int `json:"page_count"`
}

func (e *Engine) analyzePDF(file domain.SourceFile, analysis *Analysis) {
	pages, err := api.PageCount(bytes.NewReader(file.Data), nil)
	if err != nil {
		e.log.Warn().Err(err).Str("file", file.Name).Msg("pdf page count failed")
		analysis.Recommendations = append(analysis.Recommendations,
			"file could not be parsed as a PDF; compression may fail")
		return
	}
	analysis.Metadata = pdfMetadata{PageCount: pages}

	if file.Size > largePDFBytes {
		analysis.Recommendations = append(analysis.Recommendations,
			"large PDF: consider lowering DPI to 72-100 for a stronger reduction")
	}
	if pages > 50 {
		analysis.Recommendations = append(analysis.Recommendations,
			fmt.Sprintf("%d pages: OCR analysis will process this document in chunks", pages))
	}
	analysis.Recommendations = append(analysis.Recommendations,
		"default rasterization is 150 DPI at quality 50")
}

func (e *Engine) analyzeImage(file domain.SourceFile, analysis *Analysis) {
	it, ok := e.registry.FindTransformer(domain.CategoryImage).(*transformer.ImageTransformer)
	if !ok {
		return
	}
	meta, err := it.Metadata(file)
	if err != nil {
		e.log.Warn().Err(err).Str("file", file.Name).Msg("image metadata failed")
		analysis.Recommendations = append(analysis.Recommendations,
			"image header could not be read; compression may fail")
		return
	}
	analysis.Metadata = meta

	if meta.Megapixels > largeImagePixels {
		analysis.Recommendations = append(analysis.Recommendations,
			"high resolution image: set max dimensions to shrink it before encoding")
	}
	if meta.Format == "png" {
		analysis.Recommendations = append(analysis.Recommendations,
			"photographic PNGs usually compress far better as jpeg or webp")
	}
}

func (e *Engine) analyzeText(file domain.SourceFile, analysis *Analysis) {
	tt, ok := e.registry.FindTransformer(domain.CategoryText).(*transformer.TextTransformer)
	if !ok {
		return
	}
	analysis.Metadata = tt.Metadata(file)

	if file.Size > largeTextBytes {
		analysis.Recommendations = append(analysis.Recommendations,
			"large text file: gzip gives the best reduction if the consumer can decompress")
	} else {
		analysis.Recommendations = append(analysis.Recommendations,
			"minify removes formatting; optimize keeps the file readable")
	}
}
