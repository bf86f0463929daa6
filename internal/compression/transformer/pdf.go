package transformer

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"github.com/go-pdf/fpdf"
	"github.com/shrinkray/compression-backend/internal/compression/domain"
	"github.com/shrinkray/compression-backend/pkg/errors"
	"github.com/shrinkray/compression-backend/pkg/logger"
)

// PDFTransformer rasterizes each page of a PDF at a configurable DPI,
// re-encodes the pages as quality-controlled JPEGs and rebuilds a
// page-per-image PDF. Lossy by design.
type PDFTransformer struct {
	log *logger.Logger
}

// NewPDFTransformer creates a new PDF raster compressor
func NewPDFTransformer(log *logger.Logger) *PDFTransformer {
	return &PDFTransformer{log: log.WithComponent("pdf-transformer")}
}

func (t *PDFTransformer) Name() string { return "pdf" }

func (t *PDFTransformer) CanTransform(category domain.FileCategory) bool {
	return category == domain.CategoryPDF
}

func (t *PDFTransformer) Compress(ctx context.Context, file domain.SourceFile, opts domain.Options, onProgress domain.ProgressFunc) (*domain.SourceFile, error) {
	progress := progressOrNoop(onProgress)
	pdfOpts := opts.PDF
	if pdfOpts.Quality < 1 || pdfOpts.Quality > 100 {
		return nil, errors.BadRequest(fmt.Sprintf("pdf quality must be 1-100, got %d", pdfOpts.Quality))
	}
	if pdfOpts.DPI < 72 || pdfOpts.DPI > 300 {
		return nil, errors.BadRequest(fmt.Sprintf("pdf dpi must be 72-300, got %d", pdfOpts.DPI))
	}

	doc, err := fitz.NewFromMemory(file.Data)
	if err != nil {
		return nil, errors.TransformFailed(file.Name, fmt.Errorf("open pdf: %w", err))
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		progress(100)
		out := domain.NewSourceFile(file.Name, "application/pdf", emptyPDF())
		return &out, nil
	}

	builder := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: 1, Ht: 1},
	})
	builder.SetCompression(true)

	for i := 0; i < pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		progress(float64(i) / float64(pageCount) * 100)

		img, err := doc.ImageDPI(i, float64(pdfOpts.DPI))
		if err != nil {
			return nil, errors.TransformFailed(file.Name, fmt.Errorf("render page %d: %w", i+1, err))
		}

		var jpegBuf bytes.Buffer
		if err := jpeg.Encode(&jpegBuf, img, &jpeg.Options{Quality: pdfOpts.Quality}); err != nil {
			return nil, errors.TransformFailed(file.Name, fmt.Errorf("encode page %d: %w", i+1, err))
		}

		width := float64(img.Bounds().Dx())
		height := float64(img.Bounds().Dy())

		builder.AddPageFormat("P", fpdf.SizeType{Wd: width, Ht: height})

		imgName := fmt.Sprintf("page-%d", i+1)
		imgOpts := fpdf.ImageOptions{ImageType: "JPG"}
		builder.RegisterImageOptionsReader(imgName, imgOpts, &jpegBuf)
		builder.ImageOptions(imgName, 0, 0, width, height, false, imgOpts, 0, "")
	}

	if builder.Err() {
		return nil, errors.TransformFailed(file.Name, fmt.Errorf("build output pdf: %w", builder.Error()))
	}

	progress(100)

	var out bytes.Buffer
	if err := builder.Output(&out); err != nil {
		return nil, errors.TransformFailed(file.Name, fmt.Errorf("serialize output pdf: %w", err))
	}

	result := domain.NewSourceFile(file.Name, "application/pdf", out.Bytes())
	t.log.Debug().
		Str("file", file.Name).
		Int("pages", pageCount).
		Int64("original_size", file.Size).
		Int64("compressed_size", result.Size).
		Msg("pdf rasterized")
	return &result, nil
}

// emptyPDF serializes a valid zero-page document. The page builder always
// emits at least one page, so the zero-page edge case is written directly.
func emptyPDF() []byte {
	var body bytes.Buffer
	body.WriteString("%PDF-1.4\n")

	offsets := make([]int, 0, 2)

	offsets = append(offsets, body.Len())
	body.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	offsets = append(offsets, body.Len())
	body.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")

	xrefOffset := body.Len()
	body.WriteString("xref\n0 3\n")
	body.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&body, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&body, "trailer\n<< /Size 3 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	return body.Bytes()
}
