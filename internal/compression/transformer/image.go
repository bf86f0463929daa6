package transformer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/shrinkray/compression-backend/internal/compression/domain"
	"github.com/shrinkray/compression-backend/pkg/errors"
	"github.com/shrinkray/compression-backend/pkg/logger"
	"golang.org/x/image/draw"

	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// ImageTransformer re-encodes raster images at a target quality, format
// and bounding box
type ImageTransformer struct {
	log *logger.Logger
}

// NewImageTransformer creates a new image transformer
func NewImageTransformer(log *logger.Logger) *ImageTransformer {
	return &ImageTransformer{log: log.WithComponent("image-transformer")}
}

func (t *ImageTransformer) Name() string { return "image" }

func (t *ImageTransformer) CanTransform(category domain.FileCategory) bool {
	return category == domain.CategoryImage
}

func (t *ImageTransformer) Compress(ctx context.Context, file domain.SourceFile, opts domain.Options, onProgress domain.ProgressFunc) (*domain.SourceFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progress := progressOrNoop(onProgress)
	imgOpts := opts.Image

	src, _, err := image.Decode(bytes.NewReader(file.Data))
	if err != nil {
		return nil, errors.TransformFailed(file.Name, fmt.Errorf("decode image: %w", err))
	}
	progress(25)

	bounds := src.Bounds()
	width, height := fitDimensions(
		bounds.Dx(), bounds.Dy(),
		imgOpts.MaxWidth, imgOpts.MaxHeight,
		imgOpts.MaintainAspectRatio,
	)

	if width != bounds.Dx() || height != bounds.Dy() {
		scaled := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, bounds, draw.Src, nil)
		src = scaled
	}
	progress(50)

	format := imgOpts.Format
	if format == "" {
		format = domain.FormatJPEG
	}

	data, err := encodeImage(src, format, imgOpts.Quality)
	if err != nil {
		return nil, errors.TransformFailed(file.Name, err)
	}
	progress(75)

	out := domain.NewSourceFile(
		replaceExtension(file.Name, format),
		"image/"+format,
		data,
	)
	progress(100)
	return &out, nil
}

// fitDimensions computes the output geometry. With an aspect-ratio
// constraint the image is shrunk to fit the width bound first, then checked
// against the height bound; it never grows beyond its original size.
func fitDimensions(origWidth, origHeight, maxWidth, maxHeight int, maintainAspect bool) (int, int) {
	width, height := origWidth, origHeight

	if maxWidth <= 0 && maxHeight <= 0 {
		return width, height
	}

	if !maintainAspect {
		if maxWidth > 0 && width > maxWidth {
			width = maxWidth
		}
		if maxHeight > 0 && height > maxHeight {
			height = maxHeight
		}
		return width, height
	}

	aspect := float64(origWidth) / float64(origHeight)

	if maxWidth > 0 && width > maxWidth {
		width = maxWidth
		height = int(float64(width)/aspect + 0.5)
	}
	if maxHeight > 0 && height > maxHeight {
		height = maxHeight
		width = int(float64(height)*aspect + 0.5)
	}

	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return width, height
}

func encodeImage(img image.Image, format string, quality float64) ([]byte, error) {
	if quality <= 0 || quality > 1 {
		quality = 0.8
	}

	var buf bytes.Buffer
	switch format {
	case domain.FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: int(quality * 100)}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case domain.FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case domain.FormatWebP:
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality * 100)}); err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported target format: %s", format)
	}
	return buf.Bytes(), nil
}

func replaceExtension(name, format string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	return name + "." + format
}

// ImageMetadata summarizes an image for compression recommendations
type ImageMetadata struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	Megapixels  float64 `json:"megapixels"`
	Format      string  `json:"format"`
}

// Metadata inspects an image header without decoding the full pixel data
func (t *ImageTransformer) Metadata(file domain.SourceFile) (*ImageMetadata, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(file.Data))
	if err != nil {
		return nil, errors.TransformFailed(file.Name, fmt.Errorf("decode image config: %w", err))
	}

	meta := &ImageMetadata{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Megapixels: float64(cfg.Width) * float64(cfg.Height) / 1e6,
		Format:     format,
	}
	if cfg.Height > 0 {
		meta.AspectRatio = float64(cfg.Width) / float64(cfg.Height)
	}
	return meta, nil
}
