package domain

import "time"

// FileCategory routes a file to its transformer
type FileCategory string

const (
	CategoryPDF      FileCategory = "pdf"
	CategoryImage    FileCategory = "image"
	CategoryText     FileCategory = "text"
	CategoryDocument FileCategory = "document"
	CategoryVideo    FileCategory = "video"
	CategoryAudio    FileCategory = "audio"
	CategoryArchive  FileCategory = "archive"
)

// AllCategories lists every known category in a stable order
func AllCategories() []FileCategory {
	return []FileCategory{
		CategoryPDF, CategoryImage, CategoryText,
		CategoryDocument, CategoryVideo, CategoryAudio, CategoryArchive,
	}
}

// SourceFile is an immutable input or produced file
type SourceFile struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// NewSourceFile builds a SourceFile with the size cached from its content
func NewSourceFile(name, contentType string, data []byte) SourceFile {
	return SourceFile{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentType,
		Data:        data,
	}
}

// ImageFormat names for the image transformer output
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// Text compression methods
const (
	MethodOptimize = "optimize"
	MethodMinify   = "minify"
	MethodGzip     = "gzip"
)

// PDFOptions configures PDF rasterization
type PDFOptions struct {
	Quality int `json:"quality" validate:"gte=1,lte=100"`
	DPI     int `json:"dpi" validate:"gte=72,lte=300"`
}

// ImageOptions configures image re-encoding
type ImageOptions struct {
	Quality             float64 `json:"quality" validate:"gt=0,lte=1"`
	Format              string  `json:"format" validate:"oneof=jpeg png webp"`
	MaxWidth            int     `json:"max_width" validate:"gte=0"`
	MaxHeight           int     `json:"max_height" validate:"gte=0"`
	MaintainAspectRatio bool    `json:"maintain_aspect_ratio"`
}

// TextOptions configures text minification/optimization
type TextOptions struct {
	Method                string `json:"method" validate:"oneof=optimize minify gzip"`
	RemoveComments        bool   `json:"remove_comments"`
	RemoveExtraWhitespace bool   `json:"remove_extra_whitespace"`
	RemoveEmptyLines      bool   `json:"remove_empty_lines"`
}

// Options is the per-batch configuration bag, looked up by category
type Options struct {
	PDF   PDFOptions   `json:"pdf"`
	Image ImageOptions `json:"image"`
	Text  TextOptions  `json:"text"`
}

// DefaultOptions returns the defaults used when the caller supplies none
func DefaultOptions() Options {
	return Options{
		PDF: PDFOptions{Quality: 50, DPI: 150},
		Image: ImageOptions{
			Quality:             0.8,
			Format:              FormatJPEG,
			MaintainAspectRatio: true,
		},
		Text: TextOptions{
			Method:                MethodOptimize,
			RemoveComments:        true,
			RemoveExtraWhitespace: true,
			RemoveEmptyLines:      true,
		},
	}
}

// ProgressFunc receives a single file's progress as a percentage in [0,100]
type ProgressFunc func(percent float64)

// BatchProgressFunc receives overall batch progress plus the active file
type BatchProgressFunc func(percent float64, index int, fileName string, category FileCategory)

// CompressedResult is the per-file outcome record. Sizes are cached at
// creation so the reduction is computable without re-reading file bytes.
type CompressedResult struct {
	Original   SourceFile    `json:"original"`
	Compressed *SourceFile   `json:"compressed,omitempty"`
	Reduction  float64       `json:"reduction"`
	Category   FileCategory  `json:"category"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
	Note       string        `json:"note,omitempty"`
	JobID      string        `json:"job_id"`
	Duration   time.Duration `json:"duration"`
}

// ComputeReduction computes the user-facing reduction percentage
func ComputeReduction(originalSize, compressedSize int64) float64 {
	if originalSize == 0 {
		return 0
	}
	return float64(originalSize-compressedSize) / float64(originalSize) * 100
}

// JobStatus represents the processing state of a compression job
type JobStatus string

const (
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

// BatchOptions configures one compression batch. Combine merges the
// compressed PDFs into a single document; Analyze additionally runs OCR on
// the merged document and implies Combine.
type BatchOptions struct {
	Options
	Combine    bool   `json:"combine"`
	Analyze    bool   `json:"analyze"`
	OutputName string `json:"output_name"`
}

// DefaultBatchOptions returns a plain compress-only batch configuration
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{Options: DefaultOptions()}
}

// Job tracks an asynchronous compression batch for later inspection. Jobs
// live only in the engine's in-memory registry and are never persisted.
type Job struct {
	ID               string             `json:"id"`
	Status           JobStatus          `json:"status"`
	Progress         float64            `json:"progress"`
	TotalFiles       int                `json:"total_files"`
	CurrentFile      string             `json:"current_file,omitempty"`
	Results          []CompressedResult `json:"results,omitempty"`
	Combined         *SourceFile        `json:"combined,omitempty"`
	DocumentAnalysis any                `json:"document_analysis,omitempty"`
	Warnings         []string           `json:"warnings,omitempty"`
	Error            string             `json:"error,omitempty"`
	StartedAt        time.Time          `json:"started_at"`
	Duration         time.Duration      `json:"duration"`
}
