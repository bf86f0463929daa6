package engine

import (
	"context"
	"time"

	"github.com/shrinkray/compression-backend/internal/compression/domain"
	"github.com/shrinkray/compression-backend/internal/compression/filetype"
	"github.com/shrinkray/compression-backend/internal/compression/transformer"
	"github.com/shrinkray/compression-backend/pkg/errors"
	"github.com/shrinkray/compression-backend/pkg/logger"
)

// Notifier publishes compression lifecycle events. Implementations must not
// block the compression loop.
type Notifier interface {
	FileCompressed(ctx context.Context, result domain.CompressedResult)
	FileFailed(ctx context.Context, jobID, fileName string, category domain.FileCategory, reason string)
	BatchCompleted(ctx context.Context, jobID string, total, succeeded int, combined, analyzed bool)
}

// HistoryRecorder persists per-file compression outcomes for reporting
type HistoryRecorder interface {
	Record(ctx context.Context, result domain.CompressedResult) error
}

// DocumentPipeline merges compressed PDFs and runs OCR on the merged
// document. The engine treats pipeline failures as warnings on the job,
// never as batch failures.
type DocumentPipeline interface {
	Combine(ctx context.Context, files []domain.SourceFile, outputName string) (*domain.SourceFile, error)
	AnalyzeDocument(ctx context.Context, doc domain.SourceFile) (any, error)
}

// Engine routes files to transformers by category and tracks batch jobs
type Engine struct {
	registry *transformer.Registry
	jobs     *JobStore
	pipeline DocumentPipeline
	notifier Notifier
	history  HistoryRecorder
	log      *logger.Logger
}

// NewEngine creates a compression engine. pipeline, notifier and history
// may be nil.
func NewEngine(registry *transformer.Registry, jobs *JobStore, pipeline DocumentPipeline, notifier Notifier, history HistoryRecorder, log *logger.Logger) *Engine {
	return &Engine{
		registry: registry,
		jobs:     jobs,
		pipeline: pipeline,
		notifier: notifier,
		history:  history,
		log:      log.WithComponent("compression-engine"),
	}
}

// CompressFile compresses a single file. Failures are captured in the
// result rather than returned, so batch callers keep going.
func (e *Engine) CompressFile(ctx context.Context, jobID string, file domain.SourceFile, opts domain.Options, onProgress domain.ProgressFunc) domain.CompressedResult {
	started := time.Now()
	result := domain.CompressedResult{
		Original: file,
		JobID:    jobID,
	}

	category, supported := filetype.DetectCategory(file.Name, file.ContentType)
	result.Category = category
	if !supported {
		result.Error = errors.UnsupportedFile(file.Name).Message
		result.Duration = time.Since(started)
		e.notifyFailure(ctx, result)
		return result
	}

	tr := e.registry.FindTransformer(category)
	if tr == nil {
		result.Error = errors.UnsupportedFile(file.Name).Message
		result.Duration = time.Since(started)
		e.notifyFailure(ctx, result)
		return result
	}

	compressed, err := tr.Compress(ctx, file, opts, onProgress)
	result.Duration = time.Since(started)
	if err != nil {
		result.Error = err.Error()
		e.log.Error().Err(err).
			Str("file", file.Name).
			Str("category", string(category)).
			Str("transformer", tr.Name()).
			Msg("compression failed")
		e.notifyFailure(ctx, result)
		return result
	}

	result.Compressed = compressed
	result.Success = true
	result.Reduction = domain.ComputeReduction(file.Size, compressed.Size)
	if annotator, ok := tr.(interface{ Note(domain.FileCategory) string }); ok {
		result.Note = annotator.Note(category)
	}

	e.log.Info().
		Str("file", file.Name).
		Str("category", string(category)).
		Int64("original_size", file.Size).
		Int64("compressed_size", compressed.Size).
		Float64("reduction", result.Reduction).
		Dur("duration", result.Duration).
		Msg("file compressed")

	if e.notifier != nil {
		e.notifier.FileCompressed(ctx, result)
	}
	if e.history != nil {
		if err := e.history.Record(ctx, result); err != nil {
			e.log.Warn().Err(err).Str("file", file.Name).Msg("failed to record compression history")
		}
	}
	return result
}

// CompressFiles compresses a batch in input order. A failed file yields a
// failed result and the batch keeps going; the returned error is non-nil
// only when the context is cancelled at a file boundary.
func (e *Engine) CompressFiles(ctx context.Context, jobID string, files []domain.SourceFile, opts domain.Options, onProgress domain.BatchProgressFunc) ([]domain.CompressedResult, error) {
	total := len(files)
	results := make([]domain.CompressedResult, 0, total)

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		category, _ := filetype.DetectCategory(file.Name, file.ContentType)
		index, name := i, file.Name
		fileProgress := func(percent float64) {
			if onProgress != nil {
				batchPercent := (float64(index) + percent/100) / float64(total) * 100
				onProgress(batchPercent, index, name, category)
			}
		}

		results = append(results, e.CompressFile(ctx, jobID, file, opts, fileProgress))
	}

	if onProgress != nil && total > 0 {
		last := total - 1
		onProgress(100, last, files[last].Name, results[last].Category)
	}
	return results, nil
}

// StartBatch registers a job and compresses the batch in the background.
// The returned job snapshot carries the ID clients poll with.
func (e *Engine) StartBatch(files []domain.SourceFile, opts domain.BatchOptions) (*domain.Job, error) {
	if len(files) == 0 {
		return nil, errors.BadRequest("no files provided")
	}
	if (opts.Combine || opts.Analyze) && e.pipeline == nil {
		return nil, errors.NotConfigured("document pipeline")
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := e.jobs.Create(len(files), cancel)

	go e.runBatch(ctx, job.ID, files, opts)

	return &job, nil
}

func (e *Engine) runBatch(ctx context.Context, jobID string, files []domain.SourceFile, opts domain.BatchOptions) {
	started := time.Now()
	log := e.log.WithJobID(jobID)
	log.Info().Int("files", len(files)).Msg("batch started")

	onProgress := func(percent float64, _ int, fileName string, _ domain.FileCategory) {
		e.jobs.Update(jobID, func(job *domain.Job) {
			if percent > job.Progress {
				job.Progress = percent
			}
			job.CurrentFile = fileName
		})
	}

	results, err := e.CompressFiles(ctx, jobID, files, opts.Options, onProgress)

	e.jobs.Update(jobID, func(job *domain.Job) {
		job.Results = results
	})

	if err != nil {
		log.Info().Int("completed", len(results)).Msg("batch cancelled")
		e.jobs.Finish(jobID, domain.StatusCancelled, "cancelled")
		return
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}

	combined, analyzed := e.runPipeline(ctx, jobID, results, opts)

	e.jobs.Update(jobID, func(job *domain.Job) {
		job.Progress = 100
	})
	e.jobs.Finish(jobID, domain.StatusCompleted, "")

	log.Info().
		Int("files", len(files)).
		Int("succeeded", succeeded).
		Bool("combined", combined).
		Bool("analyzed", analyzed).
		Dur("duration", time.Since(started)).
		Msg("batch completed")

	if e.notifier != nil {
		e.notifier.BatchCompleted(context.Background(), jobID, len(files), succeeded, combined, analyzed)
	}
}

// runPipeline merges and optionally analyzes the batch's compressed PDFs.
// Analyze implies Combine. Failures surface as job warnings.
func (e *Engine) runPipeline(ctx context.Context, jobID string, results []domain.CompressedResult, opts domain.BatchOptions) (combined, analyzed bool) {
	if e.pipeline == nil || (!opts.Combine && !opts.Analyze) {
		return false, false
	}
	log := e.log.WithJobID(jobID)

	pdfs := make([]domain.SourceFile, 0, len(results))
	for _, r := range results {
		if r.Success && r.Category == domain.CategoryPDF && r.Compressed != nil {
			pdfs = append(pdfs, *r.Compressed)
		}
	}
	if len(pdfs) == 0 {
		e.addWarning(jobID, "no compressed PDFs to combine")
		return false, false
	}

	outputName := opts.OutputName
	if outputName == "" {
		outputName = "combined.pdf"
	}

	merged, err := e.pipeline.Combine(ctx, pdfs, outputName)
	if err != nil {
		log.Error().Err(err).Msg("combine failed")
		e.addWarning(jobID, "combine failed: "+err.Error())
		return false, false
	}
	e.jobs.Update(jobID, func(job *domain.Job) {
		job.Combined = merged
	})
	combined = true

	if !opts.Analyze {
		return combined, false
	}

	analysis, err := e.pipeline.AnalyzeDocument(ctx, *merged)
	if err != nil {
		log.Error().Err(err).Msg("document analysis failed")
		e.addWarning(jobID, "document analysis failed: "+err.Error())
		return combined, false
	}
	e.jobs.Update(jobID, func(job *domain.Job) {
		job.DocumentAnalysis = analysis
	})
	return combined, true
}

func (e *Engine) addWarning(jobID, warning string) {
	e.jobs.Update(jobID, func(job *domain.Job) {
		job.Warnings = append(job.Warnings, warning)
	})
}

// GetJob returns a snapshot of a batch job
func (e *Engine) GetJob(jobID string) (*domain.Job, error) {
	return e.jobs.Get(jobID)
}

// CancelJob requests cancellation of a running batch. The batch stops at
// the next file boundary.
func (e *Engine) CancelJob(jobID string) error {
	return e.jobs.Cancel(jobID)
}

func (e *Engine) notifyFailure(ctx context.Context, result domain.CompressedResult) {
	if e.notifier != nil {
		e.notifier.FileFailed(ctx, result.JobID, result.Original.Name, result.Category, result.Error)
	}
	if e.history != nil {
		if err := e.history.Record(ctx, result); err != nil {
			e.log.Warn().Err(err).Str("file", result.Original.Name).Msg("failed to record compression history")
		}
	}
}
