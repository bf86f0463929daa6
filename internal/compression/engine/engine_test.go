package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shrinkray/compression-backend/internal/compression/domain"
	"github.com/shrinkray/compression-backend/internal/compression/transformer"
	"github.com/shrinkray/compression-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTransformer struct {
	category domain.FileCategory
	compress func(ctx context.Context, file domain.SourceFile, onProgress domain.ProgressFunc) (*domain.SourceFile, error)
}

func (s *stubTransformer) Name() string { return "stub-" + string(s.category) }

func (s *stubTransformer) CanTransform(category domain.FileCategory) bool {
	return category == s.category
}

func (s *stubTransformer) Compress(ctx context.Context, file domain.SourceFile, _ domain.Options, onProgress domain.ProgressFunc) (*domain.SourceFile, error) {
	return s.compress(ctx, file, onProgress)
}

func halvingStub(category domain.FileCategory) *stubTransformer {
	return &stubTransformer{
		category: category,
		compress: func(_ context.Context, file domain.SourceFile, onProgress domain.ProgressFunc) (*domain.SourceFile, error) {
			if onProgress != nil {
				onProgress(50)
				onProgress(100)
			}
			out := domain.NewSourceFile(file.Name, file.ContentType, file.Data[:len(file.Data)/2])
			return &out, nil
		},
	}
}

func failingStub(category domain.FileCategory) *stubTransformer {
	return &stubTransformer{
		category: category,
		compress: func(context.Context, domain.SourceFile, domain.ProgressFunc) (*domain.SourceFile, error) {
			return nil, fmt.Errorf("boom")
		},
	}
}

func newTestEngine(t *testing.T, transformers ...transformer.Transformer) *Engine {
	t.Helper()
	jobs := NewJobStore()
	t.Cleanup(jobs.Close)
	return NewEngine(transformer.NewRegistry(transformers...), jobs, nil, nil, nil, logger.New("test", "development"))
}

func textFile(name string) domain.SourceFile {
	return domain.NewSourceFile(name, "text/plain", []byte("0123456789"))
}

func TestEngine_CompressFile(t *testing.T) {
	e := newTestEngine(t, halvingStub(domain.CategoryText))

	result := e.CompressFile(context.Background(), "job-1", textFile("a.txt"), domain.DefaultOptions(), nil)

	assert.True(t, result.Success)
	assert.Equal(t, domain.CategoryText, result.Category)
	assert.Equal(t, "job-1", result.JobID)
	require.NotNil(t, result.Compressed)
	assert.Equal(t, int64(5), result.Compressed.Size)
	assert.InDelta(t, 50.0, result.Reduction, 0.001)
	assert.Empty(t, result.Error)
}

func TestEngine_CompressFileUnsupported(t *testing.T) {
	e := newTestEngine(t, halvingStub(domain.CategoryText))

	result := e.CompressFile(context.Background(), "job-1",
		domain.NewSourceFile("blob.xyz", "application/octet-stream", []byte("data")),
		domain.DefaultOptions(), nil)

	assert.False(t, result.Success)
	assert.Nil(t, result.Compressed)
	assert.NotEmpty(t, result.Error)
}

func TestEngine_CompressFilesPreservesOrder(t *testing.T) {
	e := newTestEngine(t, halvingStub(domain.CategoryText), halvingStub(domain.CategoryImage))
	files := []domain.SourceFile{
		textFile("first.txt"),
		domain.NewSourceFile("second.png", "image/png", []byte("0123456789")),
		textFile("third.txt"),
	}

	results, err := e.CompressFiles(context.Background(), "job-1", files, domain.DefaultOptions(), nil)
	require.NoError(t, err)
	require.Len(t, results, len(files))

	for i, r := range results {
		assert.Equal(t, files[i].Name, r.Original.Name)
		assert.True(t, r.Success)
	}
}

func TestEngine_CompressFilesIsolatesFailures(t *testing.T) {
	e := newTestEngine(t, failingStub(domain.CategoryImage), halvingStub(domain.CategoryText))
	files := []domain.SourceFile{
		textFile("ok1.txt"),
		domain.NewSourceFile("bad.png", "image/png", []byte("0123456789")),
		textFile("ok2.txt"),
	}

	results, err := e.CompressFiles(context.Background(), "job-1", files, domain.DefaultOptions(), nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "boom")
	assert.True(t, results[2].Success)
}

func TestEngine_CompressFilesBatchProgress(t *testing.T) {
	e := newTestEngine(t, halvingStub(domain.CategoryText))
	files := []domain.SourceFile{textFile("a.txt"), textFile("b.txt")}

	var reported []float64
	_, err := e.CompressFiles(context.Background(), "job-1", files, domain.DefaultOptions(),
		func(percent float64, _ int, _ string, _ domain.FileCategory) {
			reported = append(reported, percent)
		})
	require.NoError(t, err)
	require.NotEmpty(t, reported)

	// file 0 at 50% -> 25% overall, file 1 at 50% -> 75% overall
	assert.Contains(t, reported, 25.0)
	assert.Contains(t, reported, 75.0)
	for i := 1; i < len(reported); i++ {
		assert.GreaterOrEqual(t, reported[i], reported[i-1])
	}
	assert.Equal(t, 100.0, reported[len(reported)-1])
}

func TestEngine_StartBatchCompletes(t *testing.T) {
	e := newTestEngine(t, halvingStub(domain.CategoryText))

	job, err := e.StartBatch([]domain.SourceFile{textFile("a.txt"), textFile("b.txt")}, domain.DefaultBatchOptions())
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, 2, job.TotalFiles)

	require.Eventually(t, func() bool {
		current, err := e.GetJob(job.ID)
		return err == nil && current.Status == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	final, err := e.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, final.Progress)
	assert.Len(t, final.Results, 2)
	assert.Positive(t, final.Duration)
}

func TestEngine_StartBatchRejectsEmpty(t *testing.T) {
	e := newTestEngine(t, halvingStub(domain.CategoryText))

	_, err := e.StartBatch(nil, domain.DefaultBatchOptions())
	assert.Error(t, err)
}

func TestEngine_CancelJob(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	blocking := &stubTransformer{
		category: domain.CategoryText,
		compress: func(ctx context.Context, file domain.SourceFile, _ domain.ProgressFunc) (*domain.SourceFile, error) {
			once.Do(func() { close(started) })
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	e := newTestEngine(t, blocking)

	job, err := e.StartBatch([]domain.SourceFile{textFile("a.txt"), textFile("b.txt")}, domain.DefaultBatchOptions())
	require.NoError(t, err)

	<-started
	require.NoError(t, e.CancelJob(job.ID))

	require.Eventually(t, func() bool {
		current, err := e.GetJob(job.ID)
		return err == nil && current.Status == domain.StatusCancelled
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEngine_GetJobUnknown(t *testing.T) {
	e := newTestEngine(t, halvingStub(domain.CategoryText))

	_, err := e.GetJob("missing")
	assert.Error(t, err)
	assert.Error(t, e.CancelJob("missing"))
}

type fakePipeline struct {
	combineErr error
	analyzeErr error
	combined   []domain.SourceFile
}

func (f *fakePipeline) Combine(_ context.Context, files []domain.SourceFile, outputName string) (*domain.SourceFile, error) {
	if f.combineErr != nil {
		return nil, f.combineErr
	}
	f.combined = files
	out := domain.NewSourceFile(outputName, "application/pdf", []byte("%PDF-merged"))
	return &out, nil
}

func (f *fakePipeline) AnalyzeDocument(context.Context, domain.SourceFile) (any, error) {
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	return map[string]int{"page_count": 3}, nil
}

func pdfFile(name string) domain.SourceFile {
	return domain.NewSourceFile(name, "application/pdf", []byte("0123456789"))
}

func newPipelineEngine(t *testing.T, pipeline DocumentPipeline) *Engine {
	t.Helper()
	jobs := NewJobStore()
	t.Cleanup(jobs.Close)
	registry := transformer.NewRegistry(halvingStub(domain.CategoryPDF), halvingStub(domain.CategoryText))
	return NewEngine(registry, jobs, pipeline, nil, nil, logger.New("test", "development"))
}

func TestEngine_StartBatchCombineAndAnalyze(t *testing.T) {
	pipeline := &fakePipeline{}
	e := newPipelineEngine(t, pipeline)

	opts := domain.DefaultBatchOptions()
	opts.Combine = true
	opts.Analyze = true
	opts.OutputName = "bundle.pdf"

	job, err := e.StartBatch([]domain.SourceFile{pdfFile("a.pdf"), textFile("notes.txt"), pdfFile("b.pdf")}, opts)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		current, err := e.GetJob(job.ID)
		return err == nil && current.Status == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	final, err := e.GetJob(job.ID)
	require.NoError(t, err)
	require.NotNil(t, final.Combined)
	assert.Equal(t, "bundle.pdf", final.Combined.Name)
	assert.NotNil(t, final.DocumentAnalysis)
	assert.Empty(t, final.Warnings)

	// only the PDFs reach the merger, text files stay out
	require.Len(t, pipeline.combined, 2)
	assert.Equal(t, "a.pdf", pipeline.combined[0].Name)
	assert.Equal(t, "b.pdf", pipeline.combined[1].Name)
}

func TestEngine_StartBatchCombineFailureIsWarning(t *testing.T) {
	e := newPipelineEngine(t, &fakePipeline{combineErr: fmt.Errorf("merge blew up")})

	opts := domain.DefaultBatchOptions()
	opts.Combine = true

	job, err := e.StartBatch([]domain.SourceFile{pdfFile("a.pdf")}, opts)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		current, err := e.GetJob(job.ID)
		return err == nil && current.Status == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	final, err := e.GetJob(job.ID)
	require.NoError(t, err)
	assert.Nil(t, final.Combined)
	require.NotEmpty(t, final.Warnings)
	assert.Contains(t, final.Warnings[0], "merge blew up")
}

func TestEngine_StartBatchCombineWithoutPipeline(t *testing.T) {
	e := newTestEngine(t, halvingStub(domain.CategoryText))

	opts := domain.DefaultBatchOptions()
	opts.Combine = true

	_, err := e.StartBatch([]domain.SourceFile{textFile("a.txt")}, opts)
	assert.Error(t, err)
}

func TestEngine_AnalyzeText(t *testing.T) {
	e := newTestEngine(t, transformer.NewTextTransformer(logger.New("test", "development")))

	analysis := e.Analyze(textFile("notes.txt"))

	assert.Equal(t, domain.CategoryText, analysis.Category)
	assert.True(t, analysis.Supported)
	assert.NotNil(t, analysis.Metadata)
	assert.NotEmpty(t, analysis.Recommendations)
}

func TestEngine_AnalyzeUnsupported(t *testing.T) {
	e := newTestEngine(t)

	analysis := e.Analyze(domain.NewSourceFile("blob.xyz", "application/octet-stream", []byte("x")))

	assert.False(t, analysis.Supported)
	assert.NotEmpty(t, analysis.Recommendations)
}
