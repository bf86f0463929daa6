package ocr

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	compression "github.com/shrinkray/compression-backend/internal/compression/domain"
	"github.com/shrinkray/compression-backend/internal/ocr/domain"
	"github.com/shrinkray/compression-backend/internal/ocr/orchestrator"
	"github.com/shrinkray/compression-backend/internal/ocr/pdfmerge"
	"github.com/shrinkray/compression-backend/internal/ocr/staging"
	"github.com/shrinkray/compression-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePDF(t *testing.T, pages int) []byte {
	t.Helper()
	doc := fpdf.New("P", "pt", "A4", "")
	for i := 0; i < pages; i++ {
		doc.AddPage()
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

type singleShotBoundary struct {
	result *domain.AnalysisResult
}

func (b *singleShotBoundary) AnalyzeURL(context.Context, string, string) (*domain.AnalysisResult, error) {
	return b.result, nil
}

func (b *singleShotBoundary) AnalyzeData(context.Context, []byte, string) (*domain.AnalysisResult, error) {
	return b.result, nil
}

type capturingNotifier struct {
	documentName string
	meta         *domain.Metadata
}

func (n *capturingNotifier) DocumentAnalyzed(_ context.Context, documentName string, meta *domain.Metadata) {
	n.documentName = documentName
	n.meta = meta
}

func newTestPipeline(notifier Notifier) *Pipeline {
	log := logger.New("test", "development")
	boundary := &singleShotBoundary{result: &domain.AnalysisResult{
		Language: "en",
		Pages:    []domain.Page{{Index: 0, Text: "hello merged world"}},
	}}
	orch := orchestrator.NewOrchestrator(staging.NewMemory(), boundary, 15*time.Minute, log)
	return NewPipeline(orch, notifier, log)
}

func TestPipeline_CombineSkipsBadFiles(t *testing.T) {
	p := newTestPipeline(nil)

	files := []compression.SourceFile{
		compression.NewSourceFile("a.pdf", "application/pdf", makePDF(t, 2)),
		compression.NewSourceFile("junk.pdf", "application/pdf", []byte("not a pdf")),
		compression.NewSourceFile("b.pdf", "application/pdf", makePDF(t, 1)),
	}

	out, err := p.Combine(context.Background(), files, "combined.pdf")
	require.NoError(t, err)
	assert.Equal(t, "combined.pdf", out.Name)

	pages, err := pdfmerge.PageCount(out.Data)
	require.NoError(t, err)
	assert.Equal(t, 3, pages, "bad file skipped, good files merged")
}

func TestPipeline_CombineAllBadFails(t *testing.T) {
	p := newTestPipeline(nil)

	files := []compression.SourceFile{
		compression.NewSourceFile("junk.pdf", "application/pdf", []byte("nope")),
	}

	_, err := p.Combine(context.Background(), files, "combined.pdf")
	assert.Error(t, err)
}

func TestPipeline_AnalyzeDocumentNotifies(t *testing.T) {
	notifier := &capturingNotifier{}
	p := newTestPipeline(notifier)

	doc := compression.NewSourceFile("combined.pdf", "application/pdf", makePDF(t, 1))
	result, err := p.AnalyzeDocument(context.Background(), doc)
	require.NoError(t, err)

	meta, ok := result.(*domain.Metadata)
	require.True(t, ok)
	assert.Equal(t, 3, meta.TotalWords)
	assert.Equal(t, "en", meta.Language)

	assert.Equal(t, "combined.pdf", notifier.documentName)
	require.NotNil(t, notifier.meta)
}
