package ocr

import (
	"context"

	compression "github.com/shrinkray/compression-backend/internal/compression/domain"
	"github.com/shrinkray/compression-backend/internal/ocr/domain"
	"github.com/shrinkray/compression-backend/internal/ocr/orchestrator"
	"github.com/shrinkray/compression-backend/internal/ocr/pdfmerge"
	"github.com/shrinkray/compression-backend/pkg/errors"
	"github.com/shrinkray/compression-backend/pkg/logger"
)

// Notifier publishes document analysis events
type Notifier interface {
	DocumentAnalyzed(ctx context.Context, documentName string, meta *domain.Metadata)
}

// Pipeline merges compressed PDFs into one document and runs OCR over it.
// It is the post-compression stage of a batch job.
type Pipeline struct {
	orchestrator *orchestrator.Orchestrator
	notifier     Notifier
	log          *logger.Logger
}

// NewPipeline creates a document pipeline. notifier may be nil. orch may
// be nil when the OCR boundary is not configured; merging still works and
// analysis requests fail with a configuration error.
func NewPipeline(orch *orchestrator.Orchestrator, notifier Notifier, log *logger.Logger) *Pipeline {
	return &Pipeline{
		orchestrator: orch,
		notifier:     notifier,
		log:          log.WithComponent("document-pipeline"),
	}
}

// Combine appends every file's pages into one PDF in input order. A file
// that fails to append is skipped and logged; the merge fails only when
// no file could be appended.
func (p *Pipeline) Combine(ctx context.Context, files []compression.SourceFile, outputName string) (*compression.SourceFile, error) {
	doc := pdfmerge.NewDocument()
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := doc.AppendFile(file.Name, file.Data); err != nil {
			p.log.Warn().Err(err).Str("file", file.Name).Msg("skipping file in merge")
		}
	}

	data, err := doc.Finalize()
	if err != nil {
		return nil, err
	}

	p.log.Info().
		Int("files", doc.Files()).
		Int("pages", doc.PageCount()).
		Str("output", outputName).
		Msg("documents combined")

	out := compression.NewSourceFile(outputName, "application/pdf", data)
	return &out, nil
}

// AnalyzeDocument runs OCR over a combined document
func (p *Pipeline) AnalyzeDocument(ctx context.Context, doc compression.SourceFile) (any, error) {
	if p.orchestrator == nil {
		return nil, errors.NotConfigured("ocr boundary")
	}

	meta, err := p.orchestrator.Analyze(ctx, doc.Name, doc.Data)
	if err != nil {
		return nil, err
	}

	if p.notifier != nil {
		p.notifier.DocumentAnalyzed(ctx, doc.Name, meta)
	}
	return meta, nil
}
