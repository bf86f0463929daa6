package events

import (
	"context"

	"github.com/shrinkray/compression-backend/internal/compression/domain"
	ocrdomain "github.com/shrinkray/compression-backend/internal/ocr/domain"
	"github.com/shrinkray/compression-backend/pkg/logger"
	"github.com/shrinkray/compression-backend/pkg/messaging"
)

// CompressionEventPublisher publishes compression lifecycle events
type CompressionEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewCompressionEventPublisher creates a new compression event publisher
func NewCompressionEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*CompressionEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeCompressionEvents, "compression-service", log)
	if err != nil {
		return nil, err
	}

	return &CompressionEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// FileCompressed publishes a file compressed event
func (p *CompressionEventPublisher) FileCompressed(ctx context.Context, result domain.CompressedResult) {
	var compressedSize int64
	if result.Compressed != nil {
		compressedSize = result.Compressed.Size
	}

	data := messaging.FileCompressedEvent{
		JobID:          result.JobID,
		FileName:       result.Original.Name,
		Category:       string(result.Category),
		OriginalSize:   result.Original.Size,
		CompressedSize: compressedSize,
		Reduction:      result.Reduction,
		DurationMs:     result.Duration.Milliseconds(),
	}

	if err := p.publisher.Publish(ctx, messaging.EventFileCompressed, data); err != nil {
		p.logger.Error().Err(err).Str("file", result.Original.Name).Msg("failed to publish file compressed event")
	}
}

// FileFailed publishes a file failed event
func (p *CompressionEventPublisher) FileFailed(ctx context.Context, jobID, fileName string, category domain.FileCategory, reason string) {
	data := messaging.FileFailedEvent{
		JobID:    jobID,
		FileName: fileName,
		Category: string(category),
		Error:    reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventFileFailed, data); err != nil {
		p.logger.Error().Err(err).Str("file", fileName).Msg("failed to publish file failed event")
	}
}

// BatchCompleted publishes a batch completed event
func (p *CompressionEventPublisher) BatchCompleted(ctx context.Context, jobID string, total, succeeded int, combined, analyzed bool) {
	data := messaging.BatchCompletedEvent{
		BatchID:    jobID,
		TotalFiles: total,
		Succeeded:  succeeded,
		Failed:     total - succeeded,
		Combined:   combined,
		Analyzed:   analyzed,
	}

	if err := p.publisher.Publish(ctx, messaging.EventBatchCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to publish batch completed event")
	}
}

// DocumentAnalyzed publishes a document analyzed event
func (p *CompressionEventPublisher) DocumentAnalyzed(ctx context.Context, documentName string, meta *ocrdomain.Metadata) {
	data := messaging.DocumentAnalyzedEvent{
		DocumentName: documentName,
		PageCount:    meta.PageCount,
		TotalWords:   meta.TotalWords,
		Language:     meta.Language,
		ImageCount:   len(meta.Images),
		Chunked:      meta.Chunked,
	}

	if err := p.publisher.Publish(ctx, messaging.EventDocumentAnalyzed, data); err != nil {
		p.logger.Error().Err(err).Str("document", documentName).Msg("failed to publish document analyzed event")
	}
}
