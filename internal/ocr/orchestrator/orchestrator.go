package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shrinkray/compression-backend/internal/ocr/domain"
	"github.com/shrinkray/compression-backend/internal/ocr/pdfmerge"
	"github.com/shrinkray/compression-backend/internal/ocr/staging"
	"github.com/shrinkray/compression-backend/pkg/errors"
	"github.com/shrinkray/compression-backend/pkg/logger"
)

const (
	// Documents at or below this size skip chunking entirely
	singleShotLimit = 10 << 20

	keyPrefix = "ocr-chunks"

	// Abort once more than this many chunks failed and failures exceed
	// half of the attempts so far
	maxChunkFailures = 2

	previewLength = 500

	baseChunkDelay   = 2 * time.Second
	chunkDelayJitter = time.Second
)

// Boundary is the remote OCR service as the orchestrator needs it
type Boundary interface {
	AnalyzeURL(ctx context.Context, documentURL, documentName string) (*domain.AnalysisResult, error)
	AnalyzeData(ctx context.Context, data []byte, documentName string) (*domain.AnalysisResult, error)
}

// Orchestrator runs OCR over one merged PDF. Small documents go to the
// boundary in a single call; large ones are split into page-range chunks
// that are staged, analyzed and stitched back together sequentially.
type Orchestrator struct {
	store     staging.Store
	boundary  Boundary
	signedTTL time.Duration
	log       *logger.Logger

	// seams for tests; production uses time.Sleep and pdfcpu
	sleep     func(time.Duration)
	pageCount func([]byte) (int, error)
	extract   func([]byte, int, int) ([]byte, error)
}

// NewOrchestrator creates an orchestrator using the given staging store
// and OCR boundary
func NewOrchestrator(store staging.Store, boundary Boundary, signedTTL time.Duration, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		boundary:  boundary,
		signedTTL: signedTTL,
		log:       log.WithComponent("ocr-orchestrator"),
		sleep:     time.Sleep,
		pageCount: pdfmerge.PageCount,
		extract:   pdfmerge.ExtractPageRange,
	}
}

// Analyze extracts text and images from a PDF
func (o *Orchestrator) Analyze(ctx context.Context, name string, data []byte) (*domain.Metadata, error) {
	if int64(len(data)) <= singleShotLimit {
		return o.analyzeSingleShot(ctx, name, data)
	}
	return o.analyzeChunked(ctx, name, data)
}

func (o *Orchestrator) analyzeSingleShot(ctx context.Context, name string, data []byte) (*domain.Metadata, error) {
	o.log.Info().Str("document", name).Int("bytes", len(data)).Msg("single-shot analysis")

	result, err := o.boundary.AnalyzeData(ctx, data, name)
	if err != nil {
		return nil, err
	}

	meta := &domain.Metadata{
		PageCount:  len(result.Pages),
		TotalWords: result.WordCount(),
		Language:   result.Language,
		Chunked:    false,
	}
	var text []string
	for _, page := range result.Pages {
		text = append(text, page.Text)
		meta.Images = append(meta.Images, page.Images...)
	}
	meta.HasImages = len(meta.Images) > 0
	meta.FullText = strings.Join(text, "\n\n")
	meta.ExtractedText = preview(meta.FullText)
	return meta, nil
}

func (o *Orchestrator) analyzeChunked(ctx context.Context, name string, data []byte) (*domain.Metadata, error) {
	pageCount, err := o.pageCount(data)
	if err != nil {
		return nil, err
	}

	chunkSize := chunkSizeFor(int64(len(data)))
	plan := planChunks(pageCount, chunkSize)
	o.log.Info().
		Str("document", name).
		Int("bytes", len(data)).
		Int("pages", pageCount).
		Int("chunk_size", chunkSize).
		Int("chunks", len(plan)).
		Msg("chunked analysis planned")

	meta := &domain.Metadata{PageCount: pageCount, Chunked: true}
	var texts []string
	attempted, failed, succeeded := 0, 0, 0

	for i, chunk := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 {
			o.sleep(baseChunkDelay + time.Duration(rand.Int63n(int64(chunkDelayJitter))))
		}

		attempted++
		result, err := o.processChunk(ctx, name, data, chunk, i)
		if err != nil {
			failed++
			o.log.Warn().Err(err).
				Int("chunk", i+1).
				Int("start_page", chunk.StartPage).
				Int("end_page", chunk.EndPage).
				Msg("chunk failed")

			if failed > maxChunkFailures && failed*2 > attempted {
				return nil, errors.ChunkingAborted(failed, attempted)
			}
			continue
		}

		succeeded++
		meta.TotalWords += result.WordCount()
		if meta.Language == "" {
			meta.Language = result.Language
		}

		var chunkText []string
		for _, page := range result.Pages {
			chunkText = append(chunkText, page.Text)
			for _, img := range page.Images {
				// rewrite to an absolute index against the original document
				img.PageIndex = (chunk.StartPage - 1) + img.PageIndex
				meta.Images = append(meta.Images, img)
			}
		}
		texts = append(texts, strings.Join(chunkText, "\n\n"))
	}

	if succeeded == 0 {
		return nil, fmt.Errorf("%w: all %d chunks failed", errors.ErrOcrBoundary, attempted)
	}

	meta.HasImages = len(meta.Images) > 0
	meta.FullText = strings.Join(texts, "\n\n")
	meta.ExtractedText = preview(meta.FullText)

	o.log.Info().
		Str("document", name).
		Int("succeeded", succeeded).
		Int("failed", failed).
		Int("words", meta.TotalWords).
		Msg("chunked analysis stitched")
	return meta, nil
}

// processChunk extracts a page range, stages it, analyzes it via a signed
// URL and cleans the staged object up on every path
func (o *Orchestrator) processChunk(ctx context.Context, name string, data []byte, chunk domain.ChunkRange, index int) (*domain.AnalysisResult, error) {
	chunkData, err := o.extract(data, chunk.StartPage, chunk.EndPage)
	if err != nil {
		return nil, err
	}

	key := staging.NewKey(keyPrefix)
	if err := o.store.PutObject(ctx, key, chunkData); err != nil {
		return nil, err
	}
	defer o.cleanup(ctx, key)

	url, err := o.store.SignedReadURL(ctx, key, o.signedTTL)
	if err != nil {
		return nil, err
	}

	chunkName := fmt.Sprintf("%s [pages %d-%d]", name, chunk.StartPage, chunk.EndPage)
	result, err := o.boundary.AnalyzeURL(ctx, url, chunkName)
	if err != nil {
		return nil, err
	}

	o.log.Debug().
		Int("chunk", index+1).
		Int("pages", len(result.Pages)).
		Msg("chunk analyzed")
	return result, nil
}

func (o *Orchestrator) cleanup(ctx context.Context, key string) {
	if err := o.store.DeleteObject(ctx, key); err != nil {
		o.log.Warn().Err(err).Str("key", key).Msg("failed to delete staged object")
	}
}

// chunkSizeFor picks pages per chunk from the document's size in MB
func chunkSizeFor(sizeBytes int64) int {
	mb := float64(sizeBytes) / (1 << 20)
	switch {
	case mb > 30:
		return 2
	case mb > 20:
		return 3
	case mb > 10:
		return 4
	default:
		return 5
	}
}

// planChunks partitions [1,pageCount] into contiguous, non-overlapping
// ranges of chunkSize pages, the last possibly shorter
func planChunks(pageCount, chunkSize int) []domain.ChunkRange {
	if pageCount <= 0 || chunkSize <= 0 {
		return nil
	}

	plan := make([]domain.ChunkRange, 0, (pageCount+chunkSize-1)/chunkSize)
	for start := 1; start <= pageCount; start += chunkSize {
		end := start + chunkSize - 1
		if end > pageCount {
			end = pageCount
		}
		plan = append(plan, domain.ChunkRange{StartPage: start, EndPage: end})
	}
	return plan
}

// preview truncates to previewLength bytes, backing off so a multi-byte
// rune is never cut in half
func preview(text string) string {
	if len(text) <= previewLength {
		return text
	}
	n := previewLength
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}
