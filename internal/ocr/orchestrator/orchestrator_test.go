package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shrinkray/compression-backend/internal/ocr/domain"
	"github.com/shrinkray/compression-backend/internal/ocr/staging"
	"github.com/shrinkray/compression-backend/pkg/errors"
	"github.com/shrinkray/compression-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBoundary struct {
	urlCalls  int
	dataCalls int

	// analyzeURL is invoked per chunk with a 1-based call number
	analyzeURL func(call int, url, name string) (*domain.AnalysisResult, error)
	dataResult *domain.AnalysisResult
}

func (f *fakeBoundary) AnalyzeURL(_ context.Context, url, name string) (*domain.AnalysisResult, error) {
	f.urlCalls++
	return f.analyzeURL(f.urlCalls, url, name)
}

func (f *fakeBoundary) AnalyzeData(context.Context, []byte, string) (*domain.AnalysisResult, error) {
	f.dataCalls++
	if f.dataResult == nil {
		return nil, fmt.Errorf("no single-shot result configured")
	}
	return f.dataResult, nil
}

// newTestOrchestrator returns an orchestrator with instant sleeps and fake
// pdf plumbing: page counting and extraction never touch real PDF bytes
func newTestOrchestrator(store staging.Store, boundary Boundary, pages int) *Orchestrator {
	o := NewOrchestrator(store, boundary, 15*time.Minute, logger.New("test", "development"))
	o.sleep = func(time.Duration) {}
	o.pageCount = func([]byte) (int, error) { return pages, nil }
	o.extract = func(_ []byte, start, end int) ([]byte, error) {
		return []byte(fmt.Sprintf("chunk-%d-%d", start, end)), nil
	}
	return o
}

func chunkResult(pagesInChunk int, language string) *domain.AnalysisResult {
	result := &domain.AnalysisResult{Language: language}
	for i := 0; i < pagesInChunk; i++ {
		result.Pages = append(result.Pages, domain.Page{
			Index: i,
			Text:  fmt.Sprintf("page text %d", i),
			Images: []domain.PageImage{
				{PageIndex: i, ID: fmt.Sprintf("img-%d", i), Data: "aGVsbG8=", Width: 10, Height: 10},
			},
		})
	}
	return result
}

func TestChunkSizeFor(t *testing.T) {
	tests := []struct {
		sizeMB float64
		want   int
	}{
		{5, 5},
		{10, 5},
		{10.5, 4},
		{20, 4},
		{25, 3},
		{30, 3},
		{31, 2},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.1fMB", tt.sizeMB), func(t *testing.T) {
			assert.Equal(t, tt.want, chunkSizeFor(int64(tt.sizeMB*(1<<20))))
		})
	}
}

func TestPlanChunksPartitionsExactly(t *testing.T) {
	for _, tt := range []struct {
		pages, size, wantChunks int
	}{
		{40, 3, 14},
		{40, 5, 8},
		{1, 5, 1},
		{10, 2, 5},
		{11, 4, 3},
	} {
		t.Run(fmt.Sprintf("%dpages_%dper", tt.pages, tt.size), func(t *testing.T) {
			plan := planChunks(tt.pages, tt.size)
			require.Len(t, plan, tt.wantChunks)

			assert.Equal(t, 1, plan[0].StartPage)
			assert.Equal(t, tt.pages, plan[len(plan)-1].EndPage)
			covered := 0
			for i, chunk := range plan {
				require.LessOrEqual(t, chunk.StartPage, chunk.EndPage)
				assert.LessOrEqual(t, chunk.Pages(), tt.size)
				if i > 0 {
					assert.Equal(t, plan[i-1].EndPage+1, chunk.StartPage)
				}
				covered += chunk.Pages()
			}
			assert.Equal(t, tt.pages, covered)
		})
	}
}

func TestPlanChunksDegenerate(t *testing.T) {
	assert.Nil(t, planChunks(0, 5))
	assert.Nil(t, planChunks(10, 0))
}

func TestOrchestrator_SingleShot(t *testing.T) {
	store := staging.NewMemory()
	boundary := &fakeBoundary{dataResult: chunkResult(2, "en")}
	o := newTestOrchestrator(store, boundary, 2)

	meta, err := o.Analyze(context.Background(), "small.pdf", []byte("%PDF-small"))
	require.NoError(t, err)

	assert.False(t, meta.Chunked)
	assert.Equal(t, 2, meta.PageCount)
	assert.Equal(t, "en", meta.Language)
	assert.Equal(t, 6, meta.TotalWords)
	assert.True(t, meta.HasImages)
	assert.Equal(t, 1, boundary.dataCalls)
	assert.Zero(t, boundary.urlCalls)
	assert.Zero(t, store.Len(), "single-shot must not stage anything")
}

func largeDoc() []byte {
	return make([]byte, 11<<20)
}

func TestOrchestrator_ChunkedStitch(t *testing.T) {
	store := staging.NewMemory()
	boundary := &fakeBoundary{
		analyzeURL: func(call int, _, _ string) (*domain.AnalysisResult, error) {
			return chunkResult(4, fmt.Sprintf("lang-%d", call)), nil
		},
	}
	// 11MB -> 4 pages per chunk; 10 pages -> chunks 1-4, 5-8, 9-10
	o := newTestOrchestrator(store, boundary, 10)

	meta, err := o.Analyze(context.Background(), "big.pdf", largeDoc())
	require.NoError(t, err)

	assert.True(t, meta.Chunked)
	assert.Equal(t, 10, meta.PageCount, "page count stays the original document's")
	assert.Equal(t, 3, boundary.urlCalls)
	assert.Equal(t, "lang-1", meta.Language, "first successful chunk wins")
	assert.Equal(t, 3*4*3, meta.TotalWords)
	assert.True(t, meta.HasImages)
	assert.Zero(t, store.Len(), "all staged chunks cleaned up")

	// image indices rewritten with each chunk's page offset
	require.Len(t, meta.Images, 12)
	assert.Equal(t, 0, meta.Images[0].PageIndex)
	assert.Equal(t, 3, meta.Images[3].PageIndex)
	assert.Equal(t, 4, meta.Images[4].PageIndex, "chunk 2 starts at page 5, offset 4")
	assert.Equal(t, 8, meta.Images[8].PageIndex, "chunk 3 starts at page 9, offset 8")
	for i := 1; i < len(meta.Images); i++ {
		assert.GreaterOrEqual(t, meta.Images[i].PageIndex, meta.Images[i-1].PageIndex)
	}
}

func TestOrchestrator_ChunkFailuresTolerated(t *testing.T) {
	store := staging.NewMemory()
	boundary := &fakeBoundary{
		analyzeURL: func(call int, _, _ string) (*domain.AnalysisResult, error) {
			if call == 2 {
				return nil, errors.OcrBoundaryFailed(500, "server error")
			}
			return chunkResult(4, "en"), nil
		},
	}
	o := newTestOrchestrator(store, boundary, 10)

	meta, err := o.Analyze(context.Background(), "big.pdf", largeDoc())
	require.NoError(t, err)

	assert.Equal(t, 3, boundary.urlCalls, "failed chunk is skipped, not retried")
	assert.Equal(t, 2*4*3, meta.TotalWords)
	assert.Zero(t, store.Len())
}

func TestOrchestrator_AbortThreshold(t *testing.T) {
	store := staging.NewMemory()
	boundary := &fakeBoundary{
		analyzeURL: func(call int, _, _ string) (*domain.AnalysisResult, error) {
			if call == 1 {
				return chunkResult(2, "en"), nil
			}
			return nil, errors.OcrBoundaryFailed(429, "rate limited")
		},
	}
	// 40 pages at 2 per chunk -> 20 chunks planned; failures at chunks
	// 2,3,4 trip the abort rule at chunk 4 (3 failed > 2, 3/4 > 50%)
	o := newTestOrchestrator(store, boundary, 40)
	o.pageCount = func([]byte) (int, error) { return 40, nil }

	_, err := o.Analyze(context.Background(), "big.pdf", make([]byte, 31<<20))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrChunkingAborted)
	assert.Equal(t, 4, boundary.urlCalls, "remaining chunks never attempted")
}

func TestOrchestrator_AllChunksFailed(t *testing.T) {
	store := staging.NewMemory()
	boundary := &fakeBoundary{
		analyzeURL: func(int, string, string) (*domain.AnalysisResult, error) {
			return nil, errors.OcrBoundaryFailed(500, "down")
		},
	}
	// 8 pages at 4 per chunk -> 2 chunks; 2 failures stay under the
	// abort threshold, so the zero-success check fires instead
	o := newTestOrchestrator(store, boundary, 8)

	_, err := o.Analyze(context.Background(), "big.pdf", largeDoc())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrOcrBoundary)
}

func TestOrchestrator_CancelledBetweenChunks(t *testing.T) {
	store := staging.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	boundary := &fakeBoundary{
		analyzeURL: func(call int, _, _ string) (*domain.AnalysisResult, error) {
			cancel()
			return chunkResult(4, "en"), nil
		},
	}
	o := newTestOrchestrator(store, boundary, 10)

	_, err := o.Analyze(ctx, "big.pdf", largeDoc())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, boundary.urlCalls)
}

func TestPreview(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "hello", preview("hello"))
	})

	t.Run("ascii truncated at limit", func(t *testing.T) {
		long := strings.Repeat("a", previewLength+100)
		assert.Len(t, preview(long), previewLength)
	})

	t.Run("multi-byte rune never split", func(t *testing.T) {
		// 3-byte runes; the byte limit lands mid-rune and must back off
		long := strings.Repeat("日", 200)
		got := preview(long)
		assert.True(t, utf8.ValidString(got))
		assert.Len(t, got, previewLength-previewLength%3)
	})
}

func TestOrchestrator_StagedObjectCleanedUpOnFailure(t *testing.T) {
	store := staging.NewMemory()
	boundary := &fakeBoundary{
		analyzeURL: func(int, string, string) (*domain.AnalysisResult, error) {
			return nil, errors.OcrBoundaryFailed(500, "down")
		},
	}
	o := newTestOrchestrator(store, boundary, 4)
	// single chunk plan so the run fails outright
	o.pageCount = func([]byte) (int, error) { return 4, nil }

	_, err := o.Analyze(context.Background(), "big.pdf", largeDoc())
	require.Error(t, err)
	assert.Zero(t, store.Len())
}
