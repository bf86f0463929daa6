package transformer

import (
	"context"

	"github.com/shrinkray/compression-backend/internal/compression/domain"
)

var passthroughNotes = map[domain.FileCategory]string{
	domain.CategoryDocument: "document compression coming soon",
	domain.CategoryVideo:    "video compression coming soon",
	domain.CategoryAudio:    "audio compression coming soon",
	domain.CategoryArchive:  "archive optimization coming soon",
}

// Passthrough handles categories without real transformation logic. It
// returns the original file unchanged so batches mixing supported and
// not-yet-supported categories still produce a complete result set.
type Passthrough struct{}

// NewPassthrough creates the pass-through transformer
func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

func (p *Passthrough) Name() string { return "passthrough" }

func (p *Passthrough) CanTransform(category domain.FileCategory) bool {
	_, ok := passthroughNotes[category]
	return ok
}

func (p *Passthrough) Compress(ctx context.Context, file domain.SourceFile, _ domain.Options, onProgress domain.ProgressFunc) (*domain.SourceFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	progressOrNoop(onProgress)(100)
	out := file
	return &out, nil
}

// Note returns the user-facing explanation for a pass-through category
func (p *Passthrough) Note(category domain.FileCategory) string {
	return passthroughNotes[category]
}
