package transformer

import (
	"context"

	"github.com/shrinkray/compression-backend/internal/compression/domain"
)

// Transformer defines the interface for per-category file compression.
// Implementations can be swapped in without changing the engine or
// handler layer.
type Transformer interface {
	// CanTransform returns true if this transformer handles the given category
	CanTransform(category domain.FileCategory) bool

	// Compress produces a smaller rendition of the file. Implementations
	// must report progress as a percentage in [0,100], non-decreasing,
	// ending at exactly 100 on success.
	Compress(ctx context.Context, file domain.SourceFile, opts domain.Options, onProgress domain.ProgressFunc) (*domain.SourceFile, error)

	// Name returns the transformer name for logging
	Name() string
}

// Registry holds all registered transformers and dispatches to the right one
type Registry struct {
	transformers []Transformer
}

// NewRegistry creates a new transformer registry
func NewRegistry(transformers ...Transformer) *Registry {
	return &Registry{transformers: transformers}
}

// FindTransformer returns the first transformer that can handle the given
// category, or nil when none is registered for it
func (r *Registry) FindTransformer(category domain.FileCategory) Transformer {
	for _, t := range r.transformers {
		if t.CanTransform(category) {
			return t
		}
	}
	return nil
}

func noopProgress(float64) {}

// progressOrNoop guards against a nil callback
func progressOrNoop(fn domain.ProgressFunc) domain.ProgressFunc {
	if fn == nil {
		return noopProgress
	}
	return fn
}
