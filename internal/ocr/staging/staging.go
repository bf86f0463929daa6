package staging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is the temporary object-storage boundary used to hand documents
// to the OCR service via time-limited signed URLs. Objects are transient;
// callers delete them after use.
type Store interface {
	PutObject(ctx context.Context, key string, data []byte) error
	SignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// DeleteObject is best-effort; callers log failures and move on
	DeleteObject(ctx context.Context, key string) error
}

// NewKey generates a unique object key under the given prefix
func NewKey(prefix string) string {
	return fmt.Sprintf("%s/%d-%s.pdf", prefix, time.Now().UnixMilli(), uuid.New().String()[:8])
}
