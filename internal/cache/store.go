package cache

import (
	"context"
	"time"

	"github.com/lumen-labs/lumen-gateway/internal/types"
)

// Entry is a cached completion. Owned exclusively by the cache; evicted
// by TTL or capacity pressure.
type Entry struct {
	Fingerprint string      `json:"fingerprint"`
	Completion  string      `json:"completion"`
	Model       string      `json:"model"`
	Usage       types.Usage `json:"usage"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Store is the cache backend binding. Both implementations are
// last-write-wins for concurrent puts of the same fingerprint: entries
// are content-addressed, so equal fingerprints carry equivalent values.
type Store interface {
	Get(ctx context.Context, fingerprint string) (*Entry, bool)
	Put(ctx context.Context, entry *Entry)
}
