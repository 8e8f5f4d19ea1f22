package domain

import (
	"context"
	"time"
)

// KVStore is the backing key-value store contract. The store offers per-key
// operations only: there are no cross-key transactions, so callers sequence
// multi-key updates themselves and accept the inconsistency windows that
// implies.
type KVStore interface {
	// Get retrieves the value for key. The second return is false when the
	// key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// GetWithMetadata retrieves the value and its attached metadata document
	// in one call. Metadata may be nil even when the key exists.
	GetWithMetadata(ctx context.Context, key string) (value, meta []byte, ok bool, err error)

	// Put writes value and metadata under key in one call. A non-zero ttl
	// asks the backend to reclaim the key after that duration; backends
	// without native expiry may ignore it. Correctness never depends on it.
	Put(ctx context.Context, key string, value, meta []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// IndexNotifier receives index change events after a submit or remove has
// committed. Implementations must not block; the coordinator calls them
// synchronously on the request path.
type IndexNotifier interface {
	IndexChanged(ev IndexEvent)
}

// IndexEvent describes one committed change to the index ledger.
type IndexEvent struct {
	// Kind is "added" or "removed".
	Kind string `json:"kind"`

	// Entry is the affected summary. For removals only the ID is reliable;
	// the rest reflects what was in the index at removal time, if anything.
	Entry IndexEntry `json:"entry"`
}
