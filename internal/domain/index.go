package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// indexKey is the single aggregate key holding the whole ledger.
	indexKey = "index"

	// MaxIndexEntries caps the persisted ledger. Oldest entries beyond the
	// cap are dropped on save, favoring recency over completeness.
	MaxIndexEntries = 1000
)

// Index is the index ledger: one ordered sequence of post summaries,
// newest-first, stored as a JSON array under a single key. Insertion order is
// the source of truth; entries are never re-sorted by timestamp.
//
// The load-modify-save cycle is deliberately unlocked. The backing store has
// no cross-key transactions, so concurrent writers racing on this one key
// follow last-writer-wins; the per-post record writes always land first, so a
// lost index update degrades to an unlisted-but-fetchable post or a dangling
// entry, never to lost data.
type Index struct {
	store KVStore
}

// NewIndex returns a ledger backed by store.
func NewIndex(store KVStore) *Index {
	return &Index{store: store}
}

// Load reads the persisted ledger. An absent index key and an empty index are
// equivalent: both return an empty slice.
func (ix *Index) Load(ctx context.Context) ([]IndexEntry, error) {
	raw, ok, err := ix.store.Get(ctx, indexKey)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	if !ok {
		return []IndexEntry{}, nil
	}

	var entries []IndexEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	if entries == nil {
		entries = []IndexEntry{}
	}
	return entries, nil
}

// Save overwrites the whole index key with entries, applying the retention
// cap first.
func (ix *Index) Save(ctx context.Context, entries []IndexEntry) error {
	entries = Cap(entries)

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := ix.store.Put(ctx, indexKey, raw, nil, 0); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

// Cap truncates entries to MaxIndexEntries, keeping the newest.
func Cap(entries []IndexEntry) []IndexEntry {
	if len(entries) > MaxIndexEntries {
		return entries[:MaxIndexEntries]
	}
	return entries
}

// InsertNewest prepends entry and applies the cap.
func InsertNewest(entries []IndexEntry, entry IndexEntry) []IndexEntry {
	next := make([]IndexEntry, 0, len(entries)+1)
	next = append(next, entry)
	next = append(next, entries...)
	return Cap(next)
}

// RemoveByID filters out any entry whose id matches. Removing an id that is
// not listed is a no-op, not an error.
func RemoveByID(entries []IndexEntry, id string) []IndexEntry {
	next := make([]IndexEntry, 0, len(entries))
	for _, e := range entries {
		if e.ID != id {
			next = append(next, e)
		}
	}
	return next
}

// FilterActive returns the read-time view of entries at now: entries with no
// expiry, or whose expiry is strictly in the future. It never mutates the
// persisted index; expiration is enforced by filtering, not pruning.
func FilterActive(entries []IndexEntry, now time.Time) []IndexEntry {
	active := make([]IndexEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Expired(now) {
			active = append(active, e)
		}
	}
	return active
}
