package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// postKeyPrefix namespaces per-post keys in the backing store.
const postKeyPrefix = "post:"

// Posts is the post record store: single-key get/put/delete for a post body
// plus its metadata. Body and metadata go through the store in one call, so
// they commit together at the single-key level.
type Posts struct {
	store KVStore

	// storeTTL, when non-zero, is handed to the backend on every post write
	// so backends with native expiry can reclaim dead records eventually.
	// It is a store-layer housekeeping knob, not the retention mechanism:
	// expiration is always re-checked at read time.
	storeTTL time.Duration
}

// NewPosts returns a post record store backed by store. storeTTL of zero
// means records are kept until explicitly deleted.
func NewPosts(store KVStore, storeTTL time.Duration) *Posts {
	return &Posts{store: store, storeTTL: storeTTL}
}

func postKey(id string) string {
	return postKeyPrefix + id
}

// Put writes the record's body and metadata under post:{id}.
func (p *Posts) Put(ctx context.Context, rec PostRecord) error {
	meta, err := json.Marshal(PostMeta{
		Title:     rec.Title,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("encode post metadata: %w", err)
	}

	if err := p.store.Put(ctx, postKey(rec.ID), []byte(rec.Body), meta, p.storeTTL); err != nil {
		return fmt.Errorf("put post %s: %w", rec.ID, err)
	}
	return nil
}

// Get fetches the full record for id in a single store call. Returns
// ErrNotFound when no record exists.
func (p *Posts) Get(ctx context.Context, id string) (*PostRecord, error) {
	body, rawMeta, ok, err := p.store.GetWithMetadata(ctx, postKey(id))
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}

	rec := &PostRecord{ID: id, Body: string(body)}
	if len(rawMeta) > 0 {
		var meta PostMeta
		if err := json.Unmarshal(rawMeta, &meta); err != nil {
			return nil, fmt.Errorf("decode post %s metadata: %w", id, err)
		}
		rec.Title = meta.Title
		rec.CreatedAt = meta.CreatedAt
		rec.ExpiresAt = meta.ExpiresAt
	}
	return rec, nil
}

// Exists reports whether a record is stored under id.
func (p *Posts) Exists(ctx context.Context, id string) (bool, error) {
	_, ok, err := p.store.Get(ctx, postKey(id))
	if err != nil {
		return false, fmt.Errorf("check post %s: %w", id, err)
	}
	return ok, nil
}

// Delete removes the record under post:{id}. Deleting an absent id is a
// no-op.
func (p *Posts) Delete(ctx context.Context, id string) error {
	if err := p.store.Delete(ctx, postKey(id)); err != nil {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	return nil
}
