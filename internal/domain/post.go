package domain

import "time"

// PostRecord is the full stored content and metadata for one post, keyed
// independently by id under post:{id}. Records are immutable after creation;
// the only mutation is deletion.
type PostRecord struct {
	// ID is the allocated post identifier (YYMMDD-nonce).
	ID string

	// Body is the raw Markdown/plain-text content as submitted.
	Body string

	// Title is the optional display title, clamped to 140 characters.
	// Empty means untitled.
	Title string

	// CreatedAt is the submission time in UTC.
	CreatedAt time.Time

	// ExpiresAt, when set, marks the instant after which the post is
	// classified as expired on read. Nil means the post never expires.
	ExpiresAt *time.Time
}

// PostMeta is the metadata document stored alongside a post body in a single
// store call, so body and metadata commit together at the single-key level.
type PostMeta struct {
	Title     string     `json:"title,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// IndexEntry is one denormalized post summary inside the index ledger.
type IndexEntry struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Pinned    bool       `json:"pinned,omitempty"`
}

// Expired reports whether the entry's retention window has passed at now.
// Entries without ExpiresAt never expire (records created before expiration
// support existed).
func (e IndexEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}
