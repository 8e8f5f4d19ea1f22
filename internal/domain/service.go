package domain

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/peterkaminski/textpile/internal/postid"
)

// MaxTitleLen is the clamp applied to submitted titles.
const MaxTitleLen = 140

// Service is the index consistency coordinator. It sequences allocator, post
// store, and index ledger operations for submit and remove, and defines what
// "done" means given that the backing store offers no multi-key transaction.
//
// Commit order is load-bearing and must not change:
//
//	submit: post record first, then index. A crash in between leaves an
//	orphaned, unlisted-but-fetchable post, never a listed-but-missing one.
//	remove: post record first, then index. A dangling entry degrades to a
//	not-found detail fetch, never to a resurrected record.
type Service struct {
	posts    *Posts
	index    *Index
	logger   *slog.Logger
	notifier IndexNotifier

	// submitToken, when set, gates submissions (exact match).
	submitToken string

	// adminToken, when set, authorizes removals (constant-time compare).
	adminToken string

	// retention is applied to new posts as expiresAt = now + retention.
	// Zero means posts never expire.
	retention time.Duration

	// clock is the time source; overridable in tests.
	clock func() time.Time
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	SubmitToken string
	AdminToken  string
	Retention   time.Duration
	Notifier    IndexNotifier
	Clock       func() time.Time
}

// NewService creates the coordinator over the given store.
func NewService(store KVStore, storeTTL time.Duration, logger *slog.Logger, opts ServiceOptions) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		posts:       NewPosts(store, storeTTL),
		index:       NewIndex(store),
		logger:      logger,
		notifier:    opts.Notifier,
		submitToken: opts.SubmitToken,
		adminToken:  opts.AdminToken,
		retention:   opts.Retention,
		clock:       clock,
	}
}

// SubmitResult is the acknowledgment for a successful submission.
type SubmitResult struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PostURL returns the canonical relative URL for a post id.
func PostURL(id string) string {
	return "/p/" + id
}

// ClampTitle trims title and cuts it to MaxTitleLen characters. Empty or
// whitespace-only input becomes the absent title, not an error.
func ClampTitle(title string) string {
	t := strings.TrimSpace(title)
	if r := []rune(t); len(r) > MaxTitleLen {
		t = strings.TrimSpace(string(r[:MaxTitleLen]))
	}
	return t
}

// Submit validates and stores a new post, then lists it in the index.
func (s *Service) Submit(ctx context.Context, body, title, token string) (*SubmitResult, error) {
	if s.submitToken != "" && strings.TrimSpace(token) != s.submitToken {
		return nil, fmt.Errorf("submit token: %w", ErrUnauthorized)
	}

	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("body is required: %w", ErrValidation)
	}
	title = ClampTitle(title)

	now := s.clock()

	// Fresh index snapshot doubles as the allocator's collision oracle.
	entries, err := s.index.Load(ctx)
	if err != nil {
		return nil, err
	}
	listed := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		listed[e.ID] = struct{}{}
	}

	id, err := postid.Allocate(now, func(candidate string) (bool, error) {
		if _, ok := listed[candidate]; ok {
			return true, nil
		}
		// The index is authoritative for listed posts; the record check
		// also covers orphans from earlier partial failures.
		return s.posts.Exists(ctx, candidate)
	})
	if err != nil {
		if errors.Is(err, postid.ErrExhausted) {
			// Nothing has been written; the whole submission is retryable.
			return nil, fmt.Errorf("%v: %w", err, ErrAllocationExhausted)
		}
		return nil, err
	}

	rec := PostRecord{
		ID:        id,
		Body:      body,
		Title:     title,
		CreatedAt: now,
	}
	if s.retention > 0 {
		exp := now.Add(s.retention)
		rec.ExpiresAt = &exp
	}

	// Record before index: see commit-order note on Service.
	if err := s.posts.Put(ctx, rec); err != nil {
		return nil, err
	}

	entry := IndexEntry{
		ID:        id,
		Title:     title,
		CreatedAt: now,
		URL:       PostURL(id),
		ExpiresAt: rec.ExpiresAt,
	}
	if err := s.index.Save(ctx, InsertNewest(entries, entry)); err != nil {
		// The record landed; the post is fetchable by direct URL but
		// unlisted. Accepted inconsistency, not a failed submission.
		s.logger.Error("post stored but index update failed", "id", id, "error", err)
	} else if s.notifier != nil {
		s.notifier.IndexChanged(IndexEvent{Kind: "added", Entry: entry})
	}

	s.logger.Info("post submitted", "id", id, "title", title != "", "expires", rec.ExpiresAt != nil)
	return &SubmitResult{ID: id, URL: entry.URL}, nil
}

// Remove authenticates the caller, deletes the post record, and unlists it.
// Removing an id with no record is a successful no-op.
func (s *Service) Remove(ctx context.Context, id, token string) error {
	if s.adminToken == "" {
		return ErrAdminNotConfigured
	}
	if !tokenEqual(strings.TrimSpace(token), s.adminToken) {
		return fmt.Errorf("admin token: %w", ErrUnauthorized)
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("id is required: %w", ErrValidation)
	}

	// Record before index: see commit-order note on Service.
	if err := s.posts.Delete(ctx, id); err != nil {
		return err
	}

	entries, err := s.index.Load(ctx)
	if err != nil {
		s.logger.Error("post deleted but index load failed", "id", id, "error", err)
		return nil
	}
	if err := s.index.Save(ctx, RemoveByID(entries, id)); err != nil {
		// Dangling entry; detail reads for it degrade to not-found.
		s.logger.Error("post deleted but index update failed", "id", id, "error", err)
		return nil
	}
	if s.notifier != nil {
		s.notifier.IndexChanged(IndexEvent{Kind: "removed", Entry: IndexEntry{ID: id, URL: PostURL(id)}})
	}

	s.logger.Info("post removed", "id", id)
	return nil
}

// ReadIndex returns the active view of the index at the current time. It
// never mutates persisted state.
func (s *Service) ReadIndex(ctx context.Context) ([]IndexEntry, error) {
	entries, err := s.index.Load(ctx)
	if err != nil {
		return nil, err
	}
	return FilterActive(entries, s.clock()), nil
}

// ReadPost fetches the record for id. Past-retention records return the
// record together with ErrExpired so callers can render a distinct expired
// response; nothing is deleted. Expiration is a read-time classification.
func (s *Service) ReadPost(ctx context.Context, id string) (*PostRecord, error) {
	rec, err := s.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.ExpiresAt != nil && !rec.ExpiresAt.After(s.clock()) {
		return rec, fmt.Errorf("post %s: %w", id, ErrExpired)
	}
	return rec, nil
}

// AuthorizeAdmin checks a bearer credential against the configured admin
// token in constant time.
func (s *Service) AuthorizeAdmin(token string) error {
	if s.adminToken == "" {
		return ErrAdminNotConfigured
	}
	if !tokenEqual(strings.TrimSpace(token), s.adminToken) {
		return fmt.Errorf("admin token: %w", ErrUnauthorized)
	}
	return nil
}

// tokenEqual compares credentials in constant time with respect to content.
// Length mismatches return false immediately, which leaks only the length.
func tokenEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
