package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peterkaminski/textpile/internal/config"
	"github.com/peterkaminski/textpile/internal/domain"
	"github.com/peterkaminski/textpile/internal/kv/memory"
)

type testClock struct {
	now time.Time
}

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *testClock) {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{
			Port:          0,
			InstanceName:  "Textpile",
			CommunityName: "testers",
			AdminToken:    "admin",
		}
	}

	clock := &testClock{now: time.Date(2026, 1, 8, 15, 30, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	retention, err := cfg.RetentionDuration()
	require.NoError(t, err)

	svc := domain.NewService(memory.New(), 0, logger, domain.ServiceOptions{
		SubmitToken: cfg.SubmitToken,
		AdminToken:  cfg.AdminToken,
		Retention:   retention,
		Clock:       func() time.Time { return clock.now },
	})
	return NewServer(cfg, svc, NewHub(logger), logger), clock
}

func doJSON(t *testing.T, s *Server, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func submitPost(t *testing.T, s *Server, body, title string) domain.SubmitResult {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/submit", map[string]string{"body": body, "title": title})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result domain.SubmitResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return result
}

func TestSubmitEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	result := submitPost(t, s, "hello world", "Greetings")
	require.NotEmpty(t, result.ID)
	require.Equal(t, "/p/"+result.ID, result.URL)
}

func TestSubmitEndpointRejectsEmptyBody(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := doJSON(t, s, http.MethodPost, "/api/submit", map[string]string{"body": "   "})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "Body is required.")
}

func TestSubmitEndpointRejectsNonJSON(t *testing.T) {
	s, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/submit", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitEndpointTokenGate(t *testing.T) {
	s, _ := newTestServer(t, &config.Config{
		InstanceName:  "Textpile",
		CommunityName: "testers",
		SubmitToken:   "gate",
	})

	w := doJSON(t, s, http.MethodPost, "/api/submit", map[string]string{"body": "hi"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/submit", map[string]string{"body": "hi", "token": "gate"})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRemoveEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)
	result := submitPost(t, s, "to be removed", "")

	w := doJSON(t, s, http.MethodPost, "/api/remove", map[string]string{"id": result.ID, "token": "admin"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Post removed successfully.")

	// Gone from both record and index.
	w = doJSON(t, s, http.MethodGet, result.URL, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/index", nil)
	require.NotContains(t, w.Body.String(), result.ID)
}

func TestRemoveEndpointBadToken(t *testing.T) {
	s, _ := newTestServer(t, nil)
	result := submitPost(t, s, "stays", "")

	w := doJSON(t, s, http.MethodPost, "/api/remove", map[string]string{"id": result.ID, "token": "wrong"})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), "Invalid admin token.")

	w = doJSON(t, s, http.MethodGet, result.URL, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRemoveEndpointUnconfigured(t *testing.T) {
	s, _ := newTestServer(t, &config.Config{InstanceName: "Textpile", CommunityName: "testers"})

	w := doJSON(t, s, http.MethodPost, "/api/remove", map[string]string{"id": "260108-bc", "token": "x"})
	require.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestIndexEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)
	result := submitPost(t, s, "indexed", "Hello")

	w := doJSON(t, s, http.MethodGet, "/api/index", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var resp struct {
		Success bool                `json:"success"`
		Items   []domain.IndexEntry `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Len(t, resp.Items, 1)
	require.Equal(t, result.ID, resp.Items[0].ID)
	require.Equal(t, "Hello", resp.Items[0].Title)
}

func TestPostPage(t *testing.T) {
	s, _ := newTestServer(t, nil)
	result := submitPost(t, s, "# heading\nsome *markdown*", "My Post")

	w := doJSON(t, s, http.MethodGet, result.URL, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/html")
	require.Contains(t, w.Body.String(), "My Post")
	require.Contains(t, w.Body.String(), result.ID)
}

func TestPostPageNotFound(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := doJSON(t, s, http.MethodGet, "/p/260108-zz", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostPageExpired(t *testing.T) {
	cfg := &config.Config{
		InstanceName:     "Textpile",
		CommunityName:    "testers",
		AdminToken:       "admin",
		DefaultRetention: "1week",
	}
	s, clock := newTestServer(t, cfg)
	result := submitPost(t, s, "short-lived", "")

	clock.now = clock.now.Add(8 * 24 * time.Hour)

	// The expired page is distinct from not-found and the record survives.
	w := doJSON(t, s, http.MethodGet, result.URL, nil)
	require.Equal(t, http.StatusGone, w.Code)
	require.Contains(t, w.Body.String(), "This Textpile item has expired.")
	require.Contains(t, w.Body.String(), result.ID)

	// And the index read filters it out.
	w = doJSON(t, s, http.MethodGet, "/api/index", nil)
	require.NotContains(t, w.Body.String(), result.ID)
}

func TestConfigEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := doJSON(t, s, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool           `json:"success"`
		Config  map[string]any `json:"config"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "Textpile", resp.Config["instanceName"])
	require.Equal(t, "testers", resp.Config["communityName"])
	require.Equal(t, config.SoftwareName, resp.Config["softwareName"])
}

func TestAdminEnvEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/env", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/env", nil)
	req.Header.Set("Authorization", "Bearer admin")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ADMIN_TOKEN")
	require.Contains(t, w.Body.String(), "Identity & Branding")
}

func TestFeedEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)
	result := submitPost(t, s, "feed body with [a link](http://example.com)", "Feed Post")

	w := doJSON(t, s, http.MethodGet, "/feed.xml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/rss+xml")

	body := w.Body.String()
	require.Contains(t, body, "<rss")
	require.Contains(t, body, "Feed Post")
	require.Contains(t, body, result.URL)
	require.Contains(t, body, "content:encoded")
}

func TestSitemapEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)
	result := submitPost(t, s, "mapped", "")

	w := doJSON(t, s, http.MethodGet, "/sitemap.xml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/xml")
	require.Contains(t, w.Body.String(), result.URL)
	require.Contains(t, w.Body.String(), "<changefreq>never</changefreq>")
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestBasicAuthWall(t *testing.T) {
	s, _ := newTestServer(t, &config.Config{
		InstanceName:  "Textpile",
		CommunityName: "testers",
		BasicAuthUser: "user",
		BasicAuthPass: "pass",
	})

	w := doJSON(t, s, http.MethodGet, "/api/index", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")

	// Health stays reachable for probes.
	w = doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/index", nil)
	req.SetBasicAuth("user", "pass")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestExcerpt(t *testing.T) {
	md := "# Title\nSome **bold** text with [a link](http://example.com) and `code`.\n\n```\nblock\n```"
	got := stripMarkdown(md)
	require.NotContains(t, got, "#")
	require.NotContains(t, got, "**")
	require.NotContains(t, got, "](")
	require.Contains(t, got, "a link")

	long := strings.Repeat("word ", 100)
	short := excerpt(long, 240)
	require.LessOrEqual(t, len(short), 240)
	require.True(t, strings.HasSuffix(short, "..."))
}
