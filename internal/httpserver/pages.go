package httpserver

import (
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/peterkaminski/textpile/internal/domain"
)

// Post pages render a minimal HTML shell; the Markdown body is rendered
// client-side by marked to keep the handler small.
var postTmpl = template.Must(template.New("post").Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width,initial-scale=1" />
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="/style.css" />
</head>
<body>
  <header>
    <h1>{{.Heading}}</h1>
    <div class="actions">
      <a href="/">TOC</a>
      <a href="/submit">Submit</a>
    </div>
  </header>

  <div class="meta">{{.CreatedAt}} &middot; {{.ID}}</div>
  <hr />

  <article id="content"></article>

  <script src="https://cdn.jsdelivr.net/npm/marked/marked.min.js"></script>
  <script>
    const raw = {{.Body}};
    document.getElementById("content").innerHTML = marked.parse(raw);
  </script>
</body>
</html>
`))

var expiredTmpl = template.Must(template.New("expired").Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width,initial-scale=1" />
  <title>Post Expired</title>
  <link rel="stylesheet" href="/style.css" />
</head>
<body>
  <header>
    <h1>Post Expired</h1>
    <div class="actions">
      <a href="/">TOC</a>
      <a href="/submit">Submit</a>
    </div>
  </header>

  <div class="card">
    <h2>This Textpile item has expired.</h2>
    <p>Textpile does not retain backups.</p>
    <p>If you need the text, ask the original author or check your own records.</p>
    <p class="meta">Post ID: {{.ID}}</p>
    <p class="meta">Expired: {{.ExpiredAt}}</p>
  </div>
</body>
</html>
`))

func (s *Server) handlePostPage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, err := s.svc.ReadPost(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
		return
	case errors.Is(err, domain.ErrExpired):
		// The record still exists; expiration is a read-time
		// classification and gets its own page, not a 404.
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusGone)
		expiredTmpl.Execute(w, map[string]string{
			"ID":        rec.ID,
			"ExpiredAt": formatStamp(*rec.ExpiresAt),
		})
		return
	case err != nil:
		s.logger.Error("post page failed", "id", id, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	title := rec.Title
	if title == "" {
		title = "Post"
	}
	heading := rec.Title
	if heading == "" {
		heading = "(untitled)"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	postTmpl.Execute(w, map[string]string{
		"Title":     title,
		"Heading":   heading,
		"ID":        rec.ID,
		"CreatedAt": formatStamp(rec.CreatedAt),
		"Body":      rec.Body,
	})
}

func formatStamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 UTC")
}
