package httpserver

import (
	"encoding/xml"
	"net/http"
)

type urlset struct {
	XMLName xml.Name     `xml:"urlset"`
	NS      string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.ReadIndex(r.Context())
	if err != nil {
		s.logger.Error("sitemap read failed", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	baseURL := s.baseURL(r)
	urls := []sitemapURL{
		{Loc: baseURL + "/", ChangeFreq: "hourly", Priority: "1.0"},
		{Loc: baseURL + "/about", ChangeFreq: "monthly", Priority: "0.7"},
	}
	for _, e := range entries {
		u := sitemapURL{
			Loc:        baseURL + e.URL,
			LastMod:    e.CreatedAt.UTC().Format("2006-01-02"),
			ChangeFreq: "never",
			Priority:   "0.5",
		}
		if e.Pinned {
			u.Priority = "0.9"
		}
		urls = append(urls, u)
	}

	doc := urlset{
		NS:   "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: urls,
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		s.logger.Error("sitemap encode failed", "error", err)
	}
}
