package httpserver

import (
	"bytes"
	"encoding/xml"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/peterkaminski/textpile/internal/domain"
)

// feedItemLimit is how many recent active posts the feed carries.
const feedItemLimit = 50

// markdown matches the original renderer settings: GitHub-flavored Markdown
// with hard line breaks.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

type rssDoc struct {
	XMLName   xml.Name   `xml:"rss"`
	Version   string     `xml:"version,attr"`
	AtomNS    string     `xml:"xmlns:atom,attr"`
	ContentNS string     `xml:"xmlns:content,attr"`
	Channel   rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	LastBuildDate string    `xml:"lastBuildDate"`
	AtomLink      atomLink  `xml:"atom:link"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title          string   `xml:"title"`
	Link           string   `xml:"link"`
	GUID           rssGUID  `xml:"guid"`
	PubDate        string   `xml:"pubDate"`
	Description    string   `xml:"description"`
	Content        rssCDATA `xml:"content:encoded"`
	ExpirationDate string   `xml:"expirationDate,omitempty"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssCDATA struct {
	Value string `xml:",cdata"`
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.ReadIndex(r.Context())
	if err != nil {
		s.logger.Error("feed read failed", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if len(entries) > feedItemLimit {
		entries = entries[:feedItemLimit]
	}

	baseURL := s.baseURL(r)
	items := make([]rssItem, 0, len(entries))
	for _, e := range entries {
		// Fetch the body for rich feed content. Dangling or racing
		// entries degrade to an empty body rather than failing the feed.
		var body string
		if rec, err := s.svc.ReadPost(r.Context(), e.ID); err == nil {
			body = rec.Body
		} else if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrExpired) {
			s.logger.Warn("feed body fetch failed", "id", e.ID, "error", err)
		}

		title := e.Title
		if title == "" {
			title = "(untitled)"
		}
		link := baseURL + e.URL

		var rendered bytes.Buffer
		if err := markdown.Convert([]byte(body), &rendered); err != nil {
			s.logger.Warn("feed markdown render failed", "id", e.ID, "error", err)
		}

		desc := body
		if desc == "" {
			desc = title
		}

		item := rssItem{
			Title:       title,
			Link:        link,
			GUID:        rssGUID{IsPermaLink: "true", Value: link},
			PubDate:     e.CreatedAt.UTC().Format(time.RFC1123Z),
			Description: excerpt(desc, 240),
			Content:     rssCDATA{Value: rendered.String()},
		}
		if e.ExpiresAt != nil {
			item.ExpirationDate = e.ExpiresAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}

	doc := rssDoc{
		Version:   "2.0",
		AtomNS:    "http://www.w3.org/2005/Atom",
		ContentNS: "http://purl.org/rss/1.0/modules/content/",
		Channel: rssChannel{
			Title:         s.cfg.InstanceName + " - " + s.cfg.CommunityName,
			Link:          baseURL + "/",
			Description:   "Long-form posts for " + s.cfg.CommunityName,
			Language:      "en-us",
			LastBuildDate: time.Now().UTC().Format(time.RFC1123Z),
			AtomLink: atomLink{
				Href: baseURL + "/feed.xml",
				Rel:  "self",
				Type: "application/rss+xml",
			},
			Items: items,
		},
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		s.logger.Error("feed encode failed", "error", err)
	}
}

var (
	reCodeBlock  = regexp.MustCompile("(?s)```.*?```")
	reInlineCode = regexp.MustCompile("`[^`]*`")
	reImage      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	reLinePrefix = regexp.MustCompile(`(?m)^[#>\-+*\s]+`)
	reNewlines   = regexp.MustCompile(`[\n\r]+`)
	reEmphasis   = regexp.MustCompile(`[*_~]`)
)

// stripMarkdown reduces Markdown to plain text for feed descriptions.
func stripMarkdown(md string) string {
	text := reCodeBlock.ReplaceAllString(md, " ")
	text = reInlineCode.ReplaceAllString(text, " ")
	text = reImage.ReplaceAllString(text, " ")
	text = reLink.ReplaceAllString(text, "$1")
	text = reLinePrefix.ReplaceAllString(text, "")
	text = reNewlines.ReplaceAllString(text, " ")
	text = reEmphasis.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// excerpt truncates stripped Markdown to max characters with an ellipsis.
func excerpt(md string, max int) string {
	text := stripMarkdown(md)
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	cut := max - 3
	if cut < 0 {
		cut = 0
	}
	return strings.TrimSpace(string(runes[:cut])) + "..."
}
