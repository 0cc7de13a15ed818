// Package news scrapes the project news page into ingestible items.
package news

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"modrelay/internal/fetch"
	"modrelay/internal/ingest"
	"modrelay/internal/types"
)

var _ ingest.Source = (*Source)(nil)

// Source fetches the news page and extracts one item per <article> element.
// An article needs a heading link to be usable; the link URL (resolved
// against the page URL) doubles as the stable id. A <time datetime=...>
// element supplies the publication timestamp, a trailing <p> the summary.
type Source struct {
	url    string
	client *fetch.Client
	logger types.Logger
}

// NewSource creates a news page Source.
func NewSource(url string, client *fetch.Client, logger types.Logger) *Source {
	return &Source{url: url, client: client, logger: logger}
}

// Name identifies this source in logs and run results.
func (s *Source) Name() string { return "news" }

// Fetch downloads and parses the news page. A failed download or an
// unparseable document aborts the poll; articles missing a heading link are
// logged and skipped.
func (s *Source) Fetch(ctx context.Context) ([]ingest.Item, error) {
	body, err := s.client.Get(ctx, s.url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing news page %s: %w", s.url, err)
	}

	base, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("parsing news page url %s: %w", s.url, err)
	}

	var items []ingest.Item
	doc.Find("article").Each(func(_ int, article *goquery.Selection) {
		item, ok := s.extractArticle(base, article)
		if !ok {
			return
		}
		items = append(items, item)
	})

	return items, nil
}

func (s *Source) extractArticle(base *url.URL, article *goquery.Selection) (ingest.Item, bool) {
	heading := article.Find("h1 a, h2 a, h3 a").First()
	if heading.Length() == 0 {
		s.logger.Warn("news article has no heading link, skipping", "page", s.url)
		return ingest.Item{}, false
	}

	href, _ := heading.Attr("href")
	href = strings.TrimSpace(href)
	if href == "" {
		s.logger.Warn("news article heading has no href, skipping",
			"page", s.url,
			"title", strings.TrimSpace(heading.Text()),
		)
		return ingest.Item{}, false
	}

	link := href
	if ref, err := url.Parse(href); err == nil {
		link = base.ResolveReference(ref).String()
	}

	item := ingest.Item{
		StableID: link,
		Title:    strings.TrimSpace(heading.Text()),
		URL:      link,
		Body:     strings.TrimSpace(article.Find("p").First().Text()),
	}

	if stamp, ok := article.Find("time").First().Attr("datetime"); ok {
		item.PublishedAt = parseArticleTime(stamp)
		if item.PublishedAt.IsZero() {
			s.logger.Warn("news article has unparseable datetime",
				"page", s.url,
				"datetime", stamp,
			)
		}
	}

	return item, true
}

// parseArticleTime accepts the datetime formats the news page has used over
// time. A zero time means the value was unusable; ordering then falls back
// to document position.
func parseArticleTime(value string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}
