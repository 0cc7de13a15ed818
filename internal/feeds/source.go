// Package feeds adapts the project RSS/Atom feed into ingestible items.
package feeds

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mmcdole/gofeed"

	"modrelay/internal/fetch"
	"modrelay/internal/ingest"
	"modrelay/internal/types"
)

// Compile-time assertion that Source implements ingest.Source.
var _ ingest.Source = (*Source)(nil)

// Source fetches the configured feed URL and parses it with gofeed.
type Source struct {
	url    string
	client *fetch.Client
	parser *gofeed.Parser
	logger types.Logger
}

// NewSource creates a feed Source.
func NewSource(url string, client *fetch.Client, logger types.Logger) *Source {
	return &Source{
		url:    url,
		client: client,
		parser: gofeed.NewParser(),
		logger: logger,
	}
}

// Name identifies this source in logs and run results.
func (s *Source) Name() string { return "feed" }

// Fetch downloads and parses the feed. A failed download or an unparseable
// document aborts the poll; individual entries missing an id or timestamp
// are logged and skipped so one malformed entry cannot abort the feed.
func (s *Source) Fetch(ctx context.Context) ([]ingest.Item, error) {
	body, err := s.client.Get(ctx, s.url)
	if err != nil {
		return nil, err
	}

	feed, err := s.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", s.url, err)
	}

	items := make([]ingest.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry == nil {
			continue
		}

		id := entry.GUID
		if id == "" {
			id = entry.Link
		}
		if id == "" {
			s.logger.Warn("feed entry has no guid or link, skipping",
				"feed", s.url,
				"title", entry.Title,
			)
			continue
		}

		item := ingest.Item{
			StableID: id,
			Title:    entry.Title,
			URL:      entry.Link,
			Body:     entry.Description,
		}

		switch {
		case entry.PublishedParsed != nil:
			item.PublishedAt = entry.PublishedParsed.UTC()
		case entry.UpdatedParsed != nil:
			item.PublishedAt = entry.UpdatedParsed.UTC()
		default:
			s.logger.Warn("feed entry has no usable timestamp",
				"feed", s.url,
				"entry_id", id,
			)
		}

		items = append(items, item)
	}

	return items, nil
}
