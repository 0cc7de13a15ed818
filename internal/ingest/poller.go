// Package ingest implements the deduplicating ingestion loop shared by all
// polled sources: fetch the source, diff its items against the persisted
// id-set, deliver only unseen items in chronological order, write the
// updated set back once.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"modrelay/internal/discord"
	"modrelay/internal/store"
	"modrelay/internal/types"
)

// DefaultMaxPerRun bounds deliveries per poll when no explicit cap is given.
const DefaultMaxPerRun = 5

// Item is one ingestible entry produced by a source-specific parser. Only
// StableID outlives the poll; everything else is transient.
type Item struct {
	// StableID must be globally unique and stable across polls for the same
	// logical item (a feed entry guid, an article URL).
	StableID    string
	Title       string
	URL         string
	PublishedAt time.Time
	Body        string
}

// Source fetches and parses one remote document into items. Per-item parse
// failures are handled inside the source (logged, item skipped); a returned
// error means the whole document was unusable and the poll must abort.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Item, error)
}

// Template maps an item to its destination and message. Pure; no network.
type Template func(item Item) (destination string, msg *discord.Message, opts discord.SendOptions)

// Delivery abstracts the webhook client so the loop is testable with a
// recording fake.
type Delivery interface {
	Send(ctx context.Context, destination string, msg *discord.Message, opts discord.SendOptions) (*discord.Result, error)
}

// RunResult summarizes one poll. Item-level failures are collected in Errors
// but do not fail the run; partial success is the normal case.
type RunResult struct {
	Source    string   `json:"source"`
	Processed int      `json:"processed"` // ids newly marked as seen
	Delivered int      `json:"delivered"` // successful webhook posts
	Errors    []string `json:"errors,omitempty"`
}

// Poller runs the ingestion loop for one source. A single Poller must not be
// run concurrently with another for the same state key (single-writer).
type Poller struct {
	source    Source
	template  Template
	delivery  Delivery
	state     *store.ProcessedIDStore
	stateKey  string
	maxPerRun int
	logger    types.Logger
}

// PollerConfig holds the dependencies for creating a Poller.
type PollerConfig struct {
	Source    Source
	Template  Template
	Delivery  Delivery
	State     *store.ProcessedIDStore
	StateKey  string
	MaxPerRun int
	Logger    types.Logger
}

// NewPoller creates a Poller. MaxPerRun <= 0 selects DefaultMaxPerRun.
func NewPoller(cfg PollerConfig) *Poller {
	maxPerRun := cfg.MaxPerRun
	if maxPerRun <= 0 {
		maxPerRun = DefaultMaxPerRun
	}
	return &Poller{
		source:    cfg.Source,
		template:  cfg.Template,
		delivery:  cfg.Delivery,
		state:     cfg.State,
		stateKey:  cfg.StateKey,
		maxPerRun: maxPerRun,
		logger:    cfg.Logger,
	}
}

// Run executes one complete poll: fetch, diff, emit, persist.
//
// Run-level failures (source fetch, state load/save) abort the poll with an
// error and leave persisted state untouched. Item-level delivery failures are
// logged and collected; the item is still marked processed, so each item gets
// at most one delivery attempt ever. This trades silent loss on failure for
// protection against retry storms; see DESIGN.md for the recorded trade-off.
func (p *Poller) Run(ctx context.Context) (RunResult, error) {
	result := RunResult{Source: p.source.Name()}

	items, err := p.source.Fetch(ctx)
	if err != nil {
		return result, types.NewAppError(types.ErrCodeUpstreamSource,
			fmt.Sprintf("fetching source %q", p.source.Name()), err)
	}

	processed, err := p.state.Load(ctx, p.stateKey)
	if err != nil {
		return result, err
	}

	seen := make(map[string]struct{}, len(processed))
	for _, id := range processed {
		seen[id] = struct{}{}
	}

	// Diff against the persisted set AND against ids selected earlier in
	// this same pass, so a feed repeating an id within one fetch cannot
	// produce a double delivery.
	var fresh []Item
	for _, item := range items {
		if item.StableID == "" {
			p.logger.Warn("skipping item without stable id",
				"source", p.source.Name(),
				"title", item.Title,
			)
			continue
		}
		if _, dup := seen[item.StableID]; dup {
			continue
		}
		seen[item.StableID] = struct{}{}
		fresh = append(fresh, item)
	}

	// Oldest first, regardless of source ordering.
	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].PublishedAt.Before(fresh[j].PublishedAt)
	})

	// Items beyond the cap stay unseen; they are picked up, still
	// oldest-first, on the next poll.
	if len(fresh) > p.maxPerRun {
		fresh = fresh[:p.maxPerRun]
	}

	for _, item := range fresh {
		destination, msg, opts := p.template(item)

		res, err := p.delivery.Send(ctx, destination, msg, opts)
		switch {
		case err != nil:
			p.logger.Error("item delivery error",
				"source", p.source.Name(),
				"item_id", item.StableID,
				"error", err.Error(),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", item.StableID, err))
		case !res.Success:
			p.logger.Error("item delivery failed",
				"source", p.source.Name(),
				"item_id", item.StableID,
				"status", res.StatusCode,
				"rate_limited", res.RateLimited,
			)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: delivery failed with status %d", item.StableID, res.StatusCode))
		default:
			result.Delivered++
		}

		// Marked processed whether or not the delivery succeeded.
		processed = append(processed, item.StableID)
		result.Processed++
	}

	if err := p.state.Save(ctx, p.stateKey, processed); err != nil {
		return result, err
	}

	p.logger.Info("poll complete",
		"source", p.source.Name(),
		"processed", result.Processed,
		"delivered", result.Delivered,
		"errors", len(result.Errors),
	)

	return result, nil
}
