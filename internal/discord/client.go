// Package discord implements the outbound webhook delivery client.
//
// It owns destination validation, the retry/backoff policy (rate-limit
// hints honored exactly, exponential backoff otherwise), optional binary
// attachment upload, and thread routing for forum channels.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"modrelay/internal/config"
	"modrelay/internal/types"
)

// webhookURLPrefix is the only accepted destination prefix. Anything else is
// a configuration error and is rejected before any network call.
const webhookURLPrefix = "https://discord.com/api/webhooks/"

// maxResponseBodyRead limits how much of a response body we read for error
// messages and success data extraction.
const maxResponseBodyRead = 4096

// SendOptions adjusts a single Send invocation.
type SendOptions struct {
	// MaxRetries overrides the configured retry budget when >= 0.
	MaxRetries int

	// ThreadID routes the message into an existing thread instead of the
	// channel itself (appended as the thread_id query parameter).
	ThreadID string

	// Attachment switches the request to multipart upload.
	Attachment *Attachment

	// Wait asks Discord to return the created message as a JSON body.
	// Required when the caller needs the message or thread id.
	Wait bool
}

// DefaultSendOptions returns options that defer to the configured retry budget.
func DefaultSendOptions() SendOptions {
	return SendOptions{MaxRetries: -1}
}

// Client posts messages to Discord webhook endpoints with bounded retries.
// It holds no mutable state; one instance is shared by all callers.
type Client struct {
	httpClient *http.Client
	cfg        config.DiscordConfig
	logger     types.Logger
	sleep      types.Sleeper
}

// NewClient creates a delivery client from the Discord configuration section.
func NewClient(cfg config.DiscordConfig, logger types.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// NewClientWithHTTP creates a Client with a caller-supplied HTTP client and
// sleep function. This constructor exists for testing, allowing injection of
// an httptest server client and an instant sleeper.
func NewClientWithHTTP(cfg config.DiscordConfig, httpClient *http.Client, sleep types.Sleeper, logger types.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		logger:     logger,
		sleep:      sleep,
	}
}

// Send delivers msg to the destination webhook URL.
//
// Retry policy:
//   - 429: sleep the server's Retry-After hint when present, otherwise
//     2^attempt*2 seconds (2s, 4s, 8s). Exhausted retries return a result
//     with RateLimited set, distinct from a generic failure.
//   - >=500 and transport errors: exponential backoff, same budget.
//   - other 4xx: immediate failure, no retry.
//   - 2xx: success; a JSON body (wait flag) is parsed into Result.Sent,
//     an empty body yields Sent == nil. A malformed 2xx body is logged and
//     still counts as success.
//
// An error is returned only for invocation mistakes (nil message, request
// construction); every HTTP outcome is expressed through the Result.
func (c *Client) Send(ctx context.Context, destination string, msg *Message, opts SendOptions) (*Result, error) {
	if msg == nil {
		return nil, fmt.Errorf("discord send: message is nil")
	}

	if res := c.validateDestination(destination); res != nil {
		return res, nil
	}

	target, err := buildTargetURL(destination, opts)
	if err != nil {
		return nil, fmt.Errorf("discord send: %w", err)
	}

	maxRetries := c.cfg.MaxRetries
	if opts.MaxRetries >= 0 {
		maxRetries = opts.MaxRetries
	}

	var lastResult *Result
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := c.post(ctx, target, msg, opts.Attachment)
		if err != nil {
			// Transport error: no response at all. Retry with backoff.
			c.logger.Warn("webhook network error",
				"destination", destination,
				"attempt", attempt,
				"error", err.Error(),
			)
			lastResult = &Result{StatusCode: 0, ErrorBody: err.Error()}
			if attempt < maxRetries {
				c.sleep(exponentialBackoff(attempt))
			}
			continue
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfterHint(resp, attempt)
			c.logger.Warn("webhook rate limited (429)",
				"destination", destination,
				"attempt", attempt,
				"retry_after_seconds", wait.Seconds(),
			)
			lastResult = &Result{
				StatusCode:  http.StatusTooManyRequests,
				RateLimited: true,
				ErrorBody:   string(body),
			}
			if attempt < maxRetries {
				c.sleep(wait)
			}

		case resp.StatusCode >= 500:
			c.logger.Warn("webhook server error",
				"destination", destination,
				"attempt", attempt,
				"status", resp.StatusCode,
			)
			lastResult = &Result{
				StatusCode: http.StatusInternalServerError,
				ErrorBody:  fmt.Sprintf("upstream %d: %s", resp.StatusCode, body),
			}
			if attempt < maxRetries {
				c.sleep(exponentialBackoff(attempt))
			}

		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return c.success(destination, resp.StatusCode, body), nil

		default:
			// Client error other than 429: permanent for this call.
			c.logger.Warn("webhook client error",
				"destination", destination,
				"status", resp.StatusCode,
				"body", string(body),
			)
			return &Result{
				StatusCode: resp.StatusCode,
				ErrorBody:  fmt.Sprintf("upstream %d: %s", resp.StatusCode, body),
			}, nil
		}
	}

	c.logger.Error("webhook delivery failed after retries",
		"destination", destination,
		"max_retries", maxRetries,
		"rate_limited", lastResult.RateLimited,
	)
	return lastResult, nil
}

// validateDestination checks the destination before any network activity.
// A non-nil result means the destination is unusable for this call.
func (c *Client) validateDestination(destination string) *Result {
	reason := ""
	switch {
	case destination == "":
		reason = "destination is empty"
	case c.cfg.PlaceholderMarker != "" && strings.Contains(destination, c.cfg.PlaceholderMarker):
		reason = "destination contains unconfigured placeholder"
	case !strings.HasPrefix(destination, webhookURLPrefix):
		reason = "destination is not a Discord webhook URL"
	}

	if reason == "" {
		return nil
	}

	c.logger.Error("webhook destination rejected",
		"destination", destination,
		"reason", reason,
	)
	return &Result{StatusCode: http.StatusBadRequest, ErrorBody: reason}
}

// success builds the Result for a 2xx response. A no-content response yields
// Sent == nil; a JSON body is surfaced verbatim. A malformed body does not
// fail the delivery.
func (c *Client) success(destination string, status int, body []byte) *Result {
	result := &Result{Success: true, StatusCode: status}

	if len(bytes.TrimSpace(body)) == 0 {
		return result
	}

	var sent SentMessage
	if err := json.Unmarshal(body, &sent); err != nil {
		c.logger.Warn("webhook success body not parseable",
			"destination", destination,
			"error", err.Error(),
		)
		return result
	}

	result.Sent = &sent
	return result
}

// post performs a single HTTP POST attempt: JSON for plain messages,
// multipart with a payload_json part when an attachment is present.
func (c *Client) post(ctx context.Context, target string, msg *Message, attachment *Attachment) (*http.Response, error) {
	var (
		reqBody     io.Reader
		contentType string
	)

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	if attachment == nil {
		reqBody = bytes.NewReader(payload)
		contentType = "application/json"
	} else {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)

		part, err := w.CreateFormField("payload_json")
		if err != nil {
			return nil, fmt.Errorf("multipart payload_json: %w", err)
		}
		if _, err := part.Write(payload); err != nil {
			return nil, fmt.Errorf("multipart payload_json: %w", err)
		}

		file, err := w.CreateFormFile("files[0]", attachment.Filename)
		if err != nil {
			return nil, fmt.Errorf("multipart file: %w", err)
		}
		if _, err := file.Write(attachment.Data); err != nil {
			return nil, fmt.Errorf("multipart file: %w", err)
		}

		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("multipart close: %w", err)
		}

		reqBody = &buf
		contentType = w.FormDataContentType()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	return c.httpClient.Do(req)
}

// buildTargetURL appends the wait and thread_id query parameters.
func buildTargetURL(destination string, opts SendOptions) (string, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return "", fmt.Errorf("parse destination: %w", err)
	}

	q := u.Query()
	if opts.Wait {
		q.Set("wait", "true")
	}
	if opts.ThreadID != "" {
		q.Set("thread_id", opts.ThreadID)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// exponentialBackoff returns the delay before retrying attempt+1:
// 2s, 4s, 8s, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * 2 * time.Second
}

// retryAfterHint extracts the server's retry delay from a 429 response.
// It supports the seconds form of Retry-After; a missing or unparseable
// header falls back to the exponential default for this attempt.
func retryAfterHint(resp *http.Response, attempt int) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return exponentialBackoff(attempt)
	}

	if seconds, err := strconv.ParseFloat(header, 64); err == nil && seconds > 0 {
		return time.Duration(seconds * float64(time.Second))
	}

	return exponentialBackoff(attempt)
}
