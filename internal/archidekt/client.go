// Package archidekt downloads Commander deck lists from the Archidekt API
// and stores them as the raw export files the dataset loader reads.
package archidekt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://archidekt.com/api"
	rateLimitDelay = 100 * time.Millisecond // 10 requests per second
	requestTimeout = 30 * time.Second
	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxBackoff     = 16 * time.Second

	// commanderFormat is Archidekt's numeric id for the Commander format.
	commanderFormat = 3
)

// Client is a rate-limited Archidekt API client.
type Client struct {
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	userAgent   string
	baseURL     string
}

// NewClient creates an Archidekt API client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		rateLimiter: rate.NewLimiter(rate.Every(rateLimitDelay), 1),
		userAgent:   "EDH-Recommender/1.0",
		baseURL:     defaultBaseURL,
	}
}

// DeckSummary is one row of a deck search page.
type DeckSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SearchPage is one page of deck search results.
type SearchPage struct {
	Count   int           `json:"count"`
	Next    string        `json:"next"`
	Results []DeckSummary `json:"results"`
}

// GetDeck fetches one deck payload by id. The payload is returned verbatim so
// nothing the export format carries is lost when it is written to disk.
func (c *Client) GetDeck(ctx context.Context, deckID int64) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/decks/%d/", c.baseURL, deckID)

	var raw json.RawMessage
	if err := c.doRequest(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("failed to get deck %d: %w", deckID, err)
	}
	return raw, nil
}

// SearchCommanderDecks fetches one page of Commander decks, most recently
// updated first.
func (c *Client) SearchCommanderDecks(ctx context.Context, page, pageSize int) (*SearchPage, error) {
	url := fmt.Sprintf("%s/decks/cards/?formats=%d&orderBy=-updatedAt&pageSize=%d&page=%d",
		c.baseURL, commanderFormat, pageSize, page)

	var result SearchPage
	if err := c.doRequest(ctx, url, &result); err != nil {
		return nil, fmt.Errorf("failed to search commander decks: %w", err)
	}
	return &result, nil
}

// doRequest performs an HTTP GET with rate limiting and retry logic.
func (c *Client) doRequest(ctx context.Context, url string, result interface{}) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("request canceled: %w", ctx.Err())
			}
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			if attempt < maxRetries {
				time.Sleep(backoff)
				backoff = min(backoff*2, maxBackoff)
				continue
			}
			return lastErr
		}

		switch resp.StatusCode {
		case http.StatusOK:
			body, err := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if err != nil {
				return fmt.Errorf("failed to read response body: %w", err)
			}
			if err := json.Unmarshal(body, result); err != nil {
				return fmt.Errorf("failed to parse JSON response: %w", err)
			}
			return nil

		case http.StatusTooManyRequests:
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("rate limited (HTTP 429)")
			if attempt < maxRetries {
				// Honor Retry-After when the server provides it.
				if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
					if duration, err := time.ParseDuration(retryAfter + "s"); err == nil {
						time.Sleep(duration)
					} else {
						time.Sleep(backoff)
					}
				} else {
					time.Sleep(backoff)
				}
				backoff = min(backoff*2, maxBackoff)
				continue
			}
			return lastErr

		case http.StatusNotFound:
			_ = resp.Body.Close()
			return &NotFoundError{URL: url}

		default:
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()

			var apiErr APIError
			if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Detail != "" {
				apiErr.Status = resp.StatusCode
				return &apiErr
			}
			return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// APIError is an error payload returned by the Archidekt API.
type APIError struct {
	Status int    `json:"-"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("archidekt API error (HTTP %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("archidekt API error (HTTP %d)", e.Status)
}

// NotFoundError is returned for decks that do not exist or are private.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource not found: %s", e.URL)
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}
