// Package provider implements the external rate sources. Every
// provider returns the same normalized pair->payload map regardless of
// the wire shape of its upstream API.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/valutatrade/hub/internal/domain"
)

// RatePayload is one normalized fetched rate with its provenance.
type RatePayload struct {
	Rate      decimal.Decimal
	UpdatedAt time.Time
	Source    string
	Meta      map[string]any
}

// Provider is an external source of rate data. FetchRates returns a
// FROM_TO keyed map (FROM is always the non-USD currency) or fails
// with a ProviderRequestError.
type Provider interface {
	Source() string
	FetchRates(ctx context.Context) (map[string]RatePayload, error)
}

// NewHTTPClient builds the bounded-timeout client shared by the HTTP
// providers. A timed-out call counts as a failed provider, not a crash.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

type fetchResult struct {
	body       []byte
	statusCode int
	etag       string
	requestMS  int64
}

// getJSON performs a GET and applies the strict status interpretation
// shared by all HTTP providers.
func getJSON(ctx context.Context, client *http.Client, url, source string) (*fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &domain.ProviderRequestError{Source: source, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, &domain.ProviderRequestError{Source: source, Err: err}
	}
	defer resp.Body.Close()
	elapsed := time.Since(start).Milliseconds()

	if err := checkStatus(resp.StatusCode, source); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderRequestError{Source: source, Err: err}
	}

	return &fetchResult{
		body:       body,
		statusCode: resp.StatusCode,
		etag:       resp.Header.Get("ETag"),
		requestMS:  elapsed,
	}, nil
}

func checkStatus(status int, source string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &domain.ProviderRequestError{Source: source, Err: fmt.Errorf("access denied (HTTP %d)", status)}
	case status == http.StatusTooManyRequests:
		return &domain.ProviderRequestError{Source: source, Err: fmt.Errorf("rate limit exceeded (HTTP 429)")}
	case status >= 500:
		return &domain.ProviderRequestError{Source: source, Err: fmt.Errorf("server error (HTTP %d)", status)}
	default:
		return &domain.ProviderRequestError{Source: source, Err: fmt.Errorf("HTTP %d", status)}
	}
}

func decodeObject(res *fetchResult, source string, target any) error {
	if err := json.Unmarshal(res.body, target); err != nil {
		return &domain.ProviderRequestError{Source: source, Err: fmt.Errorf("malformed JSON: %w", err)}
	}
	return nil
}

func (r *fetchResult) meta(rawID string) map[string]any {
	meta := map[string]any{
		"raw_id":      rawID,
		"request_ms":  r.requestMS,
		"status_code": r.statusCode,
	}
	if r.etag != "" {
		meta["etag"] = r.etag
	}
	return meta
}
