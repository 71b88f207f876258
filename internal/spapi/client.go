// Package spapi is a small client for the marketplace selling partner API:
// reports, inbound shipments and order financial events.
package spapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultEndpoint = "https://sellingpartnerapi-eu.amazon.com"
	DefaultTokenURL = "https://api.amazon.com/auth/o2/token"
	// UK marketplace
	DefaultMarketplaceID = "A1F83G8C2ARO7P"
)

var apiCallsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "spapi_calls_total",
		Help: "Calls made to the selling partner API",
	},
	[]string{"endpoint", "status"}, // status=success/retry/failure
)

// Config holds the client settings
type Config struct {
	Endpoint      string
	TokenURL      string
	ClientID      string
	ClientSecret  string
	RefreshToken  string
	MarketplaceID string
	Rate          float64 // requests per second
	Burst         int
	MaxAttempts   int // for idempotent GETs
	HTTPClient    *http.Client
	Logger        *zap.Logger
}

// APIError is a non-2xx response
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: http %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *APIError) HTTPStatus() int      { return e.StatusCode }
func (e *APIError) ResponseBody() string { return e.Body }

// Client talks to the API. Every call, including token refreshes, waits on
// one shared rate limiter.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// New creates a client, applying defaults to unset fields
func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.MarketplaceID == "" {
		cfg.MarketplaceID = DefaultMarketplaceID
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = max(1, int(cfg.Rate))
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	return &Client{
		cfg:     cfg,
		http:    cfg.HTTPClient,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		logger:  cfg.Logger,
		now:     time.Now,
	}
}

// MarketplaceID is the marketplace requests are scoped to
func (c *Client) MarketplaceID() string { return c.cfg.MarketplaceID }

// ------------------- Access token -------------------

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken exchanges the refresh token, caching the result until a minute
// before it expires.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.cfg.RefreshToken},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		apiCallsTotal.WithLabelValues("token", "failure").Inc()
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		apiCallsTotal.WithLabelValues("token", "failure").Inc()
		return "", &APIError{Method: http.MethodPost, Path: "token", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response has no access_token")
	}
	apiCallsTotal.WithLabelValues("token", "success").Inc()

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	c.token = tr.AccessToken
	c.expiresAt = c.now().Add(ttl - time.Minute)
	return c.token, nil
}

// ------------------- Requests -------------------

// do sends one API request. GETs are retried on network errors, 429 and 5xx
// up to MaxAttempts times, honoring Retry-After. Other methods are sent once.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	endpoint := endpointLabel(path)

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}
	full := c.cfg.Endpoint + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}

	attempts := 1
	if method == http.MethodGet {
		attempts = c.cfg.MaxAttempts
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, method, full, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("x-amz-access-token", token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i+1 < attempts {
				apiCallsTotal.WithLabelValues(endpoint, "retry").Inc()
				if err := c.backoff(ctx, "", i); err != nil {
					return err
				}
			}
			continue
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(raw)}
			if i+1 < attempts {
				apiCallsTotal.WithLabelValues(endpoint, "retry").Inc()
				c.logger.Warn("retrying request", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.Int("attempt", i+1))
				if err := c.backoff(ctx, resp.Header.Get("Retry-After"), i); err != nil {
					return err
				}
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiCallsTotal.WithLabelValues(endpoint, "failure").Inc()
			return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(raw)}
		}
		if readErr != nil {
			return fmt.Errorf("read response: %w", readErr)
		}

		apiCallsTotal.WithLabelValues(endpoint, "success").Inc()
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s response: %w", endpoint, err)
		}
		return nil
	}

	apiCallsTotal.WithLabelValues(endpoint, "failure").Inc()
	return lastErr
}

func (c *Client) backoff(ctx context.Context, retryAfter string, attempt int) error {
	wait := time.Duration(2*(attempt+1)) * time.Second
	if ra := strings.TrimSpace(retryAfter); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			wait = time.Duration(secs) * time.Second
		} else if when, err := http.ParseTime(ra); err == nil {
			wait = time.Until(when)
		}
	}
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func endpointLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/reports/2021-06-30/documents"):
		return "documents"
	case strings.HasPrefix(path, "/reports/"):
		return "reports"
	case strings.HasSuffix(path, "/items"):
		return "shipment_items"
	case strings.HasPrefix(path, "/fba/inbound/"):
		return "shipments"
	case strings.HasPrefix(path, "/finances/"):
		return "financial_events"
	default:
		return "other"
	}
}
