package alphavantage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"advisor/internal/adapters/config"
	"advisor/internal/adapters/ratelimit"
	"advisor/pkg/errors"
	"advisor/pkg/logger"
)

// Client is a minimal Alpha Vantage REST client.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *ratelimit.Limiter
	log     *logger.Logger
}

// NewClient creates a client. An empty key is accepted; every call then
// fails with ErrConfig so tools can surface it to the model.
func NewClient(apiKey, baseURL string, httpClient *http.Client, limiter *ratelimit.Limiter) *Client {
	if baseURL == "" {
		baseURL = "https://www.alphavantage.co/query"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    httpClient,
		limiter: limiter,
		log:     logger.Get().With("component", "alphavantage"),
	}
}

// NewFromConfig builds a rate limited client from market data settings.
func NewFromConfig(cfg config.MarketDataConfig) *Client {
	return NewClient(
		cfg.AlphaVantageKey,
		cfg.BaseURL,
		nil,
		ratelimit.NewPerMinute("alphavantage", cfg.RateLimitRPM),
	)
}

// upstreamNotice is the envelope Alpha Vantage uses for throttling and errors,
// always delivered with HTTP 200.
type upstreamNotice struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

// query calls one API function and decodes the body into dest.
func (c *Client) query(ctx context.Context, function, symbol string, extra url.Values, dest interface{}) error {
	if c.apiKey == "" {
		return errors.Wrap(errors.ErrConfig, "AV_API_KEY is not set in environment variables")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	params := url.Values{}
	for k, v := range extra {
		params[k] = v
	}
	params.Set("function", function)
	params.Set("symbol", symbol)
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "build request: %v", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "alphavantage %s %s: %v", function, symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "read alphavantage response: %v", err)
	}

	c.log.Debugw("Alpha Vantage call",
		"function", function,
		"symbol", symbol,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return errors.Wrapf(errors.ErrUnavailable, "alphavantage HTTP %d", resp.StatusCode)
		}
		return errors.Wrapf(errors.ErrExternal, "alphavantage HTTP %d", resp.StatusCode)
	}

	var notice upstreamNotice
	if err := json.Unmarshal(body, &notice); err == nil {
		switch {
		case notice.ErrorMessage != "":
			return errors.Wrapf(errors.ErrNotFound, "alphavantage %s %s: %s", function, symbol, notice.ErrorMessage)
		case notice.Note != "":
			return errors.Wrapf(errors.ErrRateLimitExceeded, "alphavantage: %s", notice.Note)
		case notice.Information != "" && isThrottle(notice.Information):
			return errors.Wrapf(errors.ErrRateLimitExceeded, "alphavantage: %s", notice.Information)
		case notice.Information != "":
			return errors.Wrapf(errors.ErrExternal, "alphavantage: %s", notice.Information)
		}
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return errors.Wrapf(errors.ErrExternal, "decode alphavantage %s: %v", function, err)
	}
	return nil
}

func isThrottle(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "call frequency") || strings.Contains(msg, "requests per")
}
