package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"advisor/internal/adapters/config"
	"advisor/pkg/errors"
)

// Result is one organic search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher runs a web search and returns at most k results.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, k int) ([]Result, error)
}

// NewFromConfig builds the configured provider. A missing credential yields
// an ErrConfig so the calling tool can report it to the model.
func NewFromConfig(cfg config.SearchConfig, client *http.Client) (Searcher, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	switch cfg.Provider {
	case config.SearchProviderSerper:
		if cfg.SerperAPIKey == "" {
			return nil, errors.Wrap(errors.ErrConfig, "SERPER_API_KEY is not set in environment variables")
		}
		return &Serper{apiKey: cfg.SerperAPIKey, baseURL: SerperURL, client: client}, nil
	case config.SearchProviderGoogle, "":
		if cfg.GoogleAPIKey == "" {
			return nil, errors.Wrap(errors.ErrConfig, "GOOGLE_API_KEY is not set in environment variables")
		}
		if cfg.GoogleCSEID == "" {
			return nil, errors.Wrap(errors.ErrConfig, "GOOGLE_CSE_ID is not set in environment variables")
		}
		return &Google{apiKey: cfg.GoogleAPIKey, cx: cfg.GoogleCSEID, baseURL: GoogleURL, client: client}, nil
	default:
		return nil, errors.Wrapf(errors.ErrConfig, "unsupported search provider: %s", cfg.Provider)
	}
}

// doJSON executes req and decodes a JSON body into dest, classifying HTTP failures.
func doJSON(client *http.Client, req *http.Request, provider string, dest interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "%s request: %v", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return statusError(provider, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrapf(errors.ErrExternal, "%s decode response: %v", provider, err)
	}
	return nil
}

func statusError(provider string, status int, body string) error {
	msg := fmt.Sprintf("%s returned HTTP %d (check daily quota): %s", provider, status, body)
	switch {
	case status == http.StatusTooManyRequests:
		return errors.Wrap(errors.ErrRateLimitExceeded, msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.Wrap(errors.ErrConfig, msg)
	case status >= 500:
		return errors.Wrap(errors.ErrUnavailable, msg)
	default:
		return errors.Wrap(errors.ErrExternal, msg)
	}
}
