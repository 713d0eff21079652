package search

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"advisor/pkg/errors"
)

// SerperURL is the serper.dev search endpoint.
const SerperURL = "https://google.serper.dev/search"

// Serper queries Google through serper.dev.
type Serper struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

func (s *Serper) Name() string { return "serper" }

func (s *Serper) Search(ctx context.Context, query string, k int) ([]Result, error) {
	body, err := json.Marshal(map[string]interface{}{"q": query, "num": k})
	if err != nil {
		return nil, errors.Wrap(err, "marshal serper payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "build serper request: %v", err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var raw serperResponse
	if err := doJSON(s.client, req, "Serper", &raw); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(raw.Organic))
	for i, it := range raw.Organic {
		if k > 0 && i >= k {
			break
		}
		out = append(out, Result{Title: it.Title, URL: it.Link, Snippet: it.Snippet})
	}
	return out, nil
}
