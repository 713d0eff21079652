package search

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"advisor/pkg/errors"
)

// GoogleURL is the Custom Search JSON API endpoint.
const GoogleURL = "https://www.googleapis.com/customsearch/v1"

// Google queries a Programmable Search Engine.
type Google struct {
	apiKey  string
	cx      string
	baseURL string
	client  *http.Client
}

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

func (g *Google) Name() string { return "google" }

func (g *Google) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 || k > 10 {
		k = 10 // API maximum per page
	}

	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.cx)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(k))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "build google request: %v", err)
	}

	var raw googleResponse
	if err := doJSON(g.client, req, "Google Search API", &raw); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(raw.Items))
	for _, it := range raw.Items {
		out = append(out, Result{Title: it.Title, URL: it.Link, Snippet: it.Snippet})
	}
	return out, nil
}
