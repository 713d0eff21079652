package search

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	adapter "advisor/internal/adapters/search"
	"advisor/internal/tools"
	"advisor/pkg/errors"
)

type fakeSearcher struct {
	results []adapter.Result
	err     error
	gotK    int
}

func (f *fakeSearcher) Name() string { return "fake" }

func (f *fakeSearcher) Search(_ context.Context, _ string, k int) ([]adapter.Result, error) {
	f.gotK = k
	return f.results, f.err
}

func TestWebSearch(t *testing.T) {
	args := json.RawMessage(`{"query":"consumer staples 2025"}`)

	t.Run("results", func(t *testing.T) {
		f := &fakeSearcher{results: []adapter.Result{{Title: "Staples rally", Snippet: "Defensive names up", URL: "https://x"}}}
		res := NewWebSearchTool(f, 0, nil).Execute(context.Background(), args)
		assert.False(t, res.IsError())
		assert.Contains(t, res.Payload, "Result 1. Title: Staples rally. Snippet: Defensive names up")
		assert.Equal(t, 5, f.gotK)
	})

	t.Run("empty", func(t *testing.T) {
		res := NewWebSearchTool(&fakeSearcher{}, 5, nil).Execute(context.Background(), args)
		assert.Equal(t, "Search for 'consumer staples 2025' returned no relevant results.", res.Text())
	})

	t.Run("missing credential", func(t *testing.T) {
		setupErr := errors.Wrap(errors.ErrConfig, "GOOGLE_API_KEY is not set in environment variables")
		res := NewWebSearchTool(nil, 5, setupErr).Execute(context.Background(), args)
		assert.Equal(t, tools.KindConfig, res.Kind)
		assert.Contains(t, res.Text(), "ERROR: ")
		assert.Contains(t, res.Text(), "GOOGLE_API_KEY")
	})

	t.Run("provider failure", func(t *testing.T) {
		f := &fakeSearcher{err: errors.Wrap(errors.ErrUnavailable, "dial tcp")}
		res := NewWebSearchTool(f, 5, nil).Execute(context.Background(), args)
		assert.Equal(t, tools.KindTransient, res.Kind)
	})

	t.Run("blank query", func(t *testing.T) {
		res := NewWebSearchTool(&fakeSearcher{}, 5, nil).Execute(context.Background(), json.RawMessage(`{"query":"  "}`))
		assert.Equal(t, tools.KindInvalidInput, res.Kind)
	})
}
