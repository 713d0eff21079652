package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor/pkg/errors"
)

func stub(name string) Tool {
	return New(name, "stub", nil, func(context.Context, json.RawMessage) Result { return OK(name) })
}

type suffix string

func (s suffix) Wrap(t Tool) Tool {
	return New(t.Name(), t.Description(), t.Parameters(), func(ctx context.Context, args json.RawMessage) Result {
		res := t.Execute(ctx, args)
		res.Payload += string(s)
		return res
	})
}

func TestRegistry_RegisterRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(stub(WebSearch), stub(MarkdownGenerator)))

	err := reg.Register(stub(WebSearch))
	assert.True(t, errors.Is(err, errors.ErrConfig))
	assert.Equal(t, []string{WebSearch, MarkdownGenerator}, reg.List())
}

func TestRegistry_SelectKeepsOrder(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(stub(WebSearch), stub(StockFundamentals)))

	got, err := reg.Select(StockFundamentals, WebSearch)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, StockFundamentals, got[0].Name())

	_, err = reg.Select(FilingRiskSearch)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRegistry_Verify(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(stub(WebSearch)))

	err := reg.Verify([]Definition{{Name: WebSearch}, {Name: PortfolioCorrelation}, {Name: MarkdownGenerator}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), PortfolioCorrelation+", "+MarkdownGenerator)

	assert.NoError(t, reg.Verify([]Definition{{Name: WebSearch}}))
}

func TestChain_FirstIsOutermost(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(stub("t")))
	reg.Wrap(suffix("-outer"), nil, suffix("-inner"))

	tool, ok := reg.Get("t")
	require.True(t, ok)
	assert.Equal(t, "t-inner-outer", tool.Execute(context.Background(), nil).Payload)
}

func TestParseTicker(t *testing.T) {
	for _, ok := range []string{"aapl", " MSFT ", "BRK.B", "RDS-A", "7203"} {
		got, err := ParseTicker(ok)
		require.NoError(t, err, ok)
		assert.Equal(t, NormalizeTicker(ok), got)
	}

	for _, bad := range []string{"", "../victim", "..", "a/b", `a\b`, ".HIDDEN", "A..B", "TOOLONGTICKER1", "AA PL"} {
		_, err := ParseTicker(bad)
		assert.True(t, errors.Is(err, errors.ErrInvalidInput), bad)
	}
}
