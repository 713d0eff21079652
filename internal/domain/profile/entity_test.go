package profile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor/pkg/errors"
)

const growthProfile = `{
  "client_budget": "$1,000,000",
  "investment_timeline_years": 15,
  "risk_tolerance_level": 7,
  "sector_preferences": "Technology",
  "investment_strategy": "Growth"
}`

func TestParse(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		p, err := Parse(growthProfile)
		require.NoError(t, err)
		assert.Equal(t, "$1,000,000", p.ClientBudget)
		assert.Equal(t, 15, p.InvestmentTimelineYears)
		assert.Equal(t, 7, p.RiskToleranceLevel)
		assert.Equal(t, "Technology", p.SectorPreferences)
		assert.Equal(t, "Growth", p.InvestmentStrategy)
	})

	t.Run("fenced block", func(t *testing.T) {
		p, err := Parse("```json\n" + growthProfile + "\n```")
		require.NoError(t, err)
		assert.Equal(t, 15, p.InvestmentTimelineYears)
	})

	t.Run("surrounding prose", func(t *testing.T) {
		p, err := Parse("Here is the profile:\n" + growthProfile + "\nLet me know.")
		require.NoError(t, err)
		assert.Equal(t, 7, p.RiskToleranceLevel)
	})

	t.Run("no object", func(t *testing.T) {
		_, err := Parse("I could not determine a budget.")
		assert.ErrorIs(t, err, errors.ErrMalformedOutput)
	})

	t.Run("wrong field type", func(t *testing.T) {
		_, err := Parse(`{"client_budget": "$10", "investment_timeline_years": "ten", "risk_tolerance_level": 3}`)
		assert.ErrorIs(t, err, errors.ErrMalformedOutput)
	})

	t.Run("invalid risk level", func(t *testing.T) {
		_, err := Parse(`{"client_budget": "$10", "investment_timeline_years": 5, "risk_tolerance_level": 11}`)
		require.Error(t, err)

		var verr *errors.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "risk_tolerance_level", verr.Field)
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})
}

func TestValidate(t *testing.T) {
	base := Profile{ClientBudget: "$5000", InvestmentTimelineYears: 3, RiskToleranceLevel: 5}

	tests := []struct {
		name   string
		mutate func(p *Profile)
		field  string
	}{
		{"valid", func(p *Profile) {}, ""},
		{"empty budget", func(p *Profile) { p.ClientBudget = "  " }, "client_budget"},
		{"zero timeline", func(p *Profile) { p.InvestmentTimelineYears = 0 }, "investment_timeline_years"},
		{"risk below range", func(p *Profile) { p.RiskToleranceLevel = 0 }, "risk_tolerance_level"},
		{"risk at max", func(p *Profile) { p.RiskToleranceLevel = 10 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			err := p.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *errors.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestBudget(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"$1,000,000", "1000000"},
		{"1 million", "1000000"},
		{"$2.5M", "2500000"},
		{"500k", "500000"},
		{"1.5 billion", "1500000000"},
		{"USD 75,000", "75000"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Profile{ClientBudget: tt.in}.Budget()
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}

	_, err := Profile{ClientBudget: "a lot"}.Budget()
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = Profile{ClientBudget: "5 zillion"}.Budget()
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestStringRoundTrips(t *testing.T) {
	p, err := Parse(growthProfile)
	require.NoError(t, err)

	again, err := Parse(p.String())
	require.NoError(t, err)
	assert.Equal(t, p, again)
}
