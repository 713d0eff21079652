package profile

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"advisor/pkg/errors"
)

// Profile is the structured client profile extracted by the first stage.
// It is a value type: later stages receive copies and never mutate it.
type Profile struct {
	ClientBudget            string `json:"client_budget"`             // As stated by the client, e.g. "$1,000,000"
	InvestmentTimelineYears int    `json:"investment_timeline_years"` // Holding horizon in years
	RiskToleranceLevel      int    `json:"risk_tolerance_level"`      // 1 (conservative) .. 10 (aggressive)
	SectorPreferences       string `json:"sector_preferences"`        // Free text, may list several sectors
	InvestmentStrategy      string `json:"investment_strategy"`       // Growth, Value, Income, ...
}

const (
	MinRiskTolerance = 1
	MaxRiskTolerance = 10
)

// Parse decodes the profile stage output. Models sometimes wrap the JSON in
// a fenced block or add a sentence around it, so only the outermost object
// is decoded.
func Parse(raw string) (Profile, error) {
	body := extractObject(raw)
	if body == "" {
		return Profile{}, errors.Wrap(errors.ErrMalformedOutput, "profile output contains no JSON object")
	}

	var p Profile
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return Profile{}, errors.Wrapf(errors.ErrMalformedOutput, "decode profile: %v", err)
	}

	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func extractObject(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// Validate reports the first field that breaks the profile contract.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.ClientBudget) == "" {
		return errors.NewValidationError("client_budget", "must not be empty", p.ClientBudget)
	}
	if p.InvestmentTimelineYears <= 0 {
		return errors.NewValidationError("investment_timeline_years", "must be positive", p.InvestmentTimelineYears)
	}
	if p.RiskToleranceLevel < MinRiskTolerance || p.RiskToleranceLevel > MaxRiskTolerance {
		return errors.NewValidationError("risk_tolerance_level", "must be between 1 and 10", p.RiskToleranceLevel)
	}
	return nil
}

var budgetPattern = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)\s*([a-z]*)$`)

var budgetMultipliers = map[string]int64{
	"":         1,
	"k":        1_000,
	"thousand": 1_000,
	"m":        1_000_000,
	"mm":       1_000_000,
	"mn":       1_000_000,
	"million":  1_000_000,
	"b":        1_000_000_000,
	"bn":       1_000_000_000,
	"billion":  1_000_000_000,
}

// Budget converts the free-text budget into an amount in dollars.
func (p Profile) Budget() (decimal.Decimal, error) {
	s := strings.ToLower(strings.TrimSpace(p.ClientBudget))
	s = strings.TrimPrefix(s, "usd")
	s = strings.TrimSuffix(s, "usd")
	s = strings.NewReplacer("$", "", ",", "", "_", "").Replace(s)
	s = strings.TrimSpace(s)

	m := budgetPattern.FindStringSubmatch(s)
	if m == nil {
		return decimal.Zero, errors.NewValidationError("client_budget", "not a recognizable amount", p.ClientBudget)
	}

	mult, ok := budgetMultipliers[m[2]]
	if !ok {
		return decimal.Zero, errors.NewValidationError("client_budget", "unknown magnitude "+strconv.Quote(m[2]), p.ClientBudget)
	}

	amount, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Zero, errors.NewValidationError("client_budget", err.Error(), p.ClientBudget)
	}
	return amount.Mul(decimal.NewFromInt(mult)), nil
}

// String renders the canonical JSON form used in downstream prompts.
func (p Profile) String() string {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
