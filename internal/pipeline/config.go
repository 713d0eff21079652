package pipeline

import (
	"time"

	"advisor/internal/adapters/config"
	"advisor/pkg/errors"
)

// Config carries the per-stage settings the orchestrator needs.
type Config struct {
	Models           map[Stage]string
	Turns            map[Stage]int
	StageTimeout     time.Duration // 0 leaves a stage unbounded
	ContextWarnBytes int           // log a warning once the accumulated context grows past this
}

// ConfigFrom maps application settings onto the stage table.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Models: map[Stage]string{
			StageProfile:                cfg.AI.ProfileModel,
			StageMarketResearch:         cfg.AI.ResearchModel,
			StageQuantitativeVetting:    cfg.AI.AnalystModel,
			StageQualitativeRiskVetting: cfg.AI.RiskModel,
			StagePortfolioAllocation:    cfg.AI.StrategistModel,
			StageReportGeneration:       cfg.AI.ReportModel,
		},
		Turns: map[Stage]int{
			StageProfile:                cfg.Pipeline.ProfileTurns,
			StageMarketResearch:         cfg.Pipeline.ResearchTurns,
			StageQuantitativeVetting:    cfg.Pipeline.QuantitativeTurns,
			StageQualitativeRiskVetting: cfg.Pipeline.QualitativeTurns,
			StagePortfolioAllocation:    cfg.Pipeline.AllocationTurns,
			StageReportGeneration:       cfg.Pipeline.ReportTurns,
		},
		StageTimeout:     cfg.Pipeline.StageTimeout,
		ContextWarnBytes: cfg.Pipeline.ContextWarnBytes,
	}
}

// DefaultTurns are the turn budgets used when nothing overrides them.
func DefaultTurns() map[Stage]int {
	return map[Stage]int{
		StageProfile:                20,
		StageMarketResearch:         40,
		StageQuantitativeVetting:    100,
		StageQualitativeRiskVetting: 100,
		StagePortfolioAllocation:    60,
		StageReportGeneration:       30,
	}
}

// Validate checks that every stage has a model and a positive turn budget.
func (c Config) Validate() error {
	var errs errors.MultiError
	for _, d := range definitions {
		if c.Models[d.Stage] == "" {
			errs.Add(errors.NewValidationError("model."+string(d.Stage), "must not be empty", ""))
		}
		if c.Turns[d.Stage] <= 0 {
			errs.Add(errors.NewValidationError("turns."+string(d.Stage), "must be positive", c.Turns[d.Stage]))
		}
	}
	if c.StageTimeout < 0 {
		errs.Add(errors.NewValidationError("stage_timeout", "must not be negative", c.StageTimeout))
	}
	return errs.ToError()
}
