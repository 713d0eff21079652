package ai

import (
	"advisor/internal/adapters/config"
	"advisor/internal/adapters/ratelimit"
)

// NewFromConfig builds the chat backend from configuration.
func NewFromConfig(cfg config.AIConfig) *OpenAIProvider {
	limiter := ratelimit.NewPerMinute("openai", cfg.RateLimitRPM)
	return NewOpenAIProvider(cfg.OpenAIKey, cfg.BaseURL, cfg.RequestTimeout, limiter)
}
