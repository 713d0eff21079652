package ai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"advisor/internal/adapters/ratelimit"
	"advisor/pkg/errors"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

var _ ChatProvider = (*OpenAIProvider)(nil)

// OpenAIProvider talks to the OpenAI chat completions API.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	models     []ModelInfo
}

// NewOpenAIProvider creates a new OpenAI provider instance.
// An empty baseURL selects the public API.
func NewOpenAIProvider(apiKey, baseURL string, timeout time.Duration, limiter *ratelimit.Limiter) *OpenAIProvider {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		models:     openAIModels(),
	}
}

// Name returns provider name.
func (p *OpenAIProvider) Name() string { return ProviderNameOpenAI.String() }

// GetModel returns model info by name.
func (p *OpenAIProvider) GetModel(_ context.Context, model string) (ModelInfo, error) {
	for _, m := range p.models {
		if strings.EqualFold(m.Name, model) {
			return m, nil
		}
	}
	return ModelInfo{}, errors.Wrapf(errors.ErrNotFound, "openai model %s not found", model)
}

// ListModels lists models with known pricing.
func (p *OpenAIProvider) ListModels(_ context.Context) ([]ModelInfo, error) {
	return p.models, nil
}

// SupportsTools indicates tool calling support.
func (p *OpenAIProvider) SupportsTools() bool { return true }

func openAIModels() []ModelInfo {
	return []ModelInfo{
		{
			Provider:        ProviderNameOpenAI,
			Name:            "gpt-4o-mini",
			Family:          "gpt-4o",
			MaxTokens:       128000,
			InputCostPer1K:  0.00015,
			OutputCostPer1K: 0.0006,
			SupportsTools:   true,
		},
		{
			Provider:        ProviderNameOpenAI,
			Name:            "gpt-4o",
			Family:          "gpt-4o",
			MaxTokens:       128000,
			InputCostPer1K:  0.0025,
			OutputCostPer1K: 0.01,
			SupportsTools:   true,
		},
		{
			Provider:        ProviderNameOpenAI,
			Name:            "gpt-4.1",
			Family:          "gpt-4.1",
			MaxTokens:       1047576,
			InputCostPer1K:  0.002,
			OutputCostPer1K: 0.008,
			SupportsTools:   true,
		},
		{
			Provider:        ProviderNameOpenAI,
			Name:            "gpt-4.1-mini",
			Family:          "gpt-4.1",
			MaxTokens:       1047576,
			InputCostPer1K:  0.0004,
			OutputCostPer1K: 0.0016,
			SupportsTools:   true,
		},
	}
}
