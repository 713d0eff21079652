package ai

import "context"

// Provider defines the metadata contract of a model backend.
type Provider interface {
	Name() string

	// GetModel returns metadata for a specific model.
	GetModel(ctx context.Context, model string) (ModelInfo, error)

	// ListModels returns the list of models with known pricing.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// SupportsTools indicates whether the provider supports tool/function calling.
	SupportsTools() bool
}

// ModelInfo describes the capabilities and pricing of a model.
type ModelInfo struct {
	Provider        ProviderName
	Name            string  // Provider-specific model identifier
	Family          string  // Family/category name (e.g., "gpt-4o")
	MaxTokens       int     // Maximum context length
	InputCostPer1K  float64 // USD per 1K input tokens
	OutputCostPer1K float64 // USD per 1K output tokens
	SupportsTools   bool    // Whether tool calling is supported
}

// ProviderName represents an AI provider identifier
type ProviderName string

const ProviderNameOpenAI ProviderName = "openai"

// String returns the string representation of the provider name
func (p ProviderName) String() string {
	return string(p)
}
