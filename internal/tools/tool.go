package tools

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"advisor/pkg/errors"
)

// Tool represents a callable capability exposed to agents.
type Tool interface {
	// Name returns the unique tool identifier.
	Name() string
	// Description returns a short human-readable summary.
	Description() string
	// Parameters returns the JSON schema of the arguments.
	Parameters() map[string]interface{}
	// Execute performs the tool's action. Failures are reported in the Result.
	Execute(ctx context.Context, args json.RawMessage) Result
}

// HandlerFunc is the function signature for tool handlers.
type HandlerFunc func(ctx context.Context, args json.RawMessage) Result

// FunctionTool is a simple Tool implementation backed by a handler function.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]interface{}
	handler     HandlerFunc
}

// New creates a new function-backed Tool.
func New(name, description string, parameters map[string]interface{}, handler HandlerFunc) Tool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		handler:     handler,
	}
}

// Typed creates a Tool whose arguments are decoded into T before the handler runs.
// Undecodable arguments become an invalid_input result.
func Typed[T any](name, description string, parameters map[string]interface{}, fn func(ctx context.Context, args T) Result) Tool {
	return New(name, description, parameters, func(ctx context.Context, raw json.RawMessage) Result {
		var args T
		if len(strings.TrimSpace(string(raw))) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return Fail(KindInvalidInput, "invalid arguments for %s: %v", name, err)
			}
		}
		return fn(ctx, args)
	})
}

// Name returns the tool identifier.
func (t *FunctionTool) Name() string { return t.name }

// Description returns a human description of the tool.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the argument schema.
func (t *FunctionTool) Parameters() map[string]interface{} {
	if t.parameters == nil {
		return Object(nil)
	}
	return t.parameters
}

// Execute runs the underlying handler.
func (t *FunctionTool) Execute(ctx context.Context, args json.RawMessage) Result {
	if t.handler == nil {
		return Fail(KindConfig, "tool %s has no handler", t.name)
	}
	return t.handler(ctx, args)
}

// Property describes one argument in a tool schema.
type Property struct {
	Name        string
	Type        string
	Description string
	Enum        []string
	Optional    bool
}

// Object builds a JSON schema object from properties. Properties are
// required unless marked Optional.
func Object(props []Property) map[string]interface{} {
	properties := map[string]interface{}{}
	required := []string{}
	for _, p := range props {
		typ := p.Type
		if typ == "" {
			typ = "string"
		}
		prop := map[string]interface{}{
			"type":        typ,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if !p.Optional {
			required = append(required, p.Name)
		}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// NormalizeTicker upper-cases and trims a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

var tickerPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,9}$`)

// ParseTicker normalizes ticker and rejects anything that is not a plain
// exchange symbol such as "AAPL" or "BRK.B".
func ParseTicker(ticker string) (string, error) {
	t := NormalizeTicker(ticker)
	if !tickerPattern.MatchString(t) || strings.Contains(t, "..") {
		return "", errors.NewValidationError("ticker", "not a valid ticker symbol", ticker)
	}
	return t, nil
}

// SplitList splits a comma separated list, trimming blanks.
func SplitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
