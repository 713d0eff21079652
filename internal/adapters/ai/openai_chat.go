package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"advisor/pkg/errors"
)

const defaultMaxOutputTokens = 4096

// Chat sends a chat completion request to the OpenAI API.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if p.apiKey == "" {
		return nil, errors.Wrap(errors.ErrConfig, "openai API key not configured")
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(toOpenAIRequest(req))
	if err != nil {
		return nil, errors.Wrap(err, "marshal openai request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create HTTP request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "send openai request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read openai response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, respBody)
	}

	var openAIResp openAIResponse
	if err := json.Unmarshal(respBody, &openAIResp); err != nil {
		return nil, errors.Wrap(err, "unmarshal openai response")
	}

	return fromOpenAIResponse(openAIResp)
}

func toOpenAIRequest(req ChatRequest) openAIRequest {
	out := openAIRequest{
		Model:     req.Model,
		MaxTokens: req.MaxOutputTokens,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = defaultMaxOutputTokens
	}

	for _, msg := range req.Messages {
		m := openAIMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			Name:       msg.Name,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openAIToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: openAIFunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out.Messages = append(out.Messages, m)
	}

	for _, tool := range req.Tools {
		out.Tools = append(out.Tools, openAITool{
			Type: tool.Type,
			Function: openAIFunctionDef{
				Name:        tool.Function.Name,
				Description: tool.Function.Description,
				Parameters:  tool.Function.Parameters,
			},
		})
	}

	// tool_choice is only valid alongside tools
	if len(out.Tools) > 0 && req.ToolChoice != "" {
		out.ToolChoice = string(req.ToolChoice)
	}
	if req.JSONOutput {
		out.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	return out
}

// fromOpenAIResponse keeps the first choice; the runner never asks for more than one.
func fromOpenAIResponse(r openAIResponse) (*ChatResponse, error) {
	if len(r.Choices) == 0 {
		return nil, errors.Wrapf(errors.ErrMalformedOutput, "openai response %s has no choices", r.ID)
	}
	choice := r.Choices[0]

	msg := Message{
		Role:    MessageRole(choice.Message.Role),
		Content: choice.Message.Content,
	}
	for _, tc := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID: tc.ID,
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}

	finish := FinishReasonStop
	switch choice.FinishReason {
	case "length":
		finish = FinishReasonLength
	case "tool_calls", "function_call":
		finish = FinishReasonToolCalls
	}

	return &ChatResponse{
		ID:           r.ID,
		Model:        r.Model,
		Message:      msg,
		FinishReason: finish,
		Usage: Usage{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
		},
	}, nil
}

func statusError(status int, body []byte) error {
	kind := errors.ErrExternal
	switch {
	case status == http.StatusTooManyRequests:
		kind = errors.ErrRateLimitExceeded
	case status >= 500:
		kind = errors.ErrUnavailable
	}

	var errResp openAIErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return errors.Wrapf(kind, "openai API error (%d): %s - %s", status, errResp.Error.Type, errResp.Error.Message)
	}
	return errors.Wrapf(kind, "openai API error (%d): %s", status, string(body))
}
