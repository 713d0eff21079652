package ai

import (
	"context"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"advisor/pkg/errors"
)

// Preflight verifies the credential and that every model is reachable
// before any stage spends tokens.
func (p *OpenAIProvider) Preflight(ctx context.Context, models []string) error {
	client := openai.NewClient(
		option.WithAPIKey(p.apiKey),
		option.WithBaseURL(p.baseURL+"/"),
		option.WithHTTPClient(p.httpClient),
		option.WithMaxRetries(0),
	)

	for _, model := range models {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}

		if _, err := client.Models.Get(ctx, model); err != nil {
			var apiErr *openai.Error
			if errors.As(err, &apiErr) {
				switch apiErr.StatusCode {
				case http.StatusUnauthorized, http.StatusForbidden:
					return errors.Wrapf(errors.ErrConfig, "openai credential rejected (%d)", apiErr.StatusCode)
				case http.StatusNotFound:
					return errors.Wrapf(errors.ErrConfig, "openai model %s is not available", model)
				}
			}
			return errors.Wrapf(errors.ErrUnavailable, "openai preflight for %s: %v", model, err)
		}
	}

	return nil
}
