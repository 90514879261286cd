// Package mock is a canned provider for local development.
package mock

import (
	"context"
	"time"

	"calorie-lens/api/internal/analysis"
)

// Response is what the provider answers, fenced the way real models often do.
const Response = "```json\n" + `{
  "items": [
    {"name": "Pizza slice", "portion": "1 slice", "calories_range": "250-300"}
  ],
  "total_calories_range": "250-300",
  "confidence": "medium"
}` + "\n```"

type Provider struct {
	Delay time.Duration
}

func New(delay time.Duration) *Provider { return &Provider{Delay: delay} }

func (p *Provider) Name() string  { return "mock" }
func (p *Provider) Model() string { return "mock" }

func (p *Provider) Generate(ctx context.Context, _ string, _ analysis.ImagePayload) (string, error) {
	t := time.NewTimer(p.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return "", &analysis.TransportError{Err: ctx.Err()}
	case <-t.C:
		return Response, nil
	}
}

func (p *Provider) ListModels(context.Context) ([]string, error) {
	return []string{"models/mock"}, nil
}
