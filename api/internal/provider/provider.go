// Package provider defines the contract of an external multimodal inference
// service. Implementations live in subpackages.
package provider

import (
	"context"

	"calorie-lens/api/internal/analysis"
)

// Provider turns an instruction plus an image into free-form text.
//
// Generate makes a single attempt and classifies failures as
// *analysis.TransportError, *analysis.ProviderHTTPError or
// analysis.ErrUnexpectedResponseFormat.
type Provider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, instruction string, img analysis.ImagePayload) (string, error)
}

// ModelLister is implemented by providers that can enumerate their models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}
