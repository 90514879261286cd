// Package analyzer runs one analysis: instruction plus image to the provider,
// provider text through the normalizer.
package analyzer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"calorie-lens/api/internal/analysis"
	"calorie-lens/api/internal/metrics"
	"calorie-lens/api/internal/provider"
)

type Service struct {
	p       provider.Provider
	log     *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

type Option func(*Service)

// WithTimeout bounds each provider call. Zero means no bound beyond the
// caller's context.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(p provider.Provider, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{p: p, log: log}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Analyze makes a single provider attempt. A response that is not valid
// structured data is a ParseFailure result, not an error.
func (s *Service) Analyze(ctx context.Context, img analysis.ImagePayload) (res analysis.Result, err error) {
	defer func() { s.metrics.ObserveOutcome(outcome(res, err)) }()

	if img.Empty() {
		return nil, analysis.ErrMissingImagePayload
	}
	if s.p == nil {
		return nil, analysis.ErrMisconfigured
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := s.p.Generate(ctx, Instruction, img)
	s.metrics.ObserveProvider(s.p.Name(), time.Since(start))
	if err != nil {
		s.log.Warn("provider call failed",
			zap.String("provider", s.p.Name()),
			zap.String("model", s.p.Model()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	res = analysis.Normalize(raw)
	if _, ok := res.(analysis.ParseFailure); ok {
		s.log.Info("provider text was not structured", zap.Int("bytes", len(raw)))
	}
	return res, nil
}

// Models lists provider models when the provider supports it.
func (s *Service) Models(ctx context.Context) ([]string, error) {
	if s.p == nil {
		return nil, analysis.ErrMisconfigured
	}
	ml, ok := s.p.(provider.ModelLister)
	if !ok {
		return []string{s.p.Model()}, nil
	}
	return ml.ListModels(ctx)
}

func outcome(res analysis.Result, err error) string {
	if errors.Is(err, analysis.ErrMissingImagePayload) {
		return metrics.OutcomeBadRequest
	}
	if err != nil {
		return metrics.OutcomeProviderError
	}
	switch res.(type) {
	case analysis.ItemizedResult:
		return metrics.OutcomeItemized
	case analysis.ParseFailure:
		return metrics.OutcomeParseFailure
	default:
		return metrics.OutcomeEmpty
	}
}
