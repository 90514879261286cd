package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"calorie-lens/api/internal/analyzer"
	"calorie-lens/api/internal/auth"
	"calorie-lens/api/internal/config"
	"calorie-lens/api/internal/handle"
	"calorie-lens/api/internal/httpserver"
	"calorie-lens/api/internal/logger"
	"calorie-lens/api/internal/metrics"
	"calorie-lens/api/internal/provider"
	"calorie-lens/api/internal/provider/gemini"
	"calorie-lens/api/internal/provider/mock"
)

func main() {
	lg := logger.New()
	cfg, err := config.Load()
	if err != nil {
		_ = lg.Init("info")
		lg.Log.Fatal("load config", zap.Error(err))
	}
	if err := lg.Init(cfg.LogLevel); err != nil {
		_ = lg.Init("info")
		lg.Log.Fatal("init logger", zap.Error(err))
	}
	defer func() { _ = lg.Log.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		lg.Log.Fatal("register metrics", zap.Error(err))
	}

	p := newProvider(cfg)
	lg.Log.Info("provider ready", zap.String("provider", p.Name()), zap.String("model", p.Model()))

	svc := analyzer.New(p, lg.Log, analyzer.WithTimeout(cfg.ProviderTimeout), analyzer.WithMetrics(m))
	h := handle.New(svc, cfg.ModelsCacheTTL, lg.Log)
	router := httpserver.NewRouter(h, auth.NewValidator(cfg.AppPassword), m.Handler(), lg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := httpserver.Serve(ctx, srv, 15*time.Second, lg.Log); err != nil {
		lg.Log.Fatal("server", zap.Error(err))
	}
}

func newProvider(cfg *config.Config) provider.Provider {
	switch {
	case cfg.MockProvider:
		return mock.New(1500 * time.Millisecond)
	case cfg.GeminiTransport == config.TransportSDK:
		var opts []option.ClientOption
		if cfg.GeminiBaseURL != "" {
			opts = append(opts, option.WithEndpoint(cfg.GeminiBaseURL))
		}
		return gemini.NewSDK(cfg.GeminiAPIKey, cfg.GeminiModel, opts...)
	default:
		return gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel,
			gemini.WithHTTPClient(&http.Client{Timeout: cfg.ProviderTimeout}),
			gemini.WithBaseURL(cfg.GeminiBaseURL),
		)
	}
}
