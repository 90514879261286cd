// Package handle implements the HTTP handlers of the analysis server.
package handle

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"calorie-lens/api/internal/analysis"
)

// Analyzer is the part of analyzer.Service the handlers use.
type Analyzer interface {
	Analyze(ctx context.Context, img analysis.ImagePayload) (analysis.Result, error)
	Models(ctx context.Context) ([]string, error)
}

type Handle struct {
	analyzer Analyzer
	cache    *gocache.Cache
	log      *zap.Logger
}

// New builds the handlers. modelsTTL is how long the model list is cached.
func New(a Analyzer, modelsTTL time.Duration, log *zap.Logger) *Handle {
	if log == nil {
		log = zap.NewNop()
	}
	if modelsTTL <= 0 {
		modelsTTL = 10 * time.Minute
	}
	return &Handle{
		analyzer: a,
		cache:    gocache.New(modelsTTL, 2*modelsTTL),
		log:      log,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// MethodNotAllowed answers 405 with a JSON body.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

// NotFound answers 404 with a JSON body.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not found")
}
