package handle

import (
	"net/http"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const modelsCacheKey = "models"

type modelsResponse struct {
	AvailableModels []string `json:"availableModels"`
}

// Models handles GET /api/models. Results are cached; failures are not.
func (h *Handle) Models(w http.ResponseWriter, r *http.Request) {
	if v, ok := h.cache.Get(modelsCacheKey); ok {
		writeJSON(w, http.StatusOK, modelsResponse{AvailableModels: v.([]string)})
		return
	}
	models, err := h.analyzer.Models(r.Context())
	if err != nil {
		h.log.Warn("list models failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if models == nil {
		models = []string{}
	}
	h.cache.Set(modelsCacheKey, models, gocache.DefaultExpiration)
	writeJSON(w, http.StatusOK, modelsResponse{AvailableModels: models})
}
