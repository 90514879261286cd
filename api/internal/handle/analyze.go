package handle

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"calorie-lens/api/internal/analysis"
	"calorie-lens/api/internal/util"
)

const maxBodyBytes = 20 << 20

type analyzeRequest struct {
	ImageBase64 string `json:"imageBase64"`
}

// AnalyzeFood handles POST /api/analyze-food.
func (h *Handle) AnalyzeFood(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "Image is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return
	}
	if strings.TrimSpace(req.ImageBase64) == "" {
		writeError(w, http.StatusBadRequest, "No image provided")
		return
	}
	data, hint, err := util.DecodeBase64MaybeDataURL(req.ImageBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "imageBase64 is not valid base64")
		return
	}

	img := analysis.ImagePayload{Data: data, MediaType: util.PickMIME("", hint, data)}
	res, err := h.analyzer.Analyze(r.Context(), img)
	if err != nil {
		h.writeAnalyzeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis.ToWire(res))
}

func (h *Handle) writeAnalyzeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, analysis.ErrMissingImagePayload) {
		writeError(w, http.StatusBadRequest, "No image provided")
		return
	}

	body := map[string]any{"retryable": analysis.Retryable(err)}

	var (
		pe *analysis.ProviderHTTPError
		te *analysis.TransportError
	)
	switch {
	case errors.Is(err, analysis.ErrMisconfigured):
		body["error"] = "Server configuration error"
		h.log.Error("analysis refused: server misconfigured", zap.Error(err))
	case errors.As(err, &pe):
		body["error"] = "Provider request failed"
		body["status"] = pe.Status
		body["details"] = pe.Details
		if pe.Details == nil {
			body["details"] = map[string]any{}
		}
		h.log.Warn("provider returned an error", zap.Int("status", pe.Status))
	case errors.As(err, &te):
		body["error"] = "Could not reach the provider"
		h.log.Warn("provider unreachable", zap.Error(err))
	case errors.Is(err, analysis.ErrUnexpectedResponseFormat):
		body["error"] = "Unexpected provider response format"
		h.log.Warn("provider response had no content", zap.Error(err))
	default:
		body["error"] = "Analysis failed"
		h.log.Error("analysis failed", zap.Error(err))
	}
	if r.Context().Err() != nil {
		h.log.Info("client went away during analysis", zap.Error(r.Context().Err()))
	}
	writeJSON(w, http.StatusInternalServerError, body)
}
