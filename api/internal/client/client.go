// Package client calls the analysis server on behalf of a user.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"calorie-lens/api/internal/analysis"
	"calorie-lens/api/internal/auth"
)

const (
	analyzePath = "/api/analyze-food"
	modelsPath  = "/api/models"
)

type Client struct {
	baseURL string
	gate    *auth.Gate
	httpc   *http.Client
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpc = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.log = l }
}

// New returns a client for the server at baseURL. The gate supplies the
// credential for every request.
func New(baseURL string, gate *auth.Gate, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		gate:    gate,
		httpc:   &http.Client{Timeout: 150 * time.Second},
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Analyze submits img once. The 200 body is trusted as the server's
// normalized shape and is not re-parsed.
func (c *Client) Analyze(ctx context.Context, img analysis.ImagePayload) (analysis.Result, error) {
	if img.Empty() {
		return nil, analysis.ErrMissingImagePayload
	}
	payload, err := json.Marshal(map[string]string{
		"imageBase64": base64.StdEncoding.EncodeToString(img.Data),
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return analysis.FromWire(body)
}

// Models returns the provider models the server reports.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+modelsPath, nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var out struct {
		AvailableModels []string `json:"availableModels"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrUnexpectedResponseFormat, err)
	}
	return out.AvailableModels, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if err := c.gate.AttachHeader(req.Context(), req); err != nil {
		return nil, err
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		c.log.Debug("request failed", zap.String("request_id", reqID), zap.Error(err))
		return nil, &analysis.TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &analysis.TransportError{Err: err}
	}
	c.log.Debug("response",
		zap.String("request_id", reqID),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, analysis.ErrUnauthorized
	case resp.StatusCode == http.StatusBadRequest:
		if msg := errorMessage(body); msg != "" {
			return nil, fmt.Errorf("%w: %s", analysis.ErrMissingImagePayload, msg)
		}
		return nil, analysis.ErrMissingImagePayload
	default:
		return nil, &analysis.ProviderHTTPError{Status: resp.StatusCode, Details: decodeDetails(body)}
	}
}

func decodeDetails(raw []byte) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

func errorMessage(raw []byte) string {
	s, _ := decodeDetails(raw)["error"].(string)
	return s
}
