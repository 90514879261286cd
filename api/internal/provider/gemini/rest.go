// Package gemini talks to the Gemini generateContent API, either over plain
// REST or through the official SDK.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"calorie-lens/api/internal/analysis"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// Engine calls the REST API directly.
type Engine struct {
	APIKey  string
	model   string
	BaseURL string
	httpc   *http.Client
}

type Option func(*Engine)

// WithHTTPClient replaces the default client, e.g. to set a timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.httpc = c }
}

// WithBaseURL points the engine at another endpoint.
func WithBaseURL(u string) Option {
	return func(e *Engine) {
		if u = strings.TrimSpace(u); u != "" {
			e.BaseURL = strings.TrimRight(u, "/")
		}
	}
}

func New(key, model string, opts ...Option) *Engine {
	e := &Engine{
		APIKey:  strings.TrimSpace(key),
		model:   strings.TrimSpace(model),
		BaseURL: DefaultBaseURL,
		httpc:   &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Name() string  { return "gemini" }
func (e *Engine) Model() string { return e.model }

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content *content `json:"content"`
	} `json:"candidates"`
}

// Generate sends the instruction and the inlined image in one request.
func (e *Engine) Generate(ctx context.Context, instruction string, img analysis.ImagePayload) (string, error) {
	if e.APIKey == "" {
		return "", fmt.Errorf("%w: GEMINI_API_KEY is empty", analysis.ErrMisconfigured)
	}
	mime := img.MediaType
	if mime == "" {
		mime = analysis.MediaTypeJPEG
	}
	body := generateRequest{Contents: []content{{
		Parts: []part{
			{Text: instruction},
			{InlineData: &inlineData{MimeType: mime, Data: base64.StdEncoding.EncodeToString(img.Data)}},
		},
	}}}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", e.BaseURL, url.PathEscape(e.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.APIKey)

	raw, err := e.do(req)
	if err != nil {
		return "", err
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return "", fmt.Errorf("gemini: %w: %v", analysis.ErrUnexpectedResponseFormat, err)
	}
	if txt := firstCandidateText(gr); txt != "" {
		return txt, nil
	}
	return "", fmt.Errorf("gemini: %w: no candidate text; body=%s", analysis.ErrUnexpectedResponseFormat, truncateBytes(raw, 512))
}

// ListModels returns model names that support generateContent.
func (e *Engine) ListModels(ctx context.Context) ([]string, error) {
	if e.APIKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is empty", analysis.ErrMisconfigured)
	}
	var (
		out   []string
		token string
	)
	for {
		q := url.Values{}
		if token != "" {
			q.Set("pageToken", token)
		}
		endpoint := e.BaseURL + "/v1beta/models"
		if len(q) > 0 {
			endpoint += "?" + q.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("x-goog-api-key", e.APIKey)

		raw, err := e.do(req)
		if err != nil {
			return nil, err
		}
		var page struct {
			Models []struct {
				Name                       string   `json:"name"`
				SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
			} `json:"models"`
			NextPageToken string `json:"nextPageToken"`
		}
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("gemini: %w: %v", analysis.ErrUnexpectedResponseFormat, err)
		}
		for _, m := range page.Models {
			if supportsGenerate(m.SupportedGenerationMethods) {
				out = append(out, m.Name)
			}
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		token = page.NextPageToken
	}
}

// do performs req and returns the body of a 2xx response. A failure before
// any response is a TransportError; a non-2xx status is a ProviderHTTPError.
func (e *Engine) do(req *http.Request) ([]byte, error) {
	resp, err := e.httpc.Do(req)
	if err != nil {
		return nil, &analysis.TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &analysis.TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &analysis.ProviderHTTPError{Status: resp.StatusCode, Details: decodeDetails(raw)}
	}
	return raw, nil
}

func firstCandidateText(gr generateResponse) string {
	for _, c := range gr.Candidates {
		if c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			b.WriteString(p.Text)
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			return s
		}
	}
	return ""
}

// decodeDetails returns the JSON error body, or an empty object.
func decodeDetails(raw []byte) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

func supportsGenerate(methods []string) bool {
	for _, m := range methods {
		if m == "generateContent" {
			return true
		}
	}
	return false
}

func truncateBytes(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
