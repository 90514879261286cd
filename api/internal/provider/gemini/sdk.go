package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"calorie-lens/api/internal/analysis"
)

// SDKEngine uses the genai client. A client is created per call.
type SDKEngine struct {
	APIKey string
	model  string
	opts   []option.ClientOption
}

func NewSDK(apiKey, model string, opts ...option.ClientOption) *SDKEngine {
	return &SDKEngine{
		APIKey: strings.TrimSpace(apiKey),
		model:  strings.TrimSpace(model),
		opts:   opts,
	}
}

func (e *SDKEngine) Name() string  { return "gemini-sdk" }
func (e *SDKEngine) Model() string { return e.model }

func (e *SDKEngine) client(ctx context.Context) (*genai.Client, error) {
	if e.APIKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is empty", analysis.ErrMisconfigured)
	}
	opts := append([]option.ClientOption{option.WithAPIKey(e.APIKey)}, e.opts...)
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", analysis.ErrMisconfigured, err)
	}
	return cl, nil
}

func (e *SDKEngine) Generate(ctx context.Context, instruction string, img analysis.ImagePayload) (string, error) {
	cl, err := e.client(ctx)
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.model)
	mime := img.MediaType
	if mime == "" {
		mime = analysis.MediaTypeJPEG
	}
	resp, err := m.GenerateContent(ctx,
		genai.Text(instruction),
		&genai.Blob{MIMEType: mime, Data: img.Data},
	)
	if err != nil {
		return "", classify(err)
	}
	txt := firstText(resp)
	if txt == "" {
		return "", fmt.Errorf("gemini: %w: empty response", analysis.ErrUnexpectedResponseFormat)
	}
	return txt, nil
}

func (e *SDKEngine) ListModels(ctx context.Context) ([]string, error) {
	cl, err := e.client(ctx)
	if err != nil {
		return nil, err
	}
	defer cl.Close()

	var out []string
	it := cl.ListModels(ctx)
	for {
		mi, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, classify(err)
		}
		if supportsGenerate(mi.SupportedGenerationMethods) {
			out = append(out, mi.Name)
		}
	}
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			return s
		}
	}
	return ""
}
