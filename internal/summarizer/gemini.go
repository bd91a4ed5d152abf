package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/JakeFAU/ajou-notice-sync/internal/notice"
)

// DefaultModels is the fallback order used when none is configured.
var DefaultModels = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-1.5-pro-002"}

var errEmptyResponse = errors.New("empty response")

// ContentGenerator is the subset of *genai.Models used by GeminiBackend.
type ContentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini API client.
type GeminiConfig struct {
	APIKey string
	Models []string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiBackend calls one Gemini model.
type GeminiBackend struct {
	models ContentGenerator
	model  string
}

// NewGeminiBackend wraps a single model identifier.
func NewGeminiBackend(models ContentGenerator, model string) *GeminiBackend {
	return &GeminiBackend{models: models, model: model}
}

// NewGeminiBackends builds one backend per configured model, sharing a single client.
func NewGeminiBackends(ctx context.Context, cfg GeminiConfig) ([]Backend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("summarizer.api_key is required")
	}
	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	models := cfg.Models
	if len(models) == 0 {
		models = DefaultModels
	}
	backends := make([]Backend, 0, len(models))
	for _, m := range models {
		backends = append(backends, NewGeminiBackend(client.Models, m))
	}
	return backends, nil
}

// Name returns the model identifier.
func (g *GeminiBackend) Name() string {
	return g.model
}

// Generate sends parts as a single user turn and returns the concatenated text
// of the first candidate.
func (g *GeminiBackend) Generate(ctx context.Context, parts []notice.Part) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts(toGenaiParts(parts), genai.RoleUser)}
	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return "", errEmptyResponse
	}
	return text, nil
}

func toGenaiParts(parts []notice.Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.IsImage() {
			img := p.Image()
			out = append(out, genai.NewPartFromBytes(img.Data, img.MIMEType))
			continue
		}
		out = append(out, genai.NewPartFromText(p.Text()))
	}
	return out
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
