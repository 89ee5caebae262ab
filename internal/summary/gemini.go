package summary

import (
	"context"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/sells-group/bizmap/internal/model"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Generator is the subset of *genai.Models used here.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini summarizes through the Gemini API.
type Gemini struct {
	gen       Generator
	model     string
	maxTokens int32
}

// NewGemini creates a Gemini API client for apiKey.
func NewGemini(ctx context.Context, apiKey, model string, maxTokens int32) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, eris.Wrap(err, "summary: create gemini client")
	}
	return NewGeminiWith(client.Models, model, maxTokens), nil
}

// NewGeminiWith wraps an existing generator.
func NewGeminiWith(gen Generator, model string, maxTokens int32) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{gen: gen, model: model, maxTokens: maxTokens}
}

func (g *Gemini) Summarize(ctx context.Context, b model.Business) string {
	var cfg *genai.GenerateContentConfig
	if g.maxTokens > 0 {
		cfg = &genai.GenerateContentConfig{MaxOutputTokens: g.maxTokens}
	}

	resp, err := g.gen.GenerateContent(ctx, g.model, genai.Text(Prompt(b)), cfg)
	if err != nil {
		return finish("gemini", b, "", err)
	}
	var text string
	if resp != nil {
		text = resp.Text()
	}
	return finish("gemini", b, text, nil)
}
