package summary

import (
	"context"

	"github.com/sells-group/bizmap/internal/model"
	"github.com/sells-group/bizmap/pkg/anthropic"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-haiku-4-5-20251001"

// Anthropic summarizes through the Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic wraps client. Zero values pick sensible defaults.
func NewAnthropic(client anthropic.Client, model string, maxTokens int64) *Anthropic {
	if model == "" {
		model = DefaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &Anthropic{client: client, model: model, maxTokens: maxTokens}
}

func (a *Anthropic) Summarize(ctx context.Context, b model.Business) string {
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: Prompt(b)}},
	})
	if err != nil {
		return finish("anthropic", b, "", err)
	}
	if resp != nil {
		resp.Usage.LogCost(a.model, "summary")
	}
	return finish("anthropic", b, resp.Text(), nil)
}
