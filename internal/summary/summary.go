// Package summary produces short AI-written strategic notes for a single
// business. Providers never return errors to callers: failures are logged
// and replaced by FallbackMessage.
package summary

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/bizmap/internal/config"
	"github.com/sells-group/bizmap/internal/model"
	"github.com/sells-group/bizmap/pkg/anthropic"
)

const (
	// FallbackMessage is returned when the provider call fails or no
	// provider is configured.
	FallbackMessage = "Unable to generate AI insights at this time. Please check your API key."
	// EmptyMessage is returned when the provider answers with no text.
	EmptyMessage = "Analysis unavailable."
)

// Summarizer writes a summary for one business.
type Summarizer interface {
	Summarize(ctx context.Context, b model.Business) string
}

// Prompt builds the SWOT-style request for b.
func Prompt(b model.Business) string {
	revenue := b.Revenue
	if revenue == "" {
		revenue = "Unknown"
	}

	var sb strings.Builder
	sb.WriteString("Analyze the following business data and provide a concise strategic summary ")
	sb.WriteString("(SWOT analysis style) in 3-4 bullet points.\n")
	fmt.Fprintf(&sb, "Focus on its industry (%s) and location (%s, %s, NC).\n\n", b.NAICSDescription, b.City, b.County)
	fmt.Fprintf(&sb, "Business Name: %s\n", b.Name)
	fmt.Fprintf(&sb, "Employees: %d\n", b.Employees)
	fmt.Fprintf(&sb, "Revenue: %s\n", revenue)
	fmt.Fprintf(&sb, "Tags: %s\n", strings.Join(b.Tags, ", "))
	return sb.String()
}

// Unavailable always answers with FallbackMessage.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Summarize(_ context.Context, b model.Business) string {
	zap.L().Warn("summary: provider unavailable",
		zap.String("business_id", b.ID),
		zap.String("reason", u.Reason),
	)
	return FallbackMessage
}

// New picks the provider named in cfg.Summary. A missing API key yields
// Unavailable rather than an error.
func New(ctx context.Context, cfg *config.Config) Summarizer {
	switch cfg.Summary.Provider {
	case "gemini":
		if cfg.Gemini.Key == "" {
			return Unavailable{Reason: "gemini.key not set"}
		}
		g, err := NewGemini(ctx, cfg.Gemini.Key, cfg.Summary.Model, int32(cfg.Summary.MaxTokens))
		if err != nil {
			zap.L().Error("summary: gemini client", zap.Error(err))
			return Unavailable{Reason: err.Error()}
		}
		return g
	default:
		if cfg.Anthropic.Key == "" {
			return Unavailable{Reason: "anthropic.key not set"}
		}
		return NewAnthropic(anthropic.NewClient(cfg.Anthropic.Key), cfg.Summary.Model, cfg.Summary.MaxTokens)
	}
}

// finish applies the shared empty/error handling to a provider answer.
func finish(provider string, b model.Business, text string, err error) string {
	if err != nil {
		zap.L().Error("summary: generate failed",
			zap.String("provider", provider),
			zap.String("business_id", b.ID),
			zap.Error(err),
		)
		return FallbackMessage
	}
	if strings.TrimSpace(text) == "" {
		return EmptyMessage
	}
	return text
}
