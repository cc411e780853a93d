package recommender

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

const (
	maxRecommendationTokens   = 600
	recommendationTemperature = 0.7
)

// NoThemesMessage is returned when the theme profile is empty; no model
// call is made in that case.
const NoThemesMessage = "No specific themes identified yet. Analyze more content to get recommendations!"

// Completer is the model boundary shared with the analyzer.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error)
}

// Recommender produces content suggestions keyed to a theme profile.
type Recommender struct {
	llm    Completer
	logger *slog.Logger
}

func New(llm Completer, logger *slog.Logger) *Recommender {
	return &Recommender{llm: llm, logger: logger}
}

// Recommend formats the theme list into the fixed recommendation prompt and
// returns the model's suggestions.
func (r *Recommender) Recommend(ctx context.Context, themes []string) (string, error) {
	if len(themes) == 0 {
		return NoThemesMessage, nil
	}

	quoted := make([]string, len(themes))
	for i, t := range themes {
		quoted[i] = "'" + t + "'"
	}
	prompt := fmt.Sprintf(recommendationUserPrompt, strings.Join(quoted, ", "))

	r.logger.Info("generating recommendations", "themes", len(themes))

	out, err := r.llm.Complete(ctx, recommendationSystemPrompt, prompt, maxRecommendationTokens, recommendationTemperature)
	if err != nil {
		return "", fmt.Errorf("llm recommendations: %w", err)
	}
	return out, nil
}
