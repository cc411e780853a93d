package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	maxAnalysisTokens   = 800
	analysisTemperature = 0.7
)

// ErrEmptyInput is returned when the input text is blank; no model call is made.
var ErrEmptyInput = errors.New("empty learning input")

// Completer is the model boundary: one system + user instruction in, text out.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error)
}

// Analyzer turns a block of raw learning text into a formatted analysis
// with the sections the concept extractor understands.
type Analyzer struct {
	llm    Completer
	logger *slog.Logger
}

func New(llm Completer, logger *slog.Logger) *Analyzer {
	return &Analyzer{llm: llm, logger: logger}
}

// Analyze runs the fixed analysis prompt over the given text and returns
// the raw model output.
func (a *Analyzer) Analyze(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}

	prompt := fmt.Sprintf(analysisUserPrompt, text)

	a.logger.Info("analyzing learning input", "input_len", len(text))

	out, err := a.llm.Complete(ctx, analysisSystemPrompt, prompt, maxAnalysisTokens, analysisTemperature)
	if err != nil {
		return "", fmt.Errorf("llm analysis: %w", err)
	}

	a.logger.Info("analysis complete", "output_len", len(out))
	return out, nil
}
