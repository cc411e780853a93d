package analyzer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCompleter struct {
	response string
	err      error

	calls      int
	lastSystem string
	lastUser   string
	lastTokens int
	lastTemp   float32
}

func (f *fakeCompleter) Complete(_ context.Context, system, user string, maxTokens int, temperature float32) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	f.lastTokens = maxTokens
	f.lastTemp = temperature
	return f.response, f.err
}

func TestAnalyze_Success(t *testing.T) {
	llm := &fakeCompleter{response: "**Core Concepts & Topics:**\n- NLP"}
	a := New(llm, discardLogger())

	out, err := a.Analyze(context.Background(), "I read about NLP today.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "**Core Concepts & Topics:**\n- NLP" {
		t.Errorf("unexpected analysis output: %q", out)
	}

	if llm.calls != 1 {
		t.Fatalf("expected 1 model call, got %d", llm.calls)
	}
	if !strings.Contains(llm.lastUser, "I read about NLP today.") {
		t.Errorf("prompt does not embed the input text: %q", llm.lastUser)
	}
	if !strings.Contains(llm.lastUser, "Core Concepts & Topics") {
		t.Errorf("prompt missing concepts section instruction")
	}
	if llm.lastTokens != 800 {
		t.Errorf("expected 800 max tokens, got %d", llm.lastTokens)
	}
	if llm.lastTemp != 0.7 {
		t.Errorf("expected temperature 0.7, got %f", llm.lastTemp)
	}
}

func TestAnalyze_EmptyInput(t *testing.T) {
	llm := &fakeCompleter{response: "should not be called"}
	a := New(llm, discardLogger())

	for _, input := range []string{"", "   ", "\n\t "} {
		if _, err := a.Analyze(context.Background(), input); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("input %q: expected ErrEmptyInput, got %v", input, err)
		}
	}
	if llm.calls != 0 {
		t.Errorf("expected no model calls for blank input, got %d", llm.calls)
	}
}

func TestAnalyze_ModelError(t *testing.T) {
	llm := &fakeCompleter{err: errors.New("rate limited")}
	a := New(llm, discardLogger())

	_, err := a.Analyze(context.Background(), "some learning text")
	if err == nil {
		t.Fatal("expected error from model failure")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error does not wrap model failure: %v", err)
	}
}
