package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/micro-atlas/atlas/internal/events"
	"github.com/micro-atlas/atlas/internal/store"
	"github.com/micro-atlas/atlas/internal/themes"
)

// Analyzer is the analysis side of the model boundary.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (string, error)
}

// Publisher emits pipeline events; nil disables publishing.
type Publisher interface {
	Publish(subject string, data any) error
}

// inputTimeout bounds one async input end to end. The bus dispatches
// handlers serially, so a hung model call must not stall ingestion.
const inputTimeout = 5 * time.Minute

// Processor runs the analyze → extract → persist chain, either
// synchronously for the HTTP surface or asynchronously off the bus.
type Processor struct {
	store    store.Store
	analyzer Analyzer
	events   Publisher
	logger   *slog.Logger
}

func New(s store.Store, a Analyzer, ev Publisher, logger *slog.Logger) *Processor {
	return &Processor{store: s, analyzer: a, events: ev, logger: logger}
}

// HandleInputStored is the NATS handler for atlas.input.stored. Failures
// are logged, never raised: an ingested message that cannot be analyzed
// stays in the raw-input store untouched.
func (p *Processor) HandleInputStored(subject string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), inputTimeout)
	defer cancel()

	var evt events.InputStored
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse input event", "error", err)
		return
	}

	p.logger.Info("processing ingested input",
		"input_id", evt.ID,
		"source_type", evt.SourceType,
		"username", evt.Username,
	)

	note, err := p.AnalyzeAndSave(ctx, evt.Username, evt.Body)
	if err != nil {
		p.logger.Error("input analysis failed", "input_id", evt.ID, "error", err)
		return
	}

	p.logger.Info("input analyzed",
		"input_id", evt.ID,
		"note_id", note.ID,
		"keywords", len(note.Keywords),
	)
}

// AnalyzeAndSave invokes the model on the text, extracts concept keywords
// from the output, and appends the resulting note to the user's history.
// Keywords are derived exactly once here; aggregation reads them back from
// the store.
func (p *Processor) AnalyzeAndSave(ctx context.Context, username, text string) (store.Note, error) {
	analysis, err := p.analyzer.Analyze(ctx, text)
	if err != nil {
		return store.Note{}, err
	}

	note := store.Note{
		ID:        uuid.New(),
		Username:  username,
		Content:   text,
		Summary:   summarize(text),
		Analysis:  analysis,
		Keywords:  themes.ExtractConcepts(analysis),
		CreatedAt: time.Now().UTC(),
	}

	if _, err := p.store.SaveNote(ctx, note); err != nil {
		return store.Note{}, fmt.Errorf("save note: %w", err)
	}

	if p.events != nil {
		if err := p.events.Publish(events.SubjectNoteSaved, events.NoteSaved{
			ID:       note.ID.String(),
			Username: note.Username,
			Keywords: len(note.Keywords),
		}); err != nil {
			p.logger.Warn("failed to publish note saved", "error", err)
		}
	}

	return note, nil
}

// summaryMaxRunes caps the stored one-line summary shown in history views.
const summaryMaxRunes = 160

// summarize derives a note's summary from the input itself: the first
// non-blank line, truncated on a word boundary.
func summarize(text string) string {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	runes := []rune(line)
	if len(runes) <= summaryMaxRunes {
		return line
	}
	cut := string(runes[:summaryMaxRunes])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}
