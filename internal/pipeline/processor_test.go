package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/micro-atlas/atlas/internal/analyzer"
	"github.com/micro-atlas/atlas/internal/events"
	"github.com/micro-atlas/atlas/internal/store"
	"github.com/micro-atlas/atlas/internal/themes"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory Store for pipeline tests. Notes are returned
// newest-first per the store contract.
type memStore struct {
	notes   []store.Note
	inputs  []store.RawInput
	saveErr error
}

func (m *memStore) SaveRawInput(_ context.Context, in store.RawInput) (uuid.UUID, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	m.inputs = append(m.inputs, in)
	return in.ID, nil
}

func (m *memStore) ListRawInputs(_ context.Context, _ store.ListInputsOptions) ([]store.RawInput, error) {
	return m.inputs, nil
}

func (m *memStore) SaveNote(_ context.Context, n store.Note) (uuid.UUID, error) {
	if m.saveErr != nil {
		return uuid.Nil, m.saveErr
	}
	m.notes = append(m.notes, n)
	return n.ID, nil
}

func (m *memStore) ListNotes(_ context.Context, username string) ([]store.Note, error) {
	var out []store.Note
	for _, n := range m.notes {
		if n.Username == username {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close()                     {}

type fakeAnalyzer struct {
	output string
	err    error

	calls   int
	lastCtx context.Context
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, text string) (string, error) {
	f.calls++
	f.lastCtx = ctx
	if f.err != nil {
		return "", f.err
	}
	if len(text) == 0 {
		return "", analyzer.ErrEmptyInput
	}
	return f.output, nil
}

type fakePublisher struct {
	subjects []string
}

func (f *fakePublisher) Publish(subject string, _ any) error {
	f.subjects = append(f.subjects, subject)
	return nil
}

func TestAnalyzeAndSave_PersistsKeywords(t *testing.T) {
	db := &memStore{}
	llm := &fakeAnalyzer{output: "**Core Concepts & Topics:**\n- Reinforcement Learning: a paradigm\n- NLP"}
	pub := &fakePublisher{}
	p := New(db, llm, pub, discardLogger())

	note, err := p.AnalyzeAndSave(context.Background(), "mike", "I studied RLHF")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(db.notes) != 1 {
		t.Fatalf("expected 1 persisted note, got %d", len(db.notes))
	}
	saved := db.notes[0]
	if saved.Content != "I studied RLHF" {
		t.Errorf("unexpected content: %q", saved.Content)
	}
	if saved.Analysis != llm.output {
		t.Errorf("raw analysis not persisted")
	}
	if saved.Summary != "I studied RLHF" {
		t.Errorf("summary not derived at write time: %q", saved.Summary)
	}
	if len(saved.Keywords) != 2 || saved.Keywords[0] != "Reinforcement Learning" || saved.Keywords[1] != "NLP" {
		t.Errorf("keywords not extracted at write time: %v", saved.Keywords)
	}
	if note.ID != saved.ID {
		t.Errorf("returned note does not match persisted note")
	}

	if len(pub.subjects) != 1 || pub.subjects[0] != events.SubjectNoteSaved {
		t.Errorf("expected note.saved publication, got %v", pub.subjects)
	}
}

func TestAnalyzeAndSave_ReadAfterWrite(t *testing.T) {
	db := &memStore{}
	llm := &fakeAnalyzer{output: "**Core Concepts & Topics:**\n- Graph Theory"}
	p := New(db, llm, nil, discardLogger())
	svc := themes.NewService(db, discardLogger())
	ctx := context.Background()

	if _, err := p.AnalyzeAndSave(ctx, "mike", "graphs everywhere"); err != nil {
		t.Fatalf("analyze and save: %v", err)
	}

	profile, err := svc.BuildProfile(ctx, "mike", 5)
	if err != nil {
		t.Fatalf("build profile: %v", err)
	}
	if len(profile.Top) != 1 || profile.Top[0].Concept != "Graph Theory" {
		t.Errorf("profile does not reflect just-saved note: %v", profile.Top)
	}
}

func TestAnalyzeAndSave_ModelFailureDoesNotPersist(t *testing.T) {
	db := &memStore{}
	llm := &fakeAnalyzer{err: errors.New("api error 500")}
	p := New(db, llm, nil, discardLogger())

	if _, err := p.AnalyzeAndSave(context.Background(), "mike", "text"); err == nil {
		t.Fatal("expected error from model failure")
	}
	if len(db.notes) != 0 {
		t.Errorf("failed analysis must not be persisted, got %d notes", len(db.notes))
	}
}

func TestAnalyzeAndSave_StoreFailure(t *testing.T) {
	db := &memStore{saveErr: errors.New("disk full")}
	llm := &fakeAnalyzer{output: "**Core Concepts & Topics:**\n- X"}
	p := New(db, llm, nil, discardLogger())

	if _, err := p.AnalyzeAndSave(context.Background(), "mike", "text"); err == nil {
		t.Fatal("expected error from store failure")
	}
}

func TestHandleInputStored_AnalyzesAndSaves(t *testing.T) {
	db := &memStore{}
	llm := &fakeAnalyzer{output: "**Core Concepts & Topics:**\n- SMS Parsing"}
	p := New(db, llm, nil, discardLogger())

	payload, _ := json.Marshal(events.InputStored{
		ID:         uuid.NewString(),
		Username:   "atlas",
		SourceType: "sms",
		Origin:     "+15551234567",
		Body:       "learned about twilio webhooks",
	})
	p.HandleInputStored(events.SubjectInputStored, payload)

	if len(db.notes) != 1 {
		t.Fatalf("expected 1 note from event, got %d", len(db.notes))
	}
	if db.notes[0].Username != "atlas" {
		t.Errorf("note filed under wrong user: %q", db.notes[0].Username)
	}
}

func TestHandleInputStored_BoundsAnalysisTime(t *testing.T) {
	db := &memStore{}
	llm := &fakeAnalyzer{output: "**Core Concepts & Topics:**\n- X"}
	p := New(db, llm, nil, discardLogger())

	payload, _ := json.Marshal(events.InputStored{
		ID:       uuid.NewString(),
		Username: "atlas",
		Body:     "some text",
	})
	p.HandleInputStored(events.SubjectInputStored, payload)

	if llm.lastCtx == nil {
		t.Fatal("analyzer was not called")
	}
	if _, ok := llm.lastCtx.Deadline(); !ok {
		t.Error("async analysis must run under a deadline")
	}
}

func TestSummarize(t *testing.T) {
	long := strings.Repeat("reinforcement ", 20) // well past the cap

	cases := []struct {
		in   string
		want string
	}{
		{"I studied RLHF", "I studied RLHF"},
		{"  first line \nsecond line", "first line"},
		{"\n\nindented start\nrest", "indented start"},
	}
	for _, c := range cases {
		if got := summarize(c.in); got != c.want {
			t.Errorf("summarize(%q) = %q, want %q", c.in, got, c.want)
		}
	}

	got := summarize(long)
	if !strings.HasSuffix(got, "…") {
		t.Errorf("long input not truncated: %q", got)
	}
	if len([]rune(got)) > summaryMaxRunes+1 {
		t.Errorf("summary exceeds cap: %d runes", len([]rune(got)))
	}
}

func TestHandleInputStored_MalformedEvent(t *testing.T) {
	db := &memStore{}
	llm := &fakeAnalyzer{output: "x"}
	p := New(db, llm, nil, discardLogger())

	p.HandleInputStored(events.SubjectInputStored, []byte("not json"))

	if llm.calls != 0 {
		t.Errorf("malformed event must not reach the model, got %d calls", llm.calls)
	}
	if len(db.notes) != 0 {
		t.Errorf("malformed event must not persist anything")
	}
}
