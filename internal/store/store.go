package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SourceType identifies the channel a raw input arrived on.
type SourceType string

const (
	SourcePaste   SourceType = "paste"
	SourceSMS     SourceType = "sms"
	SourceEmail   SourceType = "email"
	SourceWebClip SourceType = "web_clip"
)

// RawInput is one piece of text received from an ingestion channel,
// stored verbatim. Immutable once written.
type RawInput struct {
	ID         uuid.UUID  `json:"id"`
	SourceType SourceType `json:"source_type"`
	Origin     string     `json:"origin"`
	Body       string     `json:"body"`
	ReceivedAt time.Time  `json:"received_at"`
}

// Note is one analyzed learning entry in a user's history. Keywords are
// extracted from the analysis once, at write time, and are the source of
// truth for theme aggregation.
type Note struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Analysis  string    `json:"analysis"`
	Summary   string    `json:"summary,omitempty"`
	Keywords  []string  `json:"keywords"`
	CreatedAt time.Time `json:"created_at"`
}

// ListInputsOptions filters the raw-input read-back. Zero values mean no filter.
type ListInputsOptions struct {
	SourceType SourceType
	Since      time.Time
}

// Store is the persistence boundary: durable append plus filtered,
// newest-first read-back. Backends are selected by configuration.
type Store interface {
	SaveRawInput(ctx context.Context, in RawInput) (uuid.UUID, error)
	ListRawInputs(ctx context.Context, opts ListInputsOptions) ([]RawInput, error)
	SaveNote(ctx context.Context, n Note) (uuid.UUID, error)
	ListNotes(ctx context.Context, username string) ([]Note, error)
	Ping(ctx context.Context) error
	Close()
}
