package themes

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/micro-atlas/atlas/internal/store"
)

// DefaultTopK is the profile size when the caller does not ask for one.
const DefaultTopK = 5

// Theme is one ranked concept in a user's profile.
type Theme struct {
	Concept string `json:"concept"`
	Count   int    `json:"count"`
}

// Profile is the ranked list of a user's most frequent concepts across
// their whole history. Derived, never persisted.
type Profile struct {
	Username string  `json:"username"`
	Top      []Theme `json:"top_themes"`
}

// Concepts returns just the concept names, in rank order.
func (p Profile) Concepts() []string {
	names := make([]string, len(p.Top))
	for i, th := range p.Top {
		names[i] = th.Concept
	}
	return names
}

// NoteSource is the slice of the store the aggregator needs.
type NoteSource interface {
	ListNotes(ctx context.Context, username string) ([]store.Note, error)
}

// Service recomputes theme profiles from the stored history on every call.
// There is no cache: repeated work is the accepted cost of staying simple.
type Service struct {
	notes  NoteSource
	logger *slog.Logger
}

func NewService(notes NoteSource, logger *slog.Logger) *Service {
	return &Service{notes: notes, logger: logger}
}

// BuildProfile counts the persisted keywords of every note in the user's
// history and returns the k most frequent. Ties are broken by first-seen
// order over the newest-first scan, so recently introduced concepts rank
// above older ones at equal count. An empty history yields an empty
// profile, not an error.
func (s *Service) BuildProfile(ctx context.Context, username string, k int) (Profile, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	notes, err := s.notes.ListNotes(ctx, username)
	if err != nil {
		return Profile{Username: username}, fmt.Errorf("load history: %w", err)
	}

	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for _, n := range notes {
		for _, kw := range n.Keywords {
			if _, seen := counts[kw]; !seen {
				firstSeen[kw] = len(firstSeen)
			}
			counts[kw]++
		}
	}

	top := make([]Theme, 0, len(counts))
	for concept, count := range counts {
		top = append(top, Theme{Concept: concept, Count: count})
	}
	sort.SliceStable(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return firstSeen[top[i].Concept] < firstSeen[top[j].Concept]
	})
	if len(top) > k {
		top = top[:k]
	}

	s.logger.Debug("theme profile built",
		"username", username,
		"notes", len(notes),
		"distinct_concepts", len(counts),
		"top", len(top),
	)

	return Profile{Username: username, Top: top}, nil
}
