package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/micro-atlas/atlas/internal/store"
)

// Store is the relational backend, matching the schema the hosted
// deployment uses (user_notes + raw_inputs).
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS raw_inputs (
			id UUID PRIMARY KEY,
			source_type TEXT NOT NULL,
			origin TEXT NOT NULL,
			body TEXT NOT NULL,
			received_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS user_notes (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL,
			content TEXT NOT NULL,
			analysis TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			keywords TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_notes_username ON user_notes (username, created_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SaveRawInput(ctx context.Context, in store.RawInput) (uuid.UUID, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO raw_inputs (id, source_type, origin, body, received_at)
		VALUES ($1, $2, $3, $4, $5)`,
		in.ID, string(in.SourceType), in.Origin, in.Body, in.ReceivedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert raw input: %w", err)
	}
	return in.ID, nil
}

func (s *Store) ListRawInputs(ctx context.Context, opts store.ListInputsOptions) ([]store.RawInput, error) {
	query := `SELECT id, source_type, origin, body, received_at FROM raw_inputs`
	var conds []string
	var args []any
	if opts.SourceType != "" {
		args = append(args, string(opts.SourceType))
		conds = append(conds, fmt.Sprintf("source_type = $%d", len(args)))
	}
	if !opts.Since.IsZero() {
		args = append(args, opts.Since)
		conds = append(conds, fmt.Sprintf("received_at >= $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY received_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list raw inputs: %w", err)
	}
	defer rows.Close()

	var inputs []store.RawInput
	for rows.Next() {
		var in store.RawInput
		var sourceType string
		if err := rows.Scan(&in.ID, &sourceType, &in.Origin, &in.Body, &in.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan raw input: %w", err)
		}
		in.SourceType = store.SourceType(sourceType)
		inputs = append(inputs, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return inputs, nil
}

func (s *Store) SaveNote(ctx context.Context, n store.Note) (uuid.UUID, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	keywords := n.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_notes (id, username, content, analysis, summary, keywords, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.Username, n.Content, n.Analysis, n.Summary, keywords, n.CreatedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert note: %w", err)
	}
	return n.ID, nil
}

func (s *Store) ListNotes(ctx context.Context, username string) ([]store.Note, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, username, content, analysis, summary, COALESCE(keywords, '{}'), created_at
		FROM user_notes WHERE username = $1 ORDER BY created_at DESC`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []store.Note
	for rows.Next() {
		var n store.Note
		if err := rows.Scan(&n.ID, &n.Username, &n.Content, &n.Analysis, &n.Summary, &n.Keywords, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return notes, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}
