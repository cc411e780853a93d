package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/micro-atlas/atlas/internal/store"
)

// Store is the file-backed backend. Keywords are serialized as JSON text.
type Store struct {
	conn *sql.DB
}

func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite works best with a single writer connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS raw_inputs (
			id TEXT PRIMARY KEY,
			source_type TEXT NOT NULL,
			origin TEXT NOT NULL,
			body TEXT NOT NULL,
			received_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_notes (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL,
			content TEXT NOT NULL,
			analysis TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			keywords TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_notes_username ON user_notes (username, created_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := s.conn.Exec(stmt); err != nil {
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
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO raw_inputs (id, source_type, origin, body, received_at)
		VALUES (?, ?, ?, ?, ?)`,
		in.ID.String(), string(in.SourceType), in.Origin, in.Body, in.ReceivedAt,
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
		conds = append(conds, "source_type = ?")
		args = append(args, string(opts.SourceType))
	}
	if !opts.Since.IsZero() {
		conds = append(conds, "received_at >= ?")
		args = append(args, opts.Since)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY received_at DESC"

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list raw inputs: %w", err)
	}
	defer rows.Close()

	var inputs []store.RawInput
	for rows.Next() {
		var in store.RawInput
		var id, sourceType string
		if err := rows.Scan(&id, &sourceType, &in.Origin, &in.Body, &in.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan raw input: %w", err)
		}
		in.ID, _ = uuid.Parse(id)
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
	encoded, err := json.Marshal(keywords)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode keywords: %w", err)
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO user_notes (id, username, content, analysis, summary, keywords, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID.String(), n.Username, n.Content, n.Analysis, n.Summary, string(encoded), n.CreatedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert note: %w", err)
	}
	return n.ID, nil
}

func (s *Store) ListNotes(ctx context.Context, username string) ([]store.Note, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, username, content, analysis, summary, keywords, created_at
		FROM user_notes WHERE username = ? ORDER BY created_at DESC`,
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []store.Note
	for rows.Next() {
		var n store.Note
		var id, keywords string
		if err := rows.Scan(&id, &n.Username, &n.Content, &n.Analysis, &n.Summary, &keywords, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.ID, _ = uuid.Parse(id)
		// Malformed keyword JSON degrades to no keywords for that record.
		_ = json.Unmarshal([]byte(keywords), &n.Keywords)
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return notes, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

func (s *Store) Close() {
	s.conn.Close()
}
