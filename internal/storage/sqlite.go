package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sjawhar/gestalt-coach/internal/llm"
)

// Document is one keyed JSON value with its last write time.
type Document struct {
	Key       string    `json:"key"`
	Value     []byte    `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "gestalt-coach.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			messages TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create conversations table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_documents_updated_at ON documents(updated_at)"); err != nil {
		return fmt.Errorf("create documents index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// GetDocument returns the value stored under key. The boolean is false when
// no document exists.
func (s *SQLiteStore) GetDocument(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM documents WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query document %s: %w", key, err)
	}
	return value, true, nil
}

// PutDocument replaces the whole value stored under key.
func (s *SQLiteStore) PutDocument(ctx context.Context, key string, value []byte) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("document key is required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents(key, value, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key,
		value,
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put document %s: %w", key, err)
	}
	return nil
}

// ListDocuments returns the documents whose key starts with prefix, most
// recently written first.
func (s *SQLiteStore) ListDocuments(ctx context.Context, prefix string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, updated_at
		 FROM documents
		 WHERE substr(key, 1, length(?)) = ?
		 ORDER BY updated_at DESC, key ASC`,
		prefix,
		prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("query documents with prefix %q: %w", prefix, err)
	}
	defer func() { _ = rows.Close() }()

	docs := make([]Document, 0, 8)
	for rows.Next() {
		var doc Document
		var updatedAt string
		if err := rows.Scan(&doc.Key, &doc.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse document %s updated_at: %w", doc.Key, err)
		}
		doc.UpdatedAt = parsed
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents rows: %w", err)
	}

	return docs, nil
}

// LoadConversation returns the stored history for id, or nil when the
// conversation has not been seen.
func (s *SQLiteStore) LoadConversation(ctx context.Context, id string) ([]llm.Message, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT messages FROM conversations WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation %s: %w", id, err)
	}

	var messages []llm.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", id, err)
	}
	return messages, nil
}

func (s *SQLiteStore) SaveConversation(ctx context.Context, id string, messages []llm.Message) error {
	if messages == nil {
		messages = []llm.Message{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode conversation %s: %w", id, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations(id, messages, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET messages = excluded.messages, updated_at = excluded.updated_at`,
		id,
		string(raw),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", id, err)
	}
	return nil
}
