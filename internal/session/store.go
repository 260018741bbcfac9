package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultStoreKey names the document that holds the saved sessions.
const DefaultStoreKey = "playSessions"

// StoreKey returns the document key for owner's saved sessions.
func StoreKey(owner string) string {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return DefaultStoreKey
	}
	return DefaultStoreKey + ":" + owner
}

// Documents is a key/value store of opaque JSON documents.
type Documents interface {
	GetDocument(ctx context.Context, key string) ([]byte, bool, error)
	PutDocument(ctx context.Context, key string, value []byte) error
}

// DocumentStore keeps every saved session as one JSON array under a single
// key, rewritten whole on each save.
type DocumentStore struct {
	docs Documents
	key  string
}

func NewDocumentStore(docs Documents, key string) *DocumentStore {
	if key == "" {
		key = DefaultStoreKey
	}
	return &DocumentStore{docs: docs, key: key}
}

func (s *DocumentStore) LoadSavedSessions(ctx context.Context) ([]SavedSession, error) {
	raw, ok, err := s.docs.GetDocument(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}
	if !ok || len(raw) == 0 {
		return []SavedSession{}, nil
	}

	var sessions []SavedSession
	if err := json.Unmarshal(raw, &sessions); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.key, err)
	}
	if sessions == nil {
		sessions = []SavedSession{}
	}
	return sessions, nil
}

func (s *DocumentStore) ReplaceSavedSessions(ctx context.Context, sessions []SavedSession) error {
	if sessions == nil {
		sessions = []SavedSession{}
	}
	raw, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.key, err)
	}
	if err := s.docs.PutDocument(ctx, s.key, raw); err != nil {
		return fmt.Errorf("write %s: %w", s.key, err)
	}
	return nil
}
