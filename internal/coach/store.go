package coach

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sjawhar/gestalt-coach/internal/llm"
)

// DefaultMemoryConversations bounds how many conversations a MemoryStore
// keeps before evicting the least recently used one.
const DefaultMemoryConversations = 256

// ConversationStore persists the non-system history of each conversation.
type ConversationStore interface {
	LoadConversation(ctx context.Context, id string) ([]llm.Message, error)
	SaveConversation(ctx context.Context, id string, messages []llm.Message) error
}

// MemoryStore keeps recent conversations in process memory, keyed by id.
type MemoryStore struct {
	conversations *lru.Cache[string, []llm.Message]
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreSize(DefaultMemoryConversations)
}

// NewMemoryStoreSize keeps at most size conversations. Non-positive sizes
// use DefaultMemoryConversations.
func NewMemoryStoreSize(size int) *MemoryStore {
	if size <= 0 {
		size = DefaultMemoryConversations
	}
	cache, err := lru.New[string, []llm.Message](size)
	if err != nil {
		panic(err)
	}
	return &MemoryStore{conversations: cache}
}

func (s *MemoryStore) LoadConversation(_ context.Context, id string) ([]llm.Message, error) {
	history, _ := s.conversations.Get(id)
	return append([]llm.Message(nil), history...), nil
}

func (s *MemoryStore) SaveConversation(_ context.Context, id string, messages []llm.Message) error {
	s.conversations.Add(id, append([]llm.Message(nil), messages...))
	return nil
}

func (s *MemoryStore) Len() int {
	return s.conversations.Len()
}
