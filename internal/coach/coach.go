package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/gestalt-coach/internal/llm"
)

// MaxHistory is how many user/assistant messages are replayed after the
// system prompt on each request.
const MaxHistory = 9

var defaultBackoff = []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}

// Persona pairs a system prompt with the client that answers for it.
type Persona struct {
	Name         string
	Instructions string
	Client       llm.Client
}

// Agent answers messages for one persona while keeping a bounded history
// per conversation id. Conversations never share history.
type Agent struct {
	persona Persona
	store   ConversationStore
	backoff []time.Duration
	sleep   func(time.Duration)

	mu    sync.Mutex
	locks map[string]*conversationLock
}

// conversationLock serialises turns of one conversation. It is dropped from
// the agent once no request holds or waits for it.
type conversationLock struct {
	sync.Mutex
	refs int
}

func NewAgent(persona Persona, store ConversationStore) *Agent {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Agent{
		persona: persona,
		store:   store,
		backoff: defaultBackoff,
		sleep:   time.Sleep,
		locks:   make(map[string]*conversationLock),
	}
}

func (a *Agent) Name() string {
	return a.persona.Name
}

// Reply sends message within conversationID and returns the model's answer.
// The exchange is only recorded in the history when it succeeds.
func (a *Agent) Reply(ctx context.Context, conversationID, message string) (string, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return "", ErrMissingConversation
	}
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	lock := a.acquire(conversationID)
	defer a.release(conversationID, lock)

	history, err := a.store.LoadConversation(ctx, conversationID)
	if err != nil {
		return "", fmt.Errorf("load conversation %s: %w", conversationID, err)
	}

	history = append(history, llm.Message{Role: llm.RoleUser, Content: message})
	history = trimHistory(history)

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.persona.Instructions})
	messages = append(messages, history...)

	reply, err := a.complete(ctx, messages)
	if err != nil {
		slog.Error("coach: reply failed", "persona", a.persona.Name, "conversation", conversationID, "error", err)
		return "", err
	}

	history = append(history, llm.Message{Role: llm.RoleAssistant, Content: reply})
	if err := a.store.SaveConversation(ctx, conversationID, history); err != nil {
		return "", fmt.Errorf("save conversation %s: %w", conversationID, err)
	}
	return reply, nil
}

// Analyze is Reply under the name the play-session flow uses.
func (a *Agent) Analyze(ctx context.Context, conversationID, prompt string) (string, error) {
	return a.Reply(ctx, conversationID, prompt)
}

func (a *Agent) complete(ctx context.Context, messages []llm.Message) (string, error) {
	if a.persona.Client == nil {
		return "", &AnalysisError{Err: errors.New("no model configured")}
	}

	var lastErr error
	for attempt := range a.backoff {
		reply, err := a.persona.Client.Complete(ctx, messages)
		if err == nil {
			if strings.TrimSpace(reply) == "" {
				return "", &AnalysisError{Err: llm.ErrEmptyResponse}
			}
			return reply, nil
		}
		if errors.Is(err, llm.ErrEmptyResponse) {
			return "", &AnalysisError{Err: err}
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < len(a.backoff)-1 {
			a.sleep(a.backoff[attempt])
		}
	}
	return "", &AnalysisError{Err: fmt.Errorf("failed after retries: %w", lastErr)}
}

func (a *Agent) acquire(id string) *conversationLock {
	a.mu.Lock()
	lock, ok := a.locks[id]
	if !ok {
		lock = &conversationLock{}
		a.locks[id] = lock
	}
	lock.refs++
	a.mu.Unlock()

	lock.Lock()
	return lock
}

func (a *Agent) release(id string, lock *conversationLock) {
	lock.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(a.locks, id)
	}
}

func trimHistory(history []llm.Message) []llm.Message {
	if len(history) <= MaxHistory {
		return history
	}
	return append([]llm.Message(nil), history[len(history)-MaxHistory:]...)
}
