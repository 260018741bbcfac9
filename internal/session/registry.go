package session

import (
	"context"
	"sync"
)

// Factory builds the manager for one owner.
type Factory func(ctx context.Context, owner string) (*Manager, error)

// Registry hands out one Manager per owner, creating it on first use.
type Registry struct {
	factory Factory

	mu       sync.Mutex
	managers map[string]*Manager
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory, managers: make(map[string]*Manager)}
}

// NewDocumentRegistry builds managers whose saved sessions live in docs
// under StoreKey(owner).
func NewDocumentRegistry(docs Documents, transcriber Transcriber, analyzer Analyzer, hub EventBroadcaster) *Registry {
	return NewRegistry(func(ctx context.Context, owner string) (*Manager, error) {
		return NewManager(ctx, owner, NewDocumentStore(docs, StoreKey(owner)), transcriber, analyzer, hub)
	})
}

func (r *Registry) Get(ctx context.Context, owner string) (*Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.managers[owner]; ok {
		return m, nil
	}
	m, err := r.factory(ctx, owner)
	if err != nil {
		return nil, err
	}
	r.managers[owner] = m
	return m, nil
}
