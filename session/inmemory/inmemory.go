package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/mohammad-safakhou/askweb/provider/models"
)

type entry struct {
	messages  []models.Message
	expiresAt time.Time
}

type Store struct {
	sessions    map[string]*entry
	mu          sync.RWMutex
	maxMessages int
	ttl         time.Duration
	now         func() time.Time
}

func NewInMemorySessionStore(maxMessages int, ttl time.Duration) *Store {
	return &Store{
		sessions:    make(map[string]*entry),
		maxMessages: maxMessages,
		ttl:         ttl,
		now:         time.Now,
	}
}

func (store *Store) Load(_ context.Context, id string) ([]models.Message, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()
	e, ok := store.sessions[id]
	if !ok || store.expired(e, store.now()) {
		return nil, nil
	}
	out := make([]models.Message, len(e.messages))
	copy(out, e.messages)
	return out, nil
}

func (store *Store) Append(_ context.Context, id string, msgs ...models.Message) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	now := store.now()
	e, ok := store.sessions[id]
	if !ok || store.expired(e, now) {
		e = &entry{}
		store.sessions[id] = e
	}
	e.messages = append(e.messages, msgs...)
	if store.maxMessages > 0 && len(e.messages) > store.maxMessages {
		e.messages = append([]models.Message(nil), e.messages[len(e.messages)-store.maxMessages:]...)
	}
	if store.ttl > 0 {
		e.expiresAt = now.Add(store.ttl)
	}
	return nil
}

func (store *Store) Clear(_ context.Context, id string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	delete(store.sessions, id)
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (store *Store) Sweep(now time.Time) int {
	store.mu.Lock()
	defer store.mu.Unlock()
	n := 0
	for id, e := range store.sessions {
		if store.expired(e, now) {
			delete(store.sessions, id)
			n++
		}
	}
	return n
}

func (store *Store) expired(e *entry, now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}
