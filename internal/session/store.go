package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Callback receives the current token, or "" when there is no usable credential.
type Callback func(token string)

// Prober asks the API who the current credential belongs to and returns the
// token the API considers valid.
type Prober interface {
	Authenticated(ctx context.Context) (string, error)
}

// Store is the single source of truth for the bearer token. It is safe for
// concurrent use; callbacks run outside the lock.
type Store struct {
	mu      sync.Mutex
	storage Storage
	state   State
	subs    []*Subscription
	nextID  uint64
}

// New loads the persisted state from storage.
func New(storage Storage) (*Store, error) {
	if storage == nil {
		storage = &MemoryStorage{}
	}
	st, err := storage.Load()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &Store{storage: storage, state: st}, nil
}

// Token returns the current bearer token.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Token
}

// HasToken reports whether a bearer token is held.
func (s *Store) HasToken() bool {
	return s.Token() != ""
}

// SetToken stores token and writes it through to storage.
func (s *Store) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Token = token
	s.state.UpdatedAt = time.Now()
	if err := s.storage.Save(cloneState(s.state)); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	return nil
}

// ClearToken drops the token and any persisted cookies.
func (s *Store) ClearToken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{}
	if err := s.storage.Clear(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Subscription is a handle for one registered callback.
type Subscription struct {
	store *Store
	id    uint64
	fn    Callback
	once  sync.Once
}

// Unsubscribe removes the callback. Calling it more than once is harmless.
func (sub *Subscription) Unsubscribe() {
	if sub == nil {
		return
	}
	sub.once.Do(func() {
		s := sub.store
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, other := range s.subs {
			if other.id == sub.id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	})
}

// Subscribe registers fn and immediately probes the API through prober. On
// success the probed token is stored and passed to fn; on failure fn receives
// "". The probe is not retried. A nil prober reports the stored token as is.
func (s *Store) Subscribe(ctx context.Context, prober Prober, fn Callback) *Subscription {
	s.mu.Lock()
	s.nextID++
	sub := &Subscription{store: s, id: s.nextID, fn: fn}
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	if prober == nil {
		fn(s.Token())
		return sub
	}

	token, err := prober.Authenticated(ctx)
	if err != nil || token == "" {
		fn("")
		return sub
	}
	if token != s.Token() {
		// A persistence failure still leaves the token usable in memory.
		_ = s.SetToken(token)
	}
	fn(token)
	return sub
}

// Notify invokes every registered callback with token, synchronously and in
// registration order.
func (s *Store) Notify(token string) {
	s.mu.Lock()
	subs := make([]*Subscription, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(token)
	}
}

// Subscribers returns the number of registered callbacks.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
