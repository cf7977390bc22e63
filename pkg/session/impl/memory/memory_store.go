package memory

import (
	"context"
	"sync"

	"github.com/mpapenbr/itslogin/pkg/session"
	"github.com/mpapenbr/itslogin/pkg/session/factory"
)

var StoreTypeMemory factory.StoreType = "memory"

type (
	Option      func(*memoryStore)
	memoryStore struct {
		cfg      *session.Config
		mu       sync.RWMutex
		authID   string
		watchers map[chan string]struct{}
	}
)

var _ session.Store = (*memoryStore)(nil)

func New(common []session.Option, specific []Option) (session.Store, error) {
	ret := &memoryStore{
		cfg:      session.NewConfig(common...),
		watchers: make(map[chan string]struct{}),
	}
	for _, o := range specific {
		o(ret)
	}
	return ret, nil
}

// WithInitialAuthID preloads the store
func WithInitialAuthID(authID string) Option {
	return func(s *memoryStore) {
		s.authID = authID
	}
}

func (s *memoryStore) Get(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.authID == "" {
		return "", session.ErrNoSession
	}
	return s.authID, nil
}

func (s *memoryStore) Set(ctx context.Context, authID string) error {
	if authID == "" {
		return session.ErrInvalidAuthID
	}
	s.update(authID)
	return nil
}

func (s *memoryStore) Clear(ctx context.Context) error {
	s.update("")
	return nil
}

func (s *memoryStore) Watch(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 1)
	s.mu.Lock()
	ch <- s.authID
	s.watchers[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch, nil
}

func (s *memoryStore) update(authID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authID == authID {
		return
	}
	s.authID = authID
	for ch := range s.watchers {
		// slow readers only get the latest value
		select {
		case <-ch:
		default:
		}
		ch <- authID
	}
}

func init() {
	factory.Register(StoreTypeMemory, New)
}
