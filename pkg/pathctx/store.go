package pathctx

import (
	"context"
	"sync"
)

type Store struct {
	mu       sync.RWMutex
	contexts map[string]context.Context
	ambient  func() context.Context
}

type Option func(*Store)

// WithAmbient sets where lookups that find no registration get their
// context from. The default is context.Background.
func WithAmbient(fn func() context.Context) Option {
	return func(s *Store) {
		s.ambient = fn
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{contexts: make(map[string]context.Context)}
	for _, opt := range opts {
		opt(s)
	}
	if s.ambient == nil {
		s.ambient = context.Background
	}
	return s
}

// SetContextForPath registers ctx for path, replacing any earlier
// registration. Registering the root makes ctx the fallback of every lookup
// in place of the ambient context.
func (s *Store) SetContextForPath(path Path, ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[path.String()] = ctx
}

// GetContext returns the context registered for exactly path, or the ambient
// context.
func (s *Store) GetContext(path Path) context.Context {
	s.mu.RLock()
	ctx, ok := s.contexts[path.String()]
	s.mu.RUnlock()
	if ok {
		return ctx
	}
	return s.ambient()
}

// GetParentContextForPath returns the context registered at the longest
// proper prefix of path. A registered root wins over the ambient context.
// For the root itself the root registration, else the ambient context, is
// returned.
func (s *Store) GetParentContextForPath(path Path) context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !path.IsRoot() {
		for p := path.Parent(); !p.IsRoot(); p = p.Parent() {
			if ctx, ok := s.contexts[p.String()]; ok {
				return ctx
			}
		}
	}
	if ctx, ok := s.contexts[Path(nil).String()]; ok {
		return ctx
	}
	return s.ambient()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contexts)
}
