// Package session keeps one form per browser session in a bounded LRU.
package session

import (
	"fmt"

	"dessertcast/form"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Store maps session ids to forms. When full, the least recently used form
// is evicted and its visitor starts over with a fresh one.
type Store struct {
	cache   *lru.Cache[string, *form.Session]
	factory func() *form.Session
	logger  *zap.Logger
}

// NewStore creates a store holding at most capacity sessions. factory
// builds each new form.
func NewStore(capacity int, factory func() *form.Session, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if factory == nil {
		factory = func() *form.Session { return form.NewSession() }
	}
	s := &Store{factory: factory, logger: logger}
	cache, err := lru.NewWithEvict[string, *form.Session](capacity, s.onEvict)
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

// Create starts a new form and returns its id.
func (s *Store) Create() (string, *form.Session) {
	id := uuid.NewString()
	sess := s.factory()
	s.cache.Add(id, sess)
	s.logger.Debug("session created", zap.String("session", id))
	return id, sess
}

// Get returns the form for id and marks it recently used.
func (s *Store) Get(id string) (*form.Session, bool) {
	if id == "" {
		return nil, false
	}
	return s.cache.Get(id)
}

// GetOrCreate returns the form for id, or a new one with a new id when id is
// unknown.
func (s *Store) GetOrCreate(id string) (string, *form.Session, bool) {
	if sess, ok := s.Get(id); ok {
		return id, sess, false
	}
	newID, sess := s.Create()
	return newID, sess, true
}

func (s *Store) Len() int {
	return s.cache.Len()
}

func (s *Store) onEvict(id string, _ *form.Session) {
	s.logger.Info("session evicted", zap.String("session", id))
}
