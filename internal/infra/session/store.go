// Package session keeps review sessions in memory.
package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bryanwahyu/apr-reconciler/internal/domain/review"
)

const DefaultCapacity = 256

// Store holds sessions in an LRU cache; the least recently used session is
// dropped once capacity is reached.
type Store struct {
	cache  *lru.Cache[string, *Session]
	now    func() time.Time
	logger *slog.Logger
}

func NewStore(capacity int, logger *slog.Logger) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.NewWithEvict(capacity, func(id string, _ *Session) {
		logger.Info("session.dropped", "session_id", id)
	})
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	return &Store{cache: cache, now: time.Now, logger: logger}, nil
}

func (s *Store) Create() *Session {
	sess := newSession(uuid.NewString(), s.now)
	s.cache.Add(sess.ID, sess)
	s.logger.Info("session.created", "session_id", sess.ID)
	return sess
}

func (s *Store) Get(id string) (*Session, error) {
	sess, ok := s.cache.Get(id)
	if !ok {
		return nil, review.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Store) Delete(id string) bool {
	return s.cache.Remove(id)
}

func (s *Store) Len() int { return s.cache.Len() }
