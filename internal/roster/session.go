package roster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/p-n-ai/sinifplanim/internal/platform/cache"
)

// ErrNoSession is returned for unknown or expired tokens.
var ErrNoSession = errors.New("no session")

// Session is a signed-in student.
type Session struct {
	Token     string    `json:"token"`
	TeacherID string    `json:"teacherId"`
	ClassID   string    `json:"classId"`
	Student   Student   `json:"student"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is no longer valid at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore keeps student sessions by token.
type SessionStore interface {
	Save(ctx context.Context, s Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	sessions map[string]Session
	mu       sync.RWMutex
	now      func() time.Time
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session), now: time.Now}
}

func (m *MemorySessionStore) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = s
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, token string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, ErrNoSession
	}
	if s.Expired(m.now()) {
		delete(m.sessions, token)
		return nil, ErrNoSession
	}
	return &s, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

// RedisSessionStore keeps sessions in Redis so they survive restarts and
// are shared between instances. Redis expires the keys.
type RedisSessionStore struct {
	cache *cache.Cache
}

// NewRedisSessionStore creates a session store backed by c.
func NewRedisSessionStore(c *cache.Cache) *RedisSessionStore {
	return &RedisSessionStore{cache: c}
}

func sessionKey(token string) string {
	return "session:" + token
}

func (r *RedisSessionStore) Save(ctx context.Context, s Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	return r.cache.SetJSON(ctx, sessionKey(s.Token), s, ttl)
}

func (r *RedisSessionStore) Get(ctx context.Context, token string) (*Session, error) {
	var s Session
	if err := r.cache.GetJSON(ctx, sessionKey(token), &s); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	return &s, nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, token string) error {
	return r.cache.Delete(ctx, sessionKey(token))
}

type sessionCtxKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

// SessionFrom returns the session stored by WithSession, if any.
func SessionFrom(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionCtxKey{}).(*Session)
	return s, ok && s != nil
}
