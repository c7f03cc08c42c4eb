package tier

import (
	"context"
	"sync"
)

// Store persists profiles. Get creates a free profile on first access.
type Store interface {
	Get(ctx context.Context, userID string) (*Profile, error)
	Update(ctx context.Context, userID string, fn func(*Profile) error) (*Profile, error)
	// IncrementUsage adds one to the usage counter and returns the new count.
	IncrementUsage(ctx context.Context, userID string) (int, error)
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	profiles map[string]*Profile
	mu       sync.Mutex
}

// NewMemoryStore creates a new in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]*Profile)}
}

func (s *MemoryStore) load(userID string) *Profile {
	p, ok := s.profiles[userID]
	if !ok {
		p = &Profile{UserID: userID, Tier: Free}
		s.profiles[userID] = p
	}
	return p
}

func clone(p *Profile) *Profile {
	c := *p
	if p.TierStartDate != nil {
		t := *p.TierStartDate
		c.TierStartDate = &t
	}
	return &c
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.load(userID)), nil
}

func (s *MemoryStore) Update(_ context.Context, userID string, fn func(*Profile) error) (*Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := clone(s.load(userID))
	if err := fn(next); err != nil {
		return nil, err
	}
	s.profiles[userID] = next
	return clone(next), nil
}

func (s *MemoryStore) IncrementUsage(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.load(userID)
	p.AIUsageCount++
	return p.AIUsageCount, nil
}
