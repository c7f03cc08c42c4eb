package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrQuotaExceeded is returned by a UsageGate when the user has no generation
// credits left.
var ErrQuotaExceeded = errors.New("AI quota exceeded")

// UsageGate checks and records per-user generation credits. One successful
// generation costs one credit.
type UsageGate interface {
	// Allow returns nil if the user may run another generation.
	Allow(ctx context.Context, userID string) error
	// Record consumes one credit for the user.
	Record(ctx context.Context, userID string) error
}

// Unmetered lets every request through and records nothing.
type Unmetered struct{}

func (Unmetered) Allow(context.Context, string) error  { return nil }
func (Unmetered) Record(context.Context, string) error { return nil }

// InMemoryUsage is a simple in-memory credit tracker for tests and
// single-process development runs.
type InMemoryUsage struct {
	mu     sync.RWMutex
	limits map[string]int // user -> credit limit
	used   map[string]int // user -> credits used
}

// NewInMemoryUsage creates a new in-memory usage tracker.
func NewInMemoryUsage() *InMemoryUsage {
	return &InMemoryUsage{
		limits: make(map[string]int),
		used:   make(map[string]int),
	}
}

// SetLimit sets the credit limit for a user.
func (u *InMemoryUsage) SetLimit(userID string, credits int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.limits[userID] = credits
}

func (u *InMemoryUsage) Allow(_ context.Context, userID string) error {
	u.mu.RLock()
	defer u.mu.RUnlock()

	limit, hasLimit := u.limits[userID]
	if !hasLimit {
		// No limit set means unlimited.
		return nil
	}
	if used := u.used[userID]; used >= limit {
		return fmt.Errorf("%w: %d/%d", ErrQuotaExceeded, used, limit)
	}
	return nil
}

func (u *InMemoryUsage) Record(_ context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.used[userID]++
	return nil
}

// Used returns the credits consumed by a user.
func (u *InMemoryUsage) Used(userID string) int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.used[userID]
}
