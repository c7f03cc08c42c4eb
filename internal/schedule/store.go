package schedule

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Store persists schedule documents. Update runs fn against the current
// document and saves the result atomically; if fn returns an error nothing
// is written.
type Store interface {
	Get(ctx context.Context, teacherID string) (*Document, error)
	Update(ctx context.Context, teacherID string, fn func(*Document) error) (*Document, error)
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	docs map[string]*Document
	mu   sync.Mutex
}

// NewMemoryStore creates a new in-memory schedule store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*Document)}
}

func (s *MemoryStore) load(teacherID string) *Document {
	doc, ok := s.docs[teacherID]
	if !ok {
		doc = NewDocument(teacherID)
		doc.UpdatedAt = time.Now()
		s.docs[teacherID] = doc
	}
	return doc
}

func (s *MemoryStore) Get(_ context.Context, teacherID string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(teacherID).Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, teacherID string, fn func(*Document) error) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.load(teacherID)
	next := current.Clone()
	if err := fn(next); err != nil {
		if errors.Is(err, ErrUnchanged) {
			return current.Clone(), err
		}
		return nil, err
	}
	next.UpdatedAt = time.Now()
	s.docs[teacherID] = next
	return next.Clone(), nil
}
