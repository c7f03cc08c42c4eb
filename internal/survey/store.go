package survey

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a result does not exist for the teacher.
var ErrNotFound = errors.New("survey result not found")

// Result is one saved survey. Results are never edited, only deleted.
type Result struct {
	ID          string    `json:"id"`
	TeacherID   string    `json:"teacherId"`
	StudentID   string    `json:"studentId"`
	ClassID     string    `json:"classId"`
	SurveyType  string    `json:"surveyType"`
	Results     Outcome   `json:"results"`
	CompletedAt time.Time `json:"completedAt"`
}

// Store persists survey results per teacher.
type Store interface {
	Create(ctx context.Context, r Result) error
	Delete(ctx context.Context, teacherID, id string) error
	ListByStudent(ctx context.Context, teacherID, studentID string) ([]Result, error)
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	results map[string]Result
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory result store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string]Result)}
}

func (s *MemoryStore) Create(_ context.Context, r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[r.ID]; exists {
		return fmt.Errorf("survey result %s already exists", r.ID)
	}
	s.results[r.ID] = r
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, teacherID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	if !ok || r.TeacherID != teacherID {
		return ErrNotFound
	}
	delete(s.results, id)
	return nil
}

func (s *MemoryStore) ListByStudent(_ context.Context, teacherID, studentID string) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Result{}
	for _, r := range s.results {
		if r.TeacherID == teacherID && r.StudentID == studentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	return out, nil
}
