package roster

import (
	"context"
	"sort"
	"sync"
)

// Store persists classes and students.
type Store interface {
	CreateClass(ctx context.Context, c Class) error
	GetClass(ctx context.Context, teacherID, classID string) (*Class, error)
	ListClasses(ctx context.Context, teacherID string) ([]Class, error)
	// DeleteClass removes the class and its students.
	DeleteClass(ctx context.Context, teacherID, classID string) error

	AddStudents(ctx context.Context, students []Student) error
	ListStudents(ctx context.Context, classID string) ([]Student, error)
	DeleteStudent(ctx context.Context, classID, studentID string) error

	// ClassesByCode returns every class with the code, grouped by teacher in
	// a stable order.
	ClassesByCode(ctx context.Context, classCode string) ([]Class, error)
	StudentByCode(ctx context.Context, classID, studentCode string) (*Student, error)
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	classes  map[string]Class
	students map[string][]Student // class id -> students in insertion order
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory roster store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		classes:  make(map[string]Class),
		students: make(map[string][]Student),
	}
}

func (s *MemoryStore) CreateClass(_ context.Context, c Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes[c.ID] = c
	return nil
}

func (s *MemoryStore) GetClass(_ context.Context, teacherID, classID string) (*Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.classes[classID]
	if !ok || c.TeacherID != teacherID {
		return nil, ErrNotFound
	}
	return &c, nil
}

func sortClasses(cs []Class) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].TeacherID != cs[j].TeacherID {
			return cs[i].TeacherID < cs[j].TeacherID
		}
		return cs[i].CreatedAt.Before(cs[j].CreatedAt)
	})
}

func (s *MemoryStore) ListClasses(_ context.Context, teacherID string) ([]Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Class{}
	for _, c := range s.classes {
		if c.TeacherID == teacherID {
			out = append(out, c)
		}
	}
	sortClasses(out)
	return out, nil
}

func (s *MemoryStore) DeleteClass(_ context.Context, teacherID, classID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.classes[classID]
	if !ok || c.TeacherID != teacherID {
		return ErrNotFound
	}
	delete(s.classes, classID)
	delete(s.students, classID)
	return nil
}

func (s *MemoryStore) AddStudents(_ context.Context, students []Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range students {
		s.students[st.ClassID] = append(s.students[st.ClassID], st)
	}
	return nil
}

func (s *MemoryStore) ListStudents(_ context.Context, classID string) ([]Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Student{}, s.students[classID]...), nil
}

func (s *MemoryStore) DeleteStudent(_ context.Context, classID, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.students[classID]
	for i, st := range list {
		if st.ID == studentID {
			s.students[classID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) ClassesByCode(_ context.Context, classCode string) ([]Class, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Class{}
	for _, c := range s.classes {
		if c.ClassCode == classCode {
			out = append(out, c)
		}
	}
	sortClasses(out)
	return out, nil
}

func (s *MemoryStore) StudentByCode(_ context.Context, classID, studentCode string) (*Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.students[classID] {
		if st.StudentCode == studentCode {
			return &st, nil
		}
	}
	return nil, ErrNotFound
}
