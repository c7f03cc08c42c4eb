package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/sinifplanim/internal/live"
)

const (
	classCodeLength   = 6
	studentCodeLength = 5
	codeAttempts      = 10

	// DefaultSessionTTL bounds a student sign-in.
	DefaultSessionTTL = 12 * time.Hour
)

// Topic is the live topic for a teacher's classes and students.
func Topic(teacherID string) string {
	return "roster:" + teacherID
}

// Service manages classes and student sign-in.
type Service struct {
	store    Store
	sessions SessionStore
	pub      live.Publisher
	ttl      time.Duration
	now      func() time.Time
	newCode  func(n int) string
}

// NewService creates a roster service. A nil publisher disables live updates
// and a non-positive ttl uses DefaultSessionTTL.
func NewService(store Store, sessions SessionStore, pub live.Publisher, ttl time.Duration) *Service {
	if pub == nil {
		pub = live.Nop{}
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Service{store: store, sessions: sessions, pub: pub, ttl: ttl, now: time.Now, newCode: GenerateCode}
}

// CreateClass adds a class with a fresh class code.
func (s *Service) CreateClass(ctx context.Context, teacherID, name string) (*Class, error) {
	name = CleanName(name)
	if teacherID == "" || name == "" {
		return nil, ErrInvalidName
	}
	code, err := s.unusedClassCode(ctx)
	if err != nil {
		slog.Error("failed to pick class code", "teacher_id", teacherID, "error", err)
		return nil, fmt.Errorf("create class: %w", err)
	}
	c := Class{
		ID:        uuid.NewString(),
		TeacherID: teacherID,
		Name:      name,
		ClassCode: code,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateClass(ctx, c); err != nil {
		slog.Error("failed to create class", "teacher_id", teacherID, "error", err)
		return nil, fmt.Errorf("create class: %w", err)
	}
	live.Notify(ctx, s.pub, Topic(teacherID), "class.created", c)
	return &c, nil
}

// unusedClassCode draws class codes until one is held by no class of any
// teacher, so a code login always names a single class.
func (s *Service) unusedClassCode(ctx context.Context) (string, error) {
	for range codeAttempts {
		code := s.newCode(classCodeLength)
		held, err := s.store.ClassesByCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check class code: %w", err)
		}
		if len(held) == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("no unused class code after %d attempts", codeAttempts)
}

// Classes lists the teacher's classes, oldest first.
func (s *Service) Classes(ctx context.Context, teacherID string) ([]Class, error) {
	cs, err := s.store.ListClasses(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return cs, nil
}

// DeleteClass removes a class and all of its students.
func (s *Service) DeleteClass(ctx context.Context, teacherID, classID string) error {
	if err := s.store.DeleteClass(ctx, teacherID, classID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("failed to delete class", "teacher_id", teacherID, "class_id", classID, "error", err)
		}
		return fmt.Errorf("delete class: %w", err)
	}
	live.Notify(ctx, s.pub, Topic(teacherID), "class.deleted", map[string]string{"id": classID})
	return nil
}

// AddStudents adds students to one of the teacher's classes, each with a
// student code unique within the class.
func (s *Service) AddStudents(ctx context.Context, teacherID, classID string, in []StudentInput) ([]Student, error) {
	if _, err := s.store.GetClass(ctx, teacherID, classID); err != nil {
		return nil, fmt.Errorf("add students: %w", err)
	}
	existing, err := s.store.ListStudents(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("add students: %w", err)
	}
	taken := make(map[string]bool, len(existing)+len(in))
	for _, st := range existing {
		taken[st.StudentCode] = true
	}

	out := make([]Student, 0, len(in))
	for _, si := range in {
		name := CleanName(si.Name)
		if name == "" {
			return nil, ErrInvalidName
		}
		code := GenerateCode(studentCodeLength)
		for taken[code] {
			code = GenerateCode(studentCodeLength)
		}
		taken[code] = true
		out = append(out, Student{
			ID:          uuid.NewString(),
			ClassID:     classID,
			Name:        name,
			Number:      CleanName(si.Number),
			StudentCode: code,
		})
	}
	if len(out) == 0 {
		return out, nil
	}

	if err := s.store.AddStudents(ctx, out); err != nil {
		slog.Error("failed to add students", "class_id", classID, "count", len(out), "error", err)
		return nil, fmt.Errorf("add students: %w", err)
	}
	live.Notify(ctx, s.pub, Topic(teacherID), "students.added", out)
	return out, nil
}

// Students lists a class's students in insertion order.
func (s *Service) Students(ctx context.Context, teacherID, classID string) ([]Student, error) {
	if _, err := s.store.GetClass(ctx, teacherID, classID); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	sts, err := s.store.ListStudents(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return sts, nil
}

// RemoveStudent deletes one student from a class.
func (s *Service) RemoveStudent(ctx context.Context, teacherID, classID, studentID string) error {
	if _, err := s.store.GetClass(ctx, teacherID, classID); err != nil {
		return fmt.Errorf("remove student: %w", err)
	}
	if err := s.store.DeleteStudent(ctx, classID, studentID); err != nil {
		return fmt.Errorf("remove student: %w", err)
	}
	live.Notify(ctx, s.pub, Topic(teacherID), "student.removed", map[string]string{"id": studentID, "classId": classID})
	return nil
}

// Login signs a student in. Teachers are visited in a fixed order and only
// the first class carrying the code is checked for each teacher. Any miss
// returns ErrInvalidCode.
func (s *Service) Login(ctx context.Context, classCode, studentCode string) (*Session, error) {
	classCode, studentCode = NormalizeCode(classCode), NormalizeCode(studentCode)
	if classCode == "" || studentCode == "" {
		return nil, ErrInvalidCode
	}

	classes, err := s.store.ClassesByCode(ctx, classCode)
	if err != nil {
		slog.Error("student login lookup failed", "error", err)
		return nil, fmt.Errorf("login: %w", err)
	}

	seen := make(map[string]bool)
	for _, c := range classes {
		if seen[c.TeacherID] {
			continue
		}
		seen[c.TeacherID] = true

		st, err := s.store.StudentByCode(ctx, c.ID, studentCode)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			slog.Error("student login lookup failed", "class_id", c.ID, "error", err)
			return nil, fmt.Errorf("login: %w", err)
		}
		return s.startSession(ctx, c, *st)
	}
	return nil, ErrInvalidCode
}

func (s *Service) startSession(ctx context.Context, c Class, st Student) (*Session, error) {
	now := s.now().UTC()
	sess := Session{
		Token:     generateToken(),
		TeacherID: c.TeacherID,
		ClassID:   c.ID,
		Student:   st,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		slog.Error("failed to save student session", "student_id", st.ID, "error", err)
		return nil, fmt.Errorf("save session: %w", err)
	}
	slog.Info("student signed in", "student_id", st.ID, "class_id", c.ID)
	return &sess, nil
}

// Resolve returns the live session for token.
func (s *Service) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	return s.sessions.Get(ctx, token)
}

// Logout ends the session. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

// IsUserError reports errors caused by bad input rather than storage.
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidCode) || errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoSession)
}
