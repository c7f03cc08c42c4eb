package survey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/sinifplanim/internal/live"
)

// Topic is the live topic for a teacher's survey results.
func Topic(teacherID string) string {
	return "surveys:" + teacherID
}

// Submission is a completed questionnaire.
type Submission struct {
	TeacherID  string      `json:"-"`
	StudentID  string      `json:"studentId"`
	ClassID    string      `json:"classId"`
	SurveyType string      `json:"surveyType"`
	Answers    map[int]int `json:"answers"`
}

// Service scores submissions and stores the results.
type Service struct {
	catalog *Catalog
	store   Store
	pub     live.Publisher
	now     func() time.Time
}

// NewService creates a survey service. A nil publisher disables live updates.
func NewService(catalog *Catalog, store Store, pub live.Publisher) *Service {
	if pub == nil {
		pub = live.Nop{}
	}
	return &Service{catalog: catalog, store: store, pub: pub, now: time.Now}
}

// Catalog returns the loaded question banks.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Submit scores a completed survey and saves one immutable result.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Result, error) {
	def, ok := s.catalog.Get(sub.SurveyType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSurvey, sub.SurveyType)
	}
	if sub.TeacherID == "" || sub.StudentID == "" || sub.ClassID == "" {
		return nil, fmt.Errorf("%w: teacher, student and class are required", ErrInvalidAnswer)
	}

	outcome, err := Score(def, sub.Answers)
	if err != nil {
		return nil, err
	}

	r := Result{
		ID:          uuid.NewString(),
		TeacherID:   sub.TeacherID,
		StudentID:   sub.StudentID,
		ClassID:     sub.ClassID,
		SurveyType:  def.ID,
		Results:     outcome,
		CompletedAt: s.now().UTC(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		slog.Error("failed to save survey result",
			"teacher_id", sub.TeacherID,
			"student_id", sub.StudentID,
			"survey", def.ID,
			"error", err,
		)
		return nil, fmt.Errorf("save survey result: %w", err)
	}

	live.Notify(ctx, s.pub, Topic(sub.TeacherID), "survey.created", r)
	return &r, nil
}

// Delete removes a saved result.
func (s *Service) Delete(ctx context.Context, teacherID, id string) error {
	if err := s.store.Delete(ctx, teacherID, id); err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("failed to delete survey result", "teacher_id", teacherID, "id", id, "error", err)
		}
		return fmt.Errorf("delete survey result: %w", err)
	}
	live.Notify(ctx, s.pub, Topic(teacherID), "survey.deleted", map[string]string{"id": id})
	return nil
}

// ListForStudent returns a student's results, newest first.
func (s *Service) ListForStudent(ctx context.Context, teacherID, studentID string) ([]Result, error) {
	results, err := s.store.ListByStudent(ctx, teacherID, studentID)
	if err != nil {
		slog.Error("failed to list survey results", "teacher_id", teacherID, "student_id", studentID, "error", err)
		return nil, fmt.Errorf("list survey results: %w", err)
	}
	return results, nil
}

// IsUserError reports errors caused by the submission rather than storage.
func IsUserError(err error) bool {
	return errors.Is(err, ErrUnknownSurvey) || errors.Is(err, ErrIncomplete) ||
		errors.Is(err, ErrInvalidAnswer) || errors.Is(err, ErrNotFound)
}
