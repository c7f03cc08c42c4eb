package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/sinifplanim/internal/live"
)

// Topic is the live topic carrying a teacher's schedule snapshots.
func Topic(teacherID string) string {
	return "schedule:" + teacherID
}

// Service applies schedule mutations and announces the new snapshot.
type Service struct {
	store Store
	pub   live.Publisher
}

// NewService creates a schedule service. A nil publisher disables live updates.
func NewService(store Store, pub live.Publisher) *Service {
	if pub == nil {
		pub = live.Nop{}
	}
	return &Service{store: store, pub: pub}
}

// Get returns the teacher's schedule, creating the default one on first use.
func (s *Service) Get(ctx context.Context, teacherID string) (*Document, error) {
	doc, err := s.store.Get(ctx, teacherID)
	if err != nil {
		slog.Error("failed to load schedule", "teacher_id", teacherID, "error", err)
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return doc, nil
}

// UpdateLesson adds, edits or clears (nil input) the lesson at slot on day.
func (s *Service) UpdateLesson(ctx context.Context, teacherID string, day Day, in *LessonInput, slot int) (*Document, error) {
	return s.update(ctx, teacherID, "lesson", func(d *Document) error {
		return d.SetLesson(day, in, slot)
	})
}

// UpdateSettings changes the time slots and/or lesson duration.
func (s *Service) UpdateSettings(ctx context.Context, teacherID string, patch SettingsPatch) (*Document, error) {
	return s.update(ctx, teacherID, "settings", func(d *Document) error {
		return d.ApplySettings(patch)
	})
}

// SetSchedule replaces the lessons of every day present in week.
func (s *Service) SetSchedule(ctx context.Context, teacherID string, week map[Day][]Lesson) (*Document, error) {
	return s.update(ctx, teacherID, "import", func(d *Document) error {
		return d.ReplaceDays(week)
	})
}

func (s *Service) update(ctx context.Context, teacherID, op string, fn func(*Document) error) (*Document, error) {
	doc, err := s.store.Update(ctx, teacherID, fn)
	if errors.Is(err, ErrUnchanged) {
		return doc, nil
	}
	if err != nil {
		if !IsUserError(err) {
			slog.Error("failed to update schedule", "teacher_id", teacherID, "op", op, "error", err)
		}
		return nil, fmt.Errorf("update schedule (%s): %w", op, err)
	}

	live.Notify(ctx, s.pub, Topic(teacherID), "schedule.updated", doc)
	return doc, nil
}

// IsUserError reports errors caused by bad input rather than storage.
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidDay) || errors.Is(err, ErrInvalidSlot) || errors.Is(err, ErrInvalidSettings)
}
