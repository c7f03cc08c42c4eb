// Package schedule manages each teacher's weekly lesson grid: seven days of
// lessons placed on numbered time slots, plus the slot times and lesson
// duration that define the grid.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidDay      = errors.New("invalid day")
	ErrInvalidSlot     = errors.New("lesson slot out of range")
	ErrInvalidSettings = errors.New("invalid schedule settings")
	// ErrUnchanged is returned by a mutation that has nothing to write.
	ErrUnchanged = errors.New("schedule unchanged")
)

// Day is a weekday name as shown to teachers.
type Day string

const (
	Monday    Day = "Pazartesi"
	Tuesday   Day = "Salı"
	Wednesday Day = "Çarşamba"
	Thursday  Day = "Perşembe"
	Friday    Day = "Cuma"
	Saturday  Day = "Cumartesi"
	Sunday    Day = "Pazar"
)

// Days lists the week in display order.
var Days = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseDay validates a day name.
func ParseDay(s string) (Day, error) {
	for _, d := range Days {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDay, s)
}

// Lesson occupies one slot on one day.
type Lesson struct {
	ID         string  `json:"id"`
	LessonSlot int     `json:"lessonSlot"`
	Subject    string  `json:"subject"`
	Grade      string  `json:"grade"`
	Class      string  `json:"class"`
	Time       string  `json:"time"`
	PlanID     *string `json:"planId,omitempty"`
}

// LessonInput is the teacher-editable part of a lesson.
type LessonInput struct {
	Subject string  `json:"subject"`
	Grade   string  `json:"grade"`
	Class   string  `json:"class"`
	PlanID  *string `json:"planId,omitempty"`
}

// Settings define the grid: one "HH:MM" start time per slot and the lesson
// length in minutes.
type Settings struct {
	TimeSlots      []string `json:"timeSlots"`
	LessonDuration int      `json:"lessonDuration"`
}

// DefaultSettings returns the grid a new teacher starts with.
func DefaultSettings() Settings {
	return Settings{
		TimeSlots:      []string{"08:30", "09:20", "10:10", "11:00", "11:50", "13:30", "14:20", "15:10"},
		LessonDuration: 40,
	}
}

// SettingsPatch changes only the fields that are set.
type SettingsPatch struct {
	TimeSlots      []string `json:"timeSlots,omitempty"`
	LessonDuration *int     `json:"lessonDuration,omitempty"`
}

func (p SettingsPatch) validate() error {
	if p.TimeSlots == nil && p.LessonDuration == nil {
		return fmt.Errorf("%w: nothing to update", ErrInvalidSettings)
	}
	if p.LessonDuration != nil && *p.LessonDuration <= 0 {
		return fmt.Errorf("%w: lesson duration must be positive", ErrInvalidSettings)
	}
	for i, slot := range p.TimeSlots {
		if _, err := time.Parse("15:04", slot); err != nil {
			return fmt.Errorf("%w: time slot %d %q is not HH:MM", ErrInvalidSettings, i, slot)
		}
	}
	return nil
}

// Document is a teacher's whole schedule.
type Document struct {
	TeacherID string           `json:"teacherId"`
	Days      map[Day][]Lesson `json:"days"`
	Settings  Settings         `json:"settings"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// NewDocument returns an empty week with default settings.
func NewDocument(teacherID string) *Document {
	d := &Document{
		TeacherID: teacherID,
		Days:      make(map[Day][]Lesson, len(Days)),
		Settings:  DefaultSettings(),
	}
	d.normalize()
	return d
}

// normalize makes sure every day has a non-nil lesson list.
func (d *Document) normalize() {
	if d.Days == nil {
		d.Days = make(map[Day][]Lesson, len(Days))
	}
	for _, day := range Days {
		if d.Days[day] == nil {
			d.Days[day] = []Lesson{}
		}
	}
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := *d
	c.Settings.TimeSlots = append([]string(nil), d.Settings.TimeSlots...)
	c.Days = make(map[Day][]Lesson, len(d.Days))
	for day, lessons := range d.Days {
		c.Days[day] = append([]Lesson{}, lessons...)
	}
	return &c
}

func (d *Document) slotTime(slot int) string {
	if slot >= 0 && slot < len(d.Settings.TimeSlots) {
		return d.Settings.TimeSlots[slot]
	}
	return ""
}

// SetLesson writes in into the slot on day. An occupied slot keeps its lesson
// id and takes the new fields, keeping its plan link when in has none; an
// empty slot gets a new lesson. A nil input
// clears the slot and returns ErrUnchanged when the slot was already empty.
func (d *Document) SetLesson(day Day, in *LessonInput, slot int) error {
	if _, err := ParseDay(string(day)); err != nil {
		return err
	}
	if slot < 0 || slot >= len(d.Settings.TimeSlots) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidSlot, slot, len(d.Settings.TimeSlots))
	}
	d.normalize()

	lessons := d.Days[day]
	idx := -1
	for i, l := range lessons {
		if l.LessonSlot == slot {
			idx = i
			break
		}
	}

	if in == nil {
		if idx < 0 {
			return ErrUnchanged
		}
		d.Days[day] = append(lessons[:idx:idx], lessons[idx+1:]...)
		return nil
	}

	lesson := Lesson{
		ID:         uuid.NewString(),
		LessonSlot: slot,
		Subject:    in.Subject,
		Grade:      in.Grade,
		Class:      in.Class,
		Time:       d.slotTime(slot),
		PlanID:     in.PlanID,
	}
	if idx >= 0 {
		lesson.ID = lessons[idx].ID
		if lesson.PlanID == nil {
			lesson.PlanID = lessons[idx].PlanID
		}
		updated := append([]Lesson{}, lessons...)
		updated[idx] = lesson
		d.Days[day] = updated
		return nil
	}
	d.Days[day] = append(append([]Lesson{}, lessons...), lesson)
	return nil
}

// ApplySettings applies patch. When the slot count shrinks, every day drops
// lessons past the new last slot and the rest are renumbered 0..k-1 in slot
// order, each taking its new slot's time.
func (d *Document) ApplySettings(patch SettingsPatch) error {
	if err := patch.validate(); err != nil {
		return err
	}
	d.normalize()

	if patch.LessonDuration != nil {
		d.Settings.LessonDuration = *patch.LessonDuration
	}
	if patch.TimeSlots == nil {
		return nil
	}

	shrunk := len(patch.TimeSlots) < len(d.Settings.TimeSlots)
	d.Settings.TimeSlots = append([]string(nil), patch.TimeSlots...)
	for _, day := range Days {
		if shrunk {
			d.Days[day] = reclip(d.Days[day], len(d.Settings.TimeSlots))
		}
		for i := range d.Days[day] {
			d.Days[day][i].Time = d.slotTime(d.Days[day][i].LessonSlot)
		}
	}
	return nil
}

// reclip keeps lessons with slot < n and renumbers the survivors contiguously.
func reclip(lessons []Lesson, n int) []Lesson {
	kept := make([]Lesson, 0, len(lessons))
	for _, l := range lessons {
		if l.LessonSlot < n {
			kept = append(kept, l)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].LessonSlot < kept[j].LessonSlot })
	for i := range kept {
		kept[i].LessonSlot = i
	}
	return kept
}

// ReplaceDays swaps in a full week, as done when importing a schedule. Days
// absent from week are left as they are. Lessons without an id get one and
// every lesson must sit on a distinct valid slot.
func (d *Document) ReplaceDays(week map[Day][]Lesson) error {
	d.normalize()
	next := make(map[Day][]Lesson, len(week))
	for day, lessons := range week {
		if _, err := ParseDay(string(day)); err != nil {
			return err
		}
		seen := make(map[int]bool, len(lessons))
		out := make([]Lesson, 0, len(lessons))
		for _, l := range lessons {
			if l.LessonSlot < 0 || l.LessonSlot >= len(d.Settings.TimeSlots) {
				return fmt.Errorf("%w: %s slot %d", ErrInvalidSlot, day, l.LessonSlot)
			}
			if seen[l.LessonSlot] {
				return fmt.Errorf("%w: %s slot %d used twice", ErrInvalidSlot, day, l.LessonSlot)
			}
			seen[l.LessonSlot] = true
			if l.ID == "" {
				l.ID = uuid.NewString()
			}
			if l.Time == "" {
				l.Time = d.slotTime(l.LessonSlot)
			}
			out = append(out, l)
		}
		next[day] = out
	}
	for day, lessons := range next {
		d.Days[day] = lessons
	}
	return nil
}
