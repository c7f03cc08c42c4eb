package httpapi

import (
	"net/http"

	"github.com/p-n-ai/sinifplanim/internal/schedule"
)

type updateLessonRequest struct {
	Day        schedule.Day          `json:"day" validate:"required"`
	LessonSlot *int                  `json:"lessonSlot" validate:"required,min=0"`
	Lesson     *schedule.LessonInput `json:"lesson"`
}

type setScheduleRequest struct {
	Days map[schedule.Day][]schedule.Lesson `json:"days" validate:"required"`
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	doc, err := s.schedule.Get(r.Context(), teacherFrom(r.Context()))
	if err != nil {
		fail(w, r, err, "Ders programı yüklenirken bir sorun oluştu.")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleUpdateLesson places, edits or clears (lesson: null) one slot.
func (s *Server) handleUpdateLesson(w http.ResponseWriter, r *http.Request) {
	var req updateLessonRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	doc, err := s.schedule.UpdateLesson(r.Context(), teacherFrom(r.Context()), req.Day, req.Lesson, *req.LessonSlot)
	if err != nil {
		fail(w, r, err, "Ders güncellenirken bir hata oluştu.")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch schedule.SettingsPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	doc, err := s.schedule.UpdateSettings(r.Context(), teacherFrom(r.Context()), patch)
	if err != nil {
		fail(w, r, err, "Ayarlar güncellenirken bir hata oluştu.")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSetSchedule(w http.ResponseWriter, r *http.Request) {
	var req setScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	doc, err := s.schedule.SetSchedule(r.Context(), teacherFrom(r.Context()), req.Days)
	if err != nil {
		fail(w, r, err, "Ders programı aktarılırken bir hata oluştu.")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
