package httpapi

import (
	"net/http"

	"github.com/p-n-ai/sinifplanim/internal/roster"
	"github.com/p-n-ai/sinifplanim/internal/survey"
)

type submitSurveyRequest struct {
	Answers map[int]int `json:"answers" validate:"required"`
}

func (s *Server) handleListSurveys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.surveys.Catalog().All())
}

func (s *Server) handleGetSurvey(w http.ResponseWriter, r *http.Request) {
	def, ok := s.surveys.Catalog().Get(r.PathValue("type"))
	if !ok {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleSubmitSurvey scores a student's answers. The teacher, class and
// student come from the session, never from the body.
func (s *Server) handleSubmitSurvey(w http.ResponseWriter, r *http.Request) {
	sess, _ := roster.SessionFrom(r.Context())
	var req submitSurveyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.surveys.Submit(r.Context(), survey.Submission{
		TeacherID:  sess.TeacherID,
		StudentID:  sess.Student.ID,
		ClassID:    sess.ClassID,
		SurveyType: r.PathValue("type"),
		Answers:    req.Answers,
	})
	if err != nil {
		fail(w, r, err, "Anket sonuçları veritabanına kaydedilirken bir hata oluştu: "+msgUnknown)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleOwnResults(w http.ResponseWriter, r *http.Request) {
	sess, _ := roster.SessionFrom(r.Context())
	results, err := s.surveys.ListForStudent(r.Context(), sess.TeacherID, sess.Student.ID)
	if err != nil {
		fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleStudentResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.surveys.ListForStudent(r.Context(), teacherFrom(r.Context()), r.PathValue("studentID"))
	if err != nil {
		fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	if err := s.surveys.Delete(r.Context(), teacherFrom(r.Context()), r.PathValue("id")); err != nil {
		fail(w, r, err, "Anket sonucu silinirken bir hata oluştu.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
