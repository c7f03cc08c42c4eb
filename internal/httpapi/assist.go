package httpapi

import (
	"net/http"

	"github.com/p-n-ai/sinifplanim/internal/ai"
	"github.com/p-n-ai/sinifplanim/internal/assist"
)

type noteRequest struct {
	Transcript string `json:"transcript" validate:"required,max=20000"`
}

type askRequest struct {
	Question string       `json:"question" validate:"required,max=4000"`
	History  []ai.Message `json:"history,omitempty" validate:"max=40,dive"`
}

type forumAnswerRequest struct {
	Title       string `json:"title" validate:"max=200"`
	Description string `json:"description" validate:"max=10000"`
}

// AI actions answer 200 even when the model failed; the body then carries
// fallback=true and the notice to show. Only quota and input errors fail.

func (s *Server) handleDescription(w http.ResponseWriter, r *http.Request) {
	var req assist.DescriptionInput
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.assist.Description(r.Context(), teacherFrom(r.Context()), req)
	respondAI(w, r, res, err)
}

func (s *Server) handleNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.assist.SpeechToNote(r.Context(), teacherFrom(r.Context()), req.Transcript)
	respondAI(w, r, res, err)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.assist.Ask(r.Context(), teacherFrom(r.Context()), req.Question, req.History)
	respondAI(w, r, res, err)
}

func (s *Server) handleForumAnswer(w http.ResponseWriter, r *http.Request) {
	var req forumAnswerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.assist.ForumAnswer(r.Context(), teacherFrom(r.Context()), req.Title, req.Description)
	respondAI(w, r, res, err)
}

func (s *Server) handleIndividualReport(w http.ResponseWriter, r *http.Request) {
	var req assist.IndividualReportInput
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.assist.IndividualReport(r.Context(), teacherFrom(r.Context()), req)
	respondAI(w, r, res, err)
}

func (s *Server) handleClassReport(w http.ResponseWriter, r *http.Request) {
	var req assist.ClassReportInput
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.assist.ClassReport(r.Context(), teacherFrom(r.Context()), req)
	respondAI(w, r, res, err)
}

func respondAI(w http.ResponseWriter, r *http.Request, res any, err error) {
	if err != nil {
		fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
