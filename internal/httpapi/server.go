// Package httpapi exposes the planner services as a JSON HTTP API.
//
// Teachers are identified by a header set by the upstream auth proxy,
// students by the bearer token returned from the code login, and the admin
// by a static token.
package httpapi

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/p-n-ai/sinifplanim/internal/assist"
	"github.com/p-n-ai/sinifplanim/internal/forum"
	"github.com/p-n-ai/sinifplanim/internal/live"
	"github.com/p-n-ai/sinifplanim/internal/platform/config"
	"github.com/p-n-ai/sinifplanim/internal/roster"
	"github.com/p-n-ai/sinifplanim/internal/schedule"
	"github.com/p-n-ai/sinifplanim/internal/survey"
	"github.com/p-n-ai/sinifplanim/internal/tier"
)

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Deps are the services the API serves.
type Deps struct {
	Schedule *schedule.Service
	Surveys  *survey.Service
	Forum    *forum.Service
	Tiers    *tier.Gate
	Roster   *roster.Service
	Assist   *assist.Service
	Hub      *live.Hub
	Auth     config.AuthConfig
	Checks   []Check
}

// Server routes requests to the services.
type Server struct {
	schedule *schedule.Service
	surveys  *survey.Service
	forum    *forum.Service
	tiers    *tier.Gate
	roster   *roster.Service
	assist   *assist.Service
	hub      *live.Hub
	auth     config.AuthConfig
	checks   []Check
	mux      *http.ServeMux
}

// New builds the server and its routes.
func New(d Deps) *Server {
	if d.Auth.TeacherHeader == "" {
		d.Auth.TeacherHeader = "X-User-ID"
	}
	s := &Server{
		schedule: d.Schedule,
		surveys:  d.Surveys,
		forum:    d.Forum,
		tiers:    d.Tiers,
		roster:   d.Roster,
		assist:   d.Assist,
		hub:      d.Hub,
		auth:     d.Auth,
		checks:   d.Checks,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the root handler with request logging.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

func (s *Server) routes() {
	m := s.mux
	t := s.requireTeacher
	st := s.requireStudent

	m.HandleFunc("GET /healthz", s.handleHealthz)
	m.HandleFunc("GET /readyz", s.handleReadyz)
	m.HandleFunc("GET /ws", s.handleWS)

	m.HandleFunc("GET /api/schedule", t(s.handleGetSchedule))
	m.HandleFunc("PUT /api/schedule", t(s.handleSetSchedule))
	m.HandleFunc("PUT /api/schedule/lessons", t(s.handleUpdateLesson))
	m.HandleFunc("PATCH /api/schedule/settings", t(s.handleUpdateSettings))

	m.HandleFunc("GET /api/surveys", s.handleListSurveys)
	m.HandleFunc("GET /api/surveys/{type}", s.handleGetSurvey)
	m.HandleFunc("GET /api/students/{studentID}/surveys", t(s.handleStudentResults))
	m.HandleFunc("DELETE /api/survey-results/{id}", t(s.handleDeleteResult))

	m.HandleFunc("GET /api/forum/posts", t(s.handleListPosts))
	m.HandleFunc("POST /api/forum/posts", t(s.handleCreatePost))
	m.HandleFunc("GET /api/forum/posts/{postID}", t(s.handleGetThread))
	m.HandleFunc("DELETE /api/forum/posts/{postID}", t(s.handleDeletePost))
	m.HandleFunc("POST /api/forum/posts/{postID}/replies", t(s.handleAddReply))
	m.HandleFunc("POST /api/forum/posts/{postID}/ai-reply", t(s.handleAIReply))
	m.HandleFunc("DELETE /api/forum/posts/{postID}/replies/{replyID}", t(s.handleDeleteReply))
	m.HandleFunc("POST /api/forum/posts/{postID}/replies/{replyID}/upvote", t(s.handleUpvote))
	m.HandleFunc("POST /api/forum/posts/{postID}/replies/{replyID}/comments", t(s.handleAddComment))
	m.HandleFunc("DELETE /api/forum/posts/{postID}/replies/{replyID}/comments/{commentID}", t(s.handleDeleteComment))

	m.HandleFunc("GET /api/plans", s.handlePlans)
	m.HandleFunc("GET /api/profile", t(s.handleProfile))
	m.HandleFunc("GET /api/usage", t(s.handleUsage))
	m.HandleFunc("POST /api/upgrade", t(s.handleRequestUpgrade))
	m.HandleFunc("POST /api/admin/users/{userID}/approve", s.requireAdmin(s.handleApprove))

	m.HandleFunc("GET /api/classes", t(s.handleListClasses))
	m.HandleFunc("POST /api/classes", t(s.handleCreateClass))
	m.HandleFunc("DELETE /api/classes/{classID}", t(s.handleDeleteClass))
	m.HandleFunc("GET /api/classes/{classID}/students", t(s.handleListStudents))
	m.HandleFunc("POST /api/classes/{classID}/students", t(s.handleAddStudents))
	m.HandleFunc("GET /api/classes/{classID}/students.xlsx", t(s.handleExportStudents))
	m.HandleFunc("DELETE /api/classes/{classID}/students/{studentID}", t(s.handleRemoveStudent))
	m.HandleFunc("POST /api/student-lists/parse", t(s.handleParseStudentList))

	m.HandleFunc("POST /api/student/login", s.handleStudentLogin)
	m.HandleFunc("POST /api/student/logout", s.handleStudentLogout)
	m.HandleFunc("GET /api/student/me", st(s.handleStudentMe))
	m.HandleFunc("POST /api/student/surveys/{type}", st(s.handleSubmitSurvey))
	m.HandleFunc("GET /api/student/surveys", st(s.handleOwnResults))

	m.HandleFunc("POST /api/ai/description", t(s.handleDescription))
	m.HandleFunc("POST /api/ai/note", t(s.handleNote))
	m.HandleFunc("POST /api/ai/ask", t(s.handleAsk))
	m.HandleFunc("POST /api/ai/reports/student", t(s.handleIndividualReport))
	m.HandleFunc("POST /api/ai/reports/class", t(s.handleClassReport))
	m.HandleFunc("POST /api/ai/forum-answer", t(s.handleForumAnswer))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failed := map[string]string{}
	for _, c := range s.checks {
		if err := c.Fn(ctx); err != nil {
			slog.Warn("readiness check failed", "check", c.Name, "error", err)
			failed[c.Name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrade reach the underlying connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.status = http.StatusSwitchingProtocols
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelDebug
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
