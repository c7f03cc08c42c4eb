package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/p-n-ai/sinifplanim/internal/roster"
)

type ctxKey int

const teacherKey ctxKey = iota

func withTeacher(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, teacherKey, id)
}

// teacherFrom returns the signed-in teacher set by requireTeacher.
func teacherFrom(ctx context.Context) string {
	id, _ := ctx.Value(teacherKey).(string)
	return id
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// requireTeacher trusts the identity header set by the upstream auth proxy.
func (s *Server) requireTeacher(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(s.auth.TeacherHeader))
		if id == "" {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		next(w, r.WithContext(withTeacher(r.Context(), id)))
	}
}

// requireStudent resolves the bearer token to a live student session.
func (s *Server) requireStudent(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.roster.Resolve(r.Context(), bearerToken(r.Header.Get("Authorization")))
		if err != nil {
			if !errors.Is(err, roster.ErrNoSession) {
				fail(w, r, err, "")
				return
			}
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		next(w, r.WithContext(roster.WithSession(r.Context(), sess)))
	}
}

// requireAdmin checks the configured admin token. With no token configured
// every admin request is refused.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		want := s.auth.AdminToken
		got := bearerToken(r.Header.Get("Authorization"))
		if want == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			writeError(w, http.StatusForbidden, msgForbidden)
			return
		}
		next(w, r)
	}
}
