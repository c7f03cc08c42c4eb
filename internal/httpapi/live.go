package httpapi

import (
	"net/http"
	"strings"

	"github.com/p-n-ai/sinifplanim/internal/forum"
	"github.com/p-n-ai/sinifplanim/internal/roster"
	"github.com/p-n-ai/sinifplanim/internal/schedule"
	"github.com/p-n-ai/sinifplanim/internal/survey"
	"github.com/p-n-ai/sinifplanim/internal/tier"
)

// canSubscribe reports whether teacherID may listen on topic: the shared
// forum topics or one of the teacher's own.
func canSubscribe(teacherID, topic string) bool {
	if topic == forum.BoardTopic || strings.HasPrefix(topic, forum.PostTopic("")) {
		return true
	}
	switch topic {
	case schedule.Topic(teacherID), survey.Topic(teacherID), tier.Topic(teacherID), roster.Topic(teacherID):
		return true
	}
	return false
}

// handleWS streams live events for ?topic=... to a signed-in teacher.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	teacherID := strings.TrimSpace(r.Header.Get(s.auth.TeacherHeader))
	if teacherID == "" {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	topic := r.URL.Query().Get("topic")
	if topic == "" || !canSubscribe(teacherID, topic) {
		writeError(w, http.StatusForbidden, msgForbidden)
		return
	}
	if s.hub == nil {
		writeError(w, http.StatusServiceUnavailable, msgUnknown)
		return
	}
	s.hub.ServeWS(w, r, topic)
}
