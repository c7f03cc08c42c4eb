package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/sinifplanim/internal/ai"
	"github.com/p-n-ai/sinifplanim/internal/assist"
	"github.com/p-n-ai/sinifplanim/internal/forum"
	"github.com/p-n-ai/sinifplanim/internal/live"
	"github.com/p-n-ai/sinifplanim/internal/platform/config"
	"github.com/p-n-ai/sinifplanim/internal/roster"
	"github.com/p-n-ai/sinifplanim/internal/schedule"
	"github.com/p-n-ai/sinifplanim/internal/survey"
	"github.com/p-n-ai/sinifplanim/internal/tier"
)

const adminToken = "admin-secret"

type testEnv struct {
	srv  *Server
	mock *ai.MockProvider
	h    http.Handler
}

func newTestEnv(t *testing.T, checks ...Check) *testEnv {
	t.Helper()
	hub := live.NewHub()
	catalog, err := survey.LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	mock := ai.NewMockProvider("Yapay zeka cevabı.")
	gate := tier.NewGate(tier.NewMemoryStore(), hub)
	helper := assist.NewService(mock, gate)

	srv := New(Deps{
		Schedule: schedule.NewService(schedule.NewMemoryStore(), hub),
		Surveys:  survey.NewService(catalog, survey.NewMemoryStore(), hub),
		Forum:    forum.NewService(forum.NewMemoryStore(), hub, helper),
		Tiers:    gate,
		Roster:   roster.NewService(roster.NewMemoryStore(), roster.NewMemorySessionStore(), hub, time.Hour),
		Assist:   helper,
		Hub:      hub,
		Auth:     config.AuthConfig{TeacherHeader: "X-User-ID", AdminToken: adminToken},
		Checks:   checks,
	})
	return &testEnv{srv: srv, mock: mock, h: srv.Handler()}
}

type call struct {
	method  string
	path    string
	body    any
	teacher string
	bearer  string
}

func (e *testEnv) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if c.body != nil {
		if s, ok := c.body.(string); ok {
			body.WriteString(s)
		} else if err := json.NewEncoder(&body).Encode(c.body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(c.method, c.path, &body)
	if c.teacher != "" {
		req.Header.Set("X-User-ID", c.teacher)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	var dbErr error
	env := newTestEnv(t, Check{Name: "database", Fn: func(context.Context) error { return dbErr }})

	tests := []struct {
		name       string
		path       string
		dbErr      error
		wantStatus int
		wantBody   string
	}{
		{"healthz returns 200", "/healthz", nil, http.StatusOK, `{"status":"ok"}`},
		{"readyz returns 200", "/readyz", nil, http.StatusOK, `{"status":"ready"}`},
		{"readyz reports failed checks", "/readyz", errors.New("down"), http.StatusServiceUnavailable,
			`{"failed":{"database":"down"},"status":"unavailable"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dbErr = tt.dbErr
			rec := env.do(t, call{method: http.MethodGet, path: tt.path})
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestTeacherRoutesNeedIdentity(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/schedule", "/api/forum/posts", "/api/classes", "/api/usage"} {
		rec := env.do(t, call{method: http.MethodGet, path: path})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, rec.Code)
		}
	}
}

func TestSchedule(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, call{method: http.MethodGet, path: "/api/schedule", teacher: "t1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	doc := decode[schedule.Document](t, rec)
	if len(doc.Settings.TimeSlots) == 0 {
		t.Fatalf("default settings missing: %+v", doc.Settings)
	}

	rec = env.do(t, call{method: http.MethodPut, path: "/api/schedule/lessons", teacher: "t1", body: map[string]any{
		"day": "Salı", "lessonSlot": 1, "lesson": map[string]string{"subject": "Matematik", "grade": "7", "class": "A"},
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT lesson status = %d, body %s", rec.Code, rec.Body)
	}
	doc = decode[schedule.Document](t, rec)
	if l := doc.Days[schedule.Tuesday]; len(l) != 1 || l[0].Subject != "Matematik" || l[0].Time != doc.Settings.TimeSlots[1] {
		t.Errorf("Tuesday = %+v", l)
	}

	tests := []struct {
		name string
		body any
	}{
		{"unknown day", map[string]any{"day": "Funday", "lessonSlot": 0}},
		{"slot out of range", map[string]any{"day": "Salı", "lessonSlot": 99}},
		{"missing slot", map[string]any{"day": "Salı"}},
		{"unknown field", map[string]any{"day": "Salı", "lessonSlot": 0, "extra": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, call{method: http.MethodPut, path: "/api/schedule/lessons", teacher: "t1", body: tt.body})
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400, body %s", rec.Code, rec.Body)
			}
		})
	}

	rec = env.do(t, call{method: http.MethodPatch, path: "/api/schedule/settings", teacher: "t1", body: map[string]any{
		"timeSlots": []string{"09:00"},
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("PATCH settings status = %d, body %s", rec.Code, rec.Body)
	}
	doc = decode[schedule.Document](t, rec)
	if len(doc.Days[schedule.Tuesday]) != 0 {
		t.Errorf("lesson past the last slot survived: %+v", doc.Days[schedule.Tuesday])
	}

	rec = env.do(t, call{method: http.MethodGet, path: "/api/schedule", teacher: "t2"})
	if doc := decode[schedule.Document](t, rec); len(doc.Settings.TimeSlots) == 1 {
		t.Error("another teacher's schedule changed")
	}
}

// signInStudent creates a class with one student for teacher and logs the
// student in.
func signInStudent(t *testing.T, env *testEnv, teacher string) (roster.Class, roster.Session) {
	t.Helper()
	rec := env.do(t, call{method: http.MethodPost, path: "/api/classes", teacher: teacher, body: map[string]string{"name": "7-A"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create class status = %d, body %s", rec.Code, rec.Body)
	}
	class := decode[roster.Class](t, rec)

	rec = env.do(t, call{method: http.MethodPost, path: "/api/classes/" + class.ID + "/students", teacher: teacher,
		body: map[string]any{"students": []map[string]string{{"name": "Ayşe Yılmaz", "number": "101"}}}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add students status = %d, body %s", rec.Code, rec.Body)
	}
	students := decode[[]roster.Student](t, rec)

	rec = env.do(t, call{method: http.MethodPost, path: "/api/student/login", body: map[string]string{
		"classCode": strings.ToLower(class.ClassCode), "studentCode": " " + students[0].StudentCode + " ",
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body)
	}
	return class, decode[roster.Session](t, rec)
}

func TestStudentLoginAndSurvey(t *testing.T) {
	env := newTestEnv(t)
	class, sess := signInStudent(t, env, "t1")
	if sess.TeacherID != "t1" || sess.ClassID != class.ID || sess.Token == "" {
		t.Fatalf("session = %+v", sess)
	}

	rec := env.do(t, call{method: http.MethodPost, path: "/api/student/login", body: map[string]string{
		"classCode": class.ClassCode, "studentCode": "ZZZZZ",
	}})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d", rec.Code)
	}
	if got := decode[errorBody](t, rec).Error; got != "Sınıf kodu veya öğrenci kodu hatalı." {
		t.Errorf("bad login message = %q", got)
	}

	rec = env.do(t, call{method: http.MethodGet, path: "/api/student/me", bearer: sess.Token})
	if rec.Code != http.StatusOK || decode[roster.Session](t, rec).Student.Name != "Ayşe Yılmaz" {
		t.Errorf("me = %d %s", rec.Code, rec.Body)
	}

	def, _ := env.srv.surveys.Catalog().Get(survey.LearningStyles)
	answers := make(map[int]int, len(def.Questions))
	for i := range def.Questions {
		answers[i] = def.Answers[len(def.Answers)-1].Value
	}
	rec = env.do(t, call{method: http.MethodPost, path: "/api/student/surveys/" + survey.LearningStyles, bearer: sess.Token,
		body: map[string]any{"answers": map[int]int{0: 1}}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("incomplete survey status = %d", rec.Code)
	}
	rec = env.do(t, call{method: http.MethodPost, path: "/api/student/surveys/" + survey.LearningStyles, bearer: sess.Token,
		body: map[string]any{"answers": answers}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status = %d, body %s", rec.Code, rec.Body)
	}
	res := decode[survey.Result](t, rec)
	if res.TeacherID != "t1" || res.StudentID != sess.Student.ID || res.ClassID != class.ID {
		t.Errorf("result ownership = %+v", res)
	}

	rec = env.do(t, call{method: http.MethodGet, path: "/api/students/" + sess.Student.ID + "/surveys", teacher: "t1"})
	if got := decode[[]survey.Result](t, rec); len(got) != 1 {
		t.Errorf("teacher sees %d results", len(got))
	}
	rec = env.do(t, call{method: http.MethodGet, path: "/api/students/" + sess.Student.ID + "/surveys", teacher: "t2"})
	if got := decode[[]survey.Result](t, rec); len(got) != 0 {
		t.Errorf("other teacher sees %d results", len(got))
	}
	rec = env.do(t, call{method: http.MethodDelete, path: "/api/survey-results/" + res.ID, teacher: "t2"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign delete status = %d", rec.Code)
	}
	rec = env.do(t, call{method: http.MethodDelete, path: "/api/survey-results/" + res.ID, teacher: "t1"})
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}

	env.do(t, call{method: http.MethodPost, path: "/api/student/logout", bearer: sess.Token})
	rec = env.do(t, call{method: http.MethodGet, path: "/api/student/me", bearer: sess.Token})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("me after logout status = %d", rec.Code)
	}
}

func TestForum(t *testing.T) {
	env := newTestEnv(t)
	author := map[string]string{"authorName": "Ayşe Öğretmen"}

	rec := env.do(t, call{method: http.MethodPost, path: "/api/forum/posts", teacher: "t1", body: map[string]string{
		"authorName": "Ayşe Öğretmen", "title": "Sınıf yönetimi", "description": "Öneriler?",
	}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create post status = %d, body %s", rec.Code, rec.Body)
	}
	post := decode[forum.Post](t, rec)
	if post.Author.ID != "t1" {
		t.Errorf("author id = %q, want the signed-in teacher", post.Author.ID)
	}

	rec = env.do(t, call{method: http.MethodPost, path: "/api/forum/posts/" + post.ID + "/replies", teacher: "t2",
		body: map[string]string{"authorName": "Mehmet", "content": "  "}})
	if got := decode[errorBody](t, rec).Error; rec.Code != http.StatusBadRequest || got != "Cevap içeriği veya yazar bilgisi eksik." {
		t.Errorf("empty reply = %d %q", rec.Code, got)
	}

	rec = env.do(t, call{method: http.MethodPost, path: "/api/forum/posts/" + post.ID + "/replies", teacher: "t2",
		body: map[string]string{"authorName": "Mehmet", "content": "Kurallar koyun."}})
	reply := decode[forum.Reply](t, rec)

	rec = env.do(t, call{method: http.MethodPost, path: fmt.Sprintf("/api/forum/posts/%s/replies/%s/upvote", post.ID, reply.ID), teacher: "t1"})
	if got := decode[forum.Reply](t, rec); got.Upvotes() != 1 {
		t.Errorf("upvotes = %d", got.Upvotes())
	}

	rec = env.do(t, call{method: http.MethodPost, path: fmt.Sprintf("/api/forum/posts/%s/replies/%s/comments", post.ID, reply.ID),
		teacher: "t1", body: map[string]string{"authorName": author["authorName"], "content": "Teşekkürler"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("comment status = %d, body %s", rec.Code, rec.Body)
	}

	rec = env.do(t, call{method: http.MethodPost, path: "/api/forum/posts/" + post.ID + "/ai-reply", teacher: "t1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("ai reply status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[aiReplyResponse](t, rec); got.Reply == nil || got.Reply.Author != forum.AssistantAuthor {
		t.Errorf("ai reply = %+v", got)
	}

	env.mock.Err = errors.New("down")
	rec = env.do(t, call{method: http.MethodPost, path: "/api/forum/posts/" + post.ID + "/ai-reply", teacher: "t1"})
	if got := decode[aiReplyResponse](t, rec); rec.Code != http.StatusOK || !got.Fallback || got.Notice != assist.NoticeForum {
		t.Errorf("failed ai reply = %d %+v", rec.Code, got)
	}

	rec = env.do(t, call{method: http.MethodDelete, path: "/api/forum/posts/" + post.ID, teacher: "t2"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign delete status = %d", rec.Code)
	}
	rec = env.do(t, call{method: http.MethodDelete, path: "/api/forum/posts/" + post.ID, teacher: "t1"})
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	rec = env.do(t, call{method: http.MethodGet, path: "/api/forum/posts/" + post.ID, teacher: "t1"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("thread after delete status = %d", rec.Code)
	}
}

func TestTierUpgradeAndQuota(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, call{method: http.MethodPost, path: "/api/upgrade", teacher: "t1", body: map[string]string{"tier": "pro"}})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upgrade status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[upgradeResponse](t, rec); got.Profile.Tier != tier.Pro.Pending() {
		t.Errorf("tier = %q", got.Profile.Tier)
	}
	rec = env.do(t, call{method: http.MethodPost, path: "/api/upgrade", teacher: "t1", body: map[string]string{"tier": "pro"}})
	if rec.Code != http.StatusConflict {
		t.Errorf("repeat upgrade status = %d", rec.Code)
	}
	rec = env.do(t, call{method: http.MethodPost, path: "/api/upgrade", teacher: "t1", body: map[string]string{"tier": "gold"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown tier status = %d", rec.Code)
	}

	rec = env.do(t, call{method: http.MethodGet, path: "/api/usage", teacher: "t1"})
	if u := decode[tier.Usage](t, rec); u.Tier != tier.Free || u.Limit != 10 {
		t.Errorf("usage while pending = %+v", u)
	}

	for i := 0; i < 10; i++ {
		rec = env.do(t, call{method: http.MethodPost, path: "/api/ai/ask", teacher: "t1", body: map[string]string{"question": "Nasıl?"}})
		if rec.Code != http.StatusOK {
			t.Fatalf("ask %d status = %d", i, rec.Code)
		}
	}
	rec = env.do(t, call{method: http.MethodPost, path: "/api/ai/ask", teacher: "t1", body: map[string]string{"question": "Nasıl?"}})
	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("ask past quota status = %d", rec.Code)
	}

	rec = env.do(t, call{method: http.MethodPost, path: "/api/admin/users/t1/approve", bearer: "wrong"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("approve with wrong token status = %d", rec.Code)
	}
	rec = env.do(t, call{method: http.MethodPost, path: "/api/admin/users/t1/approve", bearer: adminToken})
	if p := decode[tier.Profile](t, rec); rec.Code != http.StatusOK || p.Tier != tier.Pro || p.AIUsageCount != 0 {
		t.Errorf("approve = %d %+v", rec.Code, p)
	}
	rec = env.do(t, call{method: http.MethodPost, path: "/api/ai/ask", teacher: "t1", body: map[string]string{"question": "Nasıl?"}})
	if rec.Code != http.StatusOK {
		t.Errorf("ask after approval status = %d", rec.Code)
	}
}

func TestAIFallbackIsNotAnError(t *testing.T) {
	env := newTestEnv(t)
	env.mock.Err = errors.New("upstream down")

	rec := env.do(t, call{method: http.MethodPost, path: "/api/ai/note", teacher: "t1", body: map[string]string{"transcript": "yarın sınav"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	res := decode[assist.Result](t, rec)
	if !res.Fallback || res.Text != "yarın sınav" || res.Notice != assist.NoticeNote {
		t.Errorf("result = %+v", res)
	}

	rec = env.do(t, call{method: http.MethodPost, path: "/api/ai/description", teacher: "t1", body: map[string]string{}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty description status = %d", rec.Code)
	}
}

func TestStudentListUploadAndExport(t *testing.T) {
	env := newTestEnv(t)

	f := excelize.NewFile()
	f.SetSheetName("Sheet1", "5-C")
	f.SetCellValue("5-C", "A1", "No")
	f.SetCellValue("5-C", "B1", "Adı Soyadı")
	f.SetCellValue("5-C", "A2", 7)
	f.SetCellValue("5-C", "B2", "Can Demir")
	xlsx, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}
	f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "liste.xlsx")
	part.Write(xlsx.Bytes())
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/student-lists/parse", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", "t1")
	rec := httptest.NewRecorder()
	env.h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("parse status = %d, body %s", rec.Code, rec.Body)
	}
	parsed := decode[assist.StudentListResult](t, rec)
	if len(parsed.Classes) != 1 || parsed.Classes[0].Students[0] != (assist.ParsedStudent{Name: "Can Demir", Number: "7"}) {
		t.Errorf("parsed = %+v", parsed)
	}

	class, sess := signInStudent(t, env, "t1")
	rec = env.do(t, call{method: http.MethodGet, path: "/api/classes/" + class.ID + "/students.xlsx", teacher: "t1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	out, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer out.Close()
	code, _ := out.GetCellValue("Öğrenciler", "C3")
	if code != sess.Student.StudentCode {
		t.Errorf("exported code = %q, want %q", code, sess.Student.StudentCode)
	}

	rec = env.do(t, call{method: http.MethodGet, path: "/api/classes/" + class.ID + "/students.xlsx", teacher: "t2"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign export status = %d", rec.Code)
	}
}

func TestCanSubscribe(t *testing.T) {
	tests := []struct {
		topic string
		want  bool
	}{
		{forum.BoardTopic, true},
		{forum.PostTopic("p1"), true},
		{schedule.Topic("t1"), true},
		{tier.Topic("t1"), true},
		{schedule.Topic("t2"), false},
		{survey.Topic("t2"), false},
		{"random", false},
	}
	for _, tt := range tests {
		if got := canSubscribe("t1", tt.topic); got != tt.want {
			t.Errorf("canSubscribe(%q) = %v, want %v", tt.topic, got, tt.want)
		}
	}
}
