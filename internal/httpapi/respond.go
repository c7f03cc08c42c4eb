package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/p-n-ai/sinifplanim/internal/ai"
	"github.com/p-n-ai/sinifplanim/internal/assist"
	"github.com/p-n-ai/sinifplanim/internal/forum"
	"github.com/p-n-ai/sinifplanim/internal/roster"
	"github.com/p-n-ai/sinifplanim/internal/schedule"
	"github.com/p-n-ai/sinifplanim/internal/survey"
	"github.com/p-n-ai/sinifplanim/internal/tier"
)

const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 1 << 20

	msgUnknown      = "Bilinmeyen bir hata oluştu."
	msgBadRequest   = "İstek okunamadı."
	msgUnauthorized = "Bu işlem için giriş yapmanız gerekiyor."
	msgForbidden    = "Bu işlem için yetkiniz yok."
	msgNotFound     = "Kayıt bulunamadı."
	msgQuota        = "AI kullanım hakkınız doldu. Lütfen paketinizi yükseltin."
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// decodeJSON reads a size-limited body into out and runs struct validation.
func decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, msgBadRequest)
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msgBadRequest, Details: []string{err.Error()}})
		return false
	}
	if err := validate.Struct(out); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: msgBadRequest, Details: fieldErrors(err)})
		return false
	}
	return true
}

func fieldErrors(err error) []string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			out = append(out, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return out
}

// fail maps a service error to a status. msg is the message shown for errors
// the caller cannot fix; user errors are answered with their own text.
func fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := statusOf(err)
	switch status {
	case http.StatusInternalServerError:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		if msg == "" {
			msg = msgUnknown
		}
		writeError(w, status, msg)
	case http.StatusUnauthorized:
		writeError(w, status, msgUnauthorized)
	case http.StatusForbidden:
		writeError(w, status, msgForbidden)
	case http.StatusPaymentRequired:
		writeError(w, status, msgQuota)
	case http.StatusNotFound:
		writeError(w, status, msgNotFound)
	default:
		writeJSON(w, status, errorBody{Error: userMessage(err), Details: []string{err.Error()}})
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, roster.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, forum.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ai.ErrQuotaExceeded):
		return http.StatusPaymentRequired
	case errors.Is(err, forum.ErrNotFound), errors.Is(err, roster.ErrNotFound),
		errors.Is(err, survey.ErrNotFound), errors.Is(err, tier.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tier.ErrAlreadyActive), errors.Is(err, tier.ErrAlreadyPending),
		errors.Is(err, tier.ErrNothingPending):
		return http.StatusConflict
	case schedule.IsUserError(err), survey.IsUserError(err), forum.IsUserError(err),
		roster.IsUserError(err), tier.IsUserError(err), errors.Is(err, assist.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var userMessages = []struct {
	err error
	msg string
}{
	{roster.ErrInvalidCode, "Sınıf kodu veya öğrenci kodu hatalı."},
	{roster.ErrInvalidName, "Ad alanı boş bırakılamaz."},
	{schedule.ErrInvalidDay, "Geçersiz gün."},
	{schedule.ErrInvalidSlot, "Ders saati aralık dışında."},
	{schedule.ErrInvalidSettings, "Geçersiz program ayarları."},
	{survey.ErrUnknownSurvey, "Bilinmeyen anket."},
	{survey.ErrIncomplete, "Lütfen tüm soruları cevaplayın."},
	{survey.ErrInvalidAnswer, "Geçersiz cevap."},
	{tier.ErrInvalidTier, "Geçersiz paket."},
	{tier.ErrAlreadyActive, "Bu paket zaten etkin."},
	{tier.ErrAlreadyPending, "Bu paket için bekleyen bir isteğiniz var."},
	{tier.ErrNothingPending, "Onay bekleyen bir paket isteği yok."},
	{forum.ErrInvalidInput, "Eksik veya hatalı bilgi."},
	{assist.ErrInvalidInput, "Eksik veya hatalı bilgi."},
}

// userMessage returns the Turkish text for an error the caller can fix,
// keeping the detail of the underlying error.
func userMessage(err error) string {
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return err.Error()
}
