package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/p-n-ai/sinifplanim/internal/ai"
)

// Notices shown when a helper falls back.
const (
	NoticeDescription = "AI-powered description could not be generated."
	NoticeNote        = "Sesli not işlenirken bir hata oluştu."
	NoticeNoAnswer    = "Yapay zekadan bir cevap alınamadı."
	NoticeForum       = "Yapay zeka bir cevap üretemedi."
)

// DescriptionInput describes the lesson plan or material to describe.
type DescriptionInput struct {
	Title   string `json:"title"`
	Subject string `json:"subject,omitempty"`
	Grade   string `json:"grade,omitempty"`
}

// Description drafts a short description for a plan or material.
func (s *Service) Description(ctx context.Context, userID string, in DescriptionInput) (Result, error) {
	if strings.TrimSpace(in.Title) == "" {
		return Result{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Başlık: %s\n", in.Title)
	if in.Subject != "" {
		fmt.Fprintf(&b, "Ders: %s\n", in.Subject)
	}
	if in.Grade != "" {
		fmt.Fprintf(&b, "Sınıf düzeyi: %s\n", in.Grade)
	}

	text, ok, err := s.complete(ctx, userID, prompt(ai.TaskDescription,
		"You help Turkish K-12 teachers. Write a concise description (2-4 sentences, in Turkish) "+
			"of the lesson plan or teaching material below. Return only the description.",
		b.String(),
	))
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Text: NoticeDescription, Fallback: true, Notice: NoticeDescription}, nil
	}
	return Result{Text: text}, nil
}

// SpeechToNote turns a dictated transcript into a tidy note. On failure the
// transcript itself is returned.
func (s *Service) SpeechToNote(ctx context.Context, userID, transcript string) (Result, error) {
	if strings.TrimSpace(transcript) == "" {
		return Result{}, fmt.Errorf("%w: transcript is required", ErrInvalidInput)
	}

	text, ok, err := s.complete(ctx, userID, prompt(ai.TaskNote,
		"Rewrite the teacher's dictated Turkish transcript as a clean, well punctuated note. "+
			"Keep every fact, add nothing, and answer in Turkish with only the note.",
		transcript,
	))
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Text: transcript, Fallback: true, Notice: NoticeNote}, nil
	}
	return Result{Text: text}, nil
}

// Ask answers a free-form question from a teacher. History holds earlier
// turns of the same conversation, oldest first.
func (s *Service) Ask(ctx context.Context, userID, question string, history []ai.Message) (Result, error) {
	if strings.TrimSpace(question) == "" {
		return Result{}, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}

	msgs := make([]ai.Message, 0, len(history)+2)
	msgs = append(msgs, ai.Message{
		Role: "system",
		Content: "You are a friendly assistant for teachers in Turkey. Answer in Turkish, " +
			"practically and briefly, with classroom-ready suggestions where useful.",
	})
	for _, m := range history {
		if m.Role == "user" || m.Role == "assistant" {
			msgs = append(msgs, m)
		}
	}
	msgs = append(msgs, ai.Message{Role: "user", Content: question})

	text, ok, err := s.complete(ctx, userID, ai.CompletionRequest{Task: ai.TaskAssistant, Messages: msgs})
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Text: NoticeNoAnswer, Fallback: true, Notice: NoticeNoAnswer}, nil
	}
	return Result{Text: text}, nil
}

// ForumAnswer drafts an answer to a forum question.
func (s *Service) ForumAnswer(ctx context.Context, userID, title, description string) (Result, error) {
	if strings.TrimSpace(title) == "" && strings.TrimSpace(description) == "" {
		return Result{}, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}

	text, ok, err := s.complete(ctx, userID, prompt(ai.TaskForumAnswer,
		"You are EduBot, an expert assistant for K-12 teachers in Turkey, specialised in pedagogy "+
			"and classroom management. A teacher asked the question below on a forum. Answer in Turkish: "+
			"open supportively, structure the answer with headings or bullet points where useful, give "+
			"actionable advice and close with an encouraging remark.",
		fmt.Sprintf("Soru başlığı: %s\n\nSoru açıklaması:\n%s", title, description),
	))
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Text: NoticeForum, Fallback: true, Notice: NoticeForum}, nil
	}
	return Result{Text: text}, nil
}
