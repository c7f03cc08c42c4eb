// Package assist implements the AI-backed writing helpers. Every helper
// degrades to a fixed Turkish notice or to the caller's own input when the
// model fails, so callers never see a generation error. The only errors
// returned are quota refusals and invalid input.
package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-n-ai/sinifplanim/internal/ai"
)

// ErrInvalidInput is returned when a helper is called without the fields it
// needs.
var ErrInvalidInput = errors.New("invalid input")

// Result is the outcome of a text helper. When Fallback is set, Text holds
// the fallback value and Notice explains what happened.
type Result struct {
	Text     string `json:"text,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
	Notice   string `json:"notice,omitempty"`
}

// Service runs the helpers against a completer and charges each successful
// generation to the caller through the usage gate.
type Service struct {
	llm   ai.Completer
	usage ai.UsageGate
}

// NewService creates the helper service. A nil gate means generations are
// not metered.
func NewService(llm ai.Completer, usage ai.UsageGate) *Service {
	if usage == nil {
		usage = ai.Unmetered{}
	}
	return &Service{llm: llm, usage: usage}
}

// complete checks the quota, runs the request and records one credit on
// success. It returns the trimmed model text, or ok=false when the model
// failed or answered with nothing.
func (s *Service) complete(ctx context.Context, userID string, req ai.CompletionRequest) (string, bool, error) {
	text, ok, err := s.generate(ctx, userID, req)
	if err != nil || !ok {
		return "", false, err
	}
	s.record(ctx, userID, req.Task)
	return text, true, nil
}

// generate checks the quota and runs the request without charging for it.
func (s *Service) generate(ctx context.Context, userID string, req ai.CompletionRequest) (string, bool, error) {
	if err := s.usage.Allow(ctx, userID); err != nil {
		if !errors.Is(err, ai.ErrQuotaExceeded) {
			slog.Error("usage check failed", "user_id", userID, "task", req.Task.String(), "error", err)
		}
		return "", false, fmt.Errorf("check usage: %w", err)
	}

	resp, err := s.llm.Complete(ctx, req)
	if err != nil {
		slog.Error("AI generation failed", "user_id", userID, "task", req.Task.String(), "error", err)
		return "", false, nil
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		slog.Warn("AI returned empty output", "user_id", userID, "task", req.Task.String())
		return "", false, nil
	}
	return text, true, nil
}

func (s *Service) record(ctx context.Context, userID string, task ai.TaskType) {
	if err := s.usage.Record(ctx, userID); err != nil {
		slog.Warn("failed to record AI usage", "user_id", userID, "task", task.String(), "error", err)
	}
}

func prompt(task ai.TaskType, system, user string) ai.CompletionRequest {
	return ai.CompletionRequest{
		Task: task,
		Messages: []ai.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
}

// IsQuotaError reports whether err is a refused generation.
func IsQuotaError(err error) bool {
	return errors.Is(err, ai.ErrQuotaExceeded)
}
