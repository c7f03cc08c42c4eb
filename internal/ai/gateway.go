// Package ai provides a provider-agnostic gateway to generative text models.
package ai

import "context"

// TaskType names the kind of generation for logging and routing.
type TaskType int

const (
	TaskDescription TaskType = iota
	TaskNote
	TaskAssistant
	TaskReport
	TaskForumAnswer
	TaskParsing
)

func (t TaskType) String() string {
	switch t {
	case TaskDescription:
		return "description"
	case TaskNote:
		return "note"
	case TaskAssistant:
		return "assistant"
	case TaskReport:
		return "report"
	case TaskForumAnswer:
		return "forum_answer"
	case TaskParsing:
		return "parsing"
	default:
		return "unknown"
	}
}

// Message is a single prompt turn. Role is "system", "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to a generation.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Task        TaskType  `json:"task,omitempty"`
	// JSON asks the provider for a JSON object instead of prose.
	JSON bool `json:"json,omitempty"`
}

// CompletionResponse is the output of a generation.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// TotalTokens returns the sum of input and output tokens.
func (r CompletionResponse) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Provider is the interface all AI providers must implement.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	HealthCheck(ctx context.Context) error
}

// Completer is what callers of the gateway depend on. *Router satisfies it.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}
