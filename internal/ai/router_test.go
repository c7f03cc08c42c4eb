package ai_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/p-n-ai/sinifplanim/internal/ai"
)

func request() ai.CompletionRequest {
	return ai.CompletionRequest{Messages: []ai.Message{{Role: "user", Content: "selam"}}}
}

func TestRouter_SingleProvider(t *testing.T) {
	router := ai.NewRouter(0)
	router.Register("google", ai.NewMockProvider("Merhaba!"))

	resp, err := router.Complete(t.Context(), request())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Merhaba!" {
		t.Errorf("Content = %q, want %q", resp.Content, "Merhaba!")
	}
}

func TestRouter_Fallback(t *testing.T) {
	router := ai.NewRouter(0)

	failing := &ai.MockProvider{Err: errors.New("rate limited")}
	fallback := ai.NewMockProvider("yedek yanıt")

	router.Register("google", failing)
	router.Register("openai", fallback)

	resp, err := router.Complete(t.Context(), request())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "yedek yanıt" {
		t.Errorf("Content = %q, want %q", resp.Content, "yedek yanıt")
	}
	if failing.Calls() != 1 || fallback.Calls() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", failing.Calls(), fallback.Calls())
	}
}

func TestRouter_AllProvidersFail(t *testing.T) {
	router := ai.NewRouter(0)

	errOne := errors.New("fail 1")
	errTwo := errors.New("fail 2")
	router.Register("google", &ai.MockProvider{Err: errOne})
	router.Register("openai", &ai.MockProvider{Err: errTwo})

	_, err := router.Complete(t.Context(), request())
	if err == nil {
		t.Fatal("Complete() should return error when all providers fail")
	}
	if !errors.Is(err, errOne) || !errors.Is(err, errTwo) {
		t.Errorf("error %v should wrap both provider errors", err)
	}
}

func TestRouter_NoProviders(t *testing.T) {
	router := ai.NewRouter(0)

	_, err := router.Complete(t.Context(), request())
	if !errors.Is(err, ai.ErrNoProvider) {
		t.Fatalf("Complete() error = %v, want ErrNoProvider", err)
	}
}

func TestRouter_HasProvider(t *testing.T) {
	router := ai.NewRouter(0)
	if router.HasProvider() {
		t.Error("HasProvider() should be false with no providers")
	}

	router.Register("mock", ai.NewMockProvider("ok"))
	if !router.HasProvider() {
		t.Error("HasProvider() should be true after Register")
	}
}

func TestRouter_FallbackOrder(t *testing.T) {
	router := ai.NewRouter(0)

	first := ai.NewMockProvider("first")
	second := ai.NewMockProvider("second")

	router.Register("first", first)
	router.Register("second", second)
	// Re-registering keeps the original position.
	router.Register("first", first)

	resp, err := router.Complete(t.Context(), request())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "first" {
		t.Errorf("Content = %q, want %q (first registered should be tried first)", resp.Content, "first")
	}
	if second.Calls() != 0 {
		t.Errorf("second provider called %d times, want 0", second.Calls())
	}
}

type slowProvider struct{}

func (slowProvider) Complete(ctx context.Context, _ ai.CompletionRequest) (ai.CompletionResponse, error) {
	<-ctx.Done()
	return ai.CompletionResponse{}, ctx.Err()
}

func (slowProvider) HealthCheck(context.Context) error { return nil }

func TestRouter_PerProviderTimeout(t *testing.T) {
	router := ai.NewRouter(20 * time.Millisecond)
	router.Register("slow", slowProvider{})
	router.Register("fast", ai.NewMockProvider("hızlı"))

	resp, err := router.Complete(t.Context(), request())
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "hızlı" {
		t.Errorf("Content = %q, want %q", resp.Content, "hızlı")
	}
}

func TestRouter_CancelledContextStopsFallback(t *testing.T) {
	router := ai.NewRouter(0)
	next := ai.NewMockProvider("never")
	router.Register("slow", slowProvider{})
	router.Register("next", next)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := router.Complete(ctx, request()); err == nil {
		t.Fatal("Complete() should fail on a cancelled context")
	}
	if next.Calls() != 0 {
		t.Errorf("next provider called %d times after cancellation", next.Calls())
	}
}

func TestRouter_HealthCheck(t *testing.T) {
	router := ai.NewRouter(0)
	router.Register("ok", ai.NewMockProvider("ok"))
	if err := router.HealthCheck(t.Context()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	router.Register("down", &ai.MockProvider{Err: errors.New("down")})
	if err := router.HealthCheck(t.Context()); err == nil {
		t.Fatal("HealthCheck() should report the failing provider")
	}
}
