package ai

import (
	"context"
	"errors"
	"testing"
)

type scriptedService struct {
	draft *Draft
	err   error
	calls int
}

func (s *scriptedService) Synthesize(ctx context.Context, topic, style string, sources []SourceItem) (*Draft, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.draft, nil
}

func TestFallbackUsesPrimaryWhenHealthy(t *testing.T) {
	t.Parallel()

	claude := &scriptedService{draft: &Draft{Subject: "from claude", Provider: "claude"}}
	f := NewFallbackService(claude, nil)

	draft, err := f.Synthesize(context.Background(), "go", "casual", nil)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if draft.Subject != "from claude" {
		t.Errorf("got draft %+v", draft)
	}
	if claude.calls != 1 {
		t.Errorf("claude called %d times, want 1", claude.calls)
	}
}

func TestFallbackPropagatesCancellation(t *testing.T) {
	t.Parallel()

	claude := &scriptedService{err: context.Canceled}
	f := NewFallbackService(claude, NewOllamaService("http://localhost:11434", "llama3"))

	_, err := f.Synthesize(context.Background(), "go", "casual", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cancellation must not trigger fallback, got %v", err)
	}
}

func TestIsQuotaError(t *testing.T) {
	t.Parallel()

	if !isQuotaError(errors.New("API error 429: rate limit exceeded")) {
		t.Error("429 should be a quota error")
	}
	if isQuotaError(errors.New("API error 400: bad request")) {
		t.Error("400 is not a quota error")
	}
	if isQuotaError(nil) {
		t.Error("nil is not a quota error")
	}
}

func TestIsConnectionError(t *testing.T) {
	t.Parallel()

	if !isConnectionError(errors.New("dial tcp 127.0.0.1:11434: connection refused")) {
		t.Error("refused dial should be a connection error")
	}
	if isConnectionError(errors.New("invalid JSON in response")) {
		t.Error("parse failure is not a connection error")
	}
}
