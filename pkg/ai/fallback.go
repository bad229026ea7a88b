package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"

	"thinkwrapper-backend/pkg/faults"
)

// FallbackService implements provider routing with fallback
// - Claude first (best draft quality), fallback to Ollama (local, free)
// - Quota-exhausted Claude retries Ollama; an unreachable Ollama retries Claude
type FallbackService struct {
	claude SynthesisService
	ollama *OllamaService
}

// NewFallbackService creates a new fallback service with both providers
func NewFallbackService(claude SynthesisService, ollama *OllamaService) *FallbackService {
	return &FallbackService{
		claude: claude,
		ollama: ollama,
	}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	}
	for _, indicator := range connectionIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	quotaIndicators := []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"overloaded",
	}
	for _, indicator := range quotaIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// Synthesize tries Claude first, falls back to Ollama on quota or connection errors
func (f *FallbackService) Synthesize(ctx context.Context, topic, style string, sources []SourceItem) (*Draft, error) {
	if f.claude != nil {
		log.Println("[AI] Trying Claude for synthesis...")
		draft, err := f.claude.Synthesize(ctx, topic, style, sources)
		if err == nil {
			log.Println("[AI] Claude synthesis successful")
			return draft, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if errors.Is(err, faults.ErrNotConfigured) {
			log.Println("[AI] Claude not configured, using Ollama")
		} else if isQuotaError(err) {
			log.Printf("[AI] Claude quota exhausted: %v, falling back to Ollama", err)
		} else {
			log.Printf("[AI] Claude error: %v, falling back to Ollama", err)
		}
	}

	if f.ollama != nil {
		log.Println("[AI] Using Ollama for synthesis...")
		draft, err := f.ollama.Synthesize(ctx, topic, style, sources)
		if err == nil {
			log.Println("[AI] Ollama synthesis successful")
			return draft, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}

		// If Ollama is unreachable, one more attempt against Claude
		if isConnectionError(err) && f.claude != nil {
			log.Printf("[AI] Ollama connection failed: %v, retrying Claude", err)
			return f.claude.Synthesize(ctx, topic, style, sources)
		}

		return nil, fmt.Errorf("ollama synthesis failed: %w", err)
	}

	return nil, fmt.Errorf("no AI provider available for synthesis")
}
