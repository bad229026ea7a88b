package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"thinkwrapper-backend/pkg/faults"
)

const anthropicVersion = "2023-06-01"

// ClaudeService implements SynthesisService using the Anthropic messages API
type ClaudeService struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClaudeService creates a new Claude synthesis service
func NewClaudeService(apiKey, model string) *ClaudeService {
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	return &ClaudeService{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.anthropic.com",
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

func (s *ClaudeService) Synthesize(ctx context.Context, topic, style string, sources []SourceItem) (*Draft, error) {
	if s.apiKey == "" {
		return nil, faults.ErrNotConfigured
	}

	prompt := buildSynthesisPrompt(topic, style, sources)
	payload := map[string]interface{}{
		"model":      s.model,
		"max_tokens": 2048,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/v1/messages", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, faults.Transient("claude request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.Transient("failed to read claude response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, faults.Transient("claude API error (%d): %s", resp.StatusCode, string(respBody))
	default:
		return nil, faults.Permanent("claude API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, faults.Permanent("failed to parse claude response: %w", err)
	}

	var text string
	for _, block := range result.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, faults.Permanent("claude returned no text content")
	}

	var draft Draft
	if err := json.Unmarshal([]byte(extractJSONObject(text)), &draft); err != nil {
		return nil, faults.Permanent("failed to parse draft JSON: %w", err)
	}
	if draft.Subject == "" {
		return nil, faults.Permanent("claude draft has no subject")
	}

	draft.Citations = filterCitations(draft.Citations, sources)
	draft.Provider = string(ProviderClaude)
	return &draft, nil
}
