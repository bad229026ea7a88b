package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"thinkwrapper-backend/pkg/faults"
)

// OllamaService implements SynthesisService using Ollama local LLM
type OllamaService struct {
	getBaseURL func() string // Dynamic getter for BaseURL
	getModel   func() string // Dynamic getter for Model
}

// NewOllamaService creates a new Ollama service
func NewOllamaService(baseURL, model string) *OllamaService {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	// Use static values (for backward compatibility when no runtime config)
	return &OllamaService{
		getBaseURL: func() string { return baseURL },
		getModel:   func() string { return model },
	}
}

// NewOllamaServiceWithGetters creates a new Ollama service with dynamic getters
func NewOllamaServiceWithGetters(getBaseURL, getModel func() string) *OllamaService {
	return &OllamaService{
		getBaseURL: getBaseURL,
		getModel:   getModel,
	}
}

// Synthesize implements SynthesisService
func (o *OllamaService) Synthesize(ctx context.Context, topic, style string, sources []SourceItem) (*Draft, error) {
	url := o.getBaseURL() + "/api/generate"

	payload := map[string]interface{}{
		"model":  o.getModel(),
		"prompt": buildSynthesisPrompt(topic, style, sources),
		"stream": false,
		"format": "json",
		"options": map[string]interface{}{
			"temperature": 0.4,
			"num_predict": 1500,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, faults.Transient("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.Transient("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, faults.Transient("ollama API error (%d): %s", resp.StatusCode, string(respBody))
		}
		return nil, faults.Permanent("ollama API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Response string `json:"response"`
		Done     bool   `json:"done"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, faults.Permanent("failed to parse response: %w", err)
	}

	var draft Draft
	if err := json.Unmarshal([]byte(extractJSONObject(result.Response)), &draft); err != nil {
		return nil, faults.Permanent("failed to parse draft JSON: %w", err)
	}
	if draft.Subject == "" {
		return nil, faults.Permanent("ollama draft has no subject")
	}

	draft.Citations = filterCitations(draft.Citations, sources)
	draft.Provider = string(ProviderOllama)
	return &draft, nil
}
