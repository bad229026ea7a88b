package ai

import (
	"context"
)

// SourceItem is one web result handed to the synthesis prompt
type SourceItem struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Section is one ordered block of newsletter body content
type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Citation is a link the model attributed to a supplied source
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Draft is the structured newsletter text a provider returns
type Draft struct {
	Subject   string     `json:"subject"`
	Summary   string     `json:"summary"`
	Sections  []Section  `json:"sections"`
	Takeaways []string   `json:"takeaways"`
	Citations []Citation `json:"citations"`
	Provider  string     `json:"-"` // which provider produced the draft
}

// SynthesisService is the interface for AI newsletter synthesis
// Implement this interface to add new providers (Claude, Ollama, OpenAI, etc.)
// With an empty source list providers run in no-citation mode: the prompt
// forbids URLs and any citations in the reply are discarded.
type SynthesisService interface {
	Synthesize(ctx context.Context, topic, style string, sources []SourceItem) (*Draft, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderClaude ProviderType = "claude"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
)

// filterCitations drops every citation whose URL was not in the supplied
// source list, so a hallucinated link can never reach an Issue.
func filterCitations(citations []Citation, sources []SourceItem) []Citation {
	if len(sources) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(sources))
	for _, s := range sources {
		allowed[s.URL] = true
	}
	kept := make([]Citation, 0, len(citations))
	for _, c := range citations {
		if allowed[c.URL] {
			kept = append(kept, c)
		}
	}
	return kept
}
