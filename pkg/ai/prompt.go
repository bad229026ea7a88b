package ai

import (
	"fmt"
	"strings"
)

// buildSynthesisPrompt produces the shared prompt used by all providers so
// output stays consistent when the fallback chain switches provider.
func buildSynthesisPrompt(topic, style string, sources []SourceItem) string {
	var b strings.Builder

	fmt.Fprintf(&b, `You are an expert newsletter editor. Write one issue of a %s newsletter about "%s".

Respond with a single JSON object, no other text:
{
  "subject": "engaging subject line",
  "summary": "2-3 sentence introduction",
  "sections": [{"heading": "...", "body": "..."}],
  "takeaways": ["...", "..."],
  "citations": [{"title": "...", "url": "..."}]
}

Rules:
- 3 to 5 sections, each 2-4 sentences
- 2 to 4 takeaways
- Keep the tone %s and the total length moderate (300-500 words)
`, style, topic, style)

	if len(sources) == 0 {
		b.WriteString(`- No source material is available for this issue. Write from general knowledge.
- "citations" MUST be an empty array. Do NOT include any URL anywhere in the output.
`)
		return b.String()
	}

	b.WriteString(`- Cite ONLY the sources listed below. NEVER invent a URL.
- Every entry in "citations" must copy a url exactly from this list.

Sources:
`)
	for i, s := range sources {
		fmt.Fprintf(&b, "%d. %s\n   URL: %s\n   %s\n", i+1, s.Title, s.URL, s.Description)
	}
	return b.String()
}

// extractJSONObject trims markdown fences and surrounding prose so the draft
// object can be unmarshalled even when the model adds commentary.
func extractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end != -1 && end > start {
		return text[start : end+1]
	}
	return text
}
