package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"thinkwrapper-backend/internal/newsletter/domain"
	"thinkwrapper-backend/internal/newsletter/repository"
	"thinkwrapper-backend/pkg/ai"
	"thinkwrapper-backend/pkg/faults"
	"thinkwrapper-backend/pkg/render"
	"thinkwrapper-backend/pkg/search"
)

// Pipeline composes search, synthesis and rendering into one "produce an
// issue" operation. Search and render failures degrade; only a synthesis
// failure is fatal.
type Pipeline struct {
	searchProvider search.Provider
	synthesis      ai.SynthesisService
	renderer       *render.Renderer
	issueRepo      repository.IssueRepository
}

// NewPipeline creates a synthesis pipeline. searchProvider may be nil when
// no search backend is configured; the pipeline then always runs in
// fallback mode.
func NewPipeline(searchProvider search.Provider, synthesis ai.SynthesisService, renderer *render.Renderer, issueRepo repository.IssueRepository) *Pipeline {
	return &Pipeline{
		searchProvider: searchProvider,
		synthesis:      synthesis,
		renderer:       renderer,
		issueRepo:      issueRepo,
	}
}

// Produce generates and stores one Issue for the newsletter.
//
// Search errors and empty result sets both degrade to no-citation synthesis
// with FallbackUsed set; the two cases are deliberately not distinguished.
func (p *Pipeline) Produce(ctx context.Context, newsletter *domain.Newsletter) (*domain.Issue, error) {
	if p.synthesis == nil {
		return nil, fmt.Errorf("synthesis provider not configured: %w", faults.ErrNotConfigured)
	}

	sources := p.collectSources(ctx, newsletter.Topic, newsletter.MaxSources)

	draft, err := p.synthesis.Synthesize(ctx, newsletter.Topic, newsletter.Style, sources)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed for topic %q: %w", newsletter.Topic, err)
	}

	issue, err := p.buildIssue(newsletter, draft, len(sources))
	if err != nil {
		return nil, err
	}

	if err := p.issueRepo.Create(issue); err != nil {
		return nil, fmt.Errorf("failed to store issue: %w", err)
	}

	log.Printf("[Pipeline] Generated issue %s for newsletter %s (sources=%d fallback=%t provider=%s)",
		issue.ID, newsletter.ID, issue.SourceCount, issue.FallbackUsed, issue.Provider)
	return issue, nil
}

// collectSources runs the search step. Provider errors and empty result
// sets are absorbed: the pipeline proceeds with zero sources.
func (p *Pipeline) collectSources(ctx context.Context, topic string, maxSources int) []ai.SourceItem {
	if p.searchProvider == nil {
		return nil
	}

	results, err := p.searchProvider.Search(ctx, topic, maxSources)
	if err != nil {
		if errors.Is(err, faults.ErrNotConfigured) {
			log.Printf("[Pipeline] Search provider not configured, proceeding without sources")
		} else {
			log.Printf("[Pipeline] Search failed for topic %q, proceeding without sources: %v", topic, err)
		}
		return nil
	}

	sources := make([]ai.SourceItem, 0, len(results))
	for _, r := range results {
		sources = append(sources, ai.SourceItem{
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Description,
		})
	}
	return sources
}

func (p *Pipeline) buildIssue(newsletter *domain.Newsletter, draft *ai.Draft, sourceCount int) (*domain.Issue, error) {
	fallbackUsed := sourceCount == 0
	if fallbackUsed {
		// no-citation mode: nothing the provider returned may carry a URL
		draft.Citations = nil
	}

	sections := make([]domain.IssueSection, 0, len(draft.Sections))
	renderSections := make([]render.Section, 0, len(draft.Sections))
	for _, s := range draft.Sections {
		sections = append(sections, domain.IssueSection{Heading: s.Heading, Body: s.Body})
		renderSections = append(renderSections, render.Section{Heading: s.Heading, Body: s.Body})
	}

	citations := make([]domain.IssueCitation, 0, len(draft.Citations))
	renderCitations := make([]render.Citation, 0, len(draft.Citations))
	for _, c := range draft.Citations {
		citations = append(citations, domain.IssueCitation{Title: c.Title, URL: c.URL})
		renderCitations = append(renderCitations, render.Citation{Title: c.Title, URL: c.URL})
	}

	sectionsJSON, err := json.Marshal(sections)
	if err != nil {
		return nil, err
	}
	takeawaysJSON, err := json.Marshal(draft.Takeaways)
	if err != nil {
		return nil, err
	}
	citationsJSON, err := json.Marshal(citations)
	if err != nil {
		return nil, err
	}

	content := render.Content{
		Subject:   draft.Subject,
		Summary:   draft.Summary,
		Sections:  renderSections,
		Takeaways: draft.Takeaways,
		Citations: renderCitations,
	}

	return &domain.Issue{
		NewsletterID: newsletter.ID,
		Subject:      draft.Subject,
		Summary:      draft.Summary,
		Sections:     string(sectionsJSON),
		Takeaways:    string(takeawaysJSON),
		Citations:    string(citationsJSON),
		HTMLBody:     p.renderer.RenderHTML(content),
		TextBody:     p.renderer.RenderText(content),
		SourceCount:  sourceCount,
		Provider:     draft.Provider,
		FallbackUsed: fallbackUsed,
		GeneratedAt:  time.Now(),
	}, nil
}
