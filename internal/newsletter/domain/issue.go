package domain

import (
	"encoding/json"
	"time"
)

// IssueSection is one ordered block of issue body content
type IssueSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// IssueCitation is a source link the synthesis provider attributed
type IssueCitation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Issue is one generated instance of a Newsletter. Immutable once created
// except for SentAt.
type Issue struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	NewsletterID string     `json:"newsletter_id" gorm:"index;not null"`
	Subject      string     `json:"subject" gorm:"not null"`
	Summary      string     `json:"summary"`
	Sections     string     `json:"-" gorm:"type:text"` // JSON-encoded []IssueSection
	Takeaways    string     `json:"-" gorm:"type:text"` // JSON-encoded []string
	Citations    string     `json:"-" gorm:"type:text"` // JSON-encoded []IssueCitation
	HTMLBody     string     `json:"-" gorm:"type:text"`
	TextBody     string     `json:"-" gorm:"type:text"`
	SourceCount  int        `json:"source_count"`
	Provider     string     `json:"provider"`
	FallbackUsed bool       `json:"fallback_used"`
	GeneratedAt  time.Time  `json:"generated_at"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
}

// DecodeSections returns the parsed section list
func (i *Issue) DecodeSections() []IssueSection {
	var sections []IssueSection
	_ = json.Unmarshal([]byte(i.Sections), &sections)
	return sections
}

// DecodeTakeaways returns the parsed takeaway list
func (i *Issue) DecodeTakeaways() []string {
	var takeaways []string
	_ = json.Unmarshal([]byte(i.Takeaways), &takeaways)
	return takeaways
}

// DecodeCitations returns the parsed citation list
func (i *Issue) DecodeCitations() []IssueCitation {
	var citations []IssueCitation
	_ = json.Unmarshal([]byte(i.Citations), &citations)
	return citations
}
