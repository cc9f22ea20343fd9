package model

import "time"

// InterestSource records how an interest entered the system.
type InterestSource string

// Interest source constants.
const (
	InterestManual       InterestSource = "manual"
	InterestChatInferred InterestSource = "chat_inferred"
	InterestImported     InterestSource = "imported"
)

// CoverageLevel grades how well the proprietary corpus covers an interest.
type CoverageLevel string

// Coverage level constants, best to worst.
const (
	CoverageDecisionGrade CoverageLevel = "decision_grade"
	CoveragePartial       CoverageLevel = "partial"
	CoverageAvailable     CoverageLevel = "available"
	CoverageWebOnly       CoverageLevel = "web_only"
)

// InterestCoverage is the matcher-derived coverage verdict for an interest.
type InterestCoverage struct {
	Level      CoverageLevel `json:"level"`
	CategoryID string        `json:"categoryId,omitempty"`
	Category   string        `json:"category,omitempty"`
	Reason     string        `json:"reason,omitempty"`
}

// Interest is a tracked commodity or category the user follows.
// CanonicalKey is the pipe-joined, sorted, lowercased set of
// {region, grade, tokens(text)} and is the deduplication key.
type Interest struct {
	ID             string           `json:"id"`
	Text           string           `json:"text"`
	CanonicalKey   string           `json:"canonicalKey"`
	Source         InterestSource   `json:"source"`
	Region         string           `json:"region,omitempty"`
	Grade          string           `json:"grade,omitempty"`
	Coverage       InterestCoverage `json:"coverage"`
	SavedAt        time.Time        `json:"savedAt"`
	ConversationID string           `json:"conversationId,omitempty"`
}
