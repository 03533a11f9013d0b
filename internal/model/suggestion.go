package model

import (
	"time"
)

// ActionPriority ranks suggested follow-up actions.
type ActionPriority string

const (
	PriorityNormal ActionPriority = "normal"
	PriorityHigh   ActionPriority = "high"
)

// Action is a labeled follow-up the agent can trigger.
type Action struct {
	ID       string         `json:"id"`
	Label    string         `json:"label"`
	Priority ActionPriority `json:"priority"`
}

// StatusSource records where order status in a suggestion came from.
type StatusSource string

const (
	SourceLive   StatusSource = "live"
	SourceCached StatusSource = "cached"
	SourceNone   StatusSource = "none"
)

// SuggestionMetadata guides whether a suggestion may be sent unreviewed.
type SuggestionMetadata struct {
	Intent      IntentType   `json:"intent"`
	OrderID     int64        `json:"orderId,omitempty"`
	HasTracking bool         `json:"hasTracking"`
	Delayed     bool         `json:"delayed"`
	Source      StatusSource `json:"source"`
}

// Suggestion is a generated candidate reply.
type Suggestion struct {
	// Text is the customer-facing reply.
	Text string `json:"text"`
	// AdminNote is the technical variant shown only to the agent.
	AdminNote            string             `json:"adminNote,omitempty"`
	Confidence           float64            `json:"confidence"`
	CanSendAutomatically bool               `json:"canSendAutomatically"`
	SuggestedActions     []Action           `json:"suggestedActions,omitempty"`
	Metadata             SuggestionMetadata `json:"metadata"`
}

// SuggestionSet is the latest generated suggestions for one conversation.
type SuggestionSet struct {
	ConversationID string       `json:"conversationId"`
	MessageID      string       `json:"messageId"`
	Intent         Intent       `json:"intent"`
	Suggestions    []Suggestion `json:"suggestions"`
	GeneratedAt    time.Time    `json:"generatedAt"`
}
