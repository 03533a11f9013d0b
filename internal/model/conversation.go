// Package model defines data structures for the support console.
package model

import (
	"time"
)

// ConversationStatus is the server-side lifecycle state of a conversation.
type ConversationStatus string

const (
	StatusOpen   ConversationStatus = "open"
	StatusClosed ConversationStatus = "closed"
)

// StatusFilter selects conversations in list queries. StatusPending is a
// derived view: open with no assigned agent.
type StatusFilter string

const (
	FilterAll     StatusFilter = ""
	FilterOpen    StatusFilter = "open"
	FilterClosed  StatusFilter = "closed"
	FilterPending StatusFilter = "pending"
)

// Conversation represents one customer-to-support thread.
type Conversation struct {
	ID      string `json:"id"`
	UserID  string `json:"userId,omitempty"`
	GuestID string `json:"guestId,omitempty"`

	Status    ConversationStatus `json:"status"`
	AgentID   *string            `json:"agentId,omitempty"`
	AgentName *string            `json:"agentName,omitempty"`

	Messages    []Message `json:"messages"`
	LastMessage string    `json:"lastMessage,omitempty"`
	UnreadCount int       `json:"unreadCount"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Provisional is set while the entry was synthesized from a push event
	// and the detail fetch has not completed yet.
	Provisional bool `json:"provisional,omitempty"`
}

// Customer returns the participant reference of the conversation.
func (c *Conversation) Customer() CustomerRef {
	if c.UserID != "" {
		return CustomerRef{ID: c.UserID, Type: CustomerUser}
	}
	return CustomerRef{ID: c.GuestID, Type: CustomerGuest}
}

// IsPending reports whether the conversation is open and unassigned.
func (c *Conversation) IsPending() bool {
	return c.Status == StatusOpen && (c.AgentID == nil || *c.AgentID == "")
}

// Matches reports whether the conversation passes a status filter.
func (c *Conversation) Matches(filter StatusFilter) bool {
	switch filter {
	case FilterAll:
		return true
	case FilterPending:
		return c.IsPending()
	default:
		return string(c.Status) == string(filter)
	}
}

// Clone returns a copy that shares no mutable state with c.
func (c *Conversation) Clone() Conversation {
	out := *c
	if c.Messages != nil {
		out.Messages = make([]Message, len(c.Messages))
		copy(out.Messages, c.Messages)
	}
	if c.AgentID != nil {
		id := *c.AgentID
		out.AgentID = &id
	}
	if c.AgentName != nil {
		name := *c.AgentName
		out.AgentName = &name
	}
	return out
}

// Agent identifies a support agent.
type Agent struct {
	ID       string `json:"agentId"`
	Name     string `json:"agentName"`
	Fallback bool   `json:"fallback,omitempty"`
}

// ActiveView is the selected conversation together with its active message log.
type ActiveView struct {
	Conversation *Conversation `json:"conversation"`
	Messages     []Message     `json:"messages"`
}
