package model

import (
	"strings"
	"time"
)

// SenderType identifies who wrote a message.
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderAgent    SenderType = "agent"
	SenderSystem   SenderType = "system"
)

// Delivery tracks an optimistic send that the server has not confirmed.
type Delivery string

const (
	DeliveryConfirmed Delivery = ""
	DeliveryPending   Delivery = "pending"
	DeliveryFailed    Delivery = "failed"
)

// ProvisionalPrefix marks locally generated placeholder ids.
const ProvisionalPrefix = "temp_"

// Message represents a conversation message.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId,omitempty"`
	SenderType     SenderType `json:"senderType"`
	SenderID       string     `json:"senderId,omitempty"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"createdAt"`
	IsRead         bool       `json:"isRead"`

	Provisional bool     `json:"provisional,omitempty"`
	Delivery    Delivery `json:"delivery,omitempty"`
}

// IsProvisional reports whether m is an unconfirmed local placeholder.
func (m *Message) IsProvisional() bool {
	return m.Provisional || strings.HasPrefix(m.ID, ProvisionalPrefix)
}
