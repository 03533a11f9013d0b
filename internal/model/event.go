package model

import (
	"time"
)

// EventType discriminates inbound events on the live channel.
type EventType string

const (
	EventAgentRegistered        EventType = "agent_registered"
	EventNewCustomerMessage     EventType = "new_customer_message"
	EventConversationTaken      EventType = "conversation_taken"
	EventNewAgentMessage        EventType = "new_agent_message"
	EventProviderStatusUpdate   EventType = "provider_status_update"
	EventProviderTrackingUpdate EventType = "provider_tracking_update"
	EventProviderDelayAlert     EventType = "provider_delay_alert"
	EventConversationHistory    EventType = "conversation_history"
)

// CommandType names outbound commands published by the agent.
type CommandType string

const (
	CommandIdentifyAgent     CommandType = "identify_agent"
	CommandTakeConversation  CommandType = "take_conversation"
	CommandAgentMessage      CommandType = "agent_message"
	CommandCloseConversation CommandType = "close_conversation"
	CommandRequestHistory    CommandType = "request_history"
)

// Event is an inbound event validated at the transport boundary.
type Event interface {
	EventType() EventType
}

// AgentRegisteredEvent acknowledges the identification handshake.
type AgentRegisteredEvent struct {
	AgentID string `json:"agentId"`
	Success bool   `json:"success"`
}

// CustomerMessageEvent carries a new message written by a customer.
type CustomerMessageEvent struct {
	ConversationID string  `json:"conversationId"`
	UserID         string  `json:"userId,omitempty"`
	GuestID        string  `json:"guestId,omitempty"`
	Message        Message `json:"message"`
}

// ConversationTakenEvent confirms that an agent took a conversation.
type ConversationTakenEvent struct {
	ConversationID string `json:"conversationId"`
	AgentID        string `json:"agentId"`
	AgentName      string `json:"agentName"`
}

// AgentMessageEvent carries an agent message, either this agent's own echo
// or a message sent by another agent.
type AgentMessageEvent struct {
	ConversationID string  `json:"conversationId"`
	Message        Message `json:"message"`
}

// ProviderStatusEvent reports a fulfillment status change.
type ProviderStatusEvent struct {
	OrderID    int64     `json:"orderId,omitempty"`
	ExternalID string    `json:"externalId"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ProviderTrackingEvent reports a new or updated shipment.
type ProviderTrackingEvent struct {
	OrderID    int64    `json:"orderId,omitempty"`
	ExternalID string   `json:"externalId"`
	Shipment   Shipment `json:"shipment"`
}

// ProviderDelayEvent reports that the provider flagged an order as delayed.
type ProviderDelayEvent struct {
	OrderID    int64  `json:"orderId,omitempty"`
	ExternalID string `json:"externalId"`
	Reason     string `json:"reason,omitempty"`
}

// HistoryEvent is the authoritative message history of a conversation.
type HistoryEvent struct {
	AgentID        string    `json:"agentId,omitempty"`
	ConversationID string    `json:"conversationId"`
	Messages       []Message `json:"messages"`
}

func (AgentRegisteredEvent) EventType() EventType   { return EventAgentRegistered }
func (CustomerMessageEvent) EventType() EventType   { return EventNewCustomerMessage }
func (ConversationTakenEvent) EventType() EventType { return EventConversationTaken }
func (AgentMessageEvent) EventType() EventType      { return EventNewAgentMessage }
func (ProviderStatusEvent) EventType() EventType    { return EventProviderStatusUpdate }
func (ProviderTrackingEvent) EventType() EventType  { return EventProviderTrackingUpdate }
func (ProviderDelayEvent) EventType() EventType     { return EventProviderDelayAlert }
func (HistoryEvent) EventType() EventType           { return EventConversationHistory }
