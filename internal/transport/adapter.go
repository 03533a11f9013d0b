// Package transport owns the live event connection of an agent session:
// the identification handshake, inbound event decoding and outbound
// commands.
package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/support-console/internal/model"
	"github.com/capitalize-ai/support-console/pkg/logger"
	"github.com/capitalize-ai/support-console/pkg/metrics"
)

// ErrNotConnected is returned by commands issued while disconnected.
var ErrNotConnected = errors.New("live channel not connected")

// DefaultEventBuffer is the capacity of the inbound event channel.
const DefaultEventBuffer = 256

// Config configures an Adapter.
type Config struct {
	// Prefix scopes every subject, e.g. "support".
	Prefix string
	// Profile is the authenticated agent, if any.
	Profile     *model.Agent
	EventBuffer int
}

// Adapter is the live channel of one agent session.
type Adapter struct {
	cfg    Config
	dial   Dialer
	logger *logger.Logger
	agent  model.Agent

	mu   sync.Mutex
	conn Conn
	sub  Subscription

	registered atomic.Bool
	events     chan model.Event
	done       chan struct{}
	closeOnce  sync.Once
}

// New creates a disconnected adapter. The agent identity is fixed here: the
// profile when present, else a generated fallback id.
func New(cfg Config, dial Dialer, log *logger.Logger) *Adapter {
	if cfg.Prefix == "" {
		cfg.Prefix = "support"
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}
	return &Adapter{
		cfg:    cfg,
		dial:   dial,
		logger: log,
		agent:  ResolveAgent(cfg.Profile),
		events: make(chan model.Event, cfg.EventBuffer),
		done:   make(chan struct{}),
	}
}

// ResolveAgent returns the profile identity, or a synthesized fallback when
// the profile is missing or has no id.
func ResolveAgent(profile *model.Agent) model.Agent {
	if profile != nil && profile.ID != "" {
		a := *profile
		if a.Name == "" {
			a.Name = a.ID
		}
		a.Fallback = false
		return a
	}
	id := "agent_" + uuid.NewString()
	name := "Agente"
	if profile != nil && profile.Name != "" {
		name = profile.Name
	}
	return model.Agent{ID: id, Name: name, Fallback: true}
}

// Agent returns the identity used on the live channel.
func (a *Adapter) Agent() model.Agent {
	return a.agent
}

// Events returns the inbound event channel. It stays the same across
// reconnects and is never closed.
func (a *Adapter) Events() <-chan model.Event {
	return a.events
}

// Connect opens the connection, subscribes to inbound events and identifies
// the agent. It is a no-op when already connected.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	select {
	case <-a.done:
		a.mu.Unlock()
		return errors.New("adapter closed")
	default:
	}
	if a.conn != nil && a.conn.IsConnected() {
		a.mu.Unlock()
		return nil
	}
	a.teardownLocked()

	conn, err := a.dial(ctx)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	sub, err := conn.Subscribe(EventSubject(a.cfg.Prefix), a.handle)
	if err != nil {
		conn.Close()
		a.mu.Unlock()
		return err
	}
	a.conn = conn
	a.sub = sub
	a.mu.Unlock()

	a.logger.Info("live channel connected",
		zap.String("agent_id", a.agent.ID),
		zap.Bool("fallback_identity", a.agent.Fallback),
	)
	return a.publish(ctx, model.CommandIdentifyAgent, identifyPayload{AgentID: a.agent.ID, AgentName: a.agent.Name})
}

// Maintain connects now and reconnects every interval while the connection
// is down, until ctx is done or the adapter is closed.
func (a *Adapter) Maintain(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if !a.IsConnected() {
			if err := a.Connect(ctx); err != nil {
				a.logger.Warn("live channel connect failed, retrying",
					zap.Duration("interval", interval), zap.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case <-ticker.C:
		}
	}
}

// Disconnect tears down the subscription and connection. It is safe to call
// repeatedly.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return
	}
	a.teardownLocked()
	a.logger.Info("live channel disconnected")
}

// Close disconnects and stops event delivery for good.
func (a *Adapter) Close() {
	a.Disconnect()
	a.closeOnce.Do(func() { close(a.done) })
}

func (a *Adapter) teardownLocked() {
	if a.sub != nil {
		if err := a.sub.Unsubscribe(); err != nil {
			a.logger.Debug("unsubscribe failed", zap.Error(err))
		}
		a.sub = nil
	}
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	a.registered.Store(false)
}

// IsConnected reports whether the connection is up.
func (a *Adapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn != nil && a.conn.IsConnected()
}

// Registered reports whether the server acknowledged the identification.
func (a *Adapter) Registered() bool {
	return a.registered.Load()
}

func (a *Adapter) handle(data []byte) {
	ev, err := Decode(data)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, ErrUnknownEvent) {
			reason = "unknown_type"
		}
		metrics.RecordDroppedEvent(reason)
		a.logger.Warn("dropping inbound event", zap.String("reason", reason), zap.Error(err))
		return
	}

	switch ev := ev.(type) {
	case model.AgentRegisteredEvent:
		if ev.AgentID != a.agent.ID {
			metrics.RecordDroppedEvent("other_agent")
			return
		}
		a.registered.Store(ev.Success)
		if !ev.Success {
			a.logger.Warn("agent registration rejected", zap.String("agent_id", ev.AgentID))
		}
	case model.HistoryEvent:
		if ev.AgentID != "" && ev.AgentID != a.agent.ID {
			metrics.RecordDroppedEvent("other_agent")
			return
		}
	}

	metrics.RecordEvent(string(ev.EventType()))
	select {
	case a.events <- ev:
	case <-a.done:
	}
}

type identifyPayload struct {
	AgentID   string `json:"agentId"`
	AgentName string `json:"agentName"`
}

type messagePayload struct {
	ConversationID string `json:"conversationId"`
	AgentID        string `json:"agentId"`
	Content        string `json:"content"`
}

type conversationPayload struct {
	ConversationID string `json:"conversationId"`
	AgentID        string `json:"agentId"`
	AgentName      string `json:"agentName,omitempty"`
}

// SendMessage publishes an agent reply.
func (a *Adapter) SendMessage(ctx context.Context, conversationID, content string) error {
	return a.publish(ctx, model.CommandAgentMessage, messagePayload{
		ConversationID: conversationID,
		AgentID:        a.agent.ID,
		Content:        content,
	})
}

// TakeConversation asks to assign the conversation to this agent.
func (a *Adapter) TakeConversation(ctx context.Context, conversationID string) error {
	return a.publish(ctx, model.CommandTakeConversation, conversationPayload{
		ConversationID: conversationID,
		AgentID:        a.agent.ID,
		AgentName:      a.agent.Name,
	})
}

// CloseConversation asks to close the conversation.
func (a *Adapter) CloseConversation(ctx context.Context, conversationID string) error {
	return a.publish(ctx, model.CommandCloseConversation, conversationPayload{
		ConversationID: conversationID,
		AgentID:        a.agent.ID,
	})
}

// RequestHistory asks for the conversation's authoritative history, which
// arrives as a conversation_history event.
func (a *Adapter) RequestHistory(ctx context.Context, conversationID string) error {
	return a.publish(ctx, model.CommandRequestHistory, conversationPayload{
		ConversationID: conversationID,
		AgentID:        a.agent.ID,
	})
}

func (a *Adapter) publish(ctx context.Context, typ model.CommandType, payload any) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil || !conn.IsConnected() {
		metrics.RecordCommand(string(typ), ErrNotConnected)
		return ErrNotConnected
	}

	data, err := Encode(typ, payload)
	if err != nil {
		return err
	}
	err = conn.Publish(ctx, CommandSubject(a.cfg.Prefix, typ), data)
	metrics.RecordCommand(string(typ), err)
	if err != nil {
		a.logger.Warn("command publish failed", zap.String("command", string(typ)), zap.Error(err))
	}
	return err
}
