// Package reconcile owns every mutation of the conversation store. It merges
// live push events, optimistic agent sends and REST detail fetches into one
// ordered, duplicate-free state.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/capitalize-ai/support-console/internal/model"
	"github.com/capitalize-ai/support-console/internal/store"
	"github.com/capitalize-ai/support-console/pkg/logger"
	"github.com/capitalize-ai/support-console/pkg/metrics"
)

var (
	// ErrConversationNotFound is returned for an id the store does not hold
	// and the backend does not know.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrMessageNotFound is returned when a resend targets an unknown message.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNotResendable is returned when a resend targets a message that did
	// not fail.
	ErrNotResendable = errors.New("message is not a failed send")
	// ErrEmptyMessage is returned for a send without content.
	ErrEmptyMessage = errors.New("message content is empty")
)

// DefaultHistoryTimeout bounds the wait for a live-channel history answer
// before REST is used instead.
const DefaultHistoryTimeout = 5 * time.Second

// Transport is the live channel as seen by the engine.
type Transport interface {
	IsConnected() bool
	Agent() model.Agent
	SendMessage(ctx context.Context, conversationID, content string) error
	TakeConversation(ctx context.Context, conversationID string) error
	CloseConversation(ctx context.Context, conversationID string) error
	RequestHistory(ctx context.Context, conversationID string) error
}

// Backend is the REST conversation API.
type Backend interface {
	ListConversations(ctx context.Context, filter model.StatusFilter) ([]model.Conversation, error)
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	GetMessages(ctx context.Context, id string) ([]model.Message, error)
	AssignAgent(ctx context.Context, id string, agent model.Agent) (*model.Conversation, error)
}

// Observer is notified of events the engine does not handle itself.
type Observer interface {
	OnCustomerMessage(conv model.Conversation, msg model.Message)
	OnProviderEvent(ev model.Event)
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver registers the observer of customer messages and provider
// events.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithHistoryTimeout overrides DefaultHistoryTimeout.
func WithHistoryTimeout(d time.Duration) Option {
	return func(e *Engine) { e.historyTimeout = d }
}

// Engine applies events and agent commands to a store.
type Engine struct {
	store     *store.Store
	transport Transport
	backend   Backend
	observer  Observer
	logger    *logger.Logger

	locks     *keyedMutex
	details   singleflight.Group
	histories singleflight.Group

	waitMu  sync.Mutex
	waiters map[string]chan []model.Message

	now            func() time.Time
	historyTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	bgMu   sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates an engine over st.
func New(st *store.Store, transport Transport, backend Backend, log *logger.Logger, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:          st,
		transport:      transport,
		backend:        backend,
		logger:         log,
		locks:          newKeyedMutex(),
		waiters:        make(map[string]chan []model.Message),
		now:            time.Now,
		historyTimeout: DefaultHistoryTimeout,
		ctx:            ctx,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the store the engine mutates.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Run applies events until ctx is done or events is closed.
func (e *Engine) Run(ctx context.Context, events <-chan model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.Handle(ev)
		}
	}
}

// Close cancels background fetches and waits for them to finish.
func (e *Engine) Close() {
	e.bgMu.Lock()
	e.closed = true
	e.bgMu.Unlock()
	e.cancel()
	e.wg.Wait()
}

// Handle applies one inbound event.
func (e *Engine) Handle(ev model.Event) {
	switch ev := ev.(type) {
	case model.CustomerMessageEvent:
		e.onCustomerMessage(ev)
	case model.AgentMessageEvent:
		e.onAgentMessage(ev)
	case model.ConversationTakenEvent:
		e.onTaken(ev)
	case model.HistoryEvent:
		e.onHistory(ev)
	case model.ProviderStatusEvent, model.ProviderTrackingEvent, model.ProviderDelayEvent:
		e.onProviderEvent(ev)
	case model.AgentRegisteredEvent:
		e.logger.Info("agent registered", zap.String("agent_id", ev.AgentID), zap.Bool("success", ev.Success))
	default:
		e.logger.Warn("unhandled event", zap.String("type", string(ev.EventType())))
	}
}

func (e *Engine) onCustomerMessage(ev model.CustomerMessageEvent) {
	now := e.now()
	msg := ev.Message
	msg.ConversationID = ev.ConversationID
	if msg.SenderType == "" {
		msg.SenderType = model.SenderCustomer
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	fresh := model.Conversation{
		ID:          ev.ConversationID,
		UserID:      ev.UserID,
		GuestID:     ev.GuestID,
		Status:      model.StatusOpen,
		Messages:    []model.Message{msg},
		LastMessage: msg.Content,
		UnreadCount: 1,
		CreatedAt:   now,
		UpdatedAt:   laterOf(now, msg.CreatedAt),
		Provisional: true,
	}

	unlock := e.locks.Lock(ev.ConversationID)
	outcome := outcomeAppended
	found := e.store.Upsert(fresh, func(c *model.Conversation) bool {
		c.Messages, outcome = upsertByID(c.Messages, msg)
		if outcome == outcomeDuplicate {
			return false
		}
		c.UnreadCount++
		c.LastMessage = msg.Content
		c.UpdatedAt = laterOf(now, msg.CreatedAt)
		return true
	})
	if found {
		e.store.UpdateActive(ev.ConversationID, 0, func(log []model.Message) []model.Message {
			log, _ = upsertByID(log, msg)
			return log
		})
	}
	conv, _ := e.store.Get(ev.ConversationID)
	unlock()

	metrics.RecordReconcile(outcome)
	if !found {
		e.fetchDetail(ev.ConversationID)
	}
	if outcome != outcomeDuplicate && e.observer != nil {
		e.observer.OnCustomerMessage(conv, msg)
	}
}

func (e *Engine) onAgentMessage(ev model.AgentMessageEvent) {
	now := e.now()
	msg := ev.Message
	msg.ConversationID = ev.ConversationID
	msg.SenderType = model.SenderAgent
	msg.Provisional = false
	msg.Delivery = model.DeliveryConfirmed
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	fresh := model.Conversation{
		ID:          ev.ConversationID,
		Status:      model.StatusOpen,
		Messages:    []model.Message{msg},
		LastMessage: msg.Content,
		CreatedAt:   now,
		UpdatedAt:   laterOf(now, msg.CreatedAt),
		Provisional: true,
	}

	unlock := e.locks.Lock(ev.ConversationID)
	outcome := outcomeAppended
	found := e.store.Upsert(fresh, func(c *model.Conversation) bool {
		c.Messages, outcome = reconcileAgentMessage(c.Messages, msg)
		c.LastMessage = lastContent(c.Messages)
		if outcome != outcomeAppended {
			return false
		}
		c.UpdatedAt = laterOf(now, msg.CreatedAt)
		return true
	})
	if found {
		e.store.UpdateActive(ev.ConversationID, 0, func(log []model.Message) []model.Message {
			log, _ = reconcileAgentMessage(log, msg)
			return log
		})
	}
	unlock()

	metrics.RecordReconcile(outcome)
	if !found {
		e.fetchDetail(ev.ConversationID)
	}
}

func (e *Engine) onTaken(ev model.ConversationTakenEvent) {
	unlock := e.locks.Lock(ev.ConversationID)
	defer unlock()
	found := e.store.Update(ev.ConversationID, func(c *model.Conversation) bool {
		assign(c, ev.AgentID, ev.AgentName)
		c.UpdatedAt = laterOf(c.UpdatedAt, e.now())
		return false
	})
	if !found {
		e.logger.Debug("take confirmation for unknown conversation", zap.String("conversation_id", ev.ConversationID))
	}
}

func assign(c *model.Conversation, agentID, agentName string) {
	id, name := agentID, agentName
	c.AgentID = &id
	c.AgentName = &name
	c.Status = model.StatusOpen
}

func (e *Engine) onHistory(ev model.HistoryEvent) {
	e.waitMu.Lock()
	ch, ok := e.waiters[ev.ConversationID]
	if ok {
		delete(e.waiters, ev.ConversationID)
	}
	e.waitMu.Unlock()

	if ok {
		ch <- ev.Messages
		return
	}
	// Unsolicited or late answer: still authoritative for the list entry
	// and for the active log if the conversation is selected.
	e.applyHistory(ev.ConversationID, 0, ev.Messages)
}

func (e *Engine) onProviderEvent(ev model.Event) {
	if e.observer != nil {
		e.observer.OnProviderEvent(ev)
	}
	e.store.PublishAlert(ev)
}

// goAsync runs fn on a tracked goroutine unless the engine is closed.
func (e *Engine) goAsync(fn func(ctx context.Context)) {
	e.bgMu.Lock()
	defer e.bgMu.Unlock()
	if e.closed {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn(e.ctx)
	}()
}

// fetchDetail enriches a provisional entry from the backend. Concurrent
// requests for one id share a single fetch.
func (e *Engine) fetchDetail(id string) {
	if e.backend == nil {
		return
	}
	e.goAsync(func(ctx context.Context) {
		v, err, _ := e.details.Do(id, func() (interface{}, error) {
			return e.backend.GetConversation(ctx, id)
		})
		if err != nil {
			e.logger.Warn("conversation detail fetch failed, keeping local entry",
				zap.String("conversation_id", id), zap.Error(err))
			return
		}
		fetched, _ := v.(*model.Conversation)
		if fetched == nil {
			return
		}
		e.mergeDetail(*fetched)
	})
}

func (e *Engine) mergeDetail(fetched model.Conversation) {
	unlock := e.locks.Lock(fetched.ID)
	defer unlock()
	e.store.Update(fetched.ID, func(c *model.Conversation) bool {
		mergeConversation(c, fetched)
		return false
	})
	e.store.UpdateActive(fetched.ID, 0, func(log []model.Message) []model.Message {
		if confirmedSuperset(log, fetched.Messages) {
			return replaceAuthoritative(log, fetched.Messages)
		}
		return log
	})
}

// LoadConversations fetches the backend list for filter, merges it into the
// store and returns the matching local snapshot.
func (e *Engine) LoadConversations(ctx context.Context, filter model.StatusFilter) ([]model.Conversation, error) {
	list, err := e.backend.ListConversations(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversations: %w", err)
	}
	e.store.Merge(list, mergeConversation)
	return e.store.List(filter), nil
}

// Select makes id the active conversation, seeds the active log from cached
// messages and requests authoritative history in the background.
func (e *Engine) Select(ctx context.Context, id string) error {
	if _, ok := e.store.Get(id); !ok {
		if err := e.load(ctx, id); err != nil {
			return err
		}
	}

	unlock := e.locks.Lock(id)
	gen, ok := e.store.Select(id)
	if ok {
		e.store.Update(id, func(c *model.Conversation) bool {
			c.UnreadCount = 0
			return false
		})
	}
	unlock()
	if !ok {
		return ErrConversationNotFound
	}

	e.goAsync(func(ctx context.Context) {
		v, err, _ := e.histories.Do(id, func() (interface{}, error) {
			return e.fetchHistory(ctx, id)
		})
		if err != nil {
			e.logger.Warn("history fetch failed, keeping cached messages",
				zap.String("conversation_id", id), zap.Error(err))
			return
		}
		msgs, _ := v.([]model.Message)
		e.applyHistory(id, gen, msgs)
	})
	return nil
}

// Deselect clears the active conversation.
func (e *Engine) Deselect() {
	e.store.Deselect()
}

func (e *Engine) load(ctx context.Context, id string) error {
	if e.backend == nil {
		return ErrConversationNotFound
	}
	c, err := e.backend.GetConversation(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrConversationNotFound, id, err)
	}
	if c == nil {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	c.ID = id
	e.store.Merge([]model.Conversation{*c}, mergeConversation)
	return nil
}

// fetchHistory asks the live channel for history when connected and falls
// back to REST when it is not or when no answer arrives in time.
func (e *Engine) fetchHistory(ctx context.Context, id string) ([]model.Message, error) {
	if e.transport != nil && e.transport.IsConnected() {
		msgs, err := e.liveHistory(ctx, id)
		if err == nil {
			return msgs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Info("live history unavailable, falling back to REST",
			zap.String("conversation_id", id), zap.Error(err))
	}
	if e.backend == nil {
		return nil, errors.New("no history source")
	}
	return e.backend.GetMessages(ctx, id)
}

func (e *Engine) liveHistory(ctx context.Context, id string) ([]model.Message, error) {
	ch := make(chan []model.Message, 1)
	e.waitMu.Lock()
	e.waiters[id] = ch
	e.waitMu.Unlock()

	release := func() {
		e.waitMu.Lock()
		if e.waiters[id] == ch {
			delete(e.waiters, id)
		}
		e.waitMu.Unlock()
	}

	if err := e.transport.RequestHistory(ctx, id); err != nil {
		release()
		return nil, err
	}

	timer := time.NewTimer(e.historyTimeout)
	defer timer.Stop()
	select {
	case msgs := <-ch:
		return msgs, nil
	case <-timer.C:
		release()
		return nil, errors.New("history request timed out")
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}
}

// applyHistory replaces the stored messages with an authoritative history. A
// non-zero gen ties the active-log update to the selection that asked for it.
func (e *Engine) applyHistory(id string, gen uint64, shared []model.Message) {
	// Concurrent selections of one id receive the same slice.
	msgs := make([]model.Message, len(shared))
	copy(msgs, shared)
	for i := range msgs {
		msgs[i].ConversationID = id
	}

	unlock := e.locks.Lock(id)
	defer unlock()
	e.store.Update(id, func(c *model.Conversation) bool {
		c.Messages = replaceAuthoritative(c.Messages, msgs)
		if last := lastContent(c.Messages); last != "" {
			c.LastMessage = last
		}
		c.Provisional = false
		return false
	})
	applied := e.store.UpdateActive(id, gen, func(log []model.Message) []model.Message {
		return replaceAuthoritative(log, msgs)
	})
	if !applied && gen != 0 {
		metrics.RecordReconcile(outcomeDiscarded)
		e.logger.Debug("discarding stale history for the active view", zap.String("conversation_id", id))
	}
}

// Send inserts a provisional agent message and publishes it. On publish
// failure the message stays visible with delivery=failed.
func (e *Engine) Send(ctx context.Context, id, content string) (model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return model.Message{}, ErrEmptyMessage
	}

	msg := model.Message{
		ID:             model.ProvisionalPrefix + uuid.NewString(),
		ConversationID: id,
		SenderType:     model.SenderAgent,
		SenderID:       e.transport.Agent().ID,
		Content:        content,
		CreatedAt:      e.now(),
		IsRead:         true,
		Provisional:    true,
		Delivery:       model.DeliveryPending,
	}

	unlock := e.locks.Lock(id)
	found := e.store.Update(id, func(c *model.Conversation) bool {
		c.Messages = append(c.Messages, msg)
		c.LastMessage = content
		c.UpdatedAt = laterOf(c.UpdatedAt, msg.CreatedAt)
		return true
	})
	if found {
		e.store.UpdateActive(id, 0, func(log []model.Message) []model.Message {
			return append(log, msg)
		})
	}
	unlock()
	if !found {
		return model.Message{}, ErrConversationNotFound
	}

	if err := e.transport.SendMessage(ctx, id, content); err != nil {
		e.markDelivery(id, msg.ID, model.DeliveryFailed, nil)
		msg.Delivery = model.DeliveryFailed
		e.logger.Warn("agent message publish failed", zap.String("conversation_id", id), zap.Error(err))
		return msg, fmt.Errorf("failed to send message: %w", err)
	}
	return msg, nil
}

// Resend republishes a failed provisional message. Its creation time is reset
// so the echo window starts again.
func (e *Engine) Resend(ctx context.Context, id, messageID string) (model.Message, error) {
	c, ok := e.store.Get(id)
	if !ok {
		return model.Message{}, ErrConversationNotFound
	}
	i := indexOfID(c.Messages, messageID)
	if i < 0 {
		return model.Message{}, ErrMessageNotFound
	}
	msg := c.Messages[i]
	if !msg.IsProvisional() || msg.Delivery != model.DeliveryFailed {
		return model.Message{}, ErrNotResendable
	}

	now := e.now()
	e.markDelivery(id, messageID, model.DeliveryPending, &now)
	msg.Delivery = model.DeliveryPending
	msg.CreatedAt = now

	if err := e.transport.SendMessage(ctx, id, msg.Content); err != nil {
		e.markDelivery(id, messageID, model.DeliveryFailed, nil)
		msg.Delivery = model.DeliveryFailed
		return msg, fmt.Errorf("failed to resend message: %w", err)
	}
	return msg, nil
}

func (e *Engine) markDelivery(id, messageID string, d model.Delivery, at *time.Time) {
	unlock := e.locks.Lock(id)
	defer unlock()
	e.store.Update(id, func(c *model.Conversation) bool {
		setDelivery(c.Messages, messageID, d, at)
		return false
	})
	e.store.UpdateActive(id, 0, func(log []model.Message) []model.Message {
		setDelivery(log, messageID, d, at)
		return log
	})
}

// Take assigns the conversation to this agent: over the live channel when
// connected, else through the REST assign endpoint.
func (e *Engine) Take(ctx context.Context, id string) error {
	if _, ok := e.store.Get(id); !ok {
		return ErrConversationNotFound
	}
	if e.transport.IsConnected() {
		if err := e.transport.TakeConversation(ctx, id); err != nil {
			return fmt.Errorf("failed to take conversation: %w", err)
		}
		return nil
	}

	agent := e.transport.Agent()
	updated, err := e.backend.AssignAgent(ctx, id, agent)
	if err != nil {
		return fmt.Errorf("failed to assign conversation: %w", err)
	}
	agentID, agentName := agent.ID, agent.Name
	if updated != nil && updated.AgentID != nil {
		agentID = *updated.AgentID
		if updated.AgentName != nil {
			agentName = *updated.AgentName
		}
	}
	e.onTaken(model.ConversationTakenEvent{ConversationID: id, AgentID: agentID, AgentName: agentName})
	return nil
}

// CloseConversation publishes the close command and marks the entry closed.
func (e *Engine) CloseConversation(ctx context.Context, id string) error {
	if _, ok := e.store.Get(id); !ok {
		return ErrConversationNotFound
	}
	if err := e.transport.CloseConversation(ctx, id); err != nil {
		return fmt.Errorf("failed to close conversation: %w", err)
	}
	unlock := e.locks.Lock(id)
	defer unlock()
	e.store.Update(id, func(c *model.Conversation) bool {
		c.Status = model.StatusClosed
		c.UpdatedAt = laterOf(c.UpdatedAt, e.now())
		return false
	})
	return nil
}
