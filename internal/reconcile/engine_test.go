package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/capitalize-ai/support-console/internal/model"
	"github.com/capitalize-ai/support-console/internal/store"
	"github.com/capitalize-ai/support-console/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errOffline = errors.New("offline")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	sendErr   error
	sent      []string
	taken     []string
	closed    []string
	requests  chan string
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Agent() model.Agent { return model.Agent{ID: "agent-1", Name: "Ana"} }

func (f *fakeTransport) SendMessage(ctx context.Context, conversationID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, content)
	return f.sendErr
}

func (f *fakeTransport) TakeConversation(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return errOffline
	}
	f.taken = append(f.taken, conversationID)
	return nil
}

func (f *fakeTransport) CloseConversation(ctx context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return errOffline
	}
	f.closed = append(f.closed, conversationID)
	return nil
}

func (f *fakeTransport) RequestHistory(ctx context.Context, conversationID string) error {
	if f.requests != nil {
		f.requests <- conversationID
	}
	return nil
}

type fakeBackend struct {
	mu            sync.Mutex
	gate          chan struct{}
	conversations map[string]model.Conversation
	messages      map[string][]model.Message
	list          []model.Conversation
	detailCalls   int
	messageCalls  int
	assigned      []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		conversations: make(map[string]model.Conversation),
		messages:      make(map[string][]model.Message),
	}
}

func (f *fakeBackend) wait() {
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeBackend) ListConversations(ctx context.Context, filter model.StatusFilter) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list, nil
}

func (f *fakeBackend) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	c, ok := f.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: not found", id)
	}
	out := c.Clone()
	return &out, nil
}

func (f *fakeBackend) GetMessages(ctx context.Context, id string) ([]model.Message, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messageCalls++
	msgs, ok := f.messages[id]
	if !ok {
		return nil, errOffline
	}
	return append([]model.Message(nil), msgs...), nil
}

func (f *fakeBackend) AssignAgent(ctx context.Context, id string, agent model.Agent) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned = append(f.assigned, id)
	return &model.Conversation{ID: id, AgentID: &agent.ID, AgentName: &agent.Name}, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	messages []model.Message
	provider []model.Event
}

func (o *recordingObserver) OnCustomerMessage(conv model.Conversation, msg model.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
}

func (o *recordingObserver) OnProviderEvent(ev model.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.provider = append(o.provider, ev)
}

type harness struct {
	engine    *Engine
	store     *store.Store
	transport *fakeTransport
	backend   *fakeBackend
	clock     *fakeClock
}

func newHarness(t *testing.T, opts ...Option) *harness {
	h := &harness{
		store:     store.New(),
		transport: &fakeTransport{},
		backend:   newFakeBackend(),
		clock:     newFakeClock(),
	}
	opts = append([]Option{WithClock(h.clock.Now), WithHistoryTimeout(50 * time.Millisecond)}, opts...)
	h.engine = New(h.store, h.transport, h.backend, logger.NewNop(), opts...)
	t.Cleanup(h.engine.Close)
	return h
}

func customerMessage(convID, msgID, content string) model.CustomerMessageEvent {
	return model.CustomerMessageEvent{
		ConversationID: convID,
		UserID:         "u-" + convID,
		Message:        model.Message{ID: msgID, SenderType: model.SenderCustomer, Content: content},
	}
}

func ids(msgs []model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func convIDs(cs []model.Conversation) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func (h *harness) seed(id string, msgs ...model.Message) {
	h.store.Upsert(model.Conversation{ID: id, Status: model.StatusOpen, Messages: msgs, UpdatedAt: h.clock.Now()}, nil)
}

func TestCustomerMessagesKeepMostRecentFirst(t *testing.T) {
	h := newHarness(t)

	sequence := []string{"a", "b", "c", "a", "d", "b"}
	for i, id := range sequence {
		h.engine.Handle(customerMessage(id, fmt.Sprintf("m%d", i), "hola"))

		list := h.store.List(model.FilterAll)
		for j := 1; j < len(list); j++ {
			assert.False(t, list[j].UpdatedAt.After(list[j-1].UpdatedAt), "list must stay most-recent-first")
		}
	}

	list := h.store.List(model.FilterAll)
	assert.Equal(t, []string{"b", "d", "a", "c"}, convIDs(list))
	assert.Len(t, list, 4)

	a, _ := h.store.Get("a")
	assert.Equal(t, 2, a.UnreadCount)
	assert.Len(t, a.Messages, 2)
	assert.Equal(t, "hola", a.LastMessage)
}

func TestCustomerMessageRedeliveryIsIdempotent(t *testing.T) {
	obs := &recordingObserver{}
	h := newHarness(t, WithObserver(obs))
	h.seed("a")

	ev := customerMessage("a", "m1", "hola")
	h.engine.Handle(ev)
	h.engine.Handle(ev)

	a, _ := h.store.Get("a")
	assert.Len(t, a.Messages, 1)
	assert.Equal(t, 1, a.UnreadCount)
	assert.Len(t, obs.messages, 1)
}

func TestEchoReplacesProvisionalMessage(t *testing.T) {
	h := newHarness(t)
	h.seed("a", model.Message{ID: "m1", SenderType: model.SenderCustomer, Content: "hola"})
	require.NoError(t, h.engine.Select(context.Background(), "a"))

	sent, err := h.engine.Send(context.Background(), "a", "Hola")
	require.NoError(t, err)
	require.True(t, sent.IsProvisional())
	assert.Equal(t, model.DeliveryPending, sent.Delivery)

	before, _ := h.store.Get("a")
	require.Len(t, before.Messages, 2)

	h.engine.Handle(model.AgentMessageEvent{ConversationID: "a", Message: model.Message{
		ID: "srv-1", SenderType: model.SenderAgent, Content: "Hola", CreatedAt: sent.CreatedAt.Add(5 * time.Second),
	}})

	after, _ := h.store.Get("a")
	assert.Equal(t, []string{"m1", "srv-1"}, ids(after.Messages))
	assert.Equal(t, model.DeliveryConfirmed, after.Messages[1].Delivery)
	assert.Equal(t, []string{"m1", "srv-1"}, ids(h.store.Active().Messages))

	h.engine.Handle(model.AgentMessageEvent{ConversationID: "a", Message: model.Message{
		ID: "srv-2", SenderType: model.SenderAgent, Content: "Otra cosa", CreatedAt: sent.CreatedAt.Add(6 * time.Second),
	}})
	after, _ = h.store.Get("a")
	assert.Len(t, after.Messages, 3)
	assert.Len(t, h.store.Active().Messages, 3)
}

func TestEchoOutsideWindowAppends(t *testing.T) {
	h := newHarness(t)
	h.seed("a")

	sent, err := h.engine.Send(context.Background(), "a", "Hola")
	require.NoError(t, err)

	h.engine.Handle(model.AgentMessageEvent{ConversationID: "a", Message: model.Message{
		ID: "srv-1", SenderType: model.SenderAgent, Content: "Hola", CreatedAt: sent.CreatedAt.Add(EchoWindow),
	}})
	after, _ := h.store.Get("a")
	assert.Equal(t, []string{sent.ID, "srv-1"}, ids(after.Messages))
}

func TestAgentMessageRedeliveryIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.seed("a")
	require.NoError(t, h.engine.Select(context.Background(), "a"))

	ev := model.AgentMessageEvent{ConversationID: "a", Message: model.Message{
		ID: "srv-1", SenderType: model.SenderAgent, Content: "Te ayudo", CreatedAt: h.clock.Now(),
	}}
	h.engine.Handle(ev)
	h.engine.Handle(ev)

	a, _ := h.store.Get("a")
	assert.Equal(t, []string{"srv-1"}, ids(a.Messages))
	assert.Equal(t, []string{"srv-1"}, ids(h.store.Active().Messages))
}

func TestDetailFetchMergesIntoCurrentEntry(t *testing.T) {
	h := newHarness(t)
	h.backend.gate = make(chan struct{})
	agent, name := "agent-9", "Luis"
	h.backend.conversations["c1"] = model.Conversation{
		ID:        "c1",
		UserID:    "u-1",
		Status:    model.StatusOpen,
		AgentID:   &agent,
		AgentName: &name,
		Messages:  []model.Message{{ID: "m1", SenderType: model.SenderCustomer, Content: "hola"}},
	}

	h.engine.Handle(customerMessage("c1", "m1", "hola"))
	c, _ := h.store.Get("c1")
	assert.True(t, c.Provisional)

	// Appended while the detail fetch is in flight.
	h.engine.Handle(customerMessage("c1", "m2", "¿hay alguien?"))
	close(h.backend.gate)

	require.Eventually(t, func() bool {
		c, _ := h.store.Get("c1")
		return !c.Provisional
	}, time.Second, 5*time.Millisecond)

	c, _ = h.store.Get("c1")
	assert.Equal(t, []string{"m1", "m2"}, ids(c.Messages), "a shorter fetched list never truncates")
	assert.Equal(t, "u-1", c.UserID)
	require.NotNil(t, c.AgentID)
	assert.Equal(t, "agent-9", *c.AgentID)
	assert.Equal(t, 2, c.UnreadCount)
	assert.Equal(t, 1, h.store.Len())
}

func TestDetailFetchSupersetReplacesMessages(t *testing.T) {
	h := newHarness(t)
	h.backend.gate = make(chan struct{})
	h.backend.conversations["c1"] = model.Conversation{
		ID:     "c1",
		Status: model.StatusOpen,
		Messages: []model.Message{
			{ID: "m0", SenderType: model.SenderCustomer, Content: "antes"},
			{ID: "m1", SenderType: model.SenderCustomer, Content: "hola"},
		},
	}

	h.engine.Handle(customerMessage("c1", "m1", "hola"))
	close(h.backend.gate)

	require.Eventually(t, func() bool {
		c, _ := h.store.Get("c1")
		return len(c.Messages) == 2
	}, time.Second, 5*time.Millisecond)
	c, _ := h.store.Get("c1")
	assert.Equal(t, []string{"m0", "m1"}, ids(c.Messages))
}

func TestDetailFetchFailureKeepsProvisionalEntry(t *testing.T) {
	h := newHarness(t)
	h.engine.Handle(customerMessage("ghost", "m1", "hola"))

	require.Eventually(t, func() bool {
		h.backend.mu.Lock()
		defer h.backend.mu.Unlock()
		return h.backend.detailCalls == 1
	}, time.Second, 5*time.Millisecond)

	c, ok := h.store.Get("ghost")
	require.True(t, ok)
	assert.True(t, c.Provisional)
	assert.Equal(t, []string{"m1"}, ids(c.Messages))
}

func TestTakeConfirmationUpdatesActiveView(t *testing.T) {
	h := newHarness(t)
	h.seed("a")
	require.NoError(t, h.engine.Select(context.Background(), "a"))

	h.engine.Handle(model.ConversationTakenEvent{ConversationID: "a", AgentID: "agent-2", AgentName: "Marta"})

	view := h.store.Active()
	require.NotNil(t, view.Conversation.AgentID)
	assert.Equal(t, "agent-2", *view.Conversation.AgentID)
	assert.Equal(t, "Marta", *h.store.ActiveConversation().Current().AgentName)
	a, _ := h.store.Get("a")
	assert.False(t, a.IsPending())
}

func TestSelectResetsUnreadAndLoadsHistory(t *testing.T) {
	h := newHarness(t)
	h.seed("a")
	h.engine.Handle(customerMessage("a", "m1", "hola"))
	h.backend.messages["a"] = []model.Message{
		{ID: "m0", SenderType: model.SenderCustomer, Content: "ayer"},
		{ID: "m1", SenderType: model.SenderCustomer, Content: "hola"},
	}

	require.NoError(t, h.engine.Select(context.Background(), "a"))
	a, _ := h.store.Get("a")
	assert.Equal(t, 0, a.UnreadCount)

	require.Eventually(t, func() bool {
		return len(h.store.Active().Messages) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"m0", "m1"}, ids(h.store.Active().Messages))
	a, _ = h.store.Get("a")
	assert.Equal(t, []string{"m0", "m1"}, ids(a.Messages))
}

func TestSelectLoadsUnknownConversation(t *testing.T) {
	h := newHarness(t)
	h.backend.conversations["remote"] = model.Conversation{ID: "remote", GuestID: "g-1", Status: model.StatusOpen}
	h.backend.messages["remote"] = nil

	require.NoError(t, h.engine.Select(context.Background(), "remote"))
	assert.Equal(t, "remote", h.store.ActiveID())

	err := h.engine.Select(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestStaleHistoryIsDiscardedForActiveView(t *testing.T) {
	h := newHarness(t)
	h.backend.gate = make(chan struct{})
	h.seed("a")
	h.seed("b")
	h.backend.messages["a"] = []model.Message{{ID: "ha", Content: "historial a"}}
	h.backend.messages["b"] = []model.Message{{ID: "hb", Content: "historial b"}}

	require.NoError(t, h.engine.Select(context.Background(), "a"))
	require.NoError(t, h.engine.Select(context.Background(), "b"))
	close(h.backend.gate)

	require.Eventually(t, func() bool {
		a, _ := h.store.Get("a")
		b, _ := h.store.Get("b")
		return len(a.Messages) == 1 && len(b.Messages) == 1
	}, time.Second, 5*time.Millisecond)

	view := h.store.Active()
	assert.Equal(t, "b", view.Conversation.ID)
	assert.Equal(t, []string{"hb"}, ids(view.Messages))
	a, _ := h.store.Get("a")
	assert.Equal(t, []string{"ha"}, ids(a.Messages), "background entry still gets the result")
}

func TestRepeatedSelectSharesOneHistoryFetch(t *testing.T) {
	h := newHarness(t)
	h.backend.gate = make(chan struct{})
	h.seed("a")
	h.backend.messages["a"] = []model.Message{
		{ID: "m0", Content: "ayer"},
		{ID: "m1", Content: "hola"},
	}

	require.NoError(t, h.engine.Select(context.Background(), "a"))
	require.NoError(t, h.engine.Select(context.Background(), "a"))
	close(h.backend.gate)

	require.Eventually(t, func() bool {
		return len(h.store.Active().Messages) == 2
	}, time.Second, 5*time.Millisecond)
	h.engine.Close()

	for _, m := range h.store.Active().Messages {
		assert.Equal(t, "a", m.ConversationID)
	}
	a, _ := h.store.Get("a")
	assert.Equal(t, []string{"m0", "m1"}, ids(a.Messages))
}

func TestHistoryAfterDeselectIsDiscarded(t *testing.T) {
	h := newHarness(t)
	h.backend.gate = make(chan struct{})
	h.seed("a")
	h.backend.messages["a"] = []model.Message{{ID: "ha"}}

	require.NoError(t, h.engine.Select(context.Background(), "a"))
	h.engine.Deselect()
	close(h.backend.gate)

	require.Eventually(t, func() bool {
		a, _ := h.store.Get("a")
		return len(a.Messages) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Nil(t, h.store.Active().Conversation)
	assert.Empty(t, h.store.Active().Messages)
}

func TestSelectUsesLiveHistoryWhenConnected(t *testing.T) {
	h := newHarness(t, WithHistoryTimeout(time.Second))
	h.transport.connected = true
	h.transport.requests = make(chan string, 1)
	h.seed("a")

	require.NoError(t, h.engine.Select(context.Background(), "a"))
	select {
	case id := <-h.transport.requests:
		assert.Equal(t, "a", id)
	case <-time.After(time.Second):
		t.Fatal("history was not requested")
	}

	h.engine.Handle(model.HistoryEvent{ConversationID: "a", Messages: []model.Message{{ID: "live-1", Content: "hola"}}})

	require.Eventually(t, func() bool {
		return len(h.store.Active().Messages) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "live-1", h.store.Active().Messages[0].ID)
	assert.Equal(t, 0, h.backend.messageCalls)
}

func TestLiveHistoryTimeoutFallsBackToREST(t *testing.T) {
	h := newHarness(t, WithHistoryTimeout(10*time.Millisecond))
	h.transport.connected = true
	h.seed("a")
	h.backend.messages["a"] = []model.Message{{ID: "rest-1"}}

	require.NoError(t, h.engine.Select(context.Background(), "a"))

	require.Eventually(t, func() bool {
		return len(h.store.Active().Messages) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "rest-1", h.store.Active().Messages[0].ID)
}

func TestHistoryKeepsUnconfirmedProvisional(t *testing.T) {
	h := newHarness(t)
	h.seed("a", model.Message{ID: "m1", Content: "hola"})
	sent, err := h.engine.Send(context.Background(), "a", "en camino")
	require.NoError(t, err)
	h.backend.messages["a"] = []model.Message{{ID: "m0"}, {ID: "m1", Content: "hola"}}

	require.NoError(t, h.engine.Select(context.Background(), "a"))
	require.Eventually(t, func() bool {
		return len(h.store.Active().Messages) == 3
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"m0", "m1", sent.ID}, ids(h.store.Active().Messages))
	a, _ := h.store.Get("a")
	assert.Equal(t, []string{"m0", "m1", sent.ID}, ids(a.Messages))
}

func TestSendFailureMarksFailedAndResend(t *testing.T) {
	h := newHarness(t)
	h.seed("a")
	h.transport.sendErr = errOffline

	sent, err := h.engine.Send(context.Background(), "a", "hola")
	require.ErrorIs(t, err, errOffline)
	assert.Equal(t, model.DeliveryFailed, sent.Delivery)

	a, _ := h.store.Get("a")
	require.Len(t, a.Messages, 1)
	assert.Equal(t, model.DeliveryFailed, a.Messages[0].Delivery)

	// Only failed sends can be resent.
	h.transport.sendErr = nil
	resent, err := h.engine.Resend(context.Background(), "a", sent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryPending, resent.Delivery)
	assert.True(t, resent.CreatedAt.After(sent.CreatedAt))

	a, _ = h.store.Get("a")
	require.Len(t, a.Messages, 1)
	assert.Equal(t, model.DeliveryPending, a.Messages[0].Delivery)
	assert.Equal(t, []string{"hola", "hola"}, h.transport.sent)

	_, err = h.engine.Resend(context.Background(), "a", sent.ID)
	assert.ErrorIs(t, err, ErrNotResendable)
	_, err = h.engine.Resend(context.Background(), "a", "nope")
	assert.ErrorIs(t, err, ErrMessageNotFound)
	_, err = h.engine.Resend(context.Background(), "zzz", sent.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestSendValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Send(context.Background(), "a", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, err = h.engine.Send(context.Background(), "a", "hola")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestTakeUsesLiveChannelWhenConnected(t *testing.T) {
	h := newHarness(t)
	h.transport.connected = true
	h.seed("a")

	require.NoError(t, h.engine.Take(context.Background(), "a"))
	assert.Equal(t, []string{"a"}, h.transport.taken)
	assert.Empty(t, h.backend.assigned)

	a, _ := h.store.Get("a")
	assert.True(t, a.IsPending(), "assignment waits for the confirmation event")
}

func TestTakeFallsBackToRESTAssign(t *testing.T) {
	h := newHarness(t)
	h.seed("a")

	require.NoError(t, h.engine.Take(context.Background(), "a"))
	assert.Equal(t, []string{"a"}, h.backend.assigned)

	a, _ := h.store.Get("a")
	require.NotNil(t, a.AgentID)
	assert.Equal(t, "agent-1", *a.AgentID)
	assert.Equal(t, "Ana", *a.AgentName)
}

func TestCloseConversation(t *testing.T) {
	h := newHarness(t)
	h.seed("a")

	err := h.engine.CloseConversation(context.Background(), "a")
	assert.ErrorIs(t, err, errOffline)
	a, _ := h.store.Get("a")
	assert.Equal(t, model.StatusOpen, a.Status)

	h.transport.connected = true
	require.NoError(t, h.engine.CloseConversation(context.Background(), "a"))
	a, _ = h.store.Get("a")
	assert.Equal(t, model.StatusClosed, a.Status)
	assert.Equal(t, []string{"a"}, h.transport.closed)
}

func TestLoadConversationsMergesBackendList(t *testing.T) {
	h := newHarness(t)
	h.engine.Handle(customerMessage("a", "m1", "hola"))
	agent := "agent-3"
	h.backend.list = []model.Conversation{
		{ID: "a", UserID: "u-a", Status: model.StatusOpen, AgentID: &agent, UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "z", GuestID: "g-z", Status: model.StatusOpen},
	}

	got, err := h.engine.LoadConversations(context.Background(), model.FilterPending)
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, convIDs(got))
	assert.Equal(t, 2, h.store.Len())

	a, _ := h.store.Get("a")
	assert.Equal(t, []string{"m1"}, ids(a.Messages))
	assert.Equal(t, "agent-3", *a.AgentID)
}

func TestProviderEventsReachObserverAndAlertTopic(t *testing.T) {
	obs := &recordingObserver{}
	h := newHarness(t, WithObserver(obs))

	ev := model.ProviderDelayEvent{ExternalID: "pf-1", Reason: "carrier backlog"}
	h.engine.Handle(ev)

	require.Len(t, obs.provider, 1)
	assert.Equal(t, ev, obs.provider[0])
	assert.Equal(t, model.Event(ev), h.store.ProviderAlerts().Current())
	assert.Equal(t, 0, h.store.Len())
}

func TestRunStopsWhenEventsClose(t *testing.T) {
	h := newHarness(t)
	events := make(chan model.Event, 2)
	events <- customerMessage("a", "m1", "hola")
	events <- customerMessage("b", "m2", "hola")
	close(events)

	h.engine.Run(context.Background(), events)
	assert.Equal(t, 2, h.store.Len())
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("a")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, k.size())
}
