package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/capitalize-ai/support-console/internal/autoresponse"
	"github.com/capitalize-ai/support-console/internal/customer"
	"github.com/capitalize-ai/support-console/internal/intent"
	"github.com/capitalize-ai/support-console/internal/model"
	"github.com/capitalize-ai/support-console/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeCustomers struct {
	mu    sync.Mutex
	cc    *model.CustomerContext
	err   error
	gate  chan struct{}
	calls []model.CustomerRef
}

func (f *fakeCustomers) Context(ctx context.Context, ref model.CustomerRef) (*model.CustomerContext, error) {
	f.mu.Lock()
	f.calls = append(f.calls, ref)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.cc, f.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.Event
	err    error
}

func (s *recordingSink) Apply(ctx context.Context, ev model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func newAssistant(t *testing.T, customers *fakeCustomers, opts ...Option) *Assistant {
	clock := func() time.Time { return testNow }
	gen := autoresponse.New(autoresponse.DefaultConfig(), nil, logger.NewNop(), autoresponse.WithClock(clock))
	opts = append([]Option{WithClock(clock)}, opts...)
	var source customer.Source
	if customers != nil {
		source = customers
	}
	a := New(intent.New(), source, gen, logger.NewNop(), opts...)
	t.Cleanup(a.Close)
	return a
}

func customerContext() *model.CustomerContext {
	return &model.CustomerContext{
		Customer:     model.CustomerRef{ID: "u-1", Type: model.CustomerUser},
		Name:         "Ana García",
		ActiveOrders: []model.Order{{ID: 12345, Status: "processing", CreatedAt: testNow.Add(-48 * time.Hour)}},
	}
}

func TestSuggestUsesCustomerContext(t *testing.T) {
	customers := &fakeCustomers{cc: customerContext()}
	a := newAssistant(t, customers)

	conv := model.Conversation{ID: "c1", UserID: "u-1", Status: model.StatusOpen}
	set, err := a.Suggest(context.Background(), conv, model.Message{ID: "m1", Content: "¿Dónde está mi pedido #12345?"})
	require.NoError(t, err)

	assert.Equal(t, "c1", set.ConversationID)
	assert.Equal(t, "m1", set.MessageID)
	assert.Equal(t, model.IntentOrderStatus, set.Intent.Type)
	assert.Equal(t, testNow, set.GeneratedAt)
	require.NotEmpty(t, set.Suggestions)
	assert.Equal(t, int64(12345), set.Suggestions[0].Metadata.OrderID)
	assert.Equal(t, []model.CustomerRef{{ID: "u-1", Type: model.CustomerUser}}, customers.calls)
}

func TestSuggestDegradesWithoutContext(t *testing.T) {
	a := newAssistant(t, &fakeCustomers{err: errors.New("context service down")})

	conv := model.Conversation{ID: "c1", GuestID: "g-1", Status: model.StatusOpen}
	set, err := a.Suggest(context.Background(), conv, model.Message{ID: "m1", Content: "¿Dónde está mi pedido?"})
	require.NoError(t, err)
	require.NotEmpty(t, set.Suggestions)
	for _, s := range set.Suggestions {
		assert.False(t, s.CanSendAutomatically)
	}
}

func TestSuggestBelowThresholdYieldsEmptySet(t *testing.T) {
	a := newAssistant(t, nil)

	set, err := a.Suggest(context.Background(), model.Conversation{ID: "c1"}, model.Message{ID: "m1", Content: "hola buenas"})
	require.NoError(t, err)
	assert.Equal(t, model.IntentGeneral, set.Intent.Type)
	assert.Empty(t, set.Suggestions)
}

func TestOnCustomerMessagePublishesToBoard(t *testing.T) {
	a := newAssistant(t, &fakeCustomers{cc: customerContext()})
	updates, cancel := a.Board().Updates().Subscribe()
	defer cancel()
	<-updates

	a.OnCustomerMessage(model.Conversation{ID: "c1", UserID: "u-1"}, model.Message{ID: "m1", Content: "Quiero cancelar mi pedido 12345"})

	select {
	case set := <-updates:
		assert.Equal(t, "c1", set.ConversationID)
		assert.Equal(t, model.IntentCancellation, set.Intent.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no suggestion published")
	}
	set, ok := a.Board().Get("c1")
	require.True(t, ok)
	assert.Equal(t, "m1", set.MessageID)
}

func TestBoardKeepsNewestMessage(t *testing.T) {
	b := NewBoard()
	defer b.Close()

	older := b.reserve("c1")
	newer := b.reserve("c1")

	assert.True(t, b.put(model.SuggestionSet{ConversationID: "c1", MessageID: "m2"}, newer))
	assert.False(t, b.put(model.SuggestionSet{ConversationID: "c1", MessageID: "m1"}, older))

	set, ok := b.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "m2", set.MessageID)

	inFlight := b.reserve("c1")
	b.Clear("c1")
	_, ok = b.Get("c1")
	assert.False(t, ok)
	assert.False(t, b.put(model.SuggestionSet{ConversationID: "c1", MessageID: "m3"}, inFlight),
		"sets for messages before the close are dropped")

	assert.True(t, b.put(model.SuggestionSet{ConversationID: "c1", MessageID: "m4"}, b.reserve("c1")))
}

func TestCloseCancelsPendingWork(t *testing.T) {
	customers := &fakeCustomers{cc: customerContext(), gate: make(chan struct{})}
	a := newAssistant(t, customers, WithConcurrency(1))

	conv := model.Conversation{ID: "c1", UserID: "u-1"}
	a.OnCustomerMessage(conv, model.Message{ID: "m1", Content: "¿Dónde está mi pedido?"})
	a.OnCustomerMessage(conv, model.Message{ID: "m2", Content: "¿Dónde está mi pedido?"})

	done := make(chan struct{})
	go func() {
		a.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}

	_, ok := a.Board().Get("c1")
	assert.False(t, ok)

	a.OnCustomerMessage(conv, model.Message{ID: "m3", Content: "hola"})
}

func TestOnProviderEventAppliesToSink(t *testing.T) {
	sink := &recordingSink{}
	a := newAssistant(t, nil, WithStatusSink(sink))

	a.OnProviderEvent(model.ProviderStatusEvent{ExternalID: "pf-1", Status: model.FulfillmentFulfilled})
	sink.err = errors.New("redis: connection refused")
	a.OnProviderEvent(model.ProviderDelayEvent{ExternalID: "pf-1"})

	require.Len(t, sink.events, 2)
	assert.Equal(t, model.EventProviderDelayAlert, sink.events[1].EventType())
}

func TestClassify(t *testing.T) {
	a := newAssistant(t, nil)
	assert.Equal(t, model.IntentReturnRequest, a.Classify("Quiero una devolución").Type)
}
