package fulfillment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/support-console/internal/apiclient"
	"github.com/capitalize-ai/support-console/internal/model"
	"github.com/capitalize-ai/support-console/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewNop()
}

func TestIsDelayed(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	assert.True(t, IsDelayed(&past, model.FulfillmentInProcess, now))
	assert.False(t, IsDelayed(&past, model.FulfillmentFulfilled, now))
	assert.False(t, IsDelayed(&past, "FULFILLED", now))
	assert.True(t, IsDelayed(&past, "shipped", now))
	assert.False(t, IsDelayed(&future, model.FulfillmentInProcess, now))
	assert.False(t, IsDelayed(nil, model.FulfillmentInProcess, now))
	assert.Equal(t, 2, DaysLate(&past, now))
	assert.Equal(t, 0, DaysLate(&future, now))
}

func TestTranslateStatus(t *testing.T) {
	assert.Equal(t, "en producción", TranslateStatus("inprocess"))
	assert.Equal(t, "enviado", TranslateStatus("Fulfilled"))
	assert.Equal(t, "en proceso", TranslateStatus(""))
	assert.Equal(t, "custom", TranslateStatus("custom"))
}

func TestTrackingOfPicksLatestShipment(t *testing.T) {
	status := &model.FulfillmentStatus{Shipments: []model.Shipment{
		{Carrier: "DHL", TrackingNumber: "A1"},
		{Carrier: "UPS", TrackingNumber: "B2"},
		{Carrier: "GLS"},
	}}
	s, ok := TrackingOf(status)
	require.True(t, ok)
	assert.Equal(t, "B2", s.TrackingNumber)

	_, ok = TrackingOf(&model.FulfillmentStatus{})
	assert.False(t, ok)
}

func TestClientOrderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/fulfillment/orders/pf-1":
			w.Write([]byte(`{"success":true,"data":{"status":"inprocess","shipments":[]}}`))
		case "/api/fulfillment/orders/pf-empty":
			w.Write([]byte(`{"success":true,"data":null}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"success":false,"error":"provider down"}`))
		}
	}))
	defer srv.Close()

	c := NewClient(apiclient.New(apiclient.Config{Name: "fulfillment", BaseURL: srv.URL}))

	status, err := c.OrderStatus(context.Background(), "pf-1")
	require.NoError(t, err)
	assert.Equal(t, "pf-1", status.ExternalID)
	assert.Equal(t, "inprocess", status.Status)

	_, err = c.OrderStatus(context.Background(), "pf-empty")
	assert.ErrorIs(t, err, ErrNoStatus)

	_, err = c.OrderStatus(context.Background(), "pf-down")
	assert.ErrorIs(t, err, apiclient.ErrNotSuccessful)
}

type countingProvider struct {
	calls  int
	status *model.FulfillmentStatus
	err    error
}

func (p *countingProvider) OrderStatus(_ context.Context, externalID string) (*model.FulfillmentStatus, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	s := *p.status
	s.ExternalID = externalID
	return &s, nil
}

func TestCachedProviderServesFromCache(t *testing.T) {
	live := &countingProvider{status: &model.FulfillmentStatus{Status: "inprocess"}}
	p := NewCachedProvider(live, NewMemoryCache(time.Minute), testLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s, err := p.OrderStatus(ctx, "pf-1")
		require.NoError(t, err)
		assert.Equal(t, "inprocess", s.Status)
	}
	assert.Equal(t, 1, live.calls)
}

func TestCachedProviderPropagatesLiveErrors(t *testing.T) {
	live := &countingProvider{err: errors.New("timeout")}
	p := NewCachedProvider(live, NewMemoryCache(time.Minute), testLogger())

	_, err := p.OrderStatus(context.Background(), "pf-1")
	assert.Error(t, err)
}

func TestCachedProviderAppliesPushEvents(t *testing.T) {
	live := &countingProvider{status: &model.FulfillmentStatus{Status: "inprocess"}}
	cache := NewMemoryCache(time.Minute)
	p := NewCachedProvider(live, cache, testLogger())
	ctx := context.Background()

	_, err := p.OrderStatus(ctx, "pf-1")
	require.NoError(t, err)

	require.NoError(t, p.Apply(ctx, model.ProviderStatusEvent{ExternalID: "pf-1", Status: "fulfilled"}))
	require.NoError(t, p.Apply(ctx, model.ProviderTrackingEvent{ExternalID: "pf-1", Shipment: model.Shipment{Carrier: "DHL", TrackingNumber: "JD0001"}}))
	require.NoError(t, p.Apply(ctx, model.ProviderTrackingEvent{ExternalID: "pf-1", Shipment: model.Shipment{Carrier: "DHL Express", TrackingNumber: "JD0001"}}))

	s, err := p.OrderStatus(ctx, "pf-1")
	require.NoError(t, err)
	assert.Equal(t, "fulfilled", s.Status)
	require.Len(t, s.Shipments, 1)
	assert.Equal(t, "DHL Express", s.Shipments[0].Carrier)
	assert.Equal(t, 1, live.calls)

	require.NoError(t, p.Apply(ctx, model.ProviderDelayEvent{ExternalID: "pf-1"}))
	_, err = p.OrderStatus(ctx, "pf-1")
	require.NoError(t, err)
	assert.Equal(t, 2, live.calls, "delay alert evicts the cached status")
}

func TestMemoryCacheExpires(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, &model.FulfillmentStatus{ExternalID: "pf-1", Status: "pending"}))
	_, ok, _ := c.Get(ctx, "pf-1")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.Get(ctx, "pf-1")
	assert.False(t, ok)
}
