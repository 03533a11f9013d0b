package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/support-console/internal/apiclient"
	"github.com/capitalize-ai/support-console/internal/capability"
	"github.com/capitalize-ai/support-console/internal/model"
	"github.com/capitalize-ai/support-console/pkg/logger"
)

const listBody = `{"success":true,"data":[
	{"id":"c1","status":"open","userId":"u-1"},
	{"id":"c2","status":"closed","guestId":"g-2"},
	{"id":"c3","status":"open","agentId":"agent-1","agentName":"Ana"}
]}`

type listServer struct {
	mu            sync.Mutex
	rejectFilter  bool
	statusQueries []string
}

func (s *listServer) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := r.URL.Query().Get("status")
	s.statusQueries = append(s.statusQueries, status)
	w.Header().Set("Content-Type", "application/json")
	if status != "" && s.rejectFilter {
		w.Write([]byte(`{"success":false,"error":"unknown parameter status"}`))
		return
	}
	if status == "open" {
		w.Write([]byte(`{"success":true,"data":[{"id":"c1","status":"open"},{"id":"c3","status":"open","agentId":"agent-1"}]}`))
		return
	}
	w.Write([]byte(listBody))
}

func (s *listServer) queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.statusQueries...)
}

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(apiclient.New(apiclient.Config{Name: "backend", BaseURL: srv.URL}), logger.NewNop())
}

func listIDs(cs []model.Conversation) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestListUnsupportedFilterIsNeverSentAgain(t *testing.T) {
	srv := &listServer{rejectFilter: true}
	c := newClient(t, srv.handler)
	ctx := context.Background()

	got, err := c.ListConversations(ctx, model.FilterOpen)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3"}, listIDs(got))
	assert.Equal(t, capability.Unsupported, c.StatusFilter())
	assert.Equal(t, []string{"open", ""}, srv.queries(), "probe then one corrective unfiltered fetch")

	got, err = c.ListConversations(ctx, model.FilterOpen)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3"}, listIDs(got))

	got, err = c.ListConversations(ctx, model.FilterClosed)
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, listIDs(got))

	assert.Equal(t, []string{"open", "", "", ""}, srv.queries())
}

func TestListSupportedFilterPassesThrough(t *testing.T) {
	srv := &listServer{}
	c := newClient(t, srv.handler)
	ctx := context.Background()

	got, err := c.ListConversations(ctx, model.FilterOpen)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3"}, listIDs(got))
	assert.Equal(t, capability.Supported, c.StatusFilter())

	got, err = c.ListConversations(ctx, model.FilterPending)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, listIDs(got))

	got, err = c.ListConversations(ctx, model.FilterAll)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	assert.Equal(t, []string{"open", "open", ""}, srv.queries())
}

func TestListTransportErrorResolvesUnsupported(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("status") != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(listBody))
	})

	got, err := c.ListConversations(context.Background(), model.FilterPending)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, listIDs(got))
	assert.Equal(t, capability.Unsupported, c.StatusFilter())
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetConversationAndMessages(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/conversations/c1":
			w.Write([]byte(`{"success":true,"data":{"status":"open","messages":[{"id":"m1","senderType":"customer","content":"hola"}]}}`))
		case "/api/conversations/c1/messages":
			w.Write([]byte(`{"success":true,"data":[{"id":"m1","content":"hola"},{"id":"m2","content":"?"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"success":false,"error":"not found"}`))
		}
	})
	ctx := context.Background()

	conv, err := c.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", conv.ID)
	require.Len(t, conv.Messages, 1)

	msgs, err := c.GetMessages(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	_, err = c.GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, apiclient.ErrNotSuccessful)
	var statusErr *apiclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
}

func TestAssignAgent(t *testing.T) {
	var body assignRequest
	var method string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"success":true,"data":{"id":"c1","status":"open","agentId":"agent-1","agentName":"Ana"}}`))
	})

	conv, err := c.AssignAgent(context.Background(), "c1", model.Agent{ID: "agent-1", Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, assignRequest{AgentID: "agent-1", AgentName: "Ana"}, body)
	require.NotNil(t, conv.AgentID)
	assert.Equal(t, "agent-1", *conv.AgentID)
}
