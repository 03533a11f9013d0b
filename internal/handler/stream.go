package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/support-console/internal/model"
	"github.com/capitalize-ai/support-console/internal/service"
	"github.com/capitalize-ai/support-console/internal/store"
	"github.com/capitalize-ai/support-console/pkg/logger"
	"github.com/capitalize-ai/support-console/pkg/metrics"
)

// DefaultHeartbeat is the SSE keep-alive interval.
const DefaultHeartbeat = 30 * time.Second

// SSE event names.
const (
	eventConversations      = "conversations"
	eventActiveConversation = "active_conversation"
	eventActiveMessages     = "active_messages"
	eventProviderAlert      = "provider_alert"
	eventSuggestions        = "suggestions"
	eventHeartbeat          = "heartbeat"
)

// StreamHandler pushes store and suggestion updates over server-sent events.
type StreamHandler struct {
	store     *store.Store
	board     *service.Board
	heartbeat time.Duration
	logger    *logger.Logger
}

// NewStreamHandler creates a new stream handler. board may be nil.
func NewStreamHandler(st *store.Store, board *service.Board, heartbeat time.Duration, log *logger.Logger) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &StreamHandler{store: st, board: board, heartbeat: heartbeat, logger: log}
}

type alertPayload struct {
	Type model.EventType `json:"type"`
	Data model.Event     `json:"data"`
}

type heartbeatPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

// Stream handles GET /api/v1/stream. Every topic sends its current value
// first, then each update.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	convs, cancelConvs := h.store.Conversations().Subscribe()
	defer cancelConvs()
	selected, cancelSelected := h.store.ActiveConversation().Subscribe()
	defer cancelSelected()
	messages, cancelMessages := h.store.ActiveMessages().Subscribe()
	defer cancelMessages()
	alerts, cancelAlerts := h.store.ProviderAlerts().Subscribe()
	defer cancelAlerts()

	var suggestions <-chan model.SuggestionSet
	if h.board != nil {
		var cancelSuggestions func()
		suggestions, cancelSuggestions = h.board.Updates().Subscribe()
		defer cancelSuggestions()
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			h.logger.Debug("SSE client disconnected")
			return
		case list, ok := <-convs:
			if !ok {
				return
			}
			err = sendSSEEvent(w, flusher, eventConversations, list)
		case conv, ok := <-selected:
			if !ok {
				return
			}
			err = sendSSEEvent(w, flusher, eventActiveConversation, conv)
		case msgs, ok := <-messages:
			if !ok {
				return
			}
			err = sendSSEEvent(w, flusher, eventActiveMessages, msgs)
		case ev, ok := <-alerts:
			if !ok {
				return
			}
			if ev != nil {
				err = sendSSEEvent(w, flusher, eventProviderAlert, alertPayload{Type: ev.EventType(), Data: ev})
			}
		case set, ok := <-suggestions:
			if !ok {
				suggestions = nil
				continue
			}
			if set.ConversationID != "" {
				err = sendSSEEvent(w, flusher, eventSuggestions, set)
			}
		case <-heartbeat.C:
			err = sendSSEEvent(w, flusher, eventHeartbeat, heartbeatPayload{Timestamp: time.Now()})
		}
		if err != nil {
			h.logger.Debug("SSE write failed", zap.Error(err))
			return
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
