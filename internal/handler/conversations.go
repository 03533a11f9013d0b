// Package handler provides HTTP handlers for the console API.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/support-console/internal/middleware"
	"github.com/capitalize-ai/support-console/internal/model"
	"github.com/capitalize-ai/support-console/internal/service"
	"github.com/capitalize-ai/support-console/internal/store"
	"github.com/capitalize-ai/support-console/pkg/logger"
)

// Console is the agent session driven by the API.
type Console interface {
	Store() *store.Store
	LoadConversations(ctx context.Context, filter model.StatusFilter) ([]model.Conversation, error)
	Select(ctx context.Context, id string) error
	Deselect()
	Send(ctx context.Context, id, content string) (model.Message, error)
	Resend(ctx context.Context, id, messageID string) (model.Message, error)
	Take(ctx context.Context, id string) error
	CloseConversation(ctx context.Context, id string) error
}

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	console Console
	board   *service.Board
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler. board may be nil.
func NewConversationHandler(console Console, board *service.Board, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		console: console,
		board:   board,
		logger:  log,
	}
}

type listResponse struct {
	Conversations []model.Conversation `json:"conversations"`
	Total         int                  `json:"total"`
}

// List handles GET /api/v1/conversations. It serves the local snapshot.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list := h.console.Store().List(filter)
	writeJSON(w, http.StatusOK, listResponse{Conversations: list, Total: len(list)})
}

// Refresh handles POST /api/v1/conversations/refresh
func (h *ConversationHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := h.console.LoadConversations(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "failed to refresh conversations", err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Conversations: list, Total: len(list)})
}

// Get handles GET /api/v1/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	conv, found := h.console.Store().Get(id)
	if !found {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Select handles POST /api/v1/conversations/{id}/select
func (h *ConversationHandler) Select(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.console.Select(r.Context(), id); err != nil {
		h.fail(w, r, "failed to select conversation", err)
		return
	}
	writeJSON(w, http.StatusOK, h.console.Store().Active())
}

// Active handles GET /api/v1/active
func (h *ConversationHandler) Active(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.console.Store().Active())
}

// Deselect handles DELETE /api/v1/active
func (h *ConversationHandler) Deselect(w http.ResponseWriter, r *http.Request) {
	h.console.Deselect()
	w.WriteHeader(http.StatusNoContent)
}

// Take handles POST /api/v1/conversations/{id}/take. Over the live channel
// the assignment lands when the server confirms it, hence 202.
func (h *ConversationHandler) Take(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.console.Take(r.Context(), id); err != nil {
		h.fail(w, r, "failed to take conversation", err)
		return
	}
	conv, _ := h.console.Store().Get(id)
	writeJSON(w, http.StatusAccepted, conv)
}

// Close handles POST /api/v1/conversations/{id}/close
func (h *ConversationHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.console.CloseConversation(r.Context(), id); err != nil {
		h.fail(w, r, "failed to close conversation", err)
		return
	}
	if h.board != nil {
		h.board.Clear(id)
	}
	conv, _ := h.console.Store().Get(id)
	writeJSON(w, http.StatusOK, conv)
}

func (h *ConversationHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg,
			zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, status, err.Error())
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	id := chi.URLParam(r, param)
	if err := middleware.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}
