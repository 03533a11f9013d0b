package handler

import (
	"encoding/json"
	"net/http"

	"github.com/capitalize-ai/support-console/internal/middleware"
	"github.com/capitalize-ai/support-console/internal/model"
)

type sendRequest struct {
	Content string `json:"content"`
}

type sendResponse struct {
	Message model.Message `json:"message"`
	Error   string        `json:"error,omitempty"`
}

// Send handles POST /api/v1/conversations/{id}/messages. A failed publish
// still returns the message, marked failed, so it can be resent.
func (h *ConversationHandler) Send(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.console.Send(r.Context(), id, req.Content)
	h.writeSend(w, r, msg, err)
}

// Resend handles POST /api/v1/conversations/{id}/messages/{messageId}/resend
func (h *ConversationHandler) Resend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	messageID, ok := pathID(w, r, "messageId")
	if !ok {
		return
	}

	msg, err := h.console.Resend(r.Context(), id, messageID)
	h.writeSend(w, r, msg, err)
}

func (h *ConversationHandler) writeSend(w http.ResponseWriter, r *http.Request, msg model.Message, err error) {
	if err == nil {
		writeJSON(w, http.StatusAccepted, sendResponse{Message: msg})
		return
	}
	if msg.ID == "" {
		h.fail(w, r, "failed to send message", err)
		return
	}
	writeJSON(w, statusFor(err), sendResponse{Message: msg, Error: err.Error()})
}
