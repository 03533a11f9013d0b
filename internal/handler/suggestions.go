package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/capitalize-ai/support-console/internal/model"
	"github.com/capitalize-ai/support-console/internal/service"
)

// Assistant produces reply suggestions.
type Assistant interface {
	Classify(text string) model.Intent
	Board() *service.Board
}

// SuggestionHandler handles suggestion endpoints.
type SuggestionHandler struct {
	assistant Assistant
}

// NewSuggestionHandler creates a new suggestion handler.
func NewSuggestionHandler(assistant Assistant) *SuggestionHandler {
	return &SuggestionHandler{assistant: assistant}
}

// Get handles GET /api/v1/conversations/{id}/suggestions
func (h *SuggestionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	set, found := h.assistant.Board().Get(id)
	if !found {
		set = model.SuggestionSet{ConversationID: id, Suggestions: []model.Suggestion{}}
	}
	writeJSON(w, http.StatusOK, set)
}

type classifyRequest struct {
	Text string `json:"text"`
}

// Classify handles POST /api/v1/classify
func (h *SuggestionHandler) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text cannot be empty")
		return
	}
	writeJSON(w, http.StatusOK, h.assistant.Classify(req.Text))
}
