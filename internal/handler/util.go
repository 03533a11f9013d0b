package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/capitalize-ai/support-console/internal/apiclient"
	"github.com/capitalize-ai/support-console/internal/model"
	"github.com/capitalize-ai/support-console/internal/reconcile"
	"github.com/capitalize-ai/support-console/internal/transport"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor maps engine and collaborator errors to HTTP statuses.
func statusFor(err error) int {
	var statusErr *apiclient.StatusError
	switch {
	case errors.Is(err, reconcile.ErrConversationNotFound), errors.Is(err, reconcile.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, reconcile.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, reconcile.ErrNotResendable):
		return http.StatusConflict
	case errors.Is(err, transport.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound:
		return http.StatusNotFound
	case errors.Is(err, apiclient.ErrNotSuccessful), errors.As(err, &statusErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func parseFilter(raw string) (model.StatusFilter, error) {
	switch f := model.StatusFilter(raw); f {
	case model.FilterAll, model.FilterOpen, model.FilterClosed, model.FilterPending:
		return f, nil
	case "all":
		return model.FilterAll, nil
	default:
		return "", errors.New("invalid status filter")
	}
}
