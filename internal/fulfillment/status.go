// Package fulfillment is the boundary to the live fulfillment-status
// collaborator and the cache in front of it.
package fulfillment

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/capitalize-ai/support-console/internal/apiclient"
	"github.com/capitalize-ai/support-console/internal/model"
)

// ErrNoStatus is returned when the provider has nothing for an order.
var ErrNoStatus = errors.New("no fulfillment status")

// Provider returns the live status of an order at the fulfillment provider.
type Provider interface {
	OrderStatus(ctx context.Context, externalID string) (*model.FulfillmentStatus, error)
}

// Client is the HTTP implementation of Provider.
type Client struct {
	api *apiclient.Client
}

// NewClient creates a fulfillment status client.
func NewClient(api *apiclient.Client) *Client {
	return &Client{api: api}
}

// OrderStatus handles GET /api/fulfillment/orders/{externalId}.
func (c *Client) OrderStatus(ctx context.Context, externalID string) (*model.FulfillmentStatus, error) {
	status, err := apiclient.Do[*model.FulfillmentStatus](ctx, c.api, http.MethodGet,
		"/api/fulfillment/orders/"+url.PathEscape(externalID), nil, nil)
	if err != nil {
		return nil, err
	}
	if status == nil || status.Status == "" {
		return nil, ErrNoStatus
	}
	if status.ExternalID == "" {
		status.ExternalID = externalID
	}
	return status, nil
}

// IsDelayed reports whether the maximum delivery estimate has passed without
// the order being fulfilled.
func IsDelayed(maxEstimate *time.Time, status string, now time.Time) bool {
	if maxEstimate == nil || maxEstimate.IsZero() {
		return false
	}
	return now.After(*maxEstimate) && !strings.EqualFold(status, model.FulfillmentFulfilled)
}

// DaysLate returns how many whole days the estimate has been exceeded.
func DaysLate(maxEstimate *time.Time, now time.Time) int {
	if maxEstimate == nil || !now.After(*maxEstimate) {
		return 0
	}
	return int(now.Sub(*maxEstimate).Hours() / 24)
}

var statusText = map[string]string{
	model.FulfillmentDraft:     "pendiente de confirmación",
	model.FulfillmentPending:   "pendiente de producción",
	model.FulfillmentFailed:    "con una incidencia en producción",
	model.FulfillmentCanceled:  "cancelado",
	model.FulfillmentInProcess: "en producción",
	model.FulfillmentOnHold:    "en espera",
	model.FulfillmentPartial:   "enviado parcialmente",
	model.FulfillmentFulfilled: "enviado",
	"shipped":                  "enviado",
	"delivered":                "entregado",
	"processing":               "en preparación",
	"paid":                     "pagado, en preparación",
}

// TranslateStatus returns the customer-facing wording for a provider or
// order status.
func TranslateStatus(status string) string {
	if text, ok := statusText[strings.ToLower(strings.TrimSpace(status))]; ok {
		return text
	}
	if status == "" {
		return "en proceso"
	}
	return status
}

// TrackingOf returns the most recent shipment with a tracking number.
func TrackingOf(status *model.FulfillmentStatus) (model.Shipment, bool) {
	if status == nil {
		return model.Shipment{}, false
	}
	for i := len(status.Shipments) - 1; i >= 0; i-- {
		if status.Shipments[i].TrackingNumber != "" {
			return status.Shipments[i], true
		}
	}
	return model.Shipment{}, false
}
