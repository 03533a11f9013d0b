// Package customer is the boundary to the customer-context collaborator,
// which aggregates a customer's orders, returns and activity.
package customer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/capitalize-ai/support-console/internal/apiclient"
	"github.com/capitalize-ai/support-console/internal/model"
)

// ErrUnknownCustomer is returned for an empty participant reference.
var ErrUnknownCustomer = errors.New("unknown customer")

// Source returns the aggregated context of a customer.
type Source interface {
	Context(ctx context.Context, ref model.CustomerRef) (*model.CustomerContext, error)
}

// Client is the HTTP implementation of Source.
type Client struct {
	api *apiclient.Client
}

// NewClient creates a customer context client.
func NewClient(api *apiclient.Client) *Client {
	return &Client{api: api}
}

// Context handles GET /api/customers/{type}/{id}/context.
func (c *Client) Context(ctx context.Context, ref model.CustomerRef) (*model.CustomerContext, error) {
	if ref.ID == "" {
		return nil, ErrUnknownCustomer
	}
	typ := ref.Type
	if typ == "" {
		typ = model.CustomerGuest
	}

	path := fmt.Sprintf("/api/customers/%s/%s/context", url.PathEscape(string(typ)), url.PathEscape(ref.ID))
	cc, err := apiclient.Do[*model.CustomerContext](ctx, c.api, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer context: %w", err)
	}
	if cc == nil {
		cc = &model.CustomerContext{}
	}
	cc.Customer = model.CustomerRef{ID: ref.ID, Type: typ}
	return cc, nil
}
