package model

import (
	"time"
)

// CustomerType distinguishes authenticated users from guests.
type CustomerType string

const (
	CustomerUser  CustomerType = "user"
	CustomerGuest CustomerType = "guest"
)

// CustomerRef identifies a conversation participant.
type CustomerRef struct {
	ID   string       `json:"id"`
	Type CustomerType `json:"type"`
}

// Fulfillment statuses reported by the provider.
const (
	FulfillmentDraft     = "draft"
	FulfillmentPending   = "pending"
	FulfillmentFailed    = "failed"
	FulfillmentCanceled  = "canceled"
	FulfillmentInProcess = "inprocess"
	FulfillmentOnHold    = "onhold"
	FulfillmentPartial   = "partial"
	FulfillmentFulfilled = "fulfilled"
)

// Order is an order summary as aggregated by the customer context service.
type Order struct {
	ID                   int64      `json:"id"`
	ExternalID           string     `json:"externalId,omitempty"`
	Status               string     `json:"status"`
	FulfillmentStatus    string     `json:"fulfillmentStatus,omitempty"`
	TrackingNumber       string     `json:"trackingNumber,omitempty"`
	TrackingURL          string     `json:"trackingUrl,omitempty"`
	Carrier              string     `json:"carrier,omitempty"`
	EstimatedDeliveryMin *time.Time `json:"estimatedDeliveryMin,omitempty"`
	EstimatedDeliveryMax *time.Time `json:"estimatedDeliveryMax,omitempty"`
	Total                float64    `json:"total"`
	CreatedAt            time.Time  `json:"createdAt"`
}

// Return is a return request known for the customer.
type Return struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"orderId"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// CustomerStats summarize spend and activity.
type CustomerStats struct {
	TotalSpent  float64    `json:"totalSpent"`
	OrderCount  int        `json:"orderCount"`
	LastOrderAt *time.Time `json:"lastOrderAt,omitempty"`
}

// CustomerContext is the aggregated view returned by the context collaborator.
type CustomerContext struct {
	Customer        CustomerRef   `json:"customer"`
	Name            string        `json:"name,omitempty"`
	Email           string        `json:"email,omitempty"`
	ActiveOrders    []Order       `json:"activeOrders"`
	CompletedOrders []Order       `json:"completedOrders"`
	Returns         []Return      `json:"returns"`
	Stats           CustomerStats `json:"stats"`
}

// FindOrder looks up an order by id among active and completed orders.
func (c *CustomerContext) FindOrder(id int64) (Order, bool) {
	for _, o := range c.ActiveOrders {
		if o.ID == id {
			return o, true
		}
	}
	for _, o := range c.CompletedOrders {
		if o.ID == id {
			return o, true
		}
	}
	return Order{}, false
}

// LatestActiveOrder returns the most recently created active order.
func (c *CustomerContext) LatestActiveOrder() (Order, bool) {
	var latest Order
	found := false
	for _, o := range c.ActiveOrders {
		if !found || o.CreatedAt.After(latest.CreatedAt) {
			latest = o
			found = true
		}
	}
	return latest, found
}

// Shipment is one package sent by the fulfillment provider.
type Shipment struct {
	Carrier        string     `json:"carrier"`
	Service        string     `json:"service,omitempty"`
	TrackingNumber string     `json:"trackingNumber"`
	TrackingURL    string     `json:"trackingUrl,omitempty"`
	ShippedAt      *time.Time `json:"shippedAt,omitempty"`
}

// FulfillmentStatus is the live status of an order at the provider.
type FulfillmentStatus struct {
	ExternalID           string     `json:"externalId"`
	Status               string     `json:"status"`
	EstimatedDeliveryMin *time.Time `json:"estimatedDeliveryMin,omitempty"`
	EstimatedDeliveryMax *time.Time `json:"estimatedDeliveryMax,omitempty"`
	Shipments            []Shipment `json:"shipments"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}
