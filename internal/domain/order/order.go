// Package order holds the local view of marketplace orders and their
// fulfillment metadata.
package order

import (
	"github.com/shopspring/decimal"
)

// Status represents the coarse fulfillment state of an order.
type Status string

const (
	// StatusUnprocessed marks an order awaiting shipment.
	StatusUnprocessed Status = "UNPROCESSED"
	// StatusProcessed marks an order that has been shipped.
	StatusProcessed Status = "PROCESSED"
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusUnprocessed, StatusProcessed:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// Item represents a line item within an order.
type Item struct {
	ProductID int64           `json:"product_id"`
	ModelID   int64           `json:"model_id"`
	Name      string          `json:"name"`
	ModelName string          `json:"model_name"`
	ImageURL  string          `json:"image_url"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	// Location is parsed from ModelName; nil when the name carries no tag.
	Location *Location `json:"location,omitempty"`
}

// Order represents one marketplace order mirrored into the local store.
type Order struct {
	ID              string          `json:"id"`
	Status          Status          `json:"status"`
	UpdatedAt       int64           `json:"updated_at"`
	Items           []Item          `json:"items"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingCarrier string          `json:"shipping_carrier"`

	// Local fulfillment metadata, never sourced from the remote merge.
	Note          string `json:"note"`
	Printed       bool   `json:"printed"`
	Picker        string `json:"picker"`
	PickingStatus string `json:"picking_status"`
}

// Clone returns a deep copy of the order, safe to serialize without
// holding the store lock.
func (o *Order) Clone() Order {
	cp := *o
	cp.Items = make([]Item, len(o.Items))
	copy(cp.Items, o.Items)
	for i := range cp.Items {
		if o.Items[i].Location != nil {
			loc := *o.Items[i].Location
			cp.Items[i].Location = &loc
		}
	}
	return cp
}
