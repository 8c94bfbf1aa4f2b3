package dto

import "github.com/erp/fulfillment/internal/domain/order"

// SnapshotResponse is the dashboard's full view of the order book.
type SnapshotResponse struct {
	Orders     []order.Order `json:"orders"`
	Authorized bool          `json:"authorized"`
	AuthURL    string        `json:"auth_url,omitempty"`
}

// PrintRequest selects the orders whose labels should be printed.
type PrintRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,dive,order_sn"`
}

// NoteRequest updates the free-form note of one order.
type NoteRequest struct {
	Note string `json:"note"`
}

// BatchUpdateRequest assigns a picker or a picking status to a set of
// orders in one call.
type BatchUpdateRequest struct {
	IDs   []string `json:"ids" binding:"required,min=1,dive,required"`
	Field string   `json:"field" binding:"required,oneof=picker status"`
	Value string   `json:"value"`
}

// BatchUpdateResponse reports how many orders the update reached.
type BatchUpdateResponse struct {
	Updated int `json:"updated"`
}

// AuthCallbackRequest carries the redirect URL pasted back after the
// interactive consent flow.
type AuthCallbackRequest struct {
	URL string `json:"url" binding:"required,url"`
}

// LogsResponse carries recent log lines, oldest first.
type LogsResponse struct {
	Lines []string `json:"lines"`
}
