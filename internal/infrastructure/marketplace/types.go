package marketplace

import (
	"github.com/shopspring/decimal"
)

// Remote order-status filters used by the order list endpoint.
const (
	OrderStatusReadyToShip = "READY_TO_SHIP"
	OrderStatusProcessed   = "PROCESSED"
)

// Shipping-document generation statuses.
const (
	DocumentStatusProcessing = "PROCESSING"
	DocumentStatusReady      = "READY"
	DocumentStatusFailed     = "FAILED"
)

// DocumentTypeThermal is the shipping document type requested for label
// printing on thermal printers.
const DocumentTypeThermal = "THERMAL_AIR_WAYBILL"

// Envelope is the common wrapper of every marketplace API response.
type Envelope struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

// IsSuccess returns true when the response carries no error code.
func (e Envelope) IsSuccess() bool {
	return e.Error == ""
}

// TokenResponse is returned by the code-exchange and refresh endpoints.
// Tokens live at the top level, outside the usual response wrapper.
type TokenResponse struct {
	Envelope
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ShopID       int64  `json:"shop_id"`
	ExpireIn     int64  `json:"expire_in"`
}

// OrderListResponse is returned by the order list endpoint.
type OrderListResponse struct {
	Envelope
	Response *OrderListData `json:"response"`
}

// OrderListData carries one page of order ids plus pagination state.
type OrderListData struct {
	OrderList  []OrderListEntry `json:"order_list"`
	More       bool             `json:"more"`
	NextCursor string           `json:"next_cursor"`
}

// OrderListEntry identifies one order in a list page.
type OrderListEntry struct {
	OrderSN     string `json:"order_sn"`
	OrderStatus string `json:"order_status"`
}

// OrderDetailResponse is returned by the batch order detail endpoint.
type OrderDetailResponse struct {
	Envelope
	Response *OrderDetailData `json:"response"`
}

// OrderDetailData carries the full payload of up to 50 orders.
type OrderDetailData struct {
	OrderList []OrderDetail `json:"order_list"`
}

// OrderDetail is the remote representation of one order.
type OrderDetail struct {
	OrderSN         string            `json:"order_sn"`
	OrderStatus     string            `json:"order_status"`
	CreateTime      int64             `json:"create_time"`
	UpdateTime      int64             `json:"update_time"`
	TotalAmount     decimal.Decimal   `json:"total_amount"`
	ShippingCarrier string            `json:"shipping_carrier"`
	ItemList        []OrderDetailItem `json:"item_list"`
}

// OrderDetailItem is one purchased model within an order detail payload.
type OrderDetailItem struct {
	ItemID                 int64           `json:"item_id"`
	ItemName               string          `json:"item_name"`
	ModelID                int64           `json:"model_id"`
	ModelName              string          `json:"model_name"`
	ModelQuantityPurchased int             `json:"model_quantity_purchased"`
	ModelDiscountedPrice   decimal.Decimal `json:"model_discounted_price"`
	ImageInfo              ItemImageInfo   `json:"image_info"`
}

// ItemImageInfo carries the product image of a line item.
type ItemImageInfo struct {
	ImageURL string `json:"image_url"`
}

// ShippingParameterResponse is returned by the shipping parameter endpoint.
type ShippingParameterResponse struct {
	Envelope
	Response *ShippingParameter `json:"response"`
}

// ShippingParameter describes the collection methods available for an
// order: a pickup address list, a dropoff indicator, or both.
type ShippingParameter struct {
	Pickup  *PickupInfo    `json:"pickup,omitempty"`
	Dropoff map[string]any `json:"dropoff,omitempty"`
}

// PickupInfo lists the seller addresses available for carrier pickup.
type PickupInfo struct {
	AddressList []PickupAddress `json:"address_list"`
}

// PickupAddress is one pickup location with its available time slots.
type PickupAddress struct {
	AddressID    int64      `json:"address_id"`
	Address      string     `json:"address"`
	TimeSlotList []TimeSlot `json:"time_slot_list"`
}

// TimeSlot is one selectable pickup window.
type TimeSlot struct {
	PickupTimeID string `json:"pickup_time_id"`
	Date         int64  `json:"date"`
}

// ShipOrderRequest is the payload of the ship command. Exactly one of
// Pickup or Dropoff is set.
type ShipOrderRequest struct {
	OrderSN string         `json:"order_sn"`
	Pickup  *PickupChoice  `json:"pickup,omitempty"`
	Dropoff map[string]any `json:"dropoff,omitempty"`
}

// PickupChoice selects the pickup address and time slot for a ship command.
type PickupChoice struct {
	AddressID    int64  `json:"address_id"`
	PickupTimeID string `json:"pickup_time_id,omitempty"`
}

// ShipOrderResponse is returned by the ship command.
type ShipOrderResponse struct {
	Envelope
}

// CreateDocumentResponse is returned by the create-shipping-document call.
type CreateDocumentResponse struct {
	Envelope
}

// DocumentResultResponse is returned by the batch document-result endpoint.
type DocumentResultResponse struct {
	Envelope
	Response *DocumentResultData `json:"response"`
}

// DocumentResultData carries the per-order document generation statuses.
type DocumentResultData struct {
	ResultList []DocumentResult `json:"result_list"`
}

// DocumentResult is the generation status of one order's shipping document.
type DocumentResult struct {
	OrderSN string `json:"order_sn"`
	Status  string `json:"status"`
}

// documentOrderList builds the order_list fragment shared by the
// create/result/download document payloads.
func documentOrderList(orderSNs []string) []map[string]string {
	list := make([]map[string]string, 0, len(orderSNs))
	for _, sn := range orderSNs {
		list = append(list, map[string]string{"order_sn": sn})
	}
	return list
}
