// Package marketplace implements the signed client, credential lifecycle
// and typed payloads for the remote marketplace Open API.
package marketplace

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

// API paths on the marketplace Open API.
const (
	PathAuthPartner    = "/api/v2/shop/auth_partner"
	PathTokenGet       = "/api/v2/auth/token/get"
	PathTokenRefresh   = "/api/v2/auth/access_token/get"
	PathShopInfo       = "/api/v2/shop/get_shop_info"
	PathOrderList      = "/api/v2/order/get_order_list"
	PathOrderDetail    = "/api/v2/order/get_order_detail"
	PathShippingParam  = "/api/v2/logistics/get_shipping_parameter"
	PathShipOrder      = "/api/v2/logistics/ship_order"
	PathCreateDocument = "/api/v2/logistics/create_shipping_document"
	PathDocumentResult = "/api/v2/logistics/get_shipping_document_result"
	PathDownloadDoc    = "/api/v2/logistics/download_shipping_document"
)

// Errors for marketplace configuration
var (
	ErrConfigMissingPartnerID   = errors.New("marketplace: partner id is required")
	ErrConfigMissingPartnerKey  = errors.New("marketplace: partner key is required")
	ErrConfigMissingBaseURL     = errors.New("marketplace: base URL is required")
	ErrConfigMissingCallbackURL = errors.New("marketplace: callback URL is required")
)

// Config holds the static partner credentials for the marketplace Open
// API. These are loaded at startup and never change at runtime; the
// dynamic session lives in CredentialStore.
type Config struct {
	// PartnerID is the partner account id assigned by the open platform
	PartnerID int64
	// PartnerKey is the shared secret used for request signing
	PartnerKey string
	// BaseURL is the base URL for the marketplace API
	BaseURL string
	// CallbackURL is the redirect registered for the consent flow
	CallbackURL string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

// Validate validates the marketplace configuration
func (c *Config) Validate() error {
	if c.PartnerID == 0 {
		return ErrConfigMissingPartnerID
	}
	if c.PartnerKey == "" {
		return ErrConfigMissingPartnerKey
	}
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if c.CallbackURL == "" {
		return ErrConfigMissingCallbackURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// Sign generates the signature for a marketplace API request.
// The platform uses HMAC-SHA256 over partnerID + path + timestamp, with
// accessToken + shopID appended for session-bound calls. Pure auth calls
// (consent URL, token exchange, refresh) pass empty session values.
// The result is lowercase hex.
func (c *Config) Sign(path string, timestamp int64, accessToken string, shopID int64) string {
	var builder strings.Builder
	builder.WriteString(strconv.FormatInt(c.PartnerID, 10))
	builder.WriteString(path)
	builder.WriteString(strconv.FormatInt(timestamp, 10))
	if accessToken != "" && shopID > 0 {
		builder.WriteString(accessToken)
		builder.WriteString(strconv.FormatInt(shopID, 10))
	}

	h := hmac.New(sha256.New, []byte(c.PartnerKey))
	h.Write([]byte(builder.String()))
	return hex.EncodeToString(h.Sum(nil))
}
