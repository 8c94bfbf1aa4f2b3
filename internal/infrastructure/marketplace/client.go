package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxResponseSize limits response bodies to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Errors surfaced by the client layer
var (
	ErrNotAuthorized = errors.New("marketplace: no access token, authorize first")
	ErrRequestFailed = errors.New("marketplace: request failed")
	ErrEmptyDocument = errors.New("marketplace: empty document download")
)

// ResultKind classifies a marketplace call outcome. The classification
// happens once, here, so call sites never re-inspect raw payloads for
// auth errors.
type ResultKind int

const (
	// ResultOK means the body carries the expected success wrapper.
	ResultOK ResultKind = iota
	// ResultAuthExpired means the platform rejected the session token.
	ResultAuthExpired
	// ResultFailed means transport failure or a non-auth platform error.
	ResultFailed
)

// Result is the typed outcome of one signed call.
type Result struct {
	Kind ResultKind
	Body []byte
	Err  error
}

// OK reports whether the call produced a parseable success payload.
func (r Result) OK() bool { return r.Kind == ResultOK }

// AuthExpired reports whether the call failed because the session token
// was rejected.
func (r Result) AuthExpired() bool { return r.Kind == ResultAuthExpired }

// Error returns the underlying failure, or a generic one for platform
// errors without a transport cause.
func (r Result) Error() error {
	if r.Err != nil {
		return r.Err
	}
	if r.Kind != ResultOK {
		return ErrRequestFailed
	}
	return nil
}

// authErrorCodes are the error values the platform has been observed to
// return for an expired or invalid access token. Matching is by
// substring because the platform is not consistent about the exact code.
var authErrorCodes = []string{
	"error_auth",
	"error_token",
	"invalid_access_token",
	"invalid_acceess_token", // historical misspelling seen in the wild
}

// Client issues signed GET/POST calls to the marketplace API. It attaches
// partner_id, timestamp and sign to every call, plus access_token and
// shop_id for session-bound calls, and classifies each response once into
// a typed Result.
type Client struct {
	config      *Config
	credentials *CredentialStore
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient creates a marketplace client bound to a credential store.
func NewClient(config *Config, credentials *CredentialStore, logger *zap.Logger) *Client {
	return &Client{
		config:      config,
		credentials: credentials,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}
}

// sessionQuery builds the common signed query string for a session call.
func (c *Client) sessionQuery(path string) (url.Values, error) {
	token, shopID := c.credentials.Session()
	if token == "" {
		return nil, ErrNotAuthorized
	}

	ts := time.Now().Unix()
	q := url.Values{}
	q.Set("partner_id", strconv.FormatInt(c.config.PartnerID, 10))
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	q.Set("access_token", token)
	q.Set("shop_id", strconv.FormatInt(shopID, 10))
	q.Set("sign", c.config.Sign(path, ts, token, shopID))
	return q, nil
}

// Get issues a signed GET call with additional query parameters.
func (c *Client) Get(ctx context.Context, path string, params map[string]string) Result {
	q, err := c.sessionQuery(path)
	if err != nil {
		return Result{Kind: ResultFailed, Err: err}
	}
	for k, v := range params {
		q.Set(k, v)
	}

	requestURL := c.config.BaseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return Result{Kind: ResultFailed, Err: fmt.Errorf("marketplace: build request: %w", err)}
	}
	return c.do(req, path)
}

// Post issues a signed POST call with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) Result {
	q, err := c.sessionQuery(path)
	if err != nil {
		return Result{Kind: ResultFailed, Err: err}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Result{Kind: ResultFailed, Err: fmt.Errorf("marketplace: marshal body: %w", err)}
	}

	requestURL := c.config.BaseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(payload))
	if err != nil {
		return Result{Kind: ResultFailed, Err: fmt.Errorf("marketplace: build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path)
}

// Download issues a signed POST call and returns the raw response bytes,
// for binary artifacts such as shipping documents.
func (c *Client) Download(ctx context.Context, path string, body any) ([]byte, error) {
	q, err := c.sessionQuery(path)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marketplace: marshal body: %w", err)
	}

	requestURL := c.config.BaseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("marketplace: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("marketplace: read download: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrRequestFailed, resp.StatusCode)
	}
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	return data, nil
}

// do executes the request and classifies the response.
func (c *Client) do(req *http.Request, path string) Result {
	c.logger.Debug("Marketplace API call",
		zap.String("method", req.Method),
		zap.String("path", path),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Marketplace request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return Result{Kind: ResultFailed, Err: fmt.Errorf("%w: %v", ErrRequestFailed, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Result{Kind: ResultFailed, Err: fmt.Errorf("marketplace: read response: %w", err)}
	}

	return c.classify(path, resp.StatusCode, body)
}

// classify turns a raw response into a typed Result. The contract with
// the platform: a body with a non-empty auth error code, or a 2xx body
// missing the top-level response wrapper, signals an expired session;
// any other non-empty error is a plain failure.
func (c *Client) classify(path string, statusCode int, body []byte) Result {
	var envelope struct {
		Error    string          `json:"error"`
		Message  string          `json:"message"`
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.logger.Warn("Malformed marketplace response",
			zap.String("path", path),
			zap.Int("status", statusCode),
			zap.Error(err),
		)
		return Result{Kind: ResultFailed, Body: body, Err: fmt.Errorf("marketplace: malformed response: %w", err)}
	}

	if envelope.Error != "" {
		if isAuthErrorCode(envelope.Error) || statusCode == http.StatusForbidden {
			c.logger.Warn("Marketplace session token rejected",
				zap.String("path", path),
				zap.String("error", envelope.Error),
			)
			return Result{Kind: ResultAuthExpired, Body: body}
		}
		c.logger.Warn("Marketplace API error",
			zap.String("path", path),
			zap.String("error", envelope.Error),
			zap.String("message", envelope.Message),
		)
		return Result{Kind: ResultFailed, Body: body}
	}

	if envelope.Response == nil {
		// No error code and no success wrapper: the platform rejected the
		// session without saying so explicitly.
		return Result{Kind: ResultAuthExpired, Body: body}
	}

	return Result{Kind: ResultOK, Body: body}
}

func isAuthErrorCode(code string) bool {
	lower := strings.ToLower(code)
	for _, known := range authErrorCodes {
		if strings.Contains(lower, known) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Typed endpoint wrappers
// ---------------------------------------------------------------------------

// ListOrders fetches one page of order ids for a status bucket within a
// time range. cursor starts empty and advances per the returned payload.
func (c *Client) ListOrders(ctx context.Context, status string, timeFrom, timeTo int64, pageSize int, cursor string) Result {
	return c.Get(ctx, PathOrderList, map[string]string{
		"time_range_field":             "update_time",
		"time_from":                    strconv.FormatInt(timeFrom, 10),
		"time_to":                      strconv.FormatInt(timeTo, 10),
		"page_size":                    strconv.Itoa(pageSize),
		"order_status":                 status,
		"request_order_status_pending": "true",
		"cursor":                       cursor,
	})
}

// GetOrderDetail fetches full payloads for up to 50 orders.
func (c *Client) GetOrderDetail(ctx context.Context, orderSNs []string) Result {
	return c.Get(ctx, PathOrderDetail, map[string]string{
		"order_sn_list":                strings.Join(orderSNs, ","),
		"request_order_status_pending": "true",
		"response_optional_fields":     "item_list,total_amount,shipping_carrier",
	})
}

// GetShippingParameter fetches the available collection methods for an order.
func (c *Client) GetShippingParameter(ctx context.Context, orderSN string) Result {
	return c.Get(ctx, PathShippingParam, map[string]string{"order_sn": orderSN})
}

// ShipOrder submits the ship command.
func (c *Client) ShipOrder(ctx context.Context, req *ShipOrderRequest) Result {
	return c.Post(ctx, PathShipOrder, req)
}

// CreateShippingDocument requests generation of a thermal waybill.
func (c *Client) CreateShippingDocument(ctx context.Context, orderSN string) Result {
	return c.Post(ctx, PathCreateDocument, map[string]any{
		"order_list":             documentOrderList([]string{orderSN}),
		"shipping_document_type": DocumentTypeThermal,
	})
}

// GetShippingDocumentResult fetches generation statuses for up to 50 orders.
func (c *Client) GetShippingDocumentResult(ctx context.Context, orderSNs []string) Result {
	return c.Post(ctx, PathDocumentResult, map[string]any{
		"order_list":             documentOrderList(orderSNs),
		"shipping_document_type": DocumentTypeThermal,
	})
}

// DownloadShippingDocument downloads the generated waybill bytes.
func (c *Client) DownloadShippingDocument(ctx context.Context, orderSN string) ([]byte, error) {
	return c.Download(ctx, PathDownloadDoc, map[string]any{
		"order_list":             documentOrderList([]string{orderSN}),
		"shipping_document_type": DocumentTypeThermal,
	})
}

// GetShopInfo probes the credential with a cheap session call.
func (c *Client) GetShopInfo(ctx context.Context) Result {
	return c.Get(ctx, PathShopInfo, nil)
}
