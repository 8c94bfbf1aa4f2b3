package handler

import (
	"context"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/fulfillment/internal/interfaces/http/dto"
)

// CredentialExchanger turns an interactive consent code into a session.
type CredentialExchanger interface {
	ExchangeCode(ctx context.Context, shopID int64, code string) error
}

// AuthHandler completes the marketplace consent flow.
type AuthHandler struct {
	BaseHandler
	exchanger CredentialExchanger
	logger    *zap.Logger
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(exchanger CredentialExchanger, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{exchanger: exchanger, logger: logger}
}

// RegisterRoutes registers auth routes
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/callback", h.Callback)
}

// Callback accepts the redirect URL the operator landed on after consent,
// extracts the shop id and one-time code, and exchanges them for tokens.
func (h *AuthHandler) Callback(c *gin.Context) {
	var req dto.AuthCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	shopID, code, err := parseCallbackURL(req.URL)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	if err := h.exchanger.ExchangeCode(c.Request.Context(), shopID, code); err != nil {
		h.logger.Warn("Code exchange failed",
			zap.Int64("shop_id", shopID),
			zap.Error(err),
		)
		h.Upstream(c, err.Error())
		return
	}

	h.logger.Info("Shop authorized", zap.Int64("shop_id", shopID))
	h.Success(c, gin.H{"shop_id": shopID})
}

// parseCallbackURL pulls shop_id and code out of the consent redirect.
func parseCallbackURL(raw string) (int64, string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return 0, "", err
	}
	q := parsed.Query()

	code := q.Get("code")
	if code == "" {
		return 0, "", errInvalidCallback("code missing")
	}
	shopID, err := strconv.ParseInt(q.Get("shop_id"), 10, 64)
	if err != nil || shopID <= 0 {
		return 0, "", errInvalidCallback("shop_id missing or invalid")
	}
	return shopID, code, nil
}

type errInvalidCallback string

func (e errInvalidCallback) Error() string {
	return "invalid callback URL: " + string(e)
}
