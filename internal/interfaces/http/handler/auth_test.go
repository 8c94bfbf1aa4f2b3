package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeExchanger struct {
	err    error
	shopID int64
	code   string
	calls  int
}

func (f *fakeExchanger) ExchangeCode(_ context.Context, shopID int64, code string) error {
	f.calls++
	f.shopID = shopID
	f.code = code
	return f.err
}

func postCallback(t *testing.T, exchanger *fakeExchanger, body any) *httptest.ResponseRecorder {
	t.Helper()
	engine := gin.New()
	h := NewAuthHandler(exchanger, zap.NewNop())
	h.RegisterRoutes(engine.Group("/api/v1"))

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/callback", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestCallbackExchangesCode(t *testing.T) {
	exchanger := &fakeExchanger{}

	w := postCallback(t, exchanger, gin.H{
		"url": "https://erp.example.com/auth?code=abc123&shop_id=42",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(42), exchanger.shopID)
	assert.Equal(t, "abc123", exchanger.code)
}

func TestCallbackMissingCode(t *testing.T) {
	exchanger := &fakeExchanger{}

	w := postCallback(t, exchanger, gin.H{
		"url": "https://erp.example.com/auth?shop_id=42",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, exchanger.calls)
}

func TestCallbackInvalidShopID(t *testing.T) {
	exchanger := &fakeExchanger{}

	for _, raw := range []string{
		"https://erp.example.com/auth?code=abc123",
		"https://erp.example.com/auth?code=abc123&shop_id=zero",
		"https://erp.example.com/auth?code=abc123&shop_id=-5",
	} {
		w := postCallback(t, exchanger, gin.H{"url": raw})
		assert.Equal(t, http.StatusBadRequest, w.Code, raw)
	}
	assert.Zero(t, exchanger.calls)
}

func TestCallbackRequiresURL(t *testing.T) {
	exchanger := &fakeExchanger{}

	w := postCallback(t, exchanger, gin.H{"url": ""})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, exchanger.calls)
}

func TestCallbackExchangeFailure(t *testing.T) {
	exchanger := &fakeExchanger{err: errors.New("platform rejected code")}

	w := postCallback(t, exchanger, gin.H{
		"url": "https://erp.example.com/auth?code=abc123&shop_id=42",
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, 1, exchanger.calls)
}
