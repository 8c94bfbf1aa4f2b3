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
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Errors for the credential lifecycle
var (
	ErrAuthRejected   = errors.New("marketplace: auth request rejected")
	ErrNoRefreshToken = errors.New("marketplace: no refresh token available")
)

// Credentials holds the dynamic session state of one marketplace shop.
// partner id/key/base URL/callback are configuration and are not part of
// the persisted record.
type Credentials struct {
	ShopID       int64  `json:"shop_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// tokenRecord is the on-disk shape of the persisted credentials.
type tokenRecord struct {
	Credentials
	UpdatedAt time.Time `json:"updated_at"`
}

// CredentialStore owns the active marketplace session: it exchanges the
// interactive consent code, refreshes expired access tokens, and persists
// the dynamic fields across restarts. All reads and writes of the
// in-memory credential go through one RWMutex so persistence never
// observes a partial write.
type CredentialStore struct {
	config     *Config
	path       string
	httpClient *http.Client
	logger     *zap.Logger

	mu    sync.RWMutex
	creds Credentials
}

// NewCredentialStore creates a credential store persisting to path.
func NewCredentialStore(config *Config, path string, logger *zap.Logger) *CredentialStore {
	return &CredentialStore{
		config: config,
		path:   path,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}
}

// Load reads previously persisted credentials. A missing file is not an
// error; the store simply starts unauthorized.
func (s *CredentialStore) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("marketplace: read token file: %w", err)
	}

	var record tokenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return fmt.Errorf("marketplace: parse token file: %w", err)
	}

	s.mu.Lock()
	s.creds = record.Credentials
	s.mu.Unlock()
	return nil
}

// persistLocked writes the current credentials to disk. Callers must hold
// the write lock. The write goes through a temp file and rename so a
// crash never leaves a half-written record.
func (s *CredentialStore) persistLocked() error {
	record := tokenRecord{Credentials: s.creds, UpdatedAt: time.Now()}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marketplace: encode token file: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "token-*.json")
	if err != nil {
		return fmt.Errorf("marketplace: create token temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("marketplace: write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("marketplace: close token file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("marketplace: replace token file: %w", err)
	}
	return nil
}

// Current returns a copy of the in-memory credentials.
func (s *CredentialStore) Current() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// HasToken reports whether an access token is present.
func (s *CredentialStore) HasToken() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.AccessToken != ""
}

// Session returns the access token and shop id used to sign
// session-bound calls.
func (s *CredentialStore) Session() (string, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.AccessToken, s.creds.ShopID
}

// AuthorizationURL builds the interactive consent URL with an auth-only
// signature.
func (s *CredentialStore) AuthorizationURL() string {
	ts := time.Now().Unix()
	sign := s.config.Sign(PathAuthPartner, ts, "", 0)

	q := url.Values{}
	q.Set("partner_id", strconv.FormatInt(s.config.PartnerID, 10))
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	q.Set("sign", sign)
	q.Set("redirect", s.config.CallbackURL)
	return s.config.BaseURL + PathAuthPartner + "?" + q.Encode()
}

// ExchangeCode exchanges the interactive consent code for a token set.
// On success the new credentials replace and outlive the old ones; on
// failure the stored state is left untouched.
func (s *CredentialStore) ExchangeCode(ctx context.Context, shopID int64, code string) error {
	body := map[string]any{
		"partner_id": s.config.PartnerID,
		"shop_id":    shopID,
		"code":       code,
	}
	return s.postAuth(ctx, PathTokenGet, body, shopID)
}

// Refresh renews the access token using the stored refresh token. A
// failed refresh leaves the stale values in place and is reported, not
// cleared.
func (s *CredentialStore) Refresh(ctx context.Context) error {
	s.mu.RLock()
	shopID := s.creds.ShopID
	refreshToken := s.creds.RefreshToken
	s.mu.RUnlock()

	if refreshToken == "" {
		return ErrNoRefreshToken
	}

	s.logger.Info("Refreshing marketplace access token",
		zap.Int64("shop_id", shopID),
	)

	body := map[string]any{
		"partner_id":    s.config.PartnerID,
		"shop_id":       shopID,
		"refresh_token": refreshToken,
	}
	return s.postAuth(ctx, PathTokenRefresh, body, shopID)
}

// postAuth posts an auth-signed request to the token endpoints and, on a
// response carrying an access token, commits and persists the new
// credential set.
func (s *CredentialStore) postAuth(ctx context.Context, path string, body map[string]any, fallbackShopID int64) error {
	ts := time.Now().Unix()
	sign := s.config.Sign(path, ts, "", 0)

	q := url.Values{}
	q.Set("partner_id", strconv.FormatInt(s.config.PartnerID, 10))
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	q.Set("sign", sign)
	requestURL := s.config.BaseURL + path + "?" + q.Encode()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marketplace: marshal auth body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("marketplace: build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("marketplace: auth request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("marketplace: read auth response: %w", err)
	}

	var token TokenResponse
	if err := json.Unmarshal(respBody, &token); err != nil {
		return fmt.Errorf("marketplace: parse auth response: %w", err)
	}
	if token.AccessToken == "" {
		s.logger.Warn("Marketplace auth rejected",
			zap.String("path", path),
			zap.String("error", token.Error),
			zap.String("message", token.Message),
		)
		return fmt.Errorf("%w: %s %s", ErrAuthRejected, token.Error, token.Message)
	}

	shopID := fallbackShopID
	if token.ShopID != 0 {
		shopID = token.ShopID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = Credentials{
		ShopID:       shopID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if err := s.persistLocked(); err != nil {
		// The in-memory session is still usable; persistence failure is
		// reported so operators can fix the token file location.
		s.logger.Error("Failed to persist marketplace credentials", zap.Error(err))
		return err
	}

	s.logger.Info("Marketplace credentials updated",
		zap.Int64("shop_id", shopID),
	)
	return nil
}
