package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"airsight/internal/config"
	"airsight/internal/types"
)

// azureLoginBase is the default Azure AD authority. Overridable in tests via
// AzureConfig.TokenURL.
const azureLoginBase = "https://login.microsoftonline.com"

// tokenScope is the resource scope requested during the client-credentials
// exchange; it covers the management-plane endpoints the model calls use.
const tokenScope = "https://management.azure.com/.default"

// renewalMargin is how long before expiry a cached token is considered
// stale. Renewing early avoids handing out a token that expires mid-call.
const renewalMargin = 60 * time.Second

// TokenCache holds a short-lived bearer credential for the hosted model
// endpoints, refreshing it via the Azure AD client-credentials flow when it
// nears expiry.
//
// The cache never returns errors: missing configuration and failed exchanges
// both resolve to (_, false), which callers treat as "remote path disabled".
// Safe for concurrent use.
type TokenCache struct {
	base     *BaseClient
	cfg      config.AzureConfig
	tokenURL string
	logger   *slog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenCache creates a TokenCache. The httpClient timeout bounds the
// token exchange; the Azure AD default (~10s) is appropriate.
func NewTokenCache(httpClient *http.Client, cfg config.AzureConfig, logger *slog.Logger) *TokenCache {
	if logger == nil {
		logger = slog.Default()
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("%s/%s/oauth2/v2.0/token", azureLoginBase, cfg.TenantID)
	}

	return &TokenCache{
		base:     NewBaseClient(httpClient, "azure-token"),
		cfg:      cfg,
		tokenURL: tokenURL,
		logger:   logger,
	}
}

// Configured reports whether the credential triple needed for token
// exchange is present.
func (tc *TokenCache) Configured() bool {
	return tc.cfg.Configured()
}

// Authenticated reports whether a currently-valid token is cached.
func (tc *TokenCache) Authenticated() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.token != "" && time.Now().Before(tc.expiresAt.Add(-renewalMargin))
}

// Token returns a valid bearer token, exchanging credentials with Azure AD
// when the cached one is absent or near expiry. Returns ("", false) when
// credentials are not configured or the exchange fails; both are normal
// fallback signals, never errors.
func (tc *TokenCache) Token(ctx context.Context) (string, bool) {
	if !tc.cfg.Configured() {
		return "", false
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.token != "" && time.Now().Before(tc.expiresAt.Add(-renewalMargin)) {
		return tc.token, true
	}

	token, expiresIn, err := tc.exchange(ctx)
	if err != nil {
		tc.logger.Warn("azure token exchange failed; using local forecast path",
			"error", err,
			"tenant_id", tc.cfg.TenantID,
		)
		tc.token = ""
		return "", false
	}

	tc.token = token
	tc.expiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)

	tc.logger.Info("azure token refreshed",
		"expires_in_seconds", expiresIn,
	)

	return tc.token, true
}

// Invalidate drops the cached token, forcing a fresh exchange on the next
// Token call. Used when the model endpoint rejects a token mid-lifetime.
func (tc *TokenCache) Invalidate() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.token = ""
	tc.expiresAt = time.Time{}
}

// azureTokenResponse is the Azure AD token endpoint response body.
type azureTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// exchange performs the client-credentials grant against Azure AD.
func (tc *TokenCache) exchange(ctx context.Context) (string, int, error) {
	params := url.Values{}
	params.Set("client_id", tc.cfg.ClientID)
	params.Set("client_secret", tc.cfg.ClientSecret.Unmask())
	params.Set("scope", tokenScope)
	params.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tc.tokenURL, strings.NewReader(params.Encode()))
	if err != nil {
		return "", 0, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create token exchange request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := tc.base.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", 0, types.NewAppError(
			types.ErrCodeRemoteAuthFailed,
			fmt.Sprintf("token exchange rejected (%d): %s", resp.StatusCode, string(body)),
			nil,
		)
	}

	var tokenResp azureTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", 0, types.NewAppError(
			types.ErrCodeRemoteAuthFailed,
			"failed to decode token response",
			err,
		)
	}

	if tokenResp.AccessToken == "" {
		return "", 0, types.NewAppError(
			types.ErrCodeRemoteAuthFailed,
			"token endpoint returned empty access token",
			nil,
		)
	}

	return tokenResp.AccessToken, tokenResp.ExpiresIn, nil
}

// Compile-time interface compliance check.
var _ TokenSource = (*TokenCache)(nil)
