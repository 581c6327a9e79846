package xero

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/garyjia/msp-billing/internal/application/port"
	"github.com/garyjia/msp-billing/internal/domain/entity"
)

// Config holds Xero API settings
type Config struct {
	ClientID     string
	ClientSecret string
	APIBaseURL   string
	TokenURL     string

	// Timeout applies to every HTTP call
	Timeout time.Duration

	// RequestsPerMinute paces outgoing calls; Xero allows 60 per tenant
	RequestsPerMinute int
	Burst             int

	// RefreshWindow is how long before expiry an access token is refreshed
	RefreshWindow time.Duration
}

// ClientFactory builds tenant-bound clients and keeps the OAuth credential fresh
type ClientFactory struct {
	cfg         Config
	httpClient  *http.Client
	limiter     *rate.Limiter
	connections port.ConnectionRepository
	logger      *zap.Logger
	now         func() time.Time

	// Refresh tokens are single-use; refreshes must not overlap
	refreshMu sync.Mutex
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
}

// NewClientFactory creates a new client factory
func NewClientFactory(cfg Config, connections port.ConnectionRepository, logger *zap.Logger) *ClientFactory {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.RefreshWindow <= 0 {
		cfg.RefreshWindow = 5 * time.Minute
	}

	return &ClientFactory{
		cfg:         cfg,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.Burst),
		connections: connections,
		logger:      logger,
		now:         time.Now,
	}
}

// ClientFor returns a client for the connection's tenant, refreshing the
// access token first when it is about to expire.
func (f *ClientFactory) ClientFor(ctx context.Context, conn *entity.AccountingConnection) (port.AccountingClient, error) {
	if conn.ExpiresWithin(f.now(), f.cfg.RefreshWindow) {
		refreshed, err := f.Refresh(ctx, conn, f.cfg.RefreshWindow)
		if err != nil {
			return nil, err
		}
		conn = refreshed
	}

	return &Client{
		httpClient:  f.httpClient,
		baseURL:     strings.TrimRight(f.cfg.APIBaseURL, "/"),
		tenantID:    conn.TenantID,
		accessToken: conn.AccessToken,
		limiter:     f.limiter,
		logger:      f.logger,
	}, nil
}

// Refresh exchanges the refresh token for a new credential and persists it.
// window is the caller's refresh window; the background worker uses a wider
// one than ClientFor so tokens are renewed before a run needs them.
func (f *ClientFactory) Refresh(ctx context.Context, conn *entity.AccountingConnection, window time.Duration) (*entity.AccountingConnection, error) {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	// Another caller may have refreshed while we waited
	if latest, err := f.connections.GetActive(ctx); err == nil && latest != nil && latest.ID == conn.ID &&
		!latest.ExpiresWithin(f.now(), window) {
		return latest, nil
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", conn.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("xero: failed to create token request: %w", err)
	}
	req.SetBasicAuth(f.cfg.ClientID, f.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("xero: token refresh: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("xero: failed to read token response: %w", err)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil && resp.StatusCode < 400 {
		return nil, fmt.Errorf("xero: failed to decode token response: %w", err)
	}
	if resp.StatusCode >= 400 || token.AccessToken == "" {
		f.logger.Error("Xero token refresh rejected",
			zap.Int64("connection_id", conn.ID),
			zap.Int("status", resp.StatusCode),
			zap.String("error", token.Error))
		return nil, &port.RemoteError{
			Status:  resp.StatusCode,
			Code:    port.RemoteUnauthorized,
			Message: firstNonEmpty(token.Error, "token refresh rejected"),
		}
	}

	refreshed := *conn
	refreshed.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		refreshed.RefreshToken = token.RefreshToken
	}
	refreshed.ExpiresAt = f.now().Add(time.Duration(token.ExpiresIn) * time.Second).UTC()

	if err := f.connections.UpdateTokens(ctx, conn.ID, refreshed.AccessToken, refreshed.RefreshToken, refreshed.ExpiresAt); err != nil {
		return nil, fmt.Errorf("xero: failed to persist refreshed tokens: %w", err)
	}

	f.logger.Info("Xero access token refreshed",
		zap.Int64("connection_id", conn.ID),
		zap.String("tenant_id", conn.TenantID),
		zap.Time("expires_at", refreshed.ExpiresAt))
	return &refreshed, nil
}

// RefreshWindow returns the configured refresh window
func (f *ClientFactory) RefreshWindow() time.Duration {
	return f.cfg.RefreshWindow
}

// Verify interface compliance
var (
	_ port.AccountingClientFactory = (*ClientFactory)(nil)
	_ port.TokenRefresher          = (*ClientFactory)(nil)
)
