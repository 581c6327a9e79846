package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/msp-billing/internal/application/port"
)

// TokenRefreshConfig holds configuration for the token refresh worker
type TokenRefreshConfig struct {
	Interval      time.Duration
	RefreshWindow time.Duration
	Timeout       time.Duration
}

// DefaultTokenRefreshConfig returns default configuration
func DefaultTokenRefreshConfig() TokenRefreshConfig {
	return TokenRefreshConfig{
		Interval:      5 * time.Minute,
		RefreshWindow: 10 * time.Minute,
		Timeout:       30 * time.Second,
	}
}

// TokenRefreshWorker keeps the active accounting connection's access token
// from expiring between generation runs.
type TokenRefreshWorker struct {
	config      TokenRefreshConfig
	connections port.ConnectionRepository
	refresher   port.TokenRefresher
	logger      *zap.Logger
	now         func() time.Time

	mu           sync.Mutex
	cancel       context.CancelFunc
	done         chan struct{}
	refreshCount int
	failedCount  int
}

// NewTokenRefreshWorker creates a new token refresh worker
func NewTokenRefreshWorker(
	config TokenRefreshConfig,
	connections port.ConnectionRepository,
	refresher port.TokenRefresher,
	logger *zap.Logger,
) *TokenRefreshWorker {
	defaults := DefaultTokenRefreshConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.RefreshWindow <= 0 {
		config.RefreshWindow = defaults.RefreshWindow
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &TokenRefreshWorker{
		config:      config,
		connections: connections,
		refresher:   refresher,
		logger:      logger,
		now:         time.Now,
	}
}

// Start runs one check immediately and then polls on the configured interval
func (w *TokenRefreshWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return fmt.Errorf("token refresh worker already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	w.logger.Info("TokenRefreshWorker started",
		zap.Duration("interval", w.config.Interval),
		zap.Duration("refresh_window", w.config.RefreshWindow))

	go w.pollLoop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight refresh to finish
func (w *TokenRefreshWorker) Stop() error {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	w.logger.Info("TokenRefreshWorker stopped",
		zap.Int("refresh_count", w.refreshCount),
		zap.Int("failed_count", w.failedCount))
	return nil
}

// Name returns the worker name for identification
func (w *TokenRefreshWorker) Name() string {
	return "TokenRefreshWorker"
}

func (w *TokenRefreshWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.checkOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.checkOnce(ctx)
		}
	}
}

// checkOnce refreshes the active connection when it is inside the window.
// It returns true when a refresh was performed.
func (w *TokenRefreshWorker) checkOnce(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, w.config.Timeout)
	defer cancel()

	conn, err := w.connections.GetActive(ctx)
	if err != nil {
		w.logger.Error("Failed to load active connection", zap.Error(err))
		return false
	}
	if conn == nil || !conn.ExpiresWithin(w.now(), w.config.RefreshWindow) {
		return false
	}

	refreshed, err := w.refresher.Refresh(ctx, conn, w.config.RefreshWindow)
	if err != nil {
		w.failedCount++
		w.logger.Warn("Background token refresh failed",
			zap.Int64("connection_id", conn.ID),
			zap.Time("expires_at", conn.ExpiresAt),
			zap.Error(err))
		return false
	}
	// Another caller refreshed first
	if refreshed.AccessToken == conn.AccessToken {
		return false
	}
	w.refreshCount++
	return true
}

// Verify interface compliance
var _ Worker = (*TokenRefreshWorker)(nil)
