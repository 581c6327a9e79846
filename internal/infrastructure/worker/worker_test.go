package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/msp-billing/internal/domain/entity"
)

type stubWorker struct {
	name     string
	startErr error
	stopErr  error
	started  bool
	stopped  bool
}

func (s *stubWorker) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	return nil
}

func (s *stubWorker) Stop() error {
	s.stopped = true
	return s.stopErr
}

func (s *stubWorker) Name() string { return s.name }

type stubConnections struct {
	mu     sync.Mutex
	conn   *entity.AccountingConnection
	getErr error
}

func (s *stubConnections) GetActive(ctx context.Context) (*entity.AccountingConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil || s.conn == nil {
		return nil, s.getErr
	}
	c := *s.conn
	return &c, nil
}

func (s *stubConnections) Save(ctx context.Context, conn *entity.AccountingConnection) error {
	return nil
}

func (s *stubConnections) UpdateTokens(ctx context.Context, id int64, access, refresh string, expiresAt time.Time) error {
	return nil
}

type stubRefresher struct {
	mu      sync.Mutex
	calls   int
	windows []time.Duration
	err     error
	// unchanged simulates a credential already refreshed by another caller
	unchanged bool
}

func (s *stubRefresher) Refresh(ctx context.Context, conn *entity.AccountingConnection, window time.Duration) (*entity.AccountingConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.windows = append(s.windows, window)
	if s.err != nil {
		return nil, s.err
	}
	refreshed := *conn
	if !s.unchanged {
		refreshed.AccessToken = conn.AccessToken + "-refreshed"
	}
	return &refreshed, nil
}

func (s *stubRefresher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(zap.NewNop())
	ok := &stubWorker{name: "ok"}
	broken := &stubWorker{name: "broken", startErr: errors.New("boom")}
	m.Register(ok)
	m.Register(broken)
	assert.Equal(t, 2, m.Count())

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.True(t, ok.started)
	assert.False(t, broken.started)

	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.True(t, ok.stopped)

	require.NoError(t, m.StopAll())
}

func TestManager_StopAllJoinsErrors(t *testing.T) {
	m := NewManager(zap.NewNop())
	m.Register(&stubWorker{name: "a", stopErr: errors.New("stuck")})
	m.Register(&stubWorker{name: "b"})
	require.NoError(t, m.StartAll(context.Background()))

	err := m.StopAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: stuck")
}

func TestTokenRefreshWorker_CheckOnce(t *testing.T) {
	now := time.Date(2025, time.October, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		conn        *entity.AccountingConnection
		getErr      error
		refreshErr  error
		unchanged   bool
		wantRefresh bool
		wantCalls   int
	}{
		{name: "no connection"},
		{name: "lookup fails", getErr: errors.New("db down")},
		{name: "token still fresh", conn: &entity.AccountingConnection{ID: 1, ExpiresAt: now.Add(time.Hour)}},
		{name: "token expiring", conn: &entity.AccountingConnection{ID: 1, ExpiresAt: now.Add(2 * time.Minute)}, wantRefresh: true, wantCalls: 1},
		{name: "already refreshed elsewhere", conn: &entity.AccountingConnection{ID: 1, ExpiresAt: now.Add(2 * time.Minute)}, unchanged: true, wantCalls: 1},
		{name: "refresh rejected", conn: &entity.AccountingConnection{ID: 1, ExpiresAt: now.Add(-time.Minute)}, refreshErr: errors.New("invalid_grant"), wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refresher := &stubRefresher{err: tt.refreshErr, unchanged: tt.unchanged}
			w := NewTokenRefreshWorker(TokenRefreshConfig{RefreshWindow: 10 * time.Minute},
				&stubConnections{conn: tt.conn, getErr: tt.getErr}, refresher, zap.NewNop())
			w.now = func() time.Time { return now }

			assert.Equal(t, tt.wantRefresh, w.checkOnce(context.Background()))
			assert.Equal(t, tt.wantCalls, refresher.Calls())
			for _, window := range refresher.windows {
				assert.Equal(t, 10*time.Minute, window, "worker passes its own window")
			}
		})
	}
}

func TestTokenRefreshWorker_StartStop(t *testing.T) {
	refresher := &stubRefresher{}
	conns := &stubConnections{conn: &entity.AccountingConnection{ID: 1, ExpiresAt: time.Now().Add(-time.Minute)}}
	w := NewTokenRefreshWorker(TokenRefreshConfig{Interval: time.Hour}, conns, refresher, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))

	assert.Eventually(t, func() bool { return refresher.Calls() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	assert.Equal(t, "TokenRefreshWorker", w.Name())
}
