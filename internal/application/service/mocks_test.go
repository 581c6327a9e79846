package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/garyjia/msp-billing/internal/application/port"
	"github.com/garyjia/msp-billing/internal/domain/billing"
	"github.com/garyjia/msp-billing/internal/domain/entity"
)

// Mock repositories

type mockTimeEntryRepo struct {
	listForMonthFunc func(ctx context.Context, start, end time.Time) ([]entity.TimeEntryRow, error)
}

func (m *mockTimeEntryRepo) ListForMonth(ctx context.Context, start, end time.Time) ([]entity.TimeEntryRow, error) {
	if m.listForMonthFunc != nil {
		return m.listForMonthFunc(ctx, start, end)
	}
	return nil, nil
}

type mockTicketRepo struct {
	touchFunc func(ctx context.Context, ticketIDs []int64, at time.Time) error
	touched   []int64
}

func (m *mockTicketRepo) Touch(ctx context.Context, ticketIDs []int64, at time.Time) error {
	if m.touchFunc != nil {
		return m.touchFunc(ctx, ticketIDs, at)
	}
	m.touched = append(m.touched, ticketIDs...)
	return nil
}

// mockLockRepo keeps locks in memory and honours the transaction staging of mockTxManager
type mockLockRepo struct {
	mu      sync.Mutex
	locks   map[int64]*entity.MonthLock
	nextID  int64
	pending []*entity.MonthLock

	isLockedFunc func(ctx context.Context, month billing.Month) (bool, error)
	createFunc   func(ctx context.Context, lock *entity.MonthLock) error
	getAllFunc   func(ctx context.Context) ([]*entity.MonthLock, error)
}

func newMockLockRepo() *mockLockRepo {
	return &mockLockRepo{locks: make(map[int64]*entity.MonthLock)}
}

func (m *mockLockRepo) IsLocked(ctx context.Context, month billing.Month) (bool, error) {
	if m.isLockedFunc != nil {
		return m.isLockedFunc(ctx, month)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lock := range m.locks {
		if lock.Month == month.Key() {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLockRepo) Create(ctx context.Context, lock *entity.MonthLock) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, lock)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.locks {
		if existing.Month == lock.Month {
			return port.ErrLockExists
		}
	}
	m.nextID++
	lock.ID = m.nextID
	if inTx(ctx) {
		m.pending = append(m.pending, lock)
		return nil
	}
	m.locks[lock.ID] = lock
	return nil
}

func (m *mockLockRepo) GetAll(ctx context.Context) ([]*entity.MonthLock, error) {
	if m.getAllFunc != nil {
		return m.getAllFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.MonthLock, 0, len(m.locks))
	for _, lock := range m.locks {
		out = append(out, lock)
	}
	return out, nil
}

func (m *mockLockRepo) GetByID(ctx context.Context, id int64) (*entity.MonthLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[id]
	if !ok {
		return nil, fmt.Errorf("month lock %d: %w", id, port.ErrNotFound)
	}
	return lock, nil
}

func (m *mockLockRepo) RemoveInvoice(ctx context.Context, lockID int64, externalInvoiceID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[lockID]
	if !ok || !lock.HasInvoice(externalInvoiceID) {
		return false, port.ErrNotFound
	}
	updated := lock.WithoutInvoice(externalInvoiceID)
	if len(updated.XeroInvoiceIDs) == 0 {
		delete(m.locks, lockID)
		return true, nil
	}
	m.locks[lockID] = updated
	return false, nil
}

func (m *mockLockRepo) Delete(ctx context.Context, lockID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.locks[lockID]; !ok {
		return port.ErrNotFound
	}
	delete(m.locks, lockID)
	return nil
}

func (m *mockLockRepo) commit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lock := range m.pending {
		m.locks[lock.ID] = lock
	}
	m.pending = nil
}

func (m *mockLockRepo) rollback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
}

type mockConnectionRepo struct {
	conn   *entity.AccountingConnection
	getErr error
}

func (m *mockConnectionRepo) GetActive(ctx context.Context) (*entity.AccountingConnection, error) {
	return m.conn, m.getErr
}

func (m *mockConnectionRepo) Save(ctx context.Context, conn *entity.AccountingConnection) error {
	m.conn = conn
	return nil
}

func (m *mockConnectionRepo) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	if m.conn != nil {
		m.conn.AccessToken = accessToken
		m.conn.RefreshToken = refreshToken
		m.conn.ExpiresAt = expiresAt
	}
	return nil
}

// Mock transaction manager

type txKey struct{}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}

type mockTxManager struct {
	locks     *mockLockRepo
	commitErr error
	commits   int
	rollbacks int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.rollbacks++
		if m.locks != nil {
			m.locks.rollback()
		}
		return err
	}
	if m.commitErr != nil {
		m.rollbacks++
		if m.locks != nil {
			m.locks.rollback()
		}
		return fmt.Errorf("failed to commit transaction: %w", m.commitErr)
	}
	m.commits++
	if m.locks != nil {
		m.locks.commit()
	}
	return nil
}

// Mock accounting system

type mockAccountingClient struct {
	verifyFunc func(ctx context.Context, itemCode string) (bool, error)
	createFunc func(ctx context.Context, draft *entity.InvoiceDraft) (*port.CreatedInvoice, error)
	submitted  []entity.InvoiceDraft
}

func (m *mockAccountingClient) VerifyCatalogItem(ctx context.Context, itemCode string) (bool, error) {
	if m.verifyFunc != nil {
		return m.verifyFunc(ctx, itemCode)
	}
	return true, nil
}

func (m *mockAccountingClient) CreateInvoice(ctx context.Context, draft *entity.InvoiceDraft) (*port.CreatedInvoice, error) {
	m.submitted = append(m.submitted, *draft)
	if m.createFunc != nil {
		return m.createFunc(ctx, draft)
	}
	n := len(m.submitted)
	return &port.CreatedInvoice{
		InvoiceID:     fmt.Sprintf("inv-%d", n),
		InvoiceNumber: fmt.Sprintf("INV-%04d", n),
	}, nil
}

type mockClientFactory struct {
	client *mockAccountingClient
	err    error
}

func (m *mockClientFactory) ClientFor(ctx context.Context, conn *entity.AccountingConnection) (port.AccountingClient, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.client, nil
}

type mockNotifier struct {
	alerts []port.ReconciliationAlert
	err    error
}

func (m *mockNotifier) NotifyReconciliation(ctx context.Context, alert port.ReconciliationAlert) error {
	m.alerts = append(m.alerts, alert)
	return m.err
}

type mockExporter struct {
	exportFunc func(preview *entity.BillingPreview, w io.Writer) error
}

func (m *mockExporter) Export(preview *entity.BillingPreview, w io.Writer) error {
	if m.exportFunc != nil {
		return m.exportFunc(preview, w)
	}
	_, err := io.WriteString(w, preview.Month)
	return err
}

// Mock logger

type mockLogger struct {
	mu       sync.Mutex
	messages []string
	warnings []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings = append(m.warnings, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}
