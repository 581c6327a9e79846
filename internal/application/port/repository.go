package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/msp-billing/internal/domain/billing"
	"github.com/garyjia/msp-billing/internal/domain/entity"
)

var (
	// ErrNotFound is returned by repositories when the requested row does not exist
	ErrNotFound = errors.New("record not found")

	// ErrLockExists is returned when a lock for the month is already stored
	ErrLockExists = errors.New("month lock already exists")
)

// TimeEntryRepository reads time entries joined with their ticket, client and contact
type TimeEntryRepository interface {
	// ListForMonth returns non-deleted entries with start <= work_date < end,
	// ordered by client name, ticket id, work date and entry id.
	ListForMonth(ctx context.Context, start, end time.Time) ([]entity.TimeEntryRow, error)
}

// TicketRepository marks tickets as touched by billing
type TicketRepository interface {
	Touch(ctx context.Context, ticketIDs []int64, at time.Time) error
}

// MonthLockRepository defines persistence operations for MonthLock
type MonthLockRepository interface {
	IsLocked(ctx context.Context, month billing.Month) (bool, error)

	// Create stores a new lock; returns ErrLockExists if the month is taken
	Create(ctx context.Context, lock *entity.MonthLock) error

	// GetAll returns every lock, newest month first
	GetAll(ctx context.Context) ([]*entity.MonthLock, error)

	GetByID(ctx context.Context, id int64) (*entity.MonthLock, error)

	// RemoveInvoice drops one external invoice id from a lock and deletes the
	// lock when none remain.
	RemoveInvoice(ctx context.Context, lockID int64, externalInvoiceID string) (lockDeleted bool, err error)

	Delete(ctx context.Context, lockID int64) error
}

// ConnectionRepository stores the single active accounting connection
type ConnectionRepository interface {
	// GetActive returns nil, nil when no connection is active
	GetActive(ctx context.Context) (*entity.AccountingConnection, error)

	// Save deactivates any existing connection and stores conn as active
	Save(ctx context.Context, conn *entity.AccountingConnection) error

	UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
