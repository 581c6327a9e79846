package service

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/msp-billing/internal/application/port"
	"github.com/garyjia/msp-billing/internal/domain/billing"
	"github.com/garyjia/msp-billing/internal/domain/entity"
)

// RemoveInvoiceResult reports the outcome of removing one invoice from a lock
type RemoveInvoiceResult struct {
	LockDeleted bool              `json:"lockDeleted"`
	Lock        *entity.MonthLock `json:"lock,omitempty"`
}

// LockService maintains month locks. None of its operations touch the
// accounting system; invoices removed from a lock still exist remotely.
type LockService interface {
	History(ctx context.Context) ([]*entity.MonthLock, error)

	// IsLocked accepts YYYY-MM or YYYY-MM-DD
	IsLocked(ctx context.Context, month string) (bool, error)

	// AssertUnlocked fails with an invoice lock error when workDate falls in a locked month
	AssertUnlocked(ctx context.Context, workDate time.Time) error

	DeleteLock(ctx context.Context, lockID int64) error
	RemoveInvoice(ctx context.Context, lockID int64, externalInvoiceID string) (*RemoveInvoiceResult, error)
}

type lockServiceImpl struct {
	locks     port.MonthLockRepository
	txManager port.TransactionManager
	logger    Logger
}

// NewLockService creates a new LockService
func NewLockService(locks port.MonthLockRepository, txManager port.TransactionManager, logger Logger) LockService {
	return &lockServiceImpl{
		locks:     locks,
		txManager: txManager,
		logger:    logger,
	}
}

// History lists every lock, newest month first
func (s *lockServiceImpl) History(ctx context.Context) ([]*entity.MonthLock, error) {
	locks, err := s.locks.GetAll(ctx)
	if err != nil {
		s.logger.Error("Failed to list month locks", "error", err)
		return nil, storageError(err, "list month locks")
	}
	return locks, nil
}

// IsLocked reports whether the month has been billed
func (s *lockServiceImpl) IsLocked(ctx context.Context, month string) (bool, error) {
	m, err := billing.ParseMonth(month)
	if err != nil {
		return false, err
	}
	locked, err := s.locks.IsLocked(ctx, m)
	if err != nil {
		return false, storageError(err, "read lock for %s", m)
	}
	return locked, nil
}

// AssertUnlocked guards edits of time entries dated workDate
func (s *lockServiceImpl) AssertUnlocked(ctx context.Context, workDate time.Time) error {
	m := billing.MonthOf(workDate)
	locked, err := s.locks.IsLocked(ctx, m)
	if err != nil {
		return storageError(err, "read lock for %s", m)
	}
	if locked {
		return billing.MonthLockedError(m)
	}
	return nil
}

// DeleteLock re-opens a month for billing
func (s *lockServiceImpl) DeleteLock(ctx context.Context, lockID int64) error {
	operator := OperatorFrom(ctx)

	var month string
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		lock, err := s.locks.GetByID(txCtx, lockID)
		if err != nil {
			return err
		}
		month = lock.Month
		return s.locks.Delete(txCtx, lockID)
	})
	if err != nil {
		s.logger.Error("Failed to delete month lock", "error", err, "lock_id", lockID, "operator", operator)
		return lockError(err, lockID)
	}

	s.logger.Info("Month lock deleted; Xero invoices were not voided",
		"lock_id", lockID, "month", month, "operator", operator)
	return nil
}

// RemoveInvoice drops one invoice id from a lock, deleting the lock when it
// was the last one.
func (s *lockServiceImpl) RemoveInvoice(ctx context.Context, lockID int64, externalInvoiceID string) (*RemoveInvoiceResult, error) {
	operator := OperatorFrom(ctx)
	result := &RemoveInvoiceResult{}
	lockMissing := false

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.locks.GetByID(txCtx, lockID); err != nil {
			lockMissing = errors.Is(err, port.ErrNotFound)
			return err
		}
		deleted, err := s.locks.RemoveInvoice(txCtx, lockID, externalInvoiceID)
		if err != nil {
			return err
		}
		result.LockDeleted = deleted
		if deleted {
			return nil
		}
		result.Lock, err = s.locks.GetByID(txCtx, lockID)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to remove invoice from lock",
			"error", err, "lock_id", lockID, "xero_invoice_id", externalInvoiceID, "operator", operator)
		if lockMissing {
			return nil, lockError(err, lockID)
		}
		if errors.Is(err, port.ErrNotFound) {
			nf := billing.NotFoundError(billing.CodeInvoiceNotFound,
				"invoice %s is not recorded on lock %d", externalInvoiceID, lockID)
			nf.Err = err
			return nil, nf
		}
		return nil, storageError(err, "remove invoice %s from lock %d", externalInvoiceID, lockID)
	}

	s.logger.Info("Invoice removed from month lock",
		"lock_id", lockID,
		"xero_invoice_id", externalInvoiceID,
		"lock_deleted", result.LockDeleted,
		"operator", operator)
	return result, nil
}

func lockError(err error, lockID int64) error {
	if errors.Is(err, port.ErrNotFound) {
		nf := billing.NotFoundError(billing.CodeLockNotFound, "month lock %d not found", lockID)
		nf.Err = err
		return nf
	}
	return storageError(err, "delete month lock %d", lockID)
}
