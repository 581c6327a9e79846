package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/garyjia/msp-billing/internal/application/port"
	"github.com/garyjia/msp-billing/internal/domain/billing"
	"github.com/garyjia/msp-billing/internal/domain/entity"
	"github.com/garyjia/msp-billing/internal/infrastructure/persistence/sqlite"
)

// MonthLockRepository implements port.MonthLockRepository
type MonthLockRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMonthLockRepository creates a new month lock repository
func NewMonthLockRepository(db *sql.DB, logger *zap.Logger) port.MonthLockRepository {
	return &MonthLockRepository{
		db:     db,
		logger: logger,
	}
}

const monthLockColumns = `id, month, xero_invoice_ids, invoice_metadata, COALESCE(locked_by, ''), locked_at`

// IsLocked reports whether a lock row exists for the month
func (r *MonthLockRepository) IsLocked(ctx context.Context, month billing.Month) (bool, error) {
	var exists int
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM month_locks WHERE month = ?)`, month.Key(),
	).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check month lock", zap.String("month", month.Key()), zap.Error(err))
		return false, fmt.Errorf("failed to check month lock: %w", err)
	}
	return exists == 1, nil
}

// Create inserts a new lock. A second lock for the same month is rejected
// by the UNIQUE constraint.
func (r *MonthLockRepository) Create(ctx context.Context, lock *entity.MonthLock) error {
	invoiceIDs, metadata, err := encodeLockPayload(lock)
	if err != nil {
		return err
	}

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO month_locks (month, xero_invoice_ids, invoice_metadata, locked_by, locked_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		lock.Month,
		invoiceIDs,
		metadata,
		nullString(lock.LockedBy),
		lock.LockedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("month %s: %w", lock.Month, port.ErrLockExists)
		}
		r.logger.Error("Failed to create month lock", zap.String("month", lock.Month), zap.Error(err))
		return fmt.Errorf("failed to create month lock: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	lock.ID = id
	return nil
}

// GetAll returns every lock, newest month first
func (r *MonthLockRepository) GetAll(ctx context.Context) ([]*entity.MonthLock, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx,
		`SELECT `+monthLockColumns+` FROM month_locks ORDER BY month DESC`)
	if err != nil {
		r.logger.Error("Failed to list month locks", zap.Error(err))
		return nil, fmt.Errorf("failed to list month locks: %w", err)
	}
	defer rows.Close()

	locks := make([]*entity.MonthLock, 0)
	for rows.Next() {
		lock, err := scanMonthLock(rows)
		if err != nil {
			return nil, err
		}
		locks = append(locks, lock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate month locks: %w", err)
	}
	return locks, nil
}

// GetByID retrieves a lock by ID
func (r *MonthLockRepository) GetByID(ctx context.Context, id int64) (*entity.MonthLock, error) {
	row := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+monthLockColumns+` FROM month_locks WHERE id = ?`, id)

	lock, err := scanMonthLock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("month lock %d: %w", id, port.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// RemoveInvoice drops one invoice from the lock's list and metadata and
// deletes the row when the list becomes empty.
func (r *MonthLockRepository) RemoveInvoice(ctx context.Context, lockID int64, externalInvoiceID string) (bool, error) {
	lock, err := r.GetByID(ctx, lockID)
	if err != nil {
		return false, err
	}
	if !lock.HasInvoice(externalInvoiceID) {
		return false, fmt.Errorf("invoice %s on month lock %d: %w", externalInvoiceID, lockID, port.ErrNotFound)
	}

	updated := lock.WithoutInvoice(externalInvoiceID)
	if len(updated.XeroInvoiceIDs) == 0 {
		if err := r.Delete(ctx, lockID); err != nil {
			return false, err
		}
		return true, nil
	}

	invoiceIDs, metadata, err := encodeLockPayload(updated)
	if err != nil {
		return false, err
	}
	_, err = sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx,
		`UPDATE month_locks SET xero_invoice_ids = ?, invoice_metadata = ? WHERE id = ?`,
		invoiceIDs, metadata, lockID)
	if err != nil {
		r.logger.Error("Failed to update month lock", zap.Int64("lock_id", lockID), zap.Error(err))
		return false, fmt.Errorf("failed to update month lock: %w", err)
	}
	return false, nil
}

// Delete removes a lock unconditionally
func (r *MonthLockRepository) Delete(ctx context.Context, lockID int64) error {
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `DELETE FROM month_locks WHERE id = ?`, lockID)
	if err != nil {
		r.logger.Error("Failed to delete month lock", zap.Int64("lock_id", lockID), zap.Error(err))
		return fmt.Errorf("failed to delete month lock: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("month lock %d: %w", lockID, port.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMonthLock(row rowScanner) (*entity.MonthLock, error) {
	var (
		lock       entity.MonthLock
		invoiceIDs string
		metadata   string
	)
	if err := row.Scan(&lock.ID, &lock.Month, &invoiceIDs, &metadata, &lock.LockedBy, &lock.LockedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan month lock: %w", err)
	}

	if err := json.Unmarshal([]byte(invoiceIDs), &lock.XeroInvoiceIDs); err != nil {
		return nil, fmt.Errorf("failed to decode invoice ids of lock %d: %w", lock.ID, err)
	}
	if err := json.Unmarshal([]byte(metadata), &lock.InvoiceMetadata); err != nil {
		return nil, fmt.Errorf("failed to decode invoice metadata of lock %d: %w", lock.ID, err)
	}
	if lock.XeroInvoiceIDs == nil {
		lock.XeroInvoiceIDs = []string{}
	}
	if lock.InvoiceMetadata == nil {
		lock.InvoiceMetadata = []entity.InvoiceMetadata{}
	}
	return &lock, nil
}

func encodeLockPayload(lock *entity.MonthLock) (string, string, error) {
	ids := lock.XeroInvoiceIDs
	if ids == nil {
		ids = []string{}
	}
	meta := lock.InvoiceMetadata
	if meta == nil {
		meta = []entity.InvoiceMetadata{}
	}

	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode invoice ids: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode invoice metadata: %w", err)
	}
	return string(idsJSON), string(metaJSON), nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Verify interface compliance
var _ port.MonthLockRepository = (*MonthLockRepository)(nil)
