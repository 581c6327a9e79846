package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/msp-billing/internal/application/port"
	"github.com/garyjia/msp-billing/internal/domain/billing"
	"github.com/garyjia/msp-billing/internal/domain/entity"
)

func newLock(month string, invoiceIDs ...string) *entity.MonthLock {
	meta := make([]entity.InvoiceMetadata, len(invoiceIDs))
	for i, id := range invoiceIDs {
		meta[i] = entity.InvoiceMetadata{
			ClientID:          int64(i + 1),
			ClientName:        "Client " + id,
			ExternalInvoiceID: id,
			Hours:             decimal.RequireFromString("2.5"),
			LineItemCount:     1,
		}
	}
	return &entity.MonthLock{
		Month:           month,
		XeroInvoiceIDs:  invoiceIDs,
		InvoiceMetadata: meta,
		LockedBy:        "alice",
		LockedAt:        time.Date(2025, time.October, 2, 9, 30, 0, 0, time.UTC),
	}
}

func TestMonthLockRepository_CreateAndRead(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMonthLockRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	lock := newLock("2025-09-01", "inv-a", "inv-b")
	require.NoError(t, repo.Create(ctx, lock))
	require.NotZero(t, lock.ID)

	got, err := repo.GetByID(ctx, lock.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-09-01", got.Month)
	assert.Equal(t, []string{"inv-a", "inv-b"}, got.XeroInvoiceIDs)
	require.Len(t, got.InvoiceMetadata, 2)
	assert.True(t, got.InvoiceMetadata[0].Hours.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, "alice", got.LockedBy)
	assert.True(t, got.LockedAt.Equal(lock.LockedAt))

	for _, d := range []string{"2025-09", "2025-09-01", "2025-09-30"} {
		locked, err := repo.IsLocked(ctx, billing.MustParseMonth(d))
		require.NoError(t, err)
		assert.True(t, locked, d)
	}
	for _, d := range []string{"2025-08-31", "2025-10-01"} {
		locked, err := repo.IsLocked(ctx, billing.MustParseMonth(d))
		require.NoError(t, err)
		assert.False(t, locked, d)
	}
}

func TestMonthLockRepository_SecondCreateForMonthFails(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMonthLockRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newLock("2025-09-01", "inv-a")))
	err := repo.Create(ctx, newLock("2025-09-01", "inv-z"))

	assert.ErrorIs(t, err, port.ErrLockExists)

	locks, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, locks, 1)
	assert.Equal(t, []string{"inv-a"}, locks[0].XeroInvoiceIDs, "existing lock must not be overwritten")
}

func TestMonthLockRepository_GetAllNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMonthLockRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	for _, month := range []string{"2025-07-01", "2025-09-01", "2024-12-01"} {
		require.NoError(t, repo.Create(ctx, newLock(month, "inv-"+month)))
	}

	locks, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, locks, 3)
	assert.Equal(t, "2025-09-01", locks[0].Month)
	assert.Equal(t, "2025-07-01", locks[1].Month)
	assert.Equal(t, "2024-12-01", locks[2].Month)
}

func TestMonthLockRepository_GetAllEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMonthLockRepository(db.DB, zap.NewNop())

	locks, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, locks)
	assert.Empty(t, locks)
}

func TestMonthLockRepository_RemoveInvoice(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMonthLockRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	lock := newLock("2025-09-01", "inv-a", "inv-b")
	require.NoError(t, repo.Create(ctx, lock))

	deleted, err := repo.RemoveInvoice(ctx, lock.ID, "inv-a")
	require.NoError(t, err)
	assert.False(t, deleted)

	got, err := repo.GetByID(ctx, lock.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"inv-b"}, got.XeroInvoiceIDs)
	require.Len(t, got.InvoiceMetadata, 1)
	assert.Equal(t, "inv-b", got.InvoiceMetadata[0].ExternalInvoiceID)

	deleted, err = repo.RemoveInvoice(ctx, lock.ID, "inv-b")
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = repo.GetByID(ctx, lock.ID)
	assert.ErrorIs(t, err, port.ErrNotFound)
	locked, err := repo.IsLocked(ctx, billing.MustParseMonth("2025-09"))
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestMonthLockRepository_RemoveUnknownInvoice(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMonthLockRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	lock := newLock("2025-09-01", "inv-a")
	require.NoError(t, repo.Create(ctx, lock))

	_, err := repo.RemoveInvoice(ctx, lock.ID, "inv-missing")
	assert.ErrorIs(t, err, port.ErrNotFound)

	_, err = repo.RemoveInvoice(ctx, lock.ID+100, "inv-a")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestMonthLockRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMonthLockRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	lock := newLock("2025-09-01", "inv-a")
	require.NoError(t, repo.Create(ctx, lock))

	require.NoError(t, repo.Delete(ctx, lock.ID))
	assert.ErrorIs(t, repo.Delete(ctx, lock.ID), port.ErrNotFound)

	// The month can be locked again once re-opened
	require.NoError(t, repo.Create(ctx, newLock("2025-09-01", "inv-c")))
}

func TestMonthLockRepository_CreateRolledBackWithTransaction(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMonthLockRepository(db.DB, zap.NewNop())
	ctx := context.Background()

	boom := errors.New("second invoice failed")
	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, repo.Create(txCtx, newLock("2025-09-01", "inv-a")))

		locked, err := repo.IsLocked(txCtx, billing.MustParseMonth("2025-09"))
		require.NoError(t, err)
		assert.True(t, locked, "lock is visible inside its own transaction")
		return boom
	})
	require.ErrorIs(t, err, boom)

	locked, err := repo.IsLocked(ctx, billing.MustParseMonth("2025-09"))
	require.NoError(t, err)
	assert.False(t, locked)
}
