package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/msp-billing/internal/application/port"
	"github.com/garyjia/msp-billing/internal/domain/entity"
	"github.com/garyjia/msp-billing/internal/infrastructure/persistence/sqlite"
)

// ConnectionRepository implements port.ConnectionRepository
type ConnectionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewConnectionRepository creates a new Xero connection repository
func NewConnectionRepository(db *sql.DB, logger *zap.Logger) port.ConnectionRepository {
	return &ConnectionRepository{
		db:     db,
		logger: logger,
	}
}

// GetActive returns the active connection, or nil when none is stored
func (r *ConnectionRepository) GetActive(ctx context.Context) (*entity.AccountingConnection, error) {
	query := `
		SELECT id, tenant_id, COALESCE(tenant_name, ''), access_token, refresh_token,
			expires_at, active, created_at, updated_at
		FROM xero_connections
		WHERE active = 1
		ORDER BY id DESC
		LIMIT 1
	`

	var conn entity.AccountingConnection
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query).Scan(
		&conn.ID,
		&conn.TenantID,
		&conn.TenantName,
		&conn.AccessToken,
		&conn.RefreshToken,
		&conn.ExpiresAt,
		&conn.Active,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get active connection", zap.Error(err))
		return nil, fmt.Errorf("failed to get active connection: %w", err)
	}
	return &conn, nil
}

// Save deactivates previous connections and stores conn as the active one
func (r *ConnectionRepository) Save(ctx context.Context, conn *entity.AccountingConnection) error {
	exec := sqlite.ExecutorFor(ctx, r.db)
	now := time.Now().UTC()

	if _, err := exec.ExecContext(ctx, `UPDATE xero_connections SET active = 0, updated_at = ? WHERE active = 1`, now); err != nil {
		r.logger.Error("Failed to deactivate connections", zap.Error(err))
		return fmt.Errorf("failed to deactivate connections: %w", err)
	}

	result, err := exec.ExecContext(ctx, `
		INSERT INTO xero_connections (
			tenant_id, tenant_name, access_token, refresh_token, expires_at,
			active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 1, ?, ?)
	`,
		conn.TenantID,
		conn.TenantName,
		conn.AccessToken,
		conn.RefreshToken,
		conn.ExpiresAt.UTC(),
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to save connection", zap.String("tenant_id", conn.TenantID), zap.Error(err))
		return fmt.Errorf("failed to save connection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	conn.ID = id
	conn.Active = true
	conn.CreatedAt = now
	conn.UpdatedAt = now
	return nil
}

// UpdateTokens stores a refreshed credential
func (r *ConnectionRepository) UpdateTokens(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `
		UPDATE xero_connections
		SET access_token = ?, refresh_token = ?, expires_at = ?, updated_at = ?
		WHERE id = ?
	`, accessToken, refreshToken, expiresAt.UTC(), time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update tokens", zap.Int64("connection_id", id), zap.Error(err))
		return fmt.Errorf("failed to update tokens: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("connection %d: %w", id, port.ErrNotFound)
	}
	return nil
}

// Verify interface compliance
var _ port.ConnectionRepository = (*ConnectionRepository)(nil)
