package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/msp-billing/internal/application/port"
	"github.com/garyjia/msp-billing/internal/domain/entity"
	"github.com/garyjia/msp-billing/internal/infrastructure/persistence/sqlite"
)

const dateLayout = "2006-01-02"

// TimeEntryRepository implements port.TimeEntryRepository
type TimeEntryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTimeEntryRepository creates a new time entry repository
func NewTimeEntryRepository(db *sql.DB, logger *zap.Logger) port.TimeEntryRepository {
	return &TimeEntryRepository{
		db:     db,
		logger: logger,
	}
}

// ListForMonth returns the entries of [start, end) joined with ticket, client and contact
func (r *TimeEntryRepository) ListForMonth(ctx context.Context, start, end time.Time) ([]entity.TimeEntryRow, error) {
	query := `
		SELECT te.id, te.work_date, te.duration_hours, te.billable,
			t.id, COALESCE(t.description, ''),
			c.id, c.name, COALESCE(c.xero_contact_id, ''),
			t.contact_id, COALESCE(ct.name, '')
		FROM time_entries te
		JOIN tickets t ON t.id = te.ticket_id
		JOIN clients c ON c.id = t.client_id
		LEFT JOIN contacts ct ON ct.id = t.contact_id
		WHERE te.deleted_at IS NULL
			AND te.work_date >= ?
			AND te.work_date < ?
		ORDER BY c.name, t.id, te.work_date, te.id
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query,
		start.UTC().Format(dateLayout),
		end.UTC().Format(dateLayout),
	)
	if err != nil {
		r.logger.Error("Failed to query time entries", zap.Time("start", start), zap.Error(err))
		return nil, fmt.Errorf("failed to query time entries: %w", err)
	}
	defer rows.Close()

	var result []entity.TimeEntryRow
	for rows.Next() {
		var (
			row       entity.TimeEntryRow
			contactID sql.NullInt64
		)
		err := rows.Scan(
			&row.TimeEntryID,
			&row.WorkDate,
			&row.DurationHours,
			&row.Billable,
			&row.TicketID,
			&row.Description,
			&row.ClientID,
			&row.ClientName,
			&row.ExternalCustomerID,
			&contactID,
			&row.ContactName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		if contactID.Valid {
			id := contactID.Int64
			row.ContactID = &id
		}
		row.MissingDescription = strings.TrimSpace(row.Description) == ""
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate time entries: %w", err)
	}

	return result, nil
}

// TicketRepository implements port.TicketRepository
type TicketRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTicketRepository creates a new ticket repository
func NewTicketRepository(db *sql.DB, logger *zap.Logger) port.TicketRepository {
	return &TicketRepository{
		db:     db,
		logger: logger,
	}
}

// Touch bumps updated_at of the given tickets
func (r *TicketRepository) Touch(ctx context.Context, ticketIDs []int64, at time.Time) error {
	if len(ticketIDs) == 0 {
		return nil
	}

	placeholders := make([]string, len(ticketIDs))
	args := make([]interface{}, 0, len(ticketIDs)+1)
	args = append(args, at.UTC())
	for i, id := range ticketIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`UPDATE tickets SET updated_at = ? WHERE id IN (%s)`, strings.Join(placeholders, ", "))
	if _, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to touch tickets", zap.Int("count", len(ticketIDs)), zap.Error(err))
		return fmt.Errorf("failed to touch tickets: %w", err)
	}
	return nil
}

// Verify interface compliance
var (
	_ port.TimeEntryRepository = (*TimeEntryRepository)(nil)
	_ port.TicketRepository    = (*TicketRepository)(nil)
)
