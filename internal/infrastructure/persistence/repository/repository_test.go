package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/msp-billing/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/msp-billing/migrations"
	"github.com/garyjia/msp-billing/pkg/database"
)

// setupTestDB opens a migrated SQLite database in a temporary directory
func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:         filepath.Join(t.TempDir(), "billing.db"),
		MaxOpenConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(migrations.FS))
	return sqlite.NewDB(db.DB, logger)
}

type seed struct {
	t  *testing.T
	db *sql.DB
}

func (s seed) client(name, xeroContactID string) int64 {
	var contact interface{}
	if xeroContactID != "" {
		contact = xeroContactID
	}
	return s.insert(`INSERT INTO clients (name, xero_contact_id) VALUES (?, ?)`, name, contact)
}

func (s seed) contact(clientID int64, name string) int64 {
	return s.insert(`INSERT INTO contacts (client_id, name) VALUES (?, ?)`, clientID, name)
}

func (s seed) ticket(clientID int64, contactID interface{}, description interface{}) int64 {
	return s.insert(`INSERT INTO tickets (client_id, contact_id, description) VALUES (?, ?, ?)`, clientID, contactID, description)
}

func (s seed) entry(ticketID int64, workDate, hours string, billable bool) int64 {
	return s.insert(`INSERT INTO time_entries (ticket_id, work_date, duration_hours, billable) VALUES (?, ?, ?, ?)`,
		ticketID, workDate, hours, billable)
}

func (s seed) insert(query string, args ...interface{}) int64 {
	s.t.Helper()
	result, err := s.db.ExecContext(context.Background(), query, args...)
	require.NoError(s.t, err)
	id, err := result.LastInsertId()
	require.NoError(s.t, err)
	return id
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}
