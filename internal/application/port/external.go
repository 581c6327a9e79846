package port

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/garyjia/msp-billing/internal/domain/entity"
)

// CreatedInvoice is the accounting system's acknowledgement of a new invoice
type CreatedInvoice struct {
	InvoiceID     string
	InvoiceNumber string
}

// AccountingClient is bound to one tenant of the accounting system
type AccountingClient interface {
	// VerifyCatalogItem reports whether the item code exists remotely
	VerifyCatalogItem(ctx context.Context, itemCode string) (bool, error)

	CreateInvoice(ctx context.Context, draft *entity.InvoiceDraft) (*CreatedInvoice, error)
}

// AccountingClientFactory produces a client for the active connection,
// refreshing its credential first when needed.
type AccountingClientFactory interface {
	ClientFor(ctx context.Context, conn *entity.AccountingConnection) (AccountingClient, error)
}

// TokenRefresher refreshes the credential of a connection and persists it.
// The stored credential is returned unchanged when it no longer expires
// within window, which happens when another caller refreshed first.
type TokenRefresher interface {
	Refresh(ctx context.Context, conn *entity.AccountingConnection, window time.Duration) (*entity.AccountingConnection, error)
}

// Remote error codes
const (
	RemoteRateLimited  = "RATE_LIMITED"
	RemoteValidation   = "REMOTE_VALIDATION"
	RemoteUnauthorized = "UNAUTHORIZED"
	RemoteFailure      = "REMOTE_ERROR"
)

// RemoteError is a classified failure returned by the accounting system
type RemoteError struct {
	Status     int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d (%s): %s", e.Status, e.Code, e.Message)
}

// ReconciliationAlert describes a run that left remote invoices without a local lock
type ReconciliationAlert struct {
	RunID           string
	Month           string
	Reason          string
	FailedClient    string
	InvoicesCreated []entity.InvoiceMetadata
}

// ReconciliationNotifier delivers reconciliation alerts to operators
type ReconciliationNotifier interface {
	NotifyReconciliation(ctx context.Context, alert ReconciliationAlert) error
}

// PreviewExporter renders a billing preview as a spreadsheet
type PreviewExporter interface {
	Export(preview *entity.BillingPreview, w io.Writer) error
}
