package billing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/msp-billing/internal/domain/entity"
)

// Error kinds. Every error returned by the billing services wraps exactly one.
var (
	// ErrValidation covers missing ticket descriptions, empty draft lists and malformed months
	ErrValidation = errors.New("validation error")

	// ErrInvoiceLock is returned when the month is already locked
	ErrInvoiceLock = errors.New("invoice lock error")

	// ErrXeroConnection is returned when no active accounting connection exists
	ErrXeroConnection = errors.New("xero connection error")

	// ErrXeroSetup is returned when the required catalog item is missing remotely
	ErrXeroSetup = errors.New("xero setup error")

	// ErrXeroAPI is returned when a remote call fails during generation
	ErrXeroAPI = errors.New("xero api error")

	// ErrDatabase is returned when the local write fails after remote invoices were created
	ErrDatabase = errors.New("database error")

	// ErrNotFound is returned when a lock or an invoice on a lock does not exist
	ErrNotFound = errors.New("not found")
)

// Machine-readable error codes
const (
	CodeMalformedMonth     = "MALFORMED_MONTH"
	CodeMissingDescription = "MISSING_DESCRIPTION"
	CodeNoDrafts           = "NO_DRAFTS"
	CodeMonthLocked        = "MONTH_LOCKED"
	CodeNoConnection       = "NO_CONNECTION"
	CodeTokenRefresh       = "TOKEN_REFRESH_FAILED"
	CodeCatalogItemMissing = "CATALOG_ITEM_MISSING"
	CodeRateLimited        = "RATE_LIMITED"
	CodeRemoteValidation   = "REMOTE_VALIDATION"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeRemoteError        = "REMOTE_ERROR"
	CodeRemoteTimeout      = "REMOTE_TIMEOUT"
	CodeLockCreateFailed   = "LOCK_CREATE_FAILED"
	CodeTicketTouchFailed  = "TICKET_TOUCH_FAILED"
	CodeCommitFailed       = "COMMIT_FAILED"
	CodeLockNotFound       = "LOCK_NOT_FOUND"
	CodeInvoiceNotFound    = "INVOICE_NOT_FOUND"
	CodeStorage            = "STORAGE_ERROR"
)

// ReconciliationWarning is attached to every error raised after at least one
// external invoice may have been created.
const ReconciliationWarning = "invoices may already exist in Xero without a local month lock; " +
	"verify the listed invoices in Xero and reconcile manually before retrying"

// Error is the structured error returned by the billing services
type Error struct {
	// Kind is one of the Err* sentinels above
	Kind    error
	Code    string
	Message string

	// RetryAfter is the remote's suggested delay for rate-limited calls
	RetryAfter time.Duration

	// TicketIDs lists offending tickets for validation failures
	TicketIDs []int64

	// InvoicesCreated lists external invoices created before the failure
	InvoicesCreated []entity.InvoiceMetadata

	// FailedClient names the client whose submission failed, if any
	FailedClient string

	// ReconciliationRequired is set when remote state may diverge from the local store
	ReconciliationRequired bool

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the kind sentinel of err, or nil when err is not a billing error
func KindOf(err error) error {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return nil
}

// NewValidationError builds a validation error
func NewValidationError(code, format string, args ...interface{}) *Error {
	return &Error{Kind: ErrValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// MissingDescriptionError lists every ticket lacking a description so they
// can all be fixed in one pass.
func MissingDescriptionError(ticketIDs []int64) *Error {
	ids := make([]string, len(ticketIDs))
	for i, id := range ticketIDs {
		ids[i] = fmt.Sprintf("#%d", id)
	}
	return &Error{
		Kind:      ErrValidation,
		Code:      CodeMissingDescription,
		Message:   fmt.Sprintf("%d ticket(s) have no description: %s", len(ticketIDs), strings.Join(ids, ", ")),
		TicketIDs: append([]int64(nil), ticketIDs...),
	}
}

// MonthLockedError reports that month m has already been billed
func MonthLockedError(m Month) *Error {
	return &Error{
		Kind:    ErrInvoiceLock,
		Code:    CodeMonthLocked,
		Message: fmt.Sprintf("month %s is already locked; delete the lock before generating again", m),
	}
}

// NotFoundError builds a not-found error
func NotFoundError(code, format string, args ...interface{}) *Error {
	return &Error{Kind: ErrNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}
