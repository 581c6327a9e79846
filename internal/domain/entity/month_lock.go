package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceMetadata describes one external invoice recorded on a month lock
type InvoiceMetadata struct {
	ClientID          int64           `json:"clientId"`
	ClientName        string          `json:"clientName"`
	ExternalInvoiceID string          `json:"xeroInvoiceId"`
	Hours             decimal.Decimal `json:"hours"`
	LineItemCount     int             `json:"lineItemCount"`
}

// MonthLock records that a calendar month has been billed.
// Month holds the first-of-month key (YYYY-MM-01) and is unique.
type MonthLock struct {
	ID              int64             `json:"id"`
	Month           string            `json:"month"`
	XeroInvoiceIDs  []string          `json:"xeroInvoiceIds"`
	InvoiceMetadata []InvoiceMetadata `json:"invoiceMetadata"`
	LockedBy        string            `json:"lockedBy,omitempty"`
	LockedAt        time.Time         `json:"lockedAt"`
}

// HasInvoice reports whether the external invoice id is recorded on the lock
func (l *MonthLock) HasInvoice(externalInvoiceID string) bool {
	for _, id := range l.XeroInvoiceIDs {
		if id == externalInvoiceID {
			return true
		}
	}
	return false
}

// WithoutInvoice returns a copy of the lock with the invoice id and its
// metadata entry removed.
func (l *MonthLock) WithoutInvoice(externalInvoiceID string) *MonthLock {
	out := *l
	out.XeroInvoiceIDs = make([]string, 0, len(l.XeroInvoiceIDs))
	for _, id := range l.XeroInvoiceIDs {
		if id != externalInvoiceID {
			out.XeroInvoiceIDs = append(out.XeroInvoiceIDs, id)
		}
	}
	out.InvoiceMetadata = make([]InvoiceMetadata, 0, len(l.InvoiceMetadata))
	for _, meta := range l.InvoiceMetadata {
		if meta.ExternalInvoiceID != externalInvoiceID {
			out.InvoiceMetadata = append(out.InvoiceMetadata, meta)
		}
	}
	return &out
}
