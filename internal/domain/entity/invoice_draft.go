package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the status an invoice is created with in the accounting system
type InvoiceStatus string

const (
	InvoiceStatusDraft      InvoiceStatus = "DRAFT"
	InvoiceStatusAuthorised InvoiceStatus = "AUTHORISED"
)

// IsValid reports whether the status may be sent to the accounting system
func (s InvoiceStatus) IsValid() bool {
	return s == InvoiceStatusDraft || s == InvoiceStatusAuthorised
}

// InvoiceLineItem is one line of an invoice draft.
// A nil UnitAmount means the rate comes from the catalog item.
type InvoiceLineItem struct {
	Description string
	Quantity    decimal.Decimal
	UnitAmount  *decimal.Decimal
	ItemCode    string
	TicketID    int64
}

// InvoiceDraft is an unsent invoice for one client. It is never persisted.
type InvoiceDraft struct {
	ClientID           int64
	ClientName         string
	ExternalCustomerID string
	InvoiceDate        time.Time
	DueDate            time.Time
	LineItems          []InvoiceLineItem
	Status             InvoiceStatus
	Reference          string
	BillableHours      decimal.Decimal
}

// TicketIDs returns the distinct ticket ids referenced by the draft's lines
func (d *InvoiceDraft) TicketIDs() []int64 {
	seen := make(map[int64]bool, len(d.LineItems))
	ids := make([]int64, 0, len(d.LineItems))
	for _, line := range d.LineItems {
		if seen[line.TicketID] {
			continue
		}
		seen[line.TicketID] = true
		ids = append(ids, line.TicketID)
	}
	return ids
}
