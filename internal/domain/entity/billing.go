package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeEntryRow is one row of the month billing query: a time entry joined
// with its ticket, client and contact.
type TimeEntryRow struct {
	TimeEntryID        int64
	WorkDate           time.Time
	DurationHours      decimal.Decimal
	Billable           bool
	TicketID           int64
	Description        string
	ClientID           int64
	ClientName         string
	ExternalCustomerID string
	ContactID          *int64
	ContactName        string
	MissingDescription bool
}

// TimeEntrySummary is a time entry as shown in the billing preview
type TimeEntrySummary struct {
	ID            int64           `json:"id"`
	WorkDate      string          `json:"workDate"`
	DurationHours decimal.Decimal `json:"durationHours"`
	Billable      bool            `json:"billable"`
}

// TicketBillingGroup aggregates the time entries of one ticket.
// TotalHours always equals BillableHours + NonBillableHours.
type TicketBillingGroup struct {
	TicketID           int64              `json:"ticketId"`
	Description        string             `json:"description"`
	ContactID          *int64             `json:"contactId"`
	ContactName        string             `json:"contactName"`
	TotalHours         decimal.Decimal    `json:"totalHours"`
	BillableHours      decimal.Decimal    `json:"billableHours"`
	NonBillableHours   decimal.Decimal    `json:"nonBillableHours"`
	Billable           bool               `json:"billable"`
	MissingDescription bool               `json:"missingDescription"`
	TimeEntries        []TimeEntrySummary `json:"timeEntries"`
}

// ClientBillingGroup aggregates the tickets of one client.
// SubtotalHours is the sum of billable hours only.
type ClientBillingGroup struct {
	ClientID           int64                `json:"clientId"`
	ClientName         string               `json:"clientName"`
	ExternalCustomerID string               `json:"externalCustomerId"`
	SubtotalHours      decimal.Decimal      `json:"subtotalHours"`
	Tickets            []TicketBillingGroup `json:"tickets"`
}

// BillingPreview is the aggregated, read-only view of one month of work.
// It is recomputed on every request and never persisted.
type BillingPreview struct {
	Month              string               `json:"month"`
	IsLocked           bool                 `json:"isLocked"`
	TotalBillableHours decimal.Decimal      `json:"totalBillableHours"`
	Clients            []ClientBillingGroup `json:"clients"`
}

// TicketsMissingDescription returns the ids of every ticket in the preview
// whose description is empty, in preview order.
func (p *BillingPreview) TicketsMissingDescription() []int64 {
	var ids []int64
	for _, client := range p.Clients {
		for _, ticket := range client.Tickets {
			if ticket.MissingDescription {
				ids = append(ids, ticket.TicketID)
			}
		}
	}
	return ids
}
