package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/msp-billing/internal/domain/entity"
)

// LineConfig holds the billing settings applied to every draft
type LineConfig struct {
	// CatalogItemCode is the accounting catalog item every line references
	CatalogItemCode string

	// Status is the status invoices are created with
	Status entity.InvoiceStatus
}

// SkippedClient is a client left out of the drafts
type SkippedClient struct {
	ClientID   int64           `json:"clientId"`
	ClientName string          `json:"clientName"`
	Hours      decimal.Decimal `json:"hours"`
	Reason     string          `json:"reason"`
}

// BuildResult is the output of BuildDrafts
type BuildResult struct {
	Drafts  []entity.InvoiceDraft
	Skipped []SkippedClient
}

const (
	SkipReasonNoCustomerID = "client has no Xero contact mapping"
	SkipReasonNoLines      = "client has no invoiceable hours"
)

// BuildDrafts turns a preview into one invoice draft per client.
//
// The invoice date is the last day of the billed month; the due date is the
// last day of the month containing now, not of the billed month.
func BuildDrafts(preview *entity.BillingPreview, cfg LineConfig, now time.Time) (BuildResult, error) {
	m, err := ParseMonth(preview.Month)
	if err != nil {
		return BuildResult{}, err
	}

	result := BuildResult{Drafts: make([]entity.InvoiceDraft, 0, len(preview.Clients))}
	invoiceDate := m.LastDay()
	dueDate := LastDayOfMonth(now)

	for _, client := range preview.Clients {
		if client.ExternalCustomerID == "" {
			result.Skipped = append(result.Skipped, SkippedClient{
				ClientID:   client.ClientID,
				ClientName: client.ClientName,
				Hours:      client.SubtotalHours,
				Reason:     SkipReasonNoCustomerID,
			})
			continue
		}

		var lines []entity.InvoiceLineItem
		for _, ticket := range client.Tickets {
			lines = append(lines, ticketLines(ticket, cfg.CatalogItemCode)...)
		}
		if len(lines) == 0 {
			result.Skipped = append(result.Skipped, SkippedClient{
				ClientID:   client.ClientID,
				ClientName: client.ClientName,
				Hours:      client.SubtotalHours,
				Reason:     SkipReasonNoLines,
			})
			continue
		}

		result.Drafts = append(result.Drafts, entity.InvoiceDraft{
			ClientID:           client.ClientID,
			ClientName:         client.ClientName,
			ExternalCustomerID: client.ExternalCustomerID,
			InvoiceDate:        invoiceDate,
			DueDate:            dueDate,
			LineItems:          lines,
			Status:             cfg.Status,
			Reference:          m.Reference(),
			BillableHours:      client.SubtotalHours,
		})
	}

	return result, nil
}

// ticketLines applies the mixed-billable split: billable hours go on a line
// priced by the catalog item, non-billable hours on a zero-rated line.
func ticketLines(ticket entity.TicketBillingGroup, itemCode string) []entity.InvoiceLineItem {
	hasBillable := ticket.BillableHours.IsPositive()
	hasNonBillable := ticket.NonBillableHours.IsPositive()
	base := fmt.Sprintf("#%d %s", ticket.TicketID, ticket.Description)

	switch {
	case hasBillable && hasNonBillable:
		zero := decimal.Zero
		return []entity.InvoiceLineItem{
			{
				Description: base + " (billable)",
				Quantity:    ticket.BillableHours,
				ItemCode:    itemCode,
				TicketID:    ticket.TicketID,
			},
			{
				Description: base + " (non-billable, no charge)",
				Quantity:    ticket.NonBillableHours,
				UnitAmount:  &zero,
				ItemCode:    itemCode,
				TicketID:    ticket.TicketID,
			},
		}
	case hasBillable:
		return []entity.InvoiceLineItem{{
			Description: base,
			Quantity:    ticket.BillableHours,
			ItemCode:    itemCode,
			TicketID:    ticket.TicketID,
		}}
	case hasNonBillable:
		zero := decimal.Zero
		return []entity.InvoiceLineItem{{
			Description: base + " (non-billable, no charge)",
			Quantity:    ticket.NonBillableHours,
			UnitAmount:  &zero,
			ItemCode:    itemCode,
			TicketID:    ticket.TicketID,
		}}
	default:
		return nil
	}
}
