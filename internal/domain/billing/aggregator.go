package billing

import (
	"github.com/shopspring/decimal"

	"github.com/garyjia/msp-billing/internal/domain/entity"
)

// Aggregate groups time-entry rows by client, then by ticket, accumulating
// billable and non-billable hours. Groups keep the order in which they first
// appear in rows, so rows ordered by client name, ticket id and work date
// produce a deterministic tree.
func Aggregate(rows []entity.TimeEntryRow) []entity.ClientBillingGroup {
	clients := make([]entity.ClientBillingGroup, 0)
	clientIdx := make(map[int64]int)
	ticketIdx := make(map[int64]map[int64]int)

	for _, row := range rows {
		ci, ok := clientIdx[row.ClientID]
		if !ok {
			clients = append(clients, entity.ClientBillingGroup{
				ClientID:           row.ClientID,
				ClientName:         row.ClientName,
				ExternalCustomerID: row.ExternalCustomerID,
				SubtotalHours:      decimal.Zero,
				Tickets:            make([]entity.TicketBillingGroup, 0),
			})
			ci = len(clients) - 1
			clientIdx[row.ClientID] = ci
			ticketIdx[row.ClientID] = make(map[int64]int)
		}
		client := &clients[ci]

		ti, ok := ticketIdx[row.ClientID][row.TicketID]
		if !ok {
			client.Tickets = append(client.Tickets, entity.TicketBillingGroup{
				TicketID:           row.TicketID,
				Description:        row.Description,
				ContactID:          row.ContactID,
				ContactName:        row.ContactName,
				TotalHours:         decimal.Zero,
				BillableHours:      decimal.Zero,
				NonBillableHours:   decimal.Zero,
				MissingDescription: row.MissingDescription,
				TimeEntries:        make([]entity.TimeEntrySummary, 0),
			})
			ti = len(client.Tickets) - 1
			ticketIdx[row.ClientID][row.TicketID] = ti
		}
		ticket := &client.Tickets[ti]

		ticket.TotalHours = ticket.TotalHours.Add(row.DurationHours)
		if row.Billable {
			ticket.BillableHours = ticket.BillableHours.Add(row.DurationHours)
			ticket.Billable = true
			client.SubtotalHours = client.SubtotalHours.Add(row.DurationHours)
		} else {
			ticket.NonBillableHours = ticket.NonBillableHours.Add(row.DurationHours)
		}

		ticket.TimeEntries = append(ticket.TimeEntries, entity.TimeEntrySummary{
			ID:            row.TimeEntryID,
			WorkDate:      row.WorkDate.Format(dayLayout),
			DurationHours: row.DurationHours,
			Billable:      row.Billable,
		})
	}

	return clients
}

// TotalBillableHours sums the client subtotals
func TotalBillableHours(clients []entity.ClientBillingGroup) decimal.Decimal {
	total := decimal.Zero
	for _, c := range clients {
		total = total.Add(c.SubtotalHours)
	}
	return total
}

// BuildPreview aggregates rows into a preview for month m
func BuildPreview(m Month, locked bool, rows []entity.TimeEntryRow) *entity.BillingPreview {
	clients := Aggregate(rows)
	return &entity.BillingPreview{
		Month:              m.String(),
		IsLocked:           locked,
		TotalBillableHours: TotalBillableHours(clients),
		Clients:            clients,
	}
}
