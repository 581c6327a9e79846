package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/msp-billing/internal/domain/entity"
)

var testLineConfig = LineConfig{CatalogItemCode: "LABOR", Status: entity.InvoiceStatusDraft}

func ticketGroup(id int64, description, billable, nonBillable string) entity.TicketBillingGroup {
	b := decimal.RequireFromString(billable)
	nb := decimal.RequireFromString(nonBillable)
	return entity.TicketBillingGroup{
		TicketID:         id,
		Description:      description,
		TotalHours:       b.Add(nb),
		BillableHours:    b,
		NonBillableHours: nb,
		Billable:         b.IsPositive(),
	}
}

func previewWith(clients ...entity.ClientBillingGroup) *entity.BillingPreview {
	return &entity.BillingPreview{
		Month:              "2025-09",
		TotalBillableHours: TotalBillableHours(clients),
		Clients:            clients,
	}
}

func TestBuildDrafts_MixedTicketSplitsIntoTwoLines(t *testing.T) {
	preview := previewWith(entity.ClientBillingGroup{
		ClientID:           1,
		ClientName:         "Acme",
		ExternalCustomerID: "contact-1",
		SubtotalHours:      decimal.NewFromInt(3),
		Tickets:            []entity.TicketBillingGroup{ticketGroup(7, "Server migration", "3", "2")},
	})

	result, err := BuildDrafts(preview, testLineConfig, time.Date(2025, time.October, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, result.Drafts, 1)

	lines := result.Drafts[0].LineItems
	require.Len(t, lines, 2)

	assert.Nil(t, lines[0].UnitAmount)
	assert.True(t, lines[0].Quantity.Equal(decimal.NewFromInt(3)))
	assert.Contains(t, lines[0].Description, "(billable)")

	require.NotNil(t, lines[1].UnitAmount)
	assert.True(t, lines[1].UnitAmount.IsZero())
	assert.True(t, lines[1].Quantity.Equal(decimal.NewFromInt(2)))
	assert.Contains(t, lines[1].Description, "non-billable")

	for _, line := range lines {
		assert.Equal(t, "LABOR", line.ItemCode)
		assert.Equal(t, int64(7), line.TicketID)
	}
}

func TestBuildDrafts_SingleKindTickets(t *testing.T) {
	preview := previewWith(entity.ClientBillingGroup{
		ClientID:           1,
		ExternalCustomerID: "contact-1",
		Tickets: []entity.TicketBillingGroup{
			ticketGroup(1, "Billable only", "4", "0"),
			ticketGroup(2, "Internal only", "0", "1.5"),
		},
	})

	result, err := BuildDrafts(preview, testLineConfig, time.Now())
	require.NoError(t, err)
	require.Len(t, result.Drafts, 1)

	lines := result.Drafts[0].LineItems
	require.Len(t, lines, 2)
	assert.Equal(t, "#1 Billable only", lines[0].Description)
	assert.Nil(t, lines[0].UnitAmount)
	require.NotNil(t, lines[1].UnitAmount)
	assert.True(t, lines[1].UnitAmount.IsZero())
	assert.Equal(t, []int64{1, 2}, result.Drafts[0].TicketIDs())
}

func TestBuildDrafts_SkipsClientWithoutCustomerID(t *testing.T) {
	preview := previewWith(entity.ClientBillingGroup{
		ClientID:      9,
		ClientName:    "Unmapped",
		SubtotalHours: decimal.NewFromInt(40),
		Tickets:       []entity.TicketBillingGroup{ticketGroup(1, "Lots of work", "40", "0")},
	})

	result, err := BuildDrafts(preview, testLineConfig, time.Now())
	require.NoError(t, err)
	assert.Empty(t, result.Drafts)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, int64(9), result.Skipped[0].ClientID)
	assert.Equal(t, SkipReasonNoCustomerID, result.Skipped[0].Reason)
}

func TestBuildDrafts_SkipsClientWithoutLines(t *testing.T) {
	preview := previewWith(entity.ClientBillingGroup{
		ClientID:           3,
		ExternalCustomerID: "contact-3",
		Tickets:            []entity.TicketBillingGroup{ticketGroup(1, "Nothing logged", "0", "0")},
	})

	result, err := BuildDrafts(preview, testLineConfig, time.Now())
	require.NoError(t, err)
	assert.Empty(t, result.Drafts)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, SkipReasonNoLines, result.Skipped[0].Reason)
}

func TestBuildDrafts_Dates(t *testing.T) {
	preview := previewWith(entity.ClientBillingGroup{
		ClientID:           1,
		ExternalCustomerID: "contact-1",
		Tickets:            []entity.TicketBillingGroup{ticketGroup(1, "Work", "1", "0")},
	})
	// Generating September's invoices in November: due date follows the
	// generation month, not the billed month.
	now := time.Date(2025, time.November, 12, 16, 30, 0, 0, time.UTC)

	result, err := BuildDrafts(preview, LineConfig{CatalogItemCode: "LABOR", Status: entity.InvoiceStatusAuthorised}, now)
	require.NoError(t, err)
	require.Len(t, result.Drafts, 1)

	draft := result.Drafts[0]
	assert.Equal(t, "2025-09-30", draft.InvoiceDate.Format("2006-01-02"))
	assert.Equal(t, "2025-11-30", draft.DueDate.Format("2006-01-02"))
	assert.Equal(t, "September 2025 Services", draft.Reference)
	assert.Equal(t, entity.InvoiceStatusAuthorised, draft.Status)
}

func TestBuildDrafts_IsDeterministic(t *testing.T) {
	preview := previewWith(
		entity.ClientBillingGroup{ClientID: 1, ExternalCustomerID: "a", Tickets: []entity.TicketBillingGroup{ticketGroup(1, "x", "1", "1")}},
		entity.ClientBillingGroup{ClientID: 2, ExternalCustomerID: "b", Tickets: []entity.TicketBillingGroup{ticketGroup(2, "y", "2", "0")}},
	)
	now := time.Date(2025, time.October, 1, 0, 0, 0, 0, time.UTC)

	first, err := BuildDrafts(preview, testLineConfig, now)
	require.NoError(t, err)
	second, err := BuildDrafts(preview, testLineConfig, now)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first.Drafts, 2)
	assert.Equal(t, int64(1), first.Drafts[0].ClientID)
	assert.Equal(t, int64(2), first.Drafts[1].ClientID)
}

func TestBuildDrafts_RejectsMalformedMonth(t *testing.T) {
	_, err := BuildDrafts(&entity.BillingPreview{Month: "Sept"}, testLineConfig, time.Now())
	assert.ErrorIs(t, err, ErrValidation)
}
