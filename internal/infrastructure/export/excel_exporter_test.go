package export

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/msp-billing/internal/domain/entity"
)

func samplePreview() *entity.BillingPreview {
	return &entity.BillingPreview{
		Month:              "2025-09-01",
		TotalBillableHours: decimal.RequireFromString("3.5"),
		Clients: []entity.ClientBillingGroup{
			{
				ClientID:           1,
				ClientName:         "Acme Ltd",
				ExternalCustomerID: "xero-acme",
				SubtotalHours:      decimal.RequireFromString("3.5"),
				Tickets: []entity.TicketBillingGroup{
					{
						TicketID:    7,
						Description: "Server migration",
						ContactName: "Jane Doe",
						TimeEntries: []entity.TimeEntrySummary{
							{ID: 1, WorkDate: "2025-09-01", DurationHours: decimal.NewFromInt(2), Billable: false},
							{ID: 2, WorkDate: "2025-09-30", DurationHours: decimal.RequireFromString("3.5"), Billable: true},
						},
					},
				},
			},
		},
	}
}

func TestExcelExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExcelExporter(zap.NewNop()).Export(samplePreview(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Detail"}, f.GetSheetList())

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, "Client", summary[0][0])
	assert.Equal(t, []string{"Acme Ltd", "xero-acme", "1", "3.5"}, summary[1])
	assert.Equal(t, "Total", summary[2][0])
	assert.Equal(t, "3.5", summary[2][3])

	detail, err := f.GetRows("Detail")
	require.NoError(t, err)
	require.Len(t, detail, 3)
	assert.Equal(t, []string{"Acme Ltd", "7", "Server migration", "Jane Doe", "2025-09-01", "2", "No", "No"}, detail[1])
	assert.Equal(t, "Yes", detail[2][6])
}

func TestExcelExporter_EmptyPreview(t *testing.T) {
	var buf bytes.Buffer
	preview := &entity.BillingPreview{Month: "2025-02-01", TotalBillableHours: decimal.Zero}
	require.NoError(t, NewExcelExporter(zap.NewNop()).Export(preview, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, "Total", summary[1][0])

	detail, err := f.GetRows("Detail")
	require.NoError(t, err)
	assert.Len(t, detail, 1)
}
