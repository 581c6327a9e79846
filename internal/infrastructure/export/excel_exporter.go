// Package export renders billing previews as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/msp-billing/internal/application/port"
	"github.com/garyjia/msp-billing/internal/domain/entity"
)

const (
	summarySheet = "Summary"
	detailSheet  = "Detail"
)

var (
	summaryHeader = []interface{}{"Client", "Xero Contact", "Tickets", "Billable Hours"}
	detailHeader  = []interface{}{"Client", "Ticket", "Description", "Contact", "Work Date", "Hours", "Billable", "Missing Description"}
)

// ExcelExporter writes a preview as an .xlsx workbook with a per-client
// summary sheet and a per-entry detail sheet.
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

// Export writes the workbook to w
func (e *ExcelExporter) Export(preview *entity.BillingPreview, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(detailSheet); err != nil {
		return fmt.Errorf("failed to create detail sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := e.writeSummary(f, preview, bold); err != nil {
		return err
	}
	if err := e.writeDetail(f, preview, bold); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Debug("Billing preview exported",
		zap.String("month", preview.Month),
		zap.Int("clients", len(preview.Clients)))
	return nil
}

func (e *ExcelExporter) writeSummary(f *excelize.File, preview *entity.BillingPreview, headerStyle int) error {
	if err := writeHeader(f, summarySheet, summaryHeader, headerStyle); err != nil {
		return err
	}

	row := 2
	for _, client := range preview.Clients {
		values := []interface{}{
			client.ClientName,
			client.ExternalCustomerID,
			len(client.Tickets),
			client.SubtotalHours.InexactFloat64(),
		}
		if err := setRow(f, summarySheet, row, values); err != nil {
			return err
		}
		row++
	}

	total := []interface{}{"Total", "", "", preview.TotalBillableHours.InexactFloat64()}
	if err := setRow(f, summarySheet, row, total); err != nil {
		return err
	}
	totalCell, _ := excelize.CoordinatesToCellName(1, row)
	endCell, _ := excelize.CoordinatesToCellName(len(total), row)
	if err := f.SetCellStyle(summarySheet, totalCell, endCell, headerStyle); err != nil {
		return fmt.Errorf("failed to style total row: %w", err)
	}
	return nil
}

func (e *ExcelExporter) writeDetail(f *excelize.File, preview *entity.BillingPreview, headerStyle int) error {
	if err := writeHeader(f, detailSheet, detailHeader, headerStyle); err != nil {
		return err
	}

	row := 2
	for _, client := range preview.Clients {
		for _, ticket := range client.Tickets {
			for _, entry := range ticket.TimeEntries {
				values := []interface{}{
					client.ClientName,
					ticket.TicketID,
					ticket.Description,
					ticket.ContactName,
					entry.WorkDate,
					entry.DurationHours.InexactFloat64(),
					yesNo(entry.Billable),
					yesNo(ticket.MissingDescription),
				}
				if err := setRow(f, detailSheet, row, values); err != nil {
					return err
				}
				row++
			}
		}
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, header []interface{}, style int) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	end, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", end, style); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// Verify interface compliance
var _ port.PreviewExporter = (*ExcelExporter)(nil)
