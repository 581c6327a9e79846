package service

import (
	"context"
	"fmt"
	"io"

	"github.com/garyjia/msp-billing/internal/application/port"
	"github.com/garyjia/msp-billing/internal/domain/billing"
	"github.com/garyjia/msp-billing/internal/domain/entity"
)

// PreviewService computes the billing preview of a month
type PreviewService interface {
	// Preview never fails because the month is locked; the lock is reported in IsLocked
	Preview(ctx context.Context, month string) (*entity.BillingPreview, error)

	// Export writes the preview of month as a spreadsheet to w
	Export(ctx context.Context, month string, w io.Writer) error
}

type previewServiceImpl struct {
	timeEntries port.TimeEntryRepository
	locks       port.MonthLockRepository
	exporter    port.PreviewExporter
	logger      Logger
}

// NewPreviewService creates a new PreviewService
func NewPreviewService(
	timeEntries port.TimeEntryRepository,
	locks port.MonthLockRepository,
	exporter port.PreviewExporter,
	logger Logger,
) PreviewService {
	return &previewServiceImpl{
		timeEntries: timeEntries,
		locks:       locks,
		exporter:    exporter,
		logger:      logger,
	}
}

// Preview aggregates the month's time entries
func (s *previewServiceImpl) Preview(ctx context.Context, month string) (*entity.BillingPreview, error) {
	m, err := billing.ParseMonth(month)
	if err != nil {
		return nil, err
	}
	return s.preview(ctx, m)
}

func (s *previewServiceImpl) preview(ctx context.Context, m billing.Month) (*entity.BillingPreview, error) {
	locked, err := s.locks.IsLocked(ctx, m)
	if err != nil {
		s.logger.Error("Failed to read month lock", "error", err, "month", m.String())
		return nil, storageError(err, "read lock for %s", m)
	}

	rows, err := s.timeEntries.ListForMonth(ctx, m.Start(), m.NextStart())
	if err != nil {
		s.logger.Error("Failed to list time entries", "error", err, "month", m.String())
		return nil, storageError(err, "list time entries for %s", m)
	}

	return billing.BuildPreview(m, locked, rows), nil
}

// Export renders the month's preview through the configured exporter
func (s *previewServiceImpl) Export(ctx context.Context, month string, w io.Writer) error {
	preview, err := s.Preview(ctx, month)
	if err != nil {
		return err
	}

	if err := s.exporter.Export(preview, w); err != nil {
		s.logger.Error("Failed to export preview", "error", err, "month", preview.Month)
		return fmt.Errorf("export preview %s: %w", preview.Month, err)
	}

	s.logger.Info("Preview exported", "month", preview.Month, "clients", len(preview.Clients))
	return nil
}
