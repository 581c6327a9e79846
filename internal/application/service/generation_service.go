package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/msp-billing/internal/application/port"
	"github.com/garyjia/msp-billing/internal/domain/billing"
	"github.com/garyjia/msp-billing/internal/domain/entity"
	"github.com/garyjia/msp-billing/internal/domain/workflow"
)

// GenerationConfig holds the invoicing policy applied to every run
type GenerationConfig struct {
	CatalogItemCode string
	InvoiceStatus   entity.InvoiceStatus

	// RemoteTimeout bounds each individual call to the accounting system
	RemoteTimeout time.Duration
}

// GenerationResult is returned by a successful run
type GenerationResult struct {
	RunID              string                  `json:"runId"`
	Month              string                  `json:"month"`
	ClientsInvoiced    int                     `json:"clientsInvoiced"`
	TotalBillableHours decimal.Decimal         `json:"totalBillableHours"`
	InvoiceIDs         []string                `json:"xeroInvoiceIds"`
	InvoiceStatus      entity.InvoiceStatus    `json:"invoiceStatus"`
	Lock               *entity.MonthLock       `json:"lock"`
	SkippedClients     []billing.SkippedClient `json:"skippedClients,omitempty"`
}

// GenerationService creates a month's invoices and locks the month
type GenerationService interface {
	Generate(ctx context.Context, month string) (*GenerationResult, error)
}

type generationServiceImpl struct {
	timeEntries port.TimeEntryRepository
	tickets     port.TicketRepository
	locks       port.MonthLockRepository
	connections port.ConnectionRepository
	clients     port.AccountingClientFactory
	txManager   port.TransactionManager
	notifier    port.ReconciliationNotifier
	cfg         GenerationConfig
	logger      Logger
	now         func() time.Time
}

// NewGenerationService creates a new GenerationService
func NewGenerationService(
	timeEntries port.TimeEntryRepository,
	tickets port.TicketRepository,
	locks port.MonthLockRepository,
	connections port.ConnectionRepository,
	clients port.AccountingClientFactory,
	txManager port.TransactionManager,
	notifier port.ReconciliationNotifier,
	cfg GenerationConfig,
	logger Logger,
) GenerationService {
	if cfg.InvoiceStatus == "" {
		cfg.InvoiceStatus = entity.InvoiceStatusDraft
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = 30 * time.Second
	}
	return &generationServiceImpl{
		timeEntries: timeEntries,
		tickets:     tickets,
		locks:       locks,
		connections: connections,
		clients:     clients,
		txManager:   txManager,
		notifier:    notifier,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// run carries the per-request state of one generation
type run struct {
	id       string
	operator string
	month    billing.Month
	machine  *workflow.Machine
}

// Generate runs the month-end workflow. Every failure leaves the month
// unlocked; failures after the first remote invoice are flagged for
// reconciliation.
//
// The run ignores cancellation of ctx: once started it finishes, bounded only
// by the per-call remote timeout, so a dropped caller cannot strand invoices.
func (s *generationServiceImpl) Generate(ctx context.Context, month string) (*GenerationResult, error) {
	ctx = context.WithoutCancel(ctx)
	r := &run{
		id:       uuid.NewString(),
		operator: OperatorFrom(ctx),
	}
	r.machine = workflow.NewGenerationBuilder().
		OnTransition(func(_ context.Context, t workflow.Transition) {
			s.logger.Info("Generation state changed",
				"run_id", r.id, "from", t.From.String(), "to", t.To.String(), "trigger", t.Trigger.String())
		}).
		Build(workflow.StateIdle)

	s.logger.Info("Invoice generation started", "run_id", r.id, "month", month, "operator", r.operator)

	result, err := s.generate(ctx, r, month)
	if err != nil {
		s.fire(ctx, r, workflow.TriggerFail)
		s.logger.Error("Invoice generation failed", "run_id", r.id, "month", month, "error", err)
		s.notifyIfDiverged(ctx, r, month, err)
		return nil, err
	}

	s.logger.Info("Invoice generation completed",
		"run_id", r.id,
		"month", result.Month,
		"clients_invoiced", result.ClientsInvoiced,
		"total_billable_hours", result.TotalBillableHours.String(),
		"lock_id", result.Lock.ID)
	return result, nil
}

func (s *generationServiceImpl) generate(ctx context.Context, r *run, month string) (*GenerationResult, error) {
	s.fire(ctx, r, workflow.TriggerStart)

	m, err := billing.ParseMonth(month)
	if err != nil {
		return nil, err
	}
	r.month = m

	client, preview, err := s.validate(ctx, r)
	if err != nil {
		return nil, err
	}

	s.fire(ctx, r, workflow.TriggerBuild)
	built, err := billing.BuildDrafts(preview, billing.LineConfig{
		CatalogItemCode: s.cfg.CatalogItemCode,
		Status:          s.cfg.InvoiceStatus,
	}, s.now())
	if err != nil {
		return nil, err
	}
	for _, skipped := range built.Skipped {
		s.logger.Warn("Client skipped",
			"run_id", r.id,
			"client_id", skipped.ClientID,
			"client_name", skipped.ClientName,
			"hours", skipped.Hours.String(),
			"reason", skipped.Reason)
	}
	if len(built.Drafts) == 0 {
		return nil, billing.NewValidationError(billing.CodeNoDrafts,
			"no invoices to create for %s: every client lacks a Xero contact or billable lines", m)
	}

	lock, err := s.submitAndLock(ctx, r, client, built.Drafts)
	if err != nil {
		return nil, err
	}
	s.fire(ctx, r, workflow.TriggerComplete)

	total := decimal.Zero
	for _, draft := range built.Drafts {
		total = total.Add(draft.BillableHours)
	}

	return &GenerationResult{
		RunID:              r.id,
		Month:              m.String(),
		ClientsInvoiced:    len(built.Drafts),
		TotalBillableHours: total,
		InvoiceIDs:         lock.XeroInvoiceIDs,
		InvoiceStatus:      s.cfg.InvoiceStatus,
		Lock:               lock,
		SkippedClients:     built.Skipped,
	}, nil
}

// validate checks every precondition that can be checked before the transaction
func (s *generationServiceImpl) validate(ctx context.Context, r *run) (port.AccountingClient, *entity.BillingPreview, error) {
	locked, err := s.locks.IsLocked(ctx, r.month)
	if err != nil {
		return nil, nil, storageError(err, "read lock for %s", r.month)
	}
	if locked {
		return nil, nil, billing.MonthLockedError(r.month)
	}

	rows, err := s.timeEntries.ListForMonth(ctx, r.month.Start(), r.month.NextStart())
	if err != nil {
		return nil, nil, storageError(err, "list time entries for %s", r.month)
	}
	preview := billing.BuildPreview(r.month, false, rows)
	if missing := preview.TicketsMissingDescription(); len(missing) > 0 {
		return nil, nil, billing.MissingDescriptionError(missing)
	}

	conn, err := s.connections.GetActive(ctx)
	if err != nil {
		return nil, nil, storageError(err, "read active Xero connection")
	}
	if conn == nil {
		return nil, nil, &billing.Error{
			Kind:    billing.ErrXeroConnection,
			Code:    billing.CodeNoConnection,
			Message: "no active Xero connection; connect an organisation before generating invoices",
		}
	}

	client, err := s.clients.ClientFor(ctx, conn)
	if err != nil {
		return nil, nil, &billing.Error{
			Kind:    billing.ErrXeroConnection,
			Code:    billing.CodeTokenRefresh,
			Message: fmt.Sprintf("could not authorise with Xero tenant %s; reconnect the organisation", conn.TenantName),
			Err:     err,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.RemoteTimeout)
	exists, err := client.VerifyCatalogItem(callCtx, s.cfg.CatalogItemCode)
	cancel()
	if err != nil {
		return nil, nil, remoteAPIError(err, "", nil)
	}
	if !exists {
		return nil, nil, &billing.Error{
			Kind:    billing.ErrXeroSetup,
			Code:    billing.CodeCatalogItemMissing,
			Message: fmt.Sprintf("catalog item %q does not exist in Xero; create it before generating invoices", s.cfg.CatalogItemCode),
		}
	}

	return client, preview, nil
}

// submitAndLock creates the invoices one by one and writes the lock as the
// last statement of the same local transaction.
func (s *generationServiceImpl) submitAndLock(ctx context.Context, r *run, client port.AccountingClient, drafts []entity.InvoiceDraft) (*entity.MonthLock, error) {
	var (
		created []entity.InvoiceMetadata
		lock    *entity.MonthLock
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		locked, err := s.locks.IsLocked(txCtx, r.month)
		if err != nil {
			return storageError(err, "re-check lock for %s", r.month)
		}
		if locked {
			return billing.MonthLockedError(r.month)
		}

		s.fire(ctx, r, workflow.TriggerSubmit)
		for i := range drafts {
			draft := &drafts[i]
			if i > 0 {
				s.fire(ctx, r, workflow.TriggerSubmitNext)
			}

			callCtx, cancel := context.WithTimeout(txCtx, s.cfg.RemoteTimeout)
			invoice, err := client.CreateInvoice(callCtx, draft)
			cancel()
			if err != nil {
				return remoteAPIError(err, draft.ClientName, created)
			}

			created = append(created, entity.InvoiceMetadata{
				ClientID:          draft.ClientID,
				ClientName:        draft.ClientName,
				ExternalInvoiceID: invoice.InvoiceID,
				Hours:             draft.BillableHours,
				LineItemCount:     len(draft.LineItems),
			})
			s.logger.Info("Invoice created",
				"run_id", r.id,
				"client_id", draft.ClientID,
				"xero_invoice_id", invoice.InvoiceID,
				"invoice_number", invoice.InvoiceNumber,
				"lines", len(draft.LineItems))
		}

		s.fire(ctx, r, workflow.TriggerLock)
		now := s.now().UTC()

		var ticketIDs []int64
		for _, draft := range drafts {
			ticketIDs = append(ticketIDs, draft.TicketIDs()...)
		}
		if err := s.tickets.Touch(txCtx, ticketIDs, now); err != nil {
			return localWriteError(billing.CodeTicketTouchFailed, "mark invoiced tickets", err, created)
		}

		invoiceIDs := make([]string, len(created))
		for i, meta := range created {
			invoiceIDs[i] = meta.ExternalInvoiceID
		}
		lock = &entity.MonthLock{
			Month:           r.month.Key(),
			XeroInvoiceIDs:  invoiceIDs,
			InvoiceMetadata: append([]entity.InvoiceMetadata(nil), created...),
			LockedBy:        r.operator,
			LockedAt:        now,
		}
		if err := s.locks.Create(txCtx, lock); err != nil {
			return localWriteError(billing.CodeLockCreateFailed, "create month lock", err, created)
		}
		return nil
	})
	if err != nil {
		var be *billing.Error
		if errors.As(err, &be) {
			return nil, err
		}
		if len(created) > 0 {
			return nil, localWriteError(billing.CodeCommitFailed, "commit month lock", err, created)
		}
		return nil, storageError(err, "open transaction for %s", r.month)
	}

	return lock, nil
}

func (s *generationServiceImpl) fire(ctx context.Context, r *run, trigger workflow.Trigger) {
	if err := r.machine.Fire(ctx, trigger); err != nil {
		s.logger.Error("Unexpected generation transition", "run_id", r.id, "error", err)
	}
}

// notifyIfDiverged alerts operators when external invoices may exist without a lock
func (s *generationServiceImpl) notifyIfDiverged(ctx context.Context, r *run, month string, err error) {
	var be *billing.Error
	if !errors.As(err, &be) || !be.ReconciliationRequired {
		return
	}

	alert := port.ReconciliationAlert{
		RunID:           r.id,
		Month:           month,
		Reason:          be.Error(),
		FailedClient:    be.FailedClient,
		InvoicesCreated: be.InvoicesCreated,
	}
	if nErr := s.notifier.NotifyReconciliation(ctx, alert); nErr != nil {
		s.logger.Error("Failed to send reconciliation alert", "run_id", r.id, "error", nErr)
	}
}

// remoteAPIError classifies a failed remote call. created lists invoices
// that already exist remotely.
func remoteAPIError(err error, failedClient string, created []entity.InvoiceMetadata) *billing.Error {
	be := &billing.Error{
		Kind:         billing.ErrXeroAPI,
		Code:         billing.CodeRemoteError,
		FailedClient: failedClient,
		Err:          err,
	}

	var remote *port.RemoteError
	switch {
	case errors.As(err, &remote):
		be.Code = remote.Code
		be.RetryAfter = remote.RetryAfter
	case errors.Is(err, context.DeadlineExceeded):
		be.Code = billing.CodeRemoteTimeout
	}

	if failedClient == "" {
		be.Message = "Xero request failed"
	} else {
		be.Message = fmt.Sprintf("invoice submission failed for client %s", failedClient)
	}

	if len(created) > 0 {
		be.InvoicesCreated = append([]entity.InvoiceMetadata(nil), created...)
		be.ReconciliationRequired = true
		be.Message = fmt.Sprintf("%s after %d invoice(s) were created; %s", be.Message, len(created), billing.ReconciliationWarning)
	}
	return be
}

func localWriteError(code, action string, err error, created []entity.InvoiceMetadata) *billing.Error {
	return &billing.Error{
		Kind:                   billing.ErrDatabase,
		Code:                   code,
		Message:                fmt.Sprintf("%s failed after %d invoice(s) were created; %s", action, len(created), billing.ReconciliationWarning),
		InvoicesCreated:        append([]entity.InvoiceMetadata(nil), created...),
		ReconciliationRequired: true,
		Err:                    err,
	}
}
