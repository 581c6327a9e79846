package lark

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/msp-billing/internal/application/port"
)

// ReconciliationNotifier posts reconciliation alerts to an operator chat
type ReconciliationNotifier struct {
	sender MessageSender
	chatID string
	logger *zap.Logger
}

// NewReconciliationNotifier creates a notifier that posts to chatID
func NewReconciliationNotifier(sender MessageSender, chatID string, logger *zap.Logger) *ReconciliationNotifier {
	return &ReconciliationNotifier{sender: sender, chatID: chatID, logger: logger}
}

// NotifyReconciliation sends the alert as a text message
func (n *ReconciliationNotifier) NotifyReconciliation(ctx context.Context, alert port.ReconciliationAlert) error {
	content, err := textContent(FormatAlert(alert))
	if err != nil {
		return err
	}

	if _, err := n.sender.SendMessage(ctx, receiveIDTypeChat, n.chatID, msgTypeText, content); err != nil {
		return fmt.Errorf("failed to send reconciliation alert: %w", err)
	}

	n.logger.Info("Reconciliation alert sent",
		zap.String("run_id", alert.RunID),
		zap.String("month", alert.Month),
		zap.Int("invoices_created", len(alert.InvoicesCreated)))
	return nil
}

// LogNotifier records reconciliation alerts in the log only. It is used when
// no alert chat is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyReconciliation logs the alert at error level
func (n *LogNotifier) NotifyReconciliation(ctx context.Context, alert port.ReconciliationAlert) error {
	ids := make([]string, len(alert.InvoicesCreated))
	for i, meta := range alert.InvoicesCreated {
		ids[i] = meta.ExternalInvoiceID
	}
	n.logger.Error("Manual reconciliation required",
		zap.String("run_id", alert.RunID),
		zap.String("month", alert.Month),
		zap.String("reason", alert.Reason),
		zap.String("failed_client", alert.FailedClient),
		zap.Strings("xero_invoice_ids", ids))
	return nil
}

// FormatAlert renders the alert as operator-facing text
func FormatAlert(alert port.ReconciliationAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Billing reconciliation required for %s\n", alert.Month)
	fmt.Fprintf(&b, "Run: %s\n", alert.RunID)
	if alert.FailedClient != "" {
		fmt.Fprintf(&b, "Failed client: %s\n", alert.FailedClient)
	}
	fmt.Fprintf(&b, "Reason: %s\n", alert.Reason)
	fmt.Fprintf(&b, "Invoices created in Xero without a month lock (%d):\n", len(alert.InvoicesCreated))
	for _, meta := range alert.InvoicesCreated {
		fmt.Fprintf(&b, "- %s: %s (%s h)\n", meta.ClientName, meta.ExternalInvoiceID, meta.Hours.String())
	}
	b.WriteString("Void these invoices in Xero or lock the month manually before re-running.")
	return b.String()
}

// Verify interface compliance
var (
	_ port.ReconciliationNotifier = (*ReconciliationNotifier)(nil)
	_ port.ReconciliationNotifier = (*LogNotifier)(nil)
)
