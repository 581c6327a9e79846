package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/msp-billing/internal/domain/billing"
	"github.com/garyjia/msp-billing/internal/domain/entity"
)

// ErrorDetails is the structured part of an error response
type ErrorDetails struct {
	Kind                   string                   `json:"kind"`
	Code                   string                   `json:"code,omitempty"`
	Message                string                   `json:"message"`
	RetryAfterSeconds      int                      `json:"retryAfterSeconds,omitempty"`
	TicketIDs              []int64                  `json:"ticketIds,omitempty"`
	FailedClient           string                   `json:"failedClient,omitempty"`
	InvoicesCreated        []entity.InvoiceMetadata `json:"invoicesCreated,omitempty"`
	ReconciliationRequired bool                     `json:"reconciliationRequired,omitempty"`
}

// defaultRetryAfterSeconds is suggested when a rate-limit error carries no delay
const defaultRetryAfterSeconds = 60

type errorMapping struct {
	kind   string
	status int
}

var errorKinds = []struct {
	sentinel error
	errorMapping
}{
	{billing.ErrValidation, errorMapping{"ValidationError", http.StatusBadRequest}},
	{billing.ErrInvoiceLock, errorMapping{"InvoiceLockError", http.StatusConflict}},
	{billing.ErrXeroConnection, errorMapping{"XeroConnectionError", http.StatusPreconditionFailed}},
	{billing.ErrXeroSetup, errorMapping{"XeroSetupError", http.StatusPreconditionFailed}},
	{billing.ErrXeroAPI, errorMapping{"XeroApiError", http.StatusBadGateway}},
	{billing.ErrDatabase, errorMapping{"DatabaseError", http.StatusInternalServerError}},
	{billing.ErrNotFound, errorMapping{"NotFound", http.StatusNotFound}},
}

// writeError renders err as a JSON error response
func (h *Handlers) writeError(c *gin.Context, err error) {
	var be *billing.Error
	if !errors.As(err, &be) {
		h.logger.Error("Unhandled error", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "internal error",
			Details: &ErrorDetails{Kind: "InternalError", Message: "internal error"},
		})
		return
	}

	mapping := errorMapping{"InternalError", http.StatusInternalServerError}
	for _, k := range errorKinds {
		if errors.Is(be.Kind, k.sentinel) {
			mapping = k.errorMapping
			break
		}
	}

	details := &ErrorDetails{
		Kind:                   mapping.kind,
		Code:                   be.Code,
		Message:                be.Message,
		TicketIDs:              be.TicketIDs,
		FailedClient:           be.FailedClient,
		InvoicesCreated:        be.InvoicesCreated,
		ReconciliationRequired: be.ReconciliationRequired,
	}

	status := mapping.status
	if be.RetryAfter > 0 {
		details.RetryAfterSeconds = int(math.Ceil(be.RetryAfter.Seconds()))
	} else if be.Code == billing.CodeRateLimited {
		details.RetryAfterSeconds = defaultRetryAfterSeconds
	}
	// A partial run stays 502 so clients do not blindly retry it
	if be.Code == billing.CodeRateLimited && !be.ReconciliationRequired {
		status = http.StatusTooManyRequests
		c.Header("Retry-After", strconv.Itoa(details.RetryAfterSeconds))
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.Request.URL.Path, "status", status, "error", err)
	}

	c.JSON(status, Response{Success: false, Error: be.Message, Details: details})
}
