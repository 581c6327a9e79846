// Package xero adapts the Xero accounting API to the billing ports.
package xero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/garyjia/msp-billing/internal/application/port"
	"github.com/garyjia/msp-billing/internal/domain/entity"
)

const (
	DefaultAPIBaseURL = "https://api.xero.com/api.xro/2.0"
	DefaultTokenURL   = "https://identity.xero.com/connect/token"

	xeroDateLayout = "2006-01-02"

	// DefaultRetryAfter is suggested when a 429 carries no usable Retry-After.
	// Xero's minute limit resets within a minute.
	DefaultRetryAfter = 60 * time.Second
)

// Client calls the Xero API on behalf of one tenant
type Client struct {
	httpClient  *http.Client
	baseURL     string
	tenantID    string
	accessToken string
	limiter     *rate.Limiter
	logger      *zap.Logger
}

type invoiceContact struct {
	ContactID string `json:"ContactID"`
}

type invoiceLine struct {
	Description string   `json:"Description"`
	Quantity    float64  `json:"Quantity"`
	UnitAmount  *float64 `json:"UnitAmount,omitempty"`
	ItemCode    string   `json:"ItemCode"`
}

type invoicePayload struct {
	Type      string         `json:"Type"`
	Contact   invoiceContact `json:"Contact"`
	Date      string         `json:"Date"`
	DueDate   string         `json:"DueDate"`
	LineItems []invoiceLine  `json:"LineItems"`
	Status    string         `json:"Status"`
	Reference string         `json:"Reference"`
}

type invoicesRequest struct {
	Invoices []invoicePayload `json:"Invoices"`
}

type validationError struct {
	Message string `json:"Message"`
}

type invoicesResponse struct {
	Invoices []struct {
		InvoiceID        string            `json:"InvoiceID"`
		InvoiceNumber    string            `json:"InvoiceNumber"`
		HasErrors        bool              `json:"HasErrors"`
		ValidationErrors []validationError `json:"ValidationErrors"`
	} `json:"Invoices"`
}

type itemsResponse struct {
	Items []struct {
		ItemID string `json:"ItemID"`
		Code   string `json:"Code"`
	} `json:"Items"`
}

type apiErrorResponse struct {
	Type     string `json:"Type"`
	Message  string `json:"Message"`
	Detail   string `json:"Detail"`
	Elements []struct {
		ValidationErrors []validationError `json:"ValidationErrors"`
	} `json:"Elements"`
}

// VerifyCatalogItem reports whether the item code exists in the tenant's catalog
func (c *Client) VerifyCatalogItem(ctx context.Context, itemCode string) (bool, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/Items/"+url.PathEscape(itemCode), nil)
	if err != nil {
		return false, err
	}
	if status == http.StatusNotFound {
		return false, nil
	}
	if status >= 400 {
		return false, classify(status, body, nil)
	}

	var resp itemsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("xero: failed to decode items response: %w", err)
	}
	for _, item := range resp.Items {
		if strings.EqualFold(item.Code, itemCode) {
			return true, nil
		}
	}
	return false, nil
}

// CreateInvoice creates one ACCREC invoice from the draft
func (c *Client) CreateInvoice(ctx context.Context, draft *entity.InvoiceDraft) (*port.CreatedInvoice, error) {
	payload, err := json.Marshal(invoicesRequest{Invoices: []invoicePayload{toPayload(draft)}})
	if err != nil {
		return nil, fmt.Errorf("xero: failed to encode invoice: %w", err)
	}

	status, body, err := c.do(ctx, http.MethodPost, "/Invoices", payload)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, classify(status, body, nil)
	}

	var resp invoicesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("xero: failed to decode invoice response: %w", err)
	}
	if len(resp.Invoices) == 0 {
		return nil, &port.RemoteError{Status: status, Code: port.RemoteFailure, Message: "response contained no invoice"}
	}

	created := resp.Invoices[0]
	if created.HasErrors || created.InvoiceID == "" {
		return nil, &port.RemoteError{
			Status:  status,
			Code:    port.RemoteValidation,
			Message: joinMessages(created.ValidationErrors, "invoice was rejected"),
		}
	}

	c.logger.Debug("Xero invoice created",
		zap.String("invoice_id", created.InvoiceID),
		zap.String("invoice_number", created.InvoiceNumber),
		zap.Int64("client_id", draft.ClientID))

	return &port.CreatedInvoice{
		InvoiceID:     created.InvoiceID,
		InvoiceNumber: created.InvoiceNumber,
	}, nil
}

// do paces and sends one request. Transport failures are returned as errors;
// HTTP error statuses are returned with their body for classification.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("xero: rate limiter: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("xero: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Xero-Tenant-Id", c.tenantID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("xero: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("xero: failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, nil, classify(resp.StatusCode, respBody, resp.Header)
	}
	return resp.StatusCode, respBody, nil
}

// classify maps an HTTP failure onto a port.RemoteError
func classify(status int, body []byte, header http.Header) *port.RemoteError {
	remote := &port.RemoteError{Status: status, Code: port.RemoteFailure}

	var apiErr apiErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	switch {
	case status == http.StatusTooManyRequests:
		remote.Code = port.RemoteRateLimited
		remote.Message = "Xero rate limit exceeded"
		remote.RetryAfter = retryAfter(header, time.Now())
	case status == http.StatusBadRequest:
		remote.Code = port.RemoteValidation
		var messages []validationError
		for _, element := range apiErr.Elements {
			messages = append(messages, element.ValidationErrors...)
		}
		remote.Message = joinMessages(messages, firstNonEmpty(apiErr.Message, "validation failed"))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		remote.Code = port.RemoteUnauthorized
		remote.Message = firstNonEmpty(apiErr.Detail, apiErr.Message, "not authorised for tenant")
	default:
		remote.Message = firstNonEmpty(apiErr.Message, apiErr.Detail, http.StatusText(status))
	}
	return remote
}

// retryAfter reads Retry-After as delta-seconds or an HTTP date
func retryAfter(header http.Header, now time.Time) time.Duration {
	value := strings.TrimSpace(header.Get("Retry-After"))
	if value == "" {
		return DefaultRetryAfter
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return DefaultRetryAfter
	}
	if at, err := http.ParseTime(value); err == nil {
		if wait := at.Sub(now); wait >= time.Second {
			return wait.Round(time.Second)
		}
	}
	return DefaultRetryAfter
}

func toPayload(draft *entity.InvoiceDraft) invoicePayload {
	lines := make([]invoiceLine, len(draft.LineItems))
	for i, item := range draft.LineItems {
		line := invoiceLine{
			Description: item.Description,
			Quantity:    item.Quantity.InexactFloat64(),
			ItemCode:    item.ItemCode,
		}
		if item.UnitAmount != nil {
			amount := item.UnitAmount.InexactFloat64()
			line.UnitAmount = &amount
		}
		lines[i] = line
	}

	return invoicePayload{
		Type:      "ACCREC",
		Contact:   invoiceContact{ContactID: draft.ExternalCustomerID},
		Date:      draft.InvoiceDate.Format(xeroDateLayout),
		DueDate:   draft.DueDate.Format(xeroDateLayout),
		LineItems: lines,
		Status:    string(draft.Status),
		Reference: draft.Reference,
	}
}

func joinMessages(errs []validationError, fallback string) string {
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		if e.Message != "" {
			messages = append(messages, e.Message)
		}
	}
	if len(messages) == 0 {
		return fallback
	}
	return strings.Join(messages, "; ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Verify interface compliance
var _ port.AccountingClient = (*Client)(nil)
