package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/msp-billing/internal/domain/billing"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool          `json:"success"`
	Data    interface{}   `json:"data,omitempty"`
	Error   string        `json:"error,omitempty"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// GenerateRequest is the body of POST /api/billing/generate
type GenerateRequest struct {
	Month string `json:"month" binding:"required"`
}

// LockStatusResponse reports whether a month is locked
type LockStatusResponse struct {
	Month    string `json:"month"`
	IsLocked bool   `json:"isLocked"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// Preview handles GET /api/billing/preview?month=YYYY-MM
func (h *Handlers) Preview(c *gin.Context) {
	preview, err := h.services.Preview.Preview(c.Request.Context(), c.Query("month"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: preview})
}

// ExportPreview handles GET /api/billing/preview/export?month=YYYY-MM
func (h *Handlers) ExportPreview(c *gin.Context) {
	month := c.Query("month")
	m, err := billing.ParseMonth(month)
	if err != nil {
		h.writeError(c, err)
		return
	}

	// Buffer so a failure can still be reported as JSON
	var buf bytes.Buffer
	if err := h.services.Preview.Export(c.Request.Context(), month, &buf); err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="billing-preview-%s.xlsx"`, m.String()))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Generate handles POST /api/billing/generate
func (h *Handlers) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, billing.NewValidationError(billing.CodeMalformedMonth, "request body must contain a month"))
		return
	}

	result, err := h.services.Generation.Generate(c.Request.Context(), req.Month)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ListLocks handles GET /api/billing/locks
func (h *Handlers) ListLocks(c *gin.Context) {
	locks, err := h.services.Locks.History(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: locks})
}

// LockStatus handles GET /api/billing/locks/status?month=YYYY-MM
func (h *Handlers) LockStatus(c *gin.Context) {
	month := c.Query("month")
	locked, err := h.services.Locks.IsLocked(c.Request.Context(), month)
	if err != nil {
		h.writeError(c, err)
		return
	}

	// IsLocked has already validated the month
	m, _ := billing.ParseMonth(month)
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    LockStatusResponse{Month: m.Key(), IsLocked: locked},
	})
}

// DeleteLock handles DELETE /api/billing/locks/:id
func (h *Handlers) DeleteLock(c *gin.Context) {
	id, ok := h.lockID(c)
	if !ok {
		return
	}

	if err := h.services.Locks.DeleteLock(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"deleted": true, "lockId": id}})
}

// RemoveInvoice handles DELETE /api/billing/locks/:id/invoices/:invoiceId
func (h *Handlers) RemoveInvoice(c *gin.Context) {
	id, ok := h.lockID(c)
	if !ok {
		return
	}

	result, err := h.services.Locks.RemoveInvoice(c.Request.Context(), id, c.Param("invoiceId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

func (h *Handlers) lockID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(c, billing.NewValidationError("INVALID_LOCK_ID", "invalid lock id %q", idStr))
		return 0, false
	}
	return id, true
}
