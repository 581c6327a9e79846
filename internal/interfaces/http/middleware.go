package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/msp-billing/internal/application/service"
)

const (
	requestIDHeader = "X-Request-ID"
	bearerPrefix    = "Bearer "

	ctxKeyRequestID = "request_id"
	ctxKeyOperator  = "operator"
)

// requestIDMiddleware propagates or assigns a request id
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(ctxKeyRequestID),
			"operator", c.GetString(ctxKeyOperator),
		)
	}
}

// operatorMiddleware resolves the acting operator and stores it on the
// request context for audit fields. With no validator configured every
// request acts as the system operator.
func operatorMiddleware(tokens TokenValidator, logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		operator := service.SystemOperator

		if tokens != nil {
			header := c.GetHeader("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) || strings.TrimPrefix(header, bearerPrefix) == "" {
				abortUnauthorized(c, "missing bearer token")
				return
			}

			claims, err := tokens.ValidateToken(strings.TrimPrefix(header, bearerPrefix))
			if err != nil {
				logger.Warn("Rejected operator token",
					"path", c.Request.URL.Path,
					"client_ip", c.ClientIP(),
					"error", err)
				abortUnauthorized(c, err.Error())
				return
			}
			operator = claims.Operator()
		}

		c.Set(ctxKeyOperator, operator)
		c.Request = c.Request.WithContext(service.WithOperator(c.Request.Context(), operator))
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
		Success: false,
		Error:   message,
		Details: &ErrorDetails{Kind: "Unauthorized", Code: "UNAUTHORIZED", Message: message},
	})
}
