package service

import (
	"context"
	"fmt"

	"github.com/garyjia/msp-billing/internal/domain/billing"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// SystemOperator is recorded when a request carries no operator identity
const SystemOperator = "system"

type operatorKey struct{}

// WithOperator attaches the acting operator's identity to ctx
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorKey{}, operator)
}

// OperatorFrom returns the operator stored in ctx, or SystemOperator
func OperatorFrom(ctx context.Context) string {
	if op, ok := ctx.Value(operatorKey{}).(string); ok && op != "" {
		return op
	}
	return SystemOperator
}

func storageError(err error, format string, args ...interface{}) *billing.Error {
	return &billing.Error{
		Kind:    billing.ErrDatabase,
		Code:    billing.CodeStorage,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}
