// Package opcontext carries the acting operator through request contexts so
// services can attribute writes without threading identity parameters.
package opcontext

import (
	"context"
	"strings"
)

type contextKey string

const operatorKey contextKey = "operator"

// Operator identifies who is acting on the plant data.
type Operator struct {
	Name string
	Role string
}

// Roles understood by the boundary. Admins may adjust meters and configure
// baselines and offsets; viewers read only.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// WithOperator stores the operator on the context.
func WithOperator(ctx context.Context, op Operator) context.Context {
	return context.WithValue(ctx, operatorKey, op)
}

// FromContext returns the operator stored on the context, if any.
func FromContext(ctx context.Context) (Operator, bool) {
	op, ok := ctx.Value(operatorKey).(Operator)
	return op, ok
}

// AuthorName returns the operator name for record attribution, defaulting to
// "system" when the context carries no operator.
func AuthorName(ctx context.Context) string {
	if op, ok := FromContext(ctx); ok && strings.TrimSpace(op.Name) != "" {
		return op.Name
	}
	return "system"
}

// IsPrivileged reports whether the operator may perform admin-only writes.
func IsPrivileged(ctx context.Context) bool {
	op, ok := FromContext(ctx)
	return ok && op.Role == RoleAdmin
}

// CanWrite reports whether the operator may submit data at all.
func CanWrite(ctx context.Context) bool {
	op, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return op.Role == RoleAdmin || op.Role == RoleOperator
}
