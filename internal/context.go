package internal

import (
	"context"
	"time"
)

type ctxKey string

// ContextUserKey holds the authenticated *auth.User for the request.
const ContextUserKey ctxKey = "user"

const (
	DefaultShutdownTimeout = 30 * time.Second
	DefaultOutboundTimeout = 10 * time.Second
)

// WithTimeout bounds ctx by d, or by fallback when d is unset.
func WithTimeout(ctx context.Context, d, fallback time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = fallback
	}
	return context.WithTimeout(ctx, d)
}
