// Package ctxutil carries per-request identity through context.
//
// The acting user stored here is the single source of truth for every
// "me"-relative filter: two evaluations of the same query under different
// acting users are expected to produce different results. Evaluation code
// must never fall back to stored record fields for identity.
package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	actingUserKey ctxKey = iota
	requestIDKey
)

// WithActingUser stores the acting user's id in the context.
func WithActingUser(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, actingUserKey, id)
}

// ActingUser extracts the acting user's id from the context.
// Returns uuid.Nil and false when absent, nil, or of the wrong type.
func ActingUser(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(actingUserKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// WithRequestID stores the request id in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID extracts the request id from the context, or "" when absent.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
