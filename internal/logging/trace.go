// Package logging run ID propagation through context.
package logging

import (
	"context"

	"github.com/oklog/ulid/v2"
)

type contextKey string

const runIDKey contextKey = "run_id"

// NewRunID generates a sortable unique run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

// WithRunID adds a run ID to context. If id is empty, generates one.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = NewRunID()
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run ID, or "" if not present.
func RunIDFromContext(ctx context.Context) string {
	if v := ctx.Value(runIDKey); v != nil {
		return v.(string)
	}
	return ""
}
