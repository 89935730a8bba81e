// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tunnelkeys.
//
// go-tunnelkeys is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package correlation carries a correlation id through a context so log
// lines from one exchange (an issue and its verify, a tunnel creation and
// its staff wraps) can be joined.
package correlation

import (
	"context"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-tunnelkeys/pkg/adapters/logger"
)

type contextKey string

const (
	// CorrelationIDKey is the context key for storing correlation IDs
	CorrelationIDKey contextKey = "correlation-id"

	// LogField is the log field name the id is written under
	LogField = "correlation_id"
)

// WithCorrelationID adds a correlation ID to the context
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// GetCorrelationID retrieves the correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// NewID generates a new correlation ID
func NewID() string {
	return uuid.New().String()
}

// GetOrGenerate returns the context's correlation ID or a fresh one
func GetOrGenerate(ctx context.Context) string {
	if id := GetCorrelationID(ctx); id != "" {
		return id
	}
	return NewID()
}

// Logger returns log annotated with the context's correlation ID, or log
// itself when the context carries none.
func Logger(ctx context.Context, log logger.Logger) logger.Logger {
	if id := GetCorrelationID(ctx); id != "" {
		return log.With(logger.String(LogField, id))
	}
	return log
}
