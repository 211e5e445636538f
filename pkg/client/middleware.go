package client

import (
	"context"
	"time"

	"github.com/satishbabariya/prisma-engine-go/internal/core/query/domain"
	"github.com/satishbabariya/prisma-engine-go/internal/debug"
)

// QueryFunc executes one logical query.
type QueryFunc func(ctx context.Context, q *domain.Query) (*domain.ResultSet, error)

// Middleware wraps query execution. It must call next at most once.
type Middleware func(ctx context.Context, q *domain.Query, next QueryFunc) (*domain.ResultSet, error)

// chain wraps final with mws, the first middleware outermost.
func chain(final QueryFunc, mws []Middleware) QueryFunc {
	next := final
	for i := len(mws) - 1; i >= 0; i-- {
		mw, inner := mws[i], next
		next = func(ctx context.Context, q *domain.Query) (*domain.ResultSet, error) {
			return mw(ctx, q, inner)
		}
	}
	return next
}

// LogMiddleware logs every operation at info level.
func LogMiddleware() Middleware {
	return func(ctx context.Context, q *domain.Query, next QueryFunc) (*domain.ResultSet, error) {
		start := time.Now()
		rs, err := next(ctx, q)
		if err != nil {
			debug.Error("operation failed",
				"model", q.Model,
				"operation", q.Operation,
				"duration", time.Since(start),
				"error", err,
			)
			return nil, err
		}
		debug.Info("operation completed",
			"model", q.Model,
			"operation", q.Operation,
			"duration", time.Since(start),
			"rows", rs.RowsAffected,
		)
		return rs, nil
	}
}

// TimeoutMiddleware creates a middleware that enforces timeouts.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(ctx context.Context, q *domain.Query, next QueryFunc) (*domain.ResultSet, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return next(ctx, q)
	}
}
