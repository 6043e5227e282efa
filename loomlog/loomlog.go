// Package loomlog provides an optional, off-by-default structured
// logging Hook/Interceptor pair. The core engine is silent; this
// package is loom's rendition of the LoggingHook/LoggingInterceptor
// pattern from velox's shop example, reaching for log/slog's
// structured fields instead of log.Printf.
package loomlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/loomdb/loom"
)

// Hook returns a loom.Hook that logs every mutation's collection, op,
// outcome, and duration at the given logger. Install it with
// CollectionConfig.Hooks or as a database-wide default by attaching it to
// every collection at registration time.
func Hook(logger *slog.Logger) loom.Hook {
	return func(next loom.Mutator) loom.Mutator {
		return loom.MutateFunc(func(ctx context.Context, m loom.Mutation) (any, error) {
			start := time.Now()
			v, err := next.Mutate(ctx, m)
			attrs := []any{
				slog.String("collection", m.Type()),
				slog.String("op", m.Op().String()),
				slog.Duration("elapsed", time.Since(start)),
			}
			if err != nil {
				logger.ErrorContext(ctx, "mutation failed", append(attrs, slog.Any("error", err))...)
			} else {
				logger.InfoContext(ctx, "mutation committed", attrs...)
			}
			return v, err
		})
	}
}

// Interceptor returns a loom.Interceptor that logs every query's
// collection, result size, and duration, the read-path analogue of Hook.
func Interceptor(logger *slog.Logger) loom.Interceptor {
	return func(next loom.Querier) loom.Querier {
		return loom.QuerierFunc(func(ctx context.Context, q loom.Query) (any, error) {
			start := time.Now()
			v, err := next.Query(ctx, q)
			attrs := []any{
				slog.String("collection", q.Type()),
				slog.Duration("elapsed", time.Since(start)),
			}
			if err != nil {
				logger.ErrorContext(ctx, "query failed", append(attrs, slog.Any("error", err))...)
				return v, err
			}
			if page, ok := v.(loom.Page); ok {
				attrs = append(attrs, slog.Int("records", len(page.Records)))
			}
			logger.InfoContext(ctx, "query completed", attrs...)
			return v, err
		})
	}
}
