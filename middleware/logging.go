package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs operation start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, op *Operation, next Handler) error {
		logger.Debug("operation started",
			slog.String("op", op.Name),
			slog.String("op_id", op.ID),
			slog.String("identifier", op.Identifier),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("operation failed",
				slog.String("op", op.Name),
				slog.String("op_id", op.ID),
				slog.String("identifier", op.Identifier),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Debug("operation completed",
				slog.String("op", op.Name),
				slog.String("op_id", op.ID),
				slog.String("identifier", op.Identifier),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
