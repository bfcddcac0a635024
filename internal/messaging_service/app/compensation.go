package app

import (
	"context"
	"log/slog"
)

// compensator collects undo steps for a multi-step assignment. On failure
// the steps run in reverse order; undo failures are logged, not returned,
// since the original error is what the caller needs.
type compensator struct {
	steps  []func(context.Context) error
	logger *slog.Logger
}

func newCompensator(logger *slog.Logger) *compensator {
	return &compensator{logger: logger}
}

func (c *compensator) add(step func(context.Context) error) {
	c.steps = append(c.steps, step)
}

func (c *compensator) rollback(ctx context.Context) {
	for i := len(c.steps) - 1; i >= 0; i-- {
		if err := c.steps[i](ctx); err != nil {
			c.logger.ErrorContext(ctx, "Compensation step failed", "step", i, "error", err)
		}
	}
}
