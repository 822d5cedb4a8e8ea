package workflow

import (
	"context"

	"go.uber.org/zap"
)

type undoStep struct {
	name string
	undo func(ctx context.Context) error
}

// compensation records the inverse of every committed step so a failed
// multi-document mutation can be unwound.
type compensation struct {
	steps []undoStep
}

func (c *compensation) add(name string, undo func(ctx context.Context) error) {
	c.steps = append(c.steps, undoStep{name: name, undo: undo})
}

// rollback runs the recorded steps newest first. A failing step is logged and
// the remaining steps still run. Request cancellation does not stop it.
func (c *compensation) rollback(ctx context.Context, logger *zap.Logger) {
	ctx = context.WithoutCancel(ctx)
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.undo(ctx); err != nil {
			logger.Error("Compensation step failed", zap.String("step", step.name), zap.Error(err))
		}
	}
	c.steps = nil
}
