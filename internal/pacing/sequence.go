package pacing

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/JakeFAU/pcd-harvester/internal/metrics"
)

// Task is one unit of work in a Sequence.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Sequence is a single-worker task runner: one task at a time, in order,
// with the policy consulted before each start.
type Sequence struct {
	policy Policy
	clock  clockwork.Clock
	logger *zap.Logger
}

// NewSequence constructs a Sequence.
func NewSequence(policy Policy, clock clockwork.Clock, logger *zap.Logger) *Sequence {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if policy == nil {
		policy = NewFixedDelay(0, clock)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequence{policy: policy, clock: clock, logger: logger}
}

// Run executes tasks in order. It stops at the first task error or when ctx
// ends, returning that error; tasks handle their own recoverable failures.
func (s *Sequence) Run(ctx context.Context, tasks []Task) error {
	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("sequence stopped before %s: %w", task.Name, err)
		}
		start := s.clock.Now()
		if err := s.policy.Wait(ctx, i); err != nil {
			return fmt.Errorf("wait before %s: %w", task.Name, err)
		}
		if i > 0 {
			waited := s.clock.Since(start)
			metrics.ObservePacingDelay(waited)
			s.logger.Debug("paced", zap.String("task", task.Name), zap.Duration("waited", waited))
		}
		if err := task.Run(ctx); err != nil {
			return fmt.Errorf("task %s: %w", task.Name, err)
		}
	}
	return nil
}
