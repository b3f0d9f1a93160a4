// Package services – compensating-transaction helper.
//
// The confirmation flow is a short sequence of external calls where an
// early success must be undone when a later step fails (capture a payment,
// then void it if the hardware refuses). Modeling the sequence as an
// ordered list of {run, compensate} steps keeps the undo logic in one
// place, so new steps can be inserted without re-threading nested error
// branches.
package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// SagaStep is one unit of a compensating sequence. Compensate may be nil
// for steps with nothing to undo. Compensations are best-effort: they log
// their own failures and never propagate them, because compensation must
// not block the surrounding state cleanup.
type SagaStep struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context)
}

// haltError marks a step failure that must NOT trigger compensation —
// used when a concurrent caller won the race and owns the in-flight work.
type haltError struct{ err error }

func (h haltError) Error() string { return h.err.Error() }
func (h haltError) Unwrap() error { return h.err }

// Halt wraps an error so the saga stops without compensating completed
// steps.
func Halt(err error) error { return haltError{err: err} }

// RunSaga executes steps in order. When a step fails, the compensations of
// all previously completed steps run in reverse order (unless the failure
// is wrapped with Halt), and the failing step's name and error are
// returned.
func RunSaga(ctx context.Context, steps []SagaStep) (failedStep string, err error) {
	done := 0
	for _, step := range steps {
		if runErr := step.Run(ctx); runErr != nil {
			var halt haltError
			if !errors.As(runErr, &halt) {
				for i := done - 1; i >= 0; i-- {
					if steps[i].Compensate == nil {
						continue
					}
					log.Info().
						Str("step", steps[i].Name).
						Str("failed_step", step.Name).
						Msg("saga: compensating")
					steps[i].Compensate(ctx)
				}
			}
			return step.Name, runErr
		}
		done++
	}
	return "", nil
}
