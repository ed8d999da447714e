// Package safeop wraps a single workflow-step execution with precondition
// validation, a hard timeout, and error classification. Every step-level
// failure is converted here into a classified outcome; nothing escapes to
// the workflow driver as an unhandled failure.
package safeop

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/waypost-app/pubflow/internal/ledger"
)

// Class is the error classification used to decide retry vs halt.
type Class int

const (
	// ClassNone means no error.
	ClassNone Class = iota
	// ClassUserRejected means the user declined to authorize. Halts
	// auto-progress; only an explicit resume continues the workflow.
	ClassUserRejected
	// ClassTransient covers wallet desynchronization and timeouts. Eligible
	// for exactly one bounded retry, invisible to step status as a hard error.
	ClassTransient
	// ClassPrecondition means the operation was refused before any
	// submission (no signer, no topic). Not retried automatically.
	ClassPrecondition
	// ClassOther is an opaque failure, surfaced to the user.
	ClassOther
)

// String returns the class's stable name.
func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassUserRejected:
		return "user_rejected"
	case ClassTransient:
		return "transient"
	case ClassPrecondition:
		return "precondition_failed"
	case ClassOther:
		return "other"
	default:
		return "unknown"
	}
}

// Outcome is the three-valued result of a wrapped execution: the caller can
// distinguish "operation failed" from "user cancelled mid-flow" from
// "succeeded".
type Outcome int

const (
	// OutcomeSuccess means the operation completed.
	OutcomeSuccess Outcome = iota + 1
	// OutcomeCancelled means the user backed out mid-flow without an error
	// (the operation returned ErrCancelled).
	OutcomeCancelled
	// OutcomeFailed means the operation failed with a classified error.
	OutcomeFailed
)

// ErrCancelled is returned by operations when the user abandons the flow
// without an error condition.
var ErrCancelled = errors.New("operation cancelled")

// ErrNoSigner is the precondition failure for a missing or empty signer.
var ErrNoSigner = errors.New("no signer in session")

// DefaultTimeout bounds one step execution.
const DefaultTimeout = 120 * time.Second

// DefaultRetryBackoff is the delay before the single transient retry.
const DefaultRetryBackoff = 3 * time.Second

// desyncPatterns are matched (lowercased, substring) against collaborator
// error text to spot a wallet that has fallen out of sync with the network.
// Part of the collaborator contract, see ledger package docs.
var desyncPatterns = []string{
	"out of sync",
	"desync",
	"transaction expired",
	"node account id",
}

// Classify maps an error to its Class.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	if ledger.IsUserRejected(err) {
		return ClassUserRejected
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	if errors.Is(err, ErrNoSigner) {
		return ClassPrecondition
	}
	msg := strings.ToLower(err.Error())
	for _, p := range desyncPatterns {
		if strings.Contains(msg, p) {
			return ClassTransient
		}
	}
	return ClassOther
}

// Op is one step execution.
type Op func(ctx context.Context) error

// Runner wraps step executions. The zero value is not usable; construct with
// New and wire the hooks the workflow engine needs.
type Runner struct {
	// Timeout bounds each attempt. Zero means DefaultTimeout.
	Timeout time.Duration

	// RetryBackoff is the delay before the single transient retry.
	// Zero means DefaultRetryBackoff.
	RetryBackoff time.Duration

	// AutoActive reports whether auto-progress is currently on. Read at
	// classification time, not captured at wrap time.
	AutoActive func() bool

	// DisableAuto is invoked when a rejection must halt auto-progress.
	DisableAuto func()

	// OnError surfaces a hard failure as a human-readable message.
	OnError func(msg string)

	// OnTransient surfaces a transient warning that did not mark the step
	// as a hard error.
	OnTransient func(msg string)

	// sleep is injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error

	log *slog.Logger
}

// New creates a Runner with defaults. Hooks may be assigned afterwards.
func New() *Runner {
	return &Runner{
		Timeout:      DefaultTimeout,
		RetryBackoff: DefaultRetryBackoff,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
		log: slog.Default(),
	}
}

// SetSleeper replaces the backoff sleeper. Tests use this to avoid real
// delays.
func (r *Runner) SetSleeper(fn func(ctx context.Context, d time.Duration) error) {
	r.sleep = fn
}

// SetLogger sets the structured logger.
func (r *Runner) SetLogger(log *slog.Logger) { r.log = log }

// Run executes op under the wrapper's rules and returns the outcome plus the
// classified error for OutcomeFailed.
//
// Rules, in order:
//  1. A missing signer fails fast as a precondition error.
//  2. Each attempt races a hard timeout; timing out is transient.
//  3. A transient error while auto-progress is active triggers exactly one
//     re-invocation after the backoff. The retry is tagged and can never
//     recurse: a transient failure of the retry is surfaced as a hard error.
//  4. A user rejection while auto-progress is active disables auto-progress.
//  5. Everything else is reported through OnError and returned as
//     OutcomeFailed.
func (r *Runner) Run(ctx context.Context, signer ledger.Signer, op Op) (Outcome, error) {
	if signer == nil || signer.AccountID() == "" {
		err := ErrNoSigner
		r.reportError("a signer is required before publishing; connect a wallet and retry")
		return OutcomeFailed, err
	}

	outcome, err := r.attempt(ctx, op)
	if outcome != OutcomeFailed {
		return outcome, nil
	}

	class := Classify(err)
	switch class {
	case ClassTransient:
		if r.autoActive() {
			// One bounded retry, surfaced as a warning rather than a hard
			// error. The step's visible status never reaches error unless
			// the retry also fails.
			r.reportTransient("the wallet looks out of sync; retrying once shortly")
			r.log.Warn("transient step failure, scheduling single retry",
				"class", class.String(), "backoff", r.retryBackoff(), "err", err)
			if serr := r.sleep(ctx, r.retryBackoff()); serr != nil {
				return OutcomeFailed, serr
			}
			outcome, err = r.attempt(ctx, op)
			if outcome != OutcomeFailed {
				return outcome, nil
			}
			// Tagged retry failed; fall through to hard-error handling
			// regardless of classification so we cannot recurse.
		}
		r.reportError("the operation did not go through: " + err.Error())
		return OutcomeFailed, err

	case ClassUserRejected:
		if r.autoActive() && r.DisableAuto != nil {
			r.DisableAuto()
		}
		r.reportError("the transaction was rejected in the wallet")
		return OutcomeFailed, err

	default:
		r.reportError("the operation failed: " + err.Error())
		return OutcomeFailed, err
	}
}

// attempt runs op once under the timeout and folds the result into an Outcome.
func (r *Runner) attempt(ctx context.Context, op Op) (Outcome, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := op(opCtx)
	switch {
	case err == nil:
		return OutcomeSuccess, nil
	case errors.Is(err, ErrCancelled):
		return OutcomeCancelled, nil
	case errors.Is(err, context.DeadlineExceeded) && opCtx.Err() != nil && ctx.Err() == nil:
		// Our own timeout fired, not the caller's context.
		return OutcomeFailed, context.DeadlineExceeded
	default:
		return OutcomeFailed, err
	}
}

func (r *Runner) autoActive() bool {
	return r.AutoActive != nil && r.AutoActive()
}

func (r *Runner) retryBackoff() time.Duration {
	if r.RetryBackoff <= 0 {
		return DefaultRetryBackoff
	}
	return r.RetryBackoff
}

func (r *Runner) reportError(msg string) {
	if r.OnError != nil {
		r.OnError(msg)
	}
}

func (r *Runner) reportTransient(msg string) {
	if r.OnTransient != nil {
		r.OnTransient(msg)
	}
}
