package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/waypost-app/pubflow/internal/ledger"
	"github.com/waypost-app/pubflow/internal/safeop"
)

// DefaultAdvanceDelay is the pause between an auto-progressed step's success
// and the next step starting, so a UI can render the intermediate state.
const DefaultAdvanceDelay = time.Second

// ErrAlreadyStarted is returned by Cancel once steps have begun: committed
// topic writes cannot be rolled back, so the only exits are completion or a
// halted, retryable plan.
var ErrAlreadyStarted = errors.New("workflow already started")

// ErrNothingToDo is reported by resume when no errored or idle enabled step
// exists.
var ErrNothingToDo = errors.New("nothing to resume")

// Operation executes one step's effect. Operations call into the ledger
// client or the list Coordinator; they return safeop.ErrCancelled when the
// user backs out mid-flow.
type Operation func(ctx context.Context) error

// Config assembles an Engine.
type Config struct {
	// Plan is the ordered step list, usually from BuildPlan.
	Plan Plan

	// Ops binds each plan step to its effect. Every plan step needs an entry.
	Ops map[StepName]Operation

	// Signer is the session's authorization context, validated by the
	// safe-operation wrapper before every step.
	Signer ledger.Signer

	// Runner wraps step executions. Nil gets a default safeop.New().
	Runner *safeop.Runner

	// Scheduler delivers auto-progress continuations. Nil gets TimerScheduler.
	Scheduler Scheduler

	// AdvanceDelay overrides DefaultAdvanceDelay when positive.
	AdvanceDelay time.Duration

	// OnComplete fires once, when the final step succeeds.
	OnComplete func()

	// OnChange observes every plan snapshot change (for rendering).
	OnChange func(Plan)

	// OnNotice surfaces advisory messages ("nothing to resume").
	OnNotice func(string)

	// Logger is the structured logger. Nil gets slog.Default().
	Logger *slog.Logger
}

// Engine drives one publish workflow to completion or to a recoverable halt.
//
// All step execution happens in the single Run loop goroutine; UI-facing
// methods only enqueue commands. That serialization is what guarantees no
// two mutations of the same list topic are in flight from one session.
//
// The auto-progress flag is an atomic read synchronously at every scheduling
// decision AND re-checked when a scheduled continuation fires, so a disable
// that lands mid-delay still wins.
type Engine struct {
	queue *commandQueue
	sched Scheduler
	run   *safeop.Runner
	log   *slog.Logger

	signer       ledger.Signer
	ops          map[StepName]Operation
	advanceDelay time.Duration
	onComplete   func()
	onChange     func(Plan)
	onNotice     func(string)

	auto atomic.Bool

	mu        sync.Mutex
	plan      Plan
	started   bool
	completed bool
}

// New assembles an Engine from cfg and wires the safe-operation runner's
// auto-progress hooks to the engine's flag.
func New(cfg Config) (*Engine, error) {
	if len(cfg.Plan) == 0 {
		return nil, fmt.Errorf("workflow: empty plan")
	}
	for i := range cfg.Plan {
		if cfg.Ops[cfg.Plan[i].Name] == nil {
			return nil, fmt.Errorf("workflow: no operation bound for step %q", cfg.Plan[i].Name)
		}
	}

	e := &Engine{
		queue:        newCommandQueue(),
		sched:        cfg.Scheduler,
		run:          cfg.Runner,
		log:          cfg.Logger,
		signer:       cfg.Signer,
		ops:          cfg.Ops,
		advanceDelay: cfg.AdvanceDelay,
		onComplete:   cfg.OnComplete,
		onChange:     cfg.OnChange,
		onNotice:     cfg.OnNotice,
		plan:         cfg.Plan.Clone(),
	}
	if e.sched == nil {
		e.sched = TimerScheduler{}
	}
	if e.run == nil {
		e.run = safeop.New()
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.advanceDelay <= 0 {
		e.advanceDelay = DefaultAdvanceDelay
	}

	e.run.AutoActive = e.auto.Load
	e.run.DisableAuto = func() { e.auto.Store(false) }
	e.plan.reduce()
	return e, nil
}

// Plan returns a snapshot of the current plan.
func (e *Engine) Plan() Plan {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plan.Clone()
}

// AutoProgress reports whether auto-progress is currently enabled.
func (e *Engine) AutoProgress() bool { return e.auto.Load() }

// ToggleAutoProgress flips auto-progress. Enabling it also asks the engine
// to look for a runnable step right away; the enable and the scan are one
// queued command, so they cannot interleave with a step finishing.
func (e *Engine) ToggleAutoProgress(on bool) {
	e.auto.Store(on)
	if on {
		e.queue.Enqueue(command{kind: cmdAdvance})
	}
}

// Start runs the first enabled step. Subsequent progression is manual
// (Retry / per-step starts) unless auto-progress is on.
func (e *Engine) Start() {
	e.mu.Lock()
	if idx := e.plan.firstRunnable(); idx >= 0 {
		name := e.plan[idx].Name
		e.mu.Unlock()
		e.queue.Enqueue(command{kind: cmdRun, step: name})
		return
	}
	e.mu.Unlock()
}

// Retry requests execution of one named step (a fresh start for an idle
// step, a retry for an errored one).
func (e *Engine) Retry(name StepName) {
	e.queue.Enqueue(command{kind: cmdRun, step: name})
}

// ResumeAfterError re-enables auto-progress and continues from the first
// failure: the first errored enabled step is retried; failing that, the
// first idle enabled step is started; failing that, ErrNothingToDo is
// reported through OnNotice when the command is processed.
//
// Requires a signer; resuming without one fails immediately.
func (e *Engine) ResumeAfterError() error {
	if e.signer == nil || e.signer.AccountID() == "" {
		return safeop.ErrNoSigner
	}
	e.auto.Store(true)
	e.queue.Enqueue(command{kind: cmdResume})
	return nil
}

// Cancel abandons the workflow. Allowed only before any step has started;
// after that there is no rollback of committed writes, only retry or
// completion.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return ErrAlreadyStarted
	}
	e.queue.Close()
	return nil
}

// Run is the single-writer command loop. Blocks until ctx is cancelled or
// the queue is closed. Must be called from exactly one goroutine.
func (e *Engine) Run(ctx context.Context) error {
	for {
		cmd, ok := e.queue.TryDequeue()
		if ok {
			e.process(ctx, cmd)
			continue
		}
		if e.queue.Closed() {
			return nil
		}

		select {
		case <-ctx.Done():
			e.queue.Close()
			return ctx.Err()
		case <-e.queue.Wait():
			// Enqueue coalesces signals, so a wakeup with nothing queued is
			// either a leftover token from a batch already drained or the
			// queue closing. Loop and let TryDequeue and Closed decide.
		}
	}
}

// Drain processes queued commands until none remain, then returns. With an
// ImmediateScheduler this carries an auto-progressed workflow all the way to
// completion synchronously; tests and the CLI drive the engine this way.
func (e *Engine) Drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		cmd, ok := e.queue.TryDequeue()
		if !ok {
			return nil
		}
		e.process(ctx, cmd)
	}
}

func (e *Engine) process(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdRun:
		e.processRun(ctx, cmd.step)
	case cmdAdvance:
		// Re-check the flag now, not when the continuation was scheduled.
		if !e.auto.Load() {
			return
		}
		e.mu.Lock()
		idx := e.plan.firstRunnable()
		var name StepName
		if idx >= 0 {
			name = e.plan[idx].Name
		}
		e.mu.Unlock()
		if idx >= 0 {
			e.processRun(ctx, name)
		}
	case cmdResume:
		e.processResume(ctx)
	}
}

func (e *Engine) processResume(ctx context.Context) {
	e.mu.Lock()
	idx := e.plan.firstErrored()
	if idx < 0 {
		idx = e.plan.firstRunnable()
	}
	var name StepName
	if idx >= 0 {
		name = e.plan[idx].Name
	}
	e.mu.Unlock()

	if idx < 0 {
		e.log.Info("resume requested with no runnable step")
		e.notice(ErrNothingToDo.Error())
		return
	}
	e.processRun(ctx, name)
}

// processRun executes one step end to end: status transitions, the wrapped
// operation, and post-success scheduling.
func (e *Engine) processRun(ctx context.Context, name StepName) {
	e.mu.Lock()
	idx := e.plan.index(name)
	if idx < 0 {
		e.mu.Unlock()
		e.log.Warn("unknown step requested", "step", string(name))
		return
	}
	s := &e.plan[idx]
	if s.Status == StatusError {
		// Retry path: error -> idle before running.
		s.Status = StatusIdle
		s.Message = ""
		e.plan.reduce()
	}
	if s.Status != StatusIdle || s.Disabled {
		e.mu.Unlock()
		e.log.Warn("step not runnable", "step", string(name), "status", s.Status.String(), "disabled", s.Disabled)
		return
	}
	e.started = true
	s.Status = StatusLoading
	e.plan.reduce()
	e.mu.Unlock()
	e.changed()

	op := e.ops[name]
	outcome, err := e.run.Run(ctx, e.signer, safeop.Op(op))

	e.mu.Lock()
	s = &e.plan[e.plan.index(name)]
	switch outcome {
	case safeop.OutcomeSuccess:
		s.Status = StatusSuccess
		s.Message = ""
	case safeop.OutcomeCancelled:
		// The user backed out without an error; the step is runnable again.
		s.Status = StatusIdle
		e.auto.Store(false)
	default:
		s.Status = StatusError
		if err != nil {
			s.Message = err.Error()
		}
		// Any hard step error halts auto-progress until an explicit resume.
		e.auto.Store(false)
	}
	e.plan.reduce()
	complete := e.plan.Complete() && !e.completed
	if complete {
		e.completed = true
	}
	e.mu.Unlock()
	e.changed()

	if outcome == safeop.OutcomeSuccess {
		e.log.Info("step succeeded", "step", string(name))
		if complete {
			if e.onComplete != nil {
				e.onComplete()
			}
			return
		}
		if e.auto.Load() {
			e.sched.AfterFunc(e.advanceDelay, func() {
				e.queue.Enqueue(command{kind: cmdAdvance})
			})
		}
		return
	}
	if outcome == safeop.OutcomeFailed {
		e.log.Warn("step failed", "step", string(name), "err", err)
	}
}

func (e *Engine) changed() {
	if e.onChange != nil {
		e.onChange(e.Plan())
	}
}

func (e *Engine) notice(msg string) {
	if e.onNotice != nil {
		e.onNotice(msg)
	}
}
