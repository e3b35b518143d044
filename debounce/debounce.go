// Package debounce coalesces bursts of triggers into serialized runs.
//
// A trigger while idle schedules a run after a fixed quiet period; further
// triggers join that run without moving it. Triggers that arrive while a run is in
// progress collapse into one follow-up run that starts as soon as the
// current one returns. At most one run is ever in flight.
package debounce

import (
	"context"
	"sync"
	"time"
)

// DefaultDelay is the quiet period used when none is configured.
const DefaultDelay = 300 * time.Millisecond

// State is the scheduling state of a Debouncer.
type State int

const (
	Idle State = iota
	Scheduled
	Running
	RunningWithPending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Running:
		return "running"
	case RunningWithPending:
		return "running-with-pending"
	default:
		return "unknown"
	}
}

// Func is the debounced action. The context is cancelled by Stop.
type Func func(ctx context.Context) error

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(d *Debouncer) { d.clock = c }
}

// WithErrorHandler receives errors returned by the action.
func WithErrorHandler(fn func(error)) Option {
	return func(d *Debouncer) { d.onError = fn }
}

// Debouncer serializes runs of a Func.
type Debouncer struct {
	clock   Clock
	fn      Func
	onError func(error)
	ctx     context.Context
	cancel  context.CancelFunc
	timer   Timer
	wg      sync.WaitGroup
	delay   time.Duration
	gen     uint64
	state   State
	stopped bool
	mu      sync.Mutex
}

// New creates a Debouncer running fn after delay of quiet.
func New(delay time.Duration, fn Func, opts ...Option) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Debouncer{
		clock:  SystemClock{},
		fn:     fn,
		delay:  delay,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the current scheduling state.
func (d *Debouncer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Trigger requests a run. It never blocks on the action.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	switch d.state {
	case Idle:
		d.schedule()
	case Scheduled:
		// The first trigger's timer stands; later ones join its run.
	case Running:
		d.state = RunningWithPending
	case RunningWithPending:
	}
}

// schedule must be called with mu held.
func (d *Debouncer) schedule() {
	d.gen++
	gen := d.gen
	d.state = Scheduled
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || d.state != Scheduled || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.state = Running
	d.timer = nil
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()
	for {
		if err := d.fn(d.ctx); err != nil && d.onError != nil {
			d.onError(err)
		}

		d.mu.Lock()
		if d.state == RunningWithPending && !d.stopped {
			d.state = Running
			d.mu.Unlock()
			continue
		}
		d.state = Idle
		d.mu.Unlock()
		return
	}
}

// Stop cancels any scheduled run, cancels the context of a run in
// progress and waits for it to return. Later triggers are ignored.
// Safe to call more than once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.state == Scheduled {
		d.state = Idle
	}
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
}
