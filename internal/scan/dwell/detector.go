// Package dwell detects a qualifying dwell: continuous presence over a content
// item while monitoring is enabled and the item is pending.
//
// Elapsed time is computed from clock readings taken on each input change.
// A single deadline timer is armed for the remaining time whenever the item
// becomes eligible and cancelled as soon as it stops being eligible.
package dwell

import (
	"sync"
	"time"

	"veritas/internal/scan/models"
)

const (
	// DefaultThreshold is the dwell time that triggers a scan.
	DefaultThreshold = 3 * time.Second
	// DefaultTick is the granularity at which progress is reported.
	DefaultTick = 100 * time.Millisecond
)

// Option configures a Detector.
type Option func(*Detector)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(d *Detector) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithThreshold sets the dwell time required to complete.
func WithThreshold(threshold time.Duration) Option {
	return func(d *Detector) {
		if threshold > 0 {
			d.threshold = threshold
		}
	}
}

// WithTick sets the progress granularity.
func WithTick(tick time.Duration) Option {
	return func(d *Detector) {
		if tick > 0 {
			d.tick = tick
		}
	}
}

// Detector tracks dwell for one item.
//
// Inputs arrive through SetPresent, SetMonitoring and SetStatus. The
// completion callback fires at most once per qualifying dwell; after it
// fires the detector stays idle until the status leaves pending and comes
// back (re-arm). Losing presence discards accumulated time. Disabling
// monitoring or leaving pending only pauses it.
//
// onComplete runs on the timer goroutine without the detector lock held.
// It may call SetPresent, SetMonitoring and SetStatus but must not call Close.
type Detector struct {
	mu         sync.Mutex
	callbackMu sync.Mutex // held while onComplete runs; Close waits on it

	clock      Clock
	threshold  time.Duration
	tick       time.Duration
	onComplete func()

	present    bool
	monitoring bool
	status     models.VerificationStatus

	banked   time.Duration // dwell accumulated by earlier, paused runs
	runStart time.Time     // start of the current eligible run
	running  bool
	fired    bool
	closed   bool

	timer Timer
	gen   uint64 // invalidates timers that were stopped too late
}

// New creates a detector for an item in the pending status. Presence and
// monitoring start false.
func New(onComplete func(), opts ...Option) *Detector {
	d := &Detector{
		clock:      SystemClock(),
		threshold:  DefaultThreshold,
		tick:       DefaultTick,
		onComplete: onComplete,
		status:     models.StatusPending,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// SetPresent records pointer/touch presence. Losing presence resets
// accumulated dwell to zero.
func (d *Detector) SetPresent(present bool) {
	d.update(func() {
		if d.present == present {
			return
		}
		d.present = present
		if !present {
			d.pauseLocked()
			d.banked = 0
		}
	})
}

// SetMonitoring records the monitoring toggle. Disabling pauses accumulation.
func (d *Detector) SetMonitoring(enabled bool) {
	d.update(func() {
		d.monitoring = enabled
	})
}

// SetStatus records the item's status. Leaving pending pauses accumulation;
// returning to pending from any other status re-arms the detector with a
// fresh dwell.
func (d *Detector) SetStatus(status models.VerificationStatus) {
	d.update(func() {
		if status == d.status {
			return
		}
		if status == models.StatusPending {
			d.pauseLocked()
			d.fired = false
			d.banked = 0
		}
		d.status = status
	})
}

// Elapsed returns the accumulated dwell, capped at the threshold.
func (d *Detector) Elapsed() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.elapsedLocked()
}

// Progress returns the dwell progress in [0, 1], quantised to the tick.
func (d *Detector) Progress() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fired {
		return 1
	}
	elapsed := d.elapsedLocked()
	steps := elapsed / d.tick
	return float64(steps*d.tick) / float64(d.threshold)
}

// Running reports whether dwell is currently accumulating.
func (d *Detector) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Fired reports whether the detector completed and awaits re-arm.
func (d *Detector) Fired() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fired
}

// Threshold returns the configured dwell threshold.
func (d *Detector) Threshold() time.Duration { return d.threshold }

// Close cancels any pending deadline. No callback starts after Close
// returns, and a callback already running has finished by then.
func (d *Detector) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		d.stopTimerLocked()
		d.running = false
	}
	d.mu.Unlock()

	d.callbackMu.Lock()
	//nolint:staticcheck // empty critical section waits for an in-flight callback
	d.callbackMu.Unlock()
}

func (d *Detector) update(mutate func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	mutate()
	d.reconcileLocked()
}

func (d *Detector) eligibleLocked() bool {
	return d.present && d.monitoring && d.status == models.StatusPending && !d.fired
}

// reconcileLocked starts or pauses the run so that running == eligible.
func (d *Detector) reconcileLocked() {
	eligible := d.eligibleLocked()
	switch {
	case eligible && !d.running:
		d.running = true
		d.runStart = d.clock.Now()
		d.gen++
		gen := d.gen
		d.timer = d.clock.AfterFunc(d.threshold-d.banked, func() { d.expire(gen) })
	case !eligible && d.running:
		d.pauseLocked()
	}
}

// pauseLocked banks the current run and cancels its deadline.
func (d *Detector) pauseLocked() {
	if !d.running {
		return
	}
	d.banked += d.clock.Now().Sub(d.runStart)
	if d.banked > d.threshold {
		d.banked = d.threshold
	}
	d.running = false
	d.stopTimerLocked()
}

func (d *Detector) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
}

func (d *Detector) elapsedLocked() time.Duration {
	elapsed := d.banked
	if d.running {
		elapsed += d.clock.Now().Sub(d.runStart)
	}
	if elapsed > d.threshold {
		elapsed = d.threshold
	}
	return elapsed
}

// expire is the deadline callback for run gen.
func (d *Detector) expire(gen uint64) {
	d.callbackMu.Lock()
	defer d.callbackMu.Unlock()

	d.mu.Lock()
	if d.closed || !d.running || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.banked = d.threshold
	d.running = false
	d.fired = true
	d.timer = nil
	cb := d.onComplete
	d.mu.Unlock()

	if cb != nil {
		cb()
	}
}
