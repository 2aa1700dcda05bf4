package pipeline

import (
	"context"
	"sync"
	"time"
)

// Run time limits. A run gets one extension; the hard cap holds regardless.
const (
	BaseDeadline = 15 * time.Minute
	Extension    = 10 * time.Minute
	MaxDeadline  = 40 * time.Minute
	WrapUpWindow = 60 * time.Second
)

// Deadline tracks a run's time budget. The derived context is canceled when
// the budget runs out, folding in the caller's own cancellation.
type Deadline struct {
	mu       sync.Mutex
	start    time.Time
	limit    time.Duration
	extended bool
	reset    chan struct{}
	now      func() time.Time
}

// NewDeadline starts a budget clock. A base of 0 uses BaseDeadline.
func NewDeadline(base time.Duration) *Deadline {
	return newDeadline(base, time.Now)
}

func newDeadline(base time.Duration, now func() time.Time) *Deadline {
	if base <= 0 {
		base = BaseDeadline
	}
	if base > MaxDeadline {
		base = MaxDeadline
	}
	return &Deadline{
		start: now(),
		limit: base,
		reset: make(chan struct{}, 1),
		now:   now,
	}
}

// Context derives a context canceled when the budget expires or the parent
// is canceled. Extensions move the expiry without a new context.
func (d *Deadline) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		timer := time.NewTimer(d.Remaining())
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.reset:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(d.Remaining())
			case <-timer.C:
				if d.Remaining() > 0 {
					timer.Reset(d.Remaining())
					continue
				}
				cancel()
				return
			}
		}
	}()
	return ctx, cancel
}

// Extend grants the single allowed extension. Returns false when already
// extended or the cap would be exceeded by zero gain.
func (d *Deadline) Extend() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.extended {
		return false
	}
	d.extended = true
	d.limit += Extension
	if d.limit > MaxDeadline {
		d.limit = MaxDeadline
	}
	select {
	case d.reset <- struct{}{}:
	default:
	}
	return true
}

// Extended reports whether the extension was already used.
func (d *Deadline) Extended() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.extended
}

// Remaining returns the time left in the budget, never negative.
func (d *Deadline) Remaining() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	left := d.limit - d.now().Sub(d.start)
	if left < 0 {
		return 0
	}
	return left
}

// Elapsed returns the time consumed so far.
func (d *Deadline) Elapsed() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now().Sub(d.start)
}

// InWrapUp reports whether the run is inside the final wrap-up window,
// where only persistence work should happen.
func (d *Deadline) InWrapUp() bool {
	return d.Remaining() <= WrapUpWindow
}
