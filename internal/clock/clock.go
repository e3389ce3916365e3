// Package clock provides the per-question countdown and dwell timers.
//
// Every armed countdown carries a Handle, a generation stamp that is never
// reused. Tick and expiry callbacks receive the stamp of the countdown that
// produced them so a consumer can drop events from a countdown it already
// cancelled.
package clock

import (
	"errors"
	"sync"
	"time"

	"songquiz-service/internal/domain"
)

// Handle identifies one armed countdown. The zero Handle means none.
type Handle uint64

// TickFunc receives the seconds left after a tick.
type TickFunc func(h Handle, remaining int)

// ExpireFunc is called on the final tick instead of TickFunc.
type ExpireFunc func(h Handle)

// ErrInvalidDuration rejects countdowns shorter than one second.
var ErrInvalidDuration = errors.New("countdown must be at least one second")

// Clock is the only source of time-based transitions for a session.
type Clock interface {
	// Arm starts a countdown of the given number of one-second ticks.
	// Only one countdown may be active; arming again before Cancel returns
	// domain.ErrAlreadyArmed.
	Arm(seconds int, onTick TickFunc, onExpire ExpireFunc) (Handle, error)
	// Cancel stops the countdown if h is still active. It never blocks and
	// may be called any number of times.
	Cancel(h Handle)
	// AfterFunc runs fn once after d. The returned function stops it.
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

// Ticker is the wall-clock implementation.
type Ticker struct {
	interval time.Duration

	mu     sync.Mutex
	gen    uint64
	active Handle
	stop   chan struct{}
}

// NewTicker returns a clock ticking at 1Hz.
func NewTicker() *Ticker {
	return NewTickerWithInterval(time.Second)
}

// NewTickerWithInterval lets tests and demos run the countdown faster.
func NewTickerWithInterval(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Ticker{interval: interval}
}

func (t *Ticker) Arm(seconds int, onTick TickFunc, onExpire ExpireFunc) (Handle, error) {
	if seconds <= 0 {
		return 0, ErrInvalidDuration
	}

	t.mu.Lock()
	if t.active != 0 {
		t.mu.Unlock()
		return 0, domain.ErrAlreadyArmed
	}
	t.gen++
	h := Handle(t.gen)
	stop := make(chan struct{})
	t.active = h
	t.stop = stop
	t.mu.Unlock()

	go t.run(h, seconds, stop, onTick, onExpire)
	return h, nil
}

func (t *Ticker) run(h Handle, seconds int, stop <-chan struct{}, onTick TickFunc, onExpire ExpireFunc) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	remaining := seconds
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			remaining--
			if remaining <= 0 {
				t.release(h)
				onExpire(h)
				return
			}
			onTick(h, remaining)
		}
	}
}

func (t *Ticker) Cancel(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h == 0 || t.active != h {
		return
	}
	close(t.stop)
	t.active = 0
	t.stop = nil
}

// release frees the slot once a countdown has run out on its own.
func (t *Ticker) release(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == h {
		t.active = 0
		t.stop = nil
	}
}

func (t *Ticker) AfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}
