package clock

import (
	"sync"
	"time"

	"songquiz-service/internal/domain"
)

// Manual is a Clock that only moves when told to. It keeps the callbacks of
// every countdown it ever armed so tests can replay late events from a
// cancelled countdown.
type Manual struct {
	mu        sync.Mutex
	gen       uint64
	active    Handle
	remaining int
	armed     map[Handle]manualCountdown
	budgets   []int
	timers    []*manualTimer
}

type manualCountdown struct {
	onTick   TickFunc
	onExpire ExpireFunc
}

type manualTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func NewManual() *Manual {
	return &Manual{armed: make(map[Handle]manualCountdown)}
}

func (m *Manual) Arm(seconds int, onTick TickFunc, onExpire ExpireFunc) (Handle, error) {
	if seconds <= 0 {
		return 0, ErrInvalidDuration
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != 0 {
		return 0, domain.ErrAlreadyArmed
	}
	m.gen++
	h := Handle(m.gen)
	m.active = h
	m.remaining = seconds
	m.armed[h] = manualCountdown{onTick: onTick, onExpire: onExpire}
	m.budgets = append(m.budgets, seconds)
	return h, nil
}

func (m *Manual) Cancel(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h != 0 && m.active == h {
		m.active = 0
		m.remaining = 0
	}
}

// Tick delivers one second to the active countdown. It reports false when
// nothing is armed.
func (m *Manual) Tick() bool {
	m.mu.Lock()
	h := m.active
	if h == 0 {
		m.mu.Unlock()
		return false
	}
	cd := m.armed[h]
	m.remaining--
	remaining := m.remaining
	if remaining <= 0 {
		m.active = 0
	}
	m.mu.Unlock()

	if remaining <= 0 {
		cd.onExpire(h)
	} else {
		cd.onTick(h, remaining)
	}
	return true
}

// Advance ticks n times and returns how many ticks reached a countdown.
func (m *Manual) Advance(n int) int {
	delivered := 0
	for i := 0; i < n; i++ {
		if m.Tick() {
			delivered++
		}
	}
	return delivered
}

// Deliver replays a tick from any countdown ever armed, active or not.
func (m *Manual) Deliver(h Handle, remaining int) {
	m.mu.Lock()
	cd, ok := m.armed[h]
	m.mu.Unlock()
	if ok {
		cd.onTick(h, remaining)
	}
}

// Expire replays an expiry from any countdown ever armed, active or not.
func (m *Manual) Expire(h Handle) {
	m.mu.Lock()
	cd, ok := m.armed[h]
	m.mu.Unlock()
	if ok {
		cd.onExpire(h)
	}
}

// Active returns the armed countdown, or zero.
func (m *Manual) Active() Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Remaining returns the seconds left on the active countdown.
func (m *Manual) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remaining
}

// Armed returns the budgets of every countdown armed so far, in order.
func (m *Manual) Armed() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.budgets))
	copy(out, m.budgets)
	return out
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) func() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	timer := &manualTimer{delay: d, fn: fn}
	m.timers = append(m.timers, timer)
	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		if timer.stopped || timer.fired {
			return false
		}
		timer.stopped = true
		return true
	}
}

// Pending returns the delays of timers that have neither fired nor been stopped.
func (m *Manual) Pending() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []time.Duration
	for _, timer := range m.timers {
		if !timer.stopped && !timer.fired {
			out = append(out, timer.delay)
		}
	}
	return out
}

// Fire runs every pending timer registered before the call. Timers scheduled
// by those callbacks wait for the next Fire.
func (m *Manual) Fire() int {
	m.mu.Lock()
	due := m.timers
	m.timers = nil
	var run []func()
	for _, timer := range due {
		if timer.stopped || timer.fired {
			continue
		}
		timer.fired = true
		run = append(run, timer.fn)
	}
	m.mu.Unlock()

	for _, fn := range run {
		fn()
	}
	return len(run)
}
