package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Allow and Do when the breaker rejects the call
// without attempting it.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the breaker state machine.
type State int

const (
	// Closed lets calls through while recording outcomes.
	Closed State = iota

	// Open short-circuits all calls until the wait duration elapses.
	Open

	// HalfOpen lets a limited number of concurrent trial calls through.
	HalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Settings configures a Breaker.
type Settings struct {
	// Name identifies the breaker (the project prefix).
	Name string

	// FailureRateThreshold is the failure percentage in [0,100] at which
	// the breaker trips.
	FailureRateThreshold float64

	// SlidingWindowSize is the number of most recent terminal outcomes
	// considered when computing the failure rate. The window must be full
	// before the breaker can trip.
	SlidingWindowSize int

	// WaitDuration is how long the breaker stays open before allowing
	// trial calls.
	WaitDuration time.Duration

	// HalfOpenPermittedCalls is the number of concurrent trial calls
	// permitted while half-open.
	HalfOpenPermittedCalls int
}

// Breaker is a count-based sliding window circuit breaker.
//
// While closed, the last SlidingWindowSize terminal outcomes are kept in a
// ring buffer; once the window is full and the failure rate reaches the
// threshold, the breaker opens. While open, calls fail fast with ErrOpen
// until WaitDuration has elapsed, at which point the breaker moves to
// half-open and permits HalfOpenPermittedCalls concurrent trial calls.
// When all trial calls have completed, the breaker closes if their failure
// rate did not exceed the threshold and reopens otherwise.
//
// All methods are safe for concurrent use.
type Breaker struct {
	settings Settings

	mu    sync.Mutex
	state State

	// Closed-state ring buffer of outcomes (true = failure).
	window []bool
	head   int
	filled int

	// Open-state bookkeeping.
	openedAt time.Time

	// Half-open trial bookkeeping.
	trialInFlight int
	trialDone     int
	trialFailures int

	// now is replaceable for tests.
	now func() time.Time
}

// New creates a breaker with the given settings.
func New(settings Settings) *Breaker {
	if settings.SlidingWindowSize < 1 {
		settings.SlidingWindowSize = 1
	}
	if settings.HalfOpenPermittedCalls < 1 {
		settings.HalfOpenPermittedCalls = 1
	}
	return &Breaker{
		settings: settings,
		window:   make([]bool, settings.SlidingWindowSize),
		now:      time.Now,
	}
}

// State returns the current state, applying the open→half-open transition
// if the wait duration has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tickLocked()
	return b.state
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.settings.Name
}

// Allow acquires permission for one call. It returns ErrOpen when the
// call must not proceed. Each successful Allow must be paired with exactly
// one Record call once the outcome is known.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tickLocked()

	switch b.state {
	case Closed:
		return nil
	case Open:
		return ErrOpen
	case HalfOpen:
		if b.trialInFlight+b.trialDone >= b.settings.HalfOpenPermittedCalls {
			return ErrOpen
		}
		b.trialInFlight++
		return nil
	}
	return nil
}

// Record reports the outcome of a call previously admitted by Allow.
func (b *Breaker) Record(failure bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.window[b.head] = failure
		b.head = (b.head + 1) % len(b.window)
		if b.filled < len(b.window) {
			b.filled++
		}
		if b.filled == len(b.window) && b.failureRateLocked() >= b.settings.FailureRateThreshold {
			b.openLocked()
		}

	case HalfOpen:
		b.trialInFlight--
		b.trialDone++
		if failure {
			b.trialFailures++
		}
		if b.trialDone >= b.settings.HalfOpenPermittedCalls {
			rate := float64(b.trialFailures) / float64(b.trialDone) * 100
			if rate > b.settings.FailureRateThreshold {
				b.openLocked()
			} else {
				b.closeLocked()
			}
		}

	case Open:
		// A call admitted before the breaker opened finished late.
		// Its outcome no longer affects the state machine.
	}
}

// Do runs fn under the breaker. classify reports whether the returned
// error counts as a failure; a nil classify treats any non-nil error as
// one.
func (b *Breaker) Do(fn func() error, classify func(error) bool) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	if classify == nil {
		b.Record(err != nil)
	} else {
		b.Record(err != nil && classify(err))
	}
	return err
}

// tickLocked applies the time-based open→half-open transition.
func (b *Breaker) tickLocked() {
	if b.state == Open && b.now().Sub(b.openedAt) >= b.settings.WaitDuration {
		b.state = HalfOpen
		b.trialInFlight = 0
		b.trialDone = 0
		b.trialFailures = 0
	}
}

// failureRateLocked computes the failure percentage over the filled window.
func (b *Breaker) failureRateLocked() float64 {
	if b.filled == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < b.filled; i++ {
		if b.window[i] {
			failures++
		}
	}
	return float64(failures) / float64(b.filled) * 100
}

func (b *Breaker) openLocked() {
	b.state = Open
	b.openedAt = b.now()
	b.resetWindowLocked()
}

func (b *Breaker) closeLocked() {
	b.state = Closed
	b.resetWindowLocked()
}

func (b *Breaker) resetWindowLocked() {
	for i := range b.window {
		b.window[i] = false
	}
	b.head = 0
	b.filled = 0
}
