// Package breaker implements a count-based circuit breaker as an explicit
// three-state machine. It knows nothing about HTTP; callers wrap any
// blocking operation with Execute or with the Allow/done pair.
//
//	Closed    calls pass; outcomes fill a rolling window of the last
//	          WindowSize calls. Once MinimumCalls are recorded and the
//	          failure rate reaches FailureRateThreshold the breaker opens.
//	Open      calls are rejected with ErrOpen until OpenTimeout elapses.
//	Half-Open up to HalfOpenCalls trial calls pass. One failure reopens,
//	          HalfOpenCalls successes close.
//
// A call reported as Ignored never reached the dependency: it is not
// counted and, when half-open, its trial slot is handed back.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segyhp/jaryq-library/internal/clock"
)

// ErrOpen is returned when a call is short-circuited.
var ErrOpen = errors.New("circuit breaker is open")

// ErrIgnored, returned or wrapped by an Execute fn, reports the call as
// Ignored.
var ErrIgnored = errors.New("call did not reach the dependency")

// Outcome is what a caller reports for an admitted call
type Outcome int

const (
	Success Outcome = iota
	Failure
	Ignored
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

type Settings struct {
	Name                 string
	WindowSize           int
	MinimumCalls         int
	FailureRateThreshold float64
	OpenTimeout          time.Duration
	HalfOpenCalls        int
	// CallTimeout bounds each call made through Execute. Zero disables it.
	CallTimeout time.Duration
	Clock       clock.Clock
	// IsFailure classifies the error returned by a call. The default counts
	// every error except cancellation by the caller.
	IsFailure func(err error) bool
	// OnStateChange is invoked after a transition, outside the breaker lock.
	OnStateChange func(name string, from, to State)
}

type transition struct {
	from, to State
}

type Breaker struct {
	settings Settings

	mu         sync.Mutex
	state      State
	generation uint64
	openedAt   time.Time

	window   []bool
	next     int
	count    int
	failures int

	trials         int
	trialSuccesses int
}

// New returns a closed breaker. Zero settings fall back to small defaults.
func New(s Settings) *Breaker {
	if s.WindowSize <= 0 {
		s.WindowSize = 10
	}
	if s.MinimumCalls <= 0 || s.MinimumCalls > s.WindowSize {
		s.MinimumCalls = s.WindowSize
	}
	if s.FailureRateThreshold <= 0 || s.FailureRateThreshold > 1 {
		s.FailureRateThreshold = 0.5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 10 * time.Second
	}
	if s.HalfOpenCalls <= 0 {
		s.HalfOpenCalls = 1
	}
	if s.Clock == nil {
		s.Clock = clock.NewSystem(nil)
	}
	if s.IsFailure == nil {
		s.IsFailure = defaultIsFailure
	}

	return &Breaker{
		settings: s,
		state:    StateClosed,
		window:   make([]bool, s.WindowSize),
	}
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

func (b *Breaker) Name() string {
	return b.settings.Name
}

// State returns the current state, moving Open to Half-Open when the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	t := b.refresh(b.settings.Clock.Now())
	state := b.state
	b.mu.Unlock()

	b.notify(t)
	return state
}

// Allow admits or rejects one call. When admitted, done must be called
// exactly once with the outcome of the call.
func (b *Breaker) Allow() (done func(Outcome), err error) {
	b.mu.Lock()
	t := b.refresh(b.settings.Clock.Now())

	switch b.state {
	case StateOpen:
		b.mu.Unlock()
		b.notify(t)
		return nil, ErrOpen
	case StateHalfOpen:
		if b.trials >= b.settings.HalfOpenCalls {
			b.mu.Unlock()
			b.notify(t)
			return nil, ErrOpen
		}
		b.trials++
	}

	generation := b.generation
	b.mu.Unlock()
	b.notify(t)

	var once sync.Once
	return func(outcome Outcome) {
		once.Do(func() { b.record(generation, outcome) })
	}, nil
}

// Execute runs fn through the breaker, bounding it by CallTimeout.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	done, err := b.Allow()
	if err != nil {
		return err
	}

	callCtx := ctx
	if b.settings.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, b.settings.CallTimeout)
		defer cancel()
	}

	err = fn(callCtx)
	switch {
	case errors.Is(err, ErrIgnored):
		done(Ignored)
	case b.settings.IsFailure(err):
		done(Failure)
	default:
		done(Success)
	}
	return err
}

func (b *Breaker) record(generation uint64, outcome Outcome) {
	b.mu.Lock()
	now := b.settings.Clock.Now()
	t := b.refresh(now)

	// Outcomes of calls admitted under an earlier state are stale.
	if generation != b.generation {
		b.mu.Unlock()
		b.notify(t)
		return
	}

	if outcome == Ignored {
		if b.state == StateHalfOpen {
			b.trials--
		}
		b.mu.Unlock()
		b.notify(t)
		return
	}

	switch b.state {
	case StateClosed:
		b.push(outcome == Failure)
		if b.count >= b.settings.MinimumCalls &&
			float64(b.failures)/float64(b.count) >= b.settings.FailureRateThreshold {
			t = b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		if outcome == Failure {
			t = b.setState(StateOpen, now)
			break
		}
		b.trialSuccesses++
		if b.trialSuccesses >= b.settings.HalfOpenCalls {
			t = b.setState(StateClosed, now)
		}
	}

	b.mu.Unlock()
	b.notify(t)
}

func (b *Breaker) push(failure bool) {
	if b.count == len(b.window) {
		if b.window[b.next] {
			b.failures--
		}
	} else {
		b.count++
	}

	b.window[b.next] = failure
	if failure {
		b.failures++
	}
	b.next = (b.next + 1) % len(b.window)
}

// refresh must be called with the lock held.
func (b *Breaker) refresh(now time.Time) *transition {
	if b.state == StateOpen && !now.Before(b.openedAt.Add(b.settings.OpenTimeout)) {
		return b.setState(StateHalfOpen, now)
	}
	return nil
}

// setState must be called with the lock held.
func (b *Breaker) setState(to State, now time.Time) *transition {
	from := b.state
	b.state = to
	b.generation++

	for i := range b.window {
		b.window[i] = false
	}
	b.next, b.count, b.failures = 0, 0, 0
	b.trials, b.trialSuccesses = 0, 0

	if to == StateOpen {
		b.openedAt = now
	}

	return &transition{from: from, to: to}
}

func (b *Breaker) notify(t *transition) {
	if t == nil || b.settings.OnStateChange == nil {
		return
	}
	b.settings.OnStateChange(b.settings.Name, t.from, t.to)
}

// Registry hands out one breaker per name, all built from the same template.
type Registry struct {
	mu       sync.Mutex
	template Settings
	breakers map[string]*Breaker
}

func NewRegistry(template Settings) *Registry {
	return &Registry{
		template: template,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker registered under name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	s := r.template
	s.Name = name
	b := New(s)
	r.breakers[name] = b
	return b
}
