package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/api"
	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/obs"
)

// SchedulerState is the refresh state machine position.
type SchedulerState int

const (
	SchedulerIdle SchedulerState = iota
	SchedulerRefreshing
	SchedulerFailed
)

const (
	// DefaultMaxAttempts caps consecutive refresh attempts.
	DefaultMaxAttempts = 3
	// DefaultRefreshBuffer triggers proactive renewal this long before expiry.
	DefaultRefreshBuffer = 5 * time.Minute

	defaultBackoffBase = 2 * time.Second
	defaultBackoffMax  = 30 * time.Second
)

// RefreshResult is what a successful token renewal yields.
type RefreshResult struct {
	Pair             TokenPair
	Permissions      []string
	RefreshExpiresIn int64
}

// RefreshCall performs the network exchange of a refresh token for a new
// pair. Exactly one call is made per attempt; the scheduler never loops
// internally.
type RefreshCall func(ctx context.Context, refreshToken string) (RefreshResult, error)

// Scheduler owns the retry/backoff policy for renewing the token pair.
// Concurrent Refresh callers are coalesced into one in-flight network call
// sharing a single result.
type Scheduler struct {
	tokens      *TokenStore
	tracker     *Tracker
	call        RefreshCall
	now         func() time.Time
	maxAttempts int
	buffer      time.Duration
	backoffBase time.Duration
	backoffMax  time.Duration
	onSuccess   func(context.Context, RefreshResult)
	onExpired   func(context.Context)

	mu        sync.Mutex
	attempts  int
	state     SchedulerState
	notBefore time.Time
	inflight  *refreshFlight
}

type refreshFlight struct {
	done   chan struct{}
	result RefreshResult
	err    error
}

// SchedulerOption configures the scheduler.
type SchedulerOption func(*Scheduler)

// WithMaxAttempts overrides the attempt cap.
func WithMaxAttempts(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRefreshBuffer overrides the proactive-renewal buffer.
func WithRefreshBuffer(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.buffer = d
		}
	}
}

// WithBackoff overrides the exponential backoff base and cap.
func WithBackoff(base, max time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if base > 0 {
			s.backoffBase = base
		}
		if max > 0 {
			s.backoffMax = max
		}
	}
}

// WithSchedulerClock overrides the time source. Useful for tests.
func WithSchedulerClock(fn func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithRefreshHooks installs callbacks fired once per flight: onSuccess after
// a stored renewal, onExpired after the backend terminally rejected the
// refresh token and local state was wiped.
func WithRefreshHooks(onSuccess func(context.Context, RefreshResult), onExpired func(context.Context)) SchedulerOption {
	return func(s *Scheduler) {
		s.onSuccess = onSuccess
		s.onExpired = onExpired
	}
}

// NewScheduler creates an idle scheduler over the given token store.
func NewScheduler(tokens *TokenStore, tracker *Tracker, call RefreshCall, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		tokens:      tokens,
		tracker:     tracker,
		call:        call,
		now:         time.Now,
		maxAttempts: DefaultMaxAttempts,
		buffer:      DefaultRefreshBuffer,
		backoffBase: defaultBackoffBase,
		backoffMax:  defaultBackoffMax,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShouldRefreshProactively reports whether the stored access token expires
// within the buffer. Called opportunistically, not on a timer, so an idle
// application generates no network chatter.
func (s *Scheduler) ShouldRefreshProactively(ctx context.Context) bool {
	pair, ok, err := s.tokens.Get(ctx)
	if err != nil || !ok {
		return false
	}
	return pair.ExpiresWithin(s.now(), s.buffer)
}

// Attempts returns the consecutive failed-attempt count.
func (s *Scheduler) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// State returns the state machine position.
func (s *Scheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reset returns the scheduler to Idle with a zero attempt count. Called on
// login and logout.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.attempts = 0
	s.state = SchedulerIdle
	s.notBefore = time.Time{}
	s.mu.Unlock()
	obs.SetRefreshAttempts(0)
}

// RestoreAttempts resumes a persisted attempt count after a restart.
func (s *Scheduler) RestoreAttempts(n int) {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	s.attempts = n
	s.mu.Unlock()
	obs.SetRefreshAttempts(n)
}

// Refresh performs one renewal attempt. Concurrent callers join the
// in-flight attempt and share its result. One call is one attempt: backoff
// and the attempt cap are enforced across calls, never by looping inside.
func (s *Scheduler) Refresh(ctx context.Context) (RefreshResult, error) {
	s.mu.Lock()
	if f := s.inflight; f != nil {
		s.mu.Unlock()
		select {
		case <-f.done:
			return f.result, f.err
		case <-ctx.Done():
			return RefreshResult{}, ctx.Err()
		}
	}

	pair, ok, err := s.tokens.Get(ctx)
	if err != nil {
		s.mu.Unlock()
		return RefreshResult{}, err
	}
	if !ok || pair.RefreshToken == "" {
		s.mu.Unlock()
		return RefreshResult{}, ErrNoRefreshToken
	}
	// A locally-known-expired refresh token would fail the round trip
	// anyway; skip it.
	if exp, known := s.tokens.RefreshExpiry(ctx); known && !exp.After(s.now()) {
		s.state = SchedulerFailed
		s.mu.Unlock()
		obs.ObserveRefresh("invalid")
		return RefreshResult{}, ErrRefreshTokenInvalid
	}
	if s.attempts >= s.maxAttempts {
		s.state = SchedulerFailed
		s.mu.Unlock()
		obs.ObserveRefresh("exhausted")
		return RefreshResult{}, ErrRefreshExhausted
	}
	if s.now().Before(s.notBefore) {
		s.mu.Unlock()
		return RefreshResult{}, ErrRefreshBackoff
	}

	s.attempts++
	attempt := s.attempts
	obs.SetRefreshAttempts(attempt)
	f := &refreshFlight{done: make(chan struct{})}
	s.inflight = f
	s.state = SchedulerRefreshing
	s.mu.Unlock()

	result, err := s.call(ctx, pair.RefreshToken)
	if err == nil && !result.Pair.Valid() {
		err = ErrInvalidToken
	}
	if err == nil {
		if serr := s.tokens.Set(ctx, result.Pair); serr != nil {
			err = serr
		}
	}

	expired := err != nil && errors.Is(err, api.ErrUnauthorized)

	s.mu.Lock()
	switch {
	case err == nil:
		s.attempts = 0
		s.notBefore = time.Time{}
		s.state = SchedulerIdle
	case expired:
		s.state = SchedulerFailed
		err = fmt.Errorf("%w: %v", ErrSessionExpired, err)
	default:
		s.notBefore = s.now().Add(s.backoffFor(attempt))
		s.state = SchedulerIdle
		err = fmt.Errorf("%w: %v", ErrTransientRefresh, err)
	}
	f.result, f.err = result, err
	s.inflight = nil
	s.mu.Unlock()

	switch {
	case err == nil:
		obs.SetRefreshAttempts(0)
		obs.ObserveRefresh("ok")
		s.storeRefreshExpiry(ctx, result)
		s.tracker.RecordActivity()
		if s.onSuccess != nil {
			s.onSuccess(ctx, result)
		}
	case expired:
		obs.ObserveRefresh("expired")
		_ = s.tokens.Clear(ctx)
		s.tracker.Stop()
		if s.onExpired != nil {
			s.onExpired(ctx)
		}
	default:
		obs.ObserveRefresh("transient")
	}

	close(f.done)
	return result, err
}

func (s *Scheduler) storeRefreshExpiry(ctx context.Context, result RefreshResult) {
	switch {
	case result.RefreshExpiresIn > 0:
		_ = s.tokens.SetRefreshExpiry(ctx, s.now().Add(time.Duration(result.RefreshExpiresIn)*time.Second))
	default:
		if hint, ok := ExpiryHint(result.Pair.RefreshToken); ok {
			_ = s.tokens.SetRefreshExpiry(ctx, hint)
		}
	}
}

func (s *Scheduler) backoffFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := s.backoffBase << (attempt - 1)
	if d > s.backoffMax || d <= 0 {
		d = s.backoffMax
	}
	return d
}
