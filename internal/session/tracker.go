package session

import (
	"sync"
	"time"
)

// DefaultMaxInactive is the idle timeout after which a session is forcibly
// terminated.
const DefaultMaxInactive = 30 * time.Minute

// Tracker records login and last-activity times and answers idle queries.
type Tracker struct {
	mu           sync.Mutex
	now          func() time.Time
	loginAt      time.Time
	lastActivity time.Time
	active       bool
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerClock overrides the time source. Useful for tests.
func WithTrackerClock(fn func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTracker creates an inactive tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start marks the session active with login and activity set to now.
func (t *Tracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.loginAt = now
	t.lastActivity = now
	t.active = true
}

// Restore resumes a persisted session without resetting its times.
func (t *Tracker) Restore(loginAt, lastActivity time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loginAt = loginAt
	t.lastActivity = lastActivity
	t.active = true
}

// Stop marks the session inactive.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = false
	t.loginAt = time.Time{}
	t.lastActivity = time.Time{}
}

// RecordActivity bumps the last-activity time. Every authenticated call site
// goes through this.
func (t *Tracker) RecordActivity() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		t.lastActivity = t.now()
	}
}

// IsIdle reports whether at least maxInactive elapsed since the last
// recorded activity. The boundary is inclusive. An inactive tracker is
// never idle.
func (t *Tracker) IsIdle(maxInactive time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active || maxInactive <= 0 {
		return false
	}
	return t.now().Sub(t.lastActivity) >= maxInactive
}

// Duration returns the time since login, 0 when inactive.
func (t *Tracker) Duration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		return 0
	}
	return t.now().Sub(t.loginAt)
}

// Snapshot returns the tracked times and activity flag.
func (t *Tracker) Snapshot() (loginAt, lastActivity time.Time, active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loginAt, t.lastActivity, t.active
}
