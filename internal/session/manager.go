package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/api"
	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/audit"
	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/authz"
	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/claim"
	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/kvstore"
	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/obs"
)

// Status is the manager's lifecycle position.
type Status int

const (
	StatusLoggedOut Status = iota
	StatusLoggingIn
	StatusActive
	StatusRefreshing
)

func (s Status) String() string {
	switch s {
	case StatusLoggingIn:
		return "logging_in"
	case StatusActive:
		return "active"
	case StatusRefreshing:
		return "refreshing"
	default:
		return "logged_out"
	}
}

// Credentials is the login input.
type Credentials struct {
	Email      string
	Password   string
	RememberMe bool
}

// AuthAPI is the slice of the backend the manager needs. *api.Client
// satisfies it.
type AuthAPI interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*api.RefreshResponse, error)
	Logout(ctx context.Context) error
	Verify(ctx context.Context) (*api.VerifyResponse, error)
}

// sessionState is the persisted shape under the sessionState key. Times are
// epoch milliseconds, matching the tokenExpiration key.
type sessionState struct {
	LoginTime        int64 `json:"loginTime"`
	LastActivityTime int64 `json:"lastActivityTime"`
	RefreshAttempts  int   `json:"refreshAttemptCount"`
	IsActive         bool  `json:"isActive"`
}

// Manager is the facade over tokens, tracking, refresh, permissions and
// claims. Constructed once per process; all methods are safe for concurrent
// use.
type Manager struct {
	kv          kvstore.Store
	auth        AuthAPI
	resolver    *authz.Resolver
	tokens      *TokenStore
	tracker     *Tracker
	sched       *Scheduler
	claims      *claim.Workflow
	events      *broadcaster
	now         func() time.Time
	idleTimeout time.Duration
	maxClaims   int

	flags     []authz.FeatureFlag
	schedOpts []SchedulerOption

	mu     sync.Mutex
	status Status
}

// ManagerOption configures the manager before its components are built.
type ManagerOption func(*Manager)

// WithIdleTimeout overrides the inactivity expiry window.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithManagerClock overrides the time source for the manager and every
// component it builds. Useful for tests.
func WithManagerClock(fn func() time.Time) ManagerOption {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithMaxClaims caps concurrent customer claims per user. Zero means
// unbounded.
func WithMaxClaims(n int) ManagerOption {
	return func(m *Manager) {
		if n >= 0 {
			m.maxClaims = n
		}
	}
}

// WithFeatureFlags seeds the permission resolver's flag registry.
func WithFeatureFlags(flags ...authz.FeatureFlag) ManagerOption {
	return func(m *Manager) { m.flags = append(m.flags, flags...) }
}

// WithSchedulerOptions forwards options to the refresh scheduler.
func WithSchedulerOptions(opts ...SchedulerOption) ManagerOption {
	return func(m *Manager) { m.schedOpts = append(m.schedOpts, opts...) }
}

// NewManager wires the session components over one key-value store and one
// backend client.
func NewManager(kv kvstore.Store, auth AuthAPI, claimAPI claim.API, opts ...ManagerOption) *Manager {
	m := &Manager{
		kv:          kv,
		auth:        auth,
		now:         time.Now,
		idleTimeout: DefaultMaxInactive,
		events:      newBroadcaster(),
		status:      StatusLoggedOut,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.resolver = authz.NewResolver(m.flags...)
	m.tokens = NewTokenStore(kv)
	m.tracker = NewTracker(WithTrackerClock(m.now))
	m.claims = claim.New(claimAPI, m.resolver, kv, claim.WithClock(m.now))
	schedOpts := append([]SchedulerOption{
		WithSchedulerClock(m.now),
		WithRefreshHooks(m.onRefreshSuccess, m.onRefreshExpired),
	}, m.schedOpts...)
	m.sched = NewScheduler(m.tokens, m.tracker, m.refreshCall, schedOpts...)
	return m
}

// Resolver exposes capability checks for the current user.
func (m *Manager) Resolver() *authz.Resolver { return m.resolver }

// Claims exposes the claim workflow.
func (m *Manager) Claims() *claim.Workflow { return m.claims }

// Tracker exposes activity tracking.
func (m *Manager) Tracker() *Tracker { return m.tracker }

// Scheduler exposes the refresh scheduler.
func (m *Manager) Scheduler() *Scheduler { return m.sched }

// Subscribe delivers lifecycle events until ctx is cancelled.
func (m *Manager) Subscribe(ctx context.Context) <-chan Event {
	return m.events.Subscribe(ctx)
}

// Status returns the lifecycle position. An active session with a renewal
// in flight reports StatusRefreshing.
func (m *Manager) Status() Status {
	m.mu.Lock()
	s := m.status
	m.mu.Unlock()
	if s == StatusActive && m.sched.State() == SchedulerRefreshing {
		return StatusRefreshing
	}
	return s
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Manager) baseStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) withActor(ctx context.Context) context.Context {
	if u := m.resolver.CurrentUser(); u != nil {
		return authz.ContextWithActor(ctx, u.ID, u.Roles)
	}
	return ctx
}

// Login authenticates, stores the token pair and identity, and starts the
// session. A rejected login surfaces ErrInvalidCredentials and leaves the
// manager logged out.
func (m *Manager) Login(ctx context.Context, creds Credentials) error {
	m.setStatus(StatusLoggingIn)

	resp, err := m.auth.Login(ctx, api.LoginRequest{
		Email:      creds.Email,
		Password:   creds.Password,
		RememberMe: creds.RememberMe,
	})
	if err != nil {
		m.setStatus(StatusLoggedOut)
		_ = m.tokens.Clear(ctx)
		if errors.Is(err, api.ErrUnauthorized) {
			obs.ObserveLogin("denied")
			return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		obs.ObserveLogin("error")
		return err
	}

	now := m.now()
	pair := NewTokenPair(resp.Token, resp.RefreshToken, resp.ExpiresIn, now)
	if err := m.tokens.Set(ctx, pair); err != nil {
		m.setStatus(StatusLoggedOut)
		obs.ObserveLogin("error")
		return err
	}
	if resp.RefreshExpiresIn > 0 {
		_ = m.tokens.SetRefreshExpiry(ctx, now.Add(time.Duration(resp.RefreshExpiresIn)*time.Second))
	} else if hint, ok := ExpiryHint(resp.RefreshToken); ok {
		_ = m.tokens.SetRefreshExpiry(ctx, hint)
	}

	perms := mergePermissions(resp.User.Permissions, resp.Permissions)
	m.resolver.SetUser(userFromPayload(resp.User, perms))
	m.tracker.Start()
	m.claims.Reset(ctx)
	m.sched.Reset()

	if err := m.persistIdentity(ctx, resp.User, perms, creds.RememberMe); err != nil {
		return err
	}
	m.setStatus(StatusActive)
	m.persistState(ctx)

	m.events.Publish(Event{Type: EventLoggedIn, At: now})
	obs.ObserveLogin("ok")
	_ = audit.LogEvent(m.withActor(ctx), "session.login", map[string]any{
		"email":       creds.Email,
		"remember_me": creds.RememberMe,
	})
	return nil
}

// Logout ends the session. Force skips releasing claims; everything else is
// best effort and local state is always cleared, so Logout never fails.
func (m *Manager) Logout(ctx context.Context, force bool) error {
	actx := m.withActor(ctx)
	if !force {
		if err := m.claims.ReleaseAll(actx); err != nil {
			_ = audit.LogEvent(actx, "session.release_all_failed", map[string]any{"error": err.Error()})
		}
	}
	if err := m.auth.Logout(actx); err != nil {
		_ = audit.LogEvent(actx, "session.logout_network_failed", map[string]any{"error": err.Error()})
	}
	_ = audit.LogEvent(actx, "session.logout", map[string]any{"force": force})
	m.clearLocal(ctx, EventLoggedOut, "user_logout")
	return nil
}

// Initialize resumes a persisted session at startup: restores identity,
// applies the idle timeout, and reconciles with the backend. Returns
// ErrNotLoggedIn when there is nothing to resume.
func (m *Manager) Initialize(ctx context.Context) error {
	_, ok, err := m.tokens.Get(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotLoggedIn
	}

	m.restoreIdentity(ctx)

	var st sessionState
	if raw, found, _ := m.kv.Get(ctx, kvstore.KeySessionState); found {
		_ = json.Unmarshal([]byte(raw), &st)
	}
	if st.LoginTime > 0 {
		m.tracker.Restore(time.UnixMilli(st.LoginTime), time.UnixMilli(st.LastActivityTime))
	} else {
		m.tracker.Start()
	}
	m.sched.RestoreAttempts(st.RefreshAttempts)

	if m.tracker.IsIdle(m.idleTimeout) {
		_ = audit.LogEvent(m.withActor(ctx), "session.idle_expired", nil)
		m.clearLocal(ctx, EventSessionExpired, "idle_timeout")
		return ErrSessionExpiredIdle
	}

	if raw, found, _ := m.kv.Get(ctx, kvstore.KeyClaimedCustomers); found {
		var ids []string
		if json.Unmarshal([]byte(raw), &ids) == nil {
			m.claims.Reconcile(ctx, ids)
		}
	}

	m.setStatus(StatusActive)
	m.tracker.RecordActivity()

	// A token about to expire goes straight to refresh; the verify round
	// trip would be wasted on a token we are replacing anyway.
	if m.sched.ShouldRefreshProactively(ctx) {
		if _, err := m.sched.Refresh(ctx); err != nil && terminalRefresh(err) {
			m.clearLocal(ctx, EventSessionExpired, "refresh_failed")
			return ErrSessionExpired
		}
		m.persistState(ctx)
		return nil
	}

	resp, verr := m.auth.Verify(m.withActor(ctx))
	if verr == nil && resp.Valid {
		m.applyVerify(ctx, resp)
		m.persistState(ctx)
		return nil
	}
	if _, rerr := m.sched.Refresh(ctx); rerr != nil {
		if terminalRefresh(rerr) {
			m.clearLocal(ctx, EventSessionExpired, "verify_failed")
			return ErrSessionExpired
		}
		// Transient; keep the restored session and let the next action
		// trigger the retry.
	}
	m.persistState(ctx)
	return nil
}

// RecordActivity marks user activity and persists the updated state.
func (m *Manager) RecordActivity(ctx context.Context) {
	if m.baseStatus() != StatusActive {
		return
	}
	m.tracker.RecordActivity()
	m.persistState(ctx)
}

// Refresh forces one renewal attempt. Terminal failures clear local state.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err := m.sched.Refresh(ctx)
	if err != nil && (errors.Is(err, ErrRefreshExhausted) || errors.Is(err, ErrRefreshTokenInvalid)) {
		m.clearLocal(ctx, EventSessionExpired, "refresh_failed")
		return ErrSessionExpired
	}
	if err == nil {
		m.persistState(ctx)
	}
	return err
}

// Do runs an authenticated action. Activity is recorded, the actor identity
// is attached to the context, a near-expiry token is renewed first, and a
// 401 from the action triggers exactly one refresh and one retry. A second
// 401 ends the session.
func (m *Manager) Do(ctx context.Context, fn func(context.Context) error) error {
	if m.baseStatus() != StatusActive {
		return ErrNotLoggedIn
	}
	if m.tracker.IsIdle(m.idleTimeout) {
		m.clearLocal(ctx, EventSessionExpired, "idle_timeout")
		return ErrSessionExpiredIdle
	}
	m.tracker.RecordActivity()
	actx := m.withActor(ctx)

	if m.sched.ShouldRefreshProactively(ctx) {
		if _, err := m.sched.Refresh(ctx); err != nil && terminalRefresh(err) {
			m.clearLocal(ctx, EventSessionExpired, "refresh_failed")
			return ErrSessionExpired
		}
	}

	err := fn(actx)
	if err == nil || !errors.Is(err, api.ErrUnauthorized) {
		return err
	}

	if _, rerr := m.sched.Refresh(ctx); rerr != nil {
		if terminalRefresh(rerr) {
			m.clearLocal(ctx, EventSessionExpired, "unauthorized")
			return ErrSessionExpired
		}
		return err
	}
	err = fn(actx)
	if err != nil && errors.Is(err, api.ErrUnauthorized) {
		m.clearLocal(ctx, EventSessionExpired, "unauthorized")
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	return err
}

// ClaimCustomer claims a customer under the configured claim cap.
func (m *Manager) ClaimCustomer(ctx context.Context, customerID string) error {
	return m.Do(ctx, func(c context.Context) error {
		return m.claims.Claim(c, customerID, m.maxClaims)
	})
}

// ReleaseCustomer releases a claimed customer.
func (m *Manager) ReleaseCustomer(ctx context.Context, customerID string) error {
	return m.Do(ctx, func(c context.Context) error {
		return m.claims.Release(c, customerID)
	})
}

// TransferCustomer hands a claimed customer to target.
func (m *Manager) TransferCustomer(ctx context.Context, customerID string, target *authz.User) error {
	return m.Do(ctx, func(c context.Context) error {
		return m.claims.Transfer(c, customerID, target)
	})
}

func (m *Manager) refreshCall(ctx context.Context, refreshToken string) (RefreshResult, error) {
	resp, err := m.auth.Refresh(ctx, refreshToken)
	if err != nil {
		return RefreshResult{}, err
	}
	return RefreshResult{
		Pair:             NewTokenPair(resp.Token, resp.RefreshToken, resp.ExpiresIn, m.now()),
		Permissions:      resp.Permissions,
		RefreshExpiresIn: resp.RefreshExpiresIn,
	}, nil
}

func (m *Manager) onRefreshSuccess(ctx context.Context, result RefreshResult) {
	if len(result.Permissions) > 0 {
		if u := m.resolver.CurrentUser(); u != nil {
			uu := *u
			uu.Permissions = authz.ParsePermissions(result.Permissions)
			m.resolver.SetUser(&uu)
			if b, err := json.Marshal(result.Permissions); err == nil {
				_ = m.kv.Set(ctx, kvstore.KeyUserPermissions, string(b))
			}
		}
	}
	m.persistState(ctx)
	m.events.Publish(Event{Type: EventRefreshed, At: m.now()})
	_ = audit.LogEvent(ctx, "session.refreshed", nil)
}

func (m *Manager) onRefreshExpired(ctx context.Context) {
	_ = audit.LogEvent(ctx, "session.refresh_rejected", nil)
	m.clearLocal(ctx, EventSessionExpired, "refresh_rejected")
}

func (m *Manager) applyVerify(ctx context.Context, resp *api.VerifyResponse) {
	perms := mergePermissions(resp.User.Permissions, resp.Permissions)
	m.resolver.SetUser(userFromPayload(resp.User, perms))
	_ = m.persistIdentity(ctx, resp.User, perms, m.rememberMe(ctx))
	m.claims.Reconcile(ctx, resp.ClaimedCustomers)
}

func (m *Manager) rememberMe(ctx context.Context) bool {
	raw, ok, _ := m.kv.Get(ctx, kvstore.KeyRememberMe)
	return ok && raw == "true"
}

func (m *Manager) restoreIdentity(ctx context.Context) {
	raw, found, _ := m.kv.Get(ctx, kvstore.KeyUser)
	if !found {
		return
	}
	var p api.UserPayload
	if json.Unmarshal([]byte(raw), &p) != nil {
		return
	}
	var perms []string
	if rawPerms, ok, _ := m.kv.Get(ctx, kvstore.KeyUserPermissions); ok {
		_ = json.Unmarshal([]byte(rawPerms), &perms)
	}
	m.resolver.SetUser(userFromPayload(p, mergePermissions(p.Permissions, perms)))
}

func (m *Manager) persistIdentity(ctx context.Context, user api.UserPayload, perms []string, rememberMe bool) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return err
	}
	permsJSON, err := json.Marshal(perms)
	if err != nil {
		return err
	}
	return m.kv.SetMany(ctx, map[string]string{
		kvstore.KeyUser:            string(userJSON),
		kvstore.KeyUserPermissions: string(permsJSON),
		kvstore.KeyRememberMe:      strconv.FormatBool(rememberMe),
	})
}

func (m *Manager) persistState(ctx context.Context) {
	loginAt, lastActivity, active := m.tracker.Snapshot()
	st := sessionState{
		RefreshAttempts: m.sched.Attempts(),
		IsActive:        active,
	}
	if !loginAt.IsZero() {
		st.LoginTime = loginAt.UnixMilli()
	}
	if !lastActivity.IsZero() {
		st.LastActivityTime = lastActivity.UnixMilli()
	}
	if b, err := json.Marshal(st); err == nil {
		_ = m.kv.Set(ctx, kvstore.KeySessionState, string(b))
	}
}

// clearLocal wipes every session key and component. It cannot fail; a
// logout must always leave the process logged out locally.
func (m *Manager) clearLocal(ctx context.Context, evt EventType, reason string) {
	m.mu.Lock()
	already := m.status == StatusLoggedOut
	m.status = StatusLoggedOut
	m.mu.Unlock()

	m.resolver.SetUser(nil)
	m.tracker.Stop()
	m.sched.Reset()
	m.claims.Reset(ctx)
	_ = m.kv.Delete(ctx, kvstore.SessionKeys...)
	if !already {
		m.events.Publish(Event{Type: evt, Reason: reason, At: m.now()})
	}
}

func terminalRefresh(err error) bool {
	return errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrRefreshExhausted) ||
		errors.Is(err, ErrRefreshTokenInvalid) ||
		errors.Is(err, ErrNoRefreshToken)
}

func userFromPayload(p api.UserPayload, perms []string) *authz.User {
	return &authz.User{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		Roles:       authz.ParseRoles(p.Roles),
		Permissions: authz.ParsePermissions(perms),
	}
}

func mergePermissions(a, b []string) []string {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
