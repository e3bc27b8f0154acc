package claim

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/api"
	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/audit"
	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/authz"
	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/kvstore"
	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/obs"
)

// API is the slice of the backend client the workflow needs.
type API interface {
	Claim(ctx context.Context, customerID string) error
	Release(ctx context.Context, customerID string) error
	Transfer(ctx context.Context, customerID, targetUserID string) error
	ReleaseAll(ctx context.Context, customerIDs []string) error
}

// Workflow manages the session's exclusive customer claims. The local set is
// optimistic: the server remains authoritative, and Reconcile replaces local
// state with server truth on every session initialize/verify.
type Workflow struct {
	api      API
	resolver *authz.Resolver
	kv       kvstore.Store
	now      func() time.Time

	mu      sync.Mutex
	claimed map[string]struct{}
	locks   map[string]*sync.Mutex

	activity *activityLog
}

// Option configures the workflow.
type Option func(*Workflow)

// WithClock overrides the time source. Useful for tests.
func WithClock(fn func() time.Time) Option {
	return func(w *Workflow) {
		if fn != nil {
			w.now = fn
		}
	}
}

// New creates an empty workflow bound to the backend client and resolver.
func New(client API, resolver *authz.Resolver, kv kvstore.Store, opts ...Option) *Workflow {
	w := &Workflow{
		api:      client,
		resolver: resolver,
		kv:       kv,
		now:      time.Now,
		claimed:  make(map[string]struct{}),
		locks:    make(map[string]*sync.Mutex),
		activity: newActivityLog(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// lockFor serializes operations on a single customer id. Operations on
// different customers proceed concurrently.
func (w *Workflow) lockFor(customerID string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.locks[customerID]
	if !ok {
		l = &sync.Mutex{}
		w.locks[customerID] = l
	}
	return l
}

// Claim ensures the customer is claimed by this session. Re-claiming a
// customer already held locally is a no-op success.
func (w *Workflow) Claim(ctx context.Context, customerID string, maxClaims int) error {
	lock := w.lockFor(customerID)
	lock.Lock()
	defer lock.Unlock()

	if !w.resolver.HasPermission(authz.PermCustomerClaim) {
		obs.ObserveClaimOp("claim", "denied")
		return ErrPermissionDenied
	}

	w.mu.Lock()
	_, mine := w.claimed[customerID]
	count := len(w.claimed)
	w.mu.Unlock()
	if mine {
		obs.ObserveClaimOp("claim", "noop")
		return nil
	}
	if !w.resolver.HasContextualPermission(authz.PermCustomerClaim, authz.ClaimContext{ClaimedCount: count, MaxClaims: maxClaims}) {
		obs.ObserveClaimOp("claim", "limit")
		return ErrClaimLimitReached
	}

	if err := w.api.Claim(ctx, customerID); err != nil {
		obs.ObserveClaimOp("claim", "error")
		switch {
		case errors.Is(err, api.ErrConflict):
			return ErrAlreadyClaimed
		case errors.Is(err, api.ErrPermissionDenied):
			return ErrPermissionDenied
		}
		return err
	}

	w.mu.Lock()
	w.claimed[customerID] = struct{}{}
	snapshot := w.claimedLocked()
	w.mu.Unlock()

	w.persist(ctx, snapshot)
	w.activity.append("claim", customerID, w.now().UTC(), nil)
	_ = audit.LogEvent(ctx, "claim.acquired", map[string]any{"customer_id": customerID})
	obs.ObserveClaimOp("claim", "ok")
	return nil
}

// Release gives up a claim held by this session.
func (w *Workflow) Release(ctx context.Context, customerID string) error {
	lock := w.lockFor(customerID)
	lock.Lock()
	defer lock.Unlock()

	if !w.resolver.HasPermission(authz.PermCustomerClaimRelease) {
		obs.ObserveClaimOp("release", "denied")
		return ErrPermissionDenied
	}
	w.mu.Lock()
	_, mine := w.claimed[customerID]
	w.mu.Unlock()
	if !mine {
		obs.ObserveClaimOp("release", "not_claimed")
		return ErrNotClaimedBySelf
	}

	if err := w.api.Release(ctx, customerID); err != nil {
		obs.ObserveClaimOp("release", "error")
		if errors.Is(err, api.ErrPermissionDenied) {
			return ErrPermissionDenied
		}
		return err
	}

	w.mu.Lock()
	delete(w.claimed, customerID)
	snapshot := w.claimedLocked()
	w.mu.Unlock()

	w.persist(ctx, snapshot)
	w.activity.append("release", customerID, w.now().UTC(), nil)
	_ = audit.LogEvent(ctx, "claim.released", map[string]any{"customer_id": customerID})
	obs.ObserveClaimOp("release", "ok")
	return nil
}

// Transfer moves a held claim to another assistant. Requires the transfer
// permission and a strictly higher role level than the target. Local removal
// is optimistic; server truth is reconciled on the next initialize.
func (w *Workflow) Transfer(ctx context.Context, customerID string, target *authz.User) error {
	lock := w.lockFor(customerID)
	lock.Lock()
	defer lock.Unlock()

	if target == nil || target.ID == "" {
		return ErrPermissionDenied
	}
	if !w.resolver.HasPermission(authz.PermCustomerClaimTransfer) || !w.resolver.CanManage(target) {
		obs.ObserveClaimOp("transfer", "denied")
		return ErrPermissionDenied
	}
	w.mu.Lock()
	_, mine := w.claimed[customerID]
	w.mu.Unlock()
	if !mine {
		obs.ObserveClaimOp("transfer", "not_claimed")
		return ErrNotClaimedBySelf
	}

	if err := w.api.Transfer(ctx, customerID, target.ID); err != nil {
		obs.ObserveClaimOp("transfer", "error")
		if errors.Is(err, api.ErrPermissionDenied) {
			return ErrPermissionDenied
		}
		return err
	}

	w.mu.Lock()
	delete(w.claimed, customerID)
	snapshot := w.claimedLocked()
	w.mu.Unlock()

	w.persist(ctx, snapshot)
	w.activity.append("transfer", customerID, w.now().UTC(), map[string]string{"target_user_id": target.ID})
	_ = audit.LogEvent(ctx, "claim.transferred", map[string]any{
		"customer_id":    customerID,
		"target_user_id": target.ID,
	})
	obs.ObserveClaimOp("transfer", "ok")
	return nil
}

// ReleaseAll releases every held claim. Called during logout with no
// permission gate: the network call is best effort, and the local set is
// cleared even when it fails so the session never outlives its claims.
// The network error, if any, is returned for logging.
func (w *Workflow) ReleaseAll(ctx context.Context) error {
	w.mu.Lock()
	snapshot := w.claimedLocked()
	w.mu.Unlock()
	if len(snapshot) == 0 {
		return nil
	}

	netErr := w.api.ReleaseAll(ctx, snapshot)

	w.mu.Lock()
	w.claimed = make(map[string]struct{})
	w.mu.Unlock()
	w.persist(ctx, nil)
	w.activity.append("release_all", "", w.now().UTC(), map[string]string{"count": strconv.Itoa(len(snapshot))})
	_ = audit.LogEvent(ctx, "claim.released_all", map[string]any{
		"count":   len(snapshot),
		"net_err": netErr != nil,
	})
	if netErr != nil {
		obs.ObserveClaimOp("release_all", "error")
		return netErr
	}
	obs.ObserveClaimOp("release_all", "ok")
	return nil
}

// Reconcile replaces the local set with the server's authoritative list.
func (w *Workflow) Reconcile(ctx context.Context, customerIDs []string) {
	w.mu.Lock()
	w.claimed = make(map[string]struct{}, len(customerIDs))
	for _, id := range customerIDs {
		if id != "" {
			w.claimed[id] = struct{}{}
		}
	}
	snapshot := w.claimedLocked()
	w.mu.Unlock()

	w.persist(ctx, snapshot)
	w.activity.append("reconcile", "", w.now().UTC(), map[string]string{"count": strconv.Itoa(len(snapshot))})
}

// Reset drops all local claim state without touching the network. Used on
// login and on forced logout.
func (w *Workflow) Reset(ctx context.Context) {
	w.mu.Lock()
	w.claimed = make(map[string]struct{})
	w.mu.Unlock()
	w.persist(ctx, nil)
}

// Claimed returns a sorted snapshot of the held customer ids.
func (w *Workflow) Claimed() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.claimedLocked()
}

// Count returns the number of held claims.
func (w *Workflow) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.claimed)
}

// Activity returns a copy of the bounded diagnostic log, oldest first.
func (w *Workflow) Activity() []ActivityEntry {
	return w.activity.snapshot()
}

func (w *Workflow) claimedLocked() []string {
	out := make([]string, 0, len(w.claimed))
	for id := range w.claimed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (w *Workflow) persist(ctx context.Context, customerIDs []string) {
	obs.SetClaimsActive(len(customerIDs))
	if w.kv == nil {
		return
	}
	data, err := json.Marshal(customerIDs)
	if err != nil {
		return
	}
	if err := w.kv.Set(ctx, kvstore.KeyClaimedCustomers, string(data)); err != nil {
		obs.Log(map[string]any{
			"ts":    w.now().UTC().Format(time.RFC3339Nano),
			"level": "error",
			"msg":   "persist claimed customers failed",
			"error": err.Error(),
		})
	}
}
