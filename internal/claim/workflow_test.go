package claim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/api"
	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/authz"
	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/kvstore"
)

// fakeAPI counts calls and returns scripted errors.
type fakeAPI struct {
	mu          sync.Mutex
	claims      int
	releases    int
	transfers   int
	releaseAlls int

	claimErr      error
	releaseErr    error
	transferErr   error
	releaseAllErr error

	lastReleaseAll []string
}

func (f *fakeAPI) Claim(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims++
	return f.claimErr
}

func (f *fakeAPI) Release(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	return f.releaseErr
}

func (f *fakeAPI) Transfer(ctx context.Context, id, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers++
	return f.transferErr
}

func (f *fakeAPI) ReleaseAll(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseAlls++
	f.lastReleaseAll = append([]string(nil), ids...)
	return f.releaseAllErr
}

func supervisorResolver() *authz.Resolver {
	r := authz.NewResolver()
	r.SetUser(&authz.User{ID: "sup-1", Roles: []authz.Role{authz.RoleSupervisor}})
	return r
}

func newTestWorkflow(f *fakeAPI, r *authz.Resolver) (*Workflow, *kvstore.Memory) {
	kv := kvstore.NewMemory()
	return New(f, r, kv), kv
}

func TestClaimThenReleaseEmptiesSet(t *testing.T) {
	ctx := context.Background()
	f := &fakeAPI{}
	w, kv := newTestWorkflow(f, supervisorResolver())

	if err := w.Claim(ctx, "c1", 5); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if got := w.Claimed(); len(got) != 1 || got[0] != "c1" {
		t.Fatalf("unexpected claimed set: %v", got)
	}
	if err := w.Release(ctx, "c1"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if w.Count() != 0 {
		t.Fatalf("set not empty after release: %v", w.Claimed())
	}

	// Persisted list is empty too.
	raw, ok, _ := kv.Get(ctx, kvstore.KeyClaimedCustomers)
	if !ok {
		t.Fatal("claimedCustomers key missing")
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil || len(ids) != 0 {
		t.Fatalf("persisted set not empty: %q err=%v", raw, err)
	}
}

func TestClaimIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := &fakeAPI{}
	w, _ := newTestWorkflow(f, supervisorResolver())

	if err := w.Claim(ctx, "c1", 1); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	// Second claim of the same id: no error, no second network call, even
	// with the limit already met.
	if err := w.Claim(ctx, "c1", 1); err != nil {
		t.Fatalf("re-claim must be a no-op success, got %v", err)
	}
	if f.claims != 1 {
		t.Fatalf("expected 1 network claim, got %d", f.claims)
	}
	if w.Count() != 1 {
		t.Fatalf("expected one membership, got %v", w.Claimed())
	}
}

func TestClaimPermissionAndLimit(t *testing.T) {
	ctx := context.Background()
	f := &fakeAPI{}

	readonly := authz.NewResolver()
	readonly.SetUser(&authz.User{ID: "ro", Roles: []authz.Role{authz.RoleReadOnly}})
	w, _ := newTestWorkflow(f, readonly)
	if err := w.Claim(ctx, "c1", 5); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if f.claims != 0 {
		t.Fatal("denied claim must not reach the network")
	}

	w2, _ := newTestWorkflow(f, supervisorResolver())
	if err := w2.Claim(ctx, "c1", 2); err != nil {
		t.Fatal(err)
	}
	if err := w2.Claim(ctx, "c2", 2); err != nil {
		t.Fatal(err)
	}
	if err := w2.Claim(ctx, "c3", 2); !errors.Is(err, ErrClaimLimitReached) {
		t.Fatalf("expected ErrClaimLimitReached, got %v", err)
	}
}

func TestClaimConflictMapsToAlreadyClaimed(t *testing.T) {
	ctx := context.Background()
	f := &fakeAPI{claimErr: api.ErrConflict}
	w, _ := newTestWorkflow(f, supervisorResolver())

	if err := w.Claim(ctx, "c1", 5); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
	if w.Count() != 0 {
		t.Fatal("conflicted claim must not enter the local set")
	}
}

func TestReleaseNotClaimed(t *testing.T) {
	ctx := context.Background()
	f := &fakeAPI{}
	w, _ := newTestWorkflow(f, supervisorResolver())

	if err := w.Release(ctx, "ghost"); !errors.Is(err, ErrNotClaimedBySelf) {
		t.Fatalf("expected ErrNotClaimedBySelf, got %v", err)
	}
	if f.releases != 0 {
		t.Fatal("release of unclaimed id must not reach the network")
	}
}

func TestTransferRequiresCanManage(t *testing.T) {
	ctx := context.Background()
	f := &fakeAPI{}
	w, _ := newTestWorkflow(f, supervisorResolver())
	if err := w.Claim(ctx, "c1", 5); err != nil {
		t.Fatal(err)
	}

	peer := &authz.User{ID: "peer", Roles: []authz.Role{authz.RoleSupervisor}}
	if err := w.Transfer(ctx, "c1", peer); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("peer transfer must be denied, got %v", err)
	}

	agent := &authz.User{ID: "agent", Roles: []authz.Role{authz.RoleAgent}}
	if err := w.Transfer(ctx, "c1", agent); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if w.Count() != 0 {
		t.Fatal("transferred claim must leave the local set")
	}
	if f.transfers != 1 {
		t.Fatalf("expected 1 transfer call, got %d", f.transfers)
	}

	if err := w.Transfer(ctx, "c1", agent); !errors.Is(err, ErrNotClaimedBySelf) {
		t.Fatalf("expected ErrNotClaimedBySelf after transfer, got %v", err)
	}
}

func TestReleaseAllClearsLocallyOnNetworkFailure(t *testing.T) {
	ctx := context.Background()
	f := &fakeAPI{releaseAllErr: api.ErrUnavailable}
	w, kv := newTestWorkflow(f, supervisorResolver())

	for i := 0; i < 3; i++ {
		if err := w.Claim(ctx, fmt.Sprintf("c%d", i), 10); err != nil {
			t.Fatal(err)
		}
	}

	err := w.ReleaseAll(ctx)
	if !errors.Is(err, api.ErrUnavailable) {
		t.Fatalf("expected the network error to surface, got %v", err)
	}
	if w.Count() != 0 {
		t.Fatalf("local set must be empty after ReleaseAll, got %v", w.Claimed())
	}
	if len(f.lastReleaseAll) != 3 {
		t.Fatalf("expected 3 ids in release-all body, got %v", f.lastReleaseAll)
	}
	raw, _, _ := kv.Get(ctx, kvstore.KeyClaimedCustomers)
	if raw != "null" && raw != "[]" {
		t.Fatalf("persisted set not cleared: %q", raw)
	}

	// Empty set skips the network entirely.
	if err := w.ReleaseAll(ctx); err != nil {
		t.Fatalf("empty ReleaseAll: %v", err)
	}
	if f.releaseAlls != 1 {
		t.Fatalf("expected 1 release-all call, got %d", f.releaseAlls)
	}
}

func TestReconcileReplacesLocalState(t *testing.T) {
	ctx := context.Background()
	f := &fakeAPI{}
	w, _ := newTestWorkflow(f, supervisorResolver())

	if err := w.Claim(ctx, "stale", 10); err != nil {
		t.Fatal(err)
	}
	w.Reconcile(ctx, []string{"c7", "c9"})

	got := w.Claimed()
	if len(got) != 2 || got[0] != "c7" || got[1] != "c9" {
		t.Fatalf("unexpected reconciled set: %v", got)
	}
}

func TestActivityLogIsBounded(t *testing.T) {
	ctx := context.Background()
	f := &fakeAPI{}
	w, _ := newTestWorkflow(f, supervisorResolver())

	for i := 0; i < 60; i++ {
		id := fmt.Sprintf("c%d", i)
		if err := w.Claim(ctx, id, 0); err != nil {
			t.Fatal(err)
		}
	}
	entries := w.Activity()
	if len(entries) != maxActivityEntries {
		t.Fatalf("expected %d entries, got %d", maxActivityEntries, len(entries))
	}
	// Oldest entries dropped: the first remaining one is claim #10.
	if entries[0].CustomerID != "c10" {
		t.Fatalf("unexpected oldest entry: %+v", entries[0])
	}
	if entries[len(entries)-1].CustomerID != "c59" {
		t.Fatalf("unexpected newest entry: %+v", entries[len(entries)-1])
	}
}

func TestConcurrentClaimsOnDistinctCustomers(t *testing.T) {
	ctx := context.Background()
	f := &fakeAPI{}
	w, _ := newTestWorkflow(f, supervisorResolver())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = w.Claim(ctx, fmt.Sprintf("c%d", i), 0)
		}(i)
	}
	wg.Wait()

	if w.Count() != 20 {
		t.Fatalf("expected 20 claims, got %d", w.Count())
	}
	if f.claims != 20 {
		t.Fatalf("expected 20 network calls, got %d", f.claims)
	}
}
