package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/authz"
)

func staticToken(token string) TokenSource {
	return func(context.Context) (string, bool) { return token, token != "" }
}

func TestLoginDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Fatal("missing request id header")
		}
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Email != "asha@example.com" || !req.RememberMe {
			t.Fatalf("unexpected body: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(LoginResponse{
			User:         UserPayload{ID: "u-1", Email: req.Email, Roles: []string{"agent"}},
			Token:        "acc",
			RefreshToken: "ref",
			Permissions:  []string{"customer:claim"},
			ExpiresIn:    3600,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken(""))
	resp, err := c.Login(context.Background(), LoginRequest{Email: "asha@example.com", Password: "pw", RememberMe: true})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.Token != "acc" || resp.RefreshToken != "ref" || resp.ExpiresIn != 3600 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.User.ID != "u-1" {
		t.Fatalf("unexpected user: %+v", resp.User)
	}
}

func TestBearerAndActorHeaders(t *testing.T) {
	var gotAuth, gotActor string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotActor = r.Header.Get("X-Actor-Id")
		_ = json.NewEncoder(w).Encode(VerifyResponse{Valid: true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("tok-123"))
	ctx := authz.ContextWithActor(context.Background(), "u-7", []authz.Role{authz.RoleAgent})
	if _, err := c.Verify(ctx); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotActor != "u-7" {
		t.Fatalf("unexpected actor header: %q", gotActor)
	}
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{401, ErrUnauthorized},
		{403, ErrPermissionDenied},
		{404, ErrNotFound},
		{409, ErrConflict},
		{500, ErrUnavailable},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(errorResponse{Error: "nope"})
		}))
		c := NewClient(srv.URL, staticToken("t"))
		err := c.Claim(context.Background(), "cust-1")
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: got %v, want %v", tc.status, err, tc.want)
		}
		var se *StatusError
		if !errors.As(err, &se) || se.Message != "nope" {
			t.Fatalf("status %d: server message not preserved: %v", tc.status, err)
		}
	}
}

func TestReleaseAllBodyAndEmptySet(t *testing.T) {
	var got releaseAllRequest
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/customers/release-all" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, staticToken("t"))
	if err := c.ReleaseAll(context.Background(), nil); err != nil {
		t.Fatalf("empty ReleaseAll: %v", err)
	}
	if calls != 0 {
		t.Fatal("empty set must not reach the network")
	}
	if err := c.ReleaseAll(context.Background(), []string{"c1", "c2"}); err != nil {
		t.Fatalf("ReleaseAll: %v", err)
	}
	if calls != 1 || len(got.CustomerIDs) != 2 {
		t.Fatalf("unexpected call: calls=%d body=%+v", calls, got)
	}
}

func TestTransportErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewClient(srv.URL, staticToken("t"))
	err := c.Release(context.Background(), "c1")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCallerCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(srv.URL, staticToken("t"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Claim(ctx, "c1"); err == nil {
		t.Fatal("expected cancellation error")
	}
}
