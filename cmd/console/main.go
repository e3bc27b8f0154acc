package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/api"
	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/kvstore"
	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/obs"
	"github.com/Nderitulynn/Customer-management-frontend-sub000/internal/session"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	base := os.Getenv("CONSOLE_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	email := os.Getenv("CONSOLE_EMAIL")
	password := os.Getenv("CONSOLE_PASSWORD")
	if email == "" || password == "" {
		log.Fatalf("CONSOLE_EMAIL and CONSOLE_PASSWORD are required")
	}
	customerID := os.Getenv("CONSOLE_CUSTOMER_ID")
	if customerID == "" {
		customerID = "smoke-customer"
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	var kv kvstore.Store
	if dsn := os.Getenv("CONSOLE_PG_DSN"); dsn != "" {
		pg, err := kvstore.OpenPG(dsn)
		if err != nil {
			log.Fatalf("open pg store: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = pg.EnsureSchema(ctx)
		cancel()
		if err != nil {
			log.Fatalf("ensure pg schema: %v", err)
		}
		kv = pg
	} else {
		kv = kvstore.NewMemory()
	}

	client := api.NewClient(base, session.TokenSourceFromStore(kv))
	mgr := session.NewManager(kv, client, client)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	events := mgr.Subscribe(ctx)
	go func() {
		for evt := range events {
			log.Printf("session event: %s %s", evt.Type, evt.Reason)
		}
	}()

	if err := mgr.Login(ctx, session.Credentials{Email: email, Password: password, RememberMe: true}); err != nil {
		log.Fatalf("login: %v", err)
	}
	user := mgr.Resolver().CurrentUser()
	if user == nil {
		log.Fatalf("no user after login")
	}

	if err := mgr.ClaimCustomer(ctx, customerID); err != nil {
		log.Fatalf("claim %s: %v", customerID, err)
	}
	// Re-claiming an already held customer must be a silent no-op.
	if err := mgr.ClaimCustomer(ctx, customerID); err != nil {
		log.Fatalf("re-claim %s: %v", customerID, err)
	}
	if n := mgr.Claims().Count(); n != 1 {
		log.Fatalf("claim count after re-claim: %d", n)
	}

	if err := mgr.ReleaseCustomer(ctx, customerID); err != nil {
		log.Fatalf("release %s: %v", customerID, err)
	}
	if n := mgr.Claims().Count(); n != 0 {
		log.Fatalf("claim count after release: %d", n)
	}

	if err := mgr.Logout(ctx, false); err != nil {
		log.Fatalf("logout: %v", err)
	}
	if mgr.Status() != session.StatusLoggedOut {
		log.Fatalf("status after logout: %v", mgr.Status())
	}

	fmt.Printf("✅ console session smoke test passed: user=%s\n", user.ID)
}
