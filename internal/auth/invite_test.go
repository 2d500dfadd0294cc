package auth_test

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"voxnote/internal/auth"
)

const adminID int64 = 1

func newIssuer(t *testing.T) (*auth.Store, *auth.Issuer) {
	t.Helper()
	store := auth.NewStore(filepath.Join(t.TempDir(), "users.json"), adminID)
	return store, auth.NewIssuer(store, adminID, 24*time.Hour)
}

func TestIssue_RequiresAdmin(t *testing.T) {
	t.Parallel()

	_, issuer := newIssuer(t)

	if _, err := issuer.Issue(999); !errors.Is(err, auth.ErrNotAdmin) {
		t.Fatalf("Issue by non-admin: want ErrNotAdmin, got %v", err)
	}

	token, err := issuer.Issue(adminID)
	if err != nil {
		t.Fatalf("Issue by admin: unexpected error: %v", err)
	}
	if len(token) < 20 {
		t.Errorf("token %q looks too short for 128 bits of entropy", token)
	}
}

func TestIssue_TokensAreUnique(t *testing.T) {
	t.Parallel()

	_, issuer := newIssuer(t)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := issuer.Issue(adminID)
		if err != nil {
			t.Fatal(err)
		}
		if seen[token] {
			t.Fatalf("duplicate token issued: %q", token)
		}
		seen[token] = true
	}
}

func TestRedeem_SingleUse(t *testing.T) {
	t.Parallel()

	store, issuer := newIssuer(t)

	token, err := issuer.Issue(adminID)
	if err != nil {
		t.Fatal(err)
	}

	if got := issuer.Redeem(token, 999); got != auth.RedemptionGranted {
		t.Fatalf("first redemption: want granted, got %v", got)
	}
	if !store.IsAuthorized(999) {
		t.Fatal("redeemer should be authorized after redemption")
	}

	// Immediate second redemption of the same token must fail.
	if got := issuer.Redeem(token, 998); got != auth.RedemptionInvalid {
		t.Fatalf("second redemption: want invalid, got %v", got)
	}
	if store.IsAuthorized(998) {
		t.Fatal("second redeemer must not gain membership from a consumed token")
	}
}

func TestRedeem_UnknownToken(t *testing.T) {
	t.Parallel()

	store, issuer := newIssuer(t)

	if got := issuer.Redeem("never-issued", 999); got != auth.RedemptionInvalid {
		t.Fatalf("unknown token: want invalid, got %v", got)
	}
	if store.IsAuthorized(999) {
		t.Fatal("unknown token must not grant membership")
	}
}

func TestRedeem_Expired(t *testing.T) {
	t.Parallel()

	store, issuer := newIssuer(t)

	now := time.Now()
	issuer.SetClock(func() time.Time { return now })

	token, err := issuer.Issue(adminID)
	if err != nil {
		t.Fatal(err)
	}

	// Jump past the validity window.
	issuer.SetClock(func() time.Time { return now.Add(24*time.Hour + time.Minute) })

	if got := issuer.Redeem(token, 999); got != auth.RedemptionExpired {
		t.Fatalf("stale token: want expired, got %v", got)
	}
	if store.IsAuthorized(999) {
		t.Fatal("expired token must not grant membership")
	}

	// The expired token is discarded, so a retry reports invalid.
	if got := issuer.Redeem(token, 999); got != auth.RedemptionInvalid {
		t.Fatalf("retry of expired token: want invalid, got %v", got)
	}
	if issuer.Pending() != 0 {
		t.Errorf("Pending: want 0, got %d", issuer.Pending())
	}
}

func TestRedeem_ConcurrentSameToken(t *testing.T) {
	t.Parallel()

	_, issuer := newIssuer(t)

	token, err := issuer.Issue(adminID)
	if err != nil {
		t.Fatal(err)
	}

	const racers = 16
	results := make([]auth.Redemption, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results[n] = issuer.Redeem(token, int64(1000+n))
		}(i)
	}
	wg.Wait()

	granted := 0
	for _, r := range results {
		if r == auth.RedemptionGranted {
			granted++
		}
	}
	if granted != 1 {
		t.Fatalf("exactly one concurrent redemption may succeed, got %d", granted)
	}
}
