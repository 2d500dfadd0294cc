package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNotAdmin is returned by [Issuer.Issue] when the caller is not the
// configured administrator.
var ErrNotAdmin = errors.New("auth: only the administrator can issue invitations")

// tokenBytes is the entropy of an invitation token. 16 bytes = 128 bits,
// enough to make guessing infeasible within any realistic validity window.
const tokenBytes = 16

// Redemption is the outcome of a token redemption attempt.
type Redemption int

const (
	// RedemptionGranted means the token was valid and membership was granted.
	RedemptionGranted Redemption = iota

	// RedemptionInvalid means the token is unknown: never issued, already
	// consumed, or lost to a process restart.
	RedemptionInvalid

	// RedemptionExpired means the token was issued longer ago than the
	// validity window. The token is discarded.
	RedemptionExpired
)

// String returns a log-friendly name for the redemption outcome.
func (r Redemption) String() string {
	switch r {
	case RedemptionGranted:
		return "granted"
	case RedemptionInvalid:
		return "invalid"
	case RedemptionExpired:
		return "expired"
	}
	return fmt.Sprintf("Redemption(%d)", int(r))
}

// pendingInvite records who issued a token and when.
type pendingInvite struct {
	issuedBy int64
	issuedAt time.Time
}

// Issuer mints and redeems single-use invitation tokens.
//
// Pending tokens live only in process memory: a restart invalidates all
// outstanding invitations. This volatility is accepted: re-issuing an invite
// is cheap, and it keeps the bot free of any database.
//
// Issuer is safe for concurrent use. Redemption of a token is strictly
// serialized: lookup, expiry check, removal, and the membership grant all
// happen under one lock acquisition, so two near-simultaneous redemptions of
// the same token cannot both succeed.
type Issuer struct {
	mu      sync.Mutex
	pending map[string]pendingInvite

	store   *Store
	adminID int64
	ttl     time.Duration

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewIssuer creates an Issuer granting membership in store. Only adminID may
// issue tokens; tokens older than ttl at redemption time are rejected.
func NewIssuer(store *Store, adminID int64, ttl time.Duration) *Issuer {
	return &Issuer{
		pending: make(map[string]pendingInvite),
		store:   store,
		adminID: adminID,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Issue mints a new invitation token on behalf of issuedBy. Returns
// [ErrNotAdmin] when issuedBy is not the configured administrator.
func (i *Issuer) Issue(issuedBy int64) (string, error) {
	if issuedBy != i.adminID {
		return "", ErrNotAdmin
	}

	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	i.mu.Lock()
	i.pending[token] = pendingInvite{issuedBy: issuedBy, issuedAt: i.now()}
	pending := len(i.pending)
	i.mu.Unlock()

	slog.Info("invitation issued", "issued_by", issuedBy, "pending", pending)
	return token, nil
}

// Redeem consumes token and grants membership to redeemer.
//
// The token is removed from the pending set before the grant so that no code
// path, including a crash between the two steps, can redeem the same token
// twice. Losing a token without granting is the safe failure direction.
func (i *Issuer) Redeem(token string, redeemer int64) Redemption {
	i.mu.Lock()
	defer i.mu.Unlock()

	inv, ok := i.pending[token]
	if !ok {
		slog.Warn("invitation redemption failed: unknown token", "user_id", redeemer)
		return RedemptionInvalid
	}

	if i.now().Sub(inv.issuedAt) > i.ttl {
		delete(i.pending, token)
		slog.Warn("invitation redemption failed: token expired",
			"user_id", redeemer, "issued_at", inv.issuedAt)
		return RedemptionExpired
	}

	// Single-use: consume before granting.
	delete(i.pending, token)
	i.store.Add(redeemer)

	slog.Info("invitation redeemed", "user_id", redeemer, "issued_by", inv.issuedBy)
	return RedemptionGranted
}

// Pending returns the number of outstanding invitation tokens.
func (i *Issuer) Pending() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.pending)
}

// SetClock replaces the issuer's time source. Intended for tests.
func (i *Issuer) SetClock(now func() time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.now = now
}
