// Package hint caches associations between local authenticators and reward
// wallets. Hints are advisory: they let the widget skip straight to sign-in
// for a returning visitor, but the backend stays authoritative for identity
// and verification.
package hint

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested hint is missing.
var ErrNotFound = errors.New("hint not found")

// WalletHint associates a locally-known authenticator with a reward wallet.
type WalletHint struct {
	AuthenticatorID string
	WalletAddress   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Uses            int
}

// Store persists wallet hints.
//
// Save upserts: an existing record keeps its CreatedAt, takes the new wallet
// address and UpdatedAt, and increments Uses. A new record starts at Uses 1.
// List returns hints ordered by UpdatedAt descending so the first entry is
// the most recently used authenticator.
type Store interface {
	Save(ctx context.Context, authenticatorID, walletAddress string) error
	Get(ctx context.Context, authenticatorID string) (WalletHint, error)
	List(ctx context.Context) ([]WalletHint, error)
	Remove(ctx context.Context, authenticatorID string) error
	Clear(ctx context.Context) error
}
