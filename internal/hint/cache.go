package hint

import (
	"context"
	"errors"
	"sort"

	widgeterrors "github.com/shopembed/referral-widget/internal/errors"
)

// Cache fronts a ranked list of hint backends.
//
// Every call probes the backends in rank order and falls through on failure,
// so a transient primary outage degrades a single call instead of the whole
// session. A clean miss on a healthy backend is authoritative and does not
// consult lower-ranked backends.
type Cache struct {
	backends []Store
}

// NewCache builds a cache over backends in priority order.
func NewCache(backends ...Store) *Cache {
	return &Cache{backends: backends}
}

// Save upserts the hint on the first backend that accepts the write.
func (c *Cache) Save(ctx context.Context, authenticatorID, walletAddress string) error {
	var lastErr error
	for _, backend := range c.backends {
		if err := backend.Save(ctx, authenticatorID, walletAddress); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return widgeterrors.Wrap(widgeterrors.CodeStorage, "save wallet hint", lastErr)
}

// Get returns the hint for an authenticator id, or ErrNotFound.
func (c *Cache) Get(ctx context.Context, authenticatorID string) (WalletHint, error) {
	var lastErr error
	for _, backend := range c.backends {
		record, err := backend.Get(ctx, authenticatorID)
		if err == nil {
			return record, nil
		}
		if errors.Is(err, ErrNotFound) {
			return WalletHint{}, ErrNotFound
		}
		lastErr = err
	}
	if lastErr == nil {
		return WalletHint{}, ErrNotFound
	}
	return WalletHint{}, widgeterrors.Wrap(widgeterrors.CodeStorage, "get wallet hint", lastErr)
}

// WalletAddress projects Get onto the stored wallet address.
func (c *Cache) WalletAddress(ctx context.Context, authenticatorID string) (string, error) {
	record, err := c.Get(ctx, authenticatorID)
	if err != nil {
		return "", err
	}
	return record.WalletAddress, nil
}

// List returns all hints ordered by UpdatedAt descending.
func (c *Cache) List(ctx context.Context) ([]WalletHint, error) {
	var lastErr error
	for _, backend := range c.backends {
		records, err := backend.List(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].UpdatedAt.After(records[j].UpdatedAt)
		})
		return records, nil
	}
	return nil, widgeterrors.Wrap(widgeterrors.CodeStorage, "list wallet hints", lastErr)
}

// MostRecent returns the most recently used hint. It fails soft: any storage
// error reads as "no hint" so the caller treats the visitor as unregistered.
func (c *Cache) MostRecent(ctx context.Context) (WalletHint, bool) {
	records, err := c.List(ctx)
	if err != nil || len(records) == 0 {
		return WalletHint{}, false
	}
	return records[0], true
}

// Remove deletes the hint for an authenticator id on the first responsive
// backend.
func (c *Cache) Remove(ctx context.Context, authenticatorID string) error {
	var lastErr error
	for _, backend := range c.backends {
		if err := backend.Remove(ctx, authenticatorID); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return widgeterrors.Wrap(widgeterrors.CodeStorage, "remove wallet hint", lastErr)
}

// Clear removes all hints from every backend so lower-ranked copies cannot
// resurface a cleared identity.
func (c *Cache) Clear(ctx context.Context) error {
	var lastErr error
	for _, backend := range c.backends {
		if err := backend.Clear(ctx); err != nil {
			lastErr = err
		}
	}
	return widgeterrors.Wrap(widgeterrors.CodeStorage, "clear wallet hints", lastErr)
}
