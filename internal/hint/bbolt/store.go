// Package bbolt implements the fallback wallet-hint backend as a single JSON
// blob in a BoltDB bucket. It trades the indexed lookups of the primary
// backend for a dependency-light flat list with the same semantics.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopembed/referral-widget/internal/hint"
	"go.etcd.io/bbolt"
)

const (
	hintBucket = "hints"
	blobKey    = "wallet-hints"
)

// record is the persisted form of a wallet hint, timestamps in epoch ms.
type record struct {
	AuthenticatorID string `json:"authenticatorId"`
	WalletAddress   string `json:"walletAddress"`
	CreatedAt       int64  `json:"createdAt"`
	UpdatedAt       int64  `json:"updatedAt"`
	Uses            int    `json:"uses"`
}

// Store provides a BoltDB-backed hint store.
type Store struct {
	db    *bbolt.DB
	clock func() time.Time
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db, clock: time.Now}
	if err := store.ensureBucket(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetClock overrides the store clock. Tests use it to pin timestamps.
func (s *Store) SetClock(clock func() time.Time) {
	if clock != nil {
		s.clock = clock
	}
}

func (s *Store) ensureBucket() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(hintBucket))
		return err
	})
	if err != nil {
		return fmt.Errorf("ensure hint bucket: %w", err)
	}
	return nil
}

// Save upserts a wallet hint inside a single update transaction.
func (s *Store) Save(ctx context.Context, authenticatorID, walletAddress string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(authenticatorID) == "" {
		return fmt.Errorf("authenticator id is required")
	}
	if strings.TrimSpace(walletAddress) == "" {
		return fmt.Errorf("wallet address is required")
	}

	now := s.clock().UTC().UnixMilli()
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(hintBucket))
		if bucket == nil {
			return fmt.Errorf("hint bucket is missing")
		}

		records := decodeBlob(bucket.Get([]byte(blobKey)))
		updated := false
		for i := range records {
			if records[i].AuthenticatorID != authenticatorID {
				continue
			}
			records[i].WalletAddress = walletAddress
			records[i].UpdatedAt = now
			records[i].Uses++
			updated = true
			break
		}
		if !updated {
			records = append(records, record{
				AuthenticatorID: authenticatorID,
				WalletAddress:   walletAddress,
				CreatedAt:       now,
				UpdatedAt:       now,
				Uses:            1,
			})
		}

		blob, err := json.Marshal(records)
		if err != nil {
			return fmt.Errorf("encode hint blob: %w", err)
		}
		return bucket.Put([]byte(blobKey), blob)
	})
	if err != nil {
		return fmt.Errorf("save wallet hint: %w", err)
	}
	return nil
}

// Get fetches a wallet hint by authenticator id.
func (s *Store) Get(ctx context.Context, authenticatorID string) (hint.WalletHint, error) {
	if err := ctx.Err(); err != nil {
		return hint.WalletHint{}, err
	}
	if s == nil || s.db == nil {
		return hint.WalletHint{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(authenticatorID) == "" {
		return hint.WalletHint{}, fmt.Errorf("authenticator id is required")
	}

	var found *record
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(hintBucket))
		if bucket == nil {
			return nil
		}
		for _, rec := range decodeBlob(bucket.Get([]byte(blobKey))) {
			if rec.AuthenticatorID == authenticatorID {
				value := rec
				found = &value
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return hint.WalletHint{}, fmt.Errorf("get wallet hint: %w", err)
	}
	if found == nil {
		return hint.WalletHint{}, hint.ErrNotFound
	}
	return toDomain(*found), nil
}

// List returns all wallet hints, most recently used first.
func (s *Store) List(ctx context.Context) ([]hint.WalletHint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	var records []record
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(hintBucket))
		if bucket == nil {
			return nil
		}
		records = decodeBlob(bucket.Get([]byte(blobKey)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list wallet hints: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UpdatedAt > records[j].UpdatedAt
	})
	hints := make([]hint.WalletHint, 0, len(records))
	for _, rec := range records {
		hints = append(hints, toDomain(rec))
	}
	return hints, nil
}

// Remove deletes the hint for an authenticator id. Missing entries are not
// an error.
func (s *Store) Remove(ctx context.Context, authenticatorID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(authenticatorID) == "" {
		return fmt.Errorf("authenticator id is required")
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(hintBucket))
		if bucket == nil {
			return nil
		}
		records := decodeBlob(bucket.Get([]byte(blobKey)))
		kept := records[:0]
		for _, rec := range records {
			if rec.AuthenticatorID != authenticatorID {
				kept = append(kept, rec)
			}
		}
		blob, err := json.Marshal(kept)
		if err != nil {
			return fmt.Errorf("encode hint blob: %w", err)
		}
		return bucket.Put([]byte(blobKey), blob)
	})
	if err != nil {
		return fmt.Errorf("remove wallet hint: %w", err)
	}
	return nil
}

// Clear deletes every hint.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(hintBucket))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(blobKey))
	})
	if err != nil {
		return fmt.Errorf("clear wallet hints: %w", err)
	}
	return nil
}

// decodeBlob parses the serialized hint list. Corrupt blobs read as empty.
func decodeBlob(blob []byte) []record {
	if len(blob) == 0 {
		return nil
	}
	var records []record
	if err := json.Unmarshal(blob, &records); err != nil {
		return nil
	}
	return records
}

func toDomain(rec record) hint.WalletHint {
	return hint.WalletHint{
		AuthenticatorID: rec.AuthenticatorID,
		WalletAddress:   rec.WalletAddress,
		CreatedAt:       time.UnixMilli(rec.CreatedAt).UTC(),
		UpdatedAt:       time.UnixMilli(rec.UpdatedAt).UTC(),
		Uses:            rec.Uses,
	}
}
