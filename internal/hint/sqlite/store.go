package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopembed/referral-widget/internal/hint"
	"github.com/shopembed/referral-widget/internal/hint/sqlite/migrations"
	"github.com/shopembed/referral-widget/internal/platform/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements hint persistence over SQLite.
type Store struct {
	sqlDB *sql.DB
	clock func() time.Time
}

// Open opens a hint SQLite store and applies bundled migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB, clock: time.Now}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SetClock overrides the store clock. Tests use it to pin timestamps.
func (s *Store) SetClock(clock func() time.Time) {
	if clock != nil {
		s.clock = clock
	}
}

// Save upserts a wallet hint in a single statement, so the read-modify-write
// for one key cannot interleave with another operation.
func (s *Store) Save(ctx context.Context, authenticatorID, walletAddress string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(authenticatorID) == "" {
		return fmt.Errorf("authenticator id is required")
	}
	if strings.TrimSpace(walletAddress) == "" {
		return fmt.Errorf("wallet address is required")
	}

	now := toMillis(s.clock())
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO wallet_hints (authenticator_id, wallet_address, created_at, updated_at, uses)
VALUES (?, ?, ?, ?, 1)
ON CONFLICT(authenticator_id) DO UPDATE SET
	wallet_address = excluded.wallet_address,
	updated_at = excluded.updated_at,
	uses = wallet_hints.uses + 1
`, authenticatorID, walletAddress, now, now)
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
	if s == nil || s.sqlDB == nil {
		return hint.WalletHint{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(authenticatorID) == "" {
		return hint.WalletHint{}, fmt.Errorf("authenticator id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT authenticator_id, wallet_address, created_at, updated_at, uses
FROM wallet_hints
WHERE authenticator_id = ?
`, authenticatorID)

	record, err := scanHint(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hint.WalletHint{}, hint.ErrNotFound
		}
		return hint.WalletHint{}, fmt.Errorf("get wallet hint: %w", err)
	}
	return record, nil
}

// List returns all wallet hints, most recently used first.
func (s *Store) List(ctx context.Context) ([]hint.WalletHint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT authenticator_id, wallet_address, created_at, updated_at, uses
FROM wallet_hints
ORDER BY updated_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list wallet hints: %w", err)
	}
	defer rows.Close()

	records := make([]hint.WalletHint, 0)
	for rows.Next() {
		record, err := scanHint(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan wallet hint: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list wallet hints: %w", err)
	}
	return records, nil
}

// Remove deletes the hint for an authenticator id. Missing rows are not an
// error.
func (s *Store) Remove(ctx context.Context, authenticatorID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(authenticatorID) == "" {
		return fmt.Errorf("authenticator id is required")
	}

	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM wallet_hints WHERE authenticator_id = ?", authenticatorID); err != nil {
		return fmt.Errorf("remove wallet hint: %w", err)
	}
	return nil
}

// Clear deletes every hint.
func (s *Store) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM wallet_hints"); err != nil {
		return fmt.Errorf("clear wallet hints: %w", err)
	}
	return nil
}

func scanHint(scan func(dest ...any) error) (hint.WalletHint, error) {
	var record hint.WalletHint
	var createdAt int64
	var updatedAt int64
	if err := scan(
		&record.AuthenticatorID,
		&record.WalletAddress,
		&createdAt,
		&updatedAt,
		&record.Uses,
	); err != nil {
		return hint.WalletHint{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
