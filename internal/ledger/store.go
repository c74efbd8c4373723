package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"phototriage/internal/config"
)

// Store persists the derived sets (kept, sensitive) and scan state backed by
// SQLite. Inserts are write-through per identifier; no transaction spans more
// than one asset, so concurrent readers always observe a consistent,
// monotonically growing set during a scan.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the triage database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.LedgerPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// InsertKept records an asset the user chose to retain. Duplicate inserts
// are a no-op, not an error.
func (s *Store) InsertKept(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("asset id is empty")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO kept_assets (id, kept_at) VALUES (?, ?)`,
		id,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert kept asset: %w", err)
	}
	return nil
}

// IsKept reports whether an identifier is in the kept set.
func (s *Store) IsKept(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM kept_assets WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query kept asset: %w", err)
	}
	return count > 0, nil
}

// KeptIDs returns all kept identifiers.
func (s *Store) KeptIDs(ctx context.Context) (map[string]struct{}, error) {
	return s.idSet(ctx, `SELECT id FROM kept_assets`)
}

// KeptCount returns the size of the kept set without materializing it.
func (s *Store) KeptCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM kept_assets`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count kept assets: %w", err)
	}
	return count, nil
}

// SensitiveEntry is one flagged verdict with the probability recorded at
// scan time.
type SensitiveEntry struct {
	ID         string
	Confidence float64
	FlaggedAt  time.Time
}

// InsertSensitive persists a positive classification verdict immediately.
// Duplicate inserts are a no-op so a rescan never rewrites prior verdicts.
func (s *Store) InsertSensitive(ctx context.Context, id string, confidence float64) error {
	if id == "" {
		return errors.New("asset id is empty")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO sensitive_assets (id, confidence, flagged_at) VALUES (?, ?, ?)`,
		id,
		confidence,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert sensitive asset: %w", err)
	}
	return nil
}

// HasSensitive reports whether an identifier was already flagged.
func (s *Store) HasSensitive(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sensitive_assets WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query sensitive asset: %w", err)
	}
	return count > 0, nil
}

// SensitiveIDs returns all flagged identifiers.
func (s *Store) SensitiveIDs(ctx context.Context) (map[string]struct{}, error) {
	return s.idSet(ctx, `SELECT id FROM sensitive_assets`)
}

// SensitiveEntries returns flagged verdicts ordered by flag time, newest
// first.
func (s *Store) SensitiveEntries(ctx context.Context) ([]SensitiveEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, confidence, flagged_at FROM sensitive_assets ORDER BY flagged_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sensitive assets: %w", err)
	}
	defer rows.Close()

	var entries []SensitiveEntry
	for rows.Next() {
		var (
			entry SensitiveEntry
			raw   string
		)
		if err := rows.Scan(&entry.ID, &entry.Confidence, &raw); err != nil {
			return nil, fmt.Errorf("scan sensitive asset: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			entry.FlaggedAt = t
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// RemoveSensitive deletes flagged entries whose underlying assets no longer
// exist. Reconciliation is lazy: it runs when deletions are flushed, not on
// every read.
func (s *Store) RemoveSensitive(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := makePlaceholders(len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM sensitive_assets WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("remove sensitive assets: %w", err)
	}
	return res.RowsAffected()
}

// ClearSensitive discards every flagged verdict. Used for explicit
// re-evaluation after a threshold change.
func (s *Store) ClearSensitive(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sensitive_assets`)
	if err != nil {
		return 0, fmt.Errorf("clear sensitive assets: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) idSet(ctx context.Context, query string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query id set: %w", err)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		set[id] = struct{}{}
	}
	return set, rows.Err()
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
