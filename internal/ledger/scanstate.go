package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	scanKeyStarted   = "scan_started"
	scanKeyCompleted = "scan_completed"
	scanKeyVersion   = "scan_version"
)

// ScanState mirrors the persisted scan flags. Version increments once per
// completed scan and is the signal consumers use to refresh counts.
type ScanState struct {
	Started   bool
	Completed bool
	Version   int
}

// ScanState returns the persisted scan flags. Missing keys read as zero
// values so a fresh database reports an idle, never-run scan.
func (s *Store) ScanState(ctx context.Context) (ScanState, error) {
	state := ScanState{}
	var err error
	if state.Started, err = s.scanFlag(ctx, scanKeyStarted); err != nil {
		return ScanState{}, err
	}
	if state.Completed, err = s.scanFlag(ctx, scanKeyCompleted); err != nil {
		return ScanState{}, err
	}
	version, err := s.scanValue(ctx, scanKeyVersion)
	if err != nil {
		return ScanState{}, err
	}
	state.Version = int(version)
	return state, nil
}

// SetScanStarted marks that a scan pass has begun. The flag persists across
// restarts so an interrupted run is detectable at startup.
func (s *Store) SetScanStarted(ctx context.Context, started bool) error {
	return s.setScanValue(ctx, scanKeyStarted, boolToInt64(started))
}

// SetScanCompleted marks the scan complete and bumps the version in the same
// transaction so observers never see one without the other.
func (s *Store) SetScanCompleted(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin scan state tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, upsertScanValueSQL, scanKeyCompleted, int64(1)); err != nil {
		return fmt.Errorf("set scan completed: %w", err)
	}

	var version int64
	err = tx.QueryRowContext(ctx, `SELECT value FROM scan_state WHERE key = ?`, scanKeyVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read scan version: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertScanValueSQL, scanKeyVersion, version+1); err != nil {
		return fmt.Errorf("bump scan version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scan state: %w", err)
	}
	return nil
}

// ResetScan clears the started and completed flags ahead of a manual
// restart. The version is left alone; it only moves on completion.
func (s *Store) ResetScan(ctx context.Context) error {
	if err := s.setScanValue(ctx, scanKeyStarted, 0); err != nil {
		return err
	}
	return s.setScanValue(ctx, scanKeyCompleted, 0)
}

const upsertScanValueSQL = `INSERT INTO scan_state (key, value) VALUES (?, ?)
    ON CONFLICT(key) DO UPDATE SET value = excluded.value`

func (s *Store) setScanValue(ctx context.Context, key string, value int64) error {
	if _, err := s.db.ExecContext(ctx, upsertScanValueSQL, key, value); err != nil {
		return fmt.Errorf("set scan state %q: %w", key, err)
	}
	return nil
}

func (s *Store) scanValue(ctx context.Context, key string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM scan_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read scan state %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) scanFlag(ctx context.Context, key string) (bool, error) {
	value, err := s.scanValue(ctx, key)
	return value != 0, err
}

func boolToInt64(value bool) int64 {
	if value {
		return 1
	}
	return 0
}
