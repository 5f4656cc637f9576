package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tidy/internal/faults"
)

const runTimestampLayout = time.RFC3339

// CreateRun inserts a new run row in the running state and returns its id.
func (s *Store) CreateRun(ctx context.Context, diskName, sourcePath, correlationID string, dryRun bool) (int64, error) {
	ctx = ensureContext(ctx)
	var id int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(
			ctx,
			`INSERT INTO runs (disk_name, source_path, status, dry_run, correlation_id, start_ts)
             VALUES (?, ?, ?, ?, ?, ?)`,
			diskName,
			sourcePath,
			string(RunStatusRunning),
			boolToInt(dryRun),
			nullableString(correlationID),
			time.Now().UTC().Format(runTimestampLayout),
		)
		if execErr != nil {
			return execErr
		}
		id, execErr = res.LastInsertId()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// FinishRun records the terminal outcome of a run: status, moved-file count,
// the full captured log, and the end timestamp.
func (s *Store) FinishRun(ctx context.Context, id int64, status RunStatus, filesMoved int, log string) error {
	if !status.Terminal() {
		return faults.Wrap(faults.ErrValidation, "finish run", fmt.Sprintf("status %q is not terminal", status), nil)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE runs SET status = ?, files_moved = ?, log = ?, end_ts = ? WHERE id = ?`,
		string(status),
		filesMoved,
		log,
		time.Now().UTC().Format(runTimestampLayout),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return faults.Wrap(faults.ErrNotFound, "finish run", fmt.Sprintf("no run with id %d", id), nil)
	}
	return nil
}

// GetRun fetches a single run, including its persisted log. Returns
// (nil, nil) when the run does not exist.
func (s *Store) GetRun(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, disk_name, source_path, status, dry_run, files_moved, log,
                COALESCE(correlation_id, ''), start_ts, end_ts
         FROM runs WHERE id = ?`,
		id,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns run history, newest first, without log bodies. A limit
// of zero or less means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, disk_name, source_path, status, dry_run, files_moved,
                     COALESCE(correlation_id, ''), start_ts, end_ts
              FROM runs ORDER BY start_ts DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			dryRun     int
			startRaw   string
			endRaw     sql.NullString
			statusText string
		)
		if err := rows.Scan(&r.ID, &r.DiskName, &r.SourcePath, &statusText, &dryRun, &r.FilesMoved,
			&r.CorrelationID, &startRaw, &endRaw); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Status = RunStatus(statusText)
		r.DryRun = dryRun != 0
		if err := fillRunTimes(&r, startRaw, endRaw); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RecoverInterrupted flips every run still marked running to error with a
// synthetic log line. Called once at daemon startup, before the scheduler or
// API can start new runs, so any survivor is a crash leftover.
func (s *Store) RecoverInterrupted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE runs
         SET status = ?,
             end_ts = ?,
             log = log || ?
         WHERE status = ?`,
		string(RunStatusError),
		time.Now().UTC().Format(runTimestampLayout),
		"run interrupted by unclean shutdown\n",
		string(RunStatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("recover interrupted runs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r          Run
		dryRun     int
		startRaw   string
		endRaw     sql.NullString
		statusText string
	)
	if err := row.Scan(&r.ID, &r.DiskName, &r.SourcePath, &statusText, &dryRun, &r.FilesMoved,
		&r.Log, &r.CorrelationID, &startRaw, &endRaw); err != nil {
		return nil, err
	}
	r.Status = RunStatus(statusText)
	r.DryRun = dryRun != 0
	if err := fillRunTimes(&r, startRaw, endRaw); err != nil {
		return nil, err
	}
	return &r, nil
}

func fillRunTimes(r *Run, startRaw string, endRaw sql.NullString) error {
	started, err := time.Parse(runTimestampLayout, startRaw)
	if err != nil {
		return fmt.Errorf("parse run %d start timestamp: %w", r.ID, err)
	}
	r.StartedAt = started
	if endRaw.Valid && endRaw.String != "" {
		ended, err := time.Parse(runTimestampLayout, endRaw.String)
		if err != nil {
			return fmt.Errorf("parse run %d end timestamp: %w", r.ID, err)
		}
		r.EndedAt = &ended
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
