package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tidy/internal/faults"
	"tidy/internal/schedule"
)

// UpsertDisk inserts a disk or updates an existing one by name. The
// schedule string is validated before anything touches the database.
func (s *Store) UpsertDisk(ctx context.Context, disk Disk) error {
	if err := validateDisk(disk); err != nil {
		return err
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO disks (name, source_dir, sorted_dir, schedule) VALUES (?, ?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET
             source_dir = excluded.source_dir,
             sorted_dir = excluded.sorted_dir,
             schedule = excluded.schedule`,
		disk.Name,
		disk.SourceDir,
		disk.SortedDir,
		nullableString(disk.Schedule),
	)
	if err != nil {
		return fmt.Errorf("upsert disk: %w", err)
	}
	return nil
}

// UpdateDisk rewrites the paths and schedule of an existing disk. The name
// is the immutable key; a missing disk yields a not-found error.
func (s *Store) UpdateDisk(ctx context.Context, disk Disk) error {
	if err := validateDisk(disk); err != nil {
		return err
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE disks SET source_dir = ?, sorted_dir = ?, schedule = ? WHERE name = ?`,
		disk.SourceDir,
		disk.SortedDir,
		nullableString(disk.Schedule),
		disk.Name,
	)
	if err != nil {
		return fmt.Errorf("update disk: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return faults.Wrap(faults.ErrNotFound, "update disk", fmt.Sprintf("no disk named %q", disk.Name), nil)
	}
	return nil
}

// DeleteDisk removes a disk configuration by name. Historical runs that
// reference the disk are left in place (orphaned by design).
func (s *Store) DeleteDisk(ctx context.Context, name string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM disks WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete disk: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return faults.Wrap(faults.ErrNotFound, "delete disk", fmt.Sprintf("no disk named %q", name), nil)
	}
	return nil
}

// GetDisk fetches a disk by name, returning (nil, nil) when absent.
func (s *Store) GetDisk(ctx context.Context, name string) (*Disk, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, name, source_dir, sorted_dir, COALESCE(schedule, '') FROM disks WHERE name = ?`,
		name,
	)
	var d Disk
	err := row.Scan(&d.ID, &d.Name, &d.SourceDir, &d.SortedDir, &d.Schedule)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get disk: %w", err)
	}
	return &d, nil
}

// ListDisks returns all disks in ascending name order. The ordering is part
// of the scheduler contract: when several disks match the same minute they
// are attempted in this order.
func (s *Store) ListDisks(ctx context.Context) ([]Disk, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, name, source_dir, sorted_dir, COALESCE(schedule, '') FROM disks ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("list disks: %w", err)
	}
	defer rows.Close()

	var disks []Disk
	for rows.Next() {
		var d Disk
		if err := rows.Scan(&d.ID, &d.Name, &d.SourceDir, &d.SortedDir, &d.Schedule); err != nil {
			return nil, fmt.Errorf("scan disk: %w", err)
		}
		disks = append(disks, d)
	}
	return disks, rows.Err()
}

func validateDisk(disk Disk) error {
	if strings.TrimSpace(disk.Name) == "" {
		return faults.Wrap(faults.ErrValidation, "save disk", "name is required", nil)
	}
	if strings.TrimSpace(disk.SourceDir) == "" || strings.TrimSpace(disk.SortedDir) == "" {
		return faults.Wrap(faults.ErrValidation, "save disk", "source and sorted directories are required", nil)
	}
	if _, err := schedule.Parse(disk.Schedule); err != nil {
		return faults.Wrap(faults.ErrValidation, "save disk", "invalid schedule", err)
	}
	return nil
}
