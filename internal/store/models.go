package store

import (
	"time"

	"tidy/internal/schedule"
)

// Disk is a configured (source, sorted) directory pair with an optional
// schedule, stored as the raw cron string and parsed on demand.
type Disk struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SourceDir string `json:"source_dir"`
	SortedDir string `json:"sorted_dir"`
	Schedule  string `json:"schedule,omitempty"`
}

// Spec parses the disk's schedule string. A disk without a schedule (or
// with an empty one) yields (nil, nil).
func (d Disk) Spec() (*schedule.Spec, error) {
	return schedule.Parse(d.Schedule)
}

// RunStatus enumerates run lifecycle states persisted to the database.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
)

// Terminal reports whether the status is one of the immutable end states.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusError
}

// Run is one execution of the organization process against a disk. A row is
// created exactly once, mutated only by its own execution, and becomes
// immutable when it reaches a terminal status.
type Run struct {
	ID            int64      `json:"id"`
	DiskName      string     `json:"disk_name"`
	SourcePath    string     `json:"source_path"`
	Status        RunStatus  `json:"status"`
	DryRun        bool       `json:"dry_run"`
	FilesMoved    int        `json:"files_moved"`
	Log           string     `json:"-"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	StartedAt     time.Time  `json:"start_ts"`
	EndedAt       *time.Time `json:"end_ts,omitempty"`
}
