// Package api defines the wire types shared by the daemon's HTTP surface
// and the CLI client.
package api

import "time"

// Status mirrors the run slot: idle or running, with the most recent
// outcome attached.
type Status struct {
	Status        string     `json:"status"`
	Disk          string     `json:"disk,omitempty"`
	RunID         int64      `json:"run_id,omitempty"`
	LastRunAt     *time.Time `json:"last_run_ts,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
}

// Usage reports filesystem capacity for one configured path. Error is set
// instead of the figures when the path could not be inspected.
type Usage struct {
	Total uint64 `json:"total,omitempty"`
	Used  uint64 `json:"used,omitempty"`
	Free  uint64 `json:"free,omitempty"`
	Error string `json:"error,omitempty"`
}

// Disk is a configured disk plus live usage for its two paths, keyed
// "source" and "sorted".
type Disk struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	SourceDir string           `json:"source_dir"`
	SortedDir string           `json:"sorted_dir"`
	Schedule  string           `json:"schedule,omitempty"`
	Usage     map[string]Usage `json:"usage,omitempty"`
}

// DiskRequest is the create/update payload for a disk.
type DiskRequest struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	Sorted   string `json:"sorted"`
	Schedule string `json:"schedule,omitempty"`
}

// Category is one keyword rule as stored and exported.
type Category struct {
	Name      string   `json:"name"`
	Priority  int      `json:"priority"`
	TargetDir string   `json:"target_dir"`
	Keywords  []string `json:"keywords"`
}

// CategoryRequest is the upsert payload for a category.
type CategoryRequest struct {
	Name     string   `json:"name"`
	Priority int      `json:"priority"`
	Target   string   `json:"target"`
	Keywords []string `json:"keywords"`
}

// Run is one row of run history. The log body is only present on the
// single-run endpoint.
type Run struct {
	ID            int64      `json:"id"`
	DiskName      string     `json:"disk_name"`
	SourcePath    string     `json:"source_path"`
	Status        string     `json:"status"`
	DryRun        bool       `json:"dry_run"`
	FilesMoved    int        `json:"files_moved"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	StartedAt     time.Time  `json:"start_ts"`
	EndedAt       *time.Time `json:"end_ts,omitempty"`
}

// RunRequest starts a run against a configured disk or an ad-hoc source
// directory.
type RunRequest struct {
	Disk   string `json:"disk,omitempty"`
	Source string `json:"source,omitempty"`
	DryRun bool   `json:"dry_run,omitempty"`
}

// RunStarted acknowledges an accepted run request.
type RunStarted struct {
	Status string `json:"status"`
	RunID  int64  `json:"run_id"`
}

// RenameRequest renames a file or directory in place.
type RenameRequest struct {
	Path    string `json:"path"`
	NewName string `json:"newName"`
}

// SidecarRequest writes sidecar content next to a media path.
type SidecarRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// SidecarResponse carries sidecar content, empty when none exists.
type SidecarResponse struct {
	Content string `json:"content"`
}

// CleanupRequest lists directories to delete if still empty.
type CleanupRequest struct {
	Paths []string `json:"paths"`
}

// CleanupResponse reports per-batch cleanup results.
type CleanupResponse struct {
	Deleted int      `json:"deleted"`
	Errors  []string `json:"errors"`
}

// OK is the generic success acknowledgement.
type OK struct {
	Status string `json:"status"`
}

// Error is the generic error envelope.
type Error struct {
	Error string `json:"error"`
}

// Health is the liveness probe response.
type Health struct {
	Status string `json:"status"`
}

// Version reports the daemon build version.
type Version struct {
	Version string `json:"version"`
}

// HostInfo describes the machine the daemon runs on.
type HostInfo struct {
	System   string `json:"system"`
	Release  string `json:"release"`
	Version  string `json:"version"`
	Machine  string `json:"machine"`
	Hostname string `json:"hostname"`
}

// PathValidation is the result of a directory check.
type PathValidation struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
