package api

import (
	"tidy/internal/fileops"
	"tidy/internal/organizer"
	"tidy/internal/rules"
	"tidy/internal/runner"
	"tidy/internal/store"
)

// FromStatus converts the runner's slot snapshot to its wire form.
func FromStatus(s runner.Status) Status {
	return Status{
		Status:        s.Status,
		Disk:          s.Disk,
		RunID:         s.RunID,
		LastRunAt:     s.LastRunAt,
		LastRunStatus: s.LastRunStatus,
	}
}

// FromDisk converts a stored disk, attaching usage for both of its paths.
func FromDisk(d store.Disk) Disk {
	out := Disk{
		ID:        d.ID,
		Name:      d.Name,
		SourceDir: d.SourceDir,
		SortedDir: d.SortedDir,
		Schedule:  d.Schedule,
		Usage:     make(map[string]Usage, 2),
	}
	for key, path := range map[string]string{"source": d.SourceDir, "sorted": d.SortedDir} {
		usage, err := fileops.DiskUsage(path)
		if err != nil {
			out.Usage[key] = Usage{Error: "Path not found"}
			continue
		}
		out.Usage[key] = Usage{Total: usage.Total, Used: usage.Used, Free: usage.Free}
	}
	return out
}

// FromCategory converts a rule category to its wire form.
func FromCategory(c rules.Category) Category {
	keywords := c.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return Category{
		Name:      c.Name,
		Priority:  c.Priority,
		TargetDir: c.TargetDir,
		Keywords:  keywords,
	}
}

// ToCategory converts an imported or submitted category to its rule form.
func ToCategory(c Category) rules.Category {
	return rules.Category{
		Name:      c.Name,
		Priority:  c.Priority,
		TargetDir: c.TargetDir,
		Keywords:  c.Keywords,
	}
}

// FromRun converts a stored run summary to its wire form. The log body is
// intentionally not carried here.
func FromRun(r store.Run) Run {
	return Run{
		ID:            r.ID,
		DiskName:      r.DiskName,
		SourcePath:    r.SourcePath,
		Status:        string(r.Status),
		DryRun:        r.DryRun,
		FilesMoved:    r.FilesMoved,
		CorrelationID: r.CorrelationID,
		StartedAt:     r.StartedAt,
		EndedAt:       r.EndedAt,
	}
}

// FromCleanup converts a cleanup batch result to its wire form.
func FromCleanup(r organizer.CleanupResult) CleanupResponse {
	errs := r.Errors
	if errs == nil {
		errs = []string{}
	}
	return CleanupResponse{Deleted: r.Deleted, Errors: errs}
}
