// Package fileops implements the file-browser and sidecar operations the
// API exposes. Every path-taking operation is confined to a safety root:
// requests resolving outside it (including through symlinks) are refused.
package fileops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"tidy/internal/faults"
)

// Ops performs guarded filesystem operations under a single root.
type Ops struct {
	root string
}

// New constructs an Ops confined to safetyRoot.
func New(safetyRoot string) *Ops {
	return &Ops{root: filepath.Clean(safetyRoot)}
}

// Root returns the configured safety root.
func (o *Ops) Root() string { return o.root }

// Entry describes one directory entry in a listing. Size is nil for
// directories; ItemCount is nil for files and for unreadable directories.
type Entry struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	IsDir     bool   `json:"is_dir"`
	Size      *int64 `json:"size"`
	Modified  int64  `json:"modified"`
	ItemCount *int   `json:"item_count"`
}

// ListDir lists the visible entries of a directory. Hidden entries (dot
// prefix) are omitted, matching what the file browser shows.
func (o *Ops) ListDir(path string) ([]Entry, error) {
	target, err := o.Resolve(path)
	if err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, faults.Wrap(faults.ErrNotFound, "list files", "directory not found", nil)
		}
		return nil, fmt.Errorf("list files: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entry := Entry{
			Name:     de.Name(),
			Path:     filepath.Join(target, de.Name()),
			IsDir:    de.IsDir(),
			Modified: info.ModTime().Unix(),
		}
		if de.IsDir() {
			entry.ItemCount = countVisible(entry.Path)
		} else {
			size := info.Size()
			entry.Size = &size
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func countVisible(dir string) *int {
	children, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	count := 0
	for _, child := range children {
		if !strings.HasPrefix(child.Name(), ".") {
			count++
		}
	}
	return &count
}

// Rename renames a file or directory in place. The new name stays in the
// same parent directory; an existing destination is a conflict.
func (o *Ops) Rename(path, newName string) error {
	if strings.TrimSpace(newName) == "" {
		return faults.Wrap(faults.ErrValidation, "rename", "newName is required", nil)
	}
	oldPath, err := o.Resolve(path)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(oldPath); err != nil {
		return faults.Wrap(faults.ErrNotFound, "rename", "source path not found", nil)
	}

	newPath := filepath.Join(filepath.Dir(oldPath), newName)
	if _, err := o.Resolve(newPath); err != nil {
		return err
	}
	if _, err := os.Lstat(newPath); err == nil {
		return faults.Wrap(faults.ErrConflict, "rename", "destination path already exists", nil)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("rename %s: %w", oldPath, err)
	}
	return nil
}

// Delete removes a file or an empty directory. Non-empty directories are
// refused so the browser cannot delete trees by accident.
func (o *Ops) Delete(path string) error {
	target, err := o.Resolve(path)
	if err != nil {
		return err
	}
	info, err := os.Lstat(target)
	if err != nil {
		return faults.Wrap(faults.ErrNotFound, "delete", "file or directory not found", nil)
	}

	if info.IsDir() {
		children, err := os.ReadDir(target)
		if err != nil {
			return fmt.Errorf("delete %s: %w", target, err)
		}
		if len(children) > 0 {
			return faults.Wrap(faults.ErrValidation, "delete", "directory is not empty", nil)
		}
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return faults.Wrap(faults.ErrForbidden, "delete", fmt.Sprintf("permission denied: %s", target), nil)
		}
		return fmt.Errorf("delete %s: %w", target, err)
	}
	return nil
}

// SidecarPath maps a media path to its metadata sidecar: the extension is
// replaced with .nfo, or .nfo is appended when there is none.
func SidecarPath(mediaPath string) string {
	ext := filepath.Ext(mediaPath)
	return strings.TrimSuffix(mediaPath, ext) + ".nfo"
}

// ReadSidecar returns the sidecar content for a media path, empty when no
// sidecar exists.
func (o *Ops) ReadSidecar(mediaPath string) (string, error) {
	target, err := o.Resolve(mediaPath)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(SidecarPath(target))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read sidecar: %w", err)
	}
	return string(data), nil
}

// WriteSidecar creates or replaces the sidecar for a media path.
func (o *Ops) WriteSidecar(mediaPath, content string) error {
	target, err := o.Resolve(mediaPath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(SidecarPath(target), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

// DeleteSidecar removes the sidecar for a media path. A missing sidecar is
// not an error.
func (o *Ops) DeleteSidecar(mediaPath string) error {
	target, err := o.Resolve(mediaPath)
	if err != nil {
		return err
	}
	if err := os.Remove(SidecarPath(target)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete sidecar: %w", err)
	}
	return nil
}

// Resolve cleans the path and verifies it stays inside the safety root
// after following symlinks on every existing ancestor. The returned path is
// absolute but not symlink-resolved, so operations act on the path the
// caller named.
func (o *Ops) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", faults.Wrap(faults.ErrValidation, "resolve path", "path is required", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	rootResolved, err := resolveExisting(o.root)
	if err != nil {
		return "", fmt.Errorf("resolve safety root: %w", err)
	}
	resolved, err := resolveExisting(abs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if !within(rootResolved, resolved) {
		return "", faults.Wrap(faults.ErrForbidden, "resolve path", fmt.Sprintf("path is outside the allowed directory: %s", path), nil)
	}
	return abs, nil
}

// resolveExisting follows symlinks on the longest existing prefix of path
// and rejoins the non-existing tail, so the containment check cannot be
// defeated by linking a parent directory elsewhere.
func resolveExisting(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	parent := filepath.Dir(path)
	if parent == path {
		return path, nil
	}
	resolvedParent, err := resolveExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(path)), nil
}

func within(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// Validation is the result of a path check, mirroring what the settings
// screen shows next to a path field.
type Validation struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ValidatePath checks that a path exists, is a directory, and is readable
// and writable by the daemon.
func ValidatePath(path string) Validation {
	info, err := os.Stat(path)
	if err != nil {
		return Validation{Status: "error", Message: "Path does not exist."}
	}
	if !info.IsDir() {
		return Validation{Status: "error", Message: "Path is not a directory."}
	}

	readable := unix.Access(path, unix.R_OK) == nil
	writable := unix.Access(path, unix.W_OK) == nil
	if !readable || !writable {
		var missing []string
		if !readable {
			missing = append(missing, "readable")
		}
		if !writable {
			missing = append(missing, "writable")
		}
		return Validation{Status: "error", Message: fmt.Sprintf("Path is not %s.", strings.Join(missing, " and "))}
	}
	return Validation{Status: "ok", Message: "Path is valid and accessible."}
}

// Usage reports filesystem capacity for a path in bytes.
type Usage struct {
	Total uint64 `json:"total"`
	Used  uint64 `json:"used"`
	Free  uint64 `json:"free"`
}

// DiskUsage returns capacity figures for the filesystem holding path.
func DiskUsage(path string) (Usage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	blockSize := uint64(stat.Frsize)
	if blockSize == 0 {
		blockSize = uint64(stat.Bsize)
	}
	return Usage{
		Total: stat.Blocks * blockSize,
		Used:  (stat.Blocks - stat.Bfree) * blockSize,
		Free:  stat.Bavail * blockSize,
	}, nil
}
