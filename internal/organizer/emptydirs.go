package organizer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CleanupResult reports the outcome of a cleanup batch. Each path succeeds
// or fails on its own.
type CleanupResult struct {
	Deleted int      `json:"deleted"`
	Errors  []string `json:"errors"`
}

// ScanEmptyDirs returns every directory under root that is empty in the
// cascading sense: it holds no regular files (or other non-directory
// entries) and every subdirectory it holds is itself empty. The root itself
// is never listed. Paths come back in depth-first order, children before
// their parents.
func ScanEmptyDirs(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan empty dirs: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan empty dirs: %s is not a directory", root)
	}

	var empty []string
	if _, err := scanDir(root, root, &empty); err != nil {
		return nil, err
	}
	return empty, nil
}

// scanDir reports whether dir is cascading-empty, appending empty
// subdirectories (and dir itself when it is not the root) to out.
func scanDir(root, dir string, out *[]string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", dir, err)
	}

	isEmpty := true
	for _, entry := range entries {
		if entry.IsDir() {
			childEmpty, err := scanDir(root, filepath.Join(dir, entry.Name()), out)
			if err != nil {
				return false, err
			}
			if !childEmpty {
				isEmpty = false
			}
			continue
		}
		// Any file, symlink, or other entry makes the directory non-empty.
		isEmpty = false
	}

	if isEmpty && dir != root {
		*out = append(*out, dir)
	}
	return isEmpty, nil
}

// CleanupDirs deletes exactly the given paths, deepest first, verifying at
// deletion time that each is still an empty directory inside root. Symlinks
// and paths resolving outside root are refused. No re-scan happens here;
// callers pass the paths they want removed.
func CleanupDirs(root string, paths []string) CleanupResult {
	result := CleanupResult{Errors: []string{}}

	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Error resolving root %s: %v", root, err))
		return result
	}

	ordered := append([]string(nil), paths...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return pathDepth(ordered[i]) > pathDepth(ordered[j])
	})

	for _, path := range ordered {
		if err := deleteEmptyDir(rootResolved, path); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Deleted++
	}
	return result
}

func deleteEmptyDir(rootResolved, path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("Skipped (not empty or not found): %s", path)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("Refused (symlink): %s", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("Skipped (not empty or not found): %s", path)
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return fmt.Errorf("Error deleting %s: %v", path, err)
	}
	if !withinRoot(rootResolved, resolved) {
		return fmt.Errorf("Refused (outside %s): %s", rootResolved, path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("Error deleting %s: %v", path, err)
	}
	if len(entries) != 0 {
		return fmt.Errorf("Skipped (not empty or not found): %s", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("Error deleting %s: %v", path, err)
	}
	return nil
}

func withinRoot(root, path string) bool {
	if path == root {
		return false
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

func pathDepth(path string) int {
	return strings.Count(filepath.Clean(path), string(filepath.Separator))
}
