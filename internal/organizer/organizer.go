// Package organizer executes the walk/match/move pass of a run and the
// empty-directory scan and cleanup operations.
package organizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"tidy/internal/faults"
	"tidy/internal/rules"
	"tidy/internal/runlog"
)

// Options describes one organization pass over a source directory.
type Options struct {
	SourceDir  string
	SortedDir  string
	Categories []rules.Category
	DryRun     bool
}

// Execute walks SourceDir recursively, matches each regular file against the
// category set, and moves matches into SortedDir/<target_dir>. An empty
// SortedDir organizes in place: category targets are created under SourceDir
// and files already sitting in their target directory stay put. Per-file
// failures are logged and counted but do not abort the pass; only a failure
// to enumerate the source directory itself is returned as an error.
// The returned count includes dry-run planned moves.
func Execute(ctx context.Context, opts Options, log *runlog.Log) (int, error) {
	info, err := os.Stat(opts.SourceDir)
	if err != nil {
		return 0, faults.Wrap(faults.ErrPrecondition, "organize", fmt.Sprintf("source directory %s unavailable", opts.SourceDir), err)
	}
	if !info.IsDir() {
		return 0, faults.Wrap(faults.ErrPrecondition, "organize", fmt.Sprintf("source path %s is not a directory", opts.SourceDir), nil)
	}
	if opts.SortedDir == "" {
		opts.SortedDir = opts.SourceDir
	}

	sortedAbs, err := filepath.Abs(opts.SortedDir)
	if err != nil {
		return 0, fmt.Errorf("resolve sorted dir: %w", err)
	}
	sourceAbs, err := filepath.Abs(opts.SourceDir)
	if err != nil {
		return 0, fmt.Errorf("resolve source dir: %w", err)
	}

	moved := 0
	walkErr := filepath.WalkDir(opts.SourceDir, func(path string, entry fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == opts.SourceDir {
				return err
			}
			log.Appendf("Failed to read %s: %v", path, err)
			return nil
		}
		if entry.IsDir() {
			// Never descend into the sorted tree when it nests under
			// the source directory. The walk root itself is exempt so
			// in-place passes still enumerate it.
			if abs, absErr := filepath.Abs(path); absErr == nil && abs == sortedAbs && abs != sourceAbs {
				return filepath.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		category := rules.Match(entry.Name(), opts.Categories)
		if category == nil {
			log.Appendf("Skipped (no match): %s", path)
			return nil
		}

		targetDir := filepath.Join(opts.SortedDir, category.TargetDir)
		if dirAbs, dirErr := filepath.Abs(filepath.Dir(path)); dirErr == nil {
			if targetAbs, tErr := filepath.Abs(targetDir); tErr == nil && dirAbs == targetAbs {
				// Reachable only in in-place passes, where target
				// directories sit inside the walked tree.
				log.Appendf("Skipped (already sorted): %s", path)
				return nil
			}
		}
		if mkErr := os.MkdirAll(targetDir, 0o755); mkErr != nil {
			log.Appendf("Failed to create directory %s: %v", targetDir, mkErr)
			return nil
		}

		dest, destErr := resolveCollision(filepath.Join(targetDir, entry.Name()))
		if destErr != nil {
			log.Appendf("Failed to move %s: %v", path, destErr)
			return nil
		}

		if opts.DryRun {
			log.Appendf("DRY RUN: would move %s -> %s", path, dest)
			moved++
			return nil
		}
		if moveErr := moveFile(path, dest); moveErr != nil {
			log.Appendf("Failed to move %s: %v", path, moveErr)
			return nil
		}
		log.Appendf("Moved: %s -> %s", path, dest)
		moved++
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return moved, walkErr
		}
		return moved, faults.Wrap(faults.ErrPrecondition, "organize", fmt.Sprintf("enumerate %s", opts.SourceDir), walkErr)
	}

	log.Appendf("Completed file organization. Total files moved: %d", moved)
	return moved, nil
}

// resolveCollision returns the destination path, suffixing the base name
// with _1, _2, ... before the extension until a free name is found.
func resolveCollision(dest string) (string, error) {
	if _, err := os.Lstat(dest); errors.Is(err, os.ErrNotExist) {
		return dest, nil
	} else if err != nil {
		return "", err
	}

	dir := filepath.Dir(dest)
	ext := filepath.Ext(dest)
	stem := strings.TrimSuffix(filepath.Base(dest), ext)
	for counter := 1; ; counter++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
		if _, err := os.Lstat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		} else if err != nil {
			return "", err
		}
	}
}

// moveFile renames src to dst, falling back to copy-and-remove when the
// destination is on a different filesystem.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		var linkErr *os.LinkError
		if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
			if err := copyFileContents(src, dst); err != nil {
				return fmt.Errorf("copy file across devices: %w", err)
			}
			if err := os.Remove(src); err != nil {
				return fmt.Errorf("remove source after copy: %w", err)
			}
			return nil
		}
		return fmt.Errorf("move file: %w", err)
	}
	return nil
}

func copyFileContents(sourcePath, targetPath string) error {
	source, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	dest, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(dest, source); err != nil {
		dest.Close()
		return fmt.Errorf("copy data: %w", err)
	}
	if err := dest.Sync(); err != nil {
		dest.Close()
		return fmt.Errorf("sync destination: %w", err)
	}
	if err := dest.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}
	return nil
}
