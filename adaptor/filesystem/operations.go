// Package filesystem provides the POSIX-ish primitives the deployment engine
// is built from: directory/file removal used by the reference object store's
// checkout and prune paths, atomic symlink-then-rename for active-pointer
// switching, dangling symlink pruning for exports/, and an advisory-lock
// liveness probe for in-use checkouts.
package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Operator performs filesystem operations for the deployment engine.
type Operator struct{}

// NewOperator creates a filesystem operator.
//
//	op := filesystem.NewOperator()
//	err := op.MkdirAll("/var/lib/xdg-app/exports")
func NewOperator() *Operator {
	return &Operator{}
}

// MkdirAll creates a directory and all parents, mode 0777 modulated by umask.
func (o *Operator) MkdirAll(path string) error {
	if err := os.MkdirAll(path, 0o777); err != nil {
		return fmt.Errorf("filesystem: mkdir %s: %w", path, err)
	}
	return nil
}

// Mkdir creates a single directory, tolerating EEXIST.
func (o *Operator) Mkdir(path string, mode os.FileMode) error {
	if err := os.Mkdir(path, mode); err != nil && !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("filesystem: mkdir %s: %w", path, err)
	}
	return nil
}

// Remove removes a file, symlink, or empty directory. Non-existent paths
// are ignored.
func (o *Operator) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filesystem: remove %s: %w", path, err)
	}
	return nil
}

// RemoveAll removes a path and all its contents.
func (o *Operator) RemoveAll(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("filesystem: removeall %s: %w", path, err)
	}
	return nil
}

// UnlinkIgnoreMissing removes a path, treating ENOENT as success, per the
// engine's policy of tolerating a to-be-replaced symlink that is already gone.
func (o *Operator) UnlinkIgnoreMissing(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filesystem: unlink %s: %w", path, err)
	}
	return nil
}

// AtomicSymlink creates a symlink at linkPath pointing to target using the
// temp-symlink-then-rename idiom: a randomly-named symlink is created
// alongside linkPath, then renamed over it. The rename is atomic on the same
// filesystem, so linkPath is never observably missing or dangling.
func (o *Operator) AtomicSymlink(target, linkPath string) error {
	dir := filepath.Dir(linkPath)
	tmp, err := tempName(dir, ".active-")
	if err != nil {
		return fmt.Errorf("filesystem: tempname %s: %w", dir, err)
	}
	if err := os.Symlink(target, tmp); err != nil {
		return fmt.Errorf("filesystem: symlink %s -> %s: %w", tmp, target, err)
	}
	if err := os.Rename(tmp, linkPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("filesystem: rename %s -> %s: %w", tmp, linkPath, err)
	}
	return nil
}

// ReadLink returns the symlink target at path, ok=false if the path does not exist.
func (o *Operator) ReadLink(path string) (target string, ok bool, err error) {
	target, err = os.Readlink(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("filesystem: readlink %s: %w", path, err)
	}
	return target, true, nil
}

// IsLocked probes path for a live advisory write lock using fcntl(F_GETLK),
// without acquiring the lock itself. A missing file is reported as unlocked:
// callers use this to decide whether a checkout is safe to garbage-collect.
func (o *Operator) IsLocked(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, nil
	}
	defer func() { _ = f.Close() }()

	lock := unix.Flock_t{
		Type:   unix.F_WRLCK,
		Whence: int16(io.SeekStart),
		Start:  0,
		Len:    0,
	}
	if err := unix.FcntlFlock(f.Fd(), unix.F_GETLK, &lock); err != nil {
		return false, fmt.Errorf("filesystem: fcntl F_GETLK %s: %w", path, err)
	}
	return lock.Type != unix.F_UNLCK, nil
}

// PruneDanglingSymlinks walks dir recursively and removes every symlink
// whose target does not resolve, returning the count removed.
func (o *Operator) PruneDanglingSymlinks(dir string) (int, error) {
	pruned := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.Type()&os.ModeSymlink == 0 {
			return nil
		}
		if _, statErr := os.Stat(path); statErr != nil {
			if os.IsNotExist(statErr) {
				if rmErr := os.Remove(path); rmErr == nil {
					pruned++
				}
			}
		}
		return nil
	})
	if err != nil {
		return pruned, fmt.Errorf("filesystem: prune dangling symlinks %s: %w", dir, err)
	}
	return pruned, nil
}

func tempName(dir, prefix string) (string, error) {
	f, err := os.CreateTemp(dir, prefix+"*")
	if err != nil {
		return "", err
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return name, nil
}
