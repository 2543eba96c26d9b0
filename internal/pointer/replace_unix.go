//go:build !windows

package pointer

import (
	"fmt"
	"os"
)

// isPointer reports whether path is a symbolic link.
func isPointer(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	return info.Mode()&os.ModeSymlink != 0, nil
}

// readPointer returns the link target as stored.
func readPointer(path string) (string, error) {
	return os.Readlink(path)
}

// replacePointer atomically replaces the symlink at path so it references
// target: create the new link under a temporary name, then rename it over
// the old name. Rename is atomic on the same filesystem, so readers see
// either the old target or the new one.
func replacePointer(path, target string) error {
	tmp := fmt.Sprintf("%s.tmp-%d", path, os.Getpid())
	// A stale temp link from a crashed switch is safe to discard.
	_ = os.Remove(tmp)
	if err := os.Symlink(target, tmp); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
