// Package pointer owns the per-project "current" indirection.
//
// The pointer is the single mutable piece of the on-disk layout: it resolves
// to exactly one snapshot directory and is switched atomically, so a
// concurrent reader sees either the old target or the new one, never an
// intermediate state. The platform primitive differs (symbolic link on
// POSIX, directory junction on Windows); both use the same
// temporary-name-then-rename pattern behind the replacer functions in the
// platform files.
package pointer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/stencilhq/stencil/internal/apperr"
)

// Name is the pointer's file name inside a project directory. Other
// subsystems may hard-code it when reading the live output.
const Name = "current"

// Manager switches and resolves active pointers for projects under one root.
type Manager struct {
	root string
}

// NewManager creates a Manager over the given projects root.
func NewManager(root string) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("pointer: resolve root: %w", err)
	}
	return &Manager{root: abs}, nil
}

func (m *Manager) pointerPath(projectID string) string {
	return filepath.Join(m.root, projectID, Name)
}

// SetActive atomically points the project's "current" indirection at the
// snapshot directory for versionNumber. The snapshot must already exist.
//
// If something that is not a recognized indirection sits at the pointer
// path (e.g. a real directory placed there by hand), SetActive fails closed
// with ErrUnexpectedPointerState instead of deleting unknown data.
func (m *Manager) SetActive(projectID, versionNumber string) error {
	snapDir := filepath.Join(m.root, projectID, "versions", "v"+versionNumber)
	info, err := os.Stat(snapDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: v%s has no snapshot directory", apperr.ErrVersionNotFound, versionNumber)
		}
		return fmt.Errorf("pointer: stat snapshot: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: v%s snapshot path is not a directory", apperr.ErrVersionNotFound, versionNumber)
	}

	ptr := m.pointerPath(projectID)
	if _, err := os.Lstat(ptr); err == nil {
		ok, perr := isPointer(ptr)
		if perr != nil {
			return fmt.Errorf("pointer: inspect %s: %w", ptr, perr)
		}
		if !ok {
			return fmt.Errorf("%w: %s is not a recognized indirection", apperr.ErrUnexpectedPointerState, ptr)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("pointer: lstat %s: %w", ptr, err)
	}

	// Target is relative to the project directory; the layout stays valid
	// if the projects root is moved wholesale.
	target := filepath.Join("versions", "v"+versionNumber)
	if err := replacePointer(ptr, target); err != nil {
		return fmt.Errorf("pointer: switch %s -> %s: %w", ptr, target, err)
	}
	return nil
}

// Resolve returns the absolute snapshot directory the project's pointer
// currently references. A missing pointer returns fs.ErrNotExist; foreign
// data at the pointer path returns ErrUnexpectedPointerState.
func (m *Manager) Resolve(projectID string) (string, error) {
	ptr := m.pointerPath(projectID)
	if _, err := os.Lstat(ptr); err != nil {
		return "", err
	}
	ok, err := isPointer(ptr)
	if err != nil {
		return "", fmt.Errorf("pointer: inspect %s: %w", ptr, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s is not a recognized indirection", apperr.ErrUnexpectedPointerState, ptr)
	}
	target, err := readPointer(ptr)
	if err != nil {
		return "", fmt.Errorf("pointer: read %s: %w", ptr, err)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(ptr), target)
	}
	return filepath.Clean(target), nil
}

// VersionNumber extracts the version number ("1.2") from a resolved pointer
// target, or "" if the target does not follow the versions/vM.m layout.
func VersionNumber(target string) string {
	base := filepath.Base(target)
	if !strings.HasPrefix(base, "v") {
		return ""
	}
	return strings.TrimPrefix(base, "v")
}
