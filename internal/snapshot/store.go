// Package snapshot implements the immutable snapshot store.
//
// Every project owns a directory under the store root:
//
//	<root>/<projectID>/
//	  versions/
//	    v1.0/  ...snapshot files...
//	    v1.1/  ...snapshot files...
//	  current -> versions/v1.1
//
// Snapshot directories are write-once: a new version number is always a new
// directory, and nothing here ever mutates an existing one. The "current"
// indirection is owned by the pointer package.
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/stencilhq/stencil/internal/apperr"
	"github.com/stencilhq/stencil/internal/checksum"
)

// FileDigest pairs a file's path relative to the snapshot root with the
// SHA-256 digest of its contents.
type FileDigest struct {
	Path     string
	Checksum string
}

// Store manages per-project snapshot directories under a single root.
type Store struct {
	root string // absolute path to the projects root
}

// NewStore creates a Store rooted at the given directory. The directory
// must already exist.
func NewStore(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("snapshot: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("snapshot: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("snapshot: root is not a directory: %s", abs)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute projects root.
func (s *Store) Root() string {
	return s.root
}

// ProjectDir returns the absolute directory for a project.
func (s *Store) ProjectDir(projectID string) (string, error) {
	if err := checkID(projectID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, projectID), nil
}

// Path returns the absolute snapshot directory for a version number
// (e.g. "1.2" resolves to <root>/<projectID>/versions/v1.2).
func (s *Store) Path(projectID, versionNumber string) (string, error) {
	dir, err := s.ProjectDir(projectID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "versions", "v"+versionNumber), nil
}

// Exists reports whether a snapshot directory exists for the version.
func (s *Store) Exists(projectID, versionNumber string) bool {
	p, err := s.Path(projectID, versionNumber)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

// checkID rejects project identifiers that could escape the store root.
func checkID(projectID string) error {
	if projectID == "" || projectID == "." || projectID == ".." ||
		strings.ContainsAny(projectID, `/\`) {
		return fmt.Errorf("snapshot: invalid project id: %q", projectID)
	}
	return nil
}

// Create copies every file under sourceDir into a new snapshot directory
// for versionNumber, preserving relative structure, and returns the new
// directory plus a digest per copied file.
//
// The copy is all-or-nothing: any failure removes the partial directory
// before the error is returned, so incomplete snapshots never survive to be
// mistaken for valid ones.
func (s *Store) Create(projectID, sourceDir, versionNumber string) (string, []FileDigest, error) {
	target, err := s.Path(projectID, versionNumber)
	if err != nil {
		return "", nil, err
	}

	srcInfo, err := os.Stat(sourceDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s", apperr.ErrSourceNotFound, sourceDir)
		}
		return "", nil, fmt.Errorf("snapshot: stat source: %w", err)
	}
	if !srcInfo.IsDir() {
		return "", nil, fmt.Errorf("%w: %s is not a directory", apperr.ErrSourceNotFound, sourceDir)
	}

	files, err := listFiles(sourceDir)
	if err != nil {
		return "", nil, fmt.Errorf("snapshot: scan source: %w", err)
	}
	if len(files) == 0 {
		return "", nil, fmt.Errorf("%w: %s", apperr.ErrSourceEmpty, sourceDir)
	}

	if _, err := os.Stat(target); err == nil {
		return "", nil, fmt.Errorf("%w: v%s", apperr.ErrVersionExists, versionNumber)
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", nil, fmt.Errorf("snapshot: mkdir %s: %w", target, err)
	}

	digests, err := copyTree(sourceDir, target, files)
	if err != nil {
		// Restore the invariant that only complete snapshots exist on disk.
		_ = os.RemoveAll(target)
		return "", nil, fmt.Errorf("%w: %v", apperr.ErrCopyFailed, err)
	}
	return target, digests, nil
}

// Files re-hashes every file currently present under the snapshot directory
// for versionNumber. Used for integrity verification against the digests
// recorded at creation time.
func (s *Store) Files(projectID, versionNumber string) ([]FileDigest, error) {
	dir, err := s.Path(projectID, versionNumber)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: v%s", apperr.ErrVersionNotFound, versionNumber)
		}
		return nil, fmt.Errorf("snapshot: stat %s: %w", dir, err)
	}
	rels, err := listFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot: scan %s: %w", dir, err)
	}
	out := make([]FileDigest, 0, len(rels))
	for _, rel := range rels {
		sum, err := checksum.SumFile(filepath.Join(dir, rel))
		if err != nil {
			return nil, err
		}
		out = append(out, FileDigest{Path: rel, Checksum: sum})
	}
	return out, nil
}

// listFiles walks dir and returns slash-separated paths of every regular
// file, relative to dir.
func listFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func copyTree(srcDir, dstDir string, rels []string) ([]FileDigest, error) {
	digests := make([]FileDigest, 0, len(rels))
	for _, rel := range rels {
		sum, err := copyFile(filepath.Join(srcDir, filepath.FromSlash(rel)), filepath.Join(dstDir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("copy %s: %w", rel, err)
		}
		digests = append(digests, FileDigest{Path: rel, Checksum: sum})
	}
	return digests, nil
}

// copyFile copies src to dst, hashing the bytes as they pass through, and
// fsyncs the destination before returning its digest.
func copyFile(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}

	h := checksum.New()
	if _, err := io.Copy(io.MultiWriter(out, h), in); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return h.SumHex(), nil
}
