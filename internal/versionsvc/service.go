// Package versionsvc implements the version manager façade.
//
// All writes flow one way: candidate tree → snapshot store (copy + hash) →
// registry (record) → active pointer (switch). A crash between the registry
// write and the pointer switch leaves the registry as the source of truth;
// Reconcile repairs the pointer from it at startup.
package versionsvc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/stencilhq/stencil/internal/apperr"
	"github.com/stencilhq/stencil/internal/models"
	"github.com/stencilhq/stencil/internal/pointer"
	"github.com/stencilhq/stencil/internal/registry"
	"github.com/stencilhq/stencil/internal/semver"
	"github.com/stencilhq/stencil/internal/snapshot"
)

// Service orchestrates snapshots, the registry, and the active pointer.
type Service struct {
	snapshots *snapshot.Store
	pointers  *pointer.Manager
	db        registry.Store
}

// NewService creates a version service over the given collaborators.
func NewService(snapshots *snapshot.Store, pointers *pointer.Manager, db registry.Store) *Service {
	return &Service{snapshots: snapshots, pointers: pointers, db: db}
}

// CutOptions carries the optional parts of a cut.
type CutOptions struct {
	// Changelog is opaque metadata stored with the version.
	Changelog string
	// ParentVersionID marks lineage; set by rollback, unset on normal
	// progression.
	ParentVersionID string
	// SkipActivate leaves the new version inactive and the pointer
	// untouched.
	SkipActivate bool
}

// Cut creates the next version of a project from a candidate source tree.
// It computes the next number from the newest registry record, copies the
// tree into a new immutable snapshot, records the version and its file
// digests, and (unless opted out) activates it.
func (s *Service) Cut(_ context.Context, projectID, sourceDir string, class models.ChangeClass, opts CutOptions) (*models.Version, error) {
	// Rollback-class versions carry lineage to their target and are minted
	// by Rollback only; a direct cut would record the class with no parent.
	if !class.Valid() || class == models.ChangeRollback {
		return nil, fmt.Errorf("%w: %q", apperr.ErrInvalidChangeClass, class)
	}
	lock, err := s.lockProject(projectID)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock() //nolint:errcheck

	return s.cutLocked(projectID, sourceDir, class, opts)
}

// cutLocked runs the cut pipeline. Callers must hold the project lock.
func (s *Service) cutLocked(projectID, sourceDir string, class models.ChangeClass, opts CutOptions) (*models.Version, error) {
	prev, err := s.newestNumber(projectID)
	if err != nil {
		return nil, err
	}
	next, err := semver.Next(prev, class)
	if err != nil {
		return nil, err
	}

	snapPath, digests, err := s.snapshots.Create(projectID, sourceDir, next.String())
	if err != nil {
		return nil, err
	}

	files := make([]models.VersionedFile, len(digests))
	for i, d := range digests {
		files[i] = models.VersionedFile{Path: d.Path, Checksum: d.Checksum}
	}
	v, err := s.db.CreateVersionWithFiles(models.Version{
		ProjectID:       projectID,
		VersionNumber:   next.String(),
		SnapshotPath:    snapPath,
		ParentVersionID: opts.ParentVersionID,
		ChangeClass:     class,
		Changelog:       opts.Changelog,
	}, files)
	if err != nil {
		// The snapshot was never recorded; removing it keeps the version
		// number reusable on retry.
		_ = os.RemoveAll(snapPath)
		return nil, err
	}

	if opts.SkipActivate {
		return v, nil
	}
	return s.activateLocked(v)
}

// Activate makes an existing version live: the registry flag flips first,
// then the pointer is switched, so a crash in between is repaired from the
// registry.
func (s *Service) Activate(_ context.Context, versionID string) (*models.Version, error) {
	v, err := s.lookup(versionID)
	if err != nil {
		return nil, err
	}
	lock, err := s.lockProject(v.ProjectID)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock() //nolint:errcheck

	return s.activateLocked(v)
}

func (s *Service) activateLocked(v *models.Version) (*models.Version, error) {
	updated, err := s.db.SetActiveVersion(v.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrVersionNotFound, v.ID)
	}
	if err := s.pointers.SetActive(updated.ProjectID, updated.VersionNumber); err != nil {
		return nil, err
	}
	return updated, nil
}

// Rollback duplicates an older version's snapshot forward as a strictly new
// version, with the target recorded as parent. History is extended, never
// truncated: no directory is deleted or rewritten.
func (s *Service) Rollback(_ context.Context, targetVersionID string) (*models.Version, error) {
	target, err := s.lookup(targetVersionID)
	if err != nil {
		return nil, err
	}
	if !s.snapshots.Exists(target.ProjectID, target.VersionNumber) {
		return nil, fmt.Errorf("%w: v%s snapshot is missing on disk", apperr.ErrVersionNotFound, target.VersionNumber)
	}
	lock, err := s.lockProject(target.ProjectID)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock() //nolint:errcheck

	return s.cutLocked(target.ProjectID, target.SnapshotPath, models.ChangeRollback, CutOptions{
		Changelog:       fmt.Sprintf("rollback to v%s", target.VersionNumber),
		ParentVersionID: target.ID,
	})
}

// ListVersions returns a project's history, newest first.
func (s *Service) ListVersions(_ context.Context, projectID string) ([]models.Version, error) {
	return s.db.GetVersions(projectID)
}

// GetVersion returns one version or ErrVersionNotFound.
func (s *Service) GetVersion(_ context.Context, versionID string) (*models.Version, error) {
	return s.lookup(versionID)
}

// GetActiveVersion returns the project's live version, or nil when none is
// active.
func (s *Service) GetActiveVersion(_ context.Context, projectID string) (*models.Version, error) {
	return s.db.GetActiveVersion(projectID)
}

// GetVersionFiles returns the digest rows recorded for a version.
func (s *Service) GetVersionFiles(_ context.Context, versionID string) ([]models.VersionedFile, error) {
	if _, err := s.lookup(versionID); err != nil {
		return nil, err
	}
	return s.db.GetVersionFiles(versionID)
}

// Reconcile repoints a project's "current" indirection from the registry's
// active record. It repairs a pointer left stale by a crash between the
// registry write and the pointer switch; it never touches the registry.
// The returned bool reports whether the pointer was switched.
func (s *Service) Reconcile(_ context.Context, projectID string) (bool, error) {
	active, err := s.db.GetActiveVersion(projectID)
	if err != nil {
		return false, err
	}
	if active == nil {
		return false, nil
	}
	resolved, err := s.pointers.Resolve(projectID)
	switch {
	case err == nil:
		if pointer.VersionNumber(resolved) == active.VersionNumber {
			return false, nil
		}
	case errors.Is(err, fs.ErrNotExist):
		// Pointer missing entirely; fall through and create it.
	default:
		return false, err
	}
	if err := s.pointers.SetActive(projectID, active.VersionNumber); err != nil {
		return false, err
	}
	return true, nil
}

// ReconcileAll reconciles every project known to the registry.
func (s *Service) ReconcileAll(ctx context.Context) error {
	ids, err := s.db.ProjectIDs()
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range ids {
		if _, err := s.Reconcile(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("project %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Service) lookup(versionID string) (*models.Version, error) {
	v, err := s.db.GetVersionByID(versionID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s", apperr.ErrVersionNotFound, versionID)
	}
	return v, nil
}

// lockProject takes the per-project advisory lock. It serializes mutating
// operations across processes; within one process the caller contract of
// one in-flight mutation per project still applies.
func (s *Service) lockProject(projectID string) (*flock.Flock, error) {
	dir, err := s.snapshots.ProjectDir(projectID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("versionsvc: create project dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, ".lock"))
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("versionsvc: lock project %s: %w", projectID, err)
	}
	return lock, nil
}

// newestNumber parses the most recent version number of a project, or nil
// when the project has no versions yet.
func (s *Service) newestNumber(projectID string) (*semver.Version, error) {
	versions, err := s.db.GetVersions(projectID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, nil
	}
	parsed, err := semver.Parse(versions[0].VersionNumber)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
