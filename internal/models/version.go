// Package models defines the domain types for Stencil version management.
package models

import "time"

// ChangeClass classifies why a new version is being cut. It drives the
// version numbering policy.
type ChangeClass string

const (
	// ChangeInitial is the first version of a project. Always numbers 1.0.
	ChangeInitial ChangeClass = "initial"
	// ChangeEdit is a manual tweak to already-generated content. Bumps the
	// minor component.
	ChangeEdit ChangeClass = "edit"
	// ChangeRegeneration is a full re-capture from the reference source.
	// Bumps the major component and resets the minor.
	ChangeRegeneration ChangeClass = "regeneration"
	// ChangeRollback duplicates an older snapshot forward as a new version.
	// Bumps the minor component; lineage is carried in ParentVersionID.
	ChangeRollback ChangeClass = "rollback"
)

// Valid reports whether c is a known change class.
func (c ChangeClass) Valid() bool {
	switch c {
	case ChangeInitial, ChangeEdit, ChangeRegeneration, ChangeRollback:
		return true
	}
	return false
}

// Version is one immutable entry in a project's version history. Only
// IsActive ever changes after creation.
type Version struct {
	ID              string      `json:"id"`
	ProjectID       string      `json:"project_id"`
	VersionNumber   string      `json:"version_number"`
	SnapshotPath    string      `json:"snapshot_path"`
	ParentVersionID string      `json:"parent_version_id,omitempty"`
	ChangeClass     ChangeClass `json:"change_class"`
	Changelog       string      `json:"changelog,omitempty"`
	IsActive        bool        `json:"is_active"`
	CreatedAt       time.Time   `json:"created_at"`
}

// VersionedFile records one file copied into a snapshot: its path relative
// to the snapshot root and the content digest taken at copy time. The rows
// for a version must exactly match the files on disk; any divergence is a
// corruption condition.
type VersionedFile struct {
	VersionID string `json:"version_id"`
	Path      string `json:"path"`
	Checksum  string `json:"checksum"`
}
