package registry

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stencilhq/stencil/internal/models"
)

const versionColumns = `id, project_id, version_number, snapshot_path,
	parent_version_id, change_class, changelog, is_active, created_at`

// CreateVersion inserts a new version record. A missing ID is generated;
// CreatedAt defaults to now. The stored record is returned.
func (db *DB) CreateVersion(v models.Version) (*models.Version, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	var parent any
	if v.ParentVersionID != "" {
		parent = v.ParentVersionID
	}
	_, err := db.conn.Exec(`
		INSERT INTO versions (id, project_id, version_number, snapshot_path,
			parent_version_id, change_class, changelog, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.ProjectID, v.VersionNumber, v.SnapshotPath, parent,
		string(v.ChangeClass), v.Changelog, v.IsActive, v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("registry: create version: %w", err)
	}
	return &v, nil
}

// CreateVersionWithFiles inserts a version record and its digest rows in
// one transaction, so a failed file insert leaves no version row behind.
// The file rows are stamped with the version's id.
func (db *DB) CreateVersionWithFiles(v models.Version, files []models.VersionedFile) (*models.Version, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	var parent any
	if v.ParentVersionID != "" {
		parent = v.ParentVersionID
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("registry: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO versions (id, project_id, version_number, snapshot_path,
			parent_version_id, change_class, changelog, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.ProjectID, v.VersionNumber, v.SnapshotPath, parent,
		string(v.ChangeClass), v.Changelog, v.IsActive, v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("registry: create version: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO version_files (version_id, path, checksum) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("registry: prepare file insert: %w", err)
	}
	defer stmt.Close()
	for i := range files {
		files[i].VersionID = v.ID
		if _, err := stmt.Exec(v.ID, files[i].Path, files[i].Checksum); err != nil {
			return nil, fmt.Errorf("registry: insert file %s: %w", files[i].Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("registry: commit: %w", err)
	}
	return &v, nil
}

// GetVersions returns every version of a project, newest first.
func (db *DB) GetVersions(projectID string) ([]models.Version, error) {
	rows, err := db.conn.Query(`
		SELECT `+versionColumns+`
		FROM versions WHERE project_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("registry: get versions: %w", err)
	}
	defer rows.Close()

	var out []models.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

// GetVersionByID returns a version by id, or nil if absent.
func (db *DB) GetVersionByID(id string) (*models.Version, error) {
	row := db.conn.QueryRow(`
		SELECT `+versionColumns+` FROM versions WHERE id = ?
	`, id)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

// GetActiveVersion returns the project's active version, or nil when no
// version is active.
func (db *DB) GetActiveVersion(projectID string) (*models.Version, error) {
	row := db.conn.QueryRow(`
		SELECT `+versionColumns+`
		FROM versions WHERE project_id = ? AND is_active = 1
	`, projectID)
	v, err := scanVersion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return v, err
}

// SetActiveVersion marks the version active and deactivates every other
// version of the same project in one transaction, preserving the
// at-most-one-active invariant. Returns nil if the version does not exist.
func (db *DB) SetActiveVersion(id string) (*models.Version, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("registry: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var projectID string
	if err := tx.QueryRow(`SELECT project_id FROM versions WHERE id = ?`, id).Scan(&projectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("registry: lookup version: %w", err)
	}
	if _, err := tx.Exec(`UPDATE versions SET is_active = 0 WHERE project_id = ? AND id != ?`, projectID, id); err != nil {
		return nil, fmt.Errorf("registry: deactivate siblings: %w", err)
	}
	if _, err := tx.Exec(`UPDATE versions SET is_active = 1 WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("registry: activate: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("registry: commit: %w", err)
	}
	return db.GetVersionByID(id)
}

// CreateVersionFiles bulk-inserts the digest rows for a version.
func (db *DB) CreateVersionFiles(entries []models.VersionedFile) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("registry: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`INSERT INTO version_files (version_id, path, checksum) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("registry: prepare file insert: %w", err)
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.Exec(e.VersionID, e.Path, e.Checksum); err != nil {
			return fmt.Errorf("registry: insert file %s: %w", e.Path, err)
		}
	}
	return tx.Commit()
}

// GetVersionFiles returns the digest rows recorded for a version, ordered
// by path.
func (db *DB) GetVersionFiles(versionID string) ([]models.VersionedFile, error) {
	rows, err := db.conn.Query(`
		SELECT version_id, path, checksum FROM version_files
		WHERE version_id = ? ORDER BY path
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("registry: get version files: %w", err)
	}
	defer rows.Close()

	var out []models.VersionedFile
	for rows.Next() {
		var f models.VersionedFile
		if err := rows.Scan(&f.VersionID, &f.Path, &f.Checksum); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ProjectIDs returns every project that has at least one version.
func (db *DB) ProjectIDs() ([]string, error) {
	rows, err := db.conn.Query(`SELECT DISTINCT project_id FROM versions ORDER BY project_id`)
	if err != nil {
		return nil, fmt.Errorf("registry: project ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(r rowScanner) (*models.Version, error) {
	var v models.Version
	var parent sql.NullString
	var class string
	if err := r.Scan(&v.ID, &v.ProjectID, &v.VersionNumber, &v.SnapshotPath,
		&parent, &class, &v.Changelog, &v.IsActive, &v.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("registry: scan version: %w", err)
	}
	v.ParentVersionID = parent.String
	v.ChangeClass = models.ChangeClass(class)
	return &v, nil
}
