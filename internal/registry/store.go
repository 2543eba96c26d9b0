package registry

import "github.com/stencilhq/stencil/internal/models"

// Store defines the registry operations the rest of the system depends on.
// Consumers should depend on this interface rather than the concrete *DB
// type to facilitate testing with mocks.
type Store interface {
	CreateVersion(v models.Version) (*models.Version, error)
	CreateVersionWithFiles(v models.Version, files []models.VersionedFile) (*models.Version, error)
	GetVersions(projectID string) ([]models.Version, error)
	GetVersionByID(id string) (*models.Version, error)
	GetActiveVersion(projectID string) (*models.Version, error)
	SetActiveVersion(id string) (*models.Version, error)
	CreateVersionFiles(entries []models.VersionedFile) error
	GetVersionFiles(versionID string) ([]models.VersionedFile, error)
	ProjectIDs() ([]string, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
