package api

import "github.com/stencilhq/stencil/internal/models"

// CutRequest is the request body for cutting a new version.
type CutRequest struct {
	SourceDir   string `json:"source_dir" example:"/var/stencil/staging/proj-42" validate:"required"`
	ChangeClass string `json:"change_class" example:"edit" validate:"required"`
	Changelog   string `json:"changelog,omitempty"`
	// Activate defaults to true; set false to cut without going live.
	Activate *bool `json:"activate,omitempty"`
}

// Version is the full version response type (aliased from the domain layer).
type Version = models.Version

// VersionedFile is one digest row in a files response (aliased from the
// domain layer).
type VersionedFile = models.VersionedFile

// VersionListResponse wraps a project's version history.
type VersionListResponse struct {
	Versions []models.Version `json:"versions"`
	Total    int              `json:"total"`
}
