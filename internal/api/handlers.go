package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stencilhq/stencil/internal/apperr"
	"github.com/stencilhq/stencil/internal/models"
	"github.com/stencilhq/stencil/internal/sse"
	"github.com/stencilhq/stencil/internal/versionsvc"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *versionsvc.Service
	broker *sse.Broker
}

// NewHandler creates a new Handler. broker may be nil when no event stream
// is wired (e.g. in tests).
func NewHandler(svc *versionsvc.Service, broker *sse.Broker) *Handler {
	return &Handler{svc: svc, broker: broker}
}

// statusAndCode maps a taxonomy error to its HTTP status and stable code.
// Taxonomy failures never surface as a generic 500.
func statusAndCode(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrVersionNotFound):
		return http.StatusNotFound, "version_not_found"
	case errors.Is(err, apperr.ErrSourceNotFound):
		return http.StatusUnprocessableEntity, "source_not_found"
	case errors.Is(err, apperr.ErrSourceEmpty):
		return http.StatusUnprocessableEntity, "source_empty"
	case errors.Is(err, apperr.ErrMalformedVersion):
		return http.StatusUnprocessableEntity, "malformed_version"
	case errors.Is(err, apperr.ErrInvalidChangeClass):
		return http.StatusUnprocessableEntity, "invalid_change_class"
	case errors.Is(err, apperr.ErrNoPreviousVersion):
		return http.StatusUnprocessableEntity, "no_previous_version"
	case errors.Is(err, apperr.ErrInitialVersionExists):
		return http.StatusConflict, "initial_version_exists"
	case errors.Is(err, apperr.ErrVersionExists):
		return http.StatusConflict, "version_already_exists"
	case errors.Is(err, apperr.ErrUnexpectedPointerState):
		return http.StatusConflict, "unexpected_pointer_state"
	case errors.Is(err, apperr.ErrCopyFailed):
		return http.StatusInternalServerError, "copy_failed"
	}
	return http.StatusInternalServerError, "internal_error"
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status, code := statusAndCode(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody(code))
}

func (h *Handler) publish(kind string, v *models.Version) {
	if h.broker != nil {
		h.broker.PublishVersionEvent(kind, v.ProjectID, v.VersionNumber)
	}
}

// ListVersions handles GET /api/projects/{projectID}/versions.
//
//	@Summary		List a project's versions, newest first
//	@Tags			versions
//	@Produce		json
//	@Param			projectID	path		string	true	"Project ID"
//	@Success		200			{object}	VersionListResponse
//	@Security		BearerAuth
//	@Router			/projects/{projectID}/versions [get]
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	versions, err := h.svc.ListVersions(r.Context(), projectID)
	if err != nil {
		h.writeError(w, "list versions", err)
		return
	}
	if versions == nil {
		versions = []models.Version{}
	}
	writeJSON(w, http.StatusOK, VersionListResponse{Versions: versions, Total: len(versions)})
}

// GetActiveVersion handles GET /api/projects/{projectID}/versions/active.
//
//	@Summary		Get the project's live version
//	@Tags			versions
//	@Produce		json
//	@Success		200	{object}	Version
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{projectID}/versions/active [get]
func (h *Handler) GetActiveVersion(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	v, err := h.svc.GetActiveVersion(r.Context(), projectID)
	if err != nil {
		h.writeError(w, "get active version", err)
		return
	}
	if v == nil {
		writeJSON(w, http.StatusNotFound, errorBody("version_not_found"))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Cut handles POST /api/projects/{projectID}/versions.
//
//	@Summary		Cut a new version from a finished source tree
//	@Tags			versions
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CutRequest	true	"Cut parameters"
//	@Success		201		{object}	Version
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{projectID}/versions [post]
func (h *Handler) Cut(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid_json"))
		return
	}
	if req.SourceDir == "" || req.ChangeClass == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("source_dir and change_class are required"))
		return
	}
	// Rollback-class versions are minted via the rollback endpoint only.
	class := models.ChangeClass(req.ChangeClass)
	if !class.Valid() || class == models.ChangeRollback {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid_change_class"))
		return
	}
	opts := versionsvc.CutOptions{Changelog: req.Changelog}
	if req.Activate != nil && !*req.Activate {
		opts.SkipActivate = true
	}
	v, err := h.svc.Cut(r.Context(), projectID, req.SourceDir, class, opts)
	if err != nil {
		h.writeError(w, "cut version", err)
		return
	}
	h.publish(sse.KindCut, v)
	writeJSON(w, http.StatusCreated, v)
}

// GetVersion handles GET /api/versions/{versionID}.
//
//	@Summary		Get a single version by id
//	@Tags			versions
//	@Produce		json
//	@Success		200	{object}	Version
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/versions/{versionID} [get]
func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.GetVersion(r.Context(), chi.URLParam(r, "versionID"))
	if err != nil {
		h.writeError(w, "get version", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GetVersionFiles handles GET /api/versions/{versionID}/files.
//
//	@Summary		List the digest records of a version's files
//	@Tags			versions
//	@Produce		json
//	@Success		200	{array}		VersionedFile
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/versions/{versionID}/files [get]
func (h *Handler) GetVersionFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.GetVersionFiles(r.Context(), chi.URLParam(r, "versionID"))
	if err != nil {
		h.writeError(w, "get version files", err)
		return
	}
	if files == nil {
		files = []models.VersionedFile{}
	}
	writeJSON(w, http.StatusOK, files)
}

// VerifyVersion handles GET /api/versions/{versionID}/verify.
//
//	@Summary		Re-hash a version's snapshot and compare against recorded digests
//	@Tags			versions
//	@Produce		json
//	@Success		200	{object}	versionsvc.VerifyReport
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/versions/{versionID}/verify [get]
func (h *Handler) VerifyVersion(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Verify(r.Context(), chi.URLParam(r, "versionID"))
	if err != nil {
		h.writeError(w, "verify version", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Activate handles POST /api/versions/{versionID}/activate.
//
//	@Summary		Make an existing version live
//	@Tags			versions
//	@Produce		json
//	@Success		200	{object}	Version
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/versions/{versionID}/activate [post]
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Activate(r.Context(), chi.URLParam(r, "versionID"))
	if err != nil {
		h.writeError(w, "activate version", err)
		return
	}
	h.publish(sse.KindActivated, v)
	writeJSON(w, http.StatusOK, v)
}

// Rollback handles POST /api/versions/{versionID}/rollback.
//
//	@Summary		Cut a new version duplicating this one's content, and activate it
//	@Tags			versions
//	@Produce		json
//	@Success		201	{object}	Version
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/versions/{versionID}/rollback [post]
func (h *Handler) Rollback(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Rollback(r.Context(), chi.URLParam(r, "versionID"))
	if err != nil {
		h.writeError(w, "rollback version", err)
		return
	}
	h.publish(sse.KindRolledBack, v)
	writeJSON(w, http.StatusCreated, v)
}
