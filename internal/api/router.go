package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stencilhq/stencil/internal/sse"
	"github.com/stencilhq/stencil/internal/versionsvc"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// broker, if non-nil, is used for lifecycle events and mounted at
// GET /events inside the auth group.
func NewRouter(svc *versionsvc.Service, authEnabled bool, token string, broker *sse.Broker) chi.Router {
	h := NewHandler(svc, broker)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Per-project history and cuts.
	r.Get("/projects/{projectID}/versions", h.ListVersions)
	r.Post("/projects/{projectID}/versions", h.Cut)
	r.Get("/projects/{projectID}/versions/active", h.GetActiveVersion)

	// Individual versions.
	r.Get("/versions/{versionID}", h.GetVersion)
	r.Get("/versions/{versionID}/files", h.GetVersionFiles)
	r.Get("/versions/{versionID}/verify", h.VerifyVersion)
	r.Post("/versions/{versionID}/activate", h.Activate)
	r.Post("/versions/{versionID}/rollback", h.Rollback)

	// SSE endpoint (protected by same auth middleware).
	if broker != nil {
		r.Method(http.MethodGet, "/events", broker)
	}

	return r
}
