// Package v0 provides the control API handlers of the sync daemon.
package v0

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/kmjayadeep/baskit-sub000/internal/api/common"
	"github.com/kmjayadeep/baskit-sub000/internal/identity"
	"github.com/kmjayadeep/baskit-sub000/internal/status"
	"github.com/kmjayadeep/baskit-sub000/internal/store"
	pkgsync "github.com/kmjayadeep/baskit-sub000/internal/sync"
	"github.com/kmjayadeep/baskit-sub000/internal/sync/lifecycle"
	"github.com/kmjayadeep/baskit-sub000/internal/versions"
)

// IdentityService is the part of the identity provider the control
// surface writes through. The handlers are the only writer of the
// signed-in principal; the lifecycle controller reacts to the changes.
type IdentityService interface {
	Current() identity.Principal
	Login(identity.Principal)
	Logout()
}

// Dependencies bundles the collaborators the handlers act on.
type Dependencies struct {
	// Local is the on-device store the list handlers write to. The
	// engine propagates those writes; handlers never touch the remote.
	Local store.LocalStore

	// Engine drives bidirectional synchronization.
	Engine pkgsync.Engine

	// Lifecycle owns the sync policy around identity and resume events.
	Lifecycle lifecycle.Controller

	// Identity is the signed-in principal switchboard.
	Identity IdentityService

	// Status reads the persisted engine state document. Optional.
	Status status.Persistence
}

// Routes handles HTTP requests for the control API endpoints.
type Routes struct {
	deps Dependencies

	// writeMu serializes the read-modify-write cycles of the list and
	// item handlers so concurrent writes to the same list do not drop
	// each other.
	writeMu sync.Mutex
}

// NewRoutes creates a new Routes instance with the given dependencies.
func NewRoutes(deps Dependencies) *Routes {
	return &Routes{
		deps: deps,
	}
}

// Router creates and configures the HTTP router for the control API endpoints.
func Router(deps Dependencies) http.Handler {
	routes := NewRoutes(deps)

	r := chi.NewRouter()

	r.Get("/sync/status", routes.getSyncStatus)
	r.Post("/sync/start", routes.startSync)
	r.Post("/sync/stop", routes.stopSync)
	r.Post("/sync/resume", routes.resumeSync)

	r.Put("/identity", routes.switchIdentity)
	r.Delete("/identity", routes.signOut)

	r.Get("/lists", routes.listLists)
	r.Post("/lists", routes.createList)
	r.Route("/lists/{listID}", func(r chi.Router) {
		r.Get("/", routes.getList)
		r.Put("/", routes.updateList)
		r.Delete("/", routes.deleteList)
		r.Post("/items", routes.createItem)
		r.Put("/items/{itemID}", routes.updateItem)
		r.Delete("/items/{itemID}", routes.deleteItem)
		r.Post("/items/{itemID}/toggle", routes.toggleItem)
	})

	return r
}

// HealthRouter creates a router for health check endpoints
func HealthRouter(deps Dependencies) http.Handler {
	routes := NewRoutes(deps)

	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", routes.readinessHandler)
	r.Get("/version", versionHandler)

	return r
}

// healthHandler handles health check requests
//
// @Summary		Health check
// @Description	Check if the sync daemon is healthy
// @Tags		system
// @Produce		json
// @Success		200	{object}	HealthResponse
// @Router		/health [get]
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

// readinessHandler handles readiness check requests
//
// @Summary		Readiness check
// @Description	Check if the local store is reachable and the daemon is ready to serve requests
// @Tags		system
// @Produce		json
// @Success		200	{object}	ReadinessResponse
// @Failure		503	{object}	map[string]string	"Local store not ready"
// @Router		/readiness [get]
func (routes *Routes) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := routes.deps.Local.GetAll(r.Context()); err != nil {
		common.WriteErrorResponse(w, "Local store not ready: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	common.WriteJSONResponse(w, ReadinessResponse{Status: "ready"}, http.StatusOK)
}

// versionHandler handles version information requests
//
// @Summary		Version information
// @Description	Get version information about the sync daemon
// @Tags		system
// @Produce		json
// @Success		200	{object}	VersionResponse
// @Router		/version [get]
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	info := versions.GetVersionInfo()

	common.WriteJSONResponse(w, VersionResponse{
		Version:   info.Version,
		Commit:    info.Commit,
		BuildDate: info.BuildDate,
		GoVersion: info.GoVersion,
		Platform:  info.Platform,
	}, http.StatusOK)
}

// getSyncStatus handles GET /api/v0/sync/status
//
// @Summary		Sync status
// @Description	Get the current state of the sync engine
// @Tags		sync
// @Produce		json
// @Success		200	{object}	SyncStatusResponse
// @Router		/api/v0/sync/status [get]
func (routes *Routes) getSyncStatus(w http.ResponseWriter, r *http.Request) {
	common.WriteJSONResponse(w, routes.syncStatus(r.Context()), http.StatusOK)
}

// startSync handles POST /api/v0/sync/start
//
// @Summary		Start sync
// @Description	Establish both sync directions for the signed-in principal
// @Tags		sync
// @Produce		json
// @Success		200	{object}	SyncStatusResponse
// @Failure		409	{object}	map[string]string	"No principal signed in"
// @Failure		502	{object}	map[string]string	"Remote store unreachable"
// @Router		/api/v0/sync/start [post]
func (routes *Routes) startSync(w http.ResponseWriter, r *http.Request) {
	principal := routes.deps.Identity.Current()
	if err := routes.deps.Engine.Start(r.Context(), principal); err != nil {
		writeSyncError(w, err)
		return
	}

	common.WriteJSONResponse(w, routes.syncStatus(r.Context()), http.StatusOK)
}

// stopSync handles POST /api/v0/sync/stop
//
// @Summary		Stop sync
// @Description	Tear down both sync directions and return to the idle state
// @Tags		sync
// @Produce		json
// @Success		200	{object}	SyncStatusResponse
// @Router		/api/v0/sync/stop [post]
func (routes *Routes) stopSync(w http.ResponseWriter, r *http.Request) {
	if err := routes.deps.Engine.Stop(); err != nil {
		slog.Error("Failed to stop sync", "error", err)
		common.WriteErrorResponse(w, "Failed to stop sync", http.StatusInternalServerError)
		return
	}

	common.WriteJSONResponse(w, routes.syncStatus(r.Context()), http.StatusOK)
}

// resumeSync handles POST /api/v0/sync/resume
//
// @Summary		Resume sync
// @Description	Re-establish sync for the current principal after the app was backgrounded or an attempt failed. A no-op while establishment is in progress or nobody is signed in.
// @Tags		sync
// @Produce		json
// @Success		200	{object}	SyncStatusResponse
// @Router		/api/v0/sync/resume [post]
func (routes *Routes) resumeSync(w http.ResponseWriter, r *http.Request) {
	routes.deps.Lifecycle.OnResume(r.Context())

	common.WriteJSONResponse(w, routes.syncStatus(r.Context()), http.StatusOK)
}

// switchIdentity handles PUT /api/v0/identity
//
// @Summary		Switch principal
// @Description	Sign in as the given principal. The lifecycle controller restarts sync for it.
// @Tags		identity
// @Accept		json
// @Produce		json
// @Param		body	body		IdentityRequest	true	"Principal to sign in"
// @Success		200		{object}	IdentityResponse
// @Failure		400		{object}	map[string]string	"Bad request"
// @Router		/api/v0/identity [put]
func (routes *Routes) switchIdentity(w http.ResponseWriter, r *http.Request) {
	var req IdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteErrorResponse(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if err := req.Validate(); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	routes.deps.Identity.Login(identity.Principal{ID: req.PrincipalID})
	slog.Info("Principal switched", "principal", req.PrincipalID)

	common.WriteJSONResponse(w, IdentityResponse{PrincipalID: req.PrincipalID}, http.StatusOK)
}

// signOut handles DELETE /api/v0/identity
//
// @Summary		Sign out
// @Description	Reset the principal to anonymous. The lifecycle controller stops sync.
// @Tags		identity
// @Success		204	"No content"
// @Router		/api/v0/identity [delete]
func (routes *Routes) signOut(w http.ResponseWriter, _ *http.Request) {
	routes.deps.Identity.Logout()
	slog.Info("Principal signed out")

	w.WriteHeader(http.StatusNoContent)
}

// syncStatus assembles the live engine view, adding the persisted
// history when status persistence is configured.
func (routes *Routes) syncStatus(ctx context.Context) SyncStatusResponse {
	resp := SyncStatusResponse{
		State:       routes.deps.Engine.State(),
		PrincipalID: routes.deps.Identity.Current().ID,
	}
	if err := routes.deps.Engine.LastError(); err != nil {
		resp.LastError = err.Error()
	}

	if routes.deps.Status == nil {
		return resp
	}
	doc, err := routes.deps.Status.Load(ctx)
	if err != nil {
		slog.Error("Failed to load persisted sync status", "error", err)
		return resp
	}
	resp.Message = doc.Message
	resp.LastSyncedAt = doc.LastSyncedAt
	resp.ListCount = doc.ListCount

	return resp
}

// writeSyncError maps engine errors to HTTP responses
func writeSyncError(w http.ResponseWriter, err error) {
	var serr *pkgsync.Error
	if errors.As(err, &serr) {
		switch serr.Reason {
		case pkgsync.ReasonAnonymousPrincipal:
			common.WriteErrorResponse(w, serr.Message, http.StatusConflict)
			return
		case pkgsync.ReasonRemoteSubscribe:
			common.WriteErrorResponse(w, serr.Message, http.StatusBadGateway)
			return
		}
	}

	slog.Error("Failed to start sync", "error", err)
	common.WriteErrorResponse(w, "Failed to start sync", http.StatusInternalServerError)
}
