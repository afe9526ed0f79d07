package v0

import (
	"fmt"
	"strings"
	"time"

	"github.com/kmjayadeep/baskit-sub000/internal/model"
	"github.com/kmjayadeep/baskit-sub000/internal/status"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string `json:"status" example:"ready"`
}

// VersionResponse represents the version information response
type VersionResponse struct {
	Version   string `json:"version" example:"v0.1.0"`
	Commit    string `json:"commit" example:"abc123def"`
	BuildDate string `json:"build_date" example:"2025-01-15T10:30:00Z"`
	GoVersion string `json:"go_version" example:"go1.25.2"`
	Platform  string `json:"platform" example:"linux/amd64"`
}

// SyncStatusResponse is the live view of the sync engine, enriched
// with the persisted history when a status file is configured.
type SyncStatusResponse struct {
	State        status.State `json:"state"`
	Message      string       `json:"message,omitempty"`
	PrincipalID  string       `json:"principalId,omitempty"`
	LastSyncedAt *time.Time   `json:"lastSyncedAt,omitempty"`
	LastError    string       `json:"lastError,omitempty"`
	ListCount    int          `json:"listCount"`
}

// IdentityRequest is the body of PUT /api/v0/identity.
type IdentityRequest struct {
	PrincipalID string `json:"principalId"`
}

// Validate checks required fields for an identity switch request.
func (r *IdentityRequest) Validate() error {
	if strings.TrimSpace(r.PrincipalID) == "" {
		return fmt.Errorf("principalId is required")
	}
	if strings.ContainsAny(r.PrincipalID, " \t\n\r") {
		return fmt.Errorf("principalId cannot contain whitespace")
	}
	return nil
}

// IdentityResponse reports the principal now signed in.
type IdentityResponse struct {
	PrincipalID string `json:"principalId"`
}

// ListCollectionResponse wraps the visible lists of the local store.
type ListCollectionResponse struct {
	Lists []model.List `json:"lists"`
	Count int          `json:"count"`
}

// CreateListRequest is the body of POST /api/v0/lists.
type CreateListRequest struct {
	// ID is optional; a UUID is generated when absent.
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// Validate checks required fields for a list create request.
func (r *CreateListRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if r.ID != "" && strings.ContainsAny(r.ID, " \t\n\r") {
		return fmt.Errorf("id cannot contain whitespace")
	}
	return nil
}

// UpdateListRequest is the body of PUT /api/v0/lists/{listID}.
// Members is optional; when present it replaces the member set of the
// list, with the owner always kept in it.
type UpdateListRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Color       string   `json:"color,omitempty"`
	Members     []string `json:"members,omitempty"`
}

// Validate checks required fields for a list update request.
func (r *UpdateListRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

// CreateItemRequest is the body of POST /api/v0/lists/{listID}/items.
type CreateItemRequest struct {
	// ID is optional; a UUID is generated when absent.
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Quantity string `json:"quantity,omitempty"`
}

// Validate checks required fields for an item create request.
func (r *CreateItemRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if r.ID != "" && strings.ContainsAny(r.ID, " \t\n\r") {
		return fmt.Errorf("id cannot contain whitespace")
	}
	return nil
}

// UpdateItemRequest is the body of PUT /api/v0/lists/{listID}/items/{itemID}.
type UpdateItemRequest struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity,omitempty"`
}

// Validate checks required fields for an item update request.
func (r *UpdateItemRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}
