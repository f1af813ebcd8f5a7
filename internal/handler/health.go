// Package handler contains HTTP handlers for the validation engine's JSON API.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/planarx/bimhealth/internal/domain"
	"github.com/planarx/bimhealth/internal/service"
)

// maxBodyBytes caps request bodies; large floorplans stay well under this.
const maxBodyBytes = 32 << 20

// =============================================================================
// Request/Response Types
// =============================================================================

// ValidateRequest is the floorplan payload posted to the validate endpoint.
// Objects may be a JSON list or a map keyed by object id.
type ValidateRequest struct {
	Objects json.RawMessage `json:"objects"`
}

// ApplyFixesRequest selects issues of a prior run by id, each mapped to an
// action ("apply" or "ignore").
type ApplyFixesRequest struct {
	Fixes map[string]string `json:"fixes"`
}

// HistoryResponse wraps a floorplan's past validation results.
type HistoryResponse struct {
	FloorplanID string                    `json:"floorplan_id"`
	Results     []domain.ValidationResult `json:"results"`
}

// ProfilesResponse wraps the registered behavior profiles.
type ProfilesResponse struct {
	Profiles []domain.BehaviorProfile `json:"profiles"`
}

// =============================================================================
// Handler Configuration
// =============================================================================

// HealthHandler handles validation-related HTTP requests.
type HealthHandler struct {
	healthService service.HealthService
	logger        *slog.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(healthService service.HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		healthService: healthService,
		logger:        logger,
	}
}

// RegisterRoutes registers all validation routes with the provided mux.
// limitValidate rate-limits the validation endpoint, where each request
// triggers a full detector pass.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux, limitValidate func(http.Handler) http.Handler) {
	mux.Handle("POST /api/floorplans/{id}/validate", limitValidate(http.HandlerFunc(h.Validate)))
	mux.Handle("GET /api/floorplans/{id}/history", http.HandlerFunc(h.History))
	mux.Handle("POST /api/validations/{id}/fixes", http.HandlerFunc(h.ApplyFixes))
	mux.Handle("GET /api/profiles", http.HandlerFunc(h.ListProfiles))
	mux.Handle("POST /api/profiles", http.HandlerFunc(h.CreateProfile))
	mux.Handle("GET /api/metrics", http.HandlerFunc(h.Metrics))
}

// =============================================================================
// Validate
// =============================================================================

// Validate runs a validation pass over the posted floorplan objects.
func (h *HealthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	floorplanID := r.PathValue("id")
	if floorplanID == "" {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.EINVALID, "handler.validate", "floorplan id is required"))
		return
	}

	var req ValidateRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.healthService.Validate(r.Context(), floorplanID, req.Objects)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// =============================================================================
// ApplyFixes
// =============================================================================

// ApplyFixes resolves caller-selected issues of a prior validation run.
func (h *HealthHandler) ApplyFixes(w http.ResponseWriter, r *http.Request) {
	validationID := r.PathValue("id")
	if validationID == "" {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.EINVALID, "handler.apply_fixes", "validation id is required"))
		return
	}

	var req ApplyFixesRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if len(req.Fixes) == 0 {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.EINVALID, "handler.apply_fixes", "fixes selection is required"))
		return
	}

	report, err := h.healthService.ApplyFixes(r.Context(), validationID, req.Fixes)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// =============================================================================
// History
// =============================================================================

// History returns a floorplan's past validation results, most recent first.
func (h *HealthHandler) History(w http.ResponseWriter, r *http.Request) {
	floorplanID := r.PathValue("id")
	if floorplanID == "" {
		ErrorResponse(w, r, h.logger, domain.Errorf(domain.EINVALID, "handler.history", "floorplan id is required"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			ErrorResponse(w, r, h.logger, domain.Errorf(domain.EINVALID, "handler.history", "limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	results, err := h.healthService.History(r.Context(), floorplanID, limit)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if results == nil {
		results = []domain.ValidationResult{}
	}

	respondJSON(w, http.StatusOK, HistoryResponse{
		FloorplanID: floorplanID,
		Results:     results,
	})
}

// =============================================================================
// Profiles
// =============================================================================

// ListProfiles returns every registered behavior profile.
func (h *HealthHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := h.healthService.Profiles(r.Context())
	if profiles == nil {
		profiles = []domain.BehaviorProfile{}
	}

	respondJSON(w, http.StatusOK, ProfilesResponse{Profiles: profiles})
}

// CreateProfile upserts a behavior profile by id.
func (h *HealthHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var p domain.BehaviorProfile
	if err := decodeJSON(r, &p); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.healthService.AddProfile(r.Context(), p); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, p)
}

// =============================================================================
// Metrics
// =============================================================================

// Metrics reports the process counters plus profile count and store size.
func (h *HealthHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.healthService.Metrics(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, m)
}

// =============================================================================
// Helpers
// =============================================================================

// decodeJSON reads and decodes a JSON request body.
func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.Errorf(domain.EINVALID, "handler.decode", "invalid JSON body")
	}
	return nil
}

// respondJSON writes a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
