package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planarx/bimhealth/internal/domain"
	"github.com/planarx/bimhealth/internal/service"
)

// =============================================================================
// Fake Service
// =============================================================================

type fakeHealthService struct {
	validateResult *domain.ValidationResult
	validateErr    error
	fixReport      *domain.FixReport
	fixErr         error
	history        []domain.ValidationResult
	historyLimit   int
	profiles       []domain.BehaviorProfile
	addedProfile   *domain.BehaviorProfile
	addProfileErr  error
	metrics        *service.ServiceMetrics
}

func (f *fakeHealthService) Validate(_ context.Context, floorplanID string, _ json.RawMessage) (*domain.ValidationResult, error) {
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	result := *f.validateResult
	result.FloorplanID = floorplanID
	return &result, nil
}

func (f *fakeHealthService) ApplyFixes(_ context.Context, validationID string, _ map[string]string) (*domain.FixReport, error) {
	if f.fixErr != nil {
		return nil, f.fixErr
	}
	report := *f.fixReport
	report.ValidationID = validationID
	return &report, nil
}

func (f *fakeHealthService) History(_ context.Context, _ string, limit int) ([]domain.ValidationResult, error) {
	f.historyLimit = limit
	return f.history, nil
}

func (f *fakeHealthService) AddProfile(_ context.Context, p domain.BehaviorProfile) error {
	if f.addProfileErr != nil {
		return f.addProfileErr
	}
	f.addedProfile = &p
	return nil
}

func (f *fakeHealthService) Profiles(_ context.Context) []domain.BehaviorProfile {
	return f.profiles
}

func (f *fakeHealthService) Metrics(_ context.Context) (*service.ServiceMetrics, error) {
	return f.metrics, nil
}

func newTestServer(svc service.HealthService) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHealthHandler(svc, logger)

	mux := http.NewServeMux()
	passthrough := func(next http.Handler) http.Handler { return next }
	h.RegisterRoutes(mux, passthrough)
	return mux
}

// =============================================================================
// Validate
// =============================================================================

func TestHealthHandler_Validate(t *testing.T) {
	svc := &fakeHealthService{
		validateResult: &domain.ValidationResult{
			ValidationID: "validation_floor_1_1",
			Status:       domain.ValidationStatusCompleted,
			TotalObjects: 2,
		},
	}
	mux := newTestServer(svc)

	body := strings.NewReader(`{"objects": [{"id": "a"}, {"id": "b"}]}`)
	req := httptest.NewRequest("POST", "/api/floorplans/floor_1/validate", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var result domain.ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "floor_1", result.FloorplanID)
	assert.Equal(t, domain.ValidationStatusCompleted, result.Status)
}

func TestHealthHandler_Validate_InvalidBody(t *testing.T) {
	mux := newTestServer(&fakeHealthService{})

	req := httptest.NewRequest("POST", "/api/floorplans/floor_1/validate", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthHandler_Validate_ServiceError(t *testing.T) {
	svc := &fakeHealthService{
		validateErr: domain.Invalid("health.validate", "objects must be a list or a map keyed by object id"),
	}
	mux := newTestServer(svc)

	req := httptest.NewRequest("POST", "/api/floorplans/floor_1/validate", strings.NewReader(`{"objects": 42}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), domain.EINVALID)
}

// =============================================================================
// ApplyFixes
// =============================================================================

func TestHealthHandler_ApplyFixes(t *testing.T) {
	svc := &fakeHealthService{
		fixReport: &domain.FixReport{AppliedFixes: 2, FailedFixes: 1, TotalIssues: 3, Status: "completed"},
	}
	mux := newTestServer(svc)

	body := strings.NewReader(`{"fixes": {"issue_1": "apply", "issue_2": "ignore"}}`)
	req := httptest.NewRequest("POST", "/api/validations/validation_floor_1_1/fixes", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var report domain.FixReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "validation_floor_1_1", report.ValidationID)
	assert.Equal(t, 2, report.AppliedFixes)
}

func TestHealthHandler_ApplyFixes_EmptySelection(t *testing.T) {
	mux := newTestServer(&fakeHealthService{})

	req := httptest.NewRequest("POST", "/api/validations/v1/fixes", strings.NewReader(`{"fixes": {}}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthHandler_ApplyFixes_NotFound(t *testing.T) {
	svc := &fakeHealthService{
		fixErr: domain.NotFound("store.get_result", "validation result", "v_missing"),
	}
	mux := newTestServer(svc)

	body := strings.NewReader(`{"fixes": {"issue_1": "apply"}}`)
	req := httptest.NewRequest("POST", "/api/validations/v_missing/fixes", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// History
// =============================================================================

func TestHealthHandler_History(t *testing.T) {
	svc := &fakeHealthService{
		history: []domain.ValidationResult{
			{ValidationID: "v2", FloorplanID: "floor_1"},
			{ValidationID: "v1", FloorplanID: "floor_1"},
		},
	}
	mux := newTestServer(svc)

	req := httptest.NewRequest("GET", "/api/floorplans/floor_1/history?limit=10", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, svc.historyLimit)

	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "floor_1", resp.FloorplanID)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "v2", resp.Results[0].ValidationID)
}

func TestHealthHandler_History_BadLimit(t *testing.T) {
	mux := newTestServer(&fakeHealthService{})

	for _, limit := range []string{"abc", "-1", "0"} {
		req := httptest.NewRequest("GET", "/api/floorplans/floor_1/history?limit="+limit, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestHealthHandler_History_EmptyIsList(t *testing.T) {
	mux := newTestServer(&fakeHealthService{})

	req := httptest.NewRequest("GET", "/api/floorplans/floor_1/history", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
}

// =============================================================================
// Profiles
// =============================================================================

func TestHealthHandler_ListProfiles(t *testing.T) {
	svc := &fakeHealthService{
		profiles: []domain.BehaviorProfile{
			{ProfileID: "electrical_equipment", ObjectType: "equipment"},
		},
	}
	mux := newTestServer(svc)

	req := httptest.NewRequest("GET", "/api/profiles", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProfilesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Profiles, 1)
	assert.Equal(t, "electrical_equipment", resp.Profiles[0].ProfileID)
}

func TestHealthHandler_CreateProfile(t *testing.T) {
	svc := &fakeHealthService{}
	mux := newTestServer(svc)

	body := strings.NewReader(`{"profile_id": "custom_equipment", "object_type": "custom"}`)
	req := httptest.NewRequest("POST", "/api/profiles", body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.addedProfile)
	assert.Equal(t, "custom_equipment", svc.addedProfile.ProfileID)
}

func TestHealthHandler_CreateProfile_Invalid(t *testing.T) {
	svc := &fakeHealthService{
		addProfileErr: domain.Invalid("profile.validate", "profile_id is required"),
	}
	mux := newTestServer(svc)

	req := httptest.NewRequest("POST", "/api/profiles", strings.NewReader(`{"object_type": "custom"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// Metrics
// =============================================================================

func TestHealthHandler_Metrics(t *testing.T) {
	svc := &fakeHealthService{
		metrics: &service.ServiceMetrics{BehaviorProfiles: 3, DatabaseSize: 4096},
	}
	mux := newTestServer(svc)

	req := httptest.NewRequest("GET", "/api/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var m service.ServiceMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, 3, m.BehaviorProfiles)
	assert.Equal(t, int64(4096), m.DatabaseSize)
}
