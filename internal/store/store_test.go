package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planarx/bimhealth/internal"
	"github.com/planarx/bimhealth/internal/domain"
)

// testStore opens the database named by TEST_DATABASE_URL and runs the
// migrations. Tests are skipped when the variable is unset.
func testStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.PingContext(context.Background()))
	require.NoError(t, internal.RunMigrations(db))

	return New(db)
}

func sampleResult(floorplanID string, ts time.Time) *domain.ValidationResult {
	validationID := domain.NewValidationID(floorplanID, ts)
	return &domain.ValidationResult{
		ValidationID: validationID,
		FloorplanID:  floorplanID,
		Status:       domain.ValidationStatusCompleted,
		TotalObjects: 2,
		IssuesFound:  1,
		Timestamp:    ts,
		Issues: []domain.ValidationIssue{
			{
				IssueID:        domain.NewIssueID(validationID, "obj_1", domain.IssueInvalidCoordinates, ts),
				IssueType:      domain.IssueInvalidCoordinates,
				ObjectID:       "obj_1",
				Severity:       domain.SeverityHigh,
				Description:    "Invalid coordinates: X coordinate -5 out of bounds [0, 1000]",
				Location:       map[string]any{"x": -5.0},
				CurrentValue:   map[string]any{"x": -5.0},
				SuggestedValue: map[string]any{"x": 0.0, "y": 0.0, "z": 0.0},
				FixType:        domain.FixAuto,
				Confidence:     0.95,
				Timestamp:      ts,
				Context:        map[string]any{"error": "out of bounds"},
			},
		},
		Summary: map[string]any{"validation_score": 90.0},
	}
}

func TestStore_SaveAndGetResult(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	floorplanID := fmt.Sprintf("floor_roundtrip_%d", time.Now().UnixNano())
	result := sampleResult(floorplanID, time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, s.SaveResult(ctx, result))

	got, err := s.GetResult(ctx, result.ValidationID)
	require.NoError(t, err)

	assert.Equal(t, result.ValidationID, got.ValidationID)
	assert.Equal(t, result.Status, got.Status)
	assert.Equal(t, result.TotalObjects, got.TotalObjects)
	assert.Equal(t, 90.0, got.Summary["validation_score"])

	require.Len(t, got.Issues, 1)
	issue := got.Issues[0]
	assert.Equal(t, domain.IssueInvalidCoordinates, issue.IssueType)
	assert.Equal(t, 0.95, issue.Confidence)
	assert.Equal(t, map[string]any{"x": -5.0}, issue.Location)

	suggested, ok := issue.SuggestedValue.(map[string]any)
	require.True(t, ok, "suggested value decoded as %T", issue.SuggestedValue)
	assert.Equal(t, 0.0, suggested["y"])
}

func TestStore_SaveResultUpsertsByID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	floorplanID := fmt.Sprintf("floor_upsert_%d", time.Now().UnixNano())
	result := sampleResult(floorplanID, time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, s.SaveResult(ctx, result))

	result.Status = domain.ValidationStatusFailed
	result.Summary = map[string]any{"error": "detector failure"}
	require.NoError(t, s.SaveResult(ctx, result))

	got, err := s.GetResult(ctx, result.ValidationID)
	require.NoError(t, err)
	assert.Equal(t, domain.ValidationStatusFailed, got.Status)
	assert.Equal(t, "detector failure", got.Summary["error"])
}

func TestStore_GetResultNotFound(t *testing.T) {
	s := testStore(t)

	_, err := s.GetResult(context.Background(), "validation_missing_0")
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestStore_HistoryMostRecentFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	floorplanID := fmt.Sprintf("floor_history_%d", time.Now().UnixNano())
	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		r := sampleResult(floorplanID, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.SaveResult(ctx, r))
	}

	results, err := s.History(ctx, floorplanID, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Timestamp.After(results[1].Timestamp))
	// History omits issues.
	assert.Empty(t, results[0].Issues)
}

func TestStore_ProfilesRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := domain.BehaviorProfile{
		ProfileID:  fmt.Sprintf("custom_%d", time.Now().UnixNano()),
		ObjectType: "custom_panel",
		Category:   "electrical",
		Properties: domain.ProfileProperties{
			RequiredFields: []string{"id", "name"},
			CoordinateBounds: domain.CoordinateBounds{
				X: &domain.AxisBounds{Min: 0, Max: 500},
			},
			SymbolRequirements: []string{"electrical_symbol"},
		},
		Rules: domain.ValidationRules{
			CoordinateValidation: true,
			MetadataCompleteness: 0.8,
		},
		FixSuggestions: map[string]string{"invalid_coordinates": "snap_to_grid"},
	}
	require.NoError(t, s.SaveProfile(ctx, p))

	profiles, err := s.ListProfiles(ctx)
	require.NoError(t, err)

	var got *domain.BehaviorProfile
	for i := range profiles {
		if profiles[i].ProfileID == p.ProfileID {
			got = &profiles[i]
			break
		}
	}
	require.NotNil(t, got, "saved profile not returned by ListProfiles")
	assert.Equal(t, p.ObjectType, got.ObjectType)
	assert.Equal(t, p.Properties.RequiredFields, got.Properties.RequiredFields)
	require.NotNil(t, got.Properties.CoordinateBounds.X)
	assert.Equal(t, domain.AxisBounds{Min: 0, Max: 500}, *got.Properties.CoordinateBounds.X)
	assert.Equal(t, 0.8, got.Rules.MetadataCompleteness)
}

func TestStore_SizeBytes(t *testing.T) {
	s := testStore(t)

	size, err := s.SizeBytes(context.Background())
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))
}
