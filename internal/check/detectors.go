package check

import (
	"fmt"
	"time"

	"github.com/planarx/bimhealth/internal/domain"
)

// Detector confidence scores.
const (
	ConfidenceMissingProfile     = 0.9
	ConfidenceInvalidCoordinates = 0.95
	ConfidenceUnlinkedSymbol     = 0.8
	ConfidenceStaleMetadata      = 0.7
	ConfidenceDuplicateObject    = 0.9
)

// DefaultStaleThreshold is how old an object's metadata may be before the
// stale-metadata detector flags it.
const DefaultStaleThreshold = 30 * 24 * time.Hour

// defaultSymbols is a stand-in for the symbol-library collaborator: a tiny
// category (or type) to default-symbol table.
var defaultSymbols = map[string]string{
	"electrical": "electrical_default",
	"hvac":       "hvac_default",
	"plumbing":   "plumbing_default",
	"equipment":  "equipment_default",
	"fixture":    "fixture_default",
}

// DefaultSymbol resolves a default symbol id for an object class, preferring
// the category over the type and falling back to "default_symbol".
func DefaultSymbol(category, objectType string) string {
	if s, ok := defaultSymbols[category]; ok {
		return s
	}
	if s, ok := defaultSymbols[objectType]; ok {
		return s
	}
	return "default_symbol"
}

// MissingProfile reports an object whose exact profile key missed but for
// which a fallback profile exists; the fallback's id is the suggested fix.
// When no fallback exists either, the check is silent: the orchestrator
// treats such objects as unassignable.
func MissingProfile(validationID string, obj domain.BIMObject, fallback *domain.BehaviorProfile, available []string, now time.Time) *domain.ValidationIssue {
	if fallback == nil {
		return nil
	}

	return &domain.ValidationIssue{
		IssueID:        domain.NewIssueID(validationID, obj.ID, domain.IssueMissingBehaviorProfile, now),
		IssueType:      domain.IssueMissingBehaviorProfile,
		ObjectID:       obj.ID,
		Severity:       domain.SeverityMedium,
		Description:    fmt.Sprintf("Missing behavior profile for %s", obj.Type),
		Location:       map[string]any{"type": obj.Type, "category": obj.Category},
		CurrentValue:   nil,
		SuggestedValue: fallback.ProfileID,
		FixType:        domain.FixAuto,
		Confidence:     ConfidenceMissingProfile,
		Timestamp:      now,
		Context:        map[string]any{"available_profiles": available},
	}
}

// InvalidCoordinates validates the object's location against the profile's
// bounds and suggests clamped coordinates on failure.
func InvalidCoordinates(validationID string, obj domain.BIMObject, p *domain.BehaviorProfile, now time.Time) *domain.ValidationIssue {
	if !p.Rules.CoordinateValidation {
		return nil
	}

	bounds := p.Properties.CoordinateBounds
	valid, diag, suggested := ValidateCoordinates(obj.Location, bounds)
	if valid {
		return nil
	}

	location := map[string]any{}
	if obj.Location != nil {
		location = locationMap(*obj.Location)
	}

	return &domain.ValidationIssue{
		IssueID:      domain.NewIssueID(validationID, obj.ID, domain.IssueInvalidCoordinates, now),
		IssueType:    domain.IssueInvalidCoordinates,
		ObjectID:     obj.ID,
		Severity:     domain.SeverityHigh,
		Description:  fmt.Sprintf("Invalid coordinates: %s", diag),
		Location:     location,
		CurrentValue: location,
		SuggestedValue: map[string]any{
			"x": suggested.X,
			"y": suggested.Y,
			"z": suggested.Z,
		},
		FixType:    domain.FixAuto,
		Confidence: ConfidenceInvalidCoordinates,
		Timestamp:  now,
		Context: map[string]any{
			"bounds": map[string]any{
				"x": []float64{bounds.Axis("x").Min, bounds.Axis("x").Max},
				"y": []float64{bounds.Axis("y").Min, bounds.Axis("y").Max},
				"z": []float64{bounds.Axis("z").Min, bounds.Axis("z").Max},
			},
			"error": diag,
		},
	}
}

// UnlinkedSymbol reports an object with no linked symbol when its profile
// declares required symbol tags, suggesting a default from the category
// table.
func UnlinkedSymbol(validationID string, obj domain.BIMObject, p *domain.BehaviorProfile, now time.Time) *domain.ValidationIssue {
	if !p.Rules.SymbolLinking {
		return nil
	}
	if obj.SymbolID != "" || len(p.Properties.SymbolRequirements) == 0 {
		return nil
	}

	return &domain.ValidationIssue{
		IssueID:        domain.NewIssueID(validationID, obj.ID, domain.IssueUnlinkedSymbol, now),
		IssueType:      domain.IssueUnlinkedSymbol,
		ObjectID:       obj.ID,
		Severity:       domain.SeverityMedium,
		Description:    fmt.Sprintf("Missing symbol link for %s", p.ObjectType),
		Location:       map[string]any{"symbol_id": nil},
		CurrentValue:   nil,
		SuggestedValue: DefaultSymbol(p.Category, p.ObjectType),
		FixType:        domain.FixSuggested,
		Confidence:     ConfidenceUnlinkedSymbol,
		Timestamp:      now,
		Context: map[string]any{
			"required_symbols": p.Properties.SymbolRequirements,
			"object_type":      p.ObjectType,
		},
	}
}

// StaleMetadata reports an object whose last_updated timestamp is older
// than the stale threshold, suggesting the current time.
func StaleMetadata(validationID string, obj domain.BIMObject, staleAfter time.Duration, now time.Time) *domain.ValidationIssue {
	age := now.Unix() - obj.LastUpdated
	if age <= int64(staleAfter.Seconds()) {
		return nil
	}

	lastUpdated := time.Unix(obj.LastUpdated, 0).UTC()

	return &domain.ValidationIssue{
		IssueID:        domain.NewIssueID(validationID, obj.ID, domain.IssueStaleMetadata, now),
		IssueType:      domain.IssueStaleMetadata,
		ObjectID:       obj.ID,
		Severity:       domain.SeverityLow,
		Description:    fmt.Sprintf("Stale metadata (last updated %s)", lastUpdated.Format(time.RFC3339)),
		Location:       map[string]any{"last_updated": obj.LastUpdated},
		CurrentValue:   obj.LastUpdated,
		SuggestedValue: now.Unix(),
		FixType:        domain.FixSuggested,
		Confidence:     ConfidenceStaleMetadata,
		Timestamp:      now,
		Context: map[string]any{
			"stale_threshold": int64(staleAfter.Seconds()),
			"days_old":        age / (24 * 60 * 60),
		},
	}
}

// DuplicateObjects scans the whole object set and flags every repeat of a
// content hash, referencing the first occurrence as duplicate_of. The first
// occurrence itself is never flagged. Duplicates always require manual
// review, so no suggested value is set.
func DuplicateObjects(validationID string, objects []domain.BIMObject, now time.Time) []domain.ValidationIssue {
	var issues []domain.ValidationIssue
	seen := make(map[string]domain.BIMObject, len(objects))

	for _, obj := range objects {
		hash := ObjectHash(obj)
		original, dup := seen[hash]
		if !dup {
			seen[hash] = obj
			continue
		}

		issues = append(issues, domain.ValidationIssue{
			IssueID:        domain.NewIssueID(validationID, obj.ID, domain.IssueDuplicateObject, now),
			IssueType:      domain.IssueDuplicateObject,
			ObjectID:       obj.ID,
			Severity:       domain.SeverityHigh,
			Description:    fmt.Sprintf("Duplicate object detected (similar to %s)", original.ID),
			Location:       map[string]any{"duplicate_of": original.ID},
			CurrentValue:   objectRecord(obj),
			SuggestedValue: nil,
			FixType:        domain.FixManual,
			Confidence:     ConfidenceDuplicateObject,
			Timestamp:      now,
			Context:        map[string]any{"duplicate_object": objectRecord(original)},
		})
	}

	return issues
}

// objectRecord renders an object as a plain map for issue payloads.
func objectRecord(obj domain.BIMObject) map[string]any {
	record := map[string]any{
		"id":         obj.ID,
		"type":       obj.Type,
		"name":       obj.Name,
		"properties": obj.Properties,
	}
	if obj.Category != "" {
		record["category"] = obj.Category
	}
	if obj.Location != nil {
		record["location"] = locationMap(*obj.Location)
	}
	return record
}

// locationMap renders the present axes of a location.
func locationMap(loc domain.Location) map[string]any {
	m := map[string]any{}
	if loc.X != nil {
		m["x"] = *loc.X
	}
	if loc.Y != nil {
		m["y"] = *loc.Y
	}
	if loc.Z != nil {
		m["z"] = *loc.Z
	}
	return m
}
