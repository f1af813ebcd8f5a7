// Package domain contains core business types and interfaces.
//
// This file defines the validation result and issue types produced by a
// BIM health check run over a floorplan's objects.
package domain

import (
	"fmt"
	"time"
)

// =============================================================================
// Validation Status
// =============================================================================

// ValidationStatus represents the lifecycle state of a validation run.
type ValidationStatus string

const (
	// ValidationStatusPending indicates a run that has been created but not started.
	ValidationStatusPending ValidationStatus = "pending"

	// ValidationStatusInProgress is reserved for an asynchronous execution mode.
	ValidationStatusInProgress ValidationStatus = "in_progress"

	// ValidationStatusCompleted indicates a run that finished normally.
	ValidationStatusCompleted ValidationStatus = "completed"

	// ValidationStatusFailed indicates a run that aborted; a failed result is
	// still persisted for audit continuity.
	ValidationStatusFailed ValidationStatus = "failed"

	// ValidationStatusPartial is reserved for a per-object-isolated execution
	// mode where some, but not all, objects failed detector execution.
	ValidationStatusPartial ValidationStatus = "partial"
)

// String returns the string representation of the status.
func (s ValidationStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a recognized value.
func (s ValidationStatus) IsValid() bool {
	switch s {
	case ValidationStatusPending, ValidationStatusInProgress,
		ValidationStatusCompleted, ValidationStatusFailed, ValidationStatusPartial:
		return true
	}
	return false
}

// =============================================================================
// Issue Type
// =============================================================================

// IssueType classifies the kind of defect a detector found.
type IssueType string

const (
	IssueMissingBehaviorProfile IssueType = "missing_behavior_profile"
	IssueInvalidCoordinates     IssueType = "invalid_coordinates"
	IssueUnlinkedSymbol         IssueType = "unlinked_symbol"
	IssueStaleMetadata          IssueType = "stale_metadata"
	IssueDuplicateObject        IssueType = "duplicate_object"
)

// String returns the string representation of the issue type.
func (t IssueType) String() string {
	return string(t)
}

// IsValid returns true if the issue type is a recognized value.
func (t IssueType) IsValid() bool {
	switch t {
	case IssueMissingBehaviorProfile, IssueInvalidCoordinates,
		IssueUnlinkedSymbol, IssueStaleMetadata, IssueDuplicateObject:
		return true
	}
	return false
}

// =============================================================================
// Fix Type
// =============================================================================

// FixType classifies how a detected issue may be remediated.
type FixType string

const (
	// FixAuto marks issues whose correction is applied automatically.
	FixAuto FixType = "auto_fix"

	// FixSuggested marks issues with a proposed correction requiring confirmation.
	FixSuggested FixType = "suggested_fix"

	// FixManual marks issues that only a human review can resolve.
	FixManual FixType = "manual_fix"

	// FixIgnore marks issues the caller chose to acknowledge without change.
	FixIgnore FixType = "ignore"
)

// String returns the string representation of the fix type.
func (f FixType) String() string {
	return string(f)
}

// IsValid returns true if the fix type is a recognized value.
func (f FixType) IsValid() bool {
	switch f {
	case FixAuto, FixSuggested, FixManual, FixIgnore:
		return true
	}
	return false
}

// =============================================================================
// Severity
// =============================================================================

// Severity represents how serious a validation issue is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// IsValid returns true if the severity is a recognized value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// =============================================================================
// Validation Issue
// =============================================================================

// ValidationIssue is a single defect found during a health check run.
//
// Issues are owned by the ValidationResult that produced them and are
// immutable after creation. A nil SuggestedValue signals that no automatic
// remedy exists and the issue must be reviewed by hand.
type ValidationIssue struct {
	IssueID        string         `json:"issue_id"`
	IssueType      IssueType      `json:"issue_type"`
	ObjectID       string         `json:"object_id"`
	Severity       Severity       `json:"severity"`
	Description    string         `json:"description"`
	Location       map[string]any `json:"location"`
	CurrentValue   any            `json:"current_value"`
	SuggestedValue any            `json:"suggested_value"`
	FixType        FixType        `json:"fix_type"`
	Confidence     float64        `json:"confidence"` // 0.0 to 1.0
	Timestamp      time.Time      `json:"timestamp"`
	Context        map[string]any `json:"context"`
}

// =============================================================================
// Validation Result
// =============================================================================

// ValidationResult is the outcome of one health check run over a floorplan.
//
// A result is written to the store exactly once, on both the success and
// failure paths, and never mutated afterwards. The three fix-count fields
// are advisory per-detector tallies, not a partition of IssuesFound.
type ValidationResult struct {
	ValidationID        string            `json:"validation_id"`
	FloorplanID         string            `json:"floorplan_id"`
	Status              ValidationStatus  `json:"status"`
	TotalObjects        int               `json:"total_objects"`
	IssuesFound         int               `json:"issues_found"`
	AutoFixesApplied    int               `json:"auto_fixes_applied"`
	SuggestedFixes      int               `json:"suggested_fixes"`
	ManualFixesRequired int               `json:"manual_fixes_required"`
	ValidationTime      float64           `json:"validation_time"` // wall-clock seconds
	Timestamp           time.Time         `json:"timestamp"`
	Issues              []ValidationIssue `json:"issues,omitempty"`
	Summary             map[string]any    `json:"summary"`
}

// FixReport is the outcome of applying caller-selected fixes to a prior run.
type FixReport struct {
	ValidationID string `json:"validation_id"`
	AppliedFixes int    `json:"applied_fixes"`
	FailedFixes  int    `json:"failed_fixes"`
	TotalIssues  int    `json:"total_issues"`
	Status       string `json:"status"`
}

// =============================================================================
// Identifier Derivation
// =============================================================================

// NewValidationID derives a run identifier from the floorplan id and the
// run's creation time.
func NewValidationID(floorplanID string, t time.Time) string {
	return fmt.Sprintf("validation_%s_%d", floorplanID, t.UnixMilli())
}

// NewIssueID derives an issue identifier from the run id, the offending
// object and the issue kind. Within one run each (object, kind) pair occurs
// at most once, so ids stay unique even when timestamps collide.
func NewIssueID(validationID, objectID string, issueType IssueType, t time.Time) string {
	return fmt.Sprintf("issue_%s_%s_%s_%d", validationID, objectID, issueType, t.UnixMilli())
}
