// Package service contains the business logic layer.
//
// This file implements the health service: it orchestrates validation runs
// over a floorplan's objects, applies caller-selected fixes to prior runs,
// and exposes history and process metrics.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/planarx/bimhealth/internal/check"
	"github.com/planarx/bimhealth/internal/domain"
	"github.com/planarx/bimhealth/internal/metrics"
	"github.com/planarx/bimhealth/internal/profile"
)

// Fix selection actions accepted by ApplyFixes.
const (
	ActionApply  = "apply"
	ActionIgnore = "ignore"
)

// DefaultHistoryLimit caps history queries when the caller passes no limit.
const DefaultHistoryLimit = 50

// =============================================================================
// Interface Definition
// =============================================================================

// HealthService defines the validation engine's operations.
type HealthService interface {
	// Validate runs every detector over the floorplan's objects and persists
	// the result. The objects payload may be a JSON list or a map keyed by
	// object id.
	Validate(ctx context.Context, floorplanID string, objects json.RawMessage) (*domain.ValidationResult, error)

	// ApplyFixes resolves caller-selected issues of a prior run by issue id.
	ApplyFixes(ctx context.Context, validationID string, selections map[string]string) (*domain.FixReport, error)

	// History returns a floorplan's past results, most recent first,
	// without their issues.
	History(ctx context.Context, floorplanID string, limit int) ([]domain.ValidationResult, error)

	// AddProfile upserts a behavior profile by id.
	AddProfile(ctx context.Context, p domain.BehaviorProfile) error

	// Profiles returns every registered behavior profile.
	Profiles(ctx context.Context) []domain.BehaviorProfile

	// Metrics reports the process counters plus profile count and store size.
	Metrics(ctx context.Context) (*ServiceMetrics, error)
}

// ServiceMetrics is the payload returned by Metrics.
type ServiceMetrics struct {
	Counters         metrics.Counters `json:"metrics"`
	BehaviorProfiles int              `json:"behavior_profiles"`
	DatabaseSize     int64            `json:"database_size"`
}

// HealthStore is the persistence surface the service needs.
type HealthStore interface {
	SaveResult(ctx context.Context, result *domain.ValidationResult) error
	GetResult(ctx context.Context, validationID string) (*domain.ValidationResult, error)
	History(ctx context.Context, floorplanID string, limit int) ([]domain.ValidationResult, error)
	SizeBytes(ctx context.Context) (int64, error)
}

// =============================================================================
// Implementation
// =============================================================================

type healthService struct {
	store        HealthStore
	registry     *profile.Registry
	collector    *metrics.Collector
	logger       *slog.Logger
	staleAfter   time.Duration
	historyLimit int
}

// NewHealthService creates a new HealthService. Zero staleAfter and
// historyLimit fall back to the package defaults.
func NewHealthService(
	store HealthStore,
	registry *profile.Registry,
	collector *metrics.Collector,
	logger *slog.Logger,
	staleAfter time.Duration,
	historyLimit int,
) HealthService {
	if staleAfter <= 0 {
		staleAfter = check.DefaultStaleThreshold
	}
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &healthService{
		store:        store,
		registry:     registry,
		collector:    collector,
		logger:       logger,
		staleAfter:   staleAfter,
		historyLimit: historyLimit,
	}
}

// =============================================================================
// Validate
// =============================================================================

// tallies are the advisory per-detector fix counts. They are bookkeeping
// separate from each issue's own fix type: a missing-profile issue counts as
// auto because a fallback profile was found, even though duplicates always
// count as manual regardless of selection.
type tallies struct {
	auto      int
	suggested int
	manual    int
}

// Validate runs the synchronous validation pipeline: normalize the payload,
// scan for duplicates across the whole set, then run the per-object
// detectors. A malformed payload is rejected before anything is persisted.
// A panic inside the detector pass is recovered, a FAILED result is
// persisted for audit continuity, and the error is returned to the caller.
func (s *healthService) Validate(ctx context.Context, floorplanID string, objects json.RawMessage) (*domain.ValidationResult, error) {
	start := time.Now().UTC()

	normalized, err := domain.NormalizeObjects(objects)
	if err != nil {
		return nil, err
	}

	result := &domain.ValidationResult{
		ValidationID: domain.NewValidationID(floorplanID, start),
		FloorplanID:  floorplanID,
		Status:       domain.ValidationStatusPending,
		TotalObjects: len(normalized),
		Timestamp:    start,
	}

	s.logger.Info("validation started",
		"validation_id", result.ValidationID,
		"floorplan_id", floorplanID,
		"total_objects", len(normalized),
	)

	issues, counts, runErr := s.runDetectors(ctx, result.ValidationID, normalized, start)
	if runErr != nil {
		return nil, s.failRun(ctx, result, start, runErr)
	}

	result.Status = domain.ValidationStatusCompleted
	result.Issues = issues
	result.IssuesFound = len(issues)
	result.AutoFixesApplied = counts.auto
	result.SuggestedFixes = counts.suggested
	result.ManualFixesRequired = counts.manual
	result.ValidationTime = time.Since(start).Seconds()
	result.Summary = summarize(len(issues), counts)

	if err := s.store.SaveResult(ctx, result); err != nil {
		return nil, err
	}

	s.recordRun(result)

	s.logger.Info("validation completed",
		"validation_id", result.ValidationID,
		"floorplan_id", floorplanID,
		"issues_found", result.IssuesFound,
		"duration_seconds", result.ValidationTime,
	)

	return result, nil
}

// runDetectors executes the duplicate scan and the per-object detector pass.
// Cancellation is honored between objects. Any panic is converted to an
// error so the caller can persist a failed result.
func (s *healthService) runDetectors(ctx context.Context, validationID string, objects []domain.BIMObject, now time.Time) (issues []domain.ValidationIssue, counts tallies, err error) {
	defer func() {
		if r := recover(); r != nil {
			issues = nil
			counts = tallies{}
			err = fmt.Errorf("detector failure: %v", r)
		}
	}()

	duplicates := check.DuplicateObjects(validationID, objects, now)
	issues = append(issues, duplicates...)
	counts.manual += len(duplicates)

	availableIDs := s.registry.IDs()

	for _, obj := range objects {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, tallies{}, ctxErr
		}

		p, exact := s.registry.Lookup(obj.Type, obj.Category)
		if p == nil {
			// No exact match and no fallback either: the object is
			// unassignable and no profile-driven detector can run.
			continue
		}

		if !exact {
			if issue := check.MissingProfile(validationID, obj, p, availableIDs, now); issue != nil {
				issues = append(issues, *issue)
				counts.auto++
			}
		}
		if issue := check.InvalidCoordinates(validationID, obj, p, now); issue != nil {
			issues = append(issues, *issue)
			counts.auto++
		}
		if issue := check.UnlinkedSymbol(validationID, obj, p, now); issue != nil {
			issues = append(issues, *issue)
			counts.suggested++
		}
		if issue := check.StaleMetadata(validationID, obj, s.staleAfter, now); issue != nil {
			issues = append(issues, *issue)
			counts.suggested++
		}
	}

	return issues, counts, nil
}

// failRun persists a FAILED result with zeroed counters and an error note,
// then returns the run error. A persistence failure here is logged but never
// masks the original error.
func (s *healthService) failRun(ctx context.Context, result *domain.ValidationResult, start time.Time, runErr error) error {
	const op = "health.validate"

	result.Status = domain.ValidationStatusFailed
	result.Issues = nil
	result.IssuesFound = 0
	result.AutoFixesApplied = 0
	result.SuggestedFixes = 0
	result.ManualFixesRequired = 0
	result.ValidationTime = time.Since(start).Seconds()
	result.Summary = map[string]any{"error": runErr.Error()}

	if saveErr := s.store.SaveResult(ctx, result); saveErr != nil {
		s.logger.Error("failed to persist failed validation result",
			"validation_id", result.ValidationID,
			"error", saveErr,
		)
	}

	metrics.ValidationsTotal.WithLabelValues(domain.ValidationStatusFailed.String()).Inc()

	s.logger.Error("validation failed",
		"validation_id", result.ValidationID,
		"floorplan_id", result.FloorplanID,
		"error", runErr,
	)

	return domain.Internal(runErr, op, "validation run failed")
}

// summarize derives the score and per-class rates. Rates divide by
// max(issues, 1) so an issue-free run reports clean zeros.
func summarize(issuesFound int, counts tallies) map[string]any {
	score := 100 - 10*issuesFound
	if score < 0 {
		score = 0
	}
	denom := float64(max(issuesFound, 1))

	return map[string]any{
		"validation_score": float64(score),
		"auto_fix_rate":    float64(counts.auto) / denom,
		"suggestion_rate":  float64(counts.suggested) / denom,
		"manual_fix_rate":  float64(counts.manual) / denom,
	}
}

// recordRun folds a completed run into the process counters. Only completed
// runs count; failed runs show up in the prometheus status counter alone.
func (s *healthService) recordRun(result *domain.ValidationResult) {
	duration := time.Duration(result.ValidationTime * float64(time.Second))
	s.collector.RecordValidation(duration, result.IssuesFound, result.AutoFixesApplied)

	metrics.ValidationsTotal.WithLabelValues(result.Status.String()).Inc()
	metrics.ValidationDuration.Observe(result.ValidationTime)
	for _, issue := range result.Issues {
		metrics.IssuesDetected.WithLabelValues(issue.IssueType.String()).Inc()
	}
}

// =============================================================================
// ApplyFixes
// =============================================================================

// ApplyFixes loads a prior run and resolves each issue the caller selected.
// An auto fix was already applied at validation time, so it always succeeds.
// A suggested fix succeeds when a suggestion exists. A manual fix always
// fails, requiring human action. The "ignore" action acknowledges the issue
// without change. The stored result is never mutated.
func (s *healthService) ApplyFixes(ctx context.Context, validationID string, selections map[string]string) (*domain.FixReport, error) {
	result, err := s.store.GetResult(ctx, validationID)
	if err != nil {
		return nil, err
	}

	report := &domain.FixReport{
		ValidationID: validationID,
		TotalIssues:  len(result.Issues),
		Status:       domain.ValidationStatusCompleted.String(),
	}

	for _, issue := range result.Issues {
		action, selected := selections[issue.IssueID]
		if !selected {
			continue
		}

		if s.resolveFix(issue, action) {
			report.AppliedFixes++
			metrics.FixesApplied.WithLabelValues("applied").Inc()
		} else {
			report.FailedFixes++
			metrics.FixesApplied.WithLabelValues("failed").Inc()
		}
	}

	s.logger.Info("fixes applied",
		"validation_id", validationID,
		"applied", report.AppliedFixes,
		"failed", report.FailedFixes,
	)

	return report, nil
}

// resolveFix reports whether one selected issue counts as applied.
func (s *healthService) resolveFix(issue domain.ValidationIssue, action string) bool {
	switch action {
	case ActionIgnore:
		return true
	case ActionApply:
		switch issue.FixType {
		case domain.FixAuto:
			return true
		case domain.FixSuggested:
			// TODO: write the suggested value back to the object store once
			// the floorplan service exposes a correction endpoint.
			return issue.SuggestedValue != nil
		default:
			return false
		}
	default:
		s.logger.Warn("unknown fix action", "issue_id", issue.IssueID, "action", action)
		return false
	}
}

// =============================================================================
// History, Profiles, Metrics
// =============================================================================

// History returns a floorplan's past results, most recent first. A
// non-positive limit falls back to the configured default.
func (s *healthService) History(ctx context.Context, floorplanID string, limit int) ([]domain.ValidationResult, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	return s.store.History(ctx, floorplanID, limit)
}

// AddProfile upserts a behavior profile by id.
func (s *healthService) AddProfile(ctx context.Context, p domain.BehaviorProfile) error {
	return s.registry.Add(ctx, p)
}

// Profiles returns every registered behavior profile.
func (s *healthService) Profiles(_ context.Context) []domain.BehaviorProfile {
	return s.registry.All()
}

// Metrics reports the process counters together with the registry size and
// the on-disk size of the store.
func (s *healthService) Metrics(ctx context.Context) (*ServiceMetrics, error) {
	size, err := s.store.SizeBytes(ctx)
	if err != nil {
		return nil, err
	}

	return &ServiceMetrics{
		Counters:         s.collector.Snapshot(),
		BehaviorProfiles: s.registry.Count(),
		DatabaseSize:     size,
	}, nil
}
