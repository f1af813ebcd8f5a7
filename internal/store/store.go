// Package store persists validation results, their issues, and behavior
// profiles in Postgres. JSON-valued columns round-trip through
// serialize/deserialize without loss; nullable ones use pqtype so a missing
// suggestion stays NULL rather than becoming the JSON string "null".
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/sqlc-dev/pqtype"

	"github.com/planarx/bimhealth/internal/domain"
)

// Store wraps the database handle. It is safe for concurrent use; each
// result write is one transaction, so concurrent runs keyed by validation id
// never interleave.
type Store struct {
	db *sql.DB
}

// New creates a Store over an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// =============================================================================
// Validation Results
// =============================================================================

// SaveResult writes a result and its issues in one transaction, upserting
// by id. Results are written exactly once per run on both success and
// failure paths.
func (s *Store) SaveResult(ctx context.Context, result *domain.ValidationResult) error {
	const op = "store.save_result"

	summary, err := marshalJSON(result.Summary)
	if err != nil {
		return domain.Internal(err, op, "failed to encode summary")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Storage(err, op, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO validation_results
			(validation_id, floorplan_id, status, total_objects, issues_found,
			 auto_fixes_applied, suggested_fixes, manual_fixes_required,
			 validation_time, timestamp, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (validation_id) DO UPDATE SET
			status = EXCLUDED.status,
			total_objects = EXCLUDED.total_objects,
			issues_found = EXCLUDED.issues_found,
			auto_fixes_applied = EXCLUDED.auto_fixes_applied,
			suggested_fixes = EXCLUDED.suggested_fixes,
			manual_fixes_required = EXCLUDED.manual_fixes_required,
			validation_time = EXCLUDED.validation_time,
			timestamp = EXCLUDED.timestamp,
			summary = EXCLUDED.summary`,
		result.ValidationID,
		result.FloorplanID,
		result.Status.String(),
		result.TotalObjects,
		result.IssuesFound,
		result.AutoFixesApplied,
		result.SuggestedFixes,
		result.ManualFixesRequired,
		result.ValidationTime,
		result.Timestamp,
		summary,
	)
	if err != nil {
		return domain.Storage(err, op, "failed to save validation result")
	}

	for _, issue := range result.Issues {
		if err := saveIssue(ctx, tx, result.ValidationID, issue); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Storage(err, op, "failed to commit validation result")
	}
	return nil
}

func saveIssue(ctx context.Context, tx *sql.Tx, validationID string, issue domain.ValidationIssue) error {
	const op = "store.save_issue"

	location, err := marshalJSON(issue.Location)
	if err != nil {
		return domain.Internal(err, op, "failed to encode location")
	}
	currentValue, err := marshalJSON(issue.CurrentValue)
	if err != nil {
		return domain.Internal(err, op, "failed to encode current value")
	}
	suggestedValue, err := marshalJSON(issue.SuggestedValue)
	if err != nil {
		return domain.Internal(err, op, "failed to encode suggested value")
	}
	issueContext, err := marshalJSON(issue.Context)
	if err != nil {
		return domain.Internal(err, op, "failed to encode context")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO validation_issues
			(issue_id, validation_id, issue_type, object_id, severity,
			 description, location, current_value, suggested_value,
			 fix_type, confidence, timestamp, context)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (issue_id) DO UPDATE SET
			issue_type = EXCLUDED.issue_type,
			object_id = EXCLUDED.object_id,
			severity = EXCLUDED.severity,
			description = EXCLUDED.description,
			location = EXCLUDED.location,
			current_value = EXCLUDED.current_value,
			suggested_value = EXCLUDED.suggested_value,
			fix_type = EXCLUDED.fix_type,
			confidence = EXCLUDED.confidence,
			timestamp = EXCLUDED.timestamp,
			context = EXCLUDED.context`,
		issue.IssueID,
		validationID,
		issue.IssueType.String(),
		issue.ObjectID,
		issue.Severity.String(),
		issue.Description,
		location,
		currentValue,
		suggestedValue,
		issue.FixType.String(),
		issue.Confidence,
		issue.Timestamp,
		issueContext,
	)
	if err != nil {
		return domain.Storage(err, op, "failed to save validation issue")
	}
	return nil
}

// GetResult loads a result and all of its issues.
// Returns domain.ENOTFOUND when the validation id is unknown.
func (s *Store) GetResult(ctx context.Context, validationID string) (*domain.ValidationResult, error) {
	const op = "store.get_result"

	row := s.db.QueryRowContext(ctx, `
		SELECT validation_id, floorplan_id, status, total_objects, issues_found,
		       auto_fixes_applied, suggested_fixes, manual_fixes_required,
		       validation_time, timestamp, summary
		FROM validation_results
		WHERE validation_id = $1`,
		validationID,
	)

	result, err := scanResult(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "validation result", validationID)
		}
		return nil, domain.Storage(err, op, "failed to get validation result")
	}

	issues, err := s.issuesByValidation(ctx, validationID)
	if err != nil {
		return nil, err
	}
	result.Issues = issues

	return result, nil
}

func (s *Store) issuesByValidation(ctx context.Context, validationID string) ([]domain.ValidationIssue, error) {
	const op = "store.list_issues"

	rows, err := s.db.QueryContext(ctx, `
		SELECT issue_id, issue_type, object_id, severity, description,
		       location, current_value, suggested_value, fix_type,
		       confidence, timestamp, context
		FROM validation_issues
		WHERE validation_id = $1
		ORDER BY issue_id`,
		validationID,
	)
	if err != nil {
		return nil, domain.Storage(err, op, "failed to list validation issues")
	}
	defer rows.Close()

	var issues []domain.ValidationIssue
	for rows.Next() {
		var (
			issue          domain.ValidationIssue
			issueType      string
			severity       string
			fixType        string
			location       pqtype.NullRawMessage
			currentValue   pqtype.NullRawMessage
			suggestedValue pqtype.NullRawMessage
			issueContext   pqtype.NullRawMessage
		)
		err := rows.Scan(
			&issue.IssueID,
			&issueType,
			&issue.ObjectID,
			&severity,
			&issue.Description,
			&location,
			&currentValue,
			&suggestedValue,
			&fixType,
			&issue.Confidence,
			&issue.Timestamp,
			&issueContext,
		)
		if err != nil {
			return nil, domain.Storage(err, op, "failed to scan validation issue")
		}

		issue.IssueType = domain.IssueType(issueType)
		issue.Severity = domain.Severity(severity)
		issue.FixType = domain.FixType(fixType)
		if err := unmarshalJSON(location, &issue.Location); err != nil {
			return nil, domain.Internal(err, op, "failed to decode location")
		}
		if err := unmarshalJSON(currentValue, &issue.CurrentValue); err != nil {
			return nil, domain.Internal(err, op, "failed to decode current value")
		}
		if err := unmarshalJSON(suggestedValue, &issue.SuggestedValue); err != nil {
			return nil, domain.Internal(err, op, "failed to decode suggested value")
		}
		if err := unmarshalJSON(issueContext, &issue.Context); err != nil {
			return nil, domain.Internal(err, op, "failed to decode context")
		}

		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage(err, op, "failed to iterate validation issues")
	}

	return issues, nil
}

// History returns a floorplan's validation results, most recent first,
// without their issues.
func (s *Store) History(ctx context.Context, floorplanID string, limit int) ([]domain.ValidationResult, error) {
	const op = "store.history"

	rows, err := s.db.QueryContext(ctx, `
		SELECT validation_id, floorplan_id, status, total_objects, issues_found,
		       auto_fixes_applied, suggested_fixes, manual_fixes_required,
		       validation_time, timestamp, summary
		FROM validation_results
		WHERE floorplan_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`,
		floorplanID, limit,
	)
	if err != nil {
		return nil, domain.Storage(err, op, "failed to query validation history")
	}
	defer rows.Close()

	var results []domain.ValidationResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, domain.Storage(err, op, "failed to scan validation result")
		}
		results = append(results, *result)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage(err, op, "failed to iterate validation history")
	}

	return results, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*domain.ValidationResult, error) {
	var (
		result  domain.ValidationResult
		status  string
		summary pqtype.NullRawMessage
	)
	err := row.Scan(
		&result.ValidationID,
		&result.FloorplanID,
		&status,
		&result.TotalObjects,
		&result.IssuesFound,
		&result.AutoFixesApplied,
		&result.SuggestedFixes,
		&result.ManualFixesRequired,
		&result.ValidationTime,
		&result.Timestamp,
		&summary,
	)
	if err != nil {
		return nil, err
	}

	result.Status = domain.ValidationStatus(status)
	if err := unmarshalJSON(summary, &result.Summary); err != nil {
		return nil, err
	}
	return &result, nil
}

// =============================================================================
// Behavior Profiles
// =============================================================================

// SaveProfile upserts a profile by id.
func (s *Store) SaveProfile(ctx context.Context, p domain.BehaviorProfile) error {
	const op = "store.save_profile"

	properties, err := json.Marshal(p.Properties)
	if err != nil {
		return domain.Internal(err, op, "failed to encode properties")
	}
	rules, err := json.Marshal(p.Rules)
	if err != nil {
		return domain.Internal(err, op, "failed to encode validation rules")
	}
	suggestions, err := json.Marshal(p.FixSuggestions)
	if err != nil {
		return domain.Internal(err, op, "failed to encode fix suggestions")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO behavior_profiles
			(profile_id, object_type, category, properties, validation_rules, fix_suggestions)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (profile_id) DO UPDATE SET
			object_type = EXCLUDED.object_type,
			category = EXCLUDED.category,
			properties = EXCLUDED.properties,
			validation_rules = EXCLUDED.validation_rules,
			fix_suggestions = EXCLUDED.fix_suggestions`,
		p.ProfileID, p.ObjectType, p.Category, properties, rules, suggestions,
	)
	if err != nil {
		return domain.Storage(err, op, "failed to save behavior profile")
	}
	return nil
}

// ListProfiles returns every stored profile.
func (s *Store) ListProfiles(ctx context.Context) ([]domain.BehaviorProfile, error) {
	const op = "store.list_profiles"

	rows, err := s.db.QueryContext(ctx, `
		SELECT profile_id, object_type, category, properties, validation_rules, fix_suggestions
		FROM behavior_profiles
		ORDER BY profile_id`,
	)
	if err != nil {
		return nil, domain.Storage(err, op, "failed to list behavior profiles")
	}
	defer rows.Close()

	var profiles []domain.BehaviorProfile
	for rows.Next() {
		var (
			p           domain.BehaviorProfile
			properties  []byte
			rules       []byte
			suggestions []byte
		)
		if err := rows.Scan(&p.ProfileID, &p.ObjectType, &p.Category, &properties, &rules, &suggestions); err != nil {
			return nil, domain.Storage(err, op, "failed to scan behavior profile")
		}
		if err := json.Unmarshal(properties, &p.Properties); err != nil {
			return nil, domain.Internal(err, op, "failed to decode properties")
		}
		if err := json.Unmarshal(rules, &p.Rules); err != nil {
			return nil, domain.Internal(err, op, "failed to decode validation rules")
		}
		if err := json.Unmarshal(suggestions, &p.FixSuggestions); err != nil {
			return nil, domain.Internal(err, op, "failed to decode fix suggestions")
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Storage(err, op, "failed to iterate behavior profiles")
	}

	return profiles, nil
}

// =============================================================================
// Diagnostics
// =============================================================================

// SizeBytes reports the on-disk size of the three engine tables.
func (s *Store) SizeBytes(ctx context.Context) (int64, error) {
	const op = "store.size_bytes"

	var size int64
	err := s.db.QueryRowContext(ctx, `
		SELECT pg_total_relation_size('validation_results')
		     + pg_total_relation_size('validation_issues')
		     + pg_total_relation_size('behavior_profiles')`,
	).Scan(&size)
	if err != nil {
		return 0, domain.Storage(err, op, "failed to measure store size")
	}
	return size, nil
}

// =============================================================================
// JSON helpers
// =============================================================================

// marshalJSON encodes v for a nullable JSON column; nil stays NULL.
func marshalJSON(v any) (pqtype.NullRawMessage, error) {
	if v == nil {
		return pqtype.NullRawMessage{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return pqtype.NullRawMessage{}, err
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}, nil
}

// unmarshalJSON decodes a nullable JSON column into dst, leaving dst's zero
// value for NULL.
func unmarshalJSON[T any](raw pqtype.NullRawMessage, dst *T) error {
	if !raw.Valid {
		return nil
	}
	return json.Unmarshal(raw.RawMessage, dst)
}
