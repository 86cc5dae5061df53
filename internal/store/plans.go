package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vpo/internal/phase"
	"vpo/internal/services"
)

const planColumns = "id, file_path, policy_name, policy_version, status, requires_remux, snapshot_hash, summary, actions_json, warnings_json, created_at, updated_at, reviewed_at"

func scanPlan(scanner interface{ Scan(dest ...any) error }) (*Plan, error) {
	var (
		id            string
		filePath      string
		policyName    string
		policyVersion int
		status        string
		requiresRemux int
		snapshotHash  string
		summary       string
		actionsJSON   string
		warningsJSON  string
		createdRaw    string
		updatedRaw    string
		reviewedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&filePath,
		&policyName,
		&policyVersion,
		&status,
		&requiresRemux,
		&snapshotHash,
		&summary,
		&actionsJSON,
		&warningsJSON,
		&createdRaw,
		&updatedRaw,
		&reviewedRaw,
	); err != nil {
		return nil, err
	}

	plan := &Plan{
		ID:            id,
		FilePath:      filePath,
		PolicyName:    policyName,
		PolicyVersion: policyVersion,
		Status:        PlanStatus(status),
		RequiresRemux: requiresRemux != 0,
		SnapshotHash:  snapshotHash,
		Summary:       summary,
	}
	if actionsJSON != "" {
		if err := json.Unmarshal([]byte(actionsJSON), &plan.Actions); err != nil {
			return nil, fmt.Errorf("decode plan actions: %w", err)
		}
	}
	if warningsJSON != "" {
		if err := json.Unmarshal([]byte(warningsJSON), &plan.Warnings); err != nil {
			return nil, fmt.Errorf("decode plan warnings: %w", err)
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		plan.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		plan.UpdatedAt = updated
	}
	plan.ReviewedAt = parseNullableTime(reviewedRaw)
	return plan, nil
}

// SavePlan stores an evaluation result as a pending plan. Results with
// no actions are rejected; compliant files never produce plans.
func (s *Store) SavePlan(ctx context.Context, result *phase.Result) (*Plan, error) {
	if result == nil {
		return nil, services.Wrap(services.ErrValidation, "", "", "plan result is nil", nil)
	}
	if len(result.Actions) == 0 {
		return nil, services.Wrap(services.ErrValidation, "", "", fmt.Sprintf("%s needs no changes, nothing to store", result.File), nil)
	}

	actionsJSON, err := json.Marshal(result.Actions)
	if err != nil {
		return nil, fmt.Errorf("encode plan actions: %w", err)
	}
	warnings := result.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return nil, fmt.Errorf("encode plan warnings: %w", err)
	}

	now := time.Now().UTC()
	plan := &Plan{
		ID:            uuid.NewString(),
		FilePath:      result.File,
		PolicyName:    result.Policy,
		PolicyVersion: result.PolicyVersion,
		Status:        PlanPending,
		RequiresRemux: result.RequiresRemux,
		SnapshotHash:  result.Fingerprint,
		Summary:       result.Summary(),
		Actions:       result.Actions,
		Warnings:      result.Warnings,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err = s.pool.ExecuteWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		_, execErr := db.ExecContext(ctx,
			`INSERT INTO plans (id, file_path, policy_name, policy_version, status, requires_remux, snapshot_hash, summary, actions_json, warnings_json, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			plan.ID, plan.FilePath, plan.PolicyName, plan.PolicyVersion, string(plan.Status),
			boolToInt(plan.RequiresRemux), plan.SnapshotHash, plan.Summary,
			string(actionsJSON), string(warningsJSON), formatTime(now), formatTime(now))
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("save plan: %w", err)
	}
	return plan, nil
}

// GetPlan returns the plan with the given id.
func (s *Store) GetPlan(ctx context.Context, id string) (*Plan, error) {
	var plan *Plan
	err := s.pool.ExecuteRead(ctx, func(ctx context.Context, db *sql.DB) error {
		row := db.QueryRowContext(ctx, "SELECT "+planColumns+" FROM plans WHERE id = ?", id)
		var scanErr error
		plan, scanErr = scanPlan(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "", "", fmt.Sprintf("plan %s", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", id, err)
	}
	return plan, nil
}

// PlanFilter restricts ListPlans output. Zero-valued fields are ignored.
type PlanFilter struct {
	Statuses []PlanStatus
	FilePath string
	Policy   string
	Limit    int
	Offset   int
}

// ListPlans returns plans newest first.
func (s *Store) ListPlans(ctx context.Context, filter PlanFilter) ([]*Plan, error) {
	query := "SELECT " + planColumns + " FROM plans"
	var clauses []string
	var args []any
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	if filter.FilePath != "" {
		clauses = append(clauses, "file_path = ?")
		args = append(args, filter.FilePath)
	}
	if filter.Policy != "" {
		clauses = append(clauses, "policy_name = ?")
		args = append(args, filter.Policy)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	var plans []*Plan
	err := s.pool.ExecuteRead(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, queryErr := db.QueryContext(ctx, query, args...)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()
		for rows.Next() {
			plan, scanErr := scanPlan(rows)
			if scanErr != nil {
				return scanErr
			}
			plans = append(plans, plan)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

// transitionPlan applies assignments to a plan only when its current
// status is in allowed, returning the updated row.
func (s *Store) transitionPlan(ctx context.Context, id, assignments string, assignArgs []any, allowed ...PlanStatus) (*Plan, error) {
	var updated *Plan
	err := s.pool.Transaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var current string
		if err := tx.QueryRowContext(ctx, "SELECT status FROM plans WHERE id = ?", id).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return services.Wrap(services.ErrNotFound, "", "", fmt.Sprintf("plan %s", id), nil)
			}
			return err
		}
		permitted := false
		for _, status := range allowed {
			if PlanStatus(current) == status {
				permitted = true
				break
			}
		}
		if !permitted {
			return services.Wrap(services.ErrConflict, "", "",
				fmt.Sprintf("plan %s is %s, want %s", id, current, joinPlanStatuses(allowed)), nil)
		}

		args := append(append([]any{}, assignArgs...), id)
		if _, err := tx.ExecContext(ctx, "UPDATE plans SET "+assignments+" WHERE id = ?", args...); err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx, "SELECT "+planColumns+" FROM plans WHERE id = ?", id)
		plan, scanErr := scanPlan(row)
		if scanErr != nil {
			return scanErr
		}
		updated = plan
		return nil
	})
	if err != nil {
		if services.Marker(err) != nil {
			return nil, err
		}
		return nil, fmt.Errorf("update plan %s: %w", id, err)
	}
	return updated, nil
}

func joinPlanStatuses(statuses []PlanStatus) string {
	parts := make([]string, len(statuses))
	for i, status := range statuses {
		parts[i] = string(status)
	}
	return strings.Join(parts, " or ")
}

// ApprovePlan marks a pending plan approved for application.
func (s *Store) ApprovePlan(ctx context.Context, id string) (*Plan, error) {
	now := formatTime(time.Now())
	return s.transitionPlan(ctx, id,
		"status = ?, reviewed_at = ?, updated_at = ?",
		[]any{string(PlanApproved), now, now},
		PlanPending)
}

// RejectPlan marks a pending plan rejected.
func (s *Store) RejectPlan(ctx context.Context, id string) (*Plan, error) {
	now := formatTime(time.Now())
	return s.transitionPlan(ctx, id,
		"status = ?, reviewed_at = ?, updated_at = ?",
		[]any{string(PlanRejected), now, now},
		PlanPending)
}

// MarkPlanApplied records that an approved plan was applied. The caller
// passes the fingerprint of the file as it was scanned just before
// application; when it no longer matches the hash the plan was computed
// from, the plan is stale and a conflict is returned instead.
func (s *Store) MarkPlanApplied(ctx context.Context, id, expectedHash string) (*Plan, error) {
	var updated *Plan
	err := s.pool.Transaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var current, storedHash string
		if err := tx.QueryRowContext(ctx, "SELECT status, snapshot_hash FROM plans WHERE id = ?", id).Scan(&current, &storedHash); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return services.Wrap(services.ErrNotFound, "", "", fmt.Sprintf("plan %s", id), nil)
			}
			return err
		}
		if PlanStatus(current) != PlanApproved {
			return services.Wrap(services.ErrConflict, "", "",
				fmt.Sprintf("plan %s is %s, want approved", id, current), nil)
		}
		if expectedHash != "" && storedHash != expectedHash {
			return services.Wrap(services.ErrConflict, "", "",
				fmt.Sprintf("plan %s is stale, file changed since evaluation", id), nil)
		}

		now := formatTime(time.Now())
		if _, err := tx.ExecContext(ctx, "UPDATE plans SET status = ?, updated_at = ? WHERE id = ?",
			string(PlanApplied), now, id); err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx, "SELECT "+planColumns+" FROM plans WHERE id = ?", id)
		plan, scanErr := scanPlan(row)
		if scanErr != nil {
			return scanErr
		}
		updated = plan
		return nil
	})
	if err != nil {
		if services.Marker(err) != nil {
			return nil, err
		}
		return nil, fmt.Errorf("apply plan %s: %w", id, err)
	}
	return updated, nil
}
