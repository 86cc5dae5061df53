package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vpo/internal/services"
)

const jobColumns = "id, type, status, file_path, policy_name, batch_id, progress_percent, error_message, created_at, started_at, completed_at, heartbeat_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		jobType      string
		status       string
		filePath     string
		policyName   string
		batchID      string
		progress     float64
		errorMessage sql.NullString
		createdRaw   string
		startedRaw   sql.NullString
		completedRaw sql.NullString
		heartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&jobType,
		&status,
		&filePath,
		&policyName,
		&batchID,
		&progress,
		&errorMessage,
		&createdRaw,
		&startedRaw,
		&completedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		Type:            JobType(jobType),
		Status:          JobStatus(status),
		FilePath:        filePath,
		PolicyName:      policyName,
		BatchID:         batchID,
		ProgressPercent: progress,
		ErrorMessage:    errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	job.StartedAt = parseNullableTime(startedRaw)
	job.CompletedAt = parseNullableTime(completedRaw)
	job.HeartbeatAt = parseNullableTime(heartbeatRaw)
	return job, nil
}

// Enqueue inserts a new queued job and returns it.
func (s *Store) Enqueue(ctx context.Context, jobType JobType, filePath, policyName, batchID string) (*Job, error) {
	if _, ok := jobTypeSet[jobType]; !ok {
		return nil, services.Wrap(services.ErrValidation, "", "", fmt.Sprintf("unknown job type %q", jobType), nil)
	}
	if strings.TrimSpace(filePath) == "" {
		return nil, services.Wrap(services.ErrValidation, "", "", "job file path is empty", nil)
	}

	job := &Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Status:     JobQueued,
		FilePath:   filePath,
		PolicyName: policyName,
		BatchID:    batchID,
		CreatedAt:  time.Now().UTC(),
	}
	err := s.pool.ExecuteWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		_, execErr := db.ExecContext(ctx,
			`INSERT INTO jobs (id, type, status, file_path, policy_name, batch_id, progress_percent, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
			job.ID, string(job.Type), string(job.Status), job.FilePath, job.PolicyName, job.BatchID, formatTime(job.CreatedAt))
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// GetJob returns the job with the given id.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	var job *Job
	err := s.pool.ExecuteRead(ctx, func(ctx context.Context, db *sql.DB) error {
		row := db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
		var scanErr error
		job, scanErr = scanJob(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "", "", fmt.Sprintf("job %s", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// JobFilter restricts ListJobs output. Zero-valued fields are ignored.
type JobFilter struct {
	Statuses []JobStatus
	Types    []JobType
	BatchID  string
	Since    time.Time
	Limit    int
	Offset   int
}

// ListJobs returns jobs newest first.
func (s *Store) ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs"
	var clauses []string
	var args []any
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}
	if len(filter.Types) > 0 {
		clauses = append(clauses, "type IN ("+makePlaceholders(len(filter.Types))+")")
		for _, jobType := range filter.Types {
			args = append(args, string(jobType))
		}
	}
	if filter.BatchID != "" {
		clauses = append(clauses, "batch_id = ?")
		args = append(args, filter.BatchID)
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, formatTime(filter.Since))
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

	var jobs []*Job
	err := s.pool.ExecuteRead(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, queryErr := db.QueryContext(ctx, query, args...)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()
		for rows.Next() {
			job, scanErr := scanJob(rows)
			if scanErr != nil {
				return scanErr
			}
			jobs = append(jobs, job)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// ClaimNext atomically claims the oldest queued job, moving it to
// running. It returns nil without error when the queue is empty.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	var claimed *Job
	err := s.pool.Transaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"SELECT "+jobColumns+" FROM jobs WHERE status = ? ORDER BY created_at, id LIMIT 1",
			string(JobQueued))
		job, scanErr := scanJob(row)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return nil
		}
		if scanErr != nil {
			return scanErr
		}

		now := time.Now().UTC()
		res, updateErr := tx.ExecContext(ctx,
			"UPDATE jobs SET status = ?, started_at = ?, heartbeat_at = ? WHERE id = ? AND status = ?",
			string(JobRunning), formatTime(now), formatTime(now), job.ID, string(JobQueued))
		if updateErr != nil {
			return updateErr
		}
		affected, affErr := res.RowsAffected()
		if affErr != nil {
			return affErr
		}
		if affected == 0 {
			return services.Wrap(services.ErrConflict, "", "", fmt.Sprintf("job %s claimed concurrently", job.ID), nil)
		}
		job.Status = JobRunning
		job.StartedAt = &now
		job.HeartbeatAt = &now
		claimed = job
		return nil
	})
	if err != nil {
		if services.Marker(err) != nil {
			return nil, err
		}
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return claimed, nil
}

// transitionJob applies assignments to a job only when its current status
// is in allowed, returning the updated row. Missing jobs map to not-found;
// disallowed current statuses map to a concurrency conflict.
func (s *Store) transitionJob(ctx context.Context, id, assignments string, assignArgs []any, allowed ...JobStatus) (*Job, error) {
	var updated *Job
	err := s.pool.Transaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var current string
		if err := tx.QueryRowContext(ctx, "SELECT status FROM jobs WHERE id = ?", id).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return services.Wrap(services.ErrNotFound, "", "", fmt.Sprintf("job %s", id), nil)
			}
			return err
		}
		permitted := false
		for _, status := range allowed {
			if JobStatus(current) == status {
				permitted = true
				break
			}
		}
		if !permitted {
			return services.Wrap(services.ErrConflict, "", "",
				fmt.Sprintf("job %s is %s, want %s", id, current, joinJobStatuses(allowed)), nil)
		}

		args := append(append([]any{}, assignArgs...), id)
		if _, err := tx.ExecContext(ctx, "UPDATE jobs SET "+assignments+" WHERE id = ?", args...); err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
		job, scanErr := scanJob(row)
		if scanErr != nil {
			return scanErr
		}
		updated = job
		return nil
	})
	if err != nil {
		if services.Marker(err) != nil {
			return nil, err
		}
		return nil, fmt.Errorf("update job %s: %w", id, err)
	}
	return updated, nil
}

func joinJobStatuses(statuses []JobStatus) string {
	parts := make([]string, len(statuses))
	for i, status := range statuses {
		parts[i] = string(status)
	}
	return strings.Join(parts, " or ")
}

// MarkRunning transitions a queued job to running.
func (s *Store) MarkRunning(ctx context.Context, id string) (*Job, error) {
	now := formatTime(time.Now())
	return s.transitionJob(ctx, id,
		"status = ?, started_at = ?, heartbeat_at = ?",
		[]any{string(JobRunning), now, now},
		JobQueued)
}

// SetProgress updates the completion percentage of a running job. The
// value is clamped to the 0..100 range.
func (s *Store) SetProgress(ctx context.Context, id string, percent float64) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	_, err := s.transitionJob(ctx, id, "progress_percent = ?", []any{percent}, JobRunning)
	return err
}

// Heartbeat refreshes the liveness timestamp of a running job. Jobs in
// any other status are left untouched.
func (s *Store) Heartbeat(ctx context.Context, id string) error {
	err := s.pool.ExecuteWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		_, execErr := db.ExecContext(ctx,
			"UPDATE jobs SET heartbeat_at = ? WHERE id = ? AND status = ?",
			formatTime(time.Now()), id, string(JobRunning))
		return execErr
	})
	if err != nil {
		return fmt.Errorf("heartbeat job %s: %w", id, err)
	}
	return nil
}

// Complete marks a running job successful.
func (s *Store) Complete(ctx context.Context, id string) (*Job, error) {
	now := formatTime(time.Now())
	return s.transitionJob(ctx, id,
		"status = ?, completed_at = ?, progress_percent = 100, error_message = NULL",
		[]any{string(JobCompleted), now},
		JobRunning)
}

// Fail marks a running job failed with an error message.
func (s *Store) Fail(ctx context.Context, id, message string) (*Job, error) {
	now := formatTime(time.Now())
	return s.transitionJob(ctx, id,
		"status = ?, completed_at = ?, error_message = ?",
		[]any{string(JobFailed), now, nullableString(message)},
		JobRunning)
}

// Cancel cancels a queued job. Running jobs are never interrupted and
// terminal jobs stay as they are.
func (s *Store) Cancel(ctx context.Context, id string) (*Job, error) {
	now := formatTime(time.Now())
	return s.transitionJob(ctx, id,
		"status = ?, completed_at = ?",
		[]any{string(JobCancelled), now},
		JobQueued)
}

// Requeue returns a failed or cancelled job to the queue with its
// progress and error state reset.
func (s *Store) Requeue(ctx context.Context, id string) (*Job, error) {
	return s.transitionJob(ctx, id,
		"status = ?, progress_percent = 0, error_message = NULL, started_at = NULL, completed_at = NULL, heartbeat_at = NULL",
		[]any{string(JobQueued)},
		JobFailed, JobCancelled)
}

// RecoverStale requeues running jobs whose heartbeat is absent or older
// than the cutoff, returning how many were recovered.
func (s *Store) RecoverStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))
	var recovered int64
	err := s.pool.ExecuteWrite(ctx, func(ctx context.Context, db *sql.DB) error {
		res, execErr := db.ExecContext(ctx,
			"UPDATE jobs SET status = ?, progress_percent = 0, started_at = NULL, heartbeat_at = NULL WHERE status = ? AND (heartbeat_at IS NULL OR heartbeat_at < ?)",
			string(JobQueued), string(JobRunning), cutoff)
		if execErr != nil {
			return execErr
		}
		recovered, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	return int(recovered), nil
}

// JobStats aggregates job counts per status.
func (s *Store) JobStats(ctx context.Context) (*JobStats, error) {
	stats := &JobStats{ByStatus: make(map[JobStatus]int)}
	err := s.pool.ExecuteRead(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, queryErr := db.QueryContext(ctx, "SELECT status, COUNT(1) FROM jobs GROUP BY status")
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()
		for rows.Next() {
			var status string
			var count int
			if scanErr := rows.Scan(&status, &count); scanErr != nil {
				return scanErr
			}
			stats.ByStatus[JobStatus(status)] = count
			stats.Total += count
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return stats, nil
}
