package store

import (
	"strings"
	"time"

	"vpo/internal/policy/evaluate"
)

// JobType identifies the kind of work a job row represents.
type JobType string

const (
	JobScan      JobType = "scan"
	JobApply     JobType = "apply"
	JobTranscode JobType = "transcode"
	JobMove      JobType = "move"
)

var allJobTypes = []JobType{JobScan, JobApply, JobTranscode, JobMove}

var jobTypeSet = func() map[JobType]struct{} {
	set := make(map[JobType]struct{}, len(allJobTypes))
	for _, t := range allJobTypes {
		set[t] = struct{}{}
	}
	return set
}()

// ParseJobType converts a string into a known JobType.
func ParseJobType(value string) (JobType, bool) {
	normalized := JobType(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := jobTypeSet[normalized]
	return normalized, ok
}

// JobStatus represents the lifecycle of a job. Queued jobs move to
// running when claimed, then to exactly one terminal status. Cancel only
// applies to queued jobs; requeue only to failed or cancelled ones.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

var allJobStatuses = []JobStatus{JobQueued, JobRunning, JobCompleted, JobFailed, JobCancelled}

var jobStatusSet = func() map[JobStatus]struct{} {
	set := make(map[JobStatus]struct{}, len(allJobStatuses))
	for _, status := range allJobStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllJobStatuses returns the ordered list of known statuses.
func AllJobStatuses() []JobStatus {
	cp := make([]JobStatus, len(allJobStatuses))
	copy(cp, allJobStatuses)
	return cp
}

// ParseJobStatus converts a string into a known JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := jobStatusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether the status admits no further transitions
// except an explicit requeue.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// Job is one unit of tracked work persisted in SQLite.
type Job struct {
	ID              string     `json:"id"`
	Type            JobType    `json:"type"`
	Status          JobStatus  `json:"status"`
	FilePath        string     `json:"file_path"`
	PolicyName      string     `json:"policy_name,omitempty"`
	BatchID         string     `json:"batch_id,omitempty"`
	ProgressPercent float64    `json:"progress_percent"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	HeartbeatAt     *time.Time `json:"heartbeat_at,omitempty"`
}

// JobStats aggregates job counts per status.
type JobStats struct {
	Total    int               `json:"total"`
	ByStatus map[JobStatus]int `json:"by_status"`
}

// PlanStatus represents the review lifecycle of a stored plan. Pending
// plans await review; approved plans may be applied once.
type PlanStatus string

const (
	PlanPending  PlanStatus = "pending"
	PlanApproved PlanStatus = "approved"
	PlanRejected PlanStatus = "rejected"
	PlanApplied  PlanStatus = "applied"
)

var allPlanStatuses = []PlanStatus{PlanPending, PlanApproved, PlanRejected, PlanApplied}

var planStatusSet = func() map[PlanStatus]struct{} {
	set := make(map[PlanStatus]struct{}, len(allPlanStatuses))
	for _, status := range allPlanStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParsePlanStatus converts a string into a known PlanStatus.
func ParsePlanStatus(value string) (PlanStatus, bool) {
	normalized := PlanStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := planStatusSet[normalized]
	return normalized, ok
}

// Plan is a stored evaluation result awaiting review or application.
// SnapshotHash fingerprints the file state the plan was computed from;
// applying checks it against the current scan to reject stale plans.
type Plan struct {
	ID            string            `json:"id"`
	FilePath      string            `json:"file_path"`
	PolicyName    string            `json:"policy_name"`
	PolicyVersion int               `json:"policy_version"`
	Status        PlanStatus        `json:"status"`
	RequiresRemux bool              `json:"requires_remux"`
	SnapshotHash  string            `json:"snapshot_hash"`
	Summary       string            `json:"summary"`
	Actions       []evaluate.Action `json:"actions"`
	Warnings      []string          `json:"warnings,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	ReviewedAt    *time.Time        `json:"reviewed_at,omitempty"`
}

// DatabaseStats summarizes row counts for diagnostics.
type DatabaseStats struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Files     int    `json:"files"`
	Tracks    int    `json:"tracks"`
	Jobs      int    `json:"jobs"`
	Plans     int    `json:"plans"`
}
