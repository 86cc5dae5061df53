package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vpo/internal/config"
	"vpo/internal/logging"
	"vpo/internal/media"
	"vpo/internal/phase"
	"vpo/internal/policy"
	"vpo/internal/services"
	"vpo/internal/store"
)

// OnError names the batch-level error modes.
const (
	OnErrorFail = "fail"
	OnErrorSkip = "skip"
)

// FileStatus classifies the terminal outcome of one file in a batch.
type FileStatus string

const (
	FilePlanned   FileStatus = "planned"
	FileCompliant FileStatus = "compliant"
	FileSkipped   FileStatus = "skipped"
	FileFailed    FileStatus = "failed"
	FileCancelled FileStatus = "cancelled"
)

// FileOutcome records what happened to a single file.
type FileOutcome struct {
	Path    string     `json:"path"`
	Status  FileStatus `json:"status"`
	JobID   string     `json:"job_id,omitempty"`
	PlanID  string     `json:"plan_id,omitempty"`
	Summary string     `json:"summary,omitempty"`
	Actions int        `json:"actions,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// Result aggregates a batch run. Files holds per-file outcomes in
// submission order regardless of completion order.
type Result struct {
	BatchID         string        `json:"batch_id"`
	Policy          string        `json:"policy"`
	Workers         int           `json:"workers"`
	Total           int           `json:"total"`
	Planned         int           `json:"planned"`
	Compliant       int           `json:"compliant"`
	Skipped         int           `json:"skipped"`
	Failed          int           `json:"failed"`
	Cancelled       int           `json:"cancelled"`
	StoppedEarly    bool          `json:"stopped_early"`
	DurationSeconds float64       `json:"duration_seconds"`
	Duration        time.Duration `json:"-"`
	Files           []FileOutcome `json:"files"`
}

// Succeeded counts files that reached a useful terminal state.
func (r *Result) Succeeded() int {
	return r.Planned + r.Compliant
}

// Options configure one batch run.
type Options struct {
	Model   *policy.Model
	Phases  []string
	Workers int
	OnError string
	DryRun  bool
	// Tracker receives progress updates when set; Run creates a private
	// tracker otherwise. The CLI passes one to poll while Run blocks.
	Tracker *ProgressTracker
}

// Coordinator fans target files out over a bounded worker pool, one plan
// generation per file. Workers share the store's connection pool and the
// progress tracker; everything else is per-file state.
type Coordinator struct {
	cfg     *config.Config
	store   *store.Store
	scanner media.Scanner
	exec    *phase.Executor
	log     *slog.Logger
}

// New builds a coordinator. A nil scanner reads snapshots from the store.
func New(cfg *config.Config, st *store.Store, scanner media.Scanner, log *slog.Logger) *Coordinator {
	if log == nil {
		log = logging.NewNop()
	}
	if scanner == nil {
		scanner = st.Scanner()
	}
	return &Coordinator{
		cfg:     cfg,
		store:   st,
		scanner: scanner,
		exec:    phase.NewExecutor(log),
		log:     log,
	}
}

// Run evaluates every file against the policy and returns the aggregated
// result. Per-file failures are recorded in the result, never returned as
// an error; the error return covers setup problems only.
func (c *Coordinator) Run(ctx context.Context, files []string, opts Options) (*Result, error) {
	if opts.Model == nil {
		return nil, services.Wrap(services.ErrValidation, "", "", "batch needs a validated policy", nil)
	}
	if len(files) == 0 {
		return nil, services.Wrap(services.ErrValidation, "", "", "batch has no target files", nil)
	}
	onError, err := c.resolveOnError(opts.OnError)
	if err != nil {
		return nil, err
	}
	workers := ResolveWorkerCount(opts.Workers, c.cfg.Processing.Workers, runtime.NumCPU(), c.log)

	batchID := uuid.NewString()
	log := c.log.With(logging.String("batch_id", batchID), logging.String("policy", opts.Model.Name))
	log.Info("batch started",
		logging.Int("files", len(files)),
		logging.Int("workers", workers),
		logging.String("on_error", onError),
		logging.Bool("dry_run", opts.DryRun))

	// Job rows exist before any work starts so a fail-fast stop can
	// cancel the ones that never run.
	jobs := make([]*store.Job, len(files))
	for i, file := range files {
		job, enqueueErr := c.store.Enqueue(ctx, store.JobApply, file, opts.Model.Name, batchID)
		if enqueueErr != nil {
			return nil, fmt.Errorf("enqueue %s: %w", file, enqueueErr)
		}
		jobs[i] = job
	}

	tracker := opts.Tracker
	if tracker == nil {
		tracker = NewProgressTracker(len(files))
	}

	result := &Result{
		BatchID: batchID,
		Policy:  opts.Model.Name,
		Workers: workers,
		Total:   len(files),
		Files:   make([]FileOutcome, len(files)),
	}

	var (
		stopped atomic.Bool
		wg      sync.WaitGroup
		tasks   = make(chan int)
	)
	failFast := onError == OnErrorFail
	start := time.Now()

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range tasks {
				if stopped.Load() || ctx.Err() != nil {
					result.Files[i] = c.cancelJob(ctx, jobs[i])
					continue
				}
				outcome := c.processFile(ctx, log, jobs[i], opts, tracker)
				result.Files[i] = outcome
				if failFast && outcome.Status == FileFailed {
					stopped.Store(true)
				}
			}
		}()
	}

	for i := range files {
		if stopped.Load() || ctx.Err() != nil {
			result.Files[i] = c.cancelJob(ctx, jobs[i])
			continue
		}
		tasks <- i
	}
	close(tasks)
	wg.Wait()

	for _, outcome := range result.Files {
		switch outcome.Status {
		case FilePlanned:
			result.Planned++
		case FileCompliant:
			result.Compliant++
		case FileSkipped:
			result.Skipped++
		case FileFailed:
			result.Failed++
		case FileCancelled:
			result.Cancelled++
		}
	}
	result.StoppedEarly = failFast && stopped.Load()
	result.Duration = time.Since(start)
	result.DurationSeconds = result.Duration.Seconds()

	log.Info("batch finished",
		logging.Int("planned", result.Planned),
		logging.Int("compliant", result.Compliant),
		logging.Int("skipped", result.Skipped),
		logging.Int("failed", result.Failed),
		logging.Int("cancelled", result.Cancelled),
		logging.Bool("stopped_early", result.StoppedEarly),
		logging.Duration("duration", result.Duration))
	return result, nil
}

func (c *Coordinator) resolveOnError(requested string) (string, error) {
	mode := strings.ToLower(strings.TrimSpace(requested))
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(c.cfg.Processing.OnError))
	}
	if mode == "" {
		mode = OnErrorSkip
	}
	switch mode {
	case OnErrorFail, OnErrorSkip:
		return mode, nil
	default:
		return "", services.Wrap(services.ErrValidation, "", "", fmt.Sprintf("on_error must be fail or skip, got %q", mode), nil)
	}
}

// processFile runs one file end to end: claim the job, load the
// snapshot, evaluate, and store the plan. The returned outcome is
// terminal; bookkeeping failures are logged, never escalated.
func (c *Coordinator) processFile(ctx context.Context, log *slog.Logger, job *store.Job, opts Options, tracker *ProgressTracker) FileOutcome {
	tracker.StartFile()
	defer tracker.CompleteFile()

	ctx = services.WithFile(services.WithJobID(services.WithBatchID(ctx, job.BatchID), job.ID), job.FilePath)
	log = log.With(logging.String("job_id", job.ID), logging.String("file", job.FilePath))
	outcome := FileOutcome{Path: job.FilePath, JobID: job.ID}

	if _, err := c.store.MarkRunning(ctx, job.ID); err != nil {
		outcome.Status = FileFailed
		outcome.Error = err.Error()
		log.Error("job claim failed", logging.Error(err))
		return outcome
	}
	stopHeartbeat := c.startHeartbeat(ctx, job.ID)
	defer stopHeartbeat()

	snap, err := c.scanner.Scan(ctx, job.FilePath)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			outcome.Status = FileSkipped
			outcome.Summary = "not scanned"
			log.Info("skipping file without a stored scan")
			c.finishJob(ctx, log, job.ID, nil)
			return outcome
		}
		outcome.Status = FileFailed
		outcome.Error = err.Error()
		log.Error("scan failed", logging.Error(err))
		c.finishJob(ctx, log, job.ID, err)
		return outcome
	}

	planResult, err := c.exec.Run(opts.Model, opts.Phases, snap)
	if err != nil {
		outcome.Status = FileFailed
		outcome.Error = err.Error()
		log.Error("plan generation failed", logging.Error(err))
		c.finishJob(ctx, log, job.ID, err)
		return outcome
	}

	outcome.Actions = len(planResult.Actions)
	outcome.Summary = planResult.Summary()
	if len(planResult.Actions) == 0 {
		outcome.Status = FileCompliant
		log.Info("file already compliant")
		c.finishJob(ctx, log, job.ID, nil)
		return outcome
	}

	if opts.DryRun {
		outcome.Status = FilePlanned
		log.Info("dry run, plan not stored", logging.Int("actions", len(planResult.Actions)))
		c.finishJob(ctx, log, job.ID, nil)
		return outcome
	}

	plan, err := c.store.SavePlan(ctx, planResult)
	if err != nil {
		outcome.Status = FileFailed
		outcome.Error = err.Error()
		log.Error("plan store failed", logging.Error(err))
		c.finishJob(ctx, log, job.ID, err)
		return outcome
	}
	outcome.Status = FilePlanned
	outcome.PlanID = plan.ID
	log.Info("plan stored",
		logging.String("plan_id", plan.ID),
		logging.Int("actions", len(planResult.Actions)),
		logging.Bool("requires_remux", planResult.RequiresRemux))
	c.finishJob(ctx, log, job.ID, nil)
	return outcome
}

// finishJob closes the job row. Bookkeeping runs even when the batch
// context is already cancelled; a finished file deserves its record.
func (c *Coordinator) finishJob(ctx context.Context, log *slog.Logger, id string, cause error) {
	ctx = context.WithoutCancel(ctx)
	var err error
	if cause != nil {
		_, err = c.store.Fail(ctx, id, cause.Error())
	} else {
		_, err = c.store.Complete(ctx, id)
	}
	if err != nil {
		log.Warn("job bookkeeping failed", logging.Error(err))
	}
}

func (c *Coordinator) cancelJob(ctx context.Context, job *store.Job) FileOutcome {
	outcome := FileOutcome{Path: job.FilePath, JobID: job.ID, Status: FileCancelled}
	if _, err := c.store.Cancel(context.WithoutCancel(ctx), job.ID); err != nil {
		c.log.Warn("cancel bookkeeping failed",
			logging.String("job_id", job.ID),
			logging.Error(err))
	}
	return outcome
}

// startHeartbeat refreshes the job's liveness stamp until the returned
// stop function runs. Evaluation is normally fast; the heartbeat matters
// when a batch waits on slow storage.
func (c *Coordinator) startHeartbeat(ctx context.Context, jobID string) func() {
	interval := time.Duration(c.cfg.Processing.HeartbeatInterval) * time.Second
	if interval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.store.Heartbeat(ctx, jobID); err != nil {
					c.log.Debug("heartbeat failed",
						logging.String("job_id", jobID),
						logging.Error(err))
				}
			}
		}
	}()
	return func() { close(done) }
}
