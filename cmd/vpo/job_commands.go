package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"vpo/internal/store"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"job"},
		Short:   "Inspect and manage batch jobs",
	}

	jobCmd.AddCommand(newJobListCommand(ctx))
	jobCmd.AddCommand(newJobStatsCommand(ctx))
	jobCmd.AddCommand(newJobCancelCommand(ctx))
	jobCmd.AddCommand(newJobRequeueCommand(ctx))
	jobCmd.AddCommand(newJobRecoverCommand(ctx))

	return jobCmd
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses []string
		types    []string
		batchID  string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.JobFilter{BatchID: batchID, Limit: limit}
			for _, raw := range statuses {
				status, ok := store.ParseJobStatus(raw)
				if !ok {
					return fmt.Errorf("unknown job status %q", raw)
				}
				filter.Statuses = append(filter.Statuses, status)
			}
			for _, raw := range types {
				jobType, ok := store.ParseJobType(raw)
				if !ok {
					return fmt.Errorf("unknown job type %q", raw)
				}
				filter.Types = append(filter.Types, jobType)
			}
			return ctx.withStore(func(st *store.Store) error {
				jobs, err := st.ListJobs(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, jobs)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.ID,
						string(job.Type),
						string(job.Status),
						fmt.Sprintf("%.0f%%", job.ProgressPercent),
						job.FilePath,
						formatTimestamp(job.CreatedAt),
					})
				}
				renderTable(cmd.OutOrStdout(),
					[]string{"ID", "Type", "Status", "Progress", "File", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft})
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().StringSliceVarP(&types, "type", "t", nil, "Filter by job type (repeatable)")
	cmd.Flags().StringVar(&batchID, "batch", "", "Filter by batch id")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of jobs to list")
	return cmd
}

func newJobStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show job counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				stats, err := st.JobStats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}
				if stats.Total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded")
					return nil
				}
				rows := make([][]string, 0, len(store.AllJobStatuses())+1)
				for _, status := range store.AllJobStatuses() {
					if count := stats.ByStatus[status]; count > 0 {
						rows = append(rows, []string{string(status), fmt.Sprintf("%d", count)})
					}
				}
				rows = append(rows, []string{"total", fmt.Sprintf("%d", stats.Total)})
				renderTable(cmd.OutOrStdout(), []string{"Status", "Count"}, rows,
					[]columnAlignment{alignLeft, alignRight})
				return nil
			})
		},
	}
}

func newJobCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a queued job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				job, err := st.Cancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, job)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s cancelled\n", job.ID)
				return nil
			})
		},
	}
}

func newJobRequeueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <job-id>",
		Short: "Return a failed or cancelled job to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				job, err := st.Requeue(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, job)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s requeued\n", job.ID)
				return nil
			})
		},
	}
}

func newJobRecoverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Requeue running jobs whose heartbeat went stale",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			olderThan := time.Duration(cfg.Processing.HeartbeatTimeout) * time.Second
			return ctx.withStore(func(st *store.Store) error {
				recovered, err := st.RecoverStale(cmd.Context(), olderThan)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]int{"recovered": recovered})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d stale jobs\n", recovered)
				return nil
			})
		},
	}
}
