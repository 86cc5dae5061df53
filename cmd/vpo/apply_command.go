package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"vpo/internal/batch"
	"vpo/internal/config"
	"vpo/internal/policy"
	"vpo/internal/preflight"
	"vpo/internal/services"
	"vpo/internal/store"
)

func newApplyCommand(ctx *commandContext) *cobra.Command {
	var (
		policyPath string
		workers    int
		phases     []string
		onError    string
		dryRun     bool
		recursive  bool
	)

	cmd := &cobra.Command{
		Use:   "apply [target...]",
		Short: "Evaluate the policy against library files and store plans",
		Long: `Apply evaluates the policy against every target file and stores one
pending plan per file that needs changes. Targets are files or
directories; with no targets the configured library directories are
scanned. Only files with a recognized video extension count.

Files without a stored scan are skipped; import scans first with
"vpo db import". Plans never touch media files, review them with
"vpo plans".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			model, err := loadPolicy(cfg, policyPath)
			if err != nil {
				return exitWith(exitCodePolicyInvalid, err)
			}

			targets, err := discoverTargets(cfg, args, recursive)
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				return exitWith(exitCodeNoTargets, errors.New("no target files found"))
			}

			if failed := preflight.Failures(preflight.RunAll(cfg)); len(failed) > 0 {
				details := make([]string, 0, len(failed))
				for _, f := range failed {
					details = append(details, fmt.Sprintf("%s: %s", f.Name, f.Detail))
				}
				return fmt.Errorf("preflight failed: %s", strings.Join(details, "; "))
			}

			// One apply run at a time per database. The lock lives beside
			// the database file so separate databases never contend.
			lock := flock.New(cfg.Paths.DBPath + ".lock")
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire apply lock: %w", err)
			}
			if !locked {
				return errors.New("another apply run holds the lock; wait for it to finish")
			}
			defer lock.Unlock()

			log := ctx.logger()
			st, err := store.Open(cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			tracker := batch.NewProgressTracker(len(targets))
			stopProgress := startProgressDisplay(cmd.OutOrStdout(), tracker, ctx.jsonOutput())

			res, err := batch.New(cfg, st, nil, log).Run(cmd.Context(), targets, batch.Options{
				Model:   model,
				Phases:  phases,
				Workers: workers,
				OnError: onError,
				DryRun:  dryRun,
				Tracker: tracker,
			})
			stopProgress()
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				if err := writeJSON(cmd, res); err != nil {
					return err
				}
			} else {
				printBatchResult(cmd.OutOrStdout(), res, dryRun)
			}

			switch {
			case res.StoppedEarly:
				return exitWith(exitCodeStoppedEarly, services.Wrap(services.ErrBatchAbort, "", "",
					fmt.Sprintf("stopped after %d failed of %d files", res.Failed, res.Total), nil))
			case res.Failed > 0:
				return exitWith(exitCodeFilesFailed, nil)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&policyPath, "policy", "p", "", "Policy file (defaults to paths.policy_path)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Worker count (defaults to processing.workers, capped at half the CPUs)")
	cmd.Flags().StringSliceVar(&phases, "phases", nil, "Run only the named policy phases")
	cmd.Flags().StringVar(&onError, "on-error", "", "Batch error mode: fail or skip")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Evaluate without storing plans")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Walk target directories recursively")
	return cmd
}

func loadPolicy(cfg *config.Config, override string) (*policy.Model, error) {
	path := strings.TrimSpace(override)
	if path == "" {
		path = cfg.Paths.PolicyPath
	}
	if path == "" {
		return nil, errors.New("no policy file configured; pass --policy or set paths.policy_path")
	}
	return policy.Load(path)
}

// discoverTargets expands the argument list into concrete video files.
// Explicit file arguments are taken as-is; directories contribute the
// video files directly inside them, or the whole subtree with recurse.
// Order follows the arguments, so batch output is stable across runs.
func discoverTargets(cfg *config.Config, args []string, recurse bool) ([]string, error) {
	roots := args
	if len(roots) == 0 {
		roots = cfg.Paths.LibraryDirs
	}

	seen := make(map[string]struct{})
	var targets []string
	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		targets = append(targets, path)
	}

	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		resolved, err := config.ExpandPath(root)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(resolved)
		if err != nil {
			return nil, fmt.Errorf("inspect target %q: %w", root, err)
		}
		if !info.IsDir() {
			add(resolved)
			continue
		}
		files, err := collectVideos(cfg, resolved, recurse)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			add(file)
		}
	}
	return targets, nil
}

func collectVideos(cfg *config.Config, dir string, recurse bool) ([]string, error) {
	var files []string
	if recurse {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if cfg.HasVideoExtension(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %q: %w", dir, err)
		}
		return files, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %q: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if cfg.HasVideoExtension(path) {
			files = append(files, path)
		}
	}
	return files, nil
}

// startProgressDisplay repaints a counter line while the batch runs.
// JSON mode and redirected output stay quiet.
func startProgressDisplay(out io.Writer, tracker *batch.ProgressTracker, jsonOut bool) func() {
	if jsonOut || !isTerminal(out) {
		return func() {}
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				snap := tracker.Snapshot()
				fmt.Fprintf(out, "\rProcessed %d/%d files%s\n", snap.Completed, snap.Total, strings.Repeat(" ", 12))
				return
			case <-ticker.C:
				snap := tracker.Snapshot()
				fmt.Fprintf(out, "\r%d/%d files done, %d active ", snap.Completed, snap.Total, snap.Active)
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

func printBatchResult(out io.Writer, res *batch.Result, dryRun bool) {
	rows := make([][]string, 0, len(res.Files))
	for _, file := range res.Files {
		detail := file.Summary
		if file.Error != "" {
			detail = file.Error
		}
		rows = append(rows, []string{
			file.Path,
			string(file.Status),
			fmt.Sprintf("%d", file.Actions),
			truncate(detail, 60),
		})
	}
	renderTable(out, []string{"File", "Status", "Actions", "Detail"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft})

	fmt.Fprintf(out, "Batch %s: %d files, %d planned, %d compliant, %d skipped, %d failed, %d cancelled in %s\n",
		res.BatchID, res.Total, res.Planned, res.Compliant, res.Skipped, res.Failed, res.Cancelled,
		res.Duration.Round(time.Millisecond))
	if dryRun {
		fmt.Fprintln(out, "Dry run: no plans were stored")
	}
	if res.StoppedEarly {
		fmt.Fprintln(out, "Stopped early after the first failure (on_error=fail)")
	}
}
