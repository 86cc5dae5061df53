package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"vpo/internal/store"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database utilities",
	}

	dbCmd.AddCommand(newDBImportCommand(ctx))
	dbCmd.AddCommand(newDBAnalysisCommand(ctx))
	dbCmd.AddCommand(newDBPathCommand(ctx))
	dbCmd.AddCommand(newDBStatsCommand(ctx))

	return dbCmd
}

func newDBImportCommand(ctx *commandContext) *cobra.Command {
	var pathOverride string

	cmd := &cobra.Command{
		Use:   "import <scan.json>...",
		Short: "Import ffprobe-style scan reports into the database",
		Long: `Import reads one scan report per argument and stores the resulting
snapshot. Pass "-" to read a single report from stdin. The report's
format.filename names the media file; --path overrides it when the
report was captured on another machine.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pathOverride != "" && len(args) != 1 {
				return errors.New("--path only applies to a single report")
			}
			type imported struct {
				Path      string `json:"path"`
				Container string `json:"container"`
				Tracks    int    `json:"tracks"`
			}
			var results []imported
			err := ctx.withStore(func(st *store.Store) error {
				for _, arg := range args {
					var data []byte
					var err error
					if arg == "-" {
						data, err = io.ReadAll(cmd.InOrStdin())
						if err != nil {
							return fmt.Errorf("read stdin: %w", err)
						}
					} else {
						data, err = os.ReadFile(arg)
						if err != nil {
							return fmt.Errorf("read report: %w", err)
						}
					}
					snap, err := st.ImportReport(cmd.Context(), data, pathOverride)
					if err != nil {
						return fmt.Errorf("import %s: %w", arg, err)
					}
					results = append(results, imported{
						Path:      snap.Path,
						Container: snap.Container,
						Tracks:    len(snap.Tracks),
					})
				}
				return nil
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, results)
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%s, %d tracks)\n", r.Path, r.Container, r.Tracks)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pathOverride, "path", "", "Record the snapshot under this path instead of the report's filename")
	return cmd
}

func newDBAnalysisCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analysis <results.json>...",
		Short: "Import transcription analysis results for stored tracks",
		Long: `Analysis applies a transcription results manifest to stored tracks.
Each entry names a file and track index and carries either the tool's
findings or its failure reason. Failed and unknown entries are reported
without blocking the rest. Pass "-" to read from stdin.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var imports []store.AnalysisImport
			err := ctx.withStore(func(st *store.Store) error {
				for _, arg := range args {
					var data []byte
					var err error
					if arg == "-" {
						data, err = io.ReadAll(cmd.InOrStdin())
						if err != nil {
							return fmt.Errorf("read stdin: %w", err)
						}
					} else {
						data, err = os.ReadFile(arg)
						if err != nil {
							return fmt.Errorf("read results: %w", err)
						}
					}
					entries, err := st.ImportAnalysis(cmd.Context(), data)
					if err != nil {
						return fmt.Errorf("import %s: %w", arg, err)
					}
					imports = append(imports, entries...)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, imports)
			}
			applied := 0
			for _, entry := range imports {
				if entry.Applied {
					applied++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Skipped %s track #%d: %s\n", entry.File, entry.Track, entry.Detail)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d of %d analysis entries\n", applied, len(imports))
			return nil
		},
	}
	return cmd
}

func newDBPathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the database path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]string{"path": cfg.Paths.DBPath})
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.Paths.DBPath)
			return nil
		},
	}
}

func newDBStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database row counts and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}
				rows := [][]string{
					{"Files", fmt.Sprintf("%d", stats.Files)},
					{"Tracks", fmt.Sprintf("%d", stats.Tracks)},
					{"Jobs", fmt.Sprintf("%d", stats.Jobs)},
					{"Plans", fmt.Sprintf("%d", stats.Plans)},
					{"Size", fmt.Sprintf("%d bytes", stats.SizeBytes)},
				}
				renderTable(cmd.OutOrStdout(), []string{"Metric", "Value"}, rows,
					[]columnAlignment{alignLeft, alignRight})
				return nil
			})
		},
	}
}
