package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"vpo/internal/store"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	planCmd := &cobra.Command{
		Use:     "plans",
		Aliases: []string{"plan"},
		Short:   "Inspect and review stored plans",
	}

	planCmd.AddCommand(newPlanListCommand(ctx))
	planCmd.AddCommand(newPlanShowCommand(ctx))
	planCmd.AddCommand(newPlanApproveCommand(ctx))
	planCmd.AddCommand(newPlanRejectCommand(ctx))

	return planCmd
}

func newPlanListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses   []string
		filePath   string
		policyName string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored plans, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.PlanFilter{FilePath: filePath, Policy: policyName, Limit: limit}
			for _, raw := range statuses {
				status, ok := store.ParsePlanStatus(raw)
				if !ok {
					return fmt.Errorf("unknown plan status %q", raw)
				}
				filter.Statuses = append(filter.Statuses, status)
			}
			return ctx.withStore(func(st *store.Store) error {
				plans, err := st.ListPlans(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, plans)
				}
				if len(plans) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No plans stored")
					return nil
				}
				rows := make([][]string, 0, len(plans))
				for _, plan := range plans {
					rows = append(rows, []string{
						plan.ID,
						string(plan.Status),
						fmt.Sprintf("%d", len(plan.Actions)),
						yesNo(plan.RequiresRemux),
						plan.FilePath,
						formatTimestamp(plan.CreatedAt),
					})
				}
				renderTable(cmd.OutOrStdout(),
					[]string{"ID", "Status", "Actions", "Remux", "File", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft})
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by plan status (repeatable)")
	cmd.Flags().StringVar(&filePath, "file", "", "Filter by file path")
	cmd.Flags().StringVar(&policyName, "policy", "", "Filter by policy name")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of plans to list")
	return cmd
}

func newPlanShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Show one plan with its actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				plan, err := st.GetPlan(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, plan)
				}
				printPlan(cmd.OutOrStdout(), plan)
				return nil
			})
		},
	}
}

func printPlan(out io.Writer, plan *store.Plan) {
	fmt.Fprintf(out, "Plan %s\n", plan.ID)
	fmt.Fprintf(out, "  File:     %s\n", plan.FilePath)
	fmt.Fprintf(out, "  Policy:   %s (schema v%d)\n", plan.PolicyName, plan.PolicyVersion)
	fmt.Fprintf(out, "  Status:   %s\n", plan.Status)
	fmt.Fprintf(out, "  Summary:  %s\n", plan.Summary)
	fmt.Fprintf(out, "  Remux:    %s\n", yesNo(plan.RequiresRemux))
	fmt.Fprintf(out, "  Created:  %s\n", formatTimestamp(plan.CreatedAt))
	if plan.ReviewedAt != nil {
		fmt.Fprintf(out, "  Reviewed: %s\n", formatTimestamp(*plan.ReviewedAt))
	}
	if len(plan.Warnings) > 0 {
		fmt.Fprintln(out, "  Warnings:")
		for _, warning := range plan.Warnings {
			fmt.Fprintf(out, "    - %s\n", warning)
		}
	}
	fmt.Fprintln(out, "  Actions:")
	for _, action := range plan.Actions {
		fmt.Fprintf(out, "    - %s\n", action.Summary())
	}
}

func newPlanApproveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <plan-id>",
		Short: "Approve a pending plan for execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				plan, err := st.ApprovePlan(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, plan)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Plan %s approved\n", plan.ID)
				return nil
			})
		},
	}
}

func newPlanRejectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <plan-id>",
		Short: "Reject a pending plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				plan, err := st.RejectPlan(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, plan)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Plan %s rejected\n", plan.ID)
				return nil
			})
		},
	}
}
