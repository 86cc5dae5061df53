package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vpo/internal/policy"
)

func newPolicyCommand(ctx *commandContext) *cobra.Command {
	policyCmd := &cobra.Command{
		Use:   "policy",
		Short: "Policy file utilities",
	}

	policyCmd.AddCommand(newPolicyValidateCommand(ctx))
	policyCmd.AddCommand(newPolicyShowCommand(ctx))

	return policyCmd
}

func newPolicyValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [policy-file]",
		Short: "Validate a policy file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			override := ""
			if len(args) == 1 {
				override = args[0]
			}
			model, err := loadPolicy(cfg, override)
			if err != nil {
				var verr *policy.ValidationError
				if errors.As(err, &verr) {
					if ctx.jsonOutput() {
						if jsonErr := writeJSON(cmd, map[string]any{
							"valid":      false,
							"violations": verr.Violations,
						}); jsonErr != nil {
							return jsonErr
						}
						return exitWith(exitCodePolicyInvalid, nil)
					}
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Policy is invalid (%d violations):\n", len(verr.Violations))
					for _, violation := range verr.Violations {
						fmt.Fprintf(out, "  %s: %s\n", violation.Field, violation.Message)
					}
					return exitWith(exitCodePolicyInvalid, nil)
				}
				return exitWith(exitCodePolicyInvalid, err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"valid":          true,
					"name":           model.Name,
					"schema_version": model.SchemaVersion,
					"phases":         len(model.Phases),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Policy %q is valid: schema v%d, %d phases\n",
				model.Name, model.SchemaVersion, len(model.Phases))
			return nil
		},
	}
}

func newPolicyShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show [policy-file]",
		Short: "Show the policy's phases and operations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			override := ""
			if len(args) == 1 {
				override = args[0]
			}
			model, err := loadPolicy(cfg, override)
			if err != nil {
				return exitWith(exitCodePolicyInvalid, err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, model)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Policy %q (schema v%d)\n", model.Name, model.SchemaVersion)
			if model.Description != "" {
				fmt.Fprintf(out, "%s\n", model.Description)
			}
			rows := make([][]string, 0, len(model.Phases))
			for _, phase := range model.Phases {
				ops := phase.Operations()
				names := make([]string, len(ops))
				for i, op := range ops {
					names[i] = string(op)
				}
				rows = append(rows, []string{
					phase.Name,
					strings.Join(names, ", "),
					model.PhaseOnError(phase),
				})
			}
			renderTable(out, []string{"Phase", "Operations", "On Error"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft})
			return nil
		},
	}
}
