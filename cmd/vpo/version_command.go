package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]string{"version": version, "commit": commit})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "vpo %s (%s)\n", version, commit)
			return nil
		},
	}
}
