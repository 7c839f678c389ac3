package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and library status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status, err := newDaemonClient(cfg).status()
			if err != nil {
				return err
			}

			if ctx.jsonOutput {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			running := "stopped"
			if status.Running {
				running = "running"
			}
			if isTerminal(out) {
				if status.Running {
					running = ansiGreen + running + ansiReset
				} else {
					running = ansiRed + running + ansiReset
				}
			}
			rows := [][]string{
				{"Daemon", running},
				{"Address", status.Address},
				{"Database", status.DatabasePath},
				{"Open sessions", strconv.Itoa(status.Sessions)},
				{"Libraries", strconv.Itoa(status.Libraries)},
				{"Collections", strconv.Itoa(status.Collections)},
				{"Items", strconv.Itoa(status.Items)},
				{"Attachments", strconv.Itoa(status.Attachments)},
				{"Pending attachments", strconv.Itoa(status.PendingAttachments)},
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Field", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}
