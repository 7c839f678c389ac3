package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List open save sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sessions, err := newDaemonClient(cfg).sessions()
			if err != nil {
				return err
			}

			if ctx.jsonOutput {
				return writeJSON(cmd, sessions)
			}

			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No open sessions")
				return nil
			}

			rows := make([][]string, 0, len(sessions))
			for _, sess := range sessions {
				target := "L" + strconv.FormatInt(sess.LibraryID, 10)
				if sess.CollectionID != nil {
					target = "C" + strconv.FormatInt(*sess.CollectionID, 10)
				}
				rows = append(rows, []string{
					sess.ID,
					target,
					strconv.Itoa(len(sess.ItemIDs)),
					sess.LastUsed,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Session", "Target", "Items", "Last Used"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}
