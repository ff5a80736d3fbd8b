package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueueCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the shortlist request queue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "push <jobId>...",
		Short: "Queue shortlist generation for one or more jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, open, func(c *components) error {
				for _, id := range args {
					if err := c.queue.Enqueue(cmd.Context(), id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "queued %s\n", id)
				}
				return nil
			})
		},
	})

	return cmd
}
