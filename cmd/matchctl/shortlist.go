package main

import (
	"github.com/spf13/cobra"
)

func newShortlistCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shortlist",
		Short: "Generate or show job shortlists",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "generate <jobId>",
		Short: "Rebuild and persist the shortlist of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, open, func(c *components) error {
				res, err := c.shortlists.Generate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <jobId>",
		Short: "Print the persisted shortlist of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd, open, func(c *components) error {
				res, err := c.shortlists.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	})

	return cmd
}
