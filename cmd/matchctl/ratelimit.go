package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/onnwee/freelamatch/internal/ratelimit"
)

// checkOutput is printed by ratelimit check.
type checkOutput struct {
	Key        string `json:"key"`
	Allowed    bool   `json:"allowed"`
	Remaining  int    `json:"remaining"`
	FailedOpen bool   `json:"failedOpen,omitempty"`
}

func newRateLimitCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ratelimit",
		Short: "Inspect token-bucket quotas",
	}

	var (
		maxTokens int
		interval  time.Duration
		refill    int
	)
	check := &cobra.Command{
		Use:   "check <key>",
		Short: "Consume one token from key under the given policy",
		Long: "Consume one token from key under the given policy and print the outcome.\n" +
			"The check is a real consumption against the configured counter store.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := ratelimit.Policy{
				Name:           "cli",
				MaxTokens:      maxTokens,
				RefillInterval: interval,
				RefillAmount:   refill,
			}
			if policy.RefillAmount == 0 {
				policy.RefillAmount = policy.MaxTokens
			}
			if err := policy.Validate(); err != nil {
				return err
			}

			return withComponents(cmd, open, func(c *components) error {
				res := ratelimit.NewLimiter(c.counters).Check(cmd.Context(), args[0], policy)
				return printJSON(cmd.OutOrStdout(), checkOutput{
					Key:        args[0],
					Allowed:    !res.Limited,
					Remaining:  res.Remaining,
					FailedOpen: res.FailedOpen,
				})
			})
		},
	}
	check.Flags().IntVar(&maxTokens, "max", 0, "bucket capacity")
	check.Flags().DurationVar(&interval, "interval", time.Minute, "refill interval")
	check.Flags().IntVar(&refill, "refill", 0, "tokens added per interval (default: --max)")
	_ = check.MarkFlagRequired("max")

	cmd.AddCommand(check)
	return cmd
}
