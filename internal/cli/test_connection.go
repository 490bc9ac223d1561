package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kart-io/errmonitor/pkg/health"
)

func newTestConnectionCommand(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "test-connection",
		Short: "Post a health check message to every enabled destination",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := timeoutContext(cmd, timeout)
			defer cancel()

			p, err := newPipeline(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer p.close(ctx)

			status := health.NewChecker(p.registry, a.cfg.Destinations, a.logger).Check(ctx)
			printStatus(cmd, status)
			if !status.Healthy {
				return errors.New("one or more destinations are unreachable")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall check timeout")
	return cmd
}

func printStatus(cmd *cobra.Command, status health.Status) {
	out := cmd.OutOrStdout()
	if len(status.Checks) == 0 {
		fmt.Fprintln(out, "no enabled destinations")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DESTINATION\tGATEWAY\tENDPOINT\tHEALTHY\tDURATION")
	for _, c := range status.Checks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", c.Destination, c.Gateway, c.Endpoint, c.Healthy, c.Duration.Round(time.Millisecond))
	}
	_ = w.Flush()
}

func timeoutContext(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
