package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kart-io/errmonitor/pkg/event"
	"github.com/kart-io/errmonitor/pkg/receipt"
)

type sendOptions struct {
	level      string
	loggerName string
	message    string
	cause      string
	properties map[string]string
	timeout    time.Duration
}

func newSendCommand(a *app) *cobra.Command {
	o := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Dispatch a synthetic event to every eligible destination",
		Example: `  errmonitor send --level ERROR --logger com.acme.Billing --message "charge failed"
  errmonitor send --message "disk full" --error "no space left" --property host=db-1`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSend(cmd, o)
		},
	}
	cmd.Flags().StringVar(&o.level, "level", "ERROR", "event level: TRACE, DEBUG, INFO, WARN, ERROR")
	cmd.Flags().StringVar(&o.loggerName, "logger", "errmonitor.cli", "originating logger or component name")
	cmd.Flags().StringVar(&o.message, "message", "", "event message")
	cmd.Flags().StringVar(&o.cause, "error", "", "error detail rendered as the stack trace")
	cmd.Flags().StringToStringVar(&o.properties, "property", nil, "context property key=value (repeatable)")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 30*time.Second, "overall dispatch timeout")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func (a *app) runSend(cmd *cobra.Command, o *sendOptions) error {
	ctx, cancel := timeoutContext(cmd, o.timeout)
	defer cancel()

	p, err := newPipeline(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer p.close(ctx)

	f := event.Fields{
		Level:      o.level,
		Message:    o.message,
		LoggerName: o.loggerName,
		Thread:     "cli",
		Properties: o.properties,
	}
	if o.cause != "" {
		f.Cause = errors.New(o.cause)
	}
	ev := event.New(f)

	report, err := p.appender.Process(ctx, ev, a.cfg.Destinations).Wait(ctx)
	if err != nil {
		return err
	}
	printReport(cmd, report)
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d deliveries failed", report.Failed, len(report.Outcomes))
	}
	return nil
}

func printReport(cmd *cobra.Command, report *receipt.Report) {
	out := cmd.OutOrStdout()
	if report.IsEmpty() {
		fmt.Fprintln(out, "no eligible destinations")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DESTINATION\tGATEWAY\tRESULT\tSTATUS\tDURATION\tERROR")
	for _, o := range report.Outcomes {
		result := "ok"
		if !o.Succeeded {
			result = "failed"
		}
		status := "-"
		if o.HasStatusCode() {
			status = fmt.Sprint(o.StatusCode)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.Destination, o.Gateway, result, status, o.Duration.Round(time.Millisecond), o.Error)
	}
	_ = w.Flush()
	fmt.Fprintf(out, "%s: %d succeeded, %d failed\n", report.Status, report.Successful, report.Failed)
}
