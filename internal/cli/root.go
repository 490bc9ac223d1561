// Package cli implements the errmonitor command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kart-io/errmonitor/pkg/config"
	"github.com/kart-io/errmonitor/pkg/logger"
)

// Version is set at build time with -ldflags "-X github.com/kart-io/errmonitor/internal/cli.Version=..."
var Version = "dev"

type app struct {
	cfgFile  string
	logLevel string

	cfg    *config.Config
	logger logger.Logger
	logOut io.Writer
}

// NewRootCommand builds the errmonitor command tree
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "errmonitor",
		Short: "Error notification dispatcher",
		Long: `errmonitor forwards captured errors and log events to chat and webhook
destinations, with per-destination level filtering and load shedding.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (YAML); ERRMONITOR_* environment variables override it")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: silent, error, warn, info, debug")

	root.AddCommand(
		newSendCommand(a),
		newTestConnectionCommand(a),
		newServeCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (a *app) load(cmd *cobra.Command) error {
	if cmd.Name() == "version" {
		return nil
	}
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logger.Level = a.logLevel
	}
	a.cfg = cfg
	a.logger = newLogger(cfg.Logger, a.logOut)
	cfg.LoggerInstance = a.logger
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "errmonitor %s\n", Version)
		},
	}
}
