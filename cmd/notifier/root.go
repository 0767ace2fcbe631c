package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Overland-East-Bay/trip-notifier/internal/platform/config"
	"github.com/Overland-East-Bay/trip-notifier/internal/platform/logging"
)

type runtimeState struct {
	logEnv   string
	logLevel string
	writer   io.Writer
	logger   *zap.Logger
}

// NewRootCommand builds the notifier command tree writing command output to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	rt := &runtimeState{writer: out}

	root := &cobra.Command{
		Use:           "notifier",
		Short:         "Transactional email notifier for the trip-sharing app",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = cmd.OutOrStdout()
			}
			rt.logger = logging.New(logging.Config{
				Env:     rt.logEnv,
				Level:   rt.logLevel,
				Service: "trip-notifier",
			})
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if rt.logger != nil {
				_ = rt.logger.Sync()
			}
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&rt.logEnv, "log-env", config.Getenv("LOG_ENV", "dev"), "Log encoding: dev|prod (env LOG_ENV)")
	root.PersistentFlags().StringVar(&rt.logLevel, "log-level", config.Getenv("LOG_LEVEL", "info"), "Minimum log level (env LOG_LEVEL)")

	root.AddCommand(
		newServeCommand(rt),
		newSendCommand(rt),
		newTokenCommand(rt),
	)
	return root
}
