package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"jobq/internal/config"
)

func Run() {
	var command = &cobra.Command{
		Use:   "jobq",
		Short: "In-process job queue with priorities, retries and alerts",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(config.Load().Log)
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	command.AddCommand(workerCmd())
	command.AddCommand(enqueueCmd())
	command.AddCommand(statsCmd())
	command.AddCommand(alertsCmd())

	if err := command.Execute(); err != nil {
		log.Fatal().Msgf("failed to execute command, err: %v", err.Error())
	}
}

func setupLogging(c config.Log) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if c.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
