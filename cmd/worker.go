package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"jobq/internal/worker"
)

func workerCmd() *cobra.Command {
	var (
		port            int
		workers         int
		promoteInterval time.Duration
		alertInterval   time.Duration
	)

	var command = &cobra.Command{
		Use:   "worker",
		Short: "Run the queue, its demo processors and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return worker.Run(worker.Config{
				Port:            port,
				Workers:         workers,
				PromoteInterval: promoteInterval,
				AlertInterval:   alertInterval,
			})
		},
	}

	command.Flags().IntVarP(&port, "port", "p", 0, "Port to run the API on (default HTTP_PORT)")
	command.Flags().IntVar(&workers, "workers", 0, "Concurrent jobs (default JOBQ_WORKERS)")
	command.Flags().DurationVar(&promoteInterval, "promote-interval", 0, "Delayed job promotion tick (default JOBQ_PROMOTE_INTERVAL)")
	command.Flags().DurationVar(&alertInterval, "alert-interval", 30*time.Second, "How often alerts are checked and logged, 0 disables")

	return command
}
