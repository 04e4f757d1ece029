package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turtacn/dockprep/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/dockprep/pkg/errors"
)

// NewWorkerCmd creates the worker command: consume dock requests from the
// message bus and execute them through the bounded pool until interrupted.
func NewWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run as a docking worker consuming requests from the message bus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if !cliCtx.Config.EventsEnabled {
				return errors.New(errors.CodeValidation,
					"worker mode requires events_enabled and kafka brokers in the configuration")
			}
			svcs, err := cliCtx.Services()
			if err != nil {
				return err
			}
			defer svcs.Close()

			consumer, err := kafka.NewConsumer(svcs.ConsumerConfig, svcs.Pool.Handler(), cliCtx.Logger)
			if err != nil {
				return err
			}
			defer consumer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cliCtx.Logger.Info("worker started",
				logging.String("topic", svcs.ConsumerConfig.Topic),
				logging.String("group", svcs.ConsumerConfig.GroupID))

			runErr := consumer.Run(ctx)
			drainErr := svcs.Pool.Shutdown(context.Background())
			if runErr != nil {
				return runErr
			}
			return drainErr
		},
	}
}
