package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"caseflow/internal/bootstrap"
	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/errs"
	"caseflow/internal/infrastructure/events"
	caseusecase "caseflow/internal/usecase/casework"
)

// runtime is everything a command can reach once the fx graph is started.
type runtime struct {
	App     *bootstrap.App
	Cases   *caseusecase.Service
	Monitor *caseusecase.DeadlineMonitor
	Broker  *events.Broker
	// Policy is nil unless workflow.policy_file is configured.
	Policy *caseusecase.PolicyWatcher
}

func withApp(run func(cmd *cobra.Command, rt *runtime) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		rt := &runtime{}
		fxApp := fx.New(
			bootstrap.Module,
			fx.NopLogger,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&rt.App, &rt.Cases, &rt.Monitor, &rt.Broker, &rt.Policy),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		cmd.SetContext(ctx)
		if err := run(cmd, rt); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
