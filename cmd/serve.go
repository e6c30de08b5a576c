package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/errs"
	"caseflow/internal/transport/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the case HTTP API with the embedded deadline monitor",
	RunE: withApp(func(cmd *cobra.Command, rt *runtime) error {
		ctx, cancel := context.WithCancel(logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath())))
		defer cancel()

		withMonitor, _ := cmd.Flags().GetBool("monitor")
		addr, _ := cmd.Flags().GetString("addr")
		httpCfg := rt.App.Config.HTTP
		if addr == "" {
			addr = httpCfg.Addr
		}

		server := &http.Server{
			Addr:              addr,
			Handler:           httpapi.NewRouter(httpapi.NewHandler(rt.Cases, rt.Broker)),
			ReadHeaderTimeout: httpCfg.ReadTimeout,
			ReadTimeout:       httpCfg.ReadTimeout,
			WriteTimeout:      httpCfg.WriteTimeout,
		}

		var wg sync.WaitGroup
		errCh := make(chan error, 3)

		if rt.Policy != nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := rt.Policy.Watch(ctx); err != nil {
					errCh <- errs.Wrap(err, "watch policy file")
				}
			}()
		}
		if withMonitor && rt.App.Config.Monitor.Enabled {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := rt.Monitor.Start(ctx); err != nil {
					errCh <- errs.Wrap(err, "run deadline monitor")
				}
			}()
		}
		go func() {
			logging.Info(ctx, "http server listening", slog.String("addr", addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- errs.Wrap(err, "serve http")
			}
		}()

		var runErr error
		select {
		case <-ctx.Done():
		case runErr = <-errCh:
		}
		cancel()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Warn(ctx, "http server shutdown failed", slog.Any("err", errs.Loggable(err)))
		}
		wg.Wait()

		logging.Info(ctx, "serve stopped")
		return runErr
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default: http.addr from config)")
	serveCmd.Flags().Bool("monitor", true, "Run the deadline monitor in this process")
}
