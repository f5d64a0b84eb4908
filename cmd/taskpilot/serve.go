package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sandeepkv93/taskpilot/internal/server"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API with CORS, request ids, structured request logs and
Prometheus metrics on /metrics.

Examples:
  taskpilot serve
  taskpilot serve --addr 0.0.0.0:8000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx, opts, bootOptions{})
			if err != nil {
				return err
			}
			defer a.close()

			if addr == "" {
				addr = a.cfg.Server.Addr()
			}
			srv, err := server.New(a.svc, a.metrics.Handler(), server.Config{
				Addr:            addr,
				AllowedOrigins:  a.cfg.Server.AllowedOrigins,
				ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
			}, a.logger)
			if err != nil {
				return err
			}
			a.logger.Info("serving", zap.String("addr", addr),
				zap.Bool("ticktick", a.ticktick != nil), zap.Bool("analysis", a.analyzer != nil))
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.host:server.port)")
	return cmd
}

// commandContext is the base context for one-shot commands.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
