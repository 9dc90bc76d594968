package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cognicore/tagvault/internal/httpapi"
	httpH "github.com/cognicore/tagvault/internal/httpapi/handlers"
	httpMW "github.com/cognicore/tagvault/internal/httpapi/middleware"
	"github.com/cognicore/tagvault/pkg/tagvault/taxonomy"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tag HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			log := ctx.logger()

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, st, err := ctx.newService(runCtx)
			if err != nil {
				return err
			}
			defer st.Close()

			router := httpapi.NewRouter(httpapi.RouterConfig{
				TagHandler: httpH.NewTagHandler(svc, st, taxonomy.Default(),
					log.With("component", "http"), cfg.Server.MaxBodyBytes),
				HealthHandler:  httpH.NewHealthHandler(),
				Logger:         log.With("component", "http"),
				AllowedOrigins: cfg.Server.AllowedOrigins,
				RateLimiter:    httpMW.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst),
			})

			srv := httpapi.NewServer(httpapi.ServerConfig{
				Addr:           cfg.Server.Addr,
				MaxConnections: cfg.Server.MaxConnections,
				ShutdownGrace:  cfg.Server.ShutdownGrace,
			}, router, log)

			log.Info("starting tagvault", "addr", cfg.Server.Addr, "store", cfg.Store.Driver)
			if err := srv.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info("tagvault stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}
