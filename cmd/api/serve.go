package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"impact-lending-backend/internal/infrastructure/database"
	"impact-lending-backend/internal/interfaces/router"
	"impact-lending-backend/internal/scheduler"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var (
		port        string
		migrate     bool
		noScheduler bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the reconciliation scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = cfg.Port
			}
			app, rt, err := router.CreateApp(cfg)
			if err != nil {
				return fmt.Errorf("app create: %w", err)
			}
			defer rt.Close()

			if err := (&database.Pinger{DB: rt.DB}).Ping(); err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			log.Info().Msg("database connected")
			if rt.Rdb != nil {
				log.Info().Msg("redis connected")
			}
			if migrate {
				if err := database.AutoMigrate(rt.DB); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				log.Info().Msg("schema migrated")
			}

			var sched *scheduler.Scheduler
			if !noScheduler {
				if sched, err = scheduler.New(cfg.ReconcileSchedule, rt.Services.Reconciliation); err != nil {
					return err
				}
				sched.Start()
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("port", port).Str("env", cfg.Env).Msgf("server running at http://localhost:%s (health: /health/json)", port)
				errCh <- app.Listen(":" + port)
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case sig := <-quit:
				log.Info().Str("signal", sig.String()).Msg("shutting down")
			}

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := app.ShutdownWithContext(ctx); err != nil {
				log.Error().Err(err).Msg("server shutdown")
			}
			if sched != nil {
				sched.Stop()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (defaults to PORT)")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "run schema migration before serving")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run scheduled reconciliation")
	return cmd
}
