package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	auth "github.com/goliatone/go-lms-auth"
	"github.com/goliatone/go-lms-auth/repository"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApplication(ctx, cfg, logger, migrate)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "create tables and seed the role catalog before serving")
	return cmd
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), opts, func(ctx context.Context, mgr *repository.Manager, logger *zap.Logger) error {
				if err := mgr.Migrate(ctx); err != nil {
					return err
				}
				logger.Info("schema migrated")
				return nil
			})
		},
	}
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Upsert the default roles and capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), opts, func(ctx context.Context, mgr *repository.Manager, logger *zap.Logger) error {
				roles, err := mgr.Seed(ctx, auth.DefaultCatalog())
				if err != nil {
					return err
				}
				logger.Info("role catalog seeded", zap.Any("roles", roles))
				return nil
			})
		},
	}
}

func withManager(ctx context.Context, opts *rootOptions, fn func(context.Context, *repository.Manager, *zap.Logger) error) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := repository.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}

	mgr := repository.NewManager(db)
	defer mgr.Close()

	return fn(ctx, mgr, logger)
}

// runSweeper prunes expired sessions every interval until ctx is done
func runSweeper(ctx context.Context, registry *auth.SessionRegistry, interval time.Duration, logger *zap.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := registry.Sweep(); n > 0 {
				logger.Debug("expired sessions swept", zap.Int("count", n))
			}
		}
	}
}

// serve runs the listener and the optional sweeper, shutting both down with ctx
func serve(ctx context.Context, a *application) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("listening", zap.String("address", a.config.Server.Address))
		return a.http.Listen(a.config.Server.Address)
	})

	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down")
		return a.http.ShutdownWithTimeout(10 * time.Second)
	})

	if interval := a.config.Sessions.SweepInterval; interval > 0 {
		g.Go(func() error {
			return runSweeper(ctx, a.registry, interval, a.logger)
		})
	}

	return g.Wait()
}
