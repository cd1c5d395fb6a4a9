package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/solatis/formkeeper/internal/core/api"
	"github.com/solatis/formkeeper/internal/core/auth"
	"github.com/solatis/formkeeper/internal/core/config"
	"github.com/solatis/formkeeper/internal/core/db"
	"github.com/solatis/formkeeper/internal/core/metrics"
	"github.com/solatis/formkeeper/internal/core/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Start the gRPC and HTTP form service",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	c.Flags().String("host", "0.0.0.0", "listen host")
	c.Flags().Int("grpc-port", 50051, "gRPC server port")
	c.Flags().Int("http-port", 8080, "HTTP server port")
	return c
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RequireMigrations(database); err != nil {
		return err
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set FK_HMAC_SECRET environment variable)")
	}

	authenticator := auth.NewAuthenticator(secrets, queries)
	m := metrics.New()

	service, err := api.NewFormService(db.NewSpecStore(database, queries), cfg, m, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg, service, authenticator, m, logger)
	if err != nil {
		return fmt.Errorf("failed to create gRPC server: %w", err)
	}
	httpServer, err := server.NewHTTPServer(cfg, service, authenticator, m, logger)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting formkeeper",
		"version", Version,
		"grpc_addr", cfg.GRPCAddr(),
		"http_addr", cfg.HTTPAddr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return grpcServer.Start(gctx) })
	g.Go(func() error { return httpServer.Start(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gracefully", "timeout", cfg.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return errors.Join(
			grpcServer.Shutdown(shutdownCtx),
			httpServer.Shutdown(shutdownCtx),
		)
	})
	return g.Wait()
}
