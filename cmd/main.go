package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	grpcapi "consult-scribe-service/internal/api/grpc"
	"consult-scribe-service/internal/app"
	"consult-scribe-service/internal/config"
	httpapi "consult-scribe-service/internal/http"
	"consult-scribe-service/internal/observability"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Consultation scribe exited")
	}
}

func run() error {
	cfg := config.Load()

	application, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer application.Shutdown()

	if err := application.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		return err
	}
	grpcServer := grpcapi.New(application.Metrics, application.Ready)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           httpapi.NewRouter(application),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	obsServer := observability.NewServer(cfg.Observability.MetricsAddr, application.Ready)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(obsServer.Serve)

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down servers")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		grpcServer.GracefulStop()
		if err := httpServer.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("HTTP shutdown failed")
		}
		if err := obsServer.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("Observability shutdown failed")
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
