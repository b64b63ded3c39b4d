package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpHandler "tollway/internal/adapter/http/handler"
	pgStorage "tollway/internal/adapter/storage/postgres"
	redisStorage "tollway/internal/adapter/storage/redis"
	"tollway/internal/service"
	"tollway/internal/worker"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ingestion and history API",
		Long: `Start the HTTP API.

Toll stations post signed events to /api/v1/toll-events; they are queued and
billed by the workers. Operators read history with a JWT carrying the
history:read scope.

Examples:
  tollway serve
  tollway serve --with-worker`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(withWorker)
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also run the queue workers in this process")
	return cmd
}

func runServe(withWorker bool) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	log := a.log

	log.Info().
		Str("mode", a.cfg.Server.Mode).
		Int("port", a.cfg.Server.Port).
		Msg("Starting Tollway API")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.connect(ctx); err != nil {
		return err
	}
	defer a.close()

	queue := a.eventQueue()
	if err := queue.EnsureGroup(ctx); err != nil {
		return err
	}

	if len(a.cfg.Ingest.StationSecrets) == 0 {
		log.Warn().Msg("No station secrets configured, every toll event will be rejected")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Queue:          queue,
		HistorySvc:     service.NewHistoryService(pgStorage.NewTransactionRepo(a.pool)),
		SigSvc:         service.NewHMACSignatureService(),
		NonceStore:     redisStorage.NewNonceStore(a.rdb),
		TokenSvc:       service.NewJWTTokenService(a.cfg.JWT.Secret, a.cfg.JWT.Expiry, a.cfg.JWT.Issuer),
		StationSecrets: a.cfg.Ingest.StationSecrets,
		RateLimitStore: redisStorage.NewRateLimitStore(a.rdb),
		IngestPerMin:   a.cfg.Ingest.RatePerMinute,
		HealthCheckers: a.healthCheckers(queue),
		Logger:         log,
	})

	workersDone := make(chan struct{})
	if withWorker {
		pool := worker.New(queue, a.processor(), workerConfig(a), log)
		go func() {
			defer close(workersDone)
			pool.Run(ctx)
		}()
	} else {
		close(workersDone)
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		stop()
		<-workersDone
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	<-workersDone

	log.Info().Msg("Server exited")
	return nil
}
