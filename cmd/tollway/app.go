package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"tollway/config"
	"tollway/internal/adapter/notifier"
	pgStorage "tollway/internal/adapter/storage/postgres"
	redisStorage "tollway/internal/adapter/storage/redis"
	"tollway/internal/core/ports"
	"tollway/internal/service"
	"tollway/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var configPath string

// apiRedisConns is the pool headroom kept for cache, nonce and rate-limit calls.
const apiRedisConns = 16

// app holds the configuration and the shared infrastructure of one command.
type app struct {
	cfg  *config.Config
	log  zerolog.Logger
	pool *pgxpool.Pool
	rdb  *goredis.Client
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &app{cfg: cfg, log: logger.New(cfg.Log.Level, cfg.Log.Pretty)}, nil
}

// connect opens PostgreSQL and Redis.
func (a *app) connect(ctx context.Context) error {
	pool, err := pgStorage.NewPool(ctx, a.cfg.Database, a.log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	a.pool = pool
	a.log.Info().Msg("PostgreSQL connected")

	// each consumer pins a connection while blocked in XREADGROUP
	if need := a.cfg.Worker.Concurrency + apiRedisConns; a.cfg.Redis.PoolSize < need {
		a.cfg.Redis.PoolSize = need
	}
	rdb, err := redisStorage.NewClient(ctx, a.cfg.Redis, a.log)
	if err != nil {
		pool.Close()
		return fmt.Errorf("connect redis: %w", err)
	}
	a.rdb = rdb
	a.log.Info().Msg("Redis connected")
	return nil
}

func (a *app) close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *app) eventQueue() *redisStorage.EventQueue {
	w := a.cfg.Worker
	consumer := w.Consumer
	if consumer == "" {
		host, _ := os.Hostname()
		consumer = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	return redisStorage.NewEventQueue(a.rdb, redisStorage.EventQueueConfig{
		Stream:   w.Stream,
		Group:    w.Group,
		Consumer: consumer,
		Block:    w.Block,
		Lease:    w.Lease,
	}, logger.Component(a.log, "queue"))
}

func (a *app) healthCheckers(queue *redisStorage.EventQueue) []ports.HealthChecker {
	return []ports.HealthChecker{pgStorage.NewHealthCheck(a.pool), queue}
}

// processor wires the billing pipeline on the PostgreSQL and Redis stores.
func (a *app) processor() ports.TollProcessor {
	accounts := pgStorage.NewAccountRepo(a.pool)
	tags := pgStorage.NewTagRepo(a.pool)
	txRepo := pgStorage.NewTransactionRepo(a.pool)
	return buildProcessor(a.cfg, a.log, accounts, tags, txRepo, redisStorage.NewTransactionCache(a.rdb))
}

func buildProcessor(
	cfg *config.Config,
	log zerolog.Logger,
	accounts ports.AccountRepository,
	tags ports.TagRepository,
	txRepo ports.TransactionRepository,
	txCache ports.TransactionCache,
) ports.TollProcessor {
	return service.NewTollProcessor(
		service.NewIdentityResolver(accounts, tags, cfg.Billing.InvoiceUnknownPlates, logger.Component(log, "resolver")),
		service.NewFeeCalculator(),
		service.NewLedgerService(accounts, cfg.Ledger.MaxAttempts, cfg.Ledger.BaseBackoff, cfg.Billing.InvoiceDueDays, logger.Component(log, "ledger")),
		service.NewTransactionRecorder(txRepo, logger.Component(log, "recorder")),
		service.NewNotificationDispatcher(newNotifier(cfg.Notifier, log), logger.Component(log, "dispatcher")),
		accounts,
		txRepo,
		txCache,
		logger.Component(log, "processor"),
	)
}

// newNotifier posts to the configured webhook, or logs intents when none is set.
func newNotifier(cfg config.NotifierConfig, log zerolog.Logger) ports.Notifier {
	log = logger.Component(log, "notifier")
	if cfg.WebhookURL == "" {
		return notifier.NewLogNotifier(log)
	}
	return notifier.NewWebhookNotifier(cfg.WebhookURL, &http.Client{Timeout: cfg.Timeout}, cfg.Retries, log)
}
