// Package worker runs the queue consumers that drive toll events through
// the billing pipeline.
package worker

import (
	"context"
	"sync"
	"time"

	"tollway/internal/core/domain"
	"tollway/internal/core/ports"
	"tollway/pkg/apperror"

	"github.com/rs/zerolog"
)

// Config sizes the pool.
type Config struct {
	Concurrency   int
	MaxDeliveries int64         // 0 disables dead-lettering
	EventTimeout  time.Duration // per-event processing deadline, 0 = none
}

// Pool consumes deliveries with a fixed number of goroutines. A delivery is
// acknowledged when processing succeeds or fails terminally. Transient
// failures leave it pending so the queue hands it out again after the lease.
type Pool struct {
	queue     ports.EventQueue
	processor ports.TollProcessor
	cfg       Config
	// errBackoff spaces out Receive retries while the queue is unreachable.
	errBackoff time.Duration
	log        zerolog.Logger
}

// New creates a worker pool.
func New(queue ports.EventQueue, processor ports.TollProcessor, cfg Config, log zerolog.Logger) *Pool {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Pool{
		queue:      queue,
		processor:  processor,
		cfg:        cfg,
		errBackoff: time.Second,
		log:        log,
	}
}

// Run blocks until ctx is cancelled and every in-flight event has finished.
func (p *Pool) Run(ctx context.Context) {
	p.log.Info().Int("concurrency", p.cfg.Concurrency).Msg("worker pool started")

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.consume(ctx, id)
		}(i)
	}
	wg.Wait()

	p.log.Info().Msg("worker pool stopped")
}

func (p *Pool) consume(ctx context.Context, id int) {
	log := p.log.With().Int("worker", id).Logger()
	for ctx.Err() == nil {
		d, err := p.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("receive failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.errBackoff):
			}
			continue
		}
		if d == nil {
			continue
		}
		// In-flight events finish even when shutdown starts.
		p.Handle(context.WithoutCancel(ctx), d)
	}
}

// Handle processes one delivery and settles it with the queue.
func (p *Pool) Handle(ctx context.Context, d *domain.Delivery) {
	log := p.log.With().
		Str("message_id", d.MessageID).
		Str("event_id", d.Event.EventID).
		Int64("attempt", d.Attempt).
		Logger()

	if p.cfg.MaxDeliveries > 0 && d.Attempt > p.cfg.MaxDeliveries {
		if err := p.queue.DeadLetter(ctx, d, "max deliveries exceeded"); err != nil {
			log.Error().Err(err).Msg("dead-letter failed")
			return
		}
		log.Warn().Msg("event dead-lettered")
		return
	}

	pctx := ctx
	if p.cfg.EventTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, p.cfg.EventTimeout)
		defer cancel()
	}

	txn, err := p.processor.Process(pctx, d.Event)
	switch {
	case err == nil:
		log.Info().
			Str("tx_id", txn.ID.String()).
			Str("scenario", string(txn.Scenario)).
			Bool("success", txn.Outcome.Success).
			Msg("event processed")
	case apperror.IsTransient(err):
		log.Warn().Err(err).Msg("transient failure, leaving for redelivery")
		return
	default:
		log.Warn().Err(err).Msg("event rejected")
	}

	if err := p.queue.Ack(ctx, d); err != nil {
		log.Error().Err(err).Msg("ack failed")
	}
}
