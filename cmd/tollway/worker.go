package main

import (
	"context"
	"os/signal"
	"syscall"

	"tollway/internal/worker"

	"github.com/spf13/cobra"
)

func workerCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume queued toll events and bill them",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("concurrency") {
				a.cfg.Worker.Concurrency = concurrency
			}

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

			worker.New(queue, a.processor(), workerConfig(a), a.log).Run(ctx)
			return nil
		},
	}
	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 0, "number of consumers (overrides worker.concurrency)")
	return cmd
}

func workerConfig(a *app) worker.Config {
	return worker.Config{
		Concurrency:   a.cfg.Worker.Concurrency,
		MaxDeliveries: a.cfg.Worker.MaxDeliveries,
		EventTimeout:  a.cfg.Worker.EventTimeout,
	}
}
