package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"tollway/internal/adapter/storage/memory"
	"tollway/internal/core/domain"
	"tollway/internal/core/ports"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// simulationResult is one line of simulate output.
type simulationResult struct {
	EventID     string              `json:"eventId"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
	Error       string              `json:"error,omitempty"`
}

func simulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate [events.json|-]",
		Short: "Bill a batch of toll events against an in-memory demo ledger",
		Long: `Run toll events through the billing pipeline without PostgreSQL or Redis.

The file holds a JSON array of events in the ingestion format. The ledger is
seeded with demo accounts:
  P-123ABC  registered, balance 100.00, tag TAG-001
  R-456DEF  registered, balance 10.00
  U-999XYZ  unregistered

Examples:
  tollway simulate events.json
  cat events.json | tollway simulate -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}

			events, err := readEvents(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			store := demoStore()
			processor := buildProcessor(a.cfg, a.log, store, store, store, memory.NewTransactionCache())
			return simulate(cmd.Context(), processor, events, cmd.OutOrStdout())
		},
	}
}

func readEvents(stdin io.Reader, path string) ([]domain.TollEvent, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var events []domain.TollEvent
	if err := json.NewDecoder(r).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return events, nil
}

func simulate(ctx context.Context, processor ports.TollProcessor, events []domain.TollEvent, out io.Writer) error {
	enc := json.NewEncoder(out)
	for _, ev := range events {
		res := simulationResult{EventID: ev.EventID}
		txn, err := processor.Process(ctx, ev)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Transaction = txn
		}
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	return nil
}

func demoStore() *memory.Store {
	store := memory.NewStore()
	tagID := "TAG-001"
	plate := "P-123ABC"
	email := "driver@example.com"

	store.PutAccount(domain.Account{
		Plate:          plate,
		Classification: domain.ClassificationRegistered,
		Balance:        decimal.RequireFromString("100.00"),
		TagID:          &tagID,
		Email:          &email,
	})
	store.PutAccount(domain.Account{
		Plate:          "R-456DEF",
		Classification: domain.ClassificationRegistered,
		Balance:        decimal.RequireFromString("10.00"),
	})
	store.PutAccount(domain.Account{
		Plate:          "U-999XYZ",
		Classification: domain.ClassificationUnregistered,
		Balance:        decimal.Zero,
	})
	store.PutTag(domain.Tag{TagID: tagID, Plate: &plate, Status: domain.TagStatusActive})
	return store
}
