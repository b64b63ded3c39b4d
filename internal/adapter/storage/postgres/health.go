package postgres

import (
	"context"
	"errors"
	"fmt"
)

// errNotMigrated is reported while the billing tables are missing.
var errNotMigrated = errors.New("schema not migrated, run `tollway migrate`")

const schemaProbe = `
SELECT to_regclass('public.accounts') IS NOT NULL
   AND to_regclass('public.tags') IS NOT NULL
   AND to_regclass('public.debit_journal') IS NOT NULL
   AND to_regclass('public.transactions') IS NOT NULL`

// HealthCheck implements ports.HealthChecker for PostgreSQL. A reachable
// database without the billing schema counts as unhealthy.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	var migrated bool
	if err := h.pool.QueryRow(ctx, schemaProbe).Scan(&migrated); err != nil {
		return fmt.Errorf("check schema: %w", err)
	}
	if !migrated {
		return errNotMigrated
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
