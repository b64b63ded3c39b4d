package postgres

import (
	"context"
	"errors"
	"fmt"

	"tollway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// TagRepo implements ports.TagRepository.
type TagRepo struct {
	pool Pool
}

// NewTagRepo creates a new TagRepo.
func NewTagRepo(pool Pool) *TagRepo {
	return &TagRepo{pool: pool}
}

// Create inserts a tag. Used by onboarding tooling and tests.
func (r *TagRepo) Create(ctx context.Context, t *domain.Tag) error {
	query := `INSERT INTO tags (tag_id, plate, status, payment_method, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var cfg []byte
	if len(t.Config) > 0 {
		cfg = t.Config
	}
	_, err := r.pool.Exec(ctx, query, t.TagID, t.Plate, t.Status, t.PaymentMethod, cfg, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}

// GetByID fetches a tag by id.
func (r *TagRepo) GetByID(ctx context.Context, tagID string) (*domain.Tag, error) {
	query := `SELECT tag_id, plate, status, payment_method, config, created_at, updated_at
		FROM tags WHERE tag_id = $1`

	t := &domain.Tag{}
	var cfg []byte
	err := r.pool.QueryRow(ctx, query, tagID).Scan(
		&t.TagID, &t.Plate, &t.Status, &t.PaymentMethod, &cfg, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tag by id: %w", err)
	}
	t.Config = cfg
	return t, nil
}
