package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
)

const creativeColumns = `
	id, deal_id, version, text, entities_json, media_items, status, feedback, is_current, created_at`

type CreativeRepo struct {
	pool *pgxpool.Pool
}

func NewCreativeRepo(pool *pgxpool.Pool) *CreativeRepo {
	return &CreativeRepo{pool: pool}
}

func scanCreative(row pgx.Row) (*models.CreativeVersion, error) {
	var c models.CreativeVersion
	err := row.Scan(&c.ID, &c.DealID, &c.Version, &c.Text, &c.EntitiesJSON, &c.MediaItems,
		&c.Status, &c.Feedback, &c.IsCurrent, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// CreateNextVersion appends a new creative version, demoting the previous
// current one. Runs in a transaction so exactly one version stays current.
func (r *CreativeRepo) CreateNextVersion(ctx context.Context, c *models.CreativeVersion) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE creative_versions SET is_current = false WHERE deal_id = $1 AND is_current
	`, c.DealID); err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO creative_versions (deal_id, version, text, entities_json, media_items, status, is_current)
		SELECT $1, COALESCE(MAX(version), 0) + 1, $2, $3, $4, $5, true
		FROM creative_versions WHERE deal_id = $1
		RETURNING id, version, created_at
	`, c.DealID, c.Text, c.EntitiesJSON, c.MediaItems, models.CreativeStatusSubmitted,
	).Scan(&c.ID, &c.Version, &c.CreatedAt)
	if err != nil {
		return err
	}

	c.Status = models.CreativeStatusSubmitted
	c.IsCurrent = true
	return tx.Commit(ctx)
}

func (r *CreativeRepo) GetCurrent(ctx context.Context, dealID uuid.UUID) (*models.CreativeVersion, error) {
	return scanCreative(r.pool.QueryRow(ctx, `
		SELECT`+creativeColumns+` FROM creative_versions WHERE deal_id = $1 AND is_current
	`, dealID))
}

func (r *CreativeRepo) SetStatus(ctx context.Context, id uuid.UUID, status string, feedback *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE creative_versions SET status = $2, feedback = COALESCE($3, feedback) WHERE id = $1
	`, id, status, feedback)
	return err
}

func (r *CreativeRepo) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]models.CreativeVersion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+creativeColumns+` FROM creative_versions WHERE deal_id = $1 ORDER BY version ASC
	`, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []models.CreativeVersion
	for rows.Next() {
		c, err := scanCreative(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *c)
	}
	return versions, rows.Err()
}
