package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
)

// ErrPendingExists is returned when a deal already has a pending amendment.
// Backed by the uq_amendments_one_pending unique index.
var ErrPendingExists = errors.New("deal already has a pending amendment")

const amendmentColumns = `
	id, deal_id, proposed_by_user_id, proposed_price, proposed_publish_date,
	proposed_description, status, created_at, resolved_at`

type AmendmentRepo struct {
	pool *pgxpool.Pool
}

func NewAmendmentRepo(pool *pgxpool.Pool) *AmendmentRepo {
	return &AmendmentRepo{pool: pool}
}

func scanAmendment(row pgx.Row) (*models.DealAmendment, error) {
	var a models.DealAmendment
	err := row.Scan(&a.ID, &a.DealID, &a.ProposedByUserID, &a.ProposedPrice, &a.ProposedPublishDate,
		&a.ProposedDescription, &a.Status, &a.CreatedAt, &a.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *AmendmentRepo) Create(ctx context.Context, a *models.DealAmendment) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO deal_amendments (deal_id, proposed_by_user_id, proposed_price, proposed_publish_date, proposed_description, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, a.DealID, a.ProposedByUserID, a.ProposedPrice, a.ProposedPublishDate, a.ProposedDescription, models.AmendmentStatusPending,
	).Scan(&a.ID, &a.CreatedAt)
	return mapAmendmentInsertErr(err)
}

func mapAmendmentInsertErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrPendingExists
	}
	return err
}

func (r *AmendmentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.DealAmendment, error) {
	return scanAmendment(r.pool.QueryRow(ctx, `SELECT`+amendmentColumns+` FROM deal_amendments WHERE id = $1`, id))
}

// GetPending returns the single pending amendment for a deal, or ErrNotFound.
func (r *AmendmentRepo) GetPending(ctx context.Context, dealID uuid.UUID) (*models.DealAmendment, error) {
	return scanAmendment(r.pool.QueryRow(ctx, `
		SELECT`+amendmentColumns+` FROM deal_amendments WHERE deal_id = $1 AND status = $2
	`, dealID, models.AmendmentStatusPending))
}

// Resolve moves a pending amendment to accepted or rejected. Returns false
// if it was already resolved.
func (r *AmendmentRepo) Resolve(ctx context.Context, id uuid.UUID, status string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE deal_amendments SET status = $2, resolved_at = now()
		WHERE id = $1 AND status = $3
	`, id, status, models.AmendmentStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
