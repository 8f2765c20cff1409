package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
)

const postingColumns = `
	id, deal_id, channel_id, telegram_message_id, scheduled_at, posted_at,
	retention_hours, verified_at, retained, verification_error, created_at`

type PostingRepo struct {
	pool *pgxpool.Pool
}

func NewPostingRepo(pool *pgxpool.Pool) *PostingRepo {
	return &PostingRepo{pool: pool}
}

func scanPosting(row pgx.Row) (*models.DealPosting, error) {
	var p models.DealPosting
	err := row.Scan(&p.ID, &p.DealID, &p.ChannelID, &p.TelegramMessageID, &p.ScheduledAt, &p.PostedAt,
		&p.RetentionHours, &p.VerifiedAt, &p.Retained, &p.VerificationError, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PostingRepo) Create(ctx context.Context, p *models.DealPosting) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO deal_postings (deal_id, channel_id, scheduled_at, retention_hours)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (deal_id) DO UPDATE SET scheduled_at = EXCLUDED.scheduled_at
		RETURNING id, created_at
	`, p.DealID, p.ChannelID, p.ScheduledAt, p.RetentionHours).Scan(&p.ID, &p.CreatedAt)
}

// FindUnverifiedByMessage locates a posting by its published Telegram
// message that has not been through retention verification yet.
func (r *PostingRepo) FindUnverifiedByMessage(ctx context.Context, channelID uuid.UUID, telegramMessageID int64) (*models.DealPosting, error) {
	return scanPosting(r.pool.QueryRow(ctx, `
		SELECT`+postingColumns+`
		FROM deal_postings
		WHERE channel_id = $1 AND telegram_message_id = $2
		  AND posted_at IS NOT NULL AND verified_at IS NULL
	`, channelID, telegramMessageID))
}

func (r *PostingRepo) GetByDealID(ctx context.Context, dealID uuid.UUID) (*models.DealPosting, error) {
	return scanPosting(r.pool.QueryRow(ctx, `SELECT`+postingColumns+` FROM deal_postings WHERE deal_id = $1`, dealID))
}

func (r *PostingRepo) SetPosted(ctx context.Context, dealID uuid.UUID, messageID int64, postedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deal_postings SET telegram_message_id = $2, posted_at = $3 WHERE deal_id = $1
	`, dealID, messageID, postedAt)
	return err
}

// Finalize records the retention verdict exactly once.
func (r *PostingRepo) Finalize(ctx context.Context, dealID uuid.UUID, retained bool, verificationError *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deal_postings SET retained = $2, verification_error = $3, verified_at = now()
		WHERE deal_id = $1 AND verified_at IS NULL
	`, dealID, retained, verificationError)
	return err
}

// ListDueForPosting returns postings scheduled at or before now that have not
// been published yet.
func (r *PostingRepo) ListDueForPosting(ctx context.Context, now time.Time) ([]models.DealPosting, error) {
	return r.list(ctx, `
		SELECT`+postingColumns+`
		FROM deal_postings
		WHERE posted_at IS NULL AND scheduled_at IS NOT NULL AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
	`, now)
}

// ListUnverified returns published postings with no retention verdict yet.
func (r *PostingRepo) ListUnverified(ctx context.Context) ([]models.DealPosting, error) {
	return r.list(ctx, `
		SELECT`+postingColumns+`
		FROM deal_postings
		WHERE posted_at IS NOT NULL AND verified_at IS NULL
		ORDER BY posted_at ASC
	`)
}

func (r *PostingRepo) list(ctx context.Context, query string, args ...any) ([]models.DealPosting, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var postings []models.DealPosting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		postings = append(postings, *p)
	}
	return postings, rows.Err()
}
