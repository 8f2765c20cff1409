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

// ErrNotFound is returned by Get* methods when the record does not exist.
var ErrNotFound = errors.New("record not found")

const dealColumns = `
	id, listing_id, campaign_id, channel_id, advertiser_id, owner_id, status,
	price, currency, escrow_address, advertiser_wallet_address, owner_wallet_address,
	owner_wallet_confirmed, wallet_notification_sent, brief, description,
	publish_date, publish_from, publish_to, retention_hours, last_activity_at,
	created_at, updated_at`

type DealRepo struct {
	pool *pgxpool.Pool
}

func NewDealRepo(pool *pgxpool.Pool) *DealRepo {
	return &DealRepo{pool: pool}
}

func scanDeal(row pgx.Row) (*models.Deal, error) {
	var d models.Deal
	err := row.Scan(&d.ID, &d.ListingID, &d.CampaignID, &d.ChannelID, &d.AdvertiserID, &d.OwnerID, &d.Status,
		&d.Price, &d.Currency, &d.EscrowAddress, &d.AdvertiserWalletAddress, &d.OwnerWalletAddress,
		&d.OwnerWalletConfirmed, &d.WalletNotificationSent, &d.Brief, &d.Description,
		&d.PublishDate, &d.PublishFrom, &d.PublishTo, &d.RetentionHours, &d.LastActivityAt,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *DealRepo) Create(ctx context.Context, d *models.Deal) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO deals (listing_id, campaign_id, channel_id, advertiser_id, owner_id, status,
		                   price, currency, brief, description, publish_date, publish_from, publish_to, retention_hours)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, last_activity_at, created_at, updated_at
	`, d.ListingID, d.CampaignID, d.ChannelID, d.AdvertiserID, d.OwnerID, d.Status,
		d.Price, d.Currency, d.Brief, d.Description, d.PublishDate, d.PublishFrom, d.PublishTo, d.RetentionHours,
	).Scan(&d.ID, &d.LastActivityAt, &d.CreatedAt, &d.UpdatedAt)
}

func (r *DealRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Deal, error) {
	return scanDeal(r.pool.QueryRow(ctx, `SELECT`+dealColumns+` FROM deals WHERE id = $1`, id))
}

// UpdateStatusCAS moves a deal from one status to another and refreshes the
// activity timestamp. Returns false without error if the deal is no longer in
// the expected status, which means a concurrent transition won the race.
func (r *DealRepo) UpdateStatusCAS(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE deals SET status = $3, last_activity_at = now(), updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *DealRepo) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deals SET last_activity_at = now(), updated_at = now() WHERE id = $1
	`, id)
	return err
}

func (r *DealRepo) SetEscrowAddress(ctx context.Context, id uuid.UUID, address string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deals SET escrow_address = $2, updated_at = now() WHERE id = $1
	`, id, address)
	return err
}

func (r *DealRepo) SetOwnerWallet(ctx context.Context, id uuid.UUID, address string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deals SET owner_wallet_address = $2, updated_at = now() WHERE id = $1
	`, id, address)
	return err
}

func (r *DealRepo) SetOwnerWalletConfirmed(ctx context.Context, id uuid.UUID, confirmed bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deals SET owner_wallet_confirmed = $2, updated_at = now() WHERE id = $1
	`, id, confirmed)
	return err
}

func (r *DealRepo) SetWalletNotificationSent(ctx context.Context, id uuid.UUID, sent bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deals SET wallet_notification_sent = $2, updated_at = now() WHERE id = $1
	`, id, sent)
	return err
}

func (r *DealRepo) ApplyAmendment(ctx context.Context, id uuid.UUID, price *string, publishDate *time.Time, description *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE deals SET
			price = COALESCE($2, price),
			publish_date = COALESCE($3, publish_date),
			description = COALESCE($4, description),
			last_activity_at = now(),
			updated_at = now()
		WHERE id = $1
	`, id, price, publishDate, description)
	return err
}

// ListInactiveSince returns deals in any of the given statuses whose last
// activity is older than the threshold. Used by the timeout sweeps.
func (r *DealRepo) ListInactiveSince(ctx context.Context, statuses []string, before time.Time) ([]models.Deal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+dealColumns+`
		FROM deals
		WHERE status = ANY($1) AND last_activity_at < $2
		ORDER BY last_activity_at ASC
	`, statuses, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, *d)
	}
	return deals, rows.Err()
}

// ListAwaitingEscrowForUser returns deals waiting for escrow where the user
// participates on either side. Used to retry escrow creation after a wallet
// update.
func (r *DealRepo) ListAwaitingEscrowForUser(ctx context.Context, userID uuid.UUID) ([]models.Deal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+dealColumns+`
		FROM deals
		WHERE status = $1 AND (advertiser_id = $2 OR owner_id = $2)
	`, models.DealStatusAwaitingEscrowPayment, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		deals = append(deals, *d)
	}
	return deals, rows.Err()
}
