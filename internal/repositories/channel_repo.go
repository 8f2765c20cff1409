package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
)

type ChannelRepo struct {
	pool *pgxpool.Pool
}

func NewChannelRepo(pool *pgxpool.Pool) *ChannelRepo {
	return &ChannelRepo{pool: pool}
}

func (r *ChannelRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Channel, error) {
	var c models.Channel
	err := r.pool.QueryRow(ctx, `
		SELECT id, telegram_channel_id, username, title, description, subscribers,
		       language, bot_is_admin, owner_id, created_at, updated_at
		FROM channels WHERE id = $1
	`, id).Scan(&c.ID, &c.TelegramChannelID, &c.Username, &c.Title, &c.Description, &c.Subscribers,
		&c.Language, &c.BotIsAdmin, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *ChannelRepo) GetByTelegramID(ctx context.Context, telegramChannelID int64) (*models.Channel, error) {
	var c models.Channel
	err := r.pool.QueryRow(ctx, `
		SELECT id, telegram_channel_id, username, title, description, subscribers,
		       language, bot_is_admin, owner_id, created_at, updated_at
		FROM channels WHERE telegram_channel_id = $1
	`, telegramChannelID).Scan(&c.ID, &c.TelegramChannelID, &c.Username, &c.Title, &c.Description, &c.Subscribers,
		&c.Language, &c.BotIsAdmin, &c.OwnerID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetTeamMember returns the delegation record for a user in a channel, or
// ErrNotFound if the user is not on the team.
func (r *ChannelRepo) GetTeamMember(ctx context.Context, channelID, userID uuid.UUID) (*models.ChannelTeamMember, error) {
	var m models.ChannelTeamMember
	err := r.pool.QueryRow(ctx, `
		SELECT id, channel_id, user_id, role, can_accept_deals, can_post, can_payout, created_at
		FROM channel_team_members WHERE channel_id = $1 AND user_id = $2
	`, channelID, userID).Scan(&m.ID, &m.ChannelID, &m.UserID, &m.Role, &m.CanAcceptDeals, &m.CanPost, &m.CanPayout, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *ChannelRepo) ListTeamMembers(ctx context.Context, channelID uuid.UUID) ([]models.ChannelTeamMember, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, channel_id, user_id, role, can_accept_deals, can_post, can_payout, created_at
		FROM channel_team_members WHERE channel_id = $1
	`, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.ChannelTeamMember
	for rows.Next() {
		var m models.ChannelTeamMember
		if err := rows.Scan(&m.ID, &m.ChannelID, &m.UserID, &m.Role, &m.CanAcceptDeals, &m.CanPost, &m.CanPayout, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *ChannelRepo) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var l models.Listing
	err := r.pool.QueryRow(ctx, `
		SELECT id, channel_id, title, description, price, currency, format, language, is_active, created_at, updated_at
		FROM listings WHERE id = $1
	`, id).Scan(&l.ID, &l.ChannelID, &l.Title, &l.Description, &l.Price, &l.Currency, &l.Format, &l.Language, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *ChannelRepo) GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	var c models.Campaign
	err := r.pool.QueryRow(ctx, `
		SELECT id, advertiser_id, title, brief, category, target_language, budget_min, budget_max,
		       publish_from, publish_to, links, restrictions, is_active, created_at, updated_at
		FROM campaigns WHERE id = $1
	`, id).Scan(&c.ID, &c.AdvertiserID, &c.Title, &c.Brief, &c.Category, &c.TargetLanguage, &c.BudgetMin, &c.BudgetMax,
		&c.PublishFrom, &c.PublishTo, &c.Links, &c.Restrictions, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
