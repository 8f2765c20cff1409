package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, m *models.DealMessage) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO deal_messages (deal_id, sender_user_id, text, message_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, m.DealID, m.SenderUserID, m.Text, m.MessageType).Scan(&m.ID, &m.CreatedAt)
}

func (r *MessageRepo) ListByDeal(ctx context.Context, dealID uuid.UUID, limit int) ([]models.DealMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, deal_id, sender_user_id, text, message_type, created_at
		FROM deal_messages WHERE deal_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, dealID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.DealMessage
	for rows.Next() {
		var m models.DealMessage
		if err := rows.Scan(&m.ID, &m.DealID, &m.SenderUserID, &m.Text, &m.MessageType, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
