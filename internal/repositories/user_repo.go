package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
)

const userColumns = `
	id, telegram_user_id, username, first_name, last_name, language_code, wallet_address, created_at, last_active_at`

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.TelegramUserID, &u.Username, &u.FirstName, &u.LastName,
		&u.LanguageCode, &u.WalletAddress, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UpsertByTelegramID(ctx context.Context, telegramID int64, username, firstName, lastName, languageCode *string) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO users (telegram_user_id, username, first_name, last_name, language_code)
		VALUES ($1, $2, $3, $4, COALESCE($5, 'en'))
		ON CONFLICT (telegram_user_id) DO UPDATE SET
			username = COALESCE(EXCLUDED.username, users.username),
			first_name = COALESCE(EXCLUDED.first_name, users.first_name),
			last_name = COALESCE(EXCLUDED.last_name, users.last_name),
			language_code = COALESCE($5, users.language_code),
			last_active_at = now()
		RETURNING`+userColumns+`
	`, telegramID, username, firstName, lastName, languageCode))
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *UserRepo) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE telegram_user_id = $1`, telegramID))
}

func (r *UserRepo) SetWallet(ctx context.Context, id uuid.UUID, address string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET wallet_address = $2 WHERE id = $1
	`, id, address)
	return err
}
