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

const escrowColumns = `
	id, deal_id, contract_address, advertiser_address, owner_address, platform_address,
	amount_nano, fee_percent, on_chain_state, deadline,
	deploy_tx_hash, deposit_tx_hash, release_tx_hash, refund_tx_hash,
	funded_at, released_at, refunded_at, created_at, updated_at`

type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

func scanEscrow(row pgx.Row) (*models.Escrow, error) {
	var e models.Escrow
	err := row.Scan(&e.ID, &e.DealID, &e.ContractAddress, &e.AdvertiserAddress, &e.OwnerAddress, &e.PlatformAddress,
		&e.AmountNano, &e.FeePercent, &e.OnChainState, &e.Deadline,
		&e.DeployTxHash, &e.DepositTxHash, &e.ReleaseTxHash, &e.RefundTxHash,
		&e.FundedAt, &e.ReleasedAt, &e.RefundedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *EscrowRepo) Create(ctx context.Context, e *models.Escrow) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO escrows (deal_id, contract_address, advertiser_address, owner_address, platform_address,
		                     amount_nano, fee_percent, on_chain_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`, e.DealID, e.ContractAddress, e.AdvertiserAddress, e.OwnerAddress, e.PlatformAddress,
		e.AmountNano, e.FeePercent, e.OnChainState,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (r *EscrowRepo) GetByDealID(ctx context.Context, dealID uuid.UUID) (*models.Escrow, error) {
	return scanEscrow(r.pool.QueryRow(ctx, `SELECT`+escrowColumns+` FROM escrows WHERE deal_id = $1`, dealID))
}

// ListByStates returns every escrow currently in one of the given on-chain
// states, oldest first. Used by the chain monitor sweeps.
func (r *EscrowRepo) ListByStates(ctx context.Context, states []string) ([]models.Escrow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+escrowColumns+`
		FROM escrows WHERE on_chain_state = ANY($1)
		ORDER BY created_at ASC
	`, states)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var escrows []models.Escrow
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		escrows = append(escrows, *e)
	}
	return escrows, rows.Err()
}

// UpdateStateCAS advances the on-chain state guard. Returns false without
// error if the guard already moved, meaning a concurrent caller acted first.
func (r *EscrowRepo) UpdateStateCAS(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE escrows SET on_chain_state = $3, updated_at = now()
		WHERE id = $1 AND on_chain_state = $2
	`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFunded latches the guard from init to the observed funded state.
func (r *EscrowRepo) MarkFunded(ctx context.Context, id uuid.UUID, state string, fundedAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE escrows SET on_chain_state = $2, funded_at = $3, updated_at = now()
		WHERE id = $1 AND on_chain_state = $4
	`, id, state, fundedAt, models.EscrowStateInit)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSettled records a confirmed terminal state with its timestamp.
func (r *EscrowRepo) MarkSettled(ctx context.Context, id uuid.UUID, state string, settledAt time.Time) error {
	var column string
	switch state {
	case models.EscrowStateReleased:
		column = "released_at"
	case models.EscrowStateRefunded:
		column = "refunded_at"
	default:
		return errors.New("state is not terminal: " + state)
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE escrows SET on_chain_state = $2, `+column+` = $3, updated_at = now()
		WHERE id = $1
	`, id, state, settledAt)
	return err
}
