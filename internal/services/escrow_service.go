package services

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/config"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/repositories"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/ton"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// escrowStateGetter is the contract get-method reporting the on-chain
// lifecycle stage.
const escrowStateGetter = "escrowState"

// Contract getter values mapped to stored escrow states.
var chainStateNames = map[int64]string{
	0: models.EscrowStateInit,
	1: models.EscrowStateFunded,
	2: models.EscrowStateReleased,
	3: models.EscrowStateRefunded,
}

// ChainAPI is the slice of the TON client the escrow flow needs.
type ChainAPI interface {
	GetAccountState(ctx context.Context, addr string) (*ton.AccountState, error)
	RunGetMethodInt(ctx context.Context, addr, method string) (int64, error)
}

// WalletAPI sends trigger messages from the platform wallet.
type WalletAPI interface {
	Configured() bool
	Address() string
	SendTrigger(ctx context.Context, to string, amountNano int64, opcode uint32) error
}

// EscrowService derives escrow contracts, verifies deposits and drives
// release/refund triggers through the gas ladder.
type EscrowService struct {
	escrowRepo *repositories.EscrowRepo
	dealRepo   *repositories.DealRepo
	chain      ChainAPI
	wallet     WalletAPI
	retry      GasRetryPolicy
	cfg        *config.Config
	log        *zap.Logger
}

func NewEscrowService(
	escrowRepo *repositories.EscrowRepo,
	dealRepo *repositories.DealRepo,
	chain ChainAPI,
	wallet WalletAPI,
	cfg *config.Config,
	log *zap.Logger,
) *EscrowService {
	return &EscrowService{
		escrowRepo: escrowRepo,
		dealRepo:   dealRepo,
		chain:      chain,
		wallet:     wallet,
		retry:      DefaultGasRetryPolicy(),
		cfg:        cfg,
		log:        log,
	}
}

// dealNonce derives the contract nonce from the deal UUID: first 8 bytes
// big-endian with the sign bit cleared, so two deals never share a contract
// address.
func dealNonce(id uuid.UUID) int64 {
	return int64(binary.BigEndian.Uint64(id[:8]) &^ (1 << 63))
}

// priceToNano converts a decimal TON amount string to nanoTON.
func priceToNano(price string) (int64, error) {
	r, ok := new(big.Rat).SetString(price)
	if !ok || r.Sign() < 0 {
		return 0, fmt.Errorf("invalid price %q", price)
	}
	nano := new(big.Rat).Mul(r, big.NewRat(1_000_000_000, 1))
	if !nano.IsInt() {
		// Sub-nano precision is truncated.
		nano = new(big.Rat).SetInt(new(big.Int).Quo(nano.Num(), nano.Denom()))
	}
	n := nano.Num()
	if !n.IsInt64() {
		return 0, fmt.Errorf("price %q out of range", price)
	}
	return n.Int64(), nil
}

func (s *EscrowService) params(deal *models.Deal, advertiserAddr, ownerAddr string) (ton.EscrowParams, error) {
	amount, err := priceToNano(deal.Price)
	if err != nil {
		return ton.EscrowParams{}, err
	}
	return ton.EscrowParams{
		DealNonce:         dealNonce(deal.ID),
		AdvertiserAddress: advertiserAddr,
		OwnerAddress:      ownerAddr,
		PlatformAddress:   s.cfg.PlatformWalletAddress,
		AmountNano:        amount,
		FeePercent:        s.cfg.PlatformFeePercent,
	}, nil
}

// CreateForDeal derives the escrow contract address for the deal and
// records it. Idempotent: an existing escrow row wins, so concurrent
// callers converge on one contract.
func (s *EscrowService) CreateForDeal(ctx context.Context, deal *models.Deal, advertiserAddr, ownerAddr string) (*models.Escrow, error) {
	if existing, err := s.escrowRepo.GetByDealID(ctx, deal.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	if s.cfg.PlatformWalletAddress == "" || s.cfg.EscrowCodeHex == "" {
		return nil, fmt.Errorf("escrow not configured: platform wallet address and contract code required")
	}

	p, err := s.params(deal, advertiserAddr, ownerAddr)
	if err != nil {
		return nil, err
	}
	contractAddr, err := ton.EscrowContractAddress(s.cfg.EscrowCodeHex, p, s.cfg.TONNetwork != "mainnet")
	if err != nil {
		return nil, fmt.Errorf("derive escrow address: %w", err)
	}

	platform := s.cfg.PlatformWalletAddress
	escrow := &models.Escrow{
		ID:                uuid.New(),
		DealID:            deal.ID,
		ContractAddress:   &contractAddr,
		AdvertiserAddress: &advertiserAddr,
		OwnerAddress:      &ownerAddr,
		PlatformAddress:   &platform,
		AmountNano:        p.AmountNano,
		FeePercent:        p.FeePercent,
		OnChainState:      models.EscrowStateInit,
	}
	if err := s.escrowRepo.Create(ctx, escrow); err != nil {
		return nil, err
	}
	if err := s.dealRepo.SetEscrowAddress(ctx, deal.ID, contractAddr); err != nil {
		return nil, err
	}
	deal.EscrowAddress = &contractAddr

	s.log.Info("escrow contract derived",
		zap.String("deal", deal.ID.String()),
		zap.String("address", contractAddr),
		zap.Int64("amount_nano", p.AmountNano))
	return escrow, nil
}

// StateInitBOC returns the base64 state-init cell the advertiser's wallet
// attaches to the deploying deposit transfer.
func (s *EscrowService) StateInitBOC(ctx context.Context, dealID uuid.UUID) (string, error) {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return "", err
	}
	escrow, err := s.escrowRepo.GetByDealID(ctx, dealID)
	if err != nil {
		return "", err
	}
	if escrow.AdvertiserAddress == nil || escrow.OwnerAddress == nil {
		return "", fmt.Errorf("escrow for deal %s has no party addresses", dealID)
	}
	p, err := s.params(deal, *escrow.AdvertiserAddress, *escrow.OwnerAddress)
	if err != nil {
		return "", err
	}
	return ton.EscrowStateInitBOC(s.cfg.EscrowCodeHex, p)
}

// depositSatisfied applies the 10% tolerance: a deposit short of the full
// amount by gas fees still counts.
func depositSatisfied(balanceNano, expectedNano int64) bool {
	return balanceNano*10 >= expectedNano*9
}

// destroyed reports whether the contract account no longer exists. Escrow
// contracts self-destruct after paying out.
func destroyed(acc *ton.AccountState) bool {
	if acc.Status == ton.AccountStatusNonExist || acc.Status == ton.AccountStatusUninit {
		return true
	}
	return acc.Status != ton.AccountStatusActive && acc.Balance == 0
}

// VerifyDeposit checks whether the advertiser's deposit reached the
// contract. Only meaningful while the escrow is in its initial state.
// Returns true when the escrow moved to funded.
func (s *EscrowService) VerifyDeposit(ctx context.Context, escrow *models.Escrow) (bool, error) {
	if escrow.OnChainState != models.EscrowStateInit {
		return false, nil
	}
	if escrow.ContractAddress == nil {
		return false, fmt.Errorf("escrow %s has no contract address", escrow.ID)
	}
	addr := *escrow.ContractAddress

	acc, err := s.chain.GetAccountState(ctx, addr)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrChainUnavailable, err)
	}
	if acc.Status != ton.AccountStatusActive {
		return false, nil
	}

	// The getter is the primary source of truth on deployed contracts.
	// When it reports init or is unavailable, fall back to the balance
	// check with gas tolerance.
	state := models.EscrowStateFunded
	chainState, err := s.chain.RunGetMethodInt(ctx, addr, escrowStateGetter)
	if err == nil && chainState >= 1 {
		if name, ok := chainStateNames[chainState]; ok {
			state = name
		}
	} else if !depositSatisfied(acc.Balance, escrow.AmountNano) {
		return false, nil
	}

	ok, err := s.escrowRepo.MarkFunded(ctx, escrow.ID, state, time.Now())
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	escrow.OnChainState = state
	s.log.Info("escrow deposit verified",
		zap.String("deal", escrow.DealID.String()),
		zap.String("address", addr),
		zap.String("state", state))
	return true, nil
}

// triggerConfirmed reports whether a release/refund trigger was processed:
// either the contract destroyed itself after paying out, or its getter
// reports a terminal state.
func (s *EscrowService) triggerConfirmed(ctx context.Context, addr string) (bool, error) {
	acc, err := s.chain.GetAccountState(ctx, addr)
	if err != nil {
		return false, err
	}
	if destroyed(acc) {
		return true, nil
	}
	chainState, err := s.chain.RunGetMethodInt(ctx, addr, escrowStateGetter)
	if err != nil {
		return false, err
	}
	return chainState >= 2, nil
}

// TriggerRelease sends the release opcode to the contract.
func (s *EscrowService) TriggerRelease(ctx context.Context, escrow *models.Escrow) error {
	return s.trigger(ctx, escrow, ton.ReleaseOpcode, models.EscrowStateReleaseSent)
}

// TriggerRefund sends the refund opcode to the contract.
func (s *EscrowService) TriggerRefund(ctx context.Context, escrow *models.Escrow) error {
	return s.trigger(ctx, escrow, ton.RefundOpcode, models.EscrowStateRefundSent)
}

// trigger walks the gas ladder. Whatever happens, the escrow always leaves
// as sentState: an unconfirmed or errored send may still land on chain, so
// the completion monitor owns the final verdict.
func (s *EscrowService) trigger(ctx context.Context, escrow *models.Escrow, opcode uint32, sentState string) error {
	if escrow.OnChainState != models.EscrowStateFunded {
		return fmt.Errorf("escrow %s is %s, expected funded", escrow.ID, escrow.OnChainState)
	}
	if !s.wallet.Configured() {
		return ErrWalletNotConfigured
	}
	if escrow.ContractAddress == nil {
		return fmt.Errorf("escrow %s has no contract address", escrow.ID)
	}
	addr := *escrow.ContractAddress

	confirmed, runErr := s.retry.Run(ctx,
		func(ctx context.Context, valueNano int64) error {
			err := s.wallet.SendTrigger(ctx, addr, valueNano, opcode)
			if err != nil {
				s.log.Warn("escrow trigger send failed",
					zap.String("deal", escrow.DealID.String()),
					zap.Int64("value_nano", valueNano),
					zap.Error(err))
			}
			return err
		},
		func(ctx context.Context) (bool, error) {
			return s.triggerConfirmed(ctx, addr)
		},
	)
	if runErr != nil && ctx.Err() != nil {
		return runErr
	}

	ok, err := s.escrowRepo.UpdateStateCAS(ctx, escrow.ID, models.EscrowStateFunded, sentState)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	escrow.OnChainState = sentState

	if confirmed {
		s.log.Info("escrow trigger confirmed",
			zap.String("deal", escrow.DealID.String()),
			zap.String("state", sentState))
	} else {
		s.log.Warn("escrow trigger unconfirmed after ladder, monitor will verify",
			zap.String("deal", escrow.DealID.String()),
			zap.String("state", sentState),
			zap.Error(runErr))
	}
	return nil
}

// settledStateFor infers the terminal state of a destroyed contract from
// the trigger that was sent to it.
func settledStateFor(sentState string) string {
	if sentState == models.EscrowStateRefundSent {
		return models.EscrowStateRefunded
	}
	return models.EscrowStateReleased
}

// VerifySettlement checks whether an escrow reached a terminal contract
// state. Covers escrows with a sent trigger and, as a safety net, funded
// escrows settled by a trigger this instance never sent. Returns the
// terminal state and true once the payout is confirmed.
func (s *EscrowService) VerifySettlement(ctx context.Context, escrow *models.Escrow) (string, bool, error) {
	funded := escrow.OnChainState == models.EscrowStateFunded
	if !escrow.Sent() && !funded {
		return "", false, nil
	}
	if escrow.ContractAddress == nil {
		return "", false, fmt.Errorf("escrow %s has no contract address", escrow.ID)
	}
	addr := *escrow.ContractAddress

	acc, err := s.chain.GetAccountState(ctx, addr)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrChainUnavailable, err)
	}
	if destroyed(acc) {
		if funded {
			// Without a sent trigger a destroyed contract does not say
			// which way the funds went. Leave it for operator review.
			s.log.Warn("funded escrow contract destroyed without a recorded trigger",
				zap.String("deal", escrow.DealID.String()),
				zap.String("address", addr))
			return "", false, nil
		}
		return settledStateFor(escrow.OnChainState), true, nil
	}
	if acc.Status != ton.AccountStatusActive {
		return "", false, nil
	}

	chainState, err := s.chain.RunGetMethodInt(ctx, addr, escrowStateGetter)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrChainUnavailable, err)
	}
	if chainState >= 2 {
		if name, ok := chainStateNames[chainState]; ok {
			return name, true, nil
		}
		if funded {
			return "", false, fmt.Errorf("escrow %s reports unknown contract state %d", escrow.ID, chainState)
		}
		return settledStateFor(escrow.OnChainState), true, nil
	}
	if chainState == 1 && !funded {
		// Contract swallowed the trigger but stayed funded.
		s.log.Warn("escrow trigger rejected by contract, still funded",
			zap.String("deal", escrow.DealID.String()),
			zap.String("sent_state", escrow.OnChainState))
	}
	return "", false, nil
}
