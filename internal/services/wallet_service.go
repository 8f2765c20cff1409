package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/config"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/repositories"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/ton"
)

const proofPayloadTTL = 10 * time.Minute

// WalletService handles TON Connect proof verification for payout wallets.
// A wallet attached here becomes the default payout address used when
// escrow contracts are created for the user's deals.
type WalletService struct {
	userRepo  *repositories.UserRepo
	auditRepo *repositories.AuditRepo
	deals     *DealService
	rdb       *redis.Client
	cfg       *config.Config
	log       *zap.Logger
}

func NewWalletService(
	userRepo *repositories.UserRepo,
	auditRepo *repositories.AuditRepo,
	deals *DealService,
	rdb *redis.Client,
	cfg *config.Config,
	log *zap.Logger,
) *WalletService {
	return &WalletService{
		userRepo:  userRepo,
		auditRepo: auditRepo,
		deals:     deals,
		rdb:       rdb,
		cfg:       cfg,
		log:       log,
	}
}

func proofPayloadKey(payload string) string {
	return "tonproof:payload:" + payload
}

// GeneratePayload issues a nonce the client signs inside its TON Proof.
func (s *WalletService) GeneratePayload(ctx context.Context, userID uuid.UUID) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate proof payload: %w", err)
	}
	payload := hex.EncodeToString(buf)

	if err := s.rdb.Set(ctx, proofPayloadKey(payload), userID.String(), proofPayloadTTL).Err(); err != nil {
		return "", fmt.Errorf("store proof payload: %w", err)
	}
	return payload, nil
}

type ConnectWalletRequest struct {
	Address         string    `json:"address"`          // raw: "0:abc..."
	AddressFriendly string    `json:"address_friendly"` // "EQA..." / "UQA..."
	Network         string    `json:"network"`          // "mainnet" / "testnet"
	PublicKey       string    `json:"public_key"`       // hex
	Proof           ton.Proof `json:"proof"`
}

// ConnectWallet verifies a TON Proof and attaches the wallet to the user,
// then retries escrow creation for deals that were blocked on the wallet.
func (s *WalletService) ConnectWallet(ctx context.Context, userID uuid.UUID, req ConnectWalletRequest) (*models.User, error) {
	// Consume the nonce so a captured proof cannot be replayed.
	stored, err := s.rdb.GetDel(ctx, proofPayloadKey(req.Proof.Payload)).Result()
	if err != nil || stored != userID.String() {
		return nil, fmt.Errorf("invalid or expired proof payload")
	}

	workchain, addrHash, err := ton.ParseRawAddress(req.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid TON address: %w", err)
	}

	if req.Network != "" && req.Network != s.cfg.TONNetwork {
		return nil, fmt.Errorf("network mismatch: expected %s, got %s", s.cfg.TONNetwork, req.Network)
	}

	if err := ton.VerifyProof(req.PublicKey, addrHash, workchain, req.Proof, s.cfg.TONProofAllowedDomains); err != nil {
		return nil, fmt.Errorf("TON proof verification failed: %w", err)
	}

	if err := s.userRepo.SetWallet(ctx, userID, req.AddressFriendly); err != nil {
		return nil, fmt.Errorf("save wallet: %w", err)
	}

	_ = s.auditRepo.Log(ctx, models.AuditLog{
		ActorUserID: &userID,
		ActorType:   "user",
		Action:      "wallet_connected",
		EntityType:  "user",
		EntityID:    &userID,
		Meta:        map[string]any{"address": req.AddressFriendly, "network": req.Network},
	})

	s.log.Info("wallet connected",
		zap.String("user_id", userID.String()),
		zap.String("address", req.AddressFriendly),
	)

	s.deals.RetryEscrowForUser(ctx, userID)

	return s.userRepo.GetByID(ctx, userID)
}

// IsVerifiedWallet reports whether the address is the user's proof-verified
// payout wallet. Per-deal overrides must pass through ConnectWallet first.
func (s *WalletService) IsVerifiedWallet(user *models.User, address string) bool {
	return user.WalletAddress != nil && *user.WalletAddress == address
}
