package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/http/dto"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/middleware"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/services"
)

type WalletHandler struct {
	wallets *services.WalletService
	log     *zap.Logger
}

func NewWalletHandler(wallets *services.WalletService, log *zap.Logger) *WalletHandler {
	return &WalletHandler{wallets: wallets, log: log}
}

// GeneratePayload issues a TON Proof nonce.
// POST /me/wallet/proof-payload
func (h *WalletHandler) GeneratePayload(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	payload, err := h.wallets.GeneratePayload(c.Context(), userID)
	if err != nil {
		h.log.Error("failed to generate proof payload", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(fiber.Map{"payload": payload})
}

// ConnectWallet verifies the TON Proof and stores the payout wallet.
// POST /me/wallet/connect
func (h *WalletHandler) ConnectWallet(c *fiber.Ctx) error {
	var req dto.ConnectWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	if req.Address == "" || req.PublicKey == "" || req.Proof.Signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "address, public_key, and proof.signature are required"})
	}
	if req.AddressFriendly == "" {
		req.AddressFriendly = req.Address
	}

	userID := middleware.GetUserID(c)
	user, err := h.wallets.ConnectWallet(c.Context(), userID, services.ConnectWalletRequest{
		Address:         req.Address,
		AddressFriendly: req.AddressFriendly,
		Network:         req.Network,
		PublicKey:       req.PublicKey,
		Proof:           req.Proof,
	})
	if err != nil {
		h.log.Debug("wallet connect failed", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}
