package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/http/dto"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/repositories"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/services"
)

type DealHandler struct {
	deals    *services.DealService
	postings *services.PostingService
	escrow   *services.EscrowService
	wallets  *services.WalletService
	userRepo *repositories.UserRepo
	log      *zap.Logger
}

func NewDealHandler(
	deals *services.DealService,
	postings *services.PostingService,
	escrow *services.EscrowService,
	wallets *services.WalletService,
	userRepo *repositories.UserRepo,
	log *zap.Logger,
) *DealHandler {
	return &DealHandler{
		deals:    deals,
		postings: postings,
		escrow:   escrow,
		wallets:  wallets,
		userRepo: userRepo,
		log:      log,
	}
}

func (h *DealHandler) CreateDeal(c *fiber.Ctx) error {
	var req dto.CreateDealRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	user, err := currentUser(c, h.userRepo)
	if err != nil {
		return fail(c, err)
	}

	switch {
	case req.ListingID != "":
		listingID, err := uuid.Parse(req.ListingID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid listing_id"})
		}
		deal, err := h.deals.CreateDealFromListing(c.Context(), user, listingID, req.Brief, req.Price)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: deal})

	case req.CampaignID != "":
		campaignID, err := uuid.Parse(req.CampaignID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign_id"})
		}
		channelID, err := uuid.Parse(req.ChannelID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "channel_id is required for campaign deals"})
		}
		deal, err := h.deals.CreateDealFromCampaign(c.Context(), user, campaignID, channelID, req.Price, req.Description)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: deal})

	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "listing_id or campaign_id is required"})
	}
}

func (h *DealHandler) GetDeal(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}

	user, err := currentUser(c, h.userRepo)
	if err != nil {
		return fail(c, err)
	}

	detail, err := h.deals.GetDealDetail(c.Context(), dealID, user)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: detail})
}

// Action applies a named lifecycle action on behalf of the caller.
// POST /deals/:id/actions/:action
func (h *DealHandler) Action(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}
	action := c.Params("action")
	if action == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "action is required"})
	}

	user, err := currentUser(c, h.userRepo)
	if err != nil {
		return fail(c, err)
	}

	deal, err := h.deals.Transition(c.Context(), dealID, action, user)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: deal})
}

func (h *DealHandler) AddMessage(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}

	var req dto.DealMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	user, err := currentUser(c, h.userRepo)
	if err != nil {
		return fail(c, err)
	}

	msg, err := h.deals.AddDealMessage(c.Context(), dealID, user, req.Text)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: msg})
}

// ConfirmWallet attaches the caller's proof-verified wallet as the payout
// address for this deal.
func (h *DealHandler) ConfirmWallet(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}

	var req dto.ConfirmDealWalletRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	user, err := currentUser(c, h.userRepo)
	if err != nil {
		return fail(c, err)
	}

	address := req.Address
	if address == "" && user.WalletAddress != nil {
		address = *user.WalletAddress
	}
	if !h.wallets.IsVerifiedWallet(user, address) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "wallet must pass TON proof verification first"})
	}

	if err := h.deals.ConfirmOwnerWallet(c.Context(), dealID, user, address); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// GetPaymentInfo returns the escrow address, amount and state-init BOC the
// advertiser's wallet needs to fund the deal.
func (h *DealHandler) GetPaymentInfo(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}

	user, err := currentUser(c, h.userRepo)
	if err != nil {
		return fail(c, err)
	}

	detail, err := h.deals.GetDealDetail(c.Context(), dealID, user)
	if err != nil {
		return fail(c, err)
	}
	if detail.Escrow == nil || detail.Escrow.ContractAddress == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "escrow not created yet"})
	}

	boc, err := h.escrow.StateInitBOC(c.Context(), dealID)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.PaymentInfoResponse{
		DealID:        dealID.String(),
		EscrowAddress: *detail.Escrow.ContractAddress,
		AmountNano:    detail.Escrow.AmountNano,
		StateInitBOC:  boc,
		State:         detail.Escrow.OnChainState,
	}})
}

// CheckRetention runs an on-demand retention verification. Violations
// finalize immediately; an intact post past the window settles the deal.
func (h *DealHandler) CheckRetention(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}

	user, err := currentUser(c, h.userRepo)
	if err != nil {
		return fail(c, err)
	}
	if _, err := h.deals.GetDealDetail(c.Context(), dealID, user); err != nil {
		return fail(c, err)
	}

	result, err := h.postings.CheckRetention(c.Context(), dealID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.RetentionCheckResponse{
		OK:        result.OK,
		Elapsed:   result.Elapsed,
		Finalized: result.Finalized,
		Reason:    result.Reason,
	}})
}
