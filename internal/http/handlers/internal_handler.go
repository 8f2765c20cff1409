package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/http/dto"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/services"
)

// InternalHandler serves callbacks from the bot service.
type InternalHandler struct {
	deals    *services.DealService
	postings *services.PostingService
	log      *zap.Logger
}

func NewInternalHandler(deals *services.DealService, postings *services.PostingService, log *zap.Logger) *InternalHandler {
	return &InternalHandler{deals: deals, postings: postings, log: log}
}

// SystemAction applies a system-actor transition on behalf of the bot
// service, for example confirm_escrow after an out-of-band check.
// POST /internal/deals/:id/system-actions/:action
func (h *InternalHandler) SystemAction(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}
	action := c.Params("action")
	if action == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "action is required"})
	}

	if err := h.deals.SystemTransition(c.Context(), dealID, action, false); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// ReportPostEdit fails retention immediately for an edited channel post,
// without waiting for the periodic sweep.
// POST /internal/posts/edited
func (h *InternalHandler) ReportPostEdit(c *fiber.Ctx) error {
	var req dto.ReportPostEditRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.TelegramChannelID == 0 || req.TelegramMessageID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "telegram_channel_id and telegram_message_id are required"})
	}

	failed, err := h.postings.FailRetentionOnEdit(c.Context(), req.TelegramChannelID, req.TelegramMessageID)
	if err != nil {
		h.log.Error("failed to process post edit",
			zap.Int64("channel", req.TelegramChannelID),
			zap.Int64("message", req.TelegramMessageID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"retention_failed": failed}})
}
