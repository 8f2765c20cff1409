package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/http/dto"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/repositories"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/services"
)

type PostingHandler struct {
	postings *services.PostingService
	userRepo *repositories.UserRepo
	log      *zap.Logger
}

func NewPostingHandler(postings *services.PostingService, userRepo *repositories.UserRepo, log *zap.Logger) *PostingHandler {
	return &PostingHandler{postings: postings, userRepo: userRepo, log: log}
}

// Schedule commits the approved creative to a publication time.
func (h *PostingHandler) Schedule(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}

	var req dto.SchedulePostRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.ScheduledAt.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "scheduled_at is required"})
	}

	user, err := currentUser(c, h.userRepo)
	if err != nil {
		return fail(c, err)
	}

	posting, err := h.postings.SchedulePost(c.Context(), dealID, user, req.ScheduledAt)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: posting})
}
