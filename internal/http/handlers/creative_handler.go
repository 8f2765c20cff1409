package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/http/dto"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/repositories"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/services"
)

type CreativeHandler struct {
	creatives *services.CreativeService
	userRepo  *repositories.UserRepo
	log       *zap.Logger
}

func NewCreativeHandler(creatives *services.CreativeService, userRepo *repositories.UserRepo, log *zap.Logger) *CreativeHandler {
	return &CreativeHandler{creatives: creatives, userRepo: userRepo, log: log}
}

func (h *CreativeHandler) Submit(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}

	var req dto.SubmitCreativeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	user, err := currentUser(c, h.userRepo)
	if err != nil {
		return fail(c, err)
	}

	version, err := h.creatives.Submit(c.Context(), dealID, user, req.Text, req.EntitiesJSON, req.MediaItems)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: version})
}

func (h *CreativeHandler) Approve(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}

	user, err := currentUser(c, h.userRepo)
	if err != nil {
		return fail(c, err)
	}

	if err := h.creatives.Approve(c.Context(), dealID, user); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *CreativeHandler) RequestChanges(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}

	var req dto.RequestCreativeChangesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	user, err := currentUser(c, h.userRepo)
	if err != nil {
		return fail(c, err)
	}

	if err := h.creatives.RequestChanges(c.Context(), dealID, user, req.Feedback); err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *CreativeHandler) History(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}

	versions, err := h.creatives.History(c.Context(), dealID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: versions})
}
