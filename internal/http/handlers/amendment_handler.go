package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/http/dto"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/repositories"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/services"
)

type AmendmentHandler struct {
	amendments *services.AmendmentService
	userRepo   *repositories.UserRepo
	log        *zap.Logger
}

func NewAmendmentHandler(amendments *services.AmendmentService, userRepo *repositories.UserRepo, log *zap.Logger) *AmendmentHandler {
	return &AmendmentHandler{amendments: amendments, userRepo: userRepo, log: log}
}

func (h *AmendmentHandler) Propose(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}

	var req dto.ProposeAmendmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	user, err := currentUser(c, h.userRepo)
	if err != nil {
		return fail(c, err)
	}

	amendment, err := h.amendments.Propose(c.Context(), dealID, user, req.Price, req.PublishDate, req.Description)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: amendment})
}

func (h *AmendmentHandler) Resolve(c *fiber.Ctx) error {
	dealID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid deal id"})
	}
	amendmentID, err := uuid.Parse(c.Params("amendmentId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid amendment id"})
	}

	var req dto.ResolveAmendmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	user, err := currentUser(c, h.userRepo)
	if err != nil {
		return fail(c, err)
	}

	amendment, err := h.amendments.Resolve(c.Context(), dealID, amendmentID, user, req.Accept)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: amendment})
}
