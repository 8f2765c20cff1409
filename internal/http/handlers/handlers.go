package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/http/dto"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/middleware"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/repositories"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/services"
)

func currentUser(c *fiber.Ctx, users *repositories.UserRepo) (*models.User, error) {
	return users.GetByID(c.Context(), middleware.GetUserID(c))
}

// fail maps service errors onto HTTP statuses.
func fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusBadRequest

	var ite *models.InvalidTransitionError
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrConflict):
		status = fiber.StatusConflict
	case errors.As(err, &ite):
		status = fiber.StatusConflict
	}

	return c.Status(status).JSON(dto.ErrorResponse{Error: err.Error()})
}
