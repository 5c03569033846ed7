package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/hoangnm-dev/gametopup_be/internal/models"
)

type CatalogHandler struct {
	DB *gorm.DB
}

// ListGames returns every game that is not retired. Games under
// maintenance are still listed so the storefront can show the banner,
// they just cannot be ordered against.
func (h *CatalogHandler) ListGames(c *fiber.Ctx) error {
	var games []models.Game
	err := h.DB.
		Where("status <> ?", models.GameStatusInactive).
		Order("display_order asc, name asc").
		Find(&games).Error
	if err != nil {
		return serverError(c)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    games,
	})
}

func (h *CatalogHandler) GetGame(c *fiber.Ctx) error {
	slug := c.Params("slug")

	var game models.Game
	err := h.DB.Where("slug = ?", slug).First(&game).Error
	if err == gorm.ErrRecordNotFound {
		return fail(c, fiber.StatusNotFound, "Game not found")
	}
	if err != nil {
		return serverError(c)
	}

	var packages []models.GamePackage
	err = h.DB.
		Where("game_id = ? AND is_active = ?", game.ID, true).
		Order("display_order asc, price_usd asc").
		Find(&packages).Error
	if err != nil {
		return serverError(c)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"game":     game,
			"packages": packages,
		},
	})
}
