package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/hoangnm-dev/gametopup_be/internal/services/wallet"
)

type WalletHandler struct {
	DB     *gorm.DB
	Wallet *wallet.WalletService
}

// Get returns the caller's wallet, creating it empty on first access.
func (h *WalletHandler) Get(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	w, err := h.Wallet.GetOrCreate(h.DB, uid)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    w,
	})
}

// History lists the caller's ledger entries, newest first.
func (h *WalletHandler) History(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	limit, offset := pageParams(c)
	trxs, total, err := h.Wallet.History(uid, limit, offset)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"transactions": trxs,
			"total":        total,
			"limit":        limit,
			"offset":       offset,
		},
	})
}
