package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/hoangnm-dev/gametopup_be/internal/services/deposits"
	"github.com/hoangnm-dev/gametopup_be/internal/services/orders"
)

type DepositHandler struct {
	Deposits *deposits.DepositService
	Crypto   *deposits.CryptoDepositService
}

type SubmitDepositReq struct {
	Amount          decimal.Decimal `json:"amount"`
	TransactionHash string          `json:"transaction_hash"`
	FromAddress     string          `json:"from_address"`
}

// Submit records a manual top-up claim. It stays pending until an admin
// confirms it against the chain.
func (h *DepositHandler) Submit(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	var req SubmitDepositReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}

	dep, err := h.Deposits.Submit(c.Context(), uid, req.Amount,
		strings.TrimSpace(req.TransactionHash), strings.TrimSpace(req.FromAddress))
	if err != nil {
		if errors.Is(err, deposits.ErrInvalidAmount) {
			return fail(c, fiber.StatusUnprocessableEntity, err.Error())
		}
		return serverError(c)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Deposit submitted, awaiting confirmation",
		"data": fiber.Map{
			"deposit":         dep,
			"deposit_address": h.Deposits.ReceivingAddress,
		},
	})
}

func (h *DepositHandler) List(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	limit, offset := pageParams(c)
	list, err := h.Deposits.List(uid, limit, offset)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    list,
	})
}

type SubmitCryptoDepositReq struct {
	Amount         decimal.Decimal `json:"amount"`
	TxHash         string          `json:"tx_hash"`
	FromAddress    string          `json:"from_address"`
	RelatedOrderID *string         `json:"related_order_id"`
}

// SubmitCrypto records a claimed USDT transfer. Linking an order makes
// the confirmation auto-pay it.
func (h *DepositHandler) SubmitCrypto(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	var req SubmitCryptoDepositReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}

	dep, err := h.Crypto.Submit(c.Context(), uid, req.Amount,
		strings.TrimSpace(req.TxHash), strings.TrimSpace(req.FromAddress), req.RelatedOrderID)
	if err != nil {
		switch {
		case errors.Is(err, deposits.ErrDuplicateTxHash):
			return fail(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, deposits.ErrMissingTxHash),
			errors.Is(err, deposits.ErrInvalidAmount):
			return fail(c, fiber.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, deposits.ErrOrderNotPending):
			return fail(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, orders.ErrOrderNotFound):
			return fail(c, fiber.StatusNotFound, "Related order not found")
		default:
			return fail(c, fiber.StatusBadRequest, err.Error())
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Deposit submitted, awaiting verification",
		"data": fiber.Map{
			"deposit":         dep,
			"deposit_address": h.Crypto.ReceivingAddress,
		},
	})
}

func (h *DepositHandler) ListCrypto(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	limit, offset := pageParams(c)
	list, err := h.Crypto.List(uid, limit, offset)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    list,
	})
}
