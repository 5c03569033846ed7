package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/hoangnm-dev/gametopup_be/internal/services/deposits"
	"github.com/hoangnm-dev/gametopup_be/internal/services/orders"
)

// AdminHandler groups the back-office money operations. Every route it
// serves sits behind RequireRoles("admin").
type AdminHandler struct {
	Deposits *deposits.DepositService
	Crypto   *deposits.CryptoDepositService
	Orders   *orders.OrderService
}

func (h *AdminHandler) ListPendingDeposits(c *fiber.Ctx) error {
	limit, offset := pageParams(c)
	list, err := h.Deposits.ListPending(limit, offset)
	if err != nil {
		return serverError(c)
	}
	return c.JSON(fiber.Map{"success": true, "data": list})
}

func (h *AdminHandler) ConfirmDeposit(c *fiber.Ctx) error {
	adminID, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return fail(c, fiber.StatusBadRequest, "invalid deposit id")
	}

	res, err := h.Deposits.Confirm(c.Context(), uint(id), adminID)
	if err != nil {
		if errors.Is(err, deposits.ErrDepositNotFound) {
			return fail(c, fiber.StatusNotFound, "Deposit not found")
		}
		return serverError(c)
	}
	if res.AlreadyProcessed {
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Deposit was already processed",
			"data":    res.Deposit,
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Deposit confirmed, wallet credited",
		"data": fiber.Map{
			"deposit":     res.Deposit,
			"transaction": res.Transaction,
		},
	})
}

type RejectReq struct {
	Note string `json:"note"`
}

func (h *AdminHandler) RejectDeposit(c *fiber.Ctx) error {
	adminID, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return fail(c, fiber.StatusBadRequest, "invalid deposit id")
	}
	var req RejectReq
	_ = c.BodyParser(&req)

	res, err := h.Deposits.Reject(c.Context(), uint(id), adminID, req.Note)
	if err != nil {
		if errors.Is(err, deposits.ErrDepositNotFound) {
			return fail(c, fiber.StatusNotFound, "Deposit not found")
		}
		return serverError(c)
	}
	msg := "Deposit rejected"
	if res.AlreadyProcessed {
		msg = "Deposit was already processed"
	}
	return c.JSON(fiber.Map{"success": true, "message": msg, "data": res.Deposit})
}

type BatchDepositReq struct {
	DepositIDs []uint `json:"deposit_ids"`
	Note       string `json:"note"`
}

func (h *AdminHandler) ConfirmDepositsBatch(c *fiber.Ctx) error {
	adminID, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}
	var req BatchDepositReq
	if err := c.BodyParser(&req); err != nil || len(req.DepositIDs) == 0 {
		return fail(c, fiber.StatusBadRequest, "deposit_ids is required")
	}

	results := h.Deposits.ConfirmBatch(c.Context(), req.DepositIDs, adminID)
	return c.JSON(fiber.Map{"success": true, "data": results})
}

func (h *AdminHandler) RejectDepositsBatch(c *fiber.Ctx) error {
	adminID, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}
	var req BatchDepositReq
	if err := c.BodyParser(&req); err != nil || len(req.DepositIDs) == 0 {
		return fail(c, fiber.StatusBadRequest, "deposit_ids is required")
	}

	results := h.Deposits.RejectBatch(c.Context(), req.DepositIDs, adminID, req.Note)
	return c.JSON(fiber.Map{"success": true, "data": results})
}

func (h *AdminHandler) ListPendingCryptoDeposits(c *fiber.Ctx) error {
	limit, offset := pageParams(c)
	list, err := h.Crypto.ListPendingVerification(limit, offset)
	if err != nil {
		return serverError(c)
	}
	return c.JSON(fiber.Map{"success": true, "data": list})
}

func (h *AdminHandler) ConfirmCryptoDeposit(c *fiber.Ctx) error {
	adminID, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return fail(c, fiber.StatusBadRequest, "invalid deposit id")
	}

	res, err := h.Crypto.Confirm(c.Context(), uint(id), adminID)
	if err != nil {
		switch {
		case errors.Is(err, deposits.ErrDepositNotFound):
			return fail(c, fiber.StatusNotFound, "Deposit not found")
		case errors.Is(err, deposits.ErrRelatedOrderMissing):
			// Integrity fault, nothing was committed.
			return serverError(c)
		default:
			return serverError(c)
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": res.Message,
		"data": fiber.Map{
			"deposit": res.Deposit,
			"order":   res.Order,
		},
	})
}

func (h *AdminHandler) RejectCryptoDeposit(c *fiber.Ctx) error {
	adminID, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return fail(c, fiber.StatusBadRequest, "invalid deposit id")
	}
	var req RejectReq
	_ = c.BodyParser(&req)

	res, err := h.Crypto.Reject(c.Context(), uint(id), adminID, req.Note)
	if err != nil {
		if errors.Is(err, deposits.ErrDepositNotFound) {
			return fail(c, fiber.StatusNotFound, "Deposit not found")
		}
		return serverError(c)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": res.Message,
		"data": fiber.Map{
			"deposit": res.Deposit,
			"order":   res.Order,
		},
	})
}

func (h *AdminHandler) MarkOrderProcessing(c *fiber.Ctx) error {
	adminID, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	order, err := h.Orders.MarkProcessing(c.Context(), c.Params("orderId"), adminID)
	if err != nil {
		return adminOrderError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Order is being processed", "data": order})
}

func (h *AdminHandler) MarkOrderCompleted(c *fiber.Ctx) error {
	adminID, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	order, err := h.Orders.MarkCompleted(c.Context(), c.Params("orderId"), adminID)
	if err != nil {
		return adminOrderError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Order completed", "data": order})
}

type AdminCancelReq struct {
	Note string `json:"note"`
}

func (h *AdminHandler) CancelOrder(c *fiber.Ctx) error {
	adminID, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}
	var req AdminCancelReq
	_ = c.BodyParser(&req)

	res, err := h.Orders.AdminCancel(c.Context(), c.Params("orderId"), adminID, req.Note)
	if err != nil {
		return adminOrderError(c, err)
	}

	data := fiber.Map{"order": res.Order}
	if res.Refund != nil {
		data["refund"] = res.Refund
	}
	return c.JSON(fiber.Map{"success": true, "message": "Order canceled", "data": data})
}

type BulkCancelReq struct {
	OrderIDs []string `json:"order_ids"`
	Note     string   `json:"note"`
}

func (h *AdminHandler) BulkCancelOrders(c *fiber.Ctx) error {
	adminID, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}
	var req BulkCancelReq
	if err := c.BodyParser(&req); err != nil || len(req.OrderIDs) == 0 {
		return fail(c, fiber.StatusBadRequest, "order_ids is required")
	}

	results := h.Orders.BulkCancel(c.Context(), req.OrderIDs, adminID, req.Note)
	return c.JSON(fiber.Map{"success": true, "data": results})
}

func adminOrderError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		return fail(c, fiber.StatusNotFound, "Order not found")
	case errors.Is(err, orders.ErrNotCancelable),
		errors.Is(err, orders.ErrInvalidTransition):
		return fail(c, fiber.StatusConflict, err.Error())
	default:
		return serverError(c)
	}
}
