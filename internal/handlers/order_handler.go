package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/hoangnm-dev/gametopup_be/internal/models"
	"github.com/hoangnm-dev/gametopup_be/internal/services/orders"
	"github.com/hoangnm-dev/gametopup_be/internal/services/wallet"
)

type OrderHandler struct {
	Orders *orders.OrderService

	// Platform USDT receiving address, surfaced when a crypto payment
	// is requested.
	DepositAddress string
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	var in orders.CreateOrderInput
	if err := c.BodyParser(&in); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}

	order, err := h.Orders.Create(c.Context(), uid, in)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrGameUnavailable),
			errors.Is(err, orders.ErrPackageUnavailable),
			errors.Is(err, orders.ErrPackageMismatch):
			return fail(c, fiber.StatusUnprocessableEntity, err.Error())
		default:
			return fail(c, fiber.StatusBadRequest, err.Error())
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Order created",
		"data":    order,
	})
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	limit, offset := pageParams(c)
	status := models.OrderStatus(c.Query("status"))

	list, total, err := h.Orders.List(uid, status, limit, offset)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"orders": list,
			"total":  total,
			"limit":  limit,
			"offset": offset,
		},
	})
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	order, err := h.Orders.Get(c.Params("orderId"), uid)
	if errors.Is(err, orders.ErrOrderNotFound) {
		return fail(c, fiber.StatusNotFound, "Order not found")
	}
	if err != nil {
		return serverError(c)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    order,
	})
}

type PayOrderReq struct {
	PaymentMethod models.PaymentMethod `json:"payment_method"`
}

func (h *OrderHandler) Pay(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	var req PayOrderReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	method := req.PaymentMethod
	if method == "" {
		method = models.PaymentMethodWallet
	}

	res, err := h.Orders.Pay(c.Context(), c.Params("orderId"), uid, method, h.DepositAddress)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			return fail(c, fiber.StatusNotFound, "Order not found")
		case errors.Is(err, orders.ErrNotPayable):
			return fail(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, wallet.ErrInsufficientBalance):
			return fail(c, fiber.StatusUnprocessableEntity, "Insufficient wallet balance")
		default:
			return fail(c, fiber.StatusBadRequest, err.Error())
		}
	}

	if res.CryptoDirective {
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Submit a USDT deposit linked to this order to complete payment",
			"data": fiber.Map{
				"order":           res.Order,
				"payment_method":  models.PaymentMethodCrypto,
				"deposit_address": res.DepositAddress,
				"amount_due":      res.Order.TotalAmount(),
			},
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Order paid from wallet",
		"data":    res.Order,
	})
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	uid, err := currentUserID(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	order, err := h.Orders.Cancel(c.Context(), c.Params("orderId"), uid)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			return fail(c, fiber.StatusNotFound, "Order not found")
		case errors.Is(err, orders.ErrNotCancelable):
			return fail(c, fiber.StatusConflict, err.Error())
		default:
			return serverError(c)
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Order canceled",
		"data":    order,
	})
}
