// Package notify dispatches user-facing notification events after a
// ledger or order mutation has committed. Delivery (email, telegram,
// in-app) is handled by a separate consumer; this side only publishes.
// A failed publish is logged and never affects the committed state.
package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event kinds mirror the order/wallet lifecycle moments that users are
// told about.
const (
	EventOrderCreated     = "order_created"
	EventOrderPaid        = "order_paid"
	EventOrderProcessing  = "order_processing"
	EventOrderCompleted   = "order_completed"
	EventOrderCanceled    = "order_canceled"
	EventOrderRefunded    = "order_refunded"
	EventDepositConfirmed = "deposit_confirmed"
	EventDepositRejected  = "deposit_rejected"
)

type Event struct {
	UserID    uuid.UUID       `json:"user_id"`
	Kind      string          `json:"kind"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Message   string          `json:"message,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Nop discards every event. Used in tests and when Redis is not
// configured.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}
