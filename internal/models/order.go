package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCanceled       OrderStatus = "canceled"
	OrderStatusRefunded       OrderStatus = "refunded"
)

// orderTransitions is the full lifecycle graph. canceled -> refunded is
// taken only by the refund flow after it credits the wallet.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingPayment: {OrderStatusPaid, OrderStatusCanceled},
	OrderStatusPaid:           {OrderStatusProcessing, OrderStatusCanceled, OrderStatusRefunded},
	OrderStatusProcessing:     {OrderStatusCompleted, OrderStatusCanceled, OrderStatusRefunded},
	OrderStatusCanceled:       {OrderStatusRefunded},
}

// CanTransitionTo reports whether the lifecycle graph allows s -> next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no admin/user action may move the order on.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCanceled, OrderStatusRefunded:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodWallet PaymentMethod = "wallet"
	PaymentMethodCrypto PaymentMethod = "crypto"
)

type Order struct {
	ID      uint      `gorm:"primaryKey" json:"-"`
	OrderID string    `gorm:"size:20;uniqueIndex;not null" json:"order_id"` // GT-000001
	UserID  uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`

	GameID        uint  `gorm:"index;not null" json:"game_id"`
	GamePackageID *uint `gorm:"index" json:"game_package_id,omitempty"`

	// Game account details supplied by the customer. The password is
	// AES-encrypted before it reaches the database.
	GameUID       string `gorm:"size:200;not null" json:"game_uid"`
	GameUsername  string `gorm:"size:200" json:"game_username"`
	GamePassword  string `gorm:"size:500" json:"-"`
	CharacterName string `gorm:"size:200" json:"character_name"`
	GameEmail     string `gorm:"size:200" json:"game_email,omitempty"`
	GamePhone     string `gorm:"size:20" json:"game_phone,omitempty"`

	// Package snapshot taken at creation time. Later catalog edits must
	// never change what this order sells or costs.
	PackageNameSnapshot string          `gorm:"size:200" json:"package_name"`
	PackageTypeSnapshot string          `gorm:"size:20" json:"package_type"`
	PackageAmount       decimal.Decimal `gorm:"type:decimal(15,2)" json:"package_amount"`
	PackageUnit         string          `gorm:"size:50" json:"package_unit"`

	Price decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`

	PaymentMethod PaymentMethod `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentTxHash *string       `gorm:"size:255" json:"payment_tx_hash,omitempty"`

	Status OrderStatus `gorm:"type:varchar(20);default:'pending_payment';index" json:"status"`

	CustomerNote string `gorm:"type:text" json:"customer_note"`
	AdminNote    string `gorm:"type:text" json:"admin_note"`

	ProcessedBy *uuid.UUID `gorm:"type:uuid" json:"processed_by,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User        *User            `gorm:"foreignKey:UserID" json:"-"`
	Game        *Game            `gorm:"foreignKey:GameID" json:"game,omitempty"`
	GamePackage *GamePackage     `gorm:"foreignKey:GamePackageID" json:"-"`
	StatusLogs  []OrderStatusLog `gorm:"foreignKey:OrderRef" json:"status_logs,omitempty"`
}

// TotalAmount is what the customer owes, always read from the snapshot.
// There is currently no fee or tax on top of the package price.
func (o *Order) TotalAmount() decimal.Decimal {
	return o.Price
}

// OrderStatusLog records one lifecycle transition. Append-only, written
// in the same transaction as the transition itself. A nil ChangedBy
// means the system acted on its own.
type OrderStatusLog struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	OrderRef uint `gorm:"index;not null" json:"-"`

	OldStatus OrderStatus `gorm:"type:varchar(20)" json:"old_status"`
	NewStatus OrderStatus `gorm:"type:varchar(20);not null" json:"new_status"`

	ChangedBy *uuid.UUID `gorm:"type:uuid" json:"changed_by,omitempty"`
	Note      string     `gorm:"type:text" json:"note"`

	CreatedAt time.Time `json:"created_at"`

	Order *Order `gorm:"foreignKey:OrderRef" json:"-"`
}
