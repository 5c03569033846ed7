package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletTrxType string

const (
	WalletTrxDeposit  WalletTrxType = "deposit"
	WalletTrxWithdraw WalletTrxType = "withdraw"
	WalletTrxPayment  WalletTrxType = "payment"
	WalletTrxRefund   WalletTrxType = "refund"
	WalletTrxBonus    WalletTrxType = "bonus"
)

// IsCredit reports whether entries of this type increase the balance.
func (t WalletTrxType) IsCredit() bool {
	switch t {
	case WalletTrxDeposit, WalletTrxRefund, WalletTrxBonus:
		return true
	}
	return false
}

type Wallet struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	UserID   uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Balance  decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"balance"`
	IsActive bool            `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

// WalletTransaction is the append-only ledger. Rows are never edited or
// deleted; (user_id, reference_id, type) is the idempotency key.
type WalletTransaction struct {
	ID     uint          `gorm:"primaryKey" json:"id"`
	UserID uuid.UUID     `gorm:"type:uuid;index:idx_wallet_trx_ref,priority:1;not null" json:"user_id"`
	Type   WalletTrxType `gorm:"type:varchar(20);index:idx_wallet_trx_ref,priority:3;not null" json:"type"`

	Amount        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"balance_after"`

	Description string  `gorm:"type:text" json:"description"`
	ReferenceID *string `gorm:"size:100;index:idx_wallet_trx_ref,priority:2" json:"reference_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

// SignedAmount is the amount as it affects the balance: positive for
// credit entries, negative for debit entries.
func (t *WalletTransaction) SignedAmount() decimal.Decimal {
	if t.Type.IsCredit() {
		return t.Amount
	}
	return t.Amount.Neg()
}
