package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DepositStatus string

const (
	DepositStatusPending   DepositStatus = "pending"
	DepositStatusConfirmed DepositStatus = "confirmed"
	DepositStatusRejected  DepositStatus = "rejected"
)

// Deposit is a manually verified external payment claim. Once confirmed
// or rejected it is terminal; the status never moves back to pending.
type Deposit struct {
	ID     uint            `gorm:"primaryKey" json:"id"`
	UserID uuid.UUID       `gorm:"type:uuid;index;not null" json:"user_id"`
	Amount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Status DepositStatus   `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	TransactionHash *string `gorm:"size:255" json:"transaction_hash,omitempty"`
	FromAddress     string  `gorm:"size:255" json:"from_address"`
	ToAddress       string  `gorm:"size:255" json:"to_address"`

	AdminNote   string     `gorm:"type:text" json:"admin_note"`
	ProcessedBy *uuid.UUID `gorm:"type:uuid" json:"processed_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

// LedgerReference is the reference_id written to the wallet ledger when
// this deposit is confirmed.
func (d *Deposit) LedgerReference() string {
	return fmt.Sprintf("deposit_%d", d.ID)
}

type CryptoDepositStatus string

const (
	CryptoDepositPendingVerification CryptoDepositStatus = "pending_verification"
	CryptoDepositConfirmed           CryptoDepositStatus = "confirmed"
	CryptoDepositRejected            CryptoDepositStatus = "rejected"
)

// CryptoDeposit is a claimed USDT transfer. The tx hash is unique
// system-wide so a hash can never be credited twice.
type CryptoDeposit struct {
	ID     uint                `gorm:"primaryKey" json:"id"`
	UserID uuid.UUID           `gorm:"type:uuid;index;not null" json:"user_id"`
	Amount decimal.Decimal     `gorm:"type:decimal(15,2);not null" json:"amount"`
	Status CryptoDepositStatus `gorm:"type:varchar(30);default:'pending_verification';index" json:"status"`

	TxHash      string `gorm:"size:255;uniqueIndex;not null" json:"tx_hash"`
	FromAddress string `gorm:"size:255" json:"from_address"`
	ToAddress   string `gorm:"size:255" json:"to_address"`

	// Order this deposit intends to pay, if any.
	RelatedOrderID *string `gorm:"size:20;index" json:"related_order_id,omitempty"`
	AutoPaidOrder  bool    `gorm:"default:false" json:"auto_paid_order"`

	AdminNote  string     `gorm:"type:text" json:"admin_note"`
	VerifiedBy *uuid.UUID `gorm:"type:uuid" json:"verified_by,omitempty"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

// LedgerReference keys the wallet-credit leg of a confirmation. It is
// derived from the deposit id, not the order id: the credit is a top-up,
// the order payment gets its own ledger row.
func (d *CryptoDeposit) LedgerReference() string {
	return fmt.Sprintf("crypto_deposit_%d", d.ID)
}
