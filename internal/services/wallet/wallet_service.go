package wallet

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hoangnm-dev/gametopup_be/internal/db"
	"github.com/hoangnm-dev/gametopup_be/internal/models"
)

var (
	// ErrInvalidAmount rejects zero or negative mutation amounts.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrInsufficientBalance is a business refusal, not a fault. The
	// wallet is left untouched and no ledger row is written.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	// ErrWalletNotFound indicates a missing wallet where one must exist.
	// Callers on refund/payment paths treat this as a data-integrity
	// fault requiring operator intervention.
	ErrWalletNotFound = errors.New("wallet not found")
)

// WalletService owns every balance mutation. The balance is never
// assigned directly anywhere else; credits and debits go through here so
// each one holds the row lock and appends its ledger entry atomically.
type WalletService struct {
	DB *gorm.DB
}

func NewWalletService(gdb *gorm.DB) *WalletService {
	return &WalletService{DB: gdb}
}

// GetOrCreate returns the user's wallet, creating it on first access.
func (s *WalletService) GetOrCreate(tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := tx.Where("user_id = ?", userID).First(&w).Error
	if err == nil {
		return &w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	w = models.Wallet{UserID: userID, Balance: decimal.Zero, IsActive: true}
	if err := tx.Create(&w).Error; err != nil {
		return nil, err
	}
	log.Printf("wallet: created wallet for user %s", userID)
	return &w, nil
}

// lockForUpdate loads the wallet under an exclusive row lock. Every
// read-modify-write cycle on the balance happens behind this lock.
func (s *WalletService) lockForUpdate(tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	if err := db.ForUpdate(tx).Where("user_id = ?", userID).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &w, nil
}

// Credit increases the balance and appends the matching ledger entry in
// the same transaction. trxType must be a credit type.
func (s *WalletService) Credit(tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, trxType models.WalletTrxType, description string, referenceID *string) (*models.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !trxType.IsCredit() {
		return nil, fmt.Errorf("credit with debit-type transaction %q", trxType)
	}

	w, err := s.lockForUpdate(tx, userID)
	if err != nil {
		return nil, err
	}

	before := w.Balance
	after := before.Add(amount)
	if err := tx.Model(&models.Wallet{}).Where("id = ?", w.ID).Update("balance", after).Error; err != nil {
		return nil, err
	}

	entry := models.WalletTransaction{
		UserID:        userID,
		Type:          trxType,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   description,
		ReferenceID:   referenceID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// Debit decreases the balance only when it covers the amount; otherwise
// it returns ErrInsufficientBalance with nothing written.
func (s *WalletService) Debit(tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, trxType models.WalletTrxType, description string, referenceID *string) (*models.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if trxType.IsCredit() {
		return nil, fmt.Errorf("debit with credit-type transaction %q", trxType)
	}

	w, err := s.lockForUpdate(tx, userID)
	if err != nil {
		return nil, err
	}

	before := w.Balance
	if before.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}
	after := before.Sub(amount)
	if err := tx.Model(&models.Wallet{}).Where("id = ?", w.ID).Update("balance", after).Error; err != nil {
		return nil, err
	}

	entry := models.WalletTransaction{
		UserID:        userID,
		Type:          trxType,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   description,
		ReferenceID:   referenceID,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindByReference looks up a ledger entry by its idempotency key. A nil
// result with nil error means no such entry exists.
func (s *WalletService) FindByReference(tx *gorm.DB, userID uuid.UUID, trxType models.WalletTrxType, referenceID string) (*models.WalletTransaction, error) {
	var entry models.WalletTransaction
	err := tx.Where("user_id = ? AND type = ? AND reference_id = ?", userID, trxType, referenceID).
		Order("id ASC").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// History returns the user's ledger, newest first.
func (s *WalletService) History(userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, int64, error) {
	var total int64
	if err := s.DB.Model(&models.WalletTransaction{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.WalletTransaction
	err := s.DB.Where("user_id = ?", userID).
		Order("id DESC").Limit(limit).Offset(offset).Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
