package deposits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hoangnm-dev/gametopup_be/internal/db"
	"github.com/hoangnm-dev/gametopup_be/internal/models"
	"github.com/hoangnm-dev/gametopup_be/internal/notify"
	"github.com/hoangnm-dev/gametopup_be/internal/services/wallet"
)

var (
	ErrDepositNotFound = errors.New("deposit not found")
	ErrInvalidAmount   = errors.New("deposit amount must be greater than zero")
)

// ConfirmResult reports one deposit confirmation. AlreadyProcessed marks
// the idempotent no-op: the deposit had reached a terminal status
// before, nothing was credited again.
type ConfirmResult struct {
	Deposit          *models.Deposit
	Transaction      *models.WalletTransaction
	AlreadyProcessed bool
}

// DepositService is the confirmation engine for manually verified
// deposits. Confirm credits the wallet exactly once; both terminal
// transitions are one-way.
type DepositService struct {
	DB       *gorm.DB
	Wallet   *wallet.WalletService
	Notifier notify.Notifier

	// Platform USDT receiving address handed to the user at submission.
	ReceivingAddress string
}

func NewDepositService(gdb *gorm.DB, ws *wallet.WalletService, n notify.Notifier, receivingAddress string) *DepositService {
	return &DepositService{DB: gdb, Wallet: ws, Notifier: n, ReceivingAddress: receivingAddress}
}

// Submit records a claimed external payment as pending. The user's
// wallet is created lazily here if it does not exist yet.
func (s *DepositService) Submit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, txHash, fromAddress string) (*models.Deposit, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var dep models.Deposit
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.Wallet.GetOrCreate(tx, userID); err != nil {
			return err
		}

		dep = models.Deposit{
			UserID:    userID,
			Amount:    amount,
			Status:    models.DepositStatusPending,
			ToAddress: s.ReceivingAddress,
		}
		if txHash != "" {
			dep.TransactionHash = &txHash
		}
		dep.FromAddress = fromAddress
		return tx.Create(&dep).Error
	})
	if err != nil {
		return nil, err
	}
	return &dep, nil
}

// Confirm moves a pending deposit to confirmed: wallet credit, ledger
// row and status stamps in one atomic unit. Re-confirming a terminal
// deposit is a no-op, never a double credit.
func (s *DepositService) Confirm(ctx context.Context, depositID uint, adminID uuid.UUID) (*ConfirmResult, error) {
	var res ConfirmResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dep models.Deposit
		if err := db.ForUpdate(tx).First(&dep, "id = ?", depositID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDepositNotFound
			}
			return err
		}
		if dep.Status != models.DepositStatusPending {
			res = ConfirmResult{Deposit: &dep, AlreadyProcessed: true}
			return nil
		}

		if _, err := s.Wallet.GetOrCreate(tx, dep.UserID); err != nil {
			return err
		}

		ref := dep.LedgerReference()
		desc := fmt.Sprintf("Deposit of %s USD confirmed", dep.Amount)
		entry, err := s.Wallet.Credit(tx, dep.UserID, dep.Amount, models.WalletTrxDeposit, desc, &ref)
		if err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(&models.Deposit{}).Where("id = ?", dep.ID).Updates(map[string]interface{}{
			"status":       models.DepositStatusConfirmed,
			"processed_by": adminID,
			"processed_at": now,
		}).Error; err != nil {
			return err
		}
		dep.Status = models.DepositStatusConfirmed
		dep.ProcessedBy = &adminID
		dep.ProcessedAt = &now

		res = ConfirmResult{Deposit: &dep, Transaction: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !res.AlreadyProcessed {
		s.Notifier.Notify(ctx, notify.Event{
			UserID: res.Deposit.UserID, Kind: notify.EventDepositConfirmed,
			Reference: res.Deposit.LedgerReference(), Amount: res.Deposit.Amount,
		})
	}
	return &res, nil
}

// Reject is a status-only transition with no ledger effect. Terminal
// deposits are left as they are.
func (s *DepositService) Reject(ctx context.Context, depositID uint, adminID uuid.UUID, note string) (*ConfirmResult, error) {
	var res ConfirmResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dep models.Deposit
		if err := db.ForUpdate(tx).First(&dep, "id = ?", depositID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDepositNotFound
			}
			return err
		}
		if dep.Status != models.DepositStatusPending {
			res = ConfirmResult{Deposit: &dep, AlreadyProcessed: true}
			return nil
		}

		now := time.Now()
		if err := tx.Model(&models.Deposit{}).Where("id = ?", dep.ID).Updates(map[string]interface{}{
			"status":       models.DepositStatusRejected,
			"admin_note":   note,
			"processed_by": adminID,
			"processed_at": now,
		}).Error; err != nil {
			return err
		}
		dep.Status = models.DepositStatusRejected
		dep.AdminNote = note
		dep.ProcessedBy = &adminID
		dep.ProcessedAt = &now

		res = ConfirmResult{Deposit: &dep}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !res.AlreadyProcessed {
		s.Notifier.Notify(ctx, notify.Event{
			UserID: res.Deposit.UserID, Kind: notify.EventDepositRejected,
			Reference: res.Deposit.LedgerReference(), Amount: res.Deposit.Amount,
			Message: note,
		})
	}
	return &res, nil
}

// BatchItemResult summarizes one deposit inside a bulk admin action.
type BatchItemResult struct {
	DepositID uint   `json:"deposit_id"`
	OK        bool   `json:"ok"`
	Message   string `json:"message"`
}

// ConfirmBatch confirms each deposit independently; one failure never
// aborts the rest.
func (s *DepositService) ConfirmBatch(ctx context.Context, depositIDs []uint, adminID uuid.UUID) []BatchItemResult {
	results := make([]BatchItemResult, 0, len(depositIDs))
	for _, id := range depositIDs {
		res, err := s.Confirm(ctx, id, adminID)
		switch {
		case err != nil:
			results = append(results, BatchItemResult{DepositID: id, OK: false, Message: err.Error()})
		case res.AlreadyProcessed:
			results = append(results, BatchItemResult{DepositID: id, OK: true,
				Message: fmt.Sprintf("already %s, skipped", res.Deposit.Status)})
		default:
			results = append(results, BatchItemResult{DepositID: id, OK: true, Message: "confirmed"})
		}
	}
	return results
}

// RejectBatch rejects each deposit independently.
func (s *DepositService) RejectBatch(ctx context.Context, depositIDs []uint, adminID uuid.UUID, note string) []BatchItemResult {
	results := make([]BatchItemResult, 0, len(depositIDs))
	for _, id := range depositIDs {
		res, err := s.Reject(ctx, id, adminID, note)
		switch {
		case err != nil:
			results = append(results, BatchItemResult{DepositID: id, OK: false, Message: err.Error()})
		case res.AlreadyProcessed:
			results = append(results, BatchItemResult{DepositID: id, OK: true,
				Message: fmt.Sprintf("already %s, skipped", res.Deposit.Status)})
		default:
			results = append(results, BatchItemResult{DepositID: id, OK: true, Message: "rejected"})
		}
	}
	return results
}

// List returns the user's deposits, newest first.
func (s *DepositService) List(userID uuid.UUID, limit, offset int) ([]models.Deposit, error) {
	var list []models.Deposit
	err := s.DB.Where("user_id = ?", userID).Order("id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// ListPending returns pending deposits for the admin review queue.
func (s *DepositService) ListPending(limit, offset int) ([]models.Deposit, error) {
	var list []models.Deposit
	err := s.DB.Where("status = ?", models.DepositStatusPending).
		Order("id ASC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}
