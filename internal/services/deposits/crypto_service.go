package deposits

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hoangnm-dev/gametopup_be/internal/db"
	"github.com/hoangnm-dev/gametopup_be/internal/models"
	"github.com/hoangnm-dev/gametopup_be/internal/notify"
	"github.com/hoangnm-dev/gametopup_be/internal/services/orders"
	"github.com/hoangnm-dev/gametopup_be/internal/services/wallet"
)

var (
	// ErrDuplicateTxHash rejects a transaction hash the platform has
	// already seen, before it can ever reach the confirmation reactor.
	ErrDuplicateTxHash = errors.New("transaction hash already submitted")
	ErrMissingTxHash   = errors.New("transaction hash is required")
	// ErrOrderNotPending rejects linking a deposit to an order that is
	// no longer waiting for payment.
	ErrOrderNotPending = errors.New("related order is not awaiting payment")
	// ErrRelatedOrderMissing is a data-integrity fault: the deposit
	// points at an order that does not exist.
	ErrRelatedOrderMissing = errors.New("related order no longer exists")
)

type CryptoOutcome int

const (
	// CryptoConfirmed: wallet credited and the linked order auto-paid.
	CryptoConfirmed CryptoOutcome = iota
	// CryptoConfirmedNoOrder: plain wallet top-up, no order linked.
	CryptoConfirmedNoOrder
	// CryptoConfirmedOrderNotPending: funds stay in the wallet, the
	// order had already been paid or canceled by other means.
	CryptoConfirmedOrderNotPending
	// CryptoConfirmedDuplicatePayment: another confirmed deposit is
	// already linked to the order; auto-pay skipped, funds kept.
	CryptoConfirmedDuplicatePayment
	// CryptoConfirmedInsufficientBalance: the freshly credited balance
	// no longer covers the order (concurrent spend); manual follow-up.
	CryptoConfirmedInsufficientBalance
	// CryptoAlreadyProcessed: terminal deposit re-submitted, no-op.
	CryptoAlreadyProcessed
	// CryptoRejected: deposit rejected; a linked pending order is
	// canceled alongside.
	CryptoRejected
)

type CryptoConfirmResult struct {
	Outcome CryptoOutcome
	Deposit *models.CryptoDeposit
	Order   *models.Order
	Message string
}

// CryptoDepositService owns the crypto leg of the ledger: USDT deposit
// submission, admin verification, and the auto-pay reaction that settles
// a linked order in the same atomic unit as the wallet credit.
type CryptoDepositService struct {
	DB       *gorm.DB
	Wallet   *wallet.WalletService
	Orders   *orders.OrderService
	Notifier notify.Notifier

	ReceivingAddress string
}

func NewCryptoDepositService(gdb *gorm.DB, ws *wallet.WalletService, os *orders.OrderService, n notify.Notifier, receivingAddress string) *CryptoDepositService {
	return &CryptoDepositService{DB: gdb, Wallet: ws, Orders: os, Notifier: n, ReceivingAddress: receivingAddress}
}

// Submit records a claimed USDT transfer. The hash is accepted at most
// once system-wide; the unique index backs up this pre-check.
func (s *CryptoDepositService) Submit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, txHash, fromAddress string, relatedOrderID *string) (*models.CryptoDeposit, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if txHash == "" {
		return nil, ErrMissingTxHash
	}

	var dep models.CryptoDeposit
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.CryptoDeposit{}).Where("tx_hash = ?", txHash).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateTxHash
		}

		if relatedOrderID != nil {
			var order models.Order
			err := tx.Where("order_id = ? AND user_id = ?", *relatedOrderID, userID).First(&order).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return orders.ErrOrderNotFound
			}
			if err != nil {
				return err
			}
			if order.Status != models.OrderStatusPendingPayment {
				return ErrOrderNotPending
			}
		}

		if _, err := s.Wallet.GetOrCreate(tx, userID); err != nil {
			return err
		}

		dep = models.CryptoDeposit{
			UserID:         userID,
			Amount:         amount,
			Status:         models.CryptoDepositPendingVerification,
			TxHash:         txHash,
			FromAddress:    fromAddress,
			ToAddress:      s.ReceivingAddress,
			RelatedOrderID: relatedOrderID,
		}
		return tx.Create(&dep).Error
	})
	if err != nil {
		return nil, err
	}
	return &dep, nil
}

// Confirm verifies a deposit and, when it references a pending order,
// applies deposit-then-payment in a single pass. The wallet credit, the
// order debit and the status transition share one transaction that
// either commits whole or not at all.
func (s *CryptoDepositService) Confirm(ctx context.Context, depositID uint, adminID uuid.UUID) (*CryptoConfirmResult, error) {
	var res CryptoConfirmResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dep models.CryptoDeposit
		if err := db.ForUpdate(tx).First(&dep, "id = ?", depositID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDepositNotFound
			}
			return err
		}
		if dep.Status != models.CryptoDepositPendingVerification {
			res = CryptoConfirmResult{Outcome: CryptoAlreadyProcessed, Deposit: &dep,
				Message: fmt.Sprintf("deposit already %s", dep.Status)}
			return nil
		}

		if _, err := s.Wallet.GetOrCreate(tx, dep.UserID); err != nil {
			return err
		}

		// Leg 1: the wallet top-up, keyed by the deposit id. The order
		// payment, if any, is a separate ledger row keyed by the order.
		ref := dep.LedgerReference()
		desc := fmt.Sprintf("Crypto deposit confirmed: %s USDT", dep.Amount)
		if _, err := s.Wallet.Credit(tx, dep.UserID, dep.Amount, models.WalletTrxDeposit, desc, &ref); err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(&models.CryptoDeposit{}).Where("id = ?", dep.ID).Updates(map[string]interface{}{
			"status":      models.CryptoDepositConfirmed,
			"verified_by": adminID,
			"verified_at": now,
		}).Error; err != nil {
			return err
		}
		dep.Status = models.CryptoDepositConfirmed
		dep.VerifiedBy = &adminID
		dep.VerifiedAt = &now

		if dep.RelatedOrderID == nil {
			res = CryptoConfirmResult{Outcome: CryptoConfirmedNoOrder, Deposit: &dep,
				Message: "deposit credited to wallet"}
			return nil
		}

		var order models.Order
		if err := db.ForUpdate(tx).Where("order_id = ?", *dep.RelatedOrderID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Orders are never hard-deleted; this is corruption.
				log.Printf("crypto: deposit %d references missing order %s", dep.ID, *dep.RelatedOrderID)
				return ErrRelatedOrderMissing
			}
			return err
		}

		if order.Status != models.OrderStatusPendingPayment {
			res = CryptoConfirmResult{Outcome: CryptoConfirmedOrderNotPending, Deposit: &dep, Order: &order,
				Message: fmt.Sprintf("order %s is %s, funds kept in wallet", order.OrderID, order.Status)}
			return nil
		}

		// Two deposits racing for one order: the first confirmed one
		// wins the auto-pay, later ones only top up the wallet.
		var dupes int64
		if err := tx.Model(&models.CryptoDeposit{}).
			Where("related_order_id = ? AND status = ? AND id <> ?",
				order.OrderID, models.CryptoDepositConfirmed, dep.ID).
			Count(&dupes).Error; err != nil {
			return err
		}
		if dupes > 0 {
			log.Printf("crypto: order %s already has a confirmed deposit, skipping auto-pay for deposit %d", order.OrderID, dep.ID)
			res = CryptoConfirmResult{Outcome: CryptoConfirmedDuplicatePayment, Deposit: &dep, Order: &order,
				Message: fmt.Sprintf("order %s already paid by another deposit, funds kept in wallet", order.OrderID)}
			return nil
		}

		orderRef := order.OrderID
		payDesc := fmt.Sprintf("Auto-payment for order %s", order.OrderID)
		_, err := s.Wallet.Debit(tx, dep.UserID, order.TotalAmount(), models.WalletTrxPayment, payDesc, &orderRef)
		if errors.Is(err, wallet.ErrInsufficientBalance) {
			// The credit above should cover the order; a concurrent
			// spend got there first. Leave the order pending.
			log.Printf("crypto: balance no longer covers order %s after crediting deposit %d", order.OrderID, dep.ID)
			res = CryptoConfirmResult{Outcome: CryptoConfirmedInsufficientBalance, Deposit: &dep, Order: &order,
				Message: fmt.Sprintf("balance does not cover order %s, manual intervention required", order.OrderID)}
			return nil
		}
		if err != nil {
			return err
		}

		note := fmt.Sprintf("Auto-paid by confirmed crypto deposit %d", dep.ID)
		if _, err := orders.Transition(tx, &order, models.OrderStatusPaid, nil, note); err != nil {
			return err
		}

		if err := tx.Model(&models.CryptoDeposit{}).Where("id = ?", dep.ID).
			Update("auto_paid_order", true).Error; err != nil {
			return err
		}
		dep.AutoPaidOrder = true

		res = CryptoConfirmResult{Outcome: CryptoConfirmed, Deposit: &dep, Order: &order,
			Message: fmt.Sprintf("deposit confirmed and order %s paid", order.OrderID)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyConfirm(ctx, &res)
	return &res, nil
}

func (s *CryptoDepositService) notifyConfirm(ctx context.Context, res *CryptoConfirmResult) {
	if res.Outcome == CryptoAlreadyProcessed {
		return
	}
	// Plain top-ups notify about the deposit; auto-pays notify about
	// the order instead, so the user is not told twice about one sum.
	if res.Deposit.RelatedOrderID == nil {
		s.Notifier.Notify(ctx, notify.Event{
			UserID: res.Deposit.UserID, Kind: notify.EventDepositConfirmed,
			Reference: res.Deposit.TxHash, Amount: res.Deposit.Amount,
		})
		return
	}
	if res.Outcome == CryptoConfirmed && res.Order != nil {
		s.Notifier.Notify(ctx, notify.Event{
			UserID: res.Order.UserID, Kind: notify.EventOrderPaid,
			Reference: res.Order.OrderID, Amount: res.Order.Price,
		})
	}
}

// Reject marks the deposit rejected and, when it points at an order
// still waiting for this payment, cancels that order. The order was
// never paid, so no ledger entry is written anywhere on this path.
func (s *CryptoDepositService) Reject(ctx context.Context, depositID uint, adminID uuid.UUID, note string) (*CryptoConfirmResult, error) {
	var res CryptoConfirmResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dep models.CryptoDeposit
		if err := db.ForUpdate(tx).First(&dep, "id = ?", depositID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDepositNotFound
			}
			return err
		}
		if dep.Status != models.CryptoDepositPendingVerification {
			res = CryptoConfirmResult{Outcome: CryptoAlreadyProcessed, Deposit: &dep,
				Message: fmt.Sprintf("deposit already %s", dep.Status)}
			return nil
		}

		now := time.Now()
		if err := tx.Model(&models.CryptoDeposit{}).Where("id = ?", dep.ID).Updates(map[string]interface{}{
			"status":      models.CryptoDepositRejected,
			"admin_note":  note,
			"verified_by": adminID,
			"verified_at": now,
		}).Error; err != nil {
			return err
		}
		dep.Status = models.CryptoDepositRejected
		dep.AdminNote = note
		dep.VerifiedBy = &adminID
		dep.VerifiedAt = &now

		res = CryptoConfirmResult{Outcome: CryptoRejected, Deposit: &dep, Message: "deposit rejected"}

		if dep.RelatedOrderID == nil {
			return nil
		}

		var order models.Order
		err := db.ForUpdate(tx).Where("order_id = ?", *dep.RelatedOrderID).First(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("crypto: rejected deposit %d references missing order %s", dep.ID, *dep.RelatedOrderID)
			return ErrRelatedOrderMissing
		}
		if err != nil {
			return err
		}
		if order.Status != models.OrderStatusPendingPayment {
			return nil
		}

		cancelNote := fmt.Sprintf("Canceled: crypto deposit %d (tx %s) was rejected", dep.ID, dep.TxHash)
		if _, err := orders.Transition(tx, &order, models.OrderStatusCanceled, nil, cancelNote); err != nil {
			return err
		}
		res.Order = &order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Outcome != CryptoAlreadyProcessed {
		if res.Deposit.RelatedOrderID == nil {
			s.Notifier.Notify(ctx, notify.Event{
				UserID: res.Deposit.UserID, Kind: notify.EventDepositRejected,
				Reference: res.Deposit.TxHash, Amount: res.Deposit.Amount,
				Message: note,
			})
		} else if res.Order != nil {
			s.Notifier.Notify(ctx, notify.Event{
				UserID: res.Order.UserID, Kind: notify.EventOrderCanceled,
				Reference: res.Order.OrderID, Amount: res.Order.Price,
			})
		}
	}
	return &res, nil
}

// List returns the user's crypto deposits, newest first.
func (s *CryptoDepositService) List(userID uuid.UUID, limit, offset int) ([]models.CryptoDeposit, error) {
	var list []models.CryptoDeposit
	err := s.DB.Where("user_id = ?", userID).Order("id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// ListPendingVerification returns the admin verification queue.
func (s *CryptoDepositService) ListPendingVerification(limit, offset int) ([]models.CryptoDeposit, error) {
	var list []models.CryptoDeposit
	err := s.DB.Where("status = ?", models.CryptoDepositPendingVerification).
		Order("id ASC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}
