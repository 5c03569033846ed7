package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hoangnm-dev/gametopup_be/internal/db"
	"github.com/hoangnm-dev/gametopup_be/internal/models"
	"github.com/hoangnm-dev/gametopup_be/internal/notify"
	"github.com/hoangnm-dev/gametopup_be/internal/services/wallet"
	"github.com/hoangnm-dev/gametopup_be/internal/utils"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrGameUnavailable    = errors.New("game is not available")
	ErrPackageUnavailable = errors.New("selected package is not available")
	ErrPackageMismatch    = errors.New("selected package does not belong to this game")
	// ErrNotPayable means the order is not waiting for payment.
	ErrNotPayable = errors.New("order cannot be paid in its current status")
	// ErrNotCancelable means the requested cancellation is not allowed
	// from the order's current status.
	ErrNotCancelable = errors.New("order cannot be canceled in its current status")
	// ErrInvalidTransition guards the lifecycle graph itself.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// OrderService drives the order lifecycle. Every status change goes
// through Transition so the audit log can never miss an entry, and every
// ledger effect happens in the same database transaction as the status
// change that caused it.
type OrderService struct {
	DB       *gorm.DB
	Wallet   *wallet.WalletService
	Refunds  *RefundService
	Notifier notify.Notifier

	// SecretKey encrypts customer game-account passwords at rest.
	SecretKey string
}

func NewOrderService(gdb *gorm.DB, ws *wallet.WalletService, rs *RefundService, n notify.Notifier, secretKey string) *OrderService {
	return &OrderService{DB: gdb, Wallet: ws, Refunds: rs, Notifier: n, SecretKey: secretKey}
}

// Transition moves an order to newStatus and writes the audit row in the
// same transaction. The previous status is returned explicitly; nothing
// is smuggled through hidden instance state. A nil actor means the
// system acted on its own.
func Transition(tx *gorm.DB, order *models.Order, newStatus models.OrderStatus, actor *uuid.UUID, note string) (models.OrderStatus, error) {
	old := order.Status
	if !old.CanTransitionTo(newStatus) {
		return old, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, old, newStatus)
	}

	if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", newStatus).Error; err != nil {
		return old, err
	}
	order.Status = newStatus

	logRow := models.OrderStatusLog{
		OrderRef:  order.ID,
		OldStatus: old,
		NewStatus: newStatus,
		ChangedBy: actor,
		Note:      note,
	}
	if err := tx.Create(&logRow).Error; err != nil {
		return old, err
	}
	return old, nil
}

type CreateOrderInput struct {
	GameID        uint                 `json:"game_id"`
	GamePackageID uint                 `json:"game_package_id"`
	GameUID       string               `json:"game_uid"`
	GameUsername  string               `json:"game_username"`
	GamePassword  string               `json:"game_password"`
	CharacterName string               `json:"character_name"`
	GameEmail     string               `json:"game_email"`
	GamePhone     string               `json:"game_phone"`
	PaymentMethod models.PaymentMethod `json:"payment_method"`
	CustomerNote  string               `json:"customer_note"`
}

func (in *CreateOrderInput) validate() error {
	if in.GameID == 0 {
		return fmt.Errorf("game is required")
	}
	if in.GamePackageID == 0 {
		return fmt.Errorf("package selection is required")
	}
	if in.GameUID == "" {
		return fmt.Errorf("game uid is required")
	}
	if in.PaymentMethod != models.PaymentMethodWallet && in.PaymentMethod != models.PaymentMethodCrypto {
		return fmt.Errorf("invalid payment method %q", in.PaymentMethod)
	}
	return nil
}

// Create validates the catalog selection, snapshots the package price
// and builds the order in pending_payment with its first status log.
func (s *OrderService) Create(ctx context.Context, userID uuid.UUID, in CreateOrderInput) (*models.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var game models.Game
		if err := tx.First(&game, "id = ?", in.GameID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGameUnavailable
			}
			return err
		}
		if game.Status != models.GameStatusActive {
			return ErrGameUnavailable
		}

		var pkg models.GamePackage
		if err := tx.First(&pkg, "id = ?", in.GamePackageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPackageUnavailable
			}
			return err
		}
		if pkg.GameID != game.ID {
			return ErrPackageMismatch
		}
		if !pkg.IsActive {
			return ErrPackageUnavailable
		}

		encryptedPwd := ""
		if in.GamePassword != "" {
			var err error
			encryptedPwd, err = utils.EncryptSecret(in.GamePassword, s.SecretKey)
			if err != nil {
				return fmt.Errorf("encrypt game password: %w", err)
			}
		}

		orderID, err := s.nextOrderID(tx)
		if err != nil {
			return err
		}

		pkgID := pkg.ID
		order = &models.Order{
			OrderID:       orderID,
			UserID:        userID,
			GameID:        game.ID,
			GamePackageID: &pkgID,

			GameUID:       in.GameUID,
			GameUsername:  in.GameUsername,
			GamePassword:  encryptedPwd,
			CharacterName: in.CharacterName,
			GameEmail:     in.GameEmail,
			GamePhone:     in.GamePhone,

			PackageNameSnapshot: pkg.Name,
			PackageTypeSnapshot: pkg.PackageType,
			PackageAmount:       pkg.InGameAmount,
			PackageUnit:         pkg.InGameUnit,
			Price:               pkg.PriceUSD,

			PaymentMethod: in.PaymentMethod,
			Status:        models.OrderStatusPendingPayment,
			CustomerNote:  in.CustomerNote,
		}
		if err := tx.Create(order).Error; err != nil {
			return err
		}

		initial := models.OrderStatusLog{
			OrderRef:  order.ID,
			OldStatus: "",
			NewStatus: models.OrderStatusPendingPayment,
			ChangedBy: &userID,
			Note:      "Order created",
		}
		return tx.Create(&initial).Error
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Notify(ctx, notify.Event{
		UserID: userID, Kind: notify.EventOrderCreated,
		Reference: order.OrderID, Amount: order.Price,
	})
	return order, nil
}

// nextOrderID reads the newest order under an exclusive lock and
// increments its numeric suffix. The unique index on order_id is the
// backstop should two creators ever race past the lock.
func (s *OrderService) nextOrderID(tx *gorm.DB) (string, error) {
	var last models.Order
	err := db.ForUpdate(tx).Order("id DESC").First(&last).Error

	next := 1
	switch {
	case err == nil:
		if seq, ok := models.ParseOrderSeq(last.OrderID); ok {
			next = seq + 1
		} else {
			log.Printf("orders: malformed order id %q, restarting sequence at 1", last.OrderID)
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// first order ever
	default:
		return "", err
	}
	return models.FormatOrderID(next), nil
}

// PayResult reports the outcome of a payment request. For the crypto
// method nothing is mutated: the caller is directed to submit a deposit,
// and the auto-pay reactor settles the order once it is confirmed.
type PayResult struct {
	Order           *models.Order
	CryptoDirective bool
	DepositAddress  string
}

// Pay settles a pending order from the wallet, or hands back a deposit
// directive for crypto. Insufficient balance surfaces as
// wallet.ErrInsufficientBalance with the order untouched.
func (s *OrderService) Pay(ctx context.Context, orderID string, userID uuid.UUID, method models.PaymentMethod, depositAddress string) (*PayResult, error) {
	var result *PayResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := db.ForUpdate(tx).Where("order_id = ? AND user_id = ?", orderID, userID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.Status != models.OrderStatusPendingPayment {
			return ErrNotPayable
		}

		if method == models.PaymentMethodCrypto {
			result = &PayResult{Order: &order, CryptoDirective: true, DepositAddress: depositAddress}
			return nil
		}
		if method != models.PaymentMethodWallet {
			return fmt.Errorf("invalid payment method %q", method)
		}

		ref := order.OrderID
		desc := fmt.Sprintf("Payment for order %s", order.OrderID)
		if _, err := s.Wallet.Debit(tx, userID, order.TotalAmount(), models.WalletTrxPayment, desc, &ref); err != nil {
			return err
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("payment_method", models.PaymentMethodWallet).Error; err != nil {
			return err
		}
		order.PaymentMethod = models.PaymentMethodWallet

		if _, err := Transition(tx, &order, models.OrderStatusPaid, &userID, "Paid via internal wallet"); err != nil {
			return err
		}
		result = &PayResult{Order: &order}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.CryptoDirective {
		s.Notifier.Notify(ctx, notify.Event{
			UserID: userID, Kind: notify.EventOrderPaid,
			Reference: result.Order.OrderID, Amount: result.Order.Price,
		})
	}
	return result, nil
}

// Cancel is the user-initiated cancellation, allowed only while the
// order still waits for payment.
func (s *OrderService) Cancel(ctx context.Context, orderID string, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := db.ForUpdate(tx).Where("order_id = ? AND user_id = ?", orderID, userID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.Status != models.OrderStatusPendingPayment {
			return ErrNotCancelable
		}

		_, err := Transition(tx, &order, models.OrderStatusCanceled, &userID, "Customer canceled order")
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Notify(ctx, notify.Event{
		UserID: userID, Kind: notify.EventOrderCanceled,
		Reference: order.OrderID, Amount: order.Price,
	})
	return &order, nil
}

// MarkProcessing moves a paid order into processing on behalf of an
// admin.
func (s *OrderService) MarkProcessing(ctx context.Context, orderID string, adminID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := db.ForUpdate(tx).Where("order_id = ?", orderID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.Status != models.OrderStatusPaid {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, models.OrderStatusProcessing)
		}

		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("processed_by", adminID).Error; err != nil {
			return err
		}
		order.ProcessedBy = &adminID

		_, err := Transition(tx, &order, models.OrderStatusProcessing, &adminID, "Admin started processing")
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Notify(ctx, notify.Event{
		UserID: order.UserID, Kind: notify.EventOrderProcessing,
		Reference: order.OrderID, Amount: order.Price,
	})
	return &order, nil
}

// MarkCompleted finishes a processing order, stamping the completion
// time and the acting admin.
func (s *OrderService) MarkCompleted(ctx context.Context, orderID string, adminID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := db.ForUpdate(tx).Where("order_id = ?", orderID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.Status != models.OrderStatusProcessing {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, models.OrderStatusCompleted)
		}

		now := time.Now()
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).
			Updates(map[string]interface{}{"processed_by": adminID, "completed_at": now}).Error; err != nil {
			return err
		}
		order.ProcessedBy = &adminID
		order.CompletedAt = &now

		_, err := Transition(tx, &order, models.OrderStatusCompleted, &adminID, "Admin completed the order")
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Notify(ctx, notify.Event{
		UserID: order.UserID, Kind: notify.EventOrderCompleted,
		Reference: order.OrderID, Amount: order.Price,
	})
	return &order, nil
}

// AdminCancelResult carries the cancellation plus whatever the refund
// reactor decided.
type AdminCancelResult struct {
	Order  *models.Order
	Refund *RefundResult
}

// AdminCancel forces any non-terminal order to canceled. If the order
// had been paid, the refund reactor runs in the same transaction and may
// flip the final status to refunded.
func (s *OrderService) AdminCancel(ctx context.Context, orderID string, adminID uuid.UUID, note string) (*AdminCancelResult, error) {
	if note == "" {
		note = "Admin canceled the order"
	}

	var res AdminCancelResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := db.ForUpdate(tx).Where("order_id = ?", orderID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.Status.IsTerminal() {
			return ErrNotCancelable
		}

		old, err := Transition(tx, &order, models.OrderStatusCanceled, &adminID, note)
		if err != nil {
			return err
		}

		res.Order = &order
		if old == models.OrderStatusPaid || old == models.OrderStatusProcessing {
			refund, err := s.Refunds.RefundIfEligible(tx, &order, fmt.Sprintf("Order canceled by admin: %s", note))
			if err != nil {
				return err
			}
			res.Refund = refund
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	kind := notify.EventOrderCanceled
	if res.Order.Status == models.OrderStatusRefunded {
		kind = notify.EventOrderRefunded
	}
	s.Notifier.Notify(ctx, notify.Event{
		UserID: res.Order.UserID, Kind: kind,
		Reference: res.Order.OrderID, Amount: res.Order.Price,
	})
	return &res, nil
}

// BatchItemResult summarizes one order inside a bulk admin action.
type BatchItemResult struct {
	OrderID string `json:"order_id"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// BulkCancel cancels each order in its own transaction so one failure
// cannot poison the rest of the batch.
func (s *OrderService) BulkCancel(ctx context.Context, orderIDs []string, adminID uuid.UUID, note string) []BatchItemResult {
	results := make([]BatchItemResult, 0, len(orderIDs))
	for _, id := range orderIDs {
		res, err := s.AdminCancel(ctx, id, adminID, note)
		if err != nil {
			results = append(results, BatchItemResult{OrderID: id, OK: false, Message: err.Error()})
			continue
		}
		msg := "canceled"
		if res.Refund != nil {
			msg = fmt.Sprintf("canceled: %s", res.Refund.Message)
		}
		results = append(results, BatchItemResult{OrderID: id, OK: true, Message: msg})
	}
	return results
}

// CancelExpired cancels pending_payment orders older than maxAge as the
// system actor. Run from the background expiry job.
func (s *OrderService) CancelExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	var stale []models.Order
	if err := s.DB.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.OrderStatusPendingPayment, cutoff).
		Find(&stale).Error; err != nil {
		return 0, err
	}

	canceled := 0
	for i := range stale {
		didCancel := false
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var order models.Order
			if err := db.ForUpdate(tx).First(&order, "id = ?", stale[i].ID).Error; err != nil {
				return err
			}
			// may have been paid since the scan
			if order.Status != models.OrderStatusPendingPayment {
				return nil
			}
			note := fmt.Sprintf("Auto-canceled: order not paid within %s", maxAge)
			if _, err := Transition(tx, &order, models.OrderStatusCanceled, nil, note); err != nil {
				return err
			}
			didCancel = true
			return nil
		})
		if err != nil {
			log.Printf("orders: auto-cancel %s: %v", stale[i].OrderID, err)
			continue
		}
		if !didCancel {
			continue
		}
		canceled++
		s.Notifier.Notify(ctx, notify.Event{
			UserID: stale[i].UserID, Kind: notify.EventOrderCanceled,
			Reference: stale[i].OrderID, Amount: stale[i].Price,
		})
	}
	return canceled, nil
}

// Get returns one of the user's orders with its audit trail.
func (s *OrderService) Get(orderID string, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.DB.Preload("StatusLogs").Preload("Game").
		Where("order_id = ? AND user_id = ?", orderID, userID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// List returns the user's orders, newest first, optionally filtered by
// status.
func (s *OrderService) List(userID uuid.UUID, status models.OrderStatus, limit, offset int) ([]models.Order, int64, error) {
	q := s.DB.Model(&models.Order{}).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []models.Order
	err := q.Preload("Game").Order("id DESC").Limit(limit).Offset(offset).Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
