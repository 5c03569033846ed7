package orders

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/hoangnm-dev/gametopup_be/internal/models"
	"github.com/hoangnm-dev/gametopup_be/internal/services/wallet"
)

// ErrOrderNotRefundable means the order's status does not admit a
// refund at all; RefundIfEligible callers should only reach it from a
// canceled or refunded order.
var ErrOrderNotRefundable = errors.New("order status does not allow refund")

type RefundOutcome int

const (
	// RefundIssued: the wallet was credited and a refund ledger row
	// written.
	RefundIssued RefundOutcome = iota
	// RefundAlreadyIssued: an earlier refund row exists for this order;
	// that row is returned and nothing changes. Success, not an error.
	RefundAlreadyIssued
	// RefundNotWalletPaid: the order was never debited from a wallet,
	// so there is nothing to return.
	RefundNotWalletPaid
	// RefundNoPayment: no payment ledger row exists for the order.
	RefundNoPayment
)

type RefundResult struct {
	Outcome     RefundOutcome
	Transaction *models.WalletTransaction
	Message     string
}

// RefundService reacts to orders landing on canceled/refunded after
// having been paid. It is called explicitly from the cancel paths, never
// wired through hidden save hooks, so the whole causal chain lives in
// one call stack and one database transaction.
type RefundService struct {
	Wallet *wallet.WalletService
}

func NewRefundService(ws *wallet.WalletService) *RefundService {
	return &RefundService{Wallet: ws}
}

// RefundIfEligible credits back the order's snapshotted price exactly
// once. It must run inside the same transaction as the cancellation.
// A missing wallet is returned as a hard error: that is data corruption,
// not a business outcome.
func (s *RefundService) RefundIfEligible(tx *gorm.DB, order *models.Order, reason string) (*RefundResult, error) {
	if order.Status != models.OrderStatusCanceled && order.Status != models.OrderStatusRefunded {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotRefundable, order.Status)
	}

	// Both wallet and crypto orders settle through the wallet, so both
	// are refundable; anything else never touched the ledger.
	if order.PaymentMethod != models.PaymentMethodWallet && order.PaymentMethod != models.PaymentMethodCrypto {
		log.Printf("refund: order %s was not paid via wallet, nothing to refund", order.OrderID)
		return &RefundResult{
			Outcome: RefundNotWalletPaid,
			Message: "order was not paid via wallet, no refund needed",
		}, nil
	}

	existing, err := s.Wallet.FindByReference(tx, order.UserID, models.WalletTrxRefund, order.OrderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Printf("refund: order %s already refunded (transaction %d)", order.OrderID, existing.ID)
		return &RefundResult{
			Outcome:     RefundAlreadyIssued,
			Transaction: existing,
			Message:     "order already refunded",
		}, nil
	}

	payment, err := s.Wallet.FindByReference(tx, order.UserID, models.WalletTrxPayment, order.OrderID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		log.Printf("refund: no payment transaction for order %s, nothing to refund", order.OrderID)
		return &RefundResult{
			Outcome: RefundNoPayment,
			Message: "no payment transaction found, no refund needed",
		}, nil
	}

	ref := order.OrderID
	desc := fmt.Sprintf("Refund for order %s - %s", order.OrderID, reason)
	entry, err := s.Wallet.Credit(tx, order.UserID, order.TotalAmount(), models.WalletTrxRefund, desc, &ref)
	if err != nil {
		// wallet.ErrWalletNotFound lands here: surface it loudly.
		return nil, fmt.Errorf("refund order %s: %w", order.OrderID, err)
	}

	log.Printf("refund: order %s refunded, amount %s, balance %s -> %s",
		order.OrderID, entry.Amount, entry.BalanceBefore, entry.BalanceAfter)

	if order.Status == models.OrderStatusCanceled {
		if _, err := Transition(tx, order, models.OrderStatusRefunded, nil, "Auto-refund issued"); err != nil {
			return nil, err
		}
	}

	return &RefundResult{
		Outcome:     RefundIssued,
		Transaction: entry,
		Message:     fmt.Sprintf("refund successful, %s returned to wallet", entry.Amount),
	}, nil
}
