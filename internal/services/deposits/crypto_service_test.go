package deposits

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoangnm-dev/gametopup_be/internal/models"
	"github.com/hoangnm-dev/gametopup_be/internal/services/orders"
)

func (e *depositEnv) newPendingOrder(t *testing.T, uid uuid.UUID) *models.Order {
	t.Helper()
	order, err := e.orders.Create(context.Background(), uid, orders.CreateOrderInput{
		GameID:        e.game.ID,
		GamePackageID: e.pkg.ID,
		GameUID:       "player-123",
		PaymentMethod: models.PaymentMethodCrypto,
	})
	require.NoError(t, err)
	return order
}

func TestCryptoSubmitValidation(t *testing.T) {
	env := newDepositEnv(t)
	uid := env.newUser(t)

	_, err := env.crypto.Submit(context.Background(), uid, decimal.Zero, "0xaaa", "", nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = env.crypto.Submit(context.Background(), uid, decimal.NewFromInt(10), "", "", nil)
	assert.ErrorIs(t, err, ErrMissingTxHash)

	dep, err := env.crypto.Submit(context.Background(), uid, decimal.NewFromInt(10), "0xaaa", "TSender", nil)
	require.NoError(t, err)
	assert.Equal(t, models.CryptoDepositPendingVerification, dep.Status)
	assert.Equal(t, testReceivingAddress, dep.ToAddress)

	// a tx hash is accepted at most once, even across users
	_, err = env.crypto.Submit(context.Background(), uid, decimal.NewFromInt(10), "0xaaa", "", nil)
	assert.ErrorIs(t, err, ErrDuplicateTxHash)
	other := env.newUser(t)
	_, err = env.crypto.Submit(context.Background(), other, decimal.NewFromInt(10), "0xaaa", "", nil)
	assert.ErrorIs(t, err, ErrDuplicateTxHash)
}

func TestCryptoSubmitLinkedOrderChecks(t *testing.T) {
	env := newDepositEnv(t)
	uid := env.newUser(t)
	order := env.newPendingOrder(t, uid)

	// someone else's order is invisible
	other := env.newUser(t)
	_, err := env.crypto.Submit(context.Background(), other, decimal.NewFromInt(10), "0xbbb", "", &order.OrderID)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)

	// canceled orders cannot take a payment claim
	_, err = env.orders.Cancel(context.Background(), order.OrderID, uid)
	require.NoError(t, err)
	_, err = env.crypto.Submit(context.Background(), uid, decimal.NewFromInt(10), "0xbbb", "", &order.OrderID)
	assert.ErrorIs(t, err, ErrOrderNotPending)
}

func TestCryptoConfirmTopUpWithoutOrder(t *testing.T) {
	env := newDepositEnv(t)
	uid := env.newUser(t)
	adminID := uuid.New()

	dep, err := env.crypto.Submit(context.Background(), uid, decimal.NewFromFloat(33.33), "0xccc", "", nil)
	require.NoError(t, err)

	res, err := env.crypto.Confirm(context.Background(), dep.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, CryptoConfirmedNoOrder, res.Outcome)
	assert.Nil(t, res.Order)
	assert.True(t, env.balance(t, uid).Equal(decimal.NewFromFloat(33.33)))

	require.NotNil(t, res.Deposit.VerifiedBy)
	assert.Equal(t, adminID, *res.Deposit.VerifiedBy)
	assert.False(t, res.Deposit.AutoPaidOrder)

	// idempotent re-confirm
	again, err := env.crypto.Confirm(context.Background(), dep.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, CryptoAlreadyProcessed, again.Outcome)
	assert.True(t, env.balance(t, uid).Equal(decimal.NewFromFloat(33.33)))
}

func TestCryptoAutoPayEndToEnd(t *testing.T) {
	env := newDepositEnv(t)
	uid := env.newUser(t)
	adminID := uuid.New()

	// zero balance, $10 order, user pays the exact amount in USDT
	order := env.newPendingOrder(t, uid)
	payRes, err := env.orders.Pay(context.Background(), order.OrderID, uid, models.PaymentMethodCrypto, testReceivingAddress)
	require.NoError(t, err)
	require.True(t, payRes.CryptoDirective)

	dep, err := env.crypto.Submit(context.Background(), uid, decimal.NewFromInt(10), "0xddd", "TSender", &order.OrderID)
	require.NoError(t, err)

	res, err := env.crypto.Confirm(context.Background(), dep.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, CryptoConfirmed, res.Outcome)
	require.NotNil(t, res.Order)
	assert.Equal(t, models.OrderStatusPaid, res.Order.Status)
	assert.True(t, res.Deposit.AutoPaidOrder)

	// credit and debit cancel out
	assert.True(t, env.balance(t, uid).IsZero())

	// two ledger legs: the top-up keyed by the deposit, the payment
	// keyed by the order
	credit, err := env.wallet.FindByReference(env.gdb, uid, models.WalletTrxDeposit, dep.LedgerReference())
	require.NoError(t, err)
	require.NotNil(t, credit)
	assert.True(t, credit.Amount.Equal(decimal.NewFromInt(10)))

	debit, err := env.wallet.FindByReference(env.gdb, uid, models.WalletTrxPayment, order.OrderID)
	require.NoError(t, err)
	require.NotNil(t, debit)
	assert.True(t, debit.Amount.Equal(decimal.NewFromInt(10)))

	var rows int64
	require.NoError(t, env.gdb.Model(&models.WalletTransaction{}).Where("user_id = ?", uid).Count(&rows).Error)
	assert.EqualValues(t, 2, rows)

	// the auto-pay transition was logged with the system as actor
	var logs []models.OrderStatusLog
	require.NoError(t, env.gdb.Where("order_ref = ?", res.Order.ID).Order("id ASC").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, models.OrderStatusPaid, logs[1].NewStatus)
	assert.Nil(t, logs[1].ChangedBy)
}

func TestCryptoConfirmOrderAlreadySettled(t *testing.T) {
	env := newDepositEnv(t)
	uid := env.newUser(t)
	adminID := uuid.New()

	order := env.newPendingOrder(t, uid)
	dep, err := env.crypto.Submit(context.Background(), uid, decimal.NewFromInt(10), "0xeee", "", &order.OrderID)
	require.NoError(t, err)

	// the order gets paid from the wallet while the deposit waits
	_, err = env.wallet.Credit(env.gdb, uid, decimal.NewFromInt(10), models.WalletTrxDeposit, "seed", nil)
	require.NoError(t, err)
	_, err = env.orders.Pay(context.Background(), order.OrderID, uid, models.PaymentMethodWallet, "")
	require.NoError(t, err)

	res, err := env.crypto.Confirm(context.Background(), dep.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, CryptoConfirmedOrderNotPending, res.Outcome)
	assert.False(t, res.Deposit.AutoPaidOrder)

	// the deposit still lands in the wallet as a plain top-up
	assert.True(t, env.balance(t, uid).Equal(decimal.NewFromInt(10)))
}

func TestCryptoDuplicatePaymentGuard(t *testing.T) {
	env := newDepositEnv(t)
	uid := env.newUser(t)
	adminID := uuid.New()

	order := env.newPendingOrder(t, uid)

	// first deposit is short, so the order stays pending even after
	// the confirmation credits the wallet
	short, err := env.crypto.Submit(context.Background(), uid, decimal.NewFromInt(4), "0xf01", "", &order.OrderID)
	require.NoError(t, err)
	full, err := env.crypto.Submit(context.Background(), uid, decimal.NewFromInt(10), "0xf02", "", &order.OrderID)
	require.NoError(t, err)

	res, err := env.crypto.Confirm(context.Background(), short.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, CryptoConfirmedInsufficientBalance, res.Outcome)
	assert.True(t, env.balance(t, uid).Equal(decimal.NewFromInt(4)))

	var check models.Order
	require.NoError(t, env.gdb.Where("order_id = ?", order.OrderID).First(&check).Error)
	assert.Equal(t, models.OrderStatusPendingPayment, check.Status)

	// the second deposit sees a confirmed sibling on the same order and
	// refuses to auto-pay; the funds are kept as a top-up
	res, err = env.crypto.Confirm(context.Background(), full.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, CryptoConfirmedDuplicatePayment, res.Outcome)
	assert.True(t, env.balance(t, uid).Equal(decimal.NewFromInt(14)))

	require.NoError(t, env.gdb.Where("order_id = ?", order.OrderID).First(&check).Error)
	assert.Equal(t, models.OrderStatusPendingPayment, check.Status)

	// no payment ledger row was ever written for the order
	payment, err := env.wallet.FindByReference(env.gdb, uid, models.WalletTrxPayment, order.OrderID)
	require.NoError(t, err)
	assert.Nil(t, payment)
}

func TestCryptoRejectCancelsLinkedPendingOrder(t *testing.T) {
	env := newDepositEnv(t)
	uid := env.newUser(t)
	adminID := uuid.New()

	order := env.newPendingOrder(t, uid)
	dep, err := env.crypto.Submit(context.Background(), uid, decimal.NewFromInt(10), "0xf03", "", &order.OrderID)
	require.NoError(t, err)

	res, err := env.crypto.Reject(context.Background(), dep.ID, adminID, "no such tx on chain")
	require.NoError(t, err)
	assert.Equal(t, CryptoRejected, res.Outcome)
	assert.Equal(t, models.CryptoDepositRejected, res.Deposit.Status)
	require.NotNil(t, res.Order)
	assert.Equal(t, models.OrderStatusCanceled, res.Order.Status)

	// no money moved
	assert.True(t, env.balance(t, uid).IsZero())
	var rows int64
	require.NoError(t, env.gdb.Model(&models.WalletTransaction{}).Where("user_id = ?", uid).Count(&rows).Error)
	assert.EqualValues(t, 0, rows)

	// the cancellation note names the rejected deposit
	var logs []models.OrderStatusLog
	require.NoError(t, env.gdb.Where("order_ref = ?", res.Order.ID).Order("id ASC").Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, models.OrderStatusCanceled, logs[1].NewStatus)
	assert.Contains(t, logs[1].Note, dep.TxHash)
	assert.Nil(t, logs[1].ChangedBy)
}

func TestCryptoRejectLeavesSettledOrderAlone(t *testing.T) {
	env := newDepositEnv(t)
	uid := env.newUser(t)
	adminID := uuid.New()

	order := env.newPendingOrder(t, uid)
	dep, err := env.crypto.Submit(context.Background(), uid, decimal.NewFromInt(10), "0xf04", "", &order.OrderID)
	require.NoError(t, err)

	_, err = env.wallet.Credit(env.gdb, uid, decimal.NewFromInt(10), models.WalletTrxDeposit, "seed", nil)
	require.NoError(t, err)
	_, err = env.orders.Pay(context.Background(), order.OrderID, uid, models.PaymentMethodWallet, "")
	require.NoError(t, err)

	res, err := env.crypto.Reject(context.Background(), dep.ID, adminID, "stale claim")
	require.NoError(t, err)
	assert.Equal(t, models.CryptoDepositRejected, res.Deposit.Status)

	var check models.Order
	require.NoError(t, env.gdb.Where("order_id = ?", order.OrderID).First(&check).Error)
	assert.Equal(t, models.OrderStatusPaid, check.Status)
}
