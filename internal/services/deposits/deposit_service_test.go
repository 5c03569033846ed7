package deposits

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hoangnm-dev/gametopup_be/internal/models"
	"github.com/hoangnm-dev/gametopup_be/internal/notify"
	"github.com/hoangnm-dev/gametopup_be/internal/services/orders"
	"github.com/hoangnm-dev/gametopup_be/internal/services/wallet"
)

const testReceivingAddress = "TPlatformUSDTAddr"

type depositEnv struct {
	gdb      *gorm.DB
	wallet   *wallet.WalletService
	orders   *orders.OrderService
	deposits *DepositService
	crypto   *CryptoDepositService

	game models.Game
	pkg  models.GamePackage
}

func newDepositEnv(t *testing.T) *depositEnv {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.AutoMigrate(
		&models.User{},
		&models.Game{},
		&models.GamePackage{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.Deposit{},
		&models.CryptoDeposit{},
		&models.Order{},
		&models.OrderStatusLog{},
	))

	ws := wallet.NewWalletService(gdb)
	rs := orders.NewRefundService(ws)
	os := orders.NewOrderService(gdb, ws, rs, notify.Nop{}, "0123456789abcdef0123456789abcdef")

	env := &depositEnv{
		gdb:      gdb,
		wallet:   ws,
		orders:   os,
		deposits: NewDepositService(gdb, ws, notify.Nop{}, testReceivingAddress),
		crypto:   NewCryptoDepositService(gdb, ws, os, notify.Nop{}, testReceivingAddress),
	}

	env.game = models.Game{Name: "Star Quest", Slug: "star-quest", Status: models.GameStatusActive}
	require.NoError(t, gdb.Create(&env.game).Error)
	env.pkg = models.GamePackage{
		GameID:      env.game.ID,
		Name:        "1000 Gems",
		PackageType: "gems",
		PriceUSD:    decimal.NewFromInt(10),
		IsActive:    true,
	}
	require.NoError(t, gdb.Create(&env.pkg).Error)
	return env
}

func (e *depositEnv) newUser(t *testing.T) uuid.UUID {
	t.Helper()
	u := models.User{
		ID:       uuid.New(),
		Name:     "Customer",
		Email:    uuid.NewString() + "@example.com",
		Password: "x",
		Role:     models.RoleUser,
		IsActive: true,
	}
	require.NoError(t, e.gdb.Create(&u).Error)
	return u.ID
}

func (e *depositEnv) balance(t *testing.T, uid uuid.UUID) decimal.Decimal {
	t.Helper()
	var w models.Wallet
	require.NoError(t, e.gdb.Where("user_id = ?", uid).First(&w).Error)
	return w.Balance
}

func TestSubmitCreatesPendingDepositAndWallet(t *testing.T) {
	env := newDepositEnv(t)
	uid := env.newUser(t)

	dep, err := env.deposits.Submit(context.Background(), uid, decimal.NewFromInt(50), "0xabc", "TSender")
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusPending, dep.Status)
	assert.Equal(t, testReceivingAddress, dep.ToAddress)
	require.NotNil(t, dep.TransactionHash)
	assert.Equal(t, "0xabc", *dep.TransactionHash)

	// wallet exists but nothing is credited yet
	assert.True(t, env.balance(t, uid).IsZero())

	_, err = env.deposits.Submit(context.Background(), uid, decimal.Zero, "", "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestConfirmCreditsWalletExactlyOnce(t *testing.T) {
	env := newDepositEnv(t)
	uid := env.newUser(t)
	adminID := uuid.New()

	dep, err := env.deposits.Submit(context.Background(), uid, decimal.NewFromInt(50), "0xabc", "")
	require.NoError(t, err)

	res, err := env.deposits.Confirm(context.Background(), dep.ID, adminID)
	require.NoError(t, err)
	assert.False(t, res.AlreadyProcessed)
	assert.Equal(t, models.DepositStatusConfirmed, res.Deposit.Status)
	require.NotNil(t, res.Deposit.ProcessedBy)
	assert.Equal(t, adminID, *res.Deposit.ProcessedBy)
	assert.NotNil(t, res.Deposit.ProcessedAt)

	require.NotNil(t, res.Transaction)
	require.NotNil(t, res.Transaction.ReferenceID)
	assert.Equal(t, dep.LedgerReference(), *res.Transaction.ReferenceID)
	assert.True(t, env.balance(t, uid).Equal(decimal.NewFromInt(50)))

	// second confirm is a no-op, not a double credit
	again, err := env.deposits.Confirm(context.Background(), dep.ID, adminID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyProcessed)
	assert.True(t, env.balance(t, uid).Equal(decimal.NewFromInt(50)))

	var rows int64
	require.NoError(t, env.gdb.Model(&models.WalletTransaction{}).
		Where("user_id = ? AND reference_id = ?", uid, dep.LedgerReference()).
		Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestRejectIsTerminalAndLedgerFree(t *testing.T) {
	env := newDepositEnv(t)
	uid := env.newUser(t)
	adminID := uuid.New()

	dep, err := env.deposits.Submit(context.Background(), uid, decimal.NewFromInt(50), "0xabc", "")
	require.NoError(t, err)

	res, err := env.deposits.Reject(context.Background(), dep.ID, adminID, "hash not found on chain")
	require.NoError(t, err)
	assert.Equal(t, models.DepositStatusRejected, res.Deposit.Status)
	assert.Equal(t, "hash not found on chain", res.Deposit.AdminNote)
	assert.True(t, env.balance(t, uid).IsZero())

	// a rejected deposit can never be confirmed afterwards
	confirm, err := env.deposits.Confirm(context.Background(), dep.ID, adminID)
	require.NoError(t, err)
	assert.True(t, confirm.AlreadyProcessed)
	assert.True(t, env.balance(t, uid).IsZero())

	var rows int64
	require.NoError(t, env.gdb.Model(&models.WalletTransaction{}).Where("user_id = ?", uid).Count(&rows).Error)
	assert.EqualValues(t, 0, rows)
}

func TestConfirmMissingDeposit(t *testing.T) {
	env := newDepositEnv(t)
	_, err := env.deposits.Confirm(context.Background(), 999, uuid.New())
	assert.ErrorIs(t, err, ErrDepositNotFound)
}

func TestConfirmBatchIsolatesItems(t *testing.T) {
	env := newDepositEnv(t)
	uid := env.newUser(t)
	adminID := uuid.New()

	a, err := env.deposits.Submit(context.Background(), uid, decimal.NewFromInt(10), "", "")
	require.NoError(t, err)
	b, err := env.deposits.Submit(context.Background(), uid, decimal.NewFromInt(20), "", "")
	require.NoError(t, err)
	_, err = env.deposits.Reject(context.Background(), b.ID, adminID, "")
	require.NoError(t, err)

	results := env.deposits.ConfirmBatch(context.Background(), []uint{a.ID, 999, b.ID}, adminID)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK)
	assert.Equal(t, "confirmed", results[0].Message)
	assert.False(t, results[1].OK)
	assert.True(t, results[2].OK)
	assert.Contains(t, results[2].Message, "skipped")

	// only the first deposit reached the ledger
	assert.True(t, env.balance(t, uid).Equal(decimal.NewFromInt(10)))
}
