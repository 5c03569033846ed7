package wallet

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hoangnm-dev/gametopup_be/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.WalletTransaction{},
	))
	return gdb
}

func newTestUser(t *testing.T, gdb *gorm.DB) uuid.UUID {
	t.Helper()
	u := models.User{
		ID:       uuid.New(),
		Name:     "Test User",
		Email:    uuid.NewString() + "@example.com",
		Password: "x",
		Role:     models.RoleUser,
		IsActive: true,
	}
	require.NoError(t, gdb.Create(&u).Error)
	return u.ID
}

func TestGetOrCreateIsLazy(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewWalletService(gdb)
	uid := newTestUser(t, gdb)

	w, err := svc.GetOrCreate(gdb, uid)
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.IsActive)

	again, err := svc.GetOrCreate(gdb, uid)
	require.NoError(t, err)
	assert.Equal(t, w.ID, again.ID)

	var count int64
	require.NoError(t, gdb.Model(&models.Wallet{}).Where("user_id = ?", uid).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreditThenDebit(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewWalletService(gdb)
	uid := newTestUser(t, gdb)
	_, err := svc.GetOrCreate(gdb, uid)
	require.NoError(t, err)

	entry, err := svc.Credit(gdb, uid, decimal.NewFromInt(100), models.WalletTrxDeposit, "top up", nil)
	require.NoError(t, err)
	assert.True(t, entry.BalanceBefore.IsZero())
	assert.True(t, entry.BalanceAfter.Equal(decimal.NewFromInt(100)))

	ref := "GT-000001"
	entry, err = svc.Debit(gdb, uid, decimal.NewFromFloat(39.50), models.WalletTrxPayment, "payment", &ref)
	require.NoError(t, err)
	assert.True(t, entry.BalanceBefore.Equal(decimal.NewFromInt(100)))
	assert.True(t, entry.BalanceAfter.Equal(decimal.NewFromFloat(60.50)))

	var w models.Wallet
	require.NoError(t, gdb.Where("user_id = ?", uid).First(&w).Error)
	assert.True(t, w.Balance.Equal(decimal.NewFromFloat(60.50)), "stored balance is %s", w.Balance)
}

func TestDebitInsufficientBalanceLeavesNoTrace(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewWalletService(gdb)
	uid := newTestUser(t, gdb)
	_, err := svc.GetOrCreate(gdb, uid)
	require.NoError(t, err)

	_, err = svc.Credit(gdb, uid, decimal.NewFromInt(10), models.WalletTrxDeposit, "top up", nil)
	require.NoError(t, err)

	_, err = svc.Debit(gdb, uid, decimal.NewFromFloat(10.01), models.WalletTrxPayment, "too much", nil)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// balance untouched, no ledger row for the refused debit
	var w models.Wallet
	require.NoError(t, gdb.Where("user_id = ?", uid).First(&w).Error)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(10)))

	var count int64
	require.NoError(t, gdb.Model(&models.WalletTransaction{}).Where("user_id = ?", uid).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// an exact-cover debit drains to zero but never below
	_, err = svc.Debit(gdb, uid, decimal.NewFromInt(10), models.WalletTrxPayment, "exact", nil)
	require.NoError(t, err)
	require.NoError(t, gdb.Where("user_id = ?", uid).First(&w).Error)
	assert.True(t, w.Balance.IsZero())
}

func TestMutationsRejectBadInput(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewWalletService(gdb)
	uid := newTestUser(t, gdb)
	_, err := svc.GetOrCreate(gdb, uid)
	require.NoError(t, err)

	_, err = svc.Credit(gdb, uid, decimal.Zero, models.WalletTrxDeposit, "", nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.Debit(gdb, uid, decimal.NewFromInt(-5), models.WalletTrxPayment, "", nil)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// direction mismatch
	_, err = svc.Credit(gdb, uid, decimal.NewFromInt(5), models.WalletTrxPayment, "", nil)
	assert.Error(t, err)
	_, err = svc.Debit(gdb, uid, decimal.NewFromInt(5), models.WalletTrxDeposit, "", nil)
	assert.Error(t, err)

	// missing wallet
	_, err = svc.Credit(gdb, uuid.New(), decimal.NewFromInt(5), models.WalletTrxDeposit, "", nil)
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestLedgerSumMatchesBalance(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewWalletService(gdb)
	uid := newTestUser(t, gdb)
	_, err := svc.GetOrCreate(gdb, uid)
	require.NoError(t, err)

	steps := []struct {
		credit bool
		amount string
		typ    models.WalletTrxType
	}{
		{true, "50.00", models.WalletTrxDeposit},
		{true, "12.34", models.WalletTrxBonus},
		{false, "9.99", models.WalletTrxPayment},
		{true, "5.00", models.WalletTrxRefund},
		{false, "20.01", models.WalletTrxWithdraw},
	}
	for _, st := range steps {
		amt, err := decimal.NewFromString(st.amount)
		require.NoError(t, err)
		if st.credit {
			_, err = svc.Credit(gdb, uid, amt, st.typ, "", nil)
		} else {
			_, err = svc.Debit(gdb, uid, amt, st.typ, "", nil)
		}
		require.NoError(t, err)
	}

	var entries []models.WalletTransaction
	require.NoError(t, gdb.Where("user_id = ?", uid).Order("id ASC").Find(&entries).Error)
	require.Len(t, entries, len(steps))

	sum := decimal.Zero
	for _, e := range entries {
		// each row chains off the previous one
		assert.True(t, e.BalanceAfter.Equal(e.BalanceBefore.Add(e.SignedAmount())))
		sum = sum.Add(e.SignedAmount())
	}

	var w models.Wallet
	require.NoError(t, gdb.Where("user_id = ?", uid).First(&w).Error)
	assert.True(t, w.Balance.Equal(sum), "balance %s does not equal ledger sum %s", w.Balance, sum)
}

func TestFindByReference(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewWalletService(gdb)
	uid := newTestUser(t, gdb)
	_, err := svc.GetOrCreate(gdb, uid)
	require.NoError(t, err)

	ref := "deposit_7"
	_, err = svc.Credit(gdb, uid, decimal.NewFromInt(25), models.WalletTrxDeposit, "", &ref)
	require.NoError(t, err)

	found, err := svc.FindByReference(gdb, uid, models.WalletTrxDeposit, ref)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Amount.Equal(decimal.NewFromInt(25)))

	// same reference, different type: distinct idempotency key
	missing, err := svc.FindByReference(gdb, uid, models.WalletTrxRefund, ref)
	require.NoError(t, err)
	assert.Nil(t, missing)

	missing, err = svc.FindByReference(gdb, uid, models.WalletTrxDeposit, "deposit_8")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestHistoryNewestFirst(t *testing.T) {
	gdb := newTestDB(t)
	svc := NewWalletService(gdb)
	uid := newTestUser(t, gdb)
	_, err := svc.GetOrCreate(gdb, uid)
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		_, err := svc.Credit(gdb, uid, decimal.NewFromInt(int64(i)), models.WalletTrxDeposit, "", nil)
		require.NoError(t, err)
	}

	entries, total, err := svc.History(uid, 3, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(5)))
	assert.True(t, entries[2].Amount.Equal(decimal.NewFromInt(3)))
}
