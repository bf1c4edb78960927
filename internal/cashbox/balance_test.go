package cashbox

import (
	"testing"

	"cafepos-backend/internal/cash"
	"cafepos-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestBalanceOf(t *testing.T) {
	entries := []models.CashBoxEntry{
		{Type: models.EntryTypeIncome, Category: models.CategorySale, AmountLBP: 500000, AmountUSD: 20},
		{Type: models.EntryTypeIncome, Category: "Owner Deposit", AmountLBP: 1000000},
		{Type: models.EntryTypeExpense, Category: "Supplier Payment", AmountLBP: 300000, AmountUSD: 5},
	}

	b := BalanceOf(entries)

	assert.InDelta(t, 1200000, b.LBP, 0.01)
	assert.InDelta(t, 15, b.USD, 0.01)
}

func TestBalanceOfEmptyBox(t *testing.T) {
	b := BalanceOf(nil)
	assert.Zero(t, b.LBP)
	assert.Zero(t, b.USD)
}

// A transfer is a paired write: the branch box goes down by exactly what
// the main treasury goes up by.
func TestTransferPairBalances(t *testing.T) {
	branchEntries := []models.CashBoxEntry{
		{Type: models.EntryTypeIncome, Category: models.CategorySale, AmountLBP: 2000000, AmountUSD: 100},
		{Type: models.EntryTypeExpense, Category: models.CategoryTransferToMain, AmountLBP: 1500000, AmountUSD: 60},
	}
	mainEntries := []models.CashBoxEntry{
		{Type: models.EntryTypeIncome, Category: models.CategoryTransferFromBranch, AmountLBP: 1500000, AmountUSD: 60},
	}

	branch := BalanceOf(branchEntries)
	main := BalanceOf(mainEntries)

	assert.InDelta(t, 500000, branch.LBP, 0.01)
	assert.InDelta(t, 40, branch.USD, 0.01)
	assert.InDelta(t, 1500000, main.LBP, 0.01)
	assert.InDelta(t, 60, main.USD, 0.01)
}

func TestCheckPettyCashExpense(t *testing.T) {
	balance := models.PettyCashBalance{BranchID: 1, LBP: 100000, USD: 10}

	tests := []struct {
		name      string
		amountLBP float64
		amountUSD float64
		wantErr   error
	}{
		{"within both balances", 50000, 5, nil},
		{"exactly the balance", 100000, 10, nil},
		{"lbp exceeded", 100001, 0, ErrPettyCashExceeded},
		{"usd exceeded", 0, 10.5, ErrPettyCashExceeded},
		{"both exceeded", 200000, 20, ErrPettyCashExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPettyCashExpense(balance, tt.amountLBP, tt.amountUSD)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("negative amounts rejected", func(t *testing.T) {
		assert.Error(t, CheckPettyCashExpense(balance, -1, 0))
	})
}

func TestSaleAmounts(t *testing.T) {
	tx := models.SessionTransaction{
		TenderedNotes: []cash.BreakdownItem{
			{Note: 100000, Currency: cash.CurrencyLBP, Count: 1},
			{Note: 5, Currency: cash.CurrencyUSD, Count: 1},
		},
		ChangeNotes: []cash.BreakdownItem{
			{Note: 20000, Currency: cash.CurrencyLBP, Count: 2},
			{Note: 1, Currency: cash.CurrencyUSD, Count: 2},
		},
	}

	amountLBP, amountUSD := SaleAmounts(tx)

	assert.InDelta(t, 60000, amountLBP, 0.01)
	assert.InDelta(t, 3, amountUSD, 0.01)
}

func TestSaleAmountsChangeOnlyInOtherCurrency(t *testing.T) {
	// Customer pays in USD, receives LBP change: the drawer nets USD in
	// and LBP out, both recorded by face value.
	tx := models.SessionTransaction{
		TenderedNotes: []cash.BreakdownItem{
			{Note: 10, Currency: cash.CurrencyUSD, Count: 1},
		},
		ChangeNotes: []cash.BreakdownItem{
			{Note: 50000, Currency: cash.CurrencyLBP, Count: 1},
		},
	}

	amountLBP, amountUSD := SaleAmounts(tx)

	assert.InDelta(t, 50000, amountLBP, 0.01)
	assert.InDelta(t, 10, amountUSD, 0.01)
}

func TestIsBuiltInCategory(t *testing.T) {
	assert.True(t, IsBuiltInCategory(models.CategorySale))
	assert.True(t, IsBuiltInCategory(models.CategoryUnreconciledDrawer))
	assert.False(t, IsBuiltInCategory("Supplier Payment"))
}
