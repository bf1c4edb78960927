package cash

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInventoryCoversAllDenominations(t *testing.T) {
	inv := NewInventory()

	for _, n := range LBPDenominations {
		assert.Zero(t, inv.Count(CurrencyLBP, n))
	}
	for _, n := range USDDenominations {
		assert.Zero(t, inv.Count(CurrencyUSD, n))
	}
}

func TestInventoryAddSubtract(t *testing.T) {
	inv := NewInventory()

	require.NoError(t, inv.Add(CurrencyLBP, 1000, 5))
	require.NoError(t, inv.Subtract(CurrencyLBP, 1000, 3))
	assert.Equal(t, 2, inv.Count(CurrencyLBP, 1000))

	err := inv.Subtract(CurrencyLBP, 1000, 3)
	assert.ErrorIs(t, err, ErrInsufficientNotes)
	assert.Equal(t, 2, inv.Count(CurrencyLBP, 1000), "failed subtract must not mutate")
}

func TestInventoryRejectsUnknownDenomination(t *testing.T) {
	inv := NewInventory()

	assert.Error(t, inv.Add(CurrencyLBP, 2000, 1))
	assert.Error(t, inv.Subtract(CurrencyUSD, 2, 1))
	assert.Error(t, inv.Add(CurrencyUSD, 1, -1))
}

func TestSubtractItemsAtomic(t *testing.T) {
	inv := NewInventory()
	require.NoError(t, inv.Add(CurrencyLBP, 5000, 2))
	require.NoError(t, inv.Add(CurrencyLBP, 1000, 1))

	err := inv.SubtractItems([]BreakdownItem{
		{Note: 5000, Currency: CurrencyLBP, Count: 1},
		{Note: 1000, Currency: CurrencyLBP, Count: 5}, // more than held
	})

	assert.ErrorIs(t, err, ErrInsufficientNotes)
	assert.Equal(t, 2, inv.Count(CurrencyLBP, 5000), "nothing applied on failure")
	assert.Equal(t, 1, inv.Count(CurrencyLBP, 1000))
}

func TestAddItemsAtomicValidation(t *testing.T) {
	inv := NewInventory()

	err := inv.AddItems([]BreakdownItem{
		{Note: 1000, Currency: CurrencyLBP, Count: 3},
		{Note: 2, Currency: CurrencyUSD, Count: 1}, // no $2 note
	})

	assert.Error(t, err)
	assert.Zero(t, inv.Count(CurrencyLBP, 1000), "nothing applied on failure")
}

func TestAddItemsCreatesMissingCurrency(t *testing.T) {
	// Persisted drawers may carry only one currency key; the other
	// currency's map must be created on first use, not assumed.
	var inv Inventory
	require.NoError(t, json.Unmarshal([]byte(`{"LBP":{"1000":50}}`), &inv))
	require.Nil(t, inv[CurrencyUSD])

	require.NotPanics(t, func() {
		require.NoError(t, inv.AddItems([]BreakdownItem{{Note: 5, Currency: CurrencyUSD, Count: 1}}))
	})
	assert.Equal(t, 1, inv.Count(CurrencyUSD, 5))
	assert.Equal(t, 50, inv.Count(CurrencyLBP, 1000))
}

func TestSubtractOnMissingCurrency(t *testing.T) {
	var inv Inventory
	require.NoError(t, json.Unmarshal([]byte(`{"USD":{"1":3}}`), &inv))

	err := inv.Subtract(CurrencyLBP, 1000, 1)
	assert.ErrorIs(t, err, ErrInsufficientNotes)

	require.NotPanics(t, func() {
		assert.NoError(t, inv.Subtract(CurrencyLBP, 1000, 0))
	})
}

func TestCloneIsIndependent(t *testing.T) {
	inv := NewInventory()
	require.NoError(t, inv.Add(CurrencyUSD, 10, 3))

	clone := inv.Clone()
	require.NoError(t, clone.Subtract(CurrencyUSD, 10, 3))

	assert.Equal(t, 3, inv.Count(CurrencyUSD, 10))
	assert.Zero(t, clone.Count(CurrencyUSD, 10))
}

func TestTotalValue(t *testing.T) {
	inv := NewInventory()
	require.NoError(t, inv.Add(CurrencyLBP, 100000, 2))
	require.NoError(t, inv.Add(CurrencyLBP, 5000, 4))
	require.NoError(t, inv.Add(CurrencyUSD, 50, 1))
	require.NoError(t, inv.Add(CurrencyUSD, 1, 7))

	assert.Equal(t, 220000, inv.TotalValue(CurrencyLBP))
	assert.Equal(t, 57, inv.TotalValue(CurrencyUSD))
	assert.InDelta(t, 220000+57*89000.0, inv.TotalValueLBP(89000), 0.01)
}

func TestBreakdownItemValueLBP(t *testing.T) {
	tests := []struct {
		name string
		item BreakdownItem
		want float64
	}{
		{"lbp stack", BreakdownItem{Note: 20000, Currency: CurrencyLBP, Count: 3}, 60000},
		{"usd stack", BreakdownItem{Note: 5, Currency: CurrencyUSD, Count: 2}, 890000},
		{"empty stack", BreakdownItem{Note: 100, Currency: CurrencyUSD, Count: 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.item.ValueLBP(89000), 0.01)
		})
	}
}
