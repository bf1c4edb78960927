package cash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRate = 89000

func drawerWith(counts map[Currency]map[int]int) Inventory {
	inv := NewInventory()
	for cur, notes := range counts {
		for note, count := range notes {
			inv[cur][note] = count
		}
	}
	return inv
}

func TestMakeChangeExactLBP(t *testing.T) {
	inv := drawerWith(map[Currency]map[int]int{
		CurrencyLBP: {100000: 2, 20000: 5, 10000: 5, 5000: 5, 1000: 10},
	})

	res := MakeChange(37000, inv, testRate)

	assert.Zero(t, res.Shortfall)
	assert.Equal(t, []BreakdownItem{
		{Note: 20000, Currency: CurrencyLBP, Count: 1},
		{Note: 10000, Currency: CurrencyLBP, Count: 1},
		{Note: 5000, Currency: CurrencyLBP, Count: 1},
		{Note: 1000, Currency: CurrencyLBP, Count: 2},
	}, res.Breakdown)
	assert.InDelta(t, 37000, TotalValueLBP(res.Breakdown, testRate), 0.01)
}

func TestMakeChangePrefersUSDOnHigherValue(t *testing.T) {
	// $1 = 89,000 LBP outranks every LBP note below 100,000.
	inv := drawerWith(map[Currency]map[int]int{
		CurrencyLBP: {50000: 10, 20000: 10, 10000: 10, 5000: 10, 1000: 10},
		CurrencyUSD: {1: 5},
	})

	res := MakeChange(89000, inv, testRate)

	require.NotEmpty(t, res.Breakdown)
	assert.Equal(t, BreakdownItem{Note: 1, Currency: CurrencyUSD, Count: 1}, res.Breakdown[0])
	assert.Zero(t, res.Shortfall)
}

func TestMakeChangeEpsilonAbsorbed(t *testing.T) {
	inv := drawerWith(map[Currency]map[int]int{
		CurrencyLBP: {1000: 10},
	})

	// Residue under 500 LBP cannot be paid out and is not a shortfall.
	res := MakeChange(400, inv, testRate)
	assert.Empty(t, res.Breakdown)
	assert.Zero(t, res.Shortfall)

	res = MakeChange(3400, inv, testRate)
	assert.Equal(t, []BreakdownItem{{Note: 1000, Currency: CurrencyLBP, Count: 3}}, res.Breakdown)
	assert.Zero(t, res.Shortfall)
}

func TestMakeChangeShortfall(t *testing.T) {
	t.Run("empty drawer", func(t *testing.T) {
		res := MakeChange(5000, NewInventory(), testRate)
		assert.Empty(t, res.Breakdown)
		assert.InDelta(t, 5000, res.Shortfall, 0.01)
	})

	t.Run("partial coverage", func(t *testing.T) {
		inv := drawerWith(map[Currency]map[int]int{
			CurrencyLBP: {1000: 2},
		})
		res := MakeChange(5000, inv, testRate)
		assert.Equal(t, []BreakdownItem{{Note: 1000, Currency: CurrencyLBP, Count: 2}}, res.Breakdown)
		assert.InDelta(t, 3000, res.Shortfall, 0.01)
	})
}

func TestMakeChangeLimitedByAvailability(t *testing.T) {
	// Two 100,000 notes are needed but only one is held, so the greedy
	// walk falls through to the next denomination.
	inv := drawerWith(map[Currency]map[int]int{
		CurrencyLBP: {100000: 1, 50000: 3},
	})

	res := MakeChange(250000, inv, testRate)

	assert.Equal(t, []BreakdownItem{
		{Note: 100000, Currency: CurrencyLBP, Count: 1},
		{Note: 50000, Currency: CurrencyLBP, Count: 3},
	}, res.Breakdown)
	assert.Zero(t, res.Shortfall)
}

func TestMakeChangeSkipsNotesAboveRemaining(t *testing.T) {
	inv := drawerWith(map[Currency]map[int]int{
		CurrencyLBP: {100000: 5, 10000: 5},
	})

	res := MakeChange(30000, inv, testRate)

	assert.Equal(t, []BreakdownItem{{Note: 10000, Currency: CurrencyLBP, Count: 3}}, res.Breakdown)
	assert.Zero(t, res.Shortfall)
}

func TestMakeChangeDoesNotMutateInventory(t *testing.T) {
	inv := drawerWith(map[Currency]map[int]int{
		CurrencyLBP: {10000: 4},
	})

	_ = MakeChange(30000, inv, testRate)

	assert.Equal(t, 4, inv.Count(CurrencyLBP, 10000))
}

func TestMakeChangeNeverExceedsDue(t *testing.T) {
	inv := drawerWith(map[Currency]map[int]int{
		CurrencyLBP: {100000: 3, 50000: 3, 20000: 3, 10000: 3, 5000: 3, 1000: 3},
		CurrencyUSD: {100: 2, 50: 2, 20: 2, 10: 2, 5: 2, 1: 2},
	})

	for _, due := range []float64{1500, 47000, 89500, 133700, 2000000} {
		res := MakeChange(due, inv, testRate)
		paid := TotalValueLBP(res.Breakdown, testRate)
		assert.LessOrEqual(t, paid, due, "due %.0f", due)
		assert.InDelta(t, due-paid, res.Shortfall, ChangeEpsilonLBP, "due %.0f", due)
	}
}
