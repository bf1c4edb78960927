package cash

import (
	"errors"
	"fmt"
)

var ErrInsufficientNotes = errors.New("insufficient notes in drawer")

// Inventory tracks how many notes of each denomination a drawer holds.
// Counts never go negative; Subtract refuses instead of mutating.
// The JSON shape matches the persisted session format:
// {"LBP":{"1000":50,...},"USD":{"1":3,...}}
type Inventory map[Currency]map[int]int

// NewInventory returns a zeroed inventory covering every known denomination.
func NewInventory() Inventory {
	inv := Inventory{
		CurrencyLBP: make(map[int]int, len(LBPDenominations)),
		CurrencyUSD: make(map[int]int, len(USDDenominations)),
	}
	for _, n := range LBPDenominations {
		inv[CurrencyLBP][n] = 0
	}
	for _, n := range USDDenominations {
		inv[CurrencyUSD][n] = 0
	}
	return inv
}

func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(inv))
	for cur, notes := range inv {
		out[cur] = make(map[int]int, len(notes))
		for note, count := range notes {
			out[cur][note] = count
		}
	}
	return out
}

func (inv Inventory) Count(currency Currency, note int) int {
	return inv[currency][note]
}

func (inv Inventory) Add(currency Currency, note, count int) error {
	if !ValidDenomination(currency, note) {
		return fmt.Errorf("unknown denomination %d %s", note, currency)
	}
	if count < 0 {
		return fmt.Errorf("negative note count %d", count)
	}
	if inv[currency] == nil {
		inv[currency] = make(map[int]int)
	}
	inv[currency][note] += count
	return nil
}

func (inv Inventory) Subtract(currency Currency, note, count int) error {
	if !ValidDenomination(currency, note) {
		return fmt.Errorf("unknown denomination %d %s", note, currency)
	}
	if count < 0 {
		return fmt.Errorf("negative note count %d", count)
	}
	if inv[currency][note] < count {
		return fmt.Errorf("%w: have %d x %d %s, need %d", ErrInsufficientNotes, inv[currency][note], note, currency, count)
	}
	if inv[currency] == nil {
		inv[currency] = make(map[int]int)
	}
	inv[currency][note] -= count
	return nil
}

// AddItems applies a set of note stacks. Fails atomically: nothing is
// applied unless every item is valid. A currency the inventory has not
// seen yet gets its map created, since JSON-decoded drawers may carry
// only one currency key.
func (inv Inventory) AddItems(items []BreakdownItem) error {
	for _, it := range items {
		if !ValidDenomination(it.Currency, it.Note) {
			return fmt.Errorf("unknown denomination %d %s", it.Note, it.Currency)
		}
		if it.Count < 0 {
			return fmt.Errorf("negative note count %d", it.Count)
		}
	}
	for _, it := range items {
		if inv[it.Currency] == nil {
			inv[it.Currency] = make(map[int]int)
		}
		inv[it.Currency][it.Note] += it.Count
	}
	return nil
}

// SubtractItems removes a set of note stacks. Fails atomically if any
// stack would leave a negative count.
func (inv Inventory) SubtractItems(items []BreakdownItem) error {
	work := inv.Clone()
	for _, it := range items {
		if err := work.Subtract(it.Currency, it.Note, it.Count); err != nil {
			return err
		}
	}
	for cur, notes := range work {
		inv[cur] = notes
	}
	return nil
}

// TotalValue is the face value held in one currency.
func (inv Inventory) TotalValue(currency Currency) int {
	var total int
	for note, count := range inv[currency] {
		total += note * count
	}
	return total
}

// TotalValueLBP is the combined drawer value in LBP at the given rate.
func (inv Inventory) TotalValueLBP(usdToLbpRate float64) float64 {
	return float64(inv.TotalValue(CurrencyLBP)) + float64(inv.TotalValue(CurrencyUSD))*usdToLbpRate
}
