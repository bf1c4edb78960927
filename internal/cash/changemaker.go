package cash

import (
	"math"
	"sort"
)

// ChangeEpsilonLBP absorbs rounding left over after USD conversion. The
// smallest LBP note is 1000, so anything under 500 cannot be paid out.
const ChangeEpsilonLBP = 500

// ChangeResult is the outcome of a change computation. Shortfall > 0 means
// the drawer could not cover the full amount; the sale still completes and
// the caller records the shortfall as an overage.
type ChangeResult struct {
	Breakdown []BreakdownItem `json:"breakdown"`
	Shortfall float64         `json:"shortfall"`
}

type rankedNote struct {
	note     int
	currency Currency
	valueLBP float64
}

// MakeChange picks notes from the drawer to cover changeLBP, largest value
// first. Greedy by design: deterministic and never exceeding the drawer,
// not note-count-optimal. The inventory is not mutated; the breakdown is
// computed against a working copy.
func MakeChange(changeLBP float64, inv Inventory, usdToLbpRate float64) ChangeResult {
	remaining := changeLBP
	available := inv.Clone()
	breakdown := []BreakdownItem{}

	// USD enumerated before LBP so equal-value ties prefer USD notes.
	ranked := make([]rankedNote, 0, len(USDDenominations)+len(LBPDenominations))
	for _, n := range USDDenominations {
		ranked = append(ranked, rankedNote{note: n, currency: CurrencyUSD, valueLBP: float64(n) * usdToLbpRate})
	}
	for _, n := range LBPDenominations {
		ranked = append(ranked, rankedNote{note: n, currency: CurrencyLBP, valueLBP: float64(n)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].valueLBP > ranked[j].valueLBP
	})

	for _, r := range ranked {
		if remaining < r.valueLBP-ChangeEpsilonLBP {
			continue
		}
		availableCount := available.Count(r.currency, r.note)
		if availableCount == 0 {
			continue
		}
		countNeeded := int(math.Floor(remaining / r.valueLBP))
		countToGive := countNeeded
		if availableCount < countToGive {
			countToGive = availableCount
		}
		if countToGive > 0 {
			breakdown = append(breakdown, BreakdownItem{Note: r.note, Currency: r.currency, Count: countToGive})
			remaining -= float64(countToGive) * r.valueLBP
			available[r.currency][r.note] -= countToGive
		}
	}

	if remaining < ChangeEpsilonLBP {
		return ChangeResult{Breakdown: breakdown, Shortfall: 0}
	}
	return ChangeResult{Breakdown: breakdown, Shortfall: remaining}
}
