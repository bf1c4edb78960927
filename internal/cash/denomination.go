package cash

type Currency string

const (
	CurrencyLBP Currency = "LBP"
	CurrencyUSD Currency = "USD"
)

// Banknotes in circulation, largest first. Coins are not handled.
var (
	LBPDenominations = []int{100000, 50000, 20000, 10000, 5000, 1000}
	USDDenominations = []int{100, 50, 20, 10, 5, 1}
)

func Denominations(currency Currency) []int {
	if currency == CurrencyUSD {
		return USDDenominations
	}
	return LBPDenominations
}

func ValidDenomination(currency Currency, note int) bool {
	for _, n := range Denominations(currency) {
		if n == note {
			return true
		}
	}
	return false
}

// BreakdownItem is a stack of identical notes: tendered by the customer,
// given back as change, or exchanged while breaking a note.
type BreakdownItem struct {
	Note     int      `json:"note"`
	Currency Currency `json:"currency"`
	Count    int      `json:"count"`
}

// ValueLBP converts the stack to its LBP equivalent at the given rate.
func (b BreakdownItem) ValueLBP(usdToLbpRate float64) float64 {
	if b.Currency == CurrencyUSD {
		return float64(b.Note) * usdToLbpRate * float64(b.Count)
	}
	return float64(b.Note * b.Count)
}

// TotalValueLBP sums a set of note stacks in LBP.
func TotalValueLBP(items []BreakdownItem, usdToLbpRate float64) float64 {
	var total float64
	for _, it := range items {
		total += it.ValueLBP(usdToLbpRate)
	}
	return total
}
