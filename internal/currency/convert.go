package currency

import (
	"fmt"
	"math"
	"strconv"

	"cafepos-backend/internal/cash"
)

// ToLBP converts an amount in the given currency to LBP at the branch rate.
func ToLBP(amount float64, cur cash.Currency, usdToLbpRate float64) float64 {
	if cur == cash.CurrencyUSD {
		return amount * usdToLbpRate
	}
	return amount
}

// ToUSD converts an LBP amount to USD at the branch rate.
func ToUSD(amountLBP float64, usdToLbpRate float64) float64 {
	if usdToLbpRate == 0 {
		return 0
	}
	return amountLBP / usdToLbpRate
}

// DualPrice is the display form used on receipts and monitoring views.
type DualPrice struct {
	USD string `json:"usd"`
	LBP string `json:"lbp"`
}

// FormatDual renders an LBP amount in both currencies, e.g.
// {USD: "$12.50", LBP: "1,120,000 LBP"}. LBP is rounded to the note.
func FormatDual(amountLBP float64, usdToLbpRate float64) DualPrice {
	return DualPrice{
		USD: fmt.Sprintf("$%.2f", ToUSD(amountLBP, usdToLbpRate)),
		LBP: groupThousands(int64(math.Round(amountLBP))) + " LBP",
	}
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		return "-" + s
	}
	return s
}
