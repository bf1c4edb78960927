package cashbox

import (
	"errors"

	"cafepos-backend/internal/cash"
	"cafepos-backend/internal/models"
)

var ErrPettyCashExceeded = errors.New("expense exceeds available petty cash")

// Balance is a running cash box balance. LBP and USD are tracked
// independently and never merged into a single number; merging happens
// only for display through the currency package.
type Balance struct {
	LBP float64 `json:"lbp"`
	USD float64 `json:"usd"`
}

// BalanceOf folds entries chronologically: income adds, expense
// subtracts. Entries are stored with non-negative amounts, the sign
// lives in the type.
func BalanceOf(entries []models.CashBoxEntry) Balance {
	var b Balance
	for _, e := range entries {
		switch e.Type {
		case models.EntryTypeIncome:
			b.LBP += e.AmountLBP
			b.USD += e.AmountUSD
		case models.EntryTypeExpense:
			b.LBP -= e.AmountLBP
			b.USD -= e.AmountUSD
		}
	}
	return b
}

// CheckPettyCashExpense rejects a petty cash expense before any mutation
// if the requested amount in either currency exceeds that currency's
// balance.
func CheckPettyCashExpense(balance models.PettyCashBalance, amountLBP, amountUSD float64) error {
	if amountLBP < 0 || amountUSD < 0 {
		return errors.New("amounts must be non-negative")
	}
	if amountLBP > balance.LBP || amountUSD > balance.USD {
		return ErrPettyCashExceeded
	}
	return nil
}

// SaleAmounts nets a session transaction's notes per currency: what the
// customer handed over minus what went back out as change, by face value.
func SaleAmounts(tx models.SessionTransaction) (amountLBP, amountUSD float64) {
	var tenderedLBP, tenderedUSD, changeLBP, changeUSD float64
	for _, n := range tx.TenderedNotes {
		if n.Currency == cash.CurrencyUSD {
			tenderedUSD += float64(n.Note * n.Count)
		} else {
			tenderedLBP += float64(n.Note * n.Count)
		}
	}
	for _, n := range tx.ChangeNotes {
		if n.Currency == cash.CurrencyUSD {
			changeUSD += float64(n.Note * n.Count)
		} else {
			changeLBP += float64(n.Note * n.Count)
		}
	}
	amountLBP = tenderedLBP - changeLBP
	amountUSD = tenderedUSD - changeUSD
	if amountLBP < 0 {
		amountLBP = -amountLBP
	}
	if amountUSD < 0 {
		amountUSD = -amountUSD
	}
	return amountLBP, amountUSD
}
