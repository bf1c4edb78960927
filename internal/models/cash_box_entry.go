package models

import "time"

type EntryType string

const (
	EntryTypeIncome  EntryType = "income"
	EntryTypeExpense EntryType = "expense"
)

// Built-in ledger categories. These are written by the system and can
// never be removed from a branch allow-list.
const (
	CategorySale               = "Sale"
	CategoryTransferToMain     = "Transfer to Main"
	CategoryTransferFromBranch = "Transfer from Branch"
	CategoryPettyCashFunding   = "Petty Cash Funding"
	CategoryPettyCashExpense   = "Petty Cash Expense"
	CategoryCorrection         = "Correction"
	CategoryUnreconciledDrawer = "Unreconciled Drawer"
)

// CashBoxEntry is one line in a branch cash box or the main treasury
// (BranchID nil). Entries are append-only; only manual entries may be
// edited afterwards, and every edit goes through the audit log.
// Amounts are always non-negative, the sign is implied by Type.
type CashBoxEntry struct {
	ID            string    `gorm:"primaryKey;size:40" json:"id"`
	BranchID      *uint     `gorm:"index" json:"branchId"` // nil = main treasury
	Date          time.Time `gorm:"index;not null" json:"date"`
	Type          EntryType `gorm:"size:10;not null" json:"type"`
	Category      string    `gorm:"size:100;not null" json:"category"`
	Description   string    `gorm:"size:255" json:"description,omitempty"`
	AmountLBP     float64   `gorm:"not null" json:"amountLBP"`
	AmountUSD     float64   `gorm:"not null" json:"amountUSD"`
	InvoiceNumber string    `gorm:"size:50;index" json:"invoiceNumber,omitempty"`
	IsManual      bool      `json:"isManual"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}

// CashBoxCategory is one allow-list entry for manual income/expense
// categories. Built-in categories are seeded per branch and protected
// against deletion.
type CashBoxCategory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BranchID  uint      `gorm:"index;not null" json:"branch_id"`
	Kind      EntryType `gorm:"size:10;not null" json:"kind"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	BuiltIn   bool      `json:"built_in"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
