package models

import (
	"time"

	"cafepos-backend/internal/cash"
)

// SessionTransaction is one completed cash sale as the drawer saw it:
// the notes the customer handed over and the notes given back.
type SessionTransaction struct {
	InvoiceNumber string               `json:"invoiceNumber"`
	Total         float64              `json:"total"` // LBP
	TenderedNotes []cash.BreakdownItem `json:"tenderedNotes"`
	ChangeNotes   []cash.BreakdownItem `json:"changeNotes"`
}

// OverageEntry records a change shortfall the drawer absorbed because it
// could not pay out exact change. Deliberate policy: the sale completes.
type OverageEntry struct {
	ID            string    `json:"id"`
	Date          time.Time `json:"date"`
	Amount        float64   `json:"amount"` // LBP
	InvoiceNumber string    `json:"invoiceNumber"`
}

// CashierSession is one cashier's custody of a drawer. At most one active
// session per user; a same-day session is reactivated, never duplicated.
// Once ended, CurrentInventory is the authoritative handover balance.
type CashierSession struct {
	SessionID         string               `gorm:"primaryKey;size:40" json:"sessionId"`
	BranchID          uint                 `gorm:"index;not null" json:"branchId"`
	UserID            uint                 `gorm:"index;not null" json:"userId"`
	UserName          string               `gorm:"size:100" json:"userName"`
	StartTime         time.Time            `gorm:"index;not null" json:"startTime"`
	EndTime           *time.Time           `json:"endTime"`
	StartingInventory cash.Inventory       `gorm:"type:jsonb;serializer:json" json:"startingInventory"`
	CurrentInventory  cash.Inventory       `gorm:"type:jsonb;serializer:json" json:"currentInventory"`
	OverageLog        []OverageEntry       `gorm:"type:jsonb;serializer:json" json:"overageLog"`
	Transactions      []SessionTransaction `gorm:"type:jsonb;serializer:json" json:"transactions"`
	IsActive          bool                 `gorm:"index" json:"isActive"`
	CreatedAt         time.Time            `json:"-"`
	UpdatedAt         time.Time            `json:"-"`
}
