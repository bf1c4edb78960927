package models

import "time"

// ShopSettings holds per-branch display info, the mutable USD→LBP rate
// and the invoice number sequence. Sales pin the rate at transaction
// time; cash box entries do not.
type ShopSettings struct {
	ID            uint   `gorm:"primaryKey"`
	BranchID      uint   `gorm:"uniqueIndex;not null"`
	ShopName      string `gorm:"size:100"`
	Address       string `gorm:"size:255"`
	Phone         string `gorm:"size:50"`
	Website       string `gorm:"size:100"`
	FooterMessage string `gorm:"size:255"`

	UsdToLbpRate float64 `gorm:"not null;default:89000"`

	// Invoice numbering, e.g. "INV-{YYYY}{MM}{DD}-{seq}".
	InvoiceFormat     string `gorm:"size:100;not null;default:'INV-{YYYY}{MM}{DD}-{seq}'"`
	InvoiceNextNumber int    `gorm:"not null;default:1"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
