package models

import "time"

// PettyCashBalance is a branch-local discretionary sub-fund, funded from
// the branch cash box. Neither currency may go negative.
type PettyCashBalance struct {
	BranchID  uint      `gorm:"primaryKey" json:"branchId"`
	LBP       float64   `gorm:"not null;default:0" json:"lbp"`
	USD       float64   `gorm:"not null;default:0" json:"usd"`
	UpdatedAt time.Time `json:"-"`
}
