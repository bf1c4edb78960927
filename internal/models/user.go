package models

import "time"

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleCashier UserRole = "cashier"
)

type User struct {
	ID        uint  `gorm:"primaryKey"`
	BranchID  *uint // nil for admins with access to every branch
	Branch    *Branch
	Name      string   `gorm:"size:100;uniqueIndex;not null"`
	PINHash   string   `gorm:"size:255;not null"` // bcrypt hash of the 4-digit PIN
	Role      UserRole `gorm:"size:20;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
