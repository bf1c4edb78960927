package session

import (
	"context"
	"time"

	"cafepos-backend/internal/models"

	"gorm.io/gorm"
)

// GormStore persists session collections in Postgres. SaveSessions keeps
// the whole-collection replace contract but runs delete and reinsert in a
// single transaction, so a crash can never lose a branch's sessions.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) LoadSessions(ctx context.Context, branchID uint) ([]models.CashierSession, error) {
	var sessions []models.CashierSession
	err := s.db.WithContext(ctx).
		Where("branch_id = ?", branchID).
		Order("start_time asc, session_id asc").
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *GormStore) SaveSessions(ctx context.Context, branchID uint, sessions []models.CashierSession) ([]models.CashierSession, error) {
	now := time.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("branch_id = ?", branchID).Delete(&models.CashierSession{}).Error; err != nil {
			return err
		}
		for i := range sessions {
			sessions[i].BranchID = branchID
			sessions[i].UpdatedAt = now
			if err := tx.Create(&sessions[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.LoadSessions(ctx, branchID)
}

func (s *GormStore) DeactivateUserSessions(ctx context.Context, userID uint, exceptBranchID uint) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&models.CashierSession{}).
		Where("user_id = ? AND branch_id <> ? AND is_active = ?", userID, exceptBranchID, true).
		Updates(map[string]any{"is_active": false, "end_time": now}).Error
}
