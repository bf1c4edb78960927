package cashbox

import (
	"context"
	"errors"

	"cafepos-backend/internal/models"

	"gorm.io/gorm"
)

// Default allow-lists seeded for every new branch. Operators extend them
// from the admin panel.
var (
	DefaultIncomeCategories = []string{
		"Owner Deposit",
		"Miscellaneous Income",
	}
	DefaultExpenseCategories = []string{
		"Supplier Payment",
		"Utilities Bill",
		"Rent Payment",
		"Salary Payout",
		"Office Supplies",
		"Maintenance & Repairs",
		"Petty Cash Expense",
	}
)

// builtinCategories are written by the system itself and can never be
// removed from any allow-list.
var builtinCategories = map[string]bool{
	models.CategorySale:               true,
	models.CategoryTransferToMain:     true,
	models.CategoryTransferFromBranch: true,
	models.CategoryPettyCashFunding:   true,
	models.CategoryPettyCashExpense:   true,
	models.CategoryCorrection:         true,
	models.CategoryUnreconciledDrawer: true,
}

func IsBuiltInCategory(name string) bool {
	return builtinCategories[name]
}

// SeedDefaultCategories installs the default allow-lists for a branch.
// Called when a branch is created; idempotent.
func (s *Service) SeedDefaultCategories(ctx context.Context, branchID uint) error {
	seed := func(kind models.EntryType, names []string) error {
		for _, name := range names {
			cat := models.CashBoxCategory{BranchID: branchID, Kind: kind, Name: name, BuiltIn: IsBuiltInCategory(name)}
			err := s.db.WithContext(ctx).
				Where(models.CashBoxCategory{BranchID: branchID, Kind: kind, Name: name}).
				FirstOrCreate(&cat).Error
			if err != nil {
				return err
			}
		}
		return nil
	}
	if err := seed(models.EntryTypeIncome, DefaultIncomeCategories); err != nil {
		return err
	}
	return seed(models.EntryTypeExpense, DefaultExpenseCategories)
}

func (s *Service) ListCategories(ctx context.Context, branchID uint, kind models.EntryType) ([]models.CashBoxCategory, error) {
	var cats []models.CashBoxCategory
	q := s.db.WithContext(ctx).Where("branch_id = ?", branchID).Order("name asc")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if err := q.Find(&cats).Error; err != nil {
		return nil, err
	}
	return cats, nil
}

func (s *Service) AddCategory(ctx context.Context, branchID uint, kind models.EntryType, name string) (models.CashBoxCategory, error) {
	if name == "" {
		return models.CashBoxCategory{}, errors.New("category name is required")
	}
	if kind != models.EntryTypeIncome && kind != models.EntryTypeExpense {
		return models.CashBoxCategory{}, errors.New("kind must be income or expense")
	}
	cat := models.CashBoxCategory{BranchID: branchID, Kind: kind, Name: name}
	err := s.db.WithContext(ctx).
		Where(models.CashBoxCategory{BranchID: branchID, Kind: kind, Name: name}).
		FirstOrCreate(&cat).Error
	if err != nil {
		return models.CashBoxCategory{}, err
	}
	return cat, nil
}

// DeleteCategory removes an allow-list entry. Built-in categories and
// categories still referenced by existing entries are protected.
func (s *Service) DeleteCategory(ctx context.Context, branchID uint, categoryID uint) error {
	var cat models.CashBoxCategory
	if err := s.db.WithContext(ctx).First(&cat, "id = ? AND branch_id = ?", categoryID, branchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCategoryUnknown
		}
		return err
	}
	if cat.BuiltIn || IsBuiltInCategory(cat.Name) {
		return ErrCategoryBuiltIn
	}
	var refs int64
	err := s.db.WithContext(ctx).Model(&models.CashBoxEntry{}).
		Where("branch_id = ? AND category = ?", branchID, cat.Name).
		Count(&refs).Error
	if err != nil {
		return err
	}
	if refs > 0 {
		return ErrCategoryInUse
	}
	return s.db.WithContext(ctx).Delete(&cat).Error
}

func (s *Service) categoryAllowed(ctx context.Context, branchID uint, kind models.EntryType, name string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.CashBoxCategory{}).
		Where("branch_id = ? AND kind = ? AND name = ?", branchID, kind, name).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
