package cashbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cafepos-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrCategoryUnknown = errors.New("category is not in the allow-list")
	ErrCategoryInUse   = errors.New("category is referenced by existing entries")
	ErrCategoryBuiltIn = errors.New("built-in categories cannot be removed")
	ErrNotManual       = errors.New("only manually created entries can be edited")
	ErrEntryNotFound   = errors.New("entry not found")
	ErrReasonRequired  = errors.New("a correction requires a reason")
)

// Service owns the append-only cash box ledgers: one per branch plus the
// main treasury (branchID nil). Entries are never deleted; operator
// edits are limited to manual entries and mistakes are fixed with
// Correction entries.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Entries lists one box chronologically. branchID nil selects the main
// treasury.
func (s *Service) Entries(ctx context.Context, branchID *uint) ([]models.CashBoxEntry, error) {
	var entries []models.CashBoxEntry
	q := s.db.WithContext(ctx).Order("date asc, id asc")
	if branchID == nil {
		q = q.Where("branch_id IS NULL")
	} else {
		q = q.Where("branch_id = ?", *branchID)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ReplaceEntries applies a whole authoritative collection for one box in
// a single transaction (the save contract is replace, not delta).
func (s *Service) ReplaceEntries(ctx context.Context, branchID *uint, entries []models.CashBoxEntry) ([]models.CashBoxEntry, error) {
	for _, e := range entries {
		if err := validateAmounts(e.AmountLBP, e.AmountUSD); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Session(&gorm.Session{})
		if branchID == nil {
			q = q.Where("branch_id IS NULL")
		} else {
			q = q.Where("branch_id = ?", *branchID)
		}
		if err := q.Delete(&models.CashBoxEntry{}).Error; err != nil {
			return err
		}
		for i := range entries {
			entries[i].BranchID = branchID
			if entries[i].ID == "" {
				entries[i].ID = uuid.NewString()
			}
			if err := tx.Create(&entries[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Entries(ctx, branchID)
}

// RecordSale appends the automatic income entry for one completed cash
// sale: the net cash that actually settled in the drawer.
func (s *Service) RecordSale(ctx context.Context, branchID uint, tx models.SessionTransaction) (models.CashBoxEntry, error) {
	amountLBP, amountUSD := SaleAmounts(tx)
	entry := models.CashBoxEntry{
		ID:            uuid.NewString(),
		BranchID:      &branchID,
		Date:          time.Now(),
		Type:          models.EntryTypeIncome,
		Category:      models.CategorySale,
		Description:   fmt.Sprintf("Invoice: %s", tx.InvoiceNumber),
		AmountLBP:     amountLBP,
		AmountUSD:     amountUSD,
		InvoiceNumber: tx.InvoiceNumber,
		IsManual:      false,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return models.CashBoxEntry{}, err
	}
	return entry, nil
}

// ManualEntryInput is an operator-written income or expense line.
type ManualEntryInput struct {
	Type        models.EntryType
	Category    string
	Description string
	AmountLBP   float64
	AmountUSD   float64
	Date        *time.Time
}

// CreateManualEntry appends an operator entry. The category must be in
// the branch allow-list for its type; the main treasury accepts any of
// its branch-independent categories plus the built-ins.
func (s *Service) CreateManualEntry(ctx context.Context, branchID *uint, in ManualEntryInput) (models.CashBoxEntry, error) {
	if in.Type != models.EntryTypeIncome && in.Type != models.EntryTypeExpense {
		return models.CashBoxEntry{}, errors.New("type must be income or expense")
	}
	if err := validateAmounts(in.AmountLBP, in.AmountUSD); err != nil {
		return models.CashBoxEntry{}, err
	}
	if branchID != nil {
		ok, err := s.categoryAllowed(ctx, *branchID, in.Type, in.Category)
		if err != nil {
			return models.CashBoxEntry{}, err
		}
		if !ok {
			return models.CashBoxEntry{}, ErrCategoryUnknown
		}
	}
	date := time.Now()
	if in.Date != nil {
		date = *in.Date
	}
	entry := models.CashBoxEntry{
		ID:          uuid.NewString(),
		BranchID:    branchID,
		Date:        date,
		Type:        in.Type,
		Category:    in.Category,
		Description: in.Description,
		AmountLBP:   in.AmountLBP,
		AmountUSD:   in.AmountUSD,
		IsManual:    true,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return models.CashBoxEntry{}, err
	}
	return entry, nil
}

// UpdateManualEntry edits an operator-created entry in place. Automatic
// entries (sales, transfers, petty cash) stay immutable.
func (s *Service) UpdateManualEntry(ctx context.Context, entryID string, in ManualEntryInput) (models.CashBoxEntry, error) {
	if err := validateAmounts(in.AmountLBP, in.AmountUSD); err != nil {
		return models.CashBoxEntry{}, err
	}
	var entry models.CashBoxEntry
	if err := s.db.WithContext(ctx).First(&entry, "id = ?", entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.CashBoxEntry{}, ErrEntryNotFound
		}
		return models.CashBoxEntry{}, err
	}
	if !entry.IsManual {
		return models.CashBoxEntry{}, ErrNotManual
	}
	entry.Type = in.Type
	entry.Category = in.Category
	entry.Description = in.Description
	entry.AmountLBP = in.AmountLBP
	entry.AmountUSD = in.AmountUSD
	if in.Date != nil {
		entry.Date = *in.Date
	}
	if err := s.db.WithContext(ctx).Save(&entry).Error; err != nil {
		return models.CashBoxEntry{}, err
	}
	return entry, nil
}

// CreateCorrection appends a correction line. Corrections are always
// permitted, even against locked categories, but a reason is mandatory.
func (s *Service) CreateCorrection(ctx context.Context, branchID *uint, entryType models.EntryType, reason string, amountLBP, amountUSD float64) (models.CashBoxEntry, error) {
	if reason == "" {
		return models.CashBoxEntry{}, ErrReasonRequired
	}
	if entryType != models.EntryTypeIncome && entryType != models.EntryTypeExpense {
		return models.CashBoxEntry{}, errors.New("type must be income or expense")
	}
	if err := validateAmounts(amountLBP, amountUSD); err != nil {
		return models.CashBoxEntry{}, err
	}
	entry := models.CashBoxEntry{
		ID:          uuid.NewString(),
		BranchID:    branchID,
		Date:        time.Now(),
		Type:        entryType,
		Category:    models.CategoryCorrection,
		Description: reason,
		AmountLBP:   amountLBP,
		AmountUSD:   amountUSD,
		IsManual:    true,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return models.CashBoxEntry{}, err
	}
	return entry, nil
}

// TransferToMain moves cash from a branch box into the main treasury as
// an atomic pair: a branch expense and a matching main income, created
// together or not at all.
func (s *Service) TransferToMain(ctx context.Context, fromBranchID uint, amountLBP, amountUSD float64, memo string) (branchEntry, mainEntry models.CashBoxEntry, err error) {
	if err = validateAmounts(amountLBP, amountUSD); err != nil {
		return
	}
	if amountLBP == 0 && amountUSD == 0 {
		err = errors.New("transfer amount must be positive")
		return
	}
	now := time.Now()
	branchEntry = models.CashBoxEntry{
		ID:          uuid.NewString(),
		BranchID:    &fromBranchID,
		Date:        now,
		Type:        models.EntryTypeExpense,
		Category:    models.CategoryTransferToMain,
		Description: memo,
		AmountLBP:   amountLBP,
		AmountUSD:   amountUSD,
	}
	mainEntry = models.CashBoxEntry{
		ID:          uuid.NewString(),
		Date:        now,
		Type:        models.EntryTypeIncome,
		Category:    models.CategoryTransferFromBranch,
		Description: fmt.Sprintf("From branch %d - %s", fromBranchID, memo),
		AmountLBP:   amountLBP,
		AmountUSD:   amountUSD,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&branchEntry).Error; err != nil {
			return err
		}
		return tx.Create(&mainEntry).Error
	})
	if err != nil {
		return models.CashBoxEntry{}, models.CashBoxEntry{}, err
	}
	return branchEntry, mainEntry, nil
}

// FundPettyCash moves drawer cash into the branch petty cash sub-fund:
// a branch expense entry plus the balance increment, atomically.
func (s *Service) FundPettyCash(ctx context.Context, branchID uint, amountLBP, amountUSD float64, memo string) (models.CashBoxEntry, models.PettyCashBalance, error) {
	if err := validateAmounts(amountLBP, amountUSD); err != nil {
		return models.CashBoxEntry{}, models.PettyCashBalance{}, err
	}
	if amountLBP == 0 && amountUSD == 0 {
		return models.CashBoxEntry{}, models.PettyCashBalance{}, errors.New("funding amount must be positive")
	}
	entry := models.CashBoxEntry{
		ID:          uuid.NewString(),
		BranchID:    &branchID,
		Date:        time.Now(),
		Type:        models.EntryTypeExpense,
		Category:    models.CategoryPettyCashFunding,
		Description: memo,
		AmountLBP:   amountLBP,
		AmountUSD:   amountUSD,
	}
	var balance models.PettyCashBalance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(models.PettyCashBalance{BranchID: branchID}).FirstOrCreate(&balance).Error; err != nil {
			return err
		}
		balance.LBP += amountLBP
		balance.USD += amountUSD
		if err := tx.Save(&balance).Error; err != nil {
			return err
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return models.CashBoxEntry{}, models.PettyCashBalance{}, err
	}
	return entry, balance, nil
}

// LogPettyCashExpense spends from the sub-fund. Rejected before any
// mutation if either currency exceeds the available balance.
func (s *Service) LogPettyCashExpense(ctx context.Context, branchID uint, category, description string, amountLBP, amountUSD float64) (models.CashBoxEntry, models.PettyCashBalance, error) {
	entry := models.CashBoxEntry{
		ID:          uuid.NewString(),
		BranchID:    &branchID,
		Date:        time.Now(),
		Type:        models.EntryTypeExpense,
		Category:    models.CategoryPettyCashExpense,
		Description: joinNonEmpty(category, description),
	}
	var balance models.PettyCashBalance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(models.PettyCashBalance{BranchID: branchID}).FirstOrCreate(&balance).Error; err != nil {
			return err
		}
		if err := CheckPettyCashExpense(balance, amountLBP, amountUSD); err != nil {
			return err
		}
		balance.LBP -= amountLBP
		balance.USD -= amountUSD
		if err := tx.Save(&balance).Error; err != nil {
			return err
		}
		entry.AmountLBP = amountLBP
		entry.AmountUSD = amountUSD
		return tx.Create(&entry).Error
	})
	if err != nil {
		return models.CashBoxEntry{}, models.PettyCashBalance{}, err
	}
	return entry, balance, nil
}

// RecordUnreconciledDrawer parks a declined handover's frozen drawer
// balance in the branch ledger so it stays visible for reconciliation.
func (s *Service) RecordUnreconciledDrawer(ctx context.Context, branchID uint, amountLBP, amountUSD float64, sessionID string) error {
	entry := models.CashBoxEntry{
		ID:          uuid.NewString(),
		BranchID:    &branchID,
		Date:        time.Now(),
		Type:        models.EntryTypeExpense,
		Category:    models.CategoryUnreconciledDrawer,
		Description: fmt.Sprintf("Handover declined, drawer of session %s pending reconciliation", sessionID),
		AmountLBP:   amountLBP,
		AmountUSD:   amountUSD,
	}
	return s.db.WithContext(ctx).Create(&entry).Error
}

// PettyCash returns the current sub-fund balance for a branch.
func (s *Service) PettyCash(ctx context.Context, branchID uint) (models.PettyCashBalance, error) {
	balance := models.PettyCashBalance{BranchID: branchID}
	err := s.db.WithContext(ctx).Where(models.PettyCashBalance{BranchID: branchID}).FirstOrCreate(&balance).Error
	return balance, err
}

// BoxBalance folds one box's entries into its running balance.
func (s *Service) BoxBalance(ctx context.Context, branchID *uint) (Balance, error) {
	entries, err := s.Entries(ctx, branchID)
	if err != nil {
		return Balance{}, err
	}
	return BalanceOf(entries), nil
}

func validateAmounts(amountLBP, amountUSD float64) error {
	if amountLBP < 0 || amountUSD < 0 {
		return errors.New("amounts must be non-negative")
	}
	return nil
}

func joinNonEmpty(category, description string) string {
	if description == "" {
		return category
	}
	return category + ": " + description
}
