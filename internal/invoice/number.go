package invoice

import (
	"context"
	"strconv"
	"strings"
	"time"

	"cafepos-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Render fills the invoice number placeholders, e.g.
// "INV-{YYYY}{MM}{DD}-{seq}" → "INV-20260831-42".
func Render(format string, seq int, now time.Time) string {
	r := strings.NewReplacer(
		"{YYYY}", now.Format("2006"),
		"{MM}", now.Format("01"),
		"{DD}", now.Format("02"),
		"{seq}", strconv.Itoa(seq),
	)
	return r.Replace(format)
}

// Service hands out invoice numbers from the per-branch sequence stored
// in shop settings.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Next renders and consumes the next invoice number for a branch. The
// row is locked for the increment so two terminals can never draw the
// same number.
func (s *Service) Next(ctx context.Context, branchID uint) (string, models.ShopSettings, error) {
	var settings models.ShopSettings
	var number string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(models.ShopSettings{BranchID: branchID}).
			Attrs(models.ShopSettings{
				UsdToLbpRate:      89000,
				InvoiceFormat:     "INV-{YYYY}{MM}{DD}-{seq}",
				InvoiceNextNumber: 1,
			}).
			FirstOrCreate(&settings).Error
		if err != nil {
			return err
		}
		number = Render(settings.InvoiceFormat, settings.InvoiceNextNumber, time.Now())
		settings.InvoiceNextNumber++
		return tx.Save(&settings).Error
	})
	if err != nil {
		return "", models.ShopSettings{}, err
	}
	return number, settings, nil
}
