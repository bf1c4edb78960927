package settings

import (
	"context"

	"cafepos-backend/internal/models"

	"gorm.io/gorm"
)

// Service reads and writes per-branch shop settings, including the
// mutable USD→LBP exchange rate.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Get returns the branch settings, creating the defaults on first use.
func (s *Service) Get(ctx context.Context, branchID uint) (models.ShopSettings, error) {
	settings := models.ShopSettings{BranchID: branchID}
	err := s.db.WithContext(ctx).
		Where(models.ShopSettings{BranchID: branchID}).
		Attrs(models.ShopSettings{
			UsdToLbpRate:      89000,
			InvoiceFormat:     "INV-{YYYY}{MM}{DD}-{seq}",
			InvoiceNextNumber: 1,
		}).
		FirstOrCreate(&settings).Error
	return settings, err
}

// Rate is a convenience for the session and cash box flows that only
// need the branch exchange rate.
func (s *Service) Rate(ctx context.Context, branchID uint) (float64, error) {
	settings, err := s.Get(ctx, branchID)
	if err != nil {
		return 0, err
	}
	return settings.UsdToLbpRate, nil
}

// UpdateInput carries the operator-editable fields.
type UpdateInput struct {
	ShopName      *string  `json:"shop_name"`
	Address       *string  `json:"address"`
	Phone         *string  `json:"phone"`
	Website       *string  `json:"website"`
	FooterMessage *string  `json:"footer_message"`
	UsdToLbpRate  *float64 `json:"usd_to_lbp_rate"`
	InvoiceFormat *string  `json:"invoice_format"`
}

func (s *Service) Update(ctx context.Context, branchID uint, in UpdateInput) (models.ShopSettings, error) {
	settings, err := s.Get(ctx, branchID)
	if err != nil {
		return models.ShopSettings{}, err
	}
	if in.ShopName != nil {
		settings.ShopName = *in.ShopName
	}
	if in.Address != nil {
		settings.Address = *in.Address
	}
	if in.Phone != nil {
		settings.Phone = *in.Phone
	}
	if in.Website != nil {
		settings.Website = *in.Website
	}
	if in.FooterMessage != nil {
		settings.FooterMessage = *in.FooterMessage
	}
	if in.UsdToLbpRate != nil {
		settings.UsdToLbpRate = *in.UsdToLbpRate
	}
	if in.InvoiceFormat != nil {
		settings.InvoiceFormat = *in.InvoiceFormat
	}
	if err := s.db.WithContext(ctx).Save(&settings).Error; err != nil {
		return models.ShopSettings{}, err
	}
	return settings, nil
}
