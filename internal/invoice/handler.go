package invoice

import (
	"cafepos-backend/internal/auth"
	"cafepos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// POST /api/branches/:id/invoice-number
// Draws the next invoice number from the branch sequence. Cashiers may
// only draw from their own branch.
func NextNumberHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := c.ParamsInt("id")
		if err != nil || branchID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid branch id")
		}

		if role, ok := c.Locals(auth.CtxUserRoleKey).(models.UserRole); ok && role == models.RoleCashier {
			own, _ := c.Locals(auth.CtxBranchIDKey).(*uint)
			if own == nil || *own != uint(branchID) {
				return fiber.NewError(fiber.StatusForbidden, "You can only draw invoice numbers for your own branch")
			}
		}

		number, settings, err := svc.Next(c.Context(), uint(branchID))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not generate invoice number")
		}

		return c.JSON(fiber.Map{
			"invoice_number": number,
			"next_number":    settings.InvoiceNextNumber,
		})
	}
}
