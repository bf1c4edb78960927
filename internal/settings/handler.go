package settings

import (
	"fmt"

	"cafepos-backend/internal/audit"
	"cafepos-backend/internal/auth"
	"cafepos-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

func resolveBranchID(c *fiber.Ctx) (uint, error) {
	role, ok := c.Locals(auth.CtxUserRoleKey).(models.UserRole)
	if !ok {
		return 0, fiber.NewError(fiber.StatusForbidden, "Role information missing")
	}

	if role == models.RoleCashier {
		branchIDPtr, ok := c.Locals(auth.CtxBranchIDKey).(*uint)
		if !ok || branchIDPtr == nil {
			return 0, fiber.NewError(fiber.StatusForbidden, "Branch information missing")
		}
		return *branchIDPtr, nil
	}

	var bid uint
	if bidStr := c.Query("branch_id"); bidStr != "" {
		if _, err := fmt.Sscan(bidStr, &bid); err == nil && bid > 0 {
			return bid, nil
		}
	}
	return 0, fiber.NewError(fiber.StatusBadRequest, "branch_id is required")
}

// GET /api/settings?branch_id=1
func GetSettingsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := resolveBranchID(c)
		if err != nil {
			return err
		}
		settings, err := svc.Get(c.Context(), branchID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load settings")
		}
		return c.JSON(settings)
	}
}

// PUT /api/settings?branch_id=1 (admin)
func UpdateSettingsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := resolveBranchID(c)
		if err != nil {
			return err
		}
		var body UpdateInput
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		before, err := svc.Get(c.Context(), branchID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load settings")
		}

		updated, err := svc.Update(c.Context(), branchID, body)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		userID, _ := c.Locals(auth.CtxUserIDKey).(uint)
		userName, _ := c.Locals(auth.CtxUserNameKey).(string)
		if err := audit.WriteLog(audit.LogOptions{
			BranchID:    &branchID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "shop_settings",
			EntityID:    fmt.Sprint(updated.ID),
			Action:      models.AuditActionUpdate,
			Description: "Shop settings updated",
			Before:      before,
			After:       updated,
		}); err != nil {
			fmt.Printf("Audit log could not be written: %v\n", err)
		}

		return c.JSON(updated)
	}
}
