package admin

import (
	"cafepos-backend/internal/cashbox"
	"cafepos-backend/internal/currency"
	"cafepos-backend/internal/models"
	"cafepos-backend/internal/session"
	"cafepos-backend/internal/settings"

	"github.com/gofiber/fiber/v2"
)

type SessionSummary struct {
	SessionID      string                `json:"session_id"`
	UserID         uint                  `json:"user_id"`
	UserName       string                `json:"user_name"`
	StartTime      string                `json:"start_time"`
	EndTime        *string               `json:"end_time"`
	IsActive       bool                  `json:"is_active"`
	DrawerValueLBP float64               `json:"drawer_value_lbp"`
	DrawerDisplay  currency.DualPrice    `json:"drawer_display"`
	Transactions   int                   `json:"transactions"`
	OverageLog     []models.OverageEntry `json:"overage_log"`
	OverageLBP     float64               `json:"overage_lbp"`
}

type BranchMonitoringResponse struct {
	BranchID   uint               `json:"branch_id"`
	Rate       float64            `json:"usd_to_lbp_rate"`
	Sessions   []SessionSummary   `json:"sessions"`
	BoxBalance cashbox.Balance    `json:"box_balance"`
	BoxDisplay currency.DualPrice `json:"box_display"`
	PettyCash  cashbox.Balance    `json:"petty_cash"`
}

// GET /api/admin/branches/:id/monitoring
// Read-only branch snapshot for the back office: every session with its
// live drawer value and absorbed overages, plus the box and petty cash
// balances.
func BranchMonitoringHandler(ctrl *session.Controller, box *cashbox.Service, st *settings.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := c.ParamsInt("id")
		if err != nil || branchID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid branch id")
		}
		bid := uint(branchID)

		rate, err := st.Rate(c.Context(), bid)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load branch settings")
		}

		sessions, err := ctrl.Sessions(c.Context(), bid)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load sessions")
		}

		summaries := make([]SessionSummary, 0, len(sessions))
		for _, s := range sessions {
			drawerLBP := s.CurrentInventory.TotalValueLBP(rate)
			var overageLBP float64
			for _, o := range s.OverageLog {
				overageLBP += o.Amount
			}
			var endTime *string
			if s.EndTime != nil {
				formatted := s.EndTime.Format("2006-01-02 15:04:05")
				endTime = &formatted
			}
			summaries = append(summaries, SessionSummary{
				SessionID:      s.SessionID,
				UserID:         s.UserID,
				UserName:       s.UserName,
				StartTime:      s.StartTime.Format("2006-01-02 15:04:05"),
				EndTime:        endTime,
				IsActive:       s.IsActive,
				DrawerValueLBP: drawerLBP,
				DrawerDisplay:  currency.FormatDual(drawerLBP, rate),
				Transactions:   len(s.Transactions),
				OverageLog:     s.OverageLog,
				OverageLBP:     overageLBP,
			})
		}

		balance, err := box.BoxBalance(c.Context(), &bid)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not compute box balance")
		}
		pc, err := box.PettyCash(c.Context(), bid)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load petty cash balance")
		}

		totalBoxLBP := balance.LBP + balance.USD*rate
		return c.JSON(BranchMonitoringResponse{
			BranchID:   bid,
			Rate:       rate,
			Sessions:   summaries,
			BoxBalance: balance,
			BoxDisplay: currency.FormatDual(totalBoxLBP, rate),
			PettyCash:  cashbox.Balance{LBP: pc.LBP, USD: pc.USD},
		})
	}
}
