package session

import (
	"errors"
	"fmt"

	"cafepos-backend/internal/audit"
	"cafepos-backend/internal/auth"
	"cafepos-backend/internal/cash"
	"cafepos-backend/internal/cashbox"
	"cafepos-backend/internal/invoice"
	"cafepos-backend/internal/models"
	"cafepos-backend/internal/settings"

	"github.com/gofiber/fiber/v2"
)

type StartSessionRequest struct {
	StartingInventory cash.Inventory `json:"starting_inventory"`
	BranchID          *uint          `json:"branch_id"` // admin only
}

type CashTransactionRequest struct {
	SessionID     string               `json:"session_id"`
	InvoiceNumber string               `json:"invoice_number"` // generated when empty
	TotalLBP      float64              `json:"total_lbp"`
	TenderedNotes []cash.BreakdownItem `json:"tendered_notes"`
	BranchID      *uint                `json:"branch_id"`
}

type BreakChangeRequest struct {
	SessionID     string               `json:"session_id"`
	NoteToBreak   cash.BreakdownItem   `json:"note_to_break"`
	ReceivedNotes []cash.BreakdownItem `json:"received_notes"`
	BranchID      *uint                `json:"branch_id"`
}

type EndSessionRequest struct {
	SessionID string `json:"session_id"`
	BranchID  *uint  `json:"branch_id"`
}

type HandoverDecisionRequest struct {
	BranchID *uint `json:"branch_id"`
}

// getUserInfo pulls the authenticated user out of the JWT locals.
func getUserInfo(c *fiber.Ctx) (models.User, error) {
	userID, ok := c.Locals(auth.CtxUserIDKey).(uint)
	if !ok {
		return models.User{}, fiber.NewError(fiber.StatusForbidden, "User information missing")
	}
	name, _ := c.Locals(auth.CtxUserNameKey).(string)
	var branchID *uint
	if bPtr, ok := c.Locals(auth.CtxBranchIDKey).(*uint); ok && bPtr != nil {
		branchID = bPtr
	}
	role, _ := c.Locals(auth.CtxUserRoleKey).(models.UserRole)
	return models.User{ID: userID, Name: name, BranchID: branchID, Role: role}, nil
}

// resolveBranchID picks the branch a command applies to: cashiers are
// locked to their JWT branch, admins must say which branch they mean.
func resolveBranchID(c *fiber.Ctx, bodyBranchID *uint) (uint, error) {
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

	if bodyBranchID == nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "branch_id is required")
	}
	return *bodyBranchID, nil
}

// mapDomainErr translates controller errors into user-facing HTTP errors.
func mapDomainErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSessionExists):
		return fiber.NewError(fiber.StatusConflict, "A same-day session already exists, log in to resume it")
	case errors.Is(err, ErrSessionNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Session not found")
	case errors.Is(err, ErrSessionNotActive):
		return fiber.NewError(fiber.StatusConflict, "Session is not active")
	case errors.Is(err, ErrSessionBusy):
		return fiber.NewError(fiber.StatusConflict, "Another transaction is still being processed")
	case errors.Is(err, ErrNoPendingHandover):
		return fiber.NewError(fiber.StatusConflict, "No handover is pending")
	case errors.Is(err, ErrValueMismatch):
		return fiber.NewError(fiber.StatusBadRequest, "Received notes do not match the broken note's value")
	case errors.Is(err, ErrInsufficientTender):
		return fiber.NewError(fiber.StatusBadRequest, "Tendered notes do not cover the total")
	case errors.Is(err, cash.ErrInsufficientNotes):
		return fiber.NewError(fiber.StatusBadRequest, "Not enough notes in the drawer")
	case errors.Is(err, ErrSyncFailed):
		return fiber.NewError(fiber.StatusServiceUnavailable, "Failed to save changes, your changes have been reverted")
	default:
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
}

// POST /api/session-login
// Resolves the cashier's session state for the branch: resume,
// reactivate, pending handover or fresh setup.
func LoginHandler(ctrl *Controller, st *settings.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := getUserInfo(c)
		if err != nil {
			return err
		}
		var body HandoverDecisionRequest
		_ = c.BodyParser(&body) // empty body is fine for cashiers
		branchID, err := resolveBranchID(c, body.BranchID)
		if err != nil {
			return err
		}

		rate, err := st.Rate(c.Context(), branchID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load branch settings")
		}

		result, err := ctrl.Login(c.Context(), branchID, user, rate)
		if err != nil {
			return mapDomainErr(err)
		}
		return c.JSON(result)
	}
}

// POST /api/sessions/start
func StartSessionHandler(ctrl *Controller) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := getUserInfo(c)
		if err != nil {
			return err
		}
		var body StartSessionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		branchID, err := resolveBranchID(c, body.BranchID)
		if err != nil {
			return err
		}
		if body.StartingInventory == nil {
			return fiber.NewError(fiber.StatusBadRequest, "starting_inventory is required")
		}

		created, err := ctrl.StartSession(c.Context(), branchID, user, body.StartingInventory)
		if err != nil {
			return mapDomainErr(err)
		}

		writeSessionAudit(branchID, user, created.SessionID, models.AuditActionCreate,
			fmt.Sprintf("Session started with %.0f LBP drawer value", float64(created.StartingInventory.TotalValue(cash.CurrencyLBP))))

		return c.Status(fiber.StatusCreated).JSON(created)
	}
}

// POST /api/sessions/transaction
// Completes a cash sale against the drawer. When no invoice number is
// supplied one is drawn from the branch sequence. The resulting "Sale"
// ledger entry is written after the drawer mutation succeeds.
func CashTransactionHandler(ctrl *Controller, box *cashbox.Service, invoices *invoice.Service, st *settings.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := getUserInfo(c)
		if err != nil {
			return err
		}
		var body CashTransactionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		branchID, err := resolveBranchID(c, body.BranchID)
		if err != nil {
			return err
		}
		if body.SessionID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "session_id is required")
		}
		if body.TotalLBP <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "total_lbp must be positive")
		}
		if len(body.TenderedNotes) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "tendered_notes is required")
		}

		rate, err := st.Rate(c.Context(), branchID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load branch settings")
		}

		invoiceNumber := body.InvoiceNumber
		if invoiceNumber == "" {
			invoiceNumber, _, err = invoices.Next(c.Context(), branchID)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Could not generate invoice number")
			}
		}

		result, err := ctrl.ApplyCashTransaction(c.Context(), branchID, body.SessionID, invoiceNumber, body.TotalLBP, body.TenderedNotes, rate)
		if err != nil {
			return mapDomainErr(err)
		}

		sessionTx := models.SessionTransaction{
			InvoiceNumber: invoiceNumber,
			Total:         body.TotalLBP,
			TenderedNotes: body.TenderedNotes,
			ChangeNotes:   result.ChangeNotes,
		}
		saleEntry, err := box.RecordSale(c.Context(), branchID, sessionTx)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Drawer updated but the sale could not be written to the cash box")
		}

		if result.Overage != nil {
			writeSessionAudit(branchID, user, body.SessionID, models.AuditActionUpdate,
				fmt.Sprintf("Overage of %.0f LBP absorbed on invoice %s", result.Overage.Amount, invoiceNumber))
		}

		return c.JSON(fiber.Map{
			"invoice_number": invoiceNumber,
			"change_notes":   result.ChangeNotes,
			"shortfall":      result.Shortfall,
			"overage":        result.Overage,
			"session":        result.Session,
			"sale_entry":     saleEntry,
		})
	}
}

// POST /api/sessions/break-change
func BreakChangeHandler(ctrl *Controller, st *settings.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := getUserInfo(c); err != nil {
			return err
		}
		var body BreakChangeRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		branchID, err := resolveBranchID(c, body.BranchID)
		if err != nil {
			return err
		}
		if body.SessionID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "session_id is required")
		}

		rate, err := st.Rate(c.Context(), branchID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load branch settings")
		}

		updated, err := ctrl.BreakChange(c.Context(), branchID, body.SessionID, body.NoteToBreak, body.ReceivedNotes, rate)
		if err != nil {
			return mapDomainErr(err)
		}
		return c.JSON(updated)
	}
}

// POST /api/sessions/end
func EndSessionHandler(ctrl *Controller) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := getUserInfo(c)
		if err != nil {
			return err
		}
		var body EndSessionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		branchID, err := resolveBranchID(c, body.BranchID)
		if err != nil {
			return err
		}
		if body.SessionID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "session_id is required")
		}

		ended, err := ctrl.EndSession(c.Context(), branchID, body.SessionID)
		if err != nil {
			return mapDomainErr(err)
		}

		writeSessionAudit(branchID, user, ended.SessionID, models.AuditActionUpdate, "Session ended, drawer frozen for handover")

		return c.JSON(ended)
	}
}

// POST /api/sessions/handover/confirm
func ConfirmHandoverHandler(ctrl *Controller) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := getUserInfo(c)
		if err != nil {
			return err
		}
		var body HandoverDecisionRequest
		_ = c.BodyParser(&body)
		branchID, err := resolveBranchID(c, body.BranchID)
		if err != nil {
			return err
		}

		created, err := ctrl.ConfirmHandover(c.Context(), branchID, user.ID)
		if err != nil {
			return mapDomainErr(err)
		}

		writeSessionAudit(branchID, user, created.SessionID, models.AuditActionCreate, "Handover accepted, drawer custody transferred")

		return c.Status(fiber.StatusCreated).JSON(created)
	}
}

// POST /api/sessions/handover/decline
func DeclineHandoverHandler(ctrl *Controller) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := getUserInfo(c)
		if err != nil {
			return err
		}
		var body HandoverDecisionRequest
		_ = c.BodyParser(&body)
		branchID, err := resolveBranchID(c, body.BranchID)
		if err != nil {
			return err
		}

		if err := ctrl.DeclineHandover(c.Context(), branchID, user.ID); err != nil {
			return mapDomainErr(err)
		}

		writeSessionAudit(branchID, user, "", models.AuditActionUpdate, "Handover declined, fresh drawer count required")

		return c.JSON(fiber.Map{"needsSetup": true})
	}
}

// GET /api/sessions?branch_id=1
func ListSessionsHandler(ctrl *Controller) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var bodyBranchID *uint
		if bidStr := c.Query("branch_id"); bidStr != "" {
			var bid uint
			if _, err := fmt.Sscan(bidStr, &bid); err == nil && bid > 0 {
				bodyBranchID = &bid
			}
		}
		branchID, err := resolveBranchID(c, bodyBranchID)
		if err != nil {
			return err
		}

		sessions, err := ctrl.Sessions(c.Context(), branchID)
		if err != nil {
			return mapDomainErr(err)
		}
		return c.JSON(sessions)
	}
}

// GET /api/branches/:id/data
// The POS boot payload: everything a terminal needs to render a branch
// in one round trip.
func BranchDataHandler(ctrl *Controller, box *cashbox.Service, st *settings.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := c.ParamsInt("id")
		if err != nil || branchID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid branch id")
		}
		bid := uint(branchID)

		if role, ok := c.Locals(auth.CtxUserRoleKey).(models.UserRole); ok && role == models.RoleCashier {
			own, _ := c.Locals(auth.CtxBranchIDKey).(*uint)
			if own == nil || *own != bid {
				return fiber.NewError(fiber.StatusForbidden, "You can only load your own branch")
			}
		}

		sessions, err := ctrl.Sessions(c.Context(), bid)
		if err != nil {
			return mapDomainErr(err)
		}
		entries, err := box.Entries(c.Context(), &bid)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list entries")
		}
		pettyCash, err := box.PettyCash(c.Context(), bid)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load petty cash balance")
		}
		categories, err := box.ListCategories(c.Context(), bid, "")
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list categories")
		}
		shopSettings, err := st.Get(c.Context(), bid)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load settings")
		}

		return c.JSON(fiber.Map{
			"sessions":         sessions,
			"cash_box_entries": entries,
			"petty_cash":       pettyCash,
			"categories":       categories,
			"settings":         shopSettings,
		})
	}
}

// PUT /api/branches/:id/sessions (admin)
// Whole-collection replace: the submitted list becomes the authoritative
// state for the branch. Applying the same list twice is a no-op.
func ReplaceSessionsHandler(ctrl *Controller) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := c.ParamsInt("id")
		if err != nil || branchID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid branch id")
		}

		var sessions []models.CashierSession
		if err := c.BodyParser(&sessions); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		stored, err := ctrl.ReplaceSessions(c.Context(), uint(branchID), sessions)
		if err != nil {
			return mapDomainErr(err)
		}
		return c.JSON(stored)
	}
}

func writeSessionAudit(branchID uint, user models.User, sessionID string, action models.AuditAction, description string) {
	if err := audit.WriteLog(audit.LogOptions{
		BranchID:    &branchID,
		UserID:      user.ID,
		UserName:    user.Name,
		EntityType:  "cashier_session",
		EntityID:    sessionID,
		Action:      action,
		Description: description,
	}); err != nil {
		fmt.Printf("Audit log could not be written: %v\n", err)
	}
}
