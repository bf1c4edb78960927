package cashbox

import (
	"errors"
	"fmt"
	"time"

	"cafepos-backend/internal/audit"
	"cafepos-backend/internal/auth"
	"cafepos-backend/internal/cash"
	"cafepos-backend/internal/currency"
	"cafepos-backend/internal/models"
	"cafepos-backend/internal/settings"

	"github.com/gofiber/fiber/v2"
)

// houseRateBranchID names the branch whose exchange rate prices the
// main treasury display; the treasury itself carries no settings row.
const houseRateBranchID uint = 1

type ManualEntryRequest struct {
	Scope       string           `json:"scope"` // "main" targets the treasury (admin only)
	BranchID    *uint            `json:"branch_id"`
	Type        models.EntryType `json:"type"`
	Category    string           `json:"category"`
	Description string           `json:"description"`
	AmountLBP   float64          `json:"amount_lbp"`
	AmountUSD   float64          `json:"amount_usd"`
	Date        *time.Time       `json:"date"`
}

type CorrectionRequest struct {
	Scope     string           `json:"scope"`
	BranchID  *uint            `json:"branch_id"`
	Type      models.EntryType `json:"type"`
	Reason    string           `json:"reason"`
	AmountLBP float64          `json:"amount_lbp"`
	AmountUSD float64          `json:"amount_usd"`
}

type TransferRequest struct {
	BranchID  *uint   `json:"branch_id"`
	AmountLBP float64 `json:"amount_lbp"`
	AmountUSD float64 `json:"amount_usd"`
	Memo      string  `json:"memo"`
}

type PettyCashRequest struct {
	BranchID    *uint   `json:"branch_id"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	AmountLBP   float64 `json:"amount_lbp"`
	AmountUSD   float64 `json:"amount_usd"`
	Memo        string  `json:"memo"`
}

type CategoryRequest struct {
	BranchID *uint            `json:"branch_id"`
	Kind     models.EntryType `json:"kind"`
	Name     string           `json:"name"`
}

func getUserInfo(c *fiber.Ctx) (userID uint, userName string, err error) {
	uid, ok := c.Locals(auth.CtxUserIDKey).(uint)
	if !ok {
		return 0, "", fiber.NewError(fiber.StatusForbidden, "User information missing")
	}
	name, _ := c.Locals(auth.CtxUserNameKey).(string)
	return uid, name, nil
}

// resolveBox picks which ledger a request targets. Cashiers are locked
// to their own branch box; admins address any branch, or the main
// treasury with scope "main".
func resolveBox(c *fiber.Ctx, scope string, bodyBranchID *uint) (*uint, error) {
	role, ok := c.Locals(auth.CtxUserRoleKey).(models.UserRole)
	if !ok {
		return nil, fiber.NewError(fiber.StatusForbidden, "Role information missing")
	}

	if role == models.RoleCashier {
		branchIDPtr, ok := c.Locals(auth.CtxBranchIDKey).(*uint)
		if !ok || branchIDPtr == nil {
			return nil, fiber.NewError(fiber.StatusForbidden, "Branch information missing")
		}
		return branchIDPtr, nil
	}

	if scope == "main" {
		return nil, nil
	}
	if bodyBranchID == nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "branch_id is required (or scope \"main\")")
	}
	return bodyBranchID, nil
}

// resolveBoxQuery is resolveBox for GET endpoints, reading from the
// query string instead of the body.
func resolveBoxQuery(c *fiber.Ctx) (*uint, error) {
	var bodyBranchID *uint
	if bidStr := c.Query("branch_id"); bidStr != "" {
		var bid uint
		if _, err := fmt.Sscan(bidStr, &bid); err == nil && bid > 0 {
			bodyBranchID = &bid
		}
	}
	return resolveBox(c, c.Query("scope"), bodyBranchID)
}

// resolveBranch is for operations that only exist on branch boxes
// (transfers, petty cash).
func resolveBranch(c *fiber.Ctx, bodyBranchID *uint) (uint, error) {
	branchID, err := resolveBox(c, "", bodyBranchID)
	if err != nil {
		return 0, err
	}
	if branchID == nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "branch_id is required")
	}
	return *branchID, nil
}

func mapCashBoxErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCategoryUnknown):
		return fiber.NewError(fiber.StatusBadRequest, "Category is not in the allow-list")
	case errors.Is(err, ErrCategoryInUse):
		return fiber.NewError(fiber.StatusConflict, "Category is referenced by existing entries")
	case errors.Is(err, ErrCategoryBuiltIn):
		return fiber.NewError(fiber.StatusConflict, "Built-in categories cannot be removed")
	case errors.Is(err, ErrNotManual):
		return fiber.NewError(fiber.StatusConflict, "Only manually created entries can be edited")
	case errors.Is(err, ErrEntryNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Entry not found")
	case errors.Is(err, ErrReasonRequired):
		return fiber.NewError(fiber.StatusBadRequest, "A correction requires a reason")
	case errors.Is(err, ErrPettyCashExceeded):
		return fiber.NewError(fiber.StatusBadRequest, "Expense exceeds the available petty cash balance")
	default:
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
}

// GET /api/cashbox/entries?branch_id=1 or ?scope=main
func ListEntriesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := resolveBoxQuery(c)
		if err != nil {
			return err
		}
		entries, err := svc.Entries(c.Context(), branchID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list entries")
		}
		return c.JSON(entries)
	}
}

// GET /api/cashbox/balance?branch_id=1 or ?scope=main
func BoxBalanceHandler(svc *Service, st *settings.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := resolveBoxQuery(c)
		if err != nil {
			return err
		}
		balance, err := svc.BoxBalance(c.Context(), branchID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not compute balance")
		}

		// Display conversion uses the branch rate; the main treasury
		// has no settings row of its own and prices at the house rate.
		rateBranch := houseRateBranchID
		if branchID != nil {
			rateBranch = *branchID
		}
		rate, err := st.Rate(c.Context(), rateBranch)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load branch settings")
		}

		totalLBP := balance.LBP + currency.ToLBP(balance.USD, cash.CurrencyUSD, rate)
		return c.JSON(fiber.Map{
			"lbp":     balance.LBP,
			"usd":     balance.USD,
			"display": currency.FormatDual(totalLBP, rate),
		})
	}
}

// PUT /api/cashbox/entries (admin)
// Whole-collection replace for one box; the submitted list wins.
func ReplaceEntriesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := resolveBoxQuery(c)
		if err != nil {
			return err
		}
		var entries []models.CashBoxEntry
		if err := c.BodyParser(&entries); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		stored, err := svc.ReplaceEntries(c.Context(), branchID, entries)
		if err != nil {
			return mapCashBoxErr(err)
		}
		return c.JSON(stored)
	}
}

// POST /api/cashbox/entries
func CreateManualEntryHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, userName, err := getUserInfo(c)
		if err != nil {
			return err
		}
		var body ManualEntryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		branchID, err := resolveBox(c, body.Scope, body.BranchID)
		if err != nil {
			return err
		}

		entry, err := svc.CreateManualEntry(c.Context(), branchID, ManualEntryInput{
			Type:        body.Type,
			Category:    body.Category,
			Description: body.Description,
			AmountLBP:   body.AmountLBP,
			AmountUSD:   body.AmountUSD,
			Date:        body.Date,
		})
		if err != nil {
			return mapCashBoxErr(err)
		}

		writeCashBoxAudit(branchID, userID, userName, entry.ID, models.AuditActionCreate,
			fmt.Sprintf("Manual %s entry: %s", entry.Type, entry.Category), nil, entry)

		return c.Status(fiber.StatusCreated).JSON(entry)
	}
}

// PUT /api/cashbox/entries/:id
func UpdateManualEntryHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, userName, err := getUserInfo(c)
		if err != nil {
			return err
		}
		entryID := c.Params("id")
		if entryID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Entry id is required")
		}
		var body ManualEntryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		entry, err := svc.UpdateManualEntry(c.Context(), entryID, ManualEntryInput{
			Type:        body.Type,
			Category:    body.Category,
			Description: body.Description,
			AmountLBP:   body.AmountLBP,
			AmountUSD:   body.AmountUSD,
			Date:        body.Date,
		})
		if err != nil {
			return mapCashBoxErr(err)
		}

		writeCashBoxAudit(entry.BranchID, userID, userName, entry.ID, models.AuditActionUpdate,
			fmt.Sprintf("Manual entry edited: %s", entry.Category), nil, entry)

		return c.JSON(entry)
	}
}

// POST /api/cashbox/corrections
func CreateCorrectionHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, userName, err := getUserInfo(c)
		if err != nil {
			return err
		}
		var body CorrectionRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		branchID, err := resolveBox(c, body.Scope, body.BranchID)
		if err != nil {
			return err
		}

		entry, err := svc.CreateCorrection(c.Context(), branchID, body.Type, body.Reason, body.AmountLBP, body.AmountUSD)
		if err != nil {
			return mapCashBoxErr(err)
		}

		writeCashBoxAudit(branchID, userID, userName, entry.ID, models.AuditActionCreate,
			fmt.Sprintf("Correction: %s", body.Reason), nil, entry)

		return c.Status(fiber.StatusCreated).JSON(entry)
	}
}

// POST /api/cashbox/transfer-to-main
func TransferToMainHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, userName, err := getUserInfo(c)
		if err != nil {
			return err
		}
		var body TransferRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		branchID, err := resolveBranch(c, body.BranchID)
		if err != nil {
			return err
		}

		branchEntry, mainEntry, err := svc.TransferToMain(c.Context(), branchID, body.AmountLBP, body.AmountUSD, body.Memo)
		if err != nil {
			return mapCashBoxErr(err)
		}

		writeCashBoxAudit(&branchID, userID, userName, branchEntry.ID, models.AuditActionCreate,
			fmt.Sprintf("Transfer to main treasury: %.0f LBP / %.2f USD", body.AmountLBP, body.AmountUSD), nil, branchEntry)

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"branch_entry": branchEntry,
			"main_entry":   mainEntry,
		})
	}
}

// POST /api/cashbox/petty-cash/fund
func FundPettyCashHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, userName, err := getUserInfo(c)
		if err != nil {
			return err
		}
		var body PettyCashRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		branchID, err := resolveBranch(c, body.BranchID)
		if err != nil {
			return err
		}

		entry, balance, err := svc.FundPettyCash(c.Context(), branchID, body.AmountLBP, body.AmountUSD, body.Memo)
		if err != nil {
			return mapCashBoxErr(err)
		}

		writeCashBoxAudit(&branchID, userID, userName, entry.ID, models.AuditActionCreate,
			fmt.Sprintf("Petty cash funded: %.0f LBP / %.2f USD", body.AmountLBP, body.AmountUSD), nil, entry)

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"entry":   entry,
			"balance": balance,
		})
	}
}

// POST /api/cashbox/petty-cash/expense
func PettyCashExpenseHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, userName, err := getUserInfo(c)
		if err != nil {
			return err
		}
		var body PettyCashRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		branchID, err := resolveBranch(c, body.BranchID)
		if err != nil {
			return err
		}

		entry, balance, err := svc.LogPettyCashExpense(c.Context(), branchID, body.Category, body.Description, body.AmountLBP, body.AmountUSD)
		if err != nil {
			return mapCashBoxErr(err)
		}

		writeCashBoxAudit(&branchID, userID, userName, entry.ID, models.AuditActionCreate,
			fmt.Sprintf("Petty cash expense: %s", entry.Description), nil, entry)

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"entry":   entry,
			"balance": balance,
		})
	}
}

// GET /api/cashbox/petty-cash?branch_id=1
func PettyCashBalanceHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var bodyBranchID *uint
		if bidStr := c.Query("branch_id"); bidStr != "" {
			var bid uint
			if _, err := fmt.Sscan(bidStr, &bid); err == nil && bid > 0 {
				bodyBranchID = &bid
			}
		}
		branchID, err := resolveBranch(c, bodyBranchID)
		if err != nil {
			return err
		}
		balance, err := svc.PettyCash(c.Context(), branchID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not load petty cash balance")
		}
		return c.JSON(balance)
	}
}

// GET /api/cashbox/categories?branch_id=1&kind=expense
func ListCategoriesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var bodyBranchID *uint
		if bidStr := c.Query("branch_id"); bidStr != "" {
			var bid uint
			if _, err := fmt.Sscan(bidStr, &bid); err == nil && bid > 0 {
				bodyBranchID = &bid
			}
		}
		branchID, err := resolveBranch(c, bodyBranchID)
		if err != nil {
			return err
		}
		cats, err := svc.ListCategories(c.Context(), branchID, models.EntryType(c.Query("kind")))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Could not list categories")
		}
		return c.JSON(cats)
	}
}

// POST /api/cashbox/categories
func AddCategoryHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, userName, err := getUserInfo(c)
		if err != nil {
			return err
		}
		var body CategoryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		branchID, err := resolveBranch(c, body.BranchID)
		if err != nil {
			return err
		}

		cat, err := svc.AddCategory(c.Context(), branchID, body.Kind, body.Name)
		if err != nil {
			return mapCashBoxErr(err)
		}

		writeCashBoxAudit(&branchID, userID, userName, fmt.Sprint(cat.ID), models.AuditActionCreate,
			fmt.Sprintf("Category added: %s (%s)", cat.Name, cat.Kind), nil, cat)

		return c.Status(fiber.StatusCreated).JSON(cat)
	}
}

// DELETE /api/cashbox/categories/:id?branch_id=1
func DeleteCategoryHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, userName, err := getUserInfo(c)
		if err != nil {
			return err
		}
		categoryID, err := c.ParamsInt("id")
		if err != nil || categoryID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid category id")
		}
		var bodyBranchID *uint
		if bidStr := c.Query("branch_id"); bidStr != "" {
			var bid uint
			if _, err := fmt.Sscan(bidStr, &bid); err == nil && bid > 0 {
				bodyBranchID = &bid
			}
		}
		branchID, err := resolveBranch(c, bodyBranchID)
		if err != nil {
			return err
		}

		if err := svc.DeleteCategory(c.Context(), branchID, uint(categoryID)); err != nil {
			return mapCashBoxErr(err)
		}

		writeCashBoxAudit(&branchID, userID, userName, fmt.Sprint(categoryID), models.AuditActionDelete,
			"Category removed from allow-list", nil, nil)

		return c.JSON(fiber.Map{"message": "Category deleted"})
	}
}

func writeCashBoxAudit(branchID *uint, userID uint, userName, entityID string, action models.AuditAction, description string, before, after any) {
	if err := audit.WriteLog(audit.LogOptions{
		BranchID:    branchID,
		UserID:      userID,
		UserName:    userName,
		EntityType:  "cash_box_entry",
		EntityID:    entityID,
		Action:      action,
		Description: description,
		Before:      before,
		After:       after,
	}); err != nil {
		fmt.Printf("Audit log could not be written: %v\n", err)
	}
}
