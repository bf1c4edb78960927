package main

import (
	"log"
	"strings"

	"cafepos-backend/internal/admin"
	"cafepos-backend/internal/audit"
	"cafepos-backend/internal/auth"
	"cafepos-backend/internal/cashbox"
	"cafepos-backend/internal/config"
	"cafepos-backend/internal/database"
	"cafepos-backend/internal/invoice"
	"cafepos-backend/internal/models"
	"cafepos-backend/internal/session"
	"cafepos-backend/internal/settings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg := config.Load()
	database.Init(cfg)

	boxService := cashbox.NewService(database.DB)
	settingsService := settings.NewService(database.DB)
	invoiceService := invoice.NewService(database.DB)
	sessionStore := session.NewGormStore(database.DB)
	sessionCtrl := session.NewController(sessionStore, boxService, cfg.SaveTimeout)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Println("Unexpected error:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Unexpected server error",
			})
		},
	})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	// Admin routes
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))

	// Branch management
	adminRoutes.Post("/branches", admin.CreateBranchHandler(boxService))
	adminRoutes.Get("/branches", admin.ListBranchesHandler())
	adminRoutes.Get("/branches/:id", admin.GetBranchHandler())
	adminRoutes.Put("/branches/:id", admin.UpdateBranchHandler())
	adminRoutes.Delete("/branches/:id", admin.DeleteBranchHandler())
	adminRoutes.Post("/branches/:id/cashiers", admin.CreateCashierHandler())
	adminRoutes.Get("/branches/:id/cashiers", admin.ListCashiersHandler())

	// Back-office monitoring and authoritative replace
	adminRoutes.Get("/branches/:id/monitoring", admin.BranchMonitoringHandler(sessionCtrl, boxService, settingsService))
	adminRoutes.Put("/branches/:id/sessions", session.ReplaceSessionsHandler(sessionCtrl))
	adminRoutes.Put("/cashbox/entries", cashbox.ReplaceEntriesHandler(boxService))

	// Shop settings (rate, invoice format)
	protected.Get("/settings", settings.GetSettingsHandler(settingsService))
	adminRoutes.Put("/settings", settings.UpdateSettingsHandler(settingsService))

	// POS boot payload and invoice numbering
	protected.Get("/branches/:id/data", session.BranchDataHandler(sessionCtrl, boxService, settingsService))
	protected.Post("/branches/:id/invoice-number", invoice.NextNumberHandler(invoiceService))

	// Cashier sessions
	protected.Post("/session-login", session.LoginHandler(sessionCtrl, settingsService))
	protected.Get("/sessions", session.ListSessionsHandler(sessionCtrl))
	protected.Post("/sessions/start", session.StartSessionHandler(sessionCtrl))
	protected.Post("/sessions/transaction", session.CashTransactionHandler(sessionCtrl, boxService, invoiceService, settingsService))
	protected.Post("/sessions/break-change", session.BreakChangeHandler(sessionCtrl, settingsService))
	protected.Post("/sessions/end", session.EndSessionHandler(sessionCtrl))
	protected.Post("/sessions/handover/confirm", session.ConfirmHandoverHandler(sessionCtrl))
	protected.Post("/sessions/handover/decline", session.DeclineHandoverHandler(sessionCtrl))

	// Cash box ledgers
	protected.Get("/cashbox/entries", cashbox.ListEntriesHandler(boxService))
	protected.Get("/cashbox/balance", cashbox.BoxBalanceHandler(boxService, settingsService))
	protected.Post("/cashbox/entries", cashbox.CreateManualEntryHandler(boxService))
	protected.Put("/cashbox/entries/:id", cashbox.UpdateManualEntryHandler(boxService))
	protected.Post("/cashbox/corrections", cashbox.CreateCorrectionHandler(boxService))
	protected.Post("/cashbox/transfer-to-main", cashbox.TransferToMainHandler(boxService))

	// Petty cash sub-fund
	protected.Get("/cashbox/petty-cash", cashbox.PettyCashBalanceHandler(boxService))
	protected.Post("/cashbox/petty-cash/fund", cashbox.FundPettyCashHandler(boxService))
	protected.Post("/cashbox/petty-cash/expense", cashbox.PettyCashExpenseHandler(boxService))

	// Category allow-lists
	protected.Get("/cashbox/categories", cashbox.ListCategoriesHandler(boxService))
	adminRoutes.Post("/cashbox/categories", cashbox.AddCategoryHandler(boxService))
	adminRoutes.Delete("/cashbox/categories/:id", cashbox.DeleteCategoryHandler(boxService))

	// Audit logs
	protected.Get("/audit-logs", audit.ListAuditLogsHandler())

	log.Println("Server listening on port:", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
