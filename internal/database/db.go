package database

import (
	"context"
	"log"

	"cafepos-backend/internal/config"
	"cafepos-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	var err error

	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Could not connect to the database: %v", err)
	}

	// Connectivity probe with a short timeout: fail fast at startup
	// instead of hanging on the first request.
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatalf("Could not access the underlying connection: %v", err)
	}
	probeCtx, cancel := context.WithTimeout(context.Background(), cfg.ProbeTimeout)
	defer cancel()
	if err := sqlDB.PingContext(probeCtx); err != nil {
		log.Fatalf("Database connectivity probe failed: %v", err)
	}

	err = DB.AutoMigrate(
		&models.Branch{},
		&models.User{},
		&models.CashierSession{},
		&models.CashBoxEntry{},
		&models.CashBoxCategory{},
		&models.PettyCashBalance{},
		&models.ShopSettings{},
		&models.AuditLog{},
	)
	if err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}

	log.Println("Database connection established. Migration complete.")
}
