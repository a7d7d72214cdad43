package db

import (
	"fmt"

	"github.com/gratipay/payday/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for all ledger models and applies
// constraints AutoMigrate cannot express.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errMigrate := conn.AutoMigrate(
		&models.Participant{},
		&models.Team{},
		&models.PaymentInstruction{},
		&models.Take{},
		&models.ExchangeRoute{},
		&models.Exchange{},
		&models.Payment{},
		&models.Payday{},
		&models.Notification{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}

	// At most one payday may be open at a time. Both SQLite and Postgres
	// support partial unique indexes over an expression.
	if errIndex := conn.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_paydays_one_open ON paydays ((ts_end IS NULL)) WHERE ts_end IS NULL",
	).Error; errIndex != nil {
		return fmt.Errorf("db: create one-open-payday index: %w", errIndex)
	}

	return nil
}
