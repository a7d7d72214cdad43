package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Participant is a person or team-owning account that can give and receive money.
type Participant struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string          `gorm:"type:text;not null;uniqueIndex"`       // Unique account name.
	Balance  decimal.Decimal `gorm:"type:numeric(35,2);not null;default:0"` // Current balance. Never negative at rest.

	IsSuspicious bool `gorm:"not null;default:false"` // Suspicious accounts are excluded from all money movement.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
