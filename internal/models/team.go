package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Team is a recipient entity funded by payment instructions and drained by takes.
type Team struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Slug    string       `gorm:"type:text;not null;uniqueIndex"` // Unique team slug.
	OwnerID uint64       `gorm:"not null;index"`                 // Owning participant ID.
	Owner   *Participant `gorm:"foreignKey:OwnerID"`             // Owning participant record.

	Balance   decimal.Decimal `gorm:"type:numeric(35,2);not null;default:0"` // Undistributed team funds.
	Available decimal.Decimal `gorm:"type:numeric(35,2);not null;default:0"` // Cap on what the team may distribute per cycle.
	Receiving decimal.Decimal `gorm:"type:numeric(35,2);not null;default:0"` // Amount received in the latest settled cycle.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
