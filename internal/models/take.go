package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Take is one row of the append-only history of a member's claim on a team's
// funds. The effective take for a cycle is the newest row whose SetAt is not
// after the payday's start timestamp.
type Take struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	TeamID        uint64       `gorm:"not null;index:idx_takes_team_member"` // Team ID.
	Team          *Team        `gorm:"foreignKey:TeamID"`                    // Team record.
	ParticipantID uint64       `gorm:"not null;index:idx_takes_team_member"` // Member participant ID.
	Participant   *Participant `gorm:"foreignKey:ParticipantID"`             // Member participant record.

	Amount decimal.Decimal `gorm:"type:numeric(35,2);not null"` // Nominal claimed amount. Zero retracts the take.
	SetAt  time.Time       `gorm:"not null;index"`              // When the member set this take.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
