package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment directions.
const (
	PaymentToTeam        = "to-team"
	PaymentToParticipant = "to-participant"
)

// Payment is one internal transfer between a participant and a team, appended
// by the settlement pipeline as its audit trail.
type Payment struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	PaydayID uint64  `gorm:"not null;index"`      // Payday that settled this payment.
	Payday   *Payday `gorm:"foreignKey:PaydayID"` // Payday record.

	ParticipantID uint64       `gorm:"not null;index"`           // Participant side of the transfer.
	Participant   *Participant `gorm:"foreignKey:ParticipantID"` // Participant record.
	TeamID        uint64       `gorm:"not null;index"`           // Team side of the transfer.
	Team          *Team        `gorm:"foreignKey:TeamID"`        // Team record.

	Amount    decimal.Decimal `gorm:"type:numeric(35,2);not null"` // Transfer amount. Always positive.
	Direction string          `gorm:"type:text;not null"`          // to-team or to-participant.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
