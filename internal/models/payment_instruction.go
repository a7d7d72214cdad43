package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentInstruction is a standing weekly pledge from a participant to a team.
type PaymentInstruction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ParticipantID uint64       `gorm:"not null;uniqueIndex:idx_payment_instructions_pair"` // Pledging participant ID.
	Participant   *Participant `gorm:"foreignKey:ParticipantID"`                           // Pledging participant record.
	TeamID        uint64       `gorm:"not null;uniqueIndex:idx_payment_instructions_pair"` // Receiving team ID.
	Team          *Team        `gorm:"foreignKey:TeamID"`                                  // Receiving team record.

	Amount decimal.Decimal `gorm:"type:numeric(35,2);not null;default:0"` // Weekly pledge amount.
	Due    decimal.Decimal `gorm:"type:numeric(35,2);not null;default:0"` // Pledged-but-uncharged carry-over from previous cycles.

	IsFunded bool `gorm:"not null;default:false"` // True while the payer's payment route is error-free.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
