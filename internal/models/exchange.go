package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Exchange statuses.
const (
	ExchangePre       = "pre"
	ExchangePending   = "pending"
	ExchangeFailed    = "failed"
	ExchangeSucceeded = "succeeded"
)

// Exchange records money moving between Gratipay and the outside world.
// Positive amounts are charges, negative amounts are payouts.
type Exchange struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ParticipantID uint64       `gorm:"not null;index"`           // Participant whose money moved.
	Participant   *Participant `gorm:"foreignKey:ParticipantID"` // Participant record.

	RouteID *uint64        `gorm:"index"`              // Payment route used, when known.
	Route   *ExchangeRoute `gorm:"foreignKey:RouteID"` // Payment route record.

	Amount decimal.Decimal `gorm:"type:numeric(35,2);not null"`           // Net amount moved.
	Fee    decimal.Decimal `gorm:"type:numeric(35,2);not null;default:0"` // Processor fee on top of the net amount.

	Status string `gorm:"type:text;not null"` // pre, pending, failed or succeeded.
	Note   string `gorm:"type:text"`          // Error detail or processor reference.

	PaydayID *uint64 `gorm:"index"` // Payday that produced this exchange, if any.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
