package models

import "time"

// Route network identifiers.
const (
	RouteNetworkCreditCard = "braintree-cc"
	RouteNetworkPayPal     = "paypal"
)

// ExchangeRoute is a payment method on file for a participant.
type ExchangeRoute struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ParticipantID uint64       `gorm:"not null;index"`           // Owning participant ID.
	Participant   *Participant `gorm:"foreignKey:ParticipantID"` // Owning participant record.

	Network string `gorm:"type:text;not null"` // Payment network, e.g. braintree-cc.
	Address string `gorm:"type:text;not null"` // Network-specific address or token.
	Error   string `gorm:"type:text;not null;default:''"` // Last processor error. Empty means the route is usable.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
