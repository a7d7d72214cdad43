package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is a queued outbound message for a participant. Rows are
// appended by the settlement engine and drained by an external sender.
type Notification struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ParticipantID uint64       `gorm:"not null;index"`           // Recipient participant ID.
	Participant   *Participant `gorm:"foreignKey:ParticipantID"` // Recipient participant record.

	Template string         `gorm:"type:text;not null"` // Message template name.
	Context  datatypes.JSON `gorm:"type:jsonb"`         // Template context values.

	QueuedAt time.Time  `gorm:"not null;autoCreateTime"` // When the notification was queued.
	SentAt   *time.Time // When the notification was sent, if it has been.
}
