package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payday is one weekly settlement run. At most one row may be open
// (TsEnd == nil) at any time, enforced by a partial unique index.
type Payday struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	TsStart time.Time  `gorm:"not null"` // When the run started.
	TsEnd   *time.Time `gorm:"index"`    // When the run finished. Nil while the run is open.

	Stage int `gorm:"not null;default:0"` // Number of completed stages. See payday.Stage.

	NActiveUsers int             `gorm:"not null;default:0"`                    // Participants who moved money this run.
	NTeams       int             `gorm:"not null;default:0"`                    // Teams that received money this run.
	Volume       decimal.Decimal `gorm:"type:numeric(35,2);not null;default:0"` // Total paid to teams this run.
}
