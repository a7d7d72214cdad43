package payday

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNoOpenPayday is returned when an operation requires an open payday and
// none exists. This indicates a caller bug, not a transient condition.
var ErrNoOpenPayday = errors.New("payday: no open payday")

// NegativeBalanceError aborts the balance commit when a participant would end
// up negative after being decremented. The enclosing transaction rolls back.
type NegativeBalanceError struct {
	ParticipantID uint64
	Balance       decimal.Decimal
}

func (e *NegativeBalanceError) Error() string {
	return fmt.Sprintf("payday: participant %d balance would be negative (%s)", e.ParticipantID, e.Balance)
}

// CaptureError is a fatal failure capturing a card hold, including an attempt
// to capture more than the hold's authorized amount.
type CaptureError struct {
	ParticipantID uint64
	HoldID        string
	Requested     decimal.Decimal
	Authorized    decimal.Decimal
	Err           error
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payday: capture hold %s for participant %d: %v", e.HoldID, e.ParticipantID, e.Err)
	}
	return fmt.Sprintf("payday: capture %s exceeds authorized %s on hold %s for participant %d",
		e.Requested, e.Authorized, e.HoldID, e.ParticipantID)
}

func (e *CaptureError) Unwrap() error { return e.Err }
