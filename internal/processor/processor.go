// Package processor defines the payment-processor collaborator used by the
// settlement engine: card authorizations ("holds") that can later be captured
// or voided. Holds live processor-side; this package only models them.
package processor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Hold is an authorized-but-uncaptured charge at the processor. The owning
// participant's ID travels in the hold's custom metadata so orphans can be
// matched back to accounts.
type Hold struct {
	ID            string          // Processor-side transaction ID.
	ParticipantID uint64          // Owning participant, from custom metadata.
	Amount        decimal.Decimal // Authorized gross amount.
	CreatedAt     time.Time       // When the hold was authorized.
}

// Client is the processor API surface the settlement engine consumes.
// A hold that has been captured or voided cannot be reused.
type Client interface {
	// SearchAuthorizedHolds returns every currently-authorized hold.
	SearchAuthorizedHolds(ctx context.Context) ([]*Hold, error)
	// CreateHold authorizes a new hold of the given gross amount against the
	// participant's card.
	CreateHold(ctx context.Context, participantID uint64, amount decimal.Decimal) (*Hold, error)
	// CaptureHold settles a hold for the given gross amount, which must not
	// exceed the authorized amount.
	CaptureHold(ctx context.Context, hold *Hold, amount decimal.Decimal) error
	// VoidHold releases an uncaptured hold.
	VoidHold(ctx context.Context, hold *Hold) error
}
