package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Sandbox is an in-memory Client for tests and credential-less runs. Holds
// survive across calls on the same instance, so a resumed run sees the holds
// an earlier run created.
type Sandbox struct {
	mu sync.Mutex

	holds    map[string]*Hold
	captures map[string]decimal.Decimal
	voided   map[string]bool
	nextID   int

	// CreateErrs fails CreateHold for the listed participants.
	CreateErrs map[uint64]error
	// CaptureErrs fails CaptureHold for holds owned by the listed participants.
	CaptureErrs map[uint64]error
}

// NewSandbox returns an empty sandbox processor.
func NewSandbox() *Sandbox {
	return &Sandbox{
		holds:    map[string]*Hold{},
		captures: map[string]decimal.Decimal{},
		voided:   map[string]bool{},
	}
}

// SearchAuthorizedHolds returns all holds that are neither captured nor voided.
func (s *Sandbox) SearchAuthorizedHolds(ctx context.Context) ([]*Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Hold, 0, len(s.holds))
	for _, hold := range s.holds {
		copied := *hold
		out = append(out, &copied)
	}
	return out, nil
}

// CreateHold authorizes a new hold.
func (s *Sandbox) CreateHold(ctx context.Context, participantID uint64, amount decimal.Decimal) (*Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if errCreate := s.CreateErrs[participantID]; errCreate != nil {
		return nil, errCreate
	}

	s.nextID++
	hold := &Hold{
		ID:            fmt.Sprintf("sandbox-%d", s.nextID),
		ParticipantID: participantID,
		Amount:        amount,
		CreatedAt:     time.Now().UTC(),
	}
	s.holds[hold.ID] = hold
	copied := *hold
	return &copied, nil
}

// CaptureHold settles a hold. Capturing more than the authorized amount or
// reusing a settled hold is an error.
func (s *Sandbox) CaptureHold(ctx context.Context, hold *Hold, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.holds[hold.ID]
	if !ok {
		return fmt.Errorf("sandbox: unknown hold %s", hold.ID)
	}
	if errCapture := s.CaptureErrs[stored.ParticipantID]; errCapture != nil {
		return errCapture
	}
	if amount.GreaterThan(stored.Amount) {
		return fmt.Errorf("sandbox: capture %s exceeds authorized %s on hold %s", amount, stored.Amount, hold.ID)
	}

	delete(s.holds, hold.ID)
	s.captures[hold.ID] = amount
	return nil
}

// VoidHold releases a hold.
func (s *Sandbox) VoidHold(ctx context.Context, hold *Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.holds[hold.ID]; !ok {
		return fmt.Errorf("sandbox: unknown hold %s", hold.ID)
	}
	delete(s.holds, hold.ID)
	s.voided[hold.ID] = true
	return nil
}

// Captured returns the captured amount for a hold ID, if it was captured.
func (s *Sandbox) Captured(holdID string) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amount, ok := s.captures[holdID]
	return amount, ok
}

// Voided reports whether a hold ID was voided.
func (s *Sandbox) Voided(holdID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voided[holdID]
}

// OpenHoldCount returns the number of currently-authorized holds.
func (s *Sandbox) OpenHoldCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.holds)
}

// Seed installs a pre-existing hold, for exercising resume paths.
func (s *Sandbox) Seed(participantID uint64, amount decimal.Decimal) *Hold {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	hold := &Hold{
		ID:            fmt.Sprintf("sandbox-%d", s.nextID),
		ParticipantID: participantID,
		Amount:        amount,
		CreatedAt:     time.Now().UTC(),
	}
	s.holds[hold.ID] = hold
	copied := *hold
	return &copied
}
