package payday

import (
	"context"
	"fmt"
	"sync"

	"github.com/gratipay/payday/internal/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// account is a participant's working-set row: the balance snapshot the run
// started from and the balance the pipeline computes.
type account struct {
	id            uint64
	username      string
	oldBalance    decimal.Decimal
	newBalance    decimal.Decimal
	givingToday   decimal.Decimal
	hasCreditCard bool
	cardHoldOK    bool
	routeID       uint64 // credit-card route, for exchange and error records
}

// teamState is a team's working-set row.
type teamState struct {
	id         uint64
	slug       string
	ownerID    uint64
	oldBalance decimal.Decimal
	balance    decimal.Decimal
	available  decimal.Decimal
}

// instructionState is a payment instruction's working-set row. newDue is what
// the live due column becomes at commit.
type instructionState struct {
	id            uint64
	participantID uint64
	teamID        uint64
	amount        decimal.Decimal
	due           decimal.Decimal
	newDue        decimal.Decimal
	funded        bool // payer has a usable card route
}

// workingSet is the isolated copy of ledger state one payday run mutates.
// Live rows are only touched by the final commit. The mutex serializes the
// settlement stages against any concurrent reader of in-flight state.
type workingSet struct {
	mu sync.Mutex

	participants map[uint64]*account
	order        []uint64
	teams        map[uint64]*teamState
	teamOrder    []uint64
	instructions []*instructionState
	payments     []models.Payment
}

// buildSnapshot materializes the working set from live state: every
// non-suspicious participant with their balance and scheduled giving, every
// team with its balance and available cap, and every standing payment
// instruction. It is a pure prepare step and safe to re-run on resume.
func (r *Runner) buildSnapshot(ctx context.Context, payday *models.Payday) (*workingSet, error) {
	ws := &workingSet{
		participants: map[uint64]*account{},
		teams:        map[uint64]*teamState{},
	}

	var participants []models.Participant
	if errFind := r.db.WithContext(ctx).
		Where("is_suspicious = ?", false).
		Order("id ASC").
		Find(&participants).Error; errFind != nil {
		return nil, fmt.Errorf("payday: snapshot participants: %w", errFind)
	}
	for _, row := range participants {
		ws.participants[row.ID] = &account{
			id:          row.ID,
			username:    row.Username,
			oldBalance:  row.Balance,
			newBalance:  row.Balance,
			givingToday: decimal.Zero,
		}
		ws.order = append(ws.order, row.ID)
	}

	// A participant holds a usable card when a credit-card route exists with
	// no recorded error. The lowest route ID wins if there are several.
	var routes []models.ExchangeRoute
	if errFind := r.db.WithContext(ctx).
		Where("network = ? AND error = ?", models.RouteNetworkCreditCard, "").
		Order("id ASC").
		Find(&routes).Error; errFind != nil {
		return nil, fmt.Errorf("payday: snapshot routes: %w", errFind)
	}
	for _, route := range routes {
		p, ok := ws.participants[route.ParticipantID]
		if !ok || p.hasCreditCard {
			continue
		}
		p.hasCreditCard = true
		p.routeID = route.ID
	}

	var teams []models.Team
	if errFind := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&teams).Error; errFind != nil {
		return nil, fmt.Errorf("payday: snapshot teams: %w", errFind)
	}
	for _, row := range teams {
		ws.teams[row.ID] = &teamState{
			id:         row.ID,
			slug:       row.Slug,
			ownerID:    row.OwnerID,
			oldBalance: row.Balance,
			balance:    row.Balance,
			available:  row.Available,
		}
		ws.teamOrder = append(ws.teamOrder, row.ID)
	}

	var instructions []models.PaymentInstruction
	if errFind := r.db.WithContext(ctx).
		Where("amount > 0 OR due > 0").
		Order("id ASC").
		Find(&instructions).Error; errFind != nil {
		return nil, fmt.Errorf("payday: snapshot payment instructions: %w", errFind)
	}
	for _, row := range instructions {
		payer, ok := ws.participants[row.ParticipantID]
		if !ok {
			continue // suspicious payer, excluded from money movement
		}
		if _, ok := ws.teams[row.TeamID]; !ok {
			continue
		}
		state := &instructionState{
			id:            row.ID,
			participantID: row.ParticipantID,
			teamID:        row.TeamID,
			amount:        row.Amount,
			due:           row.Due,
			newDue:        row.Due,
			funded:        payer.hasCreditCard,
		}
		ws.instructions = append(ws.instructions, state)
		if state.funded {
			payer.givingToday = payer.givingToday.Add(row.Amount.Add(row.Due))
		}
	}

	log.WithFields(log.Fields{
		"payday":       payday.ID,
		"participants": len(ws.order),
		"teams":        len(ws.teamOrder),
		"instructions": len(ws.instructions),
	}).Info("ledger snapshot built")
	return ws, nil
}
