package payday

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gratipay/payday/internal/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// processPaymentInstructions pays every standing pledge whose payer can cover
// it, either from balance or from a reconciled card hold. What cannot be paid
// rolls into the instruction's due carry-over. All movement stays inside the
// working set.
func (ws *workingSet) processPaymentInstructions(paydayID uint64) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	paid := 0
	for _, inst := range ws.instructions {
		owed := inst.amount.Add(inst.due)
		if !owed.IsPositive() {
			continue
		}
		payer := ws.participants[inst.participantID]
		team := ws.teams[inst.teamID]

		if payer.newBalance.Sub(owed).IsNegative() && !payer.cardHoldOK {
			inst.newDue = owed
			continue
		}

		payer.newBalance = payer.newBalance.Sub(owed)
		team.balance = team.balance.Add(owed)
		inst.newDue = decimal.Zero
		ws.payments = append(ws.payments, models.Payment{
			PaydayID:      paydayID,
			ParticipantID: payer.id,
			TeamID:        team.id,
			Amount:        owed,
			Direction:     models.PaymentToTeam,
		})
		paid++
	}

	log.WithFields(log.Fields{
		"instructions": len(ws.instructions),
		"paid":         paid,
	}).Info("payment instructions processed")
}

// effectiveTake is the take in force for one team member this cycle.
type effectiveTake struct {
	participantID uint64
	amount        decimal.Decimal
	setAt         time.Time
}

// processTakes distributes each team's funds to its members. Only the newest
// take per member set on or before the payday's start counts, so a take
// changed mid-run cannot affect this cycle. Takes are satisfied smallest
// first, each clipped to what remains of min(available cap, team balance).
func (r *Runner) processTakes(ctx context.Context, payday *models.Payday, ws *workingSet) error {
	var rows []models.Take
	if errFind := r.db.WithContext(ctx).
		Where("set_at <= ?", payday.TsStart).
		Order("team_id ASC, participant_id ASC, set_at DESC, id DESC").
		Find(&rows).Error; errFind != nil {
		return fmt.Errorf("payday: load takes: %w", errFind)
	}

	// First row per (team, member) is the newest thanks to the ordering.
	byTeam := map[uint64][]effectiveTake{}
	seen := map[[2]uint64]bool{}
	for _, row := range rows {
		key := [2]uint64{row.TeamID, row.ParticipantID}
		if seen[key] {
			continue
		}
		seen[key] = true
		if !row.Amount.IsPositive() {
			continue // a zero take is a retraction
		}
		byTeam[row.TeamID] = append(byTeam[row.TeamID], effectiveTake{
			participantID: row.ParticipantID,
			amount:        row.Amount,
			setAt:         row.SetAt,
		})
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	for _, teamID := range ws.teamOrder {
		team := ws.teams[teamID]
		takes := byTeam[teamID]
		if len(takes) == 0 {
			continue
		}

		sort.Slice(takes, func(i, j int) bool {
			if !takes[i].amount.Equal(takes[j].amount) {
				return takes[i].amount.LessThan(takes[j].amount)
			}
			if !takes[i].setAt.Equal(takes[j].setAt) {
				return takes[i].setAt.Before(takes[j].setAt)
			}
			return takes[i].participantID < takes[j].participantID
		})

		budget := decimal.Min(team.available, team.balance)
		for _, take := range takes {
			if !budget.IsPositive() {
				break
			}
			member := ws.participants[take.participantID]
			if member == nil {
				continue // suspicious members receive nothing
			}
			actual := decimal.Min(take.amount, budget)
			team.balance = team.balance.Sub(actual)
			member.newBalance = member.newBalance.Add(actual)
			budget = budget.Sub(actual)
			ws.payments = append(ws.payments, models.Payment{
				PaydayID:      payday.ID,
				ParticipantID: member.id,
				TeamID:        team.id,
				Amount:        actual,
				Direction:     models.PaymentToParticipant,
			})
			log.WithFields(log.Fields{
				"team":        team.slug,
				"participant": member.id,
				"nominal":     take.amount,
				"actual":      actual,
			}).Debug("take processed")
		}
	}

	return nil
}

// processRemainder pays whatever is left on each team to its owner.
func (ws *workingSet) processRemainder(paydayID uint64) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	for _, teamID := range ws.teamOrder {
		team := ws.teams[teamID]
		if !team.balance.IsPositive() {
			continue
		}
		owner := ws.participants[team.ownerID]
		if owner == nil {
			continue // suspicious owner, funds stay on the team
		}
		amount := team.balance
		team.balance = decimal.Zero
		owner.newBalance = owner.newBalance.Add(amount)
		ws.payments = append(ws.payments, models.Payment{
			PaydayID:      paydayID,
			ParticipantID: owner.id,
			TeamID:        team.id,
			Amount:        amount,
			Direction:     models.PaymentToParticipant,
		})
	}
}
