package payday

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gratipay/payday/internal/models"
	"github.com/gratipay/payday/internal/processor"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// captureResult is one worker's outcome settling a hold.
type captureResult struct {
	participantID uint64
	hold          *processor.Hold
	captured      bool
	net           decimal.Decimal
	fee           decimal.Decimal
	err           error
}

// settleCardHolds captures each hold for exactly the owner's computed deficit
// and voids every hold that is not needed. Captures are external, irreversible
// money movement: each one records an exchange row immediately, outside the
// balance-commit transaction, so a later abort still leaves an audit trail.
// A capture failure is fatal to the run; void failures only log.
func (r *Runner) settleCardHolds(ctx context.Context, payday *models.Payday, ws *workingSet, holds map[uint64]*processor.Hold) error {
	ids := make([]uint64, 0, len(holds))
	for id := range holds {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	results := make([]captureResult, len(ids))
	sem := make(chan struct{}, r.maxParallel)
	var wg sync.WaitGroup
	for i, id := range ids {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		}

		wg.Add(1)
		go func(i int, p *account, hold *processor.Hold) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = r.settleHold(ctx, p, hold)
		}(i, ws.participants[id], holds[id])
	}
	wg.Wait()

	ws.mu.Lock()
	defer ws.mu.Unlock()

	var firstErr error
	for _, result := range results {
		p := ws.participants[result.participantID]
		if result.err != nil {
			r.recordExchange(ctx, payday, p, result.net, result.fee, models.ExchangeFailed, result.err.Error())
			r.recordRouteError(ctx, p.routeID, result.err.Error())
			if firstErr == nil {
				firstErr = result.err
			}
			continue
		}
		if !result.captured {
			continue
		}
		p.newBalance = p.newBalance.Add(result.net)
		r.recordExchange(ctx, payday, p, result.net, result.fee, models.ExchangeSucceeded, result.hold.ID)
	}
	return firstErr
}

// settleHold captures or voids a single hold.
func (r *Runner) settleHold(ctx context.Context, p *account, hold *processor.Hold) captureResult {
	result := captureResult{participantID: p.id, hold: hold}

	if !p.newBalance.IsNegative() {
		// Nothing owed after settlement; release the authorization.
		r.voidHold(ctx, hold, "unused")
		return result
	}

	net := p.newBalance.Neg()
	charge, fee := r.fees.Upcharge(net)
	result.net = net
	result.fee = fee

	if charge.GreaterThan(hold.Amount) {
		result.err = &CaptureError{
			ParticipantID: p.id,
			HoldID:        hold.ID,
			Requested:     charge,
			Authorized:    hold.Amount,
		}
		return result
	}

	if errCapture := r.processor.CaptureHold(ctx, hold, charge); errCapture != nil {
		result.err = &CaptureError{
			ParticipantID: p.id,
			HoldID:        hold.ID,
			Requested:     charge,
			Authorized:    hold.Amount,
			Err:           errCapture,
		}
		return result
	}

	result.captured = true
	log.WithFields(log.Fields{
		"participant": p.id,
		"hold":        hold.ID,
		"net":         net,
		"fee":         fee,
	}).Info("card hold captured")
	return result
}

// recordExchange appends the durable record of an external charge attempt.
func (r *Runner) recordExchange(ctx context.Context, payday *models.Payday, p *account, net, fee decimal.Decimal, status, note string) {
	row := models.Exchange{
		ParticipantID: p.id,
		Amount:        net,
		Fee:           fee,
		Status:        status,
		Note:          note,
		PaydayID:      &payday.ID,
	}
	if p.routeID != 0 {
		routeID := p.routeID
		row.RouteID = &routeID
	}
	if errCreate := r.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		log.WithError(errCreate).Errorf("record %s exchange failed (participant=%d)", status, p.id)
	}
}

// commit applies the run's net effect to live rows in one transaction:
// participant and team balance deltas, instruction due values, the funded
// flag, and the append-only payment records. A participant left negative by a
// decrement means live state diverged from the snapshot; the whole
// transaction rolls back with a NegativeBalanceError. Holds already captured
// are not rolled back and must be reconciled manually.
func (r *Runner) commit(ctx context.Context, payday *models.Payday, ws *workingSet) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	errTx := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, id := range ws.order {
			p := ws.participants[id]
			delta := p.newBalance.Sub(p.oldBalance)
			if delta.IsZero() {
				continue
			}
			if errUpdate := tx.Model(&models.Participant{}).
				Where("id = ?", id).
				Update("balance", gorm.Expr("balance + ?", delta)).Error; errUpdate != nil {
				return fmt.Errorf("payday: update balance for participant %d: %w", id, errUpdate)
			}

			var live models.Participant
			if errFind := tx.Select("balance").First(&live, id).Error; errFind != nil {
				return fmt.Errorf("payday: reread participant %d: %w", id, errFind)
			}
			if live.Balance.IsNegative() && delta.IsNegative() {
				return &NegativeBalanceError{ParticipantID: id, Balance: live.Balance}
			}
		}

		for _, teamID := range ws.teamOrder {
			team := ws.teams[teamID]
			delta := team.balance.Sub(team.oldBalance)
			if delta.IsZero() {
				continue
			}
			if errUpdate := tx.Model(&models.Team{}).
				Where("id = ?", teamID).
				Update("balance", gorm.Expr("balance + ?", delta)).Error; errUpdate != nil {
				return fmt.Errorf("payday: update balance for team %d: %w", teamID, errUpdate)
			}
		}

		for _, inst := range ws.instructions {
			updates := map[string]any{}
			if !inst.newDue.Equal(inst.due) {
				updates["due"] = inst.newDue
			}
			updates["is_funded"] = inst.funded
			if errUpdate := tx.Model(&models.PaymentInstruction{}).
				Where("id = ?", inst.id).
				Updates(updates).Error; errUpdate != nil {
				return fmt.Errorf("payday: update payment instruction %d: %w", inst.id, errUpdate)
			}
		}

		if len(ws.payments) > 0 {
			if errCreate := tx.Create(&ws.payments).Error; errCreate != nil {
				return fmt.Errorf("payday: record payments: %w", errCreate)
			}
		}
		return nil
	})
	if errTx != nil {
		return errTx
	}

	log.WithFields(log.Fields{
		"payday":   payday.ID,
		"payments": len(ws.payments),
	}).Info("balances committed")
	return nil
}
