package payday

import (
	"context"
	"fmt"
	"sync"

	"github.com/gratipay/payday/internal/processor"
	log "github.com/sirupsen/logrus"
)

// holdDecision is one worker's outcome: an open hold covering the
// participant's shortfall, nothing (sub-minimum or hold failure), or an error.
type holdDecision struct {
	participantID uint64
	hold          *processor.Hold
	err           error
}

// createCardHolds ensures every participant whose scheduled giving exceeds
// their balance has a sufficiently large authorization, voids holds that are
// no longer needed, and marks funded participants in the working set.
//
// Processor calls run on a bounded worker pool; the shared maps are only
// touched here, before and after the parallel dispatch. A failure to create a
// hold degrades that one participant to unfunded and never aborts the run.
func (r *Runner) createCardHolds(ctx context.Context, ws *workingSet) (map[uint64]*processor.Hold, error) {
	candidates := make([]*account, 0)
	for _, id := range ws.order {
		p := ws.participants[id]
		if p.hasCreditCard && p.givingToday.GreaterThan(p.oldBalance) {
			candidates = append(candidates, p)
		}
	}
	candidateSet := make(map[uint64]*account, len(candidates))
	for _, p := range candidates {
		candidateSet[p.id] = p
	}

	existing, errSearch := r.processor.SearchAuthorizedHolds(ctx)
	if errSearch != nil {
		return nil, fmt.Errorf("payday: search authorized holds: %w", errSearch)
	}

	held := make(map[uint64]*processor.Hold, len(existing))
	for _, hold := range existing {
		if _, ok := candidateSet[hold.ParticipantID]; !ok {
			r.voidHold(ctx, hold, "orphaned")
			continue
		}
		if prior, dup := held[hold.ParticipantID]; dup {
			// Keep the larger of duplicate holds, release the other.
			if hold.Amount.GreaterThan(prior.Amount) {
				held[hold.ParticipantID] = hold
				r.voidHold(ctx, prior, "duplicate")
			} else {
				r.voidHold(ctx, hold, "duplicate")
			}
			continue
		}
		held[hold.ParticipantID] = hold
	}

	results := make([]holdDecision, len(candidates))
	sem := make(chan struct{}, r.maxParallel)
	var wg sync.WaitGroup
	for i, p := range candidates {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		}

		wg.Add(1)
		go func(i int, p *account, existing *processor.Hold) {
			defer wg.Done()
			defer func() { <-sem }()
			hold, errHold := r.reconcileHold(ctx, p, existing)
			results[i] = holdDecision{participantID: p.id, hold: hold, err: errHold}
		}(i, p, held[p.id])
	}
	wg.Wait()

	holds := make(map[uint64]*processor.Hold, len(results))
	funded := 0
	for _, result := range results {
		if result.err != nil {
			log.WithError(result.err).Warnf("card hold failed (participant=%d)", result.participantID)
			r.recordRouteError(ctx, candidateSet[result.participantID].routeID, result.err.Error())
			continue
		}
		if result.hold == nil {
			continue
		}
		holds[result.participantID] = result.hold
		ws.participants[result.participantID].cardHoldOK = true
		funded++
	}

	log.WithFields(log.Fields{
		"candidates": len(candidates),
		"funded":     funded,
	}).Info("card holds reconciled")
	return holds, nil
}

// reconcileHold decides and executes the hold action for one candidate.
func (r *Runner) reconcileHold(ctx context.Context, p *account, existing *processor.Hold) (*processor.Hold, error) {
	shortfall := p.givingToday.Sub(p.oldBalance)

	if !r.fees.Chargeable(shortfall) {
		// Too small to charge; the due carry-over picks it up next cycle.
		if existing != nil {
			r.voidHold(ctx, existing, "below minimum charge")
		}
		log.WithFields(log.Fields{
			"participant": p.id,
			"shortfall":   shortfall,
		}).Debug("shortfall below minimum charge, deferring")
		return nil, nil
	}

	charge, _ := r.fees.Upcharge(shortfall)

	if existing != nil {
		if existing.Amount.GreaterThanOrEqual(charge) {
			log.WithFields(log.Fields{
				"participant": p.id,
				"hold":        existing.ID,
				"authorized":  existing.Amount,
			}).Debug("keeping existing hold")
			return existing, nil
		}
		if errVoid := r.processor.VoidHold(ctx, existing); errVoid != nil {
			return nil, fmt.Errorf("void undersized hold %s: %w", existing.ID, errVoid)
		}
	}

	hold, errCreate := r.processor.CreateHold(ctx, p.id, charge)
	if errCreate != nil {
		return nil, errCreate
	}
	log.WithFields(log.Fields{
		"participant": p.id,
		"hold":        hold.ID,
		"authorized":  hold.Amount,
	}).Info("card hold created")
	return hold, nil
}

// voidHold releases a hold, logging rather than failing when the processor
// refuses; an unreleased hold expires on its own.
func (r *Runner) voidHold(ctx context.Context, hold *processor.Hold, reason string) {
	if errVoid := r.processor.VoidHold(ctx, hold); errVoid != nil {
		log.WithError(errVoid).Warnf("void %s hold %s failed (participant=%d)", reason, hold.ID, hold.ParticipantID)
		return
	}
	log.WithFields(log.Fields{
		"participant": hold.ParticipantID,
		"hold":        hold.ID,
		"reason":      reason,
	}).Info("card hold voided")
}

// recordRouteError persists the processor's complaint on the payment route so
// the participant sees why their pledge went unfunded.
func (r *Runner) recordRouteError(ctx context.Context, routeID uint64, message string) {
	if routeID == 0 {
		return
	}
	if errUpdate := r.db.WithContext(ctx).
		Exec("UPDATE exchange_routes SET error = ? WHERE id = ?", message, routeID).Error; errUpdate != nil {
		log.WithError(errUpdate).Warnf("record route error failed (route=%d)", routeID)
	}
}
