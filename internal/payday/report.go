package payday

import (
	"context"
	"fmt"

	"github.com/gratipay/payday/internal/models"
	"github.com/gratipay/payday/internal/notify"
	log "github.com/sirupsen/logrus"
)

// updateStats aggregates run-wide statistics onto the payday row and
// refreshes each team's receiving amount, all set-based.
func (r *Runner) updateStats(ctx context.Context, payday *models.Payday) error {
	if errUpdate := r.db.WithContext(ctx).Exec(`
		UPDATE paydays SET
			n_active_users = (SELECT COUNT(DISTINCT participant_id) FROM payments WHERE payday_id = ?),
			n_teams = (SELECT COUNT(DISTINCT team_id) FROM payments WHERE payday_id = ? AND direction = ?),
			volume = (SELECT COALESCE(SUM(amount), 0) FROM payments WHERE payday_id = ? AND direction = ?)
		WHERE id = ?`,
		payday.ID, payday.ID, models.PaymentToTeam, payday.ID, models.PaymentToTeam, payday.ID,
	).Error; errUpdate != nil {
		return fmt.Errorf("payday: update stats: %w", errUpdate)
	}

	if errUpdate := r.db.WithContext(ctx).Exec(`
		UPDATE teams SET receiving = (
			SELECT COALESCE(SUM(amount), 0) FROM payments
			WHERE payments.team_id = teams.id AND payday_id = ? AND direction = ?
		)`,
		payday.ID, models.PaymentToTeam,
	).Error; errUpdate != nil {
		return fmt.Errorf("payday: update team receiving: %w", errUpdate)
	}

	var refreshed models.Payday
	if errFind := r.db.WithContext(ctx).First(&refreshed, payday.ID).Error; errFind != nil {
		return fmt.Errorf("payday: reload stats: %w", errFind)
	}
	payday.NActiveUsers = refreshed.NActiveUsers
	payday.NTeams = refreshed.NTeams
	payday.Volume = refreshed.Volume

	log.WithFields(log.Fields{
		"payday":       payday.ID,
		"active_users": payday.NActiveUsers,
		"teams":        payday.NTeams,
		"volume":       payday.Volume,
	}).Info("stats updated")
	return nil
}

// notifyCharged queues a notification for every participant whose card was
// charged this run, successfully or not. Failures log and move on; the
// settlement itself is already durable.
func (r *Runner) notifyCharged(ctx context.Context, payday *models.Payday) {
	if r.notifier == nil {
		return
	}

	var exchanges []models.Exchange
	if errFind := r.db.WithContext(ctx).
		Where("payday_id = ?", payday.ID).
		Order("id ASC").
		Find(&exchanges).Error; errFind != nil {
		log.WithError(errFind).Warn("load exchanges for notifications failed")
		return
	}

	for _, exchange := range exchanges {
		template := notify.TemplateChargeSucceeded
		if exchange.Status != models.ExchangeSucceeded {
			template = notify.TemplateChargeFailed
		}
		errNotify := r.notifier.Notify(ctx, exchange.ParticipantID, template, map[string]any{
			"amount": exchange.Amount.StringFixed(2),
			"fee":    exchange.Fee.StringFixed(2),
			"status": exchange.Status,
		})
		if errNotify != nil {
			log.WithError(errNotify).Warnf("notify participant %d failed", exchange.ParticipantID)
		}
	}
}
