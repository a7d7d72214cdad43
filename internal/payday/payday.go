// Package payday implements the weekly settlement engine: it snapshots the
// ledger, reconciles card holds against what each participant owes, moves
// money between internal balances, captures or voids the holds, and commits
// the net result atomically. Runs are crash-resumable through a stage counter
// on the payday row.
package payday

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gratipay/payday/internal/billing"
	"github.com/gratipay/payday/internal/models"
	"github.com/gratipay/payday/internal/notify"
	"github.com/gratipay/payday/internal/processor"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultMaxParallelHolds = 10

// Runner orchestrates one payday cycle end to end.
type Runner struct {
	db          *gorm.DB
	processor   processor.Client
	notifier    notify.Notifier
	fees        billing.FeeSchedule
	maxParallel int
	dumpDir     string
}

// Option configures a Runner.
type Option func(*Runner)

// WithFeeSchedule overrides the default fee policy.
func WithFeeSchedule(fees billing.FeeSchedule) Option {
	return func(r *Runner) { r.fees = fees }
}

// WithMaxParallelHolds bounds concurrent processor calls.
func WithMaxParallelHolds(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxParallel = n
		}
	}
}

// WithNotifier sets the notification collaborator.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// WithDumpDir sets where the payments CSV is written on a fatal error.
func WithDumpDir(dir string) Option {
	return func(r *Runner) { r.dumpDir = dir }
}

// NewRunner builds a Runner over the given ledger store and processor client.
func NewRunner(conn *gorm.DB, client processor.Client, opts ...Option) *Runner {
	r := &Runner{
		db:          conn,
		processor:   client,
		fees:        billing.Default(),
		maxParallel: defaultMaxParallelHolds,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one payday cycle, resuming a previously interrupted run if one
// is open. Completed stages are never repeated.
func (r *Runner) Run(ctx context.Context) error {
	payday, errStart := r.Start(ctx)
	if errStart != nil {
		return errStart
	}

	if Stage(payday.Stage) < StagePayinDone {
		if errPayin := r.payin(ctx, payday); errPayin != nil {
			return errPayin
		}
		if errAdvance := r.advanceStage(ctx, payday, StagePayinDone); errAdvance != nil {
			return errAdvance
		}
	}

	if Stage(payday.Stage) < StageStatsDone {
		if errStats := r.updateStats(ctx, payday); errStats != nil {
			return errStats
		}
		if errAdvance := r.advanceStage(ctx, payday, StageStatsDone); errAdvance != nil {
			return errAdvance
		}
	}

	if errEnd := r.End(ctx, payday); errEnd != nil {
		return errEnd
	}

	// Settlement is already durable; notification failures only log.
	r.notifyCharged(ctx, payday)

	log.WithFields(log.Fields{
		"payday": payday.ID,
		"volume": payday.Volume,
	}).Info("payday finished")
	return nil
}

// Start opens a new payday, or resumes the open one if it exists. Calling it
// twice with no crash in between returns the same payday at the same stage.
func (r *Runner) Start(ctx context.Context) (*models.Payday, error) {
	var open models.Payday
	errFind := r.db.WithContext(ctx).Where("ts_end IS NULL").First(&open).Error
	if errFind == nil {
		log.WithFields(log.Fields{
			"payday": open.ID,
			"stage":  Stage(open.Stage).String(),
		}).Info("resuming open payday")
		return &open, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("payday: find open payday: %w", errFind)
	}

	fresh := models.Payday{TsStart: time.Now().UTC()}
	if errCreate := r.db.WithContext(ctx).Create(&fresh).Error; errCreate != nil {
		// Lost the race against a concurrent starter; the one-open-payday
		// index fired. Load whatever won.
		if errReload := r.db.WithContext(ctx).Where("ts_end IS NULL").First(&open).Error; errReload == nil {
			return &open, nil
		}
		return nil, fmt.Errorf("payday: start: %w", errCreate)
	}

	log.WithField("payday", fresh.ID).Info("payday started")
	return &fresh, nil
}

// End closes the payday. Ending when no payday is open is ErrNoOpenPayday.
func (r *Runner) End(ctx context.Context, payday *models.Payday) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Exec(
		"UPDATE paydays SET ts_end = ? WHERE id = ? AND ts_end IS NULL",
		now, payday.ID,
	)
	if res.Error != nil {
		return fmt.Errorf("payday: end: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNoOpenPayday
	}
	payday.TsEnd = &now
	log.WithField("payday", payday.ID).Info("payday closed")
	return nil
}

// advanceStage records stage completion, guarded against a concurrent process
// having advanced or closed the payday in the meantime.
func (r *Runner) advanceStage(ctx context.Context, payday *models.Payday, next Stage) error {
	if !next.Valid() || int(next) <= payday.Stage {
		return fmt.Errorf("payday: illegal stage transition %s -> %s", Stage(payday.Stage), next)
	}

	res := r.db.WithContext(ctx).Exec(
		"UPDATE paydays SET stage = ? WHERE id = ? AND ts_end IS NULL AND stage = ?",
		int(next), payday.ID, payday.Stage,
	)
	if res.Error != nil {
		return fmt.Errorf("payday: advance stage: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("payday: lost update advancing payday %d to %s", payday.ID, next)
	}

	payday.Stage = int(next)
	log.WithFields(log.Fields{
		"payday": payday.ID,
		"stage":  next.String(),
	}).Info("stage complete")
	return nil
}

// payin runs the transactional core: snapshot, holds, settlement pipeline,
// capture/void, balance commit. Any failure after payments are computed dumps
// them to CSV for manual reconciliation before propagating.
func (r *Runner) payin(ctx context.Context, payday *models.Payday) error {
	ws, errSnapshot := r.buildSnapshot(ctx, payday)
	if errSnapshot != nil {
		return errSnapshot
	}

	holds, errHolds := r.createCardHolds(ctx, ws)
	if errHolds != nil {
		return errHolds
	}

	errSettle := func() error {
		ws.processPaymentInstructions(payday.ID)
		if errTakes := r.processTakes(ctx, payday, ws); errTakes != nil {
			return errTakes
		}
		ws.processRemainder(payday.ID)

		if errFinalize := r.settleCardHolds(ctx, payday, ws, holds); errFinalize != nil {
			return errFinalize
		}
		return r.commit(ctx, payday, ws)
	}()
	if errSettle != nil {
		r.dumpPayments(ws)
		return errSettle
	}

	return nil
}
