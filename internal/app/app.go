// Package app wires configuration, the database, the payment processor, and
// the settlement runner together for the payday binary.
package app

import (
	"context"
	"fmt"

	"github.com/gratipay/payday/internal/config"
	"github.com/gratipay/payday/internal/db"
	"github.com/gratipay/payday/internal/notify"
	"github.com/gratipay/payday/internal/payday"
	"github.com/gratipay/payday/internal/processor"
	log "github.com/sirupsen/logrus"
)

// Migrate opens the database and runs migrations.
func Migrate(cfg config.Config) error {
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunPayday executes one settlement run (starting fresh or resuming an
// interrupted one) against the configured database and processor.
func RunPayday(ctx context.Context, cfg config.Config) error {
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	client, errClient := buildProcessor(cfg)
	if errClient != nil {
		return errClient
	}

	fees, errFees := cfg.FeeSchedule()
	if errFees != nil {
		return errFees
	}

	runner := payday.NewRunner(conn, client,
		payday.WithFeeSchedule(fees),
		payday.WithMaxParallelHolds(cfg.Payday.MaxParallelHolds),
		payday.WithNotifier(notify.NewGormNotifier(conn)),
	)

	log.WithFields(log.Fields{
		"processor": cfg.Processor.Mode,
		"parallel":  cfg.Payday.MaxParallelHolds,
	}).Info("starting payday run")
	return runner.Run(ctx)
}

// buildProcessor constructs the processor client for the configured mode.
func buildProcessor(cfg config.Config) (processor.Client, error) {
	switch cfg.Processor.Mode {
	case config.ProcessorSandbox, "":
		return processor.NewSandbox(), nil
	default:
		return nil, fmt.Errorf("app: unsupported processor mode %q", cfg.Processor.Mode)
	}
}
