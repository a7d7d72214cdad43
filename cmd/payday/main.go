package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gratipay/payday/internal/app"
	"github.com/gratipay/payday/internal/config"
)

// Opts are the command line options.
type Opts struct {
	ConfigPath string `long:"config" short:"c" default:"payday.yaml" env:"PAYDAY_CONFIG_PATH"`
	Once       bool   `long:"once" description:"run a single settlement cycle and exit"`
	Migrate    bool   `long:"migrate" description:"run database migrations and exit"`
	Debug      bool   `long:"debug"`
}

var (
	version = "dev"
	commit  = "none"
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
	})

	opts := Opts{}
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	configureLogOutput(cfg.Log)
	if opts.Debug {
		log.SetLevel(log.DebugLevel)
	}

	log.WithFields(log.Fields{
		"version": version,
		"commit":  commit,
	}).Info("running payday")

	if opts.Migrate {
		if errMigrate := app.Migrate(cfg); errMigrate != nil {
			log.WithError(errMigrate).Fatal("migration failed")
		}
		return
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if opts.Once {
		go func() {
			<-stop
			log.Info("interrupted, stage progress is preserved")
			cancel()
		}()
		if errRun := app.RunPayday(ctx, cfg); errRun != nil {
			log.WithError(errRun).Fatal("payday run failed")
		}
		return
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, errCron := c.AddFunc(cfg.Payday.Schedule, func() {
		if errRun := app.RunPayday(ctx, cfg); errRun != nil {
			// No automatic retry; the next scheduled run resumes from the
			// last completed stage.
			log.WithError(errRun).Error("payday run failed")
		}
	}); errCron != nil {
		log.WithError(errCron).Fatal("invalid payday schedule")
	}

	log.WithField("schedule", cfg.Payday.Schedule).Info("payday scheduler started")
	c.Start()

	<-stop
	log.Info("shutting down")
	cancel()
	<-c.Stop().Done()
}

// configureLogOutput routes logs through a rotated file when configured.
func configureLogOutput(cfg config.Log) {
	if level, errParse := log.ParseLevel(cfg.Level); errParse == nil {
		log.SetLevel(level)
	}
	if cfg.File == "" {
		return
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	})
}
