package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/danteprogrammer/clinica-core/internal/booking"
	"github.com/danteprogrammer/clinica-core/internal/civil"
	"github.com/danteprogrammer/clinica-core/internal/config"
	"github.com/danteprogrammer/clinica-core/internal/db"
	redisclient "github.com/danteprogrammer/clinica-core/internal/redis"
	"github.com/danteprogrammer/clinica-core/internal/schedule"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := newLogger(cfg.Env).With().Str("service", "expiry-worker").Logger()
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	loc := cfg.Location()

	scheduleStore := schedule.NewPgStore(pgPool)
	bookRepo := booking.NewPgRepository(pgPool)
	engine := schedule.NewAvailabilityEngine(scheduleStore, bookRepo, loc)
	locker := redisclient.NewAgendaLocker(rdb, cfg.LockTTL)
	ledger := booking.NewLedger(bookRepo, engine, locker, log)

	// Run once at startup, then on the configured interval.
	runOnce(rootCtx, ledger, loc, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping sweeper")
			return
		case <-ticker.C:
			runOnce(rootCtx, ledger, loc, log)
		}
	}
}

// runOnce cancels every pending appointment whose slot has already passed in
// clinic local time.
func runOnce(ctx context.Context, ledger *booking.Ledger, loc *time.Location, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	now := time.Now().In(loc)
	today := civil.DateOf(now)
	nowTime := civil.TimeOfDayOf(now)

	start := time.Now()
	cancelled, err := ledger.CancelNoShows(runCtx, today, nowTime)
	if err != nil {
		log.Error().Err(err).Msg("no-show sweep error")
		return
	}
	log.Info().Int("cancelled", cancelled).Dur("took", time.Since(start)).Msg("no-show sweep complete")
}

func newLogger(env string) zerolog.Logger {
	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
