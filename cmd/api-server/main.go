package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/danteprogrammer/clinica-core/internal/api"
	"github.com/danteprogrammer/clinica-core/internal/billing"
	"github.com/danteprogrammer/clinica-core/internal/booking"
	"github.com/danteprogrammer/clinica-core/internal/config"
	"github.com/danteprogrammer/clinica-core/internal/db"
	"github.com/danteprogrammer/clinica-core/internal/encounter"
	redisclient "github.com/danteprogrammer/clinica-core/internal/redis"
	"github.com/danteprogrammer/clinica-core/internal/schedule"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	log := newLogger(cfg.Env).With().Str("service", "api-server").Logger()
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("starting up")

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

	tariffs := billing.NewPgTariffStore(pgPool)
	invoices := billing.NewPgInvoiceStore(pgPool)
	insurance := billing.NewHTTPInsuranceValidator(cfg.InsuranceURL, cfg.InsuranceTO)
	biller := billing.NewService(tariffs, scheduleStore, insurance, invoices, log)

	encRepo := encounter.NewPgRepository(pgPool)
	encounters := encounter.NewService(bookRepo, encRepo, biller, loc, log)

	router := api.NewRouter(api.RouterConfig{
		Availability: engine,
		Ledger:       ledger,
		Encounters:   encounters,
		Billing:      biller,
		PgPool:       pgPool,
		Redis:        rdb,
		Env:          cfg.Env,
		Version:      version,
		Log:          log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	log.Info().Msg("api-server stopped")
}

func newLogger(env string) zerolog.Logger {
	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
