package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/hostmatch/internal/api"
	"github.com/TimurManjosov/hostmatch/internal/config"
	"github.com/TimurManjosov/hostmatch/internal/logging"
	"github.com/TimurManjosov/hostmatch/internal/matching"
	"github.com/TimurManjosov/hostmatch/internal/store"
	"github.com/TimurManjosov/hostmatch/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hostmatch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, closer, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		File:    cfg.LogFile,
		Service: "hostmatch",
	})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer closer.Close()

	if cfg.TieBreakSeedGenerated {
		log.Warn().Msg("TIEBREAK_SEED not set; lead host tie-breaks will change on restart")
	}

	ctx := context.Background()
	st, err := store.NewStore(ctx, cfg.StoreType, cfg.DatabaseDSN, cfg.FixtureFile)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()
	log.Info().Str("store", cfg.StoreType).Str("fixture", cfg.FixtureFile).Msg("catalog store ready")

	telemetry.Init()
	matcher := matching.NewMatcher(st,
		matching.WithWorkers(cfg.MatchWorkers),
		matching.WithRequireOrgScope(cfg.RequireOrgScope),
		matching.WithLogger(log.With().Str("component", "matching").Logger()),
		matching.WithObserver(telemetry.MatchObserver{}),
	)

	srvAPI := api.NewServer(api.Options{
		Store:          st,
		Matcher:        matcher,
		Logger:         log,
		MatchTimeout:   cfg.MatchTimeout,
		RateLimitPerIP: cfg.RateLimitPerIP,
		TieBreakSeed:   cfg.TieBreakSeed,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 3 * time.Second,
	}

	errCh := make(chan error, 2)
	listen(log, "api", srv, errCh)
	listen(log, "metrics", metricsSrv, errCh)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("server failed")
	}

	ctxShut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(ctxShut)
	if err := srv.Shutdown(ctxShut); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("stopped")
	return nil
}

func listen(log zerolog.Logger, name string, srv *http.Server, errCh chan<- error) {
	go func() {
		log.Info().Str("server", name).Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server: %w", name, err)
		}
	}()
}
