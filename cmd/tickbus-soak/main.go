// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package main implements the tickbus-soak harness. It drives a
// throttled bus with paced market-data producers and reports delivery
// and admission figures, exposing Prometheus metrics while running.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ManuGH/tickbus/eventbus"
	"github.com/ManuGH/tickbus/internal/config"
	"github.com/ManuGH/tickbus/internal/log"
	"github.com/ManuGH/tickbus/throttle"
	"github.com/ManuGH/tickbus/throttled"
)

// MarketData is a quote snapshot for one symbol.
type MarketData struct {
	Symbol string
	Price  float64
	Volume int64
}

// Trade is an executed order.
type Trade struct {
	ID     string
	Symbol string
	Price  float64
	Qty    int64
	Side   string
}

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	flag.Parse()

	log.Init("tickbus-soak", "", nil)
	logger := log.Component("soak")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("config load failed")
	}

	if err := run(cfg); err != nil {
		logger.Fatal().Err(err).Msg("soak run failed")
	}
}

func run(cfg config.Config) error {
	logger := log.Component("soak")

	opts := []eventbus.AsyncOption{eventbus.WithWorkers(cfg.Bus.Workers)}
	if cfg.Bus.Coalesce {
		opts = append(opts, eventbus.WithCoalescing())
	}
	bus := eventbus.NewAsyncBus(opts...)
	defer bus.Close()

	throttler, err := throttle.NewRollingWindow(cfg.Throttle.MaxOps, cfg.Throttle.Window)
	if err != nil {
		return fmt.Errorf("throttler: %w", err)
	}
	defer throttler.Close()

	gated := throttled.New(bus, throttler)
	defer gated.Close()

	var delivered, trades atomic.Int64
	if err := gated.Subscribe(eventbus.HandlerFunc(func(any) error {
		delivered.Add(1)
		return nil
	})); err != nil {
		return err
	}
	if err := gated.SubscribeType(Trade{}, eventbus.HandlerFunc(func(any) error {
		trades.Add(1)
		return nil
	})); err != nil {
		return err
	}

	srv := metricsServer(cfg.Listen)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	runCtx, cancel := context.WithTimeout(runCtx, cfg.Soak.Duration)
	defer cancel()

	started := time.Now()
	var published atomic.Int64

	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < cfg.Soak.Producers; i++ {
		producer := i
		g.Go(func() error {
			limiter := rate.NewLimiter(rate.Limit(cfg.Soak.Rate), 1)
			rng := rand.New(rand.NewSource(int64(producer))) // #nosec G404 -- load generation only
			for {
				if err := limiter.Wait(gctx); err != nil {
					return nil // context expired; normal end of run
				}
				symbol := cfg.Soak.Symbols[rng.Intn(len(cfg.Soak.Symbols))]
				price := 100 + rng.Float64()*50
				if rng.Intn(10) == 0 {
					gated.Publish(Trade{
						ID:     uuid.NewString(),
						Symbol: symbol,
						Price:  price,
						Qty:    int64(rng.Intn(500) + 1),
						Side:   []string{"BUY", "SELL"}[rng.Intn(2)],
					})
				} else {
					gated.Publish(MarketData{
						Symbol: symbol,
						Price:  price,
						Volume: int64(rng.Intn(10000)),
					})
				}
				published.Add(1)
			}
		})
	}
	_ = g.Wait()

	// Give the queue a moment to empty before tearing down.
	time.Sleep(500 * time.Millisecond)
	gated.Close()
	bus.Close()

	logger.Info().
		Int64("published", published.Load()).
		Int64("delivered_universal", delivered.Load()).
		Int64("delivered_trades", trades.Load()).
		Int("pending_at_close", gated.PendingEventCount()).
		Dur("elapsed", time.Since(started)).
		Msg("soak run complete")
	return nil
}

func metricsServer(listen string) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              listen,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
