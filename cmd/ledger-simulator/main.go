package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/beton-ledger/internal/ledger"
	"github.com/radieske/beton-ledger/internal/ledger-service/auth"
	"github.com/radieske/beton-ledger/internal/shared/config"
	"github.com/radieske/beton-ledger/internal/shared/kafka"
	"github.com/radieske/beton-ledger/internal/shared/logger"
	"github.com/radieske/beton-ledger/internal/shared/metrics"
	"github.com/radieske/beton-ledger/internal/simulator"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.KafkaBrokers == "" {
		log.Fatal("KAFKA_BROKERS is required")
	}
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicLedgerCommands, false)
	defer writer.Close()

	// os apostadores precisam de saldo no ledger (GENESIS_BALANCES)
	bettors := make([]ledger.AccountID, cfg.SimBettors)
	for i := range bettors {
		bettors[i] = ledger.AccountID(fmt.Sprintf("bettor-%d", i+1))
	}

	reg := prometheus.NewRegistry()
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simulator_commands_published_total",
		Help: "comandos publicados por tipo",
	}, []string{"type"})
	reg.MustRegister(published)

	sim := simulator.New(log, writer, auth.NewJWT(cfg.JWTSecret), "oracle", bettors)
	sim.OnPublished = func(kind string) { published.WithLabelValues(kind).Inc() }

	metricsSrv := metrics.NewMetricsServer(cfg.MetricsPort, reg, nil)
	go func() {
		log.Info("ledger simulator (metrics) running", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	defer metricsSrv.Close()

	log.Info("ledger simulator running",
		zap.String("topic", cfg.TopicLedgerCommands),
		zap.Int("bettors", len(bettors)),
		zap.Duration("interval", cfg.SimInterval),
	)
	if err := sim.Run(ctx, cfg.SimInterval); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("simulator stopped", zap.Error(err))
	}
}
