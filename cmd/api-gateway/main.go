package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	apigateway "github.com/radieske/beton-ledger/internal/api-gateway"
	"github.com/radieske/beton-ledger/internal/shared/config"
	"github.com/radieske/beton-ledger/internal/shared/logger"
	"github.com/radieske/beton-ledger/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router, err := apigateway.NewRouter(log, apigateway.Targets{Ledger: cfg.LedgerURL, Gateway: cfg.GatewayURL})
	if err != nil {
		log.Fatal("invalid proxy targets", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metricsSrv := metrics.NewMetricsServer(cfg.MetricsPort, reg, nil)
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		log.Info("api-gateway listening",
			zap.String("addr", srv.Addr),
			zap.String("ledger", cfg.LedgerURL),
			zap.String("gateway", cfg.GatewayURL),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("api-gateway", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
