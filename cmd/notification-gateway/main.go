package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/beton-ledger/internal/notification-gateway/ws"
	sharedcache "github.com/radieske/beton-ledger/internal/shared/cache"
	"github.com/radieske/beton-ledger/internal/shared/config"
	"github.com/radieske/beton-ledger/internal/shared/logger"
	"github.com/radieske/beton-ledger/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "notification-gateway"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RedisAddr == "" {
		log.Fatal("REDIS_ADDR is required")
	}
	rdb, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()
	log.Info("redis connected")

	reg := prometheus.NewRegistry()
	conns := prometheus.NewGauge(prometheus.GaugeOpts{Name: "gateway_ws_connections", Help: "conexões WebSocket abertas"})
	broadcasts := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "gateway_ws_broadcasts_total", Help: "notificações entregues por tipo"}, []string{"kind"})
	reg.MustRegister(conns, broadcasts)

	// CORS liberado no PoC
	hub := ws.NewHub(log, cfg.MaxEventNameLength, func(*http.Request) bool { return true })
	hub.OnConnect = func(delta int) { conns.Add(float64(delta)) }
	hub.OnBroadcast = func(kind string) { broadcasts.WithLabelValues(kind).Inc() }
	ws.StartRedisSubscriber(ctx, rdb, cfg.RedisPubSubChannel, hub, log)
	log.Info("subscribed", zap.String("channel", cfg.RedisPubSubChannel))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/ws", hub.HandleWS)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsSrv := metrics.NewMetricsServer(cfg.MetricsPort, reg, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	go func() {
		log.Info("metrics/health", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		log.Info("notification-gateway listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ws server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
