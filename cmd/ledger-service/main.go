package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/beton-ledger/internal/ledger"
	"github.com/radieske/beton-ledger/internal/ledger-service/auth"
	"github.com/radieske/beton-ledger/internal/ledger-service/cache"
	"github.com/radieske/beton-ledger/internal/ledger-service/consumer"
	lhttp "github.com/radieske/beton-ledger/internal/ledger-service/http"
	"github.com/radieske/beton-ledger/internal/ledger-service/repo"
	"github.com/radieske/beton-ledger/internal/ledger-service/sequencer"
	"github.com/radieske/beton-ledger/internal/ledger-service/service"
	"github.com/radieske/beton-ledger/internal/ledger/memstore"
	"github.com/radieske/beton-ledger/internal/notify"
	sharedcache "github.com/radieske/beton-ledger/internal/shared/cache"
	"github.com/radieske/beton-ledger/internal/shared/config"
	"github.com/radieske/beton-ledger/internal/shared/db"
	"github.com/radieske/beton-ledger/internal/shared/kafka"
	"github.com/radieske/beton-ledger/internal/shared/logger"
	"github.com/radieske/beton-ledger/internal/shared/metrics"
	"github.com/radieske/beton-ledger/internal/wallet"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "ledger-service"
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting service",
		zap.String("service", cfg.ServiceName),
		zap.String("env", cfg.Env),
		zap.String("store", cfg.StoreBackend),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	lm := metrics.NewLedgerMetrics(reg)

	genesis, err := config.ParseGenesis(cfg.GenesisBalances)
	if err != nil {
		log.Fatal("invalid GENESIS_BALANCES", zap.Error(err))
	}

	// Stores e moeda: memória (local/testes) ou Postgres
	var (
		events   ledger.EventStore
		bets     ledger.BetStore
		currency ledger.Currency
		accounts wallet.Accounts
		pg       *sql.DB
		storeID  string // instância do store, namespace do cache de outcome
	)
	switch cfg.StoreBackend {
	case "memory":
		mem := memstore.NewCurrency(ledger.Balance(cfg.ExistentialDeposit))
		for who, amount := range genesis {
			if _, err := mem.Deposit(ledger.AccountID(who), ledger.Balance(amount)); err != nil {
				log.Fatal("genesis deposit", zap.String("account", who), zap.Error(err))
			}
		}
		events, bets, currency = memstore.NewEvents(), memstore.NewBets(), mem
		// o store em memória nasce vazio a cada processo
		storeID = "mem-" + uuid.NewString()
		accounts = wallet.Memory{Currency: mem}
	case "postgres":
		pg, err = db.ConnectPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		if err := db.Migrate(ctx, pg); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
		if storeID, err = db.InstanceID(ctx, pg); err != nil {
			log.Fatal("postgres instance id", zap.Error(err))
		}
		log.Info("postgres connected", zap.String("instance", storeID))

		w := wallet.NewPostgres(pg, ledger.Balance(cfg.ExistentialDeposit))
		// a carga inicial só cria contas que ainda não existem
		for who, amount := range genesis {
			if _, exists, err := w.Balance(ctx, ledger.AccountID(who)); err != nil {
				log.Fatal("genesis balance", zap.String("account", who), zap.Error(err))
			} else if exists {
				continue
			}
			if _, err := w.Deposit(ctx, ledger.AccountID(who), ledger.Balance(amount)); err != nil {
				log.Fatal("genesis deposit", zap.String("account", who), zap.Error(err))
			}
		}
		r := repo.NewPostgres(pg)
		events, bets, currency, accounts = r, r, w, w
	default:
		log.Fatal("unknown STORE_BACKEND", zap.String("store", cfg.StoreBackend))
	}

	// Sinks de notificação: métricas sempre, Redis e Kafka quando configurados
	sinks := notify.Multi{notify.NewCountingSink(reg)}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		log.Info("redis connected")

		hits := prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_outcome_cache_hits_total", Help: "leituras de outcome servidas pelo Redis"})
		misses := prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_outcome_cache_misses_total", Help: "leituras de outcome que foram ao store"})
		reg.MustRegister(hits, misses)
		oc, err := cache.NewOutcomeCache(events, rdb, storeID, cfg.OutcomeCacheTTL, log)
		if err != nil {
			log.Fatal("outcome cache", zap.Error(err))
		}
		oc.OnHit = hits.Inc
		oc.OnMiss = misses.Inc
		events = oc

		sinks = append(sinks, notify.NewRedisSink(rdb, cfg.RedisPubSubChannel, log))
	}

	var notifWriter, dlqWriter *kafka.Writer
	if cfg.KafkaBrokers != "" {
		notifWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicLedgerNotifications, true)
		defer notifWriter.Close()
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicLedgerCommandsDLQ, false)
		defer dlqWriter.Close()
		sinks = append(sinks, notify.NewKafkaSink(notifWriter, log))
		log.Info("kafka writers ready",
			zap.String("notifications", cfg.TopicLedgerNotifications),
			zap.String("dlq", cfg.TopicLedgerCommandsDLQ),
		)
	}

	if len(sinks) == 1 {
		sinks = append(sinks, notify.LogSink{Log: log}) // modo local
	}

	l, err := ledger.New(ctx, ledger.Config{
		MaxEventNameLength: cfg.MaxEventNameLength,
		EscrowAccountName:  cfg.EscrowAccount,
		ForceOrigin:        ledger.AccountID(cfg.ForceOrigin),
	}, ledger.Deps{
		Events:   events,
		Bets:     bets,
		Currency: currency,
		Sink:     sinks,
		Log:      log,
	})
	if err != nil {
		log.Fatal("ledger init", zap.Error(err))
	}
	log.Info("ledger ready", zap.String("escrow", string(l.Escrow())))

	// Sequenciador: única goroutine que aplica operações no ledger
	seq := sequencer.New(log)
	seq.OnApplied = lm.Observe
	var halted atomic.Bool
	seq.OnHalt = func(error) {
		halted.Store(true)
		lm.Halted.Set(1)
	}
	// o sequenciador só para depois do HTTP drenar as requisições em andamento
	seqCtx, seqCancel := context.WithCancel(context.Background())
	defer seqCancel()
	seqDone := make(chan error, 1)
	go func() { seqDone <- seq.Run(seqCtx) }()

	svc := service.New(l, seq)
	jwtAuth := auth.NewJWT(cfg.JWTSecret)

	// Consumer de comandos assinados
	if cfg.KafkaBrokers != "" {
		reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicLedgerCommands, cfg.ServiceName)
		defer reader.Close()

		consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_commands_consumed_total", Help: "comandos lidos do Kafka"})
		applied := prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_commands_applied_total", Help: "comandos aplicados com sucesso"})
		errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ledger_commands_errors_total", Help: "comandos rejeitados por estágio"}, []string{"stage"})
		reg.MustRegister(consumed, applied, errorsBy)

		proc := &consumer.Processor{
			Log:        log,
			Reader:     reader,
			DLQ:        dlqWriter,
			Ledger:     svc,
			Auth:       jwtAuth,
			OnConsumed: consumed.Inc,
			OnApplied:  applied.Inc,
			OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
		}
		go func() {
			if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("command consumer stopped", zap.Error(err))
			}
		}()
		log.Info("command consumer started", zap.String("topic", cfg.TopicLedgerCommands))
	}

	// metrics/health
	metricsSrv := metrics.NewMetricsServer(cfg.MetricsPort, reg, func(ctx context.Context) error {
		if halted.Load() {
			return sequencer.ErrHalted
		}
		if pg != nil {
			if err := pg.PingContext(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	})
	go func() {
		log.Info("metrics/health", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	// HTTP público
	api := lhttp.NewServer(log, svc, jwtAuth)
	api.Mount("/v1/accounts", wallet.NewServer(log, accounts, seq, ledger.AccountID(cfg.ForceOrigin), l.Escrow()).Router())
	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("ledger-service listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("api", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	seqCancel()

	select {
	case err := <-seqDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("sequencer stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		log.Warn("sequencer did not stop in time")
	}
}
