package notify

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/beton-ledger/internal/ledger"
)

// Multi repassa cada notificação para todos os sinks, na ordem
type Multi []ledger.Sink

func (m Multi) Deposit(ctx context.Context, subject ledger.EventName, n ledger.Notification) {
	for _, s := range m {
		s.Deposit(ctx, subject, n)
	}
}

// LogSink escreve as notificações no log (modo local, sem Kafka/Redis)
type LogSink struct {
	Log *zap.Logger
}

func (s LogSink) Deposit(_ context.Context, subject ledger.EventName, n ledger.Notification) {
	s.Log.Info("notification",
		zap.String("kind", n.Kind()),
		zap.String("event", string(subject)),
		zap.Any("payload", n),
	)
}

// CountingSink conta as notificações por tipo
type CountingSink struct {
	counter *prometheus.CounterVec
}

func NewCountingSink(reg prometheus.Registerer) *CountingSink {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_notifications_total",
		Help: "notificações emitidas por tipo",
	}, []string{"kind"})
	reg.MustRegister(c)
	return &CountingSink{counter: c}
}

func (s *CountingSink) Deposit(_ context.Context, _ ledger.EventName, n ledger.Notification) {
	s.counter.WithLabelValues(n.Kind()).Inc()
}
