package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/radieske/beton-ledger/internal/ledger"
)

// LedgerMetrics agrupa os coletores das operações do ledger
type LedgerMetrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Halted     prometheus.Gauge
}

func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	m := &LedgerMetrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "operações aplicadas por tipo e resultado",
		}, []string{"op", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_operation_duration_seconds",
			Help:    "tempo de aplicação de cada operação",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		Halted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_sequencer_halted",
			Help: "1 quando o sequenciador parou por violação de invariante",
		}),
	}
	reg.MustRegister(m.Operations, m.Duration, m.Halted)
	return m
}

// Observe registra o resultado de uma operação: "ok", o código do erro do ledger ou "error"
func (m *LedgerMetrics) Observe(op string, took time.Duration, err error) {
	m.Operations.WithLabelValues(op, Result(err)).Inc()
	m.Duration.WithLabelValues(op).Observe(took.Seconds())
}

func Result(err error) string {
	if err == nil {
		return "ok"
	}
	if code := ledger.Code(err); code != "" {
		return code
	}
	return "error"
}
