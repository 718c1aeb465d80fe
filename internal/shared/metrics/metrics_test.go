package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/radieske/beton-ledger/internal/ledger"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)

	m.Observe("place_bet", time.Millisecond, nil)
	m.Observe("place_bet", time.Millisecond, ledger.ErrAlreadyBet)
	m.Observe("place_bet", time.Millisecond, errors.New("pg down"))

	if got := testutil.ToFloat64(m.Operations.WithLabelValues("place_bet", "ok")); got != 1 {
		t.Fatalf("expected 1 ok, got %v", got)
	}
	if got := testutil.ToFloat64(m.Operations.WithLabelValues("place_bet", "AlreadyBet")); got != 1 {
		t.Fatalf("expected 1 AlreadyBet, got %v", got)
	}
	if got := testutil.ToFloat64(m.Operations.WithLabelValues("place_bet", "error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
}

func TestHealthz(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := NewMetricsServer("0", reg, func(context.Context) error { return errors.New("pg") })

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pg") {
		t.Fatalf("expected failing dependency in body, got %q", rec.Body.String())
	}

	srv = NewMetricsServer("0", reg, nil)
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
