package apigateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Targets são os serviços atrás do gateway
type Targets struct {
	Ledger  string // ledger-service (REST)
	Gateway string // notification-gateway (WebSocket)
}

func rp(to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid target %q", to)
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

// NewRouter monta o roteamento público:
// /api/ledger/* -> ledger-service, /api/ws -> notification-gateway (/ws)
func NewRouter(log *zap.Logger, t Targets) (http.Handler, error) {
	ledgerProxy, err := rp(t.Ledger)
	if err != nil {
		return nil, fmt.Errorf("ledger target: %w", err)
	}
	wsProxy, err := rp(t.Gateway)
	if err != nil {
		return nil, fmt.Errorf("gateway target: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, req)
			log.Debug("proxied",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
			)
		})
	})

	r.Handle("/api/ledger/*", http.StripPrefix("/api/ledger", ledgerProxy))
	// upgrade de WebSocket passa direto pelo ReverseProxy
	r.Handle("/api/ws", http.StripPrefix("/api", wsProxy))
	return r, nil
}
