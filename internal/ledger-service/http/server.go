package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/radieske/beton-ledger/internal/ledger"
	"github.com/radieske/beton-ledger/internal/ledger-service/auth"
	"github.com/radieske/beton-ledger/internal/ledger-service/dto"
	"github.com/radieske/beton-ledger/internal/ledger-service/sequencer"
)

// Ledger define as operações usadas pelos handlers HTTP
type Ledger interface {
	Escrow() ledger.AccountID
	RegisterEvent(ctx context.Context, caller ledger.AccountID, name ledger.EventName) error
	RecordOutcome(ctx context.Context, caller ledger.AccountID, name ledger.EventName, outcome ledger.Outcome) error
	Query(ctx context.Context, name ledger.EventName) (ledger.Outcome, bool, error)
	PlaceBet(ctx context.Context, caller ledger.AccountID, name ledger.EventName, team ledger.Team, amount ledger.Balance) error
	ClaimReward(ctx context.Context, caller ledger.AccountID, name ledger.EventName) (ledger.Settlement, error)
	RemoveBet(ctx context.Context, caller ledger.AccountID, name ledger.EventName) error
	GetBet(ctx context.Context, caller ledger.AccountID, name ledger.EventName) (ledger.BetRecord, bool, error)
}

// Server expõe a API REST do ledger
type Server struct {
	log      *zap.Logger
	ledger   Ledger
	auth     auth.Authenticator
	validate *validator.Validate
	mounts   []mount
}

type mount struct {
	pattern string
	handler http.Handler
}

// NewServer instancia o servidor HTTP do ledger
func NewServer(log *zap.Logger, l Ledger, a auth.Authenticator) *Server {
	return &Server{log: log, ledger: l, auth: a, validate: validator.New()}
}

// Mount adiciona um sub-roteador autenticado (ex.: /v1/accounts)
func (s *Server) Mount(pattern string, h http.Handler) {
	s.mounts = append(s.mounts, mount{pattern: pattern, handler: h})
}

// Router retorna o roteador HTTP com as rotas do ledger
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/v1/events/{name}", s.getEvent) // consulta pública

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.auth))
		r.Post("/v1/events", s.registerEvent)                    // cria evento
		r.Put("/v1/events/{name}/outcome", s.recordOutcome)      // registra resultado
		r.Post("/v1/events/{name}/bets", s.placeBet)             // aposta
		r.Get("/v1/events/{name}/bets/me", s.getBet)             // aposta do chamador
		r.Post("/v1/events/{name}/bets/me/claim", s.claimReward) // liquida
		r.Delete("/v1/events/{name}/bets/me", s.removeBet)       // remove sem reembolso
		for _, m := range s.mounts {
			r.Mount(m.pattern, m.handler)
		}
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// eventName decodifica o {name} da rota
// eventName decodifica o parâmetro uma única vez: o chi só entrega o segmento
// ainda escapado quando a URL tem RawPath (ex.: nomes com %2F)
func eventName(r *http.Request) (ledger.EventName, error) {
	raw := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return ledger.EventName(raw), nil
	}
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", err
	}
	return ledger.EventName(name), nil
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	name, err := eventName(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid event name"})
		return
	}
	outcome, found, err := s.ledger.Query(r.Context(), name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		s.writeError(w, ledger.ErrEventDoesNotExist)
		return
	}
	writeJSON(w, http.StatusOK, dto.EventResponse{Name: string(name), Outcome: uint8(outcome), Resolved: outcome.Resolved()})
}

func (s *Server) registerEvent(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFrom(r.Context())
	var req dto.RegisterEventRequest
	if !s.decode(w, r, &req) {
		return
	}
	name := ledger.EventName(req.Name)
	if err := s.ledger.RegisterEvent(r.Context(), caller, name); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.EventResponse{Name: req.Name, Outcome: 0, Resolved: false})
}

func (s *Server) recordOutcome(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFrom(r.Context())
	name, err := eventName(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid event name"})
		return
	}
	var req dto.RecordOutcomeRequest
	if !s.decode(w, r, &req) {
		return
	}
	outcome := ledger.Outcome(*req.Outcome)
	if err := s.ledger.RecordOutcome(r.Context(), caller, name, outcome); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.EventResponse{Name: string(name), Outcome: uint8(outcome), Resolved: outcome.Resolved()})
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFrom(r.Context())
	name, err := eventName(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid event name"})
		return
	}
	var req dto.PlaceBetRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.ledger.PlaceBet(r.Context(), caller, name, ledger.Team(req.Team), ledger.Balance(req.Amount)); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{
		Event:  string(name),
		Team:   req.Team,
		Amount: req.Amount,
		Escrow: string(s.ledger.Escrow()),
	})
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFrom(r.Context())
	name, err := eventName(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid event name"})
		return
	}
	bet, found, err := s.ledger.GetBet(r.Context(), caller, name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		s.writeError(w, ledger.ErrDidNotBet)
		return
	}
	writeJSON(w, http.StatusOK, dto.BetResponse{Event: string(name), Team: uint8(bet.Team), Amount: uint64(bet.Amount)})
}

func (s *Server) claimReward(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFrom(r.Context())
	name, err := eventName(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid event name"})
		return
	}
	st, err := s.ledger.ClaimReward(r.Context(), caller, name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := "LOST"
	if st.Won {
		status = "WON"
	}
	writeJSON(w, http.StatusOK, dto.ClaimRewardResponse{Event: string(name), Status: status, Payout: uint64(st.Payout)})
}

func (s *Server) removeBet(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFrom(r.Context())
	name, err := eventName(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid event name"})
		return
	}
	if err := s.ledger.RemoveBet(r.Context(), caller, name); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.StatusResponse{Status: "REMOVED"})
}

// decode lê e valida o corpo JSON; retorna false se já respondeu com erro
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid payload: " + err.Error()})
		return false
	}
	return true
}

// writeError traduz os erros do ledger em status HTTP
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("ledger operation failed", zap.Error(err))
	}
	writeJSON(w, status, dto.ErrorResponse{Error: err.Error(), Code: ledger.Code(err)})
}

// StatusFor mapeia um erro do ledger para o status HTTP
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrEventDoesNotExist), errors.Is(err, ledger.ErrDidNotBet):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrEventAlreadyExists),
		errors.Is(err, ledger.ErrAlreadyBet),
		errors.Is(err, ledger.ErrEventAlreadyEnded),
		errors.Is(err, ledger.ErrEventHasNotEndedYet),
		errors.Is(err, ledger.ErrAlreadyClaimedReward):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrCanNotBetOnZero),
		errors.Is(err, ledger.ErrTooLongName),
		errors.Is(err, ledger.ErrArithmeticOverflow):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrNotEnoughFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, sequencer.ErrHalted), errors.Is(err, sequencer.ErrStopped), errors.Is(err, ledger.ErrInvariantViolation):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
