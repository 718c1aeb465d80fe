package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/radieske/beton-ledger/internal/ledger"
	"github.com/radieske/beton-ledger/internal/ledger-service/auth"
	"github.com/radieske/beton-ledger/internal/ledger-service/sequencer"
	"github.com/radieske/beton-ledger/internal/wallet/dto"
)

// Submitter entrega operações ao sequenciador do ledger
type Submitter interface {
	Submit(ctx context.Context, name string, op sequencer.Op) error
}

// Server expõe a consulta de saldo e o mint de contas.
// As rotas esperam o chamador já autenticado no contexto (auth.Middleware).
// Leituras e mint passam pelo sequenciador, na mesma fila das operações do ledger.
type Server struct {
	log         *zap.Logger
	accounts    Accounts
	seq         Submitter
	forceOrigin ledger.AccountID
	escrow      ledger.AccountID
	validate    *validator.Validate
}

// NewServer instancia o servidor de contas; forceOrigin é a única conta que pode fazer mint
// e escrow nunca recebe mint
func NewServer(log *zap.Logger, accounts Accounts, seq Submitter, forceOrigin, escrow ledger.AccountID) *Server {
	return &Server{
		log:         log,
		accounts:    accounts,
		seq:         seq,
		forceOrigin: forceOrigin,
		escrow:      escrow,
		validate:    validator.New(),
	}
}

// accountID decodifica o parâmetro uma única vez (ver RawPath)
func accountID(r *http.Request) (ledger.AccountID, error) {
	raw := chi.URLParam(r, "id")
	if r.URL.RawPath != "" {
		id, err := url.PathUnescape(raw)
		if err != nil {
			return "", err
		}
		raw = id
	}
	if raw == "" {
		return "", errors.New("empty account")
	}
	return ledger.AccountID(raw), nil
}

// Router retorna as rotas de conta, para montar em /v1/accounts
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/me", s.getMine)            // saldo do chamador
	r.Get("/{id}", s.getAccount)       // saldo de qualquer conta
	r.Post("/{id}/deposit", s.deposit) // mint (force origin)
	return r
}

func (s *Server) getMine(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFrom(r.Context())
	s.writeBalance(w, r, caller)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid account"})
		return
	}
	s.writeBalance(w, r, id)
}

func (s *Server) writeBalance(w http.ResponseWriter, r *http.Request, who ledger.AccountID) {
	var (
		bal    ledger.Balance
		exists bool
	)
	err := s.seq.Submit(r.Context(), "AccountBalance", func(ctx context.Context) error {
		var err error
		bal, exists, err = s.accounts.Balance(ctx, who)
		return err
	})
	if err != nil {
		s.log.Error("balance lookup failed", zap.String("account", string(who)), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dto.AccountResponse{Account: string(who), Balance: uint64(bal), Exists: exists})
}

// deposit credita saldo novo na conta; só a conta privilegiada pode chamar
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.CallerFrom(r.Context())
	if s.forceOrigin == "" || caller != s.forceOrigin {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "deposit requires the privileged account"})
		return
	}
	who, err := accountID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid account"})
		return
	}
	// o saldo do escrow só muda por apostas e prêmios
	if who == s.escrow {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "escrow account cannot be credited"})
		return
	}
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid payload: " + err.Error()})
		return
	}

	var bal ledger.Balance
	err = s.seq.Submit(r.Context(), "AccountDeposit", func(ctx context.Context) error {
		var err error
		bal, err = s.accounts.Deposit(ctx, who, ledger.Balance(req.Amount))
		return err
	})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ledger.ErrArithmeticOverflow), errors.Is(err, ErrExistentialDeposit):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, sequencer.ErrHalted), errors.Is(err, sequencer.ErrStopped):
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, dto.ErrorResponse{Error: err.Error()})
		return
	}
	s.log.Info("account credited",
		zap.String("who", string(caller)),
		zap.String("account", string(who)),
		zap.Uint64("amount", req.Amount),
	)
	writeJSON(w, http.StatusOK, dto.AccountResponse{Account: string(who), Balance: uint64(bal), Exists: true})
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
