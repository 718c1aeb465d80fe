package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Config é a superfície de configuração consumida pelo ledger
type Config struct {
	MaxEventNameLength int
	EscrowAccountName  string
	// ForceOrigin é a autoridade privilegiada; declarada, nenhuma operação a usa ainda
	ForceOrigin AccountID
}

// Deps são os colaboradores injetados no ledger
type Deps struct {
	Events   EventStore
	Bets     BetStore
	Currency Currency
	Sink     Sink
	Log      *zap.Logger
}

// Ledger agrupa o registro de eventos e o livro de apostas.
// Não faz locking: quem chama deve aplicar uma operação por vez.
type Ledger struct {
	cfg      Config
	registry *Registry
	bets     *Bets
}

// New resolve a conta escrow e monta os dois componentes
func New(ctx context.Context, cfg Config, deps Deps) (*Ledger, error) {
	if deps.Events == nil || deps.Bets == nil || deps.Currency == nil {
		return nil, errors.New("ledger: events, bets and currency are required")
	}
	if cfg.MaxEventNameLength <= 0 {
		return nil, fmt.Errorf("ledger: invalid max event name length %d", cfg.MaxEventNameLength)
	}
	escrow, err := deps.Currency.ResolveAccount(ctx, cfg.EscrowAccountName)
	if err != nil {
		return nil, fmt.Errorf("resolve escrow account %q: %w", cfg.EscrowAccountName, err)
	}

	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	reg := NewRegistry(deps.Events, deps.Sink, cfg.MaxEventNameLength, log.Named("registry"))
	bets := NewBets(deps.Bets, reg, deps.Currency, escrow, deps.Sink, cfg.MaxEventNameLength, log.Named("bets"))

	return &Ledger{cfg: cfg, registry: reg, bets: bets}, nil
}

func (l *Ledger) Config() Config      { return l.cfg }
func (l *Ledger) Escrow() AccountID   { return l.bets.Escrow() }
func (l *Ledger) Registry() *Registry { return l.registry }
func (l *Ledger) Bets() *Bets         { return l.bets }

func (l *Ledger) RegisterEvent(ctx context.Context, caller AccountID, name EventName) error {
	return l.registry.RegisterEvent(ctx, caller, name)
}

func (l *Ledger) RecordOutcome(ctx context.Context, caller AccountID, name EventName, outcome Outcome) error {
	return l.registry.RecordOutcome(ctx, caller, name, outcome)
}

func (l *Ledger) Query(ctx context.Context, name EventName) (Outcome, bool, error) {
	return l.registry.Query(ctx, name)
}

func (l *Ledger) PlaceBet(ctx context.Context, caller AccountID, name EventName, team Team, amount Balance) error {
	return l.bets.PlaceBet(ctx, caller, name, team, amount)
}

func (l *Ledger) ClaimReward(ctx context.Context, caller AccountID, name EventName) (Settlement, error) {
	return l.bets.ClaimReward(ctx, caller, name)
}

func (l *Ledger) RemoveBet(ctx context.Context, caller AccountID, name EventName) error {
	return l.bets.RemoveBet(ctx, caller, name)
}

func (l *Ledger) GetBet(ctx context.Context, caller AccountID, name EventName) (BetRecord, bool, error) {
	return l.bets.GetBet(ctx, caller, name)
}
