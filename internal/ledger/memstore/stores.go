// Package memstore implementa os stores e a moeda do ledger em memória.
// Usado no modo local (STORE_BACKEND=memory) e nos testes.
package memstore

import (
	"context"
	"sync"

	"github.com/radieske/beton-ledger/internal/ledger"
)

// Events guarda nome do evento -> outcome
type Events struct {
	mu sync.RWMutex
	m  map[ledger.EventName]ledger.Outcome
}

func NewEvents() *Events {
	return &Events{m: make(map[ledger.EventName]ledger.Outcome)}
}

func (e *Events) GetOutcome(_ context.Context, name ledger.EventName) (ledger.Outcome, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	o, ok := e.m[name]
	return o, ok, nil
}

func (e *Events) InsertEvent(_ context.Context, name ledger.EventName) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.m[name]; ok {
		return ledger.ErrEventAlreadyExists
	}
	e.m[name] = ledger.Unresolved
	return nil
}

func (e *Events) SetOutcome(_ context.Context, name ledger.EventName, outcome ledger.Outcome) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.m[name]; !ok {
		return ledger.ErrEventDoesNotExist
	}
	e.m[name] = outcome
	return nil
}

// Len retorna quantos eventos estão registrados
func (e *Events) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.m)
}

type betKey struct {
	who  ledger.AccountID
	name ledger.EventName
}

// Bets guarda (conta, evento) -> aposta
type Bets struct {
	mu sync.RWMutex
	m  map[betKey]ledger.BetRecord
}

func NewBets() *Bets {
	return &Bets{m: make(map[betKey]ledger.BetRecord)}
}

func (b *Bets) GetBet(_ context.Context, who ledger.AccountID, name ledger.EventName) (ledger.BetRecord, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bet, ok := b.m[betKey{who, name}]
	return bet, ok, nil
}

func (b *Bets) PutBet(_ context.Context, who ledger.AccountID, name ledger.EventName, bet ledger.BetRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[betKey{who, name}] = bet
	return nil
}

func (b *Bets) TakeBet(_ context.Context, who ledger.AccountID, name ledger.EventName) (ledger.BetRecord, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := betKey{who, name}
	bet, ok := b.m[k]
	if ok {
		delete(b.m, k)
	}
	return bet, ok, nil
}

// Len retorna quantas apostas estão em aberto
func (b *Bets) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.m)
}
