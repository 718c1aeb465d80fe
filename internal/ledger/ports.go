package ledger

import "context"

// EventStore persiste o mapa nome do evento -> outcome
type EventStore interface {
	GetOutcome(ctx context.Context, name EventName) (Outcome, bool, error)
	InsertEvent(ctx context.Context, name EventName) error
	SetOutcome(ctx context.Context, name EventName, outcome Outcome) error
}

// BetStore persiste o mapa (conta, evento) -> aposta
type BetStore interface {
	GetBet(ctx context.Context, who AccountID, name EventName) (BetRecord, bool, error)
	PutBet(ctx context.Context, who AccountID, name EventName, bet BetRecord) error
	// TakeBet lê e remove a aposta em uma única chamada
	TakeBet(ctx context.Context, who AccountID, name EventName) (BetRecord, bool, error)
}

// Currency é o motor de saldos externo. Transfer deve falhar sem efeito algum
// (ErrInsufficientFunds quando faltar saldo).
type Currency interface {
	Transfer(ctx context.Context, from, to AccountID, amount Balance, req ExistenceRequirement) error
	ResolveAccount(ctx context.Context, name string) (AccountID, error)
}

// Sink recebe as notificações de domínio; fire-and-forget
type Sink interface {
	Deposit(ctx context.Context, subject EventName, n Notification)
}

// SinkFunc adapta uma função ao Sink
type SinkFunc func(ctx context.Context, subject EventName, n Notification)

func (f SinkFunc) Deposit(ctx context.Context, subject EventName, n Notification) { f(ctx, subject, n) }

// DiscardSink descarta todas as notificações
var DiscardSink Sink = SinkFunc(func(context.Context, EventName, Notification) {})
