package wallet

import (
	"context"

	"github.com/radieske/beton-ledger/internal/ledger"
	"github.com/radieske/beton-ledger/internal/ledger/memstore"
)

// Accounts são as operações de conta expostas fora do ledger (consulta e mint)
type Accounts interface {
	Balance(ctx context.Context, who ledger.AccountID) (ledger.Balance, bool, error)
	Deposit(ctx context.Context, who ledger.AccountID, amount ledger.Balance) (ledger.Balance, error)
}

// Memory adapta memstore.Currency à interface Accounts
type Memory struct{ Currency *memstore.Currency }

func (m Memory) Balance(_ context.Context, who ledger.AccountID) (ledger.Balance, bool, error) {
	return m.Currency.Balance(who), m.Currency.Exists(who), nil
}

func (m Memory) Deposit(_ context.Context, who ledger.AccountID, amount ledger.Balance) (ledger.Balance, error) {
	return m.Currency.Deposit(who, amount)
}
