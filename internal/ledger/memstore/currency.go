package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/radieske/beton-ledger/internal/ledger"
)

// ErrExistentialDeposit indica que o destino não existe e o valor não cobre o depósito existencial
var ErrExistentialDeposit = errors.New("amount below existential deposit")

// Currency é um motor de saldos em memória com depósito existencial
type Currency struct {
	mu       sync.RWMutex
	balances map[ledger.AccountID]ledger.Balance
	ed       ledger.Balance
}

// NewCurrency cria a moeda; contas com saldo abaixo de ed deixam de existir
func NewCurrency(existentialDeposit ledger.Balance) *Currency {
	return &Currency{
		balances: make(map[ledger.AccountID]ledger.Balance),
		ed:       existentialDeposit,
	}
}

// Deposit credita saldo (mint) em uma conta, criando-a se preciso, e retorna o novo saldo.
// Conta nova precisa receber ao menos o depósito existencial.
func (c *Currency) Deposit(who ledger.AccountID, amount ledger.Balance) (ledger.Balance, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bal, exists := c.balances[who]
	if !exists && amount < c.ed {
		return 0, ErrExistentialDeposit
	}
	if bal+amount < bal {
		return bal, ledger.ErrArithmeticOverflow
	}
	c.balances[who] = bal + amount
	return bal + amount, nil
}

// Balance retorna o saldo atual (0 para conta inexistente)
func (c *Currency) Balance(who ledger.AccountID) ledger.Balance {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balances[who]
}

// Exists indica se a conta ainda existe
func (c *Currency) Exists(who ledger.AccountID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.balances[who]
	return ok
}

// ResolveAccount mapeia o nome de uma conta conhecida para seu id
func (c *Currency) ResolveAccount(_ context.Context, name string) (ledger.AccountID, error) {
	if name == "" {
		return "", errors.New("empty account name")
	}
	return ledger.AccountID(name), nil
}

// Transfer move amount de from para to. Valor zero ou from == to não fazem nada.
func (c *Currency) Transfer(_ context.Context, from, to ledger.AccountID, amount ledger.Balance, req ledger.ExistenceRequirement) error {
	if amount == 0 || from == to {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	bal, ok := c.balances[from]
	if !ok || bal < amount {
		return ledger.ErrInsufficientFunds
	}
	remaining := bal - amount
	if remaining < c.ed && req == ledger.KeepAlive {
		return ledger.ErrInsufficientFunds
	}

	dest, destExists := c.balances[to]
	if !destExists && amount < c.ed {
		return ErrExistentialDeposit
	}
	if dest+amount < dest {
		return ledger.ErrArithmeticOverflow
	}

	if remaining < c.ed {
		// conta removida; o resto abaixo do depósito existencial é descartado
		delete(c.balances, from)
	} else {
		c.balances[from] = remaining
	}
	c.balances[to] = dest + amount
	return nil
}
