package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/radieske/beton-ledger/internal/ledger"
	"github.com/radieske/beton-ledger/internal/ledger/memstore"
)

// ErrExistentialDeposit indica que o destino não existe e o valor não cobre o depósito existencial.
// É o mesmo erro da moeda em memória.
var ErrExistentialDeposit = memstore.ErrExistentialDeposit

// Postgres implementa ledger.Currency sobre a tabela accounts.
// Toda transferência fica registrada em account_transfers.
type Postgres struct {
	db *sql.DB
	ed ledger.Balance
}

func NewPostgres(db *sql.DB, existentialDeposit ledger.Balance) *Postgres {
	return &Postgres{db: db, ed: existentialDeposit}
}

// ResolveAccount mapeia o nome da conta para o id usado na tabela accounts
func (p *Postgres) ResolveAccount(_ context.Context, name string) (ledger.AccountID, error) {
	if name == "" {
		return "", errors.New("empty account name")
	}
	return ledger.AccountID(name), nil
}

// Balance retorna o saldo atual e se a conta existe
func (p *Postgres) Balance(ctx context.Context, who ledger.AccountID) (ledger.Balance, bool, error) {
	var bal int64
	err := p.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id=$1`, string(who)).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return ledger.Balance(bal), true, nil
}

// Deposit credita saldo (mint) criando a conta se não existir; usado para a carga inicial
func (p *Postgres) Deposit(ctx context.Context, who ledger.AccountID, amount ledger.Balance) (ledger.Balance, error) {
	if amount > math.MaxInt64 {
		return 0, ledger.ErrArithmeticOverflow
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	balances, err := lockAccounts(ctx, tx, who)
	if err != nil {
		return 0, err
	}
	bal, exists := balances[who]
	if !exists && amount < p.ed {
		return 0, ErrExistentialDeposit
	}
	if bal+amount > math.MaxInt64 {
		return 0, ledger.ErrArithmeticOverflow
	}

	var newBalance int64
	if err = tx.QueryRowContext(ctx, `
		INSERT INTO accounts(id, balance, version) VALUES($1,$2,1)
		ON CONFLICT (id) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance, version = accounts.version + 1
		RETURNING balance`, string(who), int64(amount)).Scan(&newBalance); err != nil {
		return 0, fmt.Errorf("credit account: %w", err)
	}

	if err = p.journal(ctx, tx, "mint", who, amount, "deposit", false); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return ledger.Balance(newBalance), nil
}

// Transfer move amount de from para to em uma transação com lock pessimista nas duas contas.
// Valor zero ou from == to não fazem nada.
func (p *Postgres) Transfer(ctx context.Context, from, to ledger.AccountID, amount ledger.Balance, req ledger.ExistenceRequirement) error {
	if amount == 0 || from == to {
		return nil
	}
	if amount > math.MaxInt64 {
		return ledger.ErrArithmeticOverflow
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	balances, err := lockAccounts(ctx, tx, from, to)
	if err != nil {
		return err
	}

	bal, ok := balances[from]
	if !ok || bal < amount {
		return ledger.ErrInsufficientFunds
	}
	remaining := bal - amount
	if remaining < p.ed && req == ledger.KeepAlive {
		return ledger.ErrInsufficientFunds
	}

	dest, destExists := balances[to]
	if !destExists && amount < p.ed {
		return ErrExistentialDeposit
	}
	if dest+amount > math.MaxInt64 {
		return ledger.ErrArithmeticOverflow
	}

	reaped := remaining < p.ed
	if reaped {
		// conta removida; o resto abaixo do depósito existencial é descartado
		if _, err = tx.ExecContext(ctx, `DELETE FROM accounts WHERE id=$1`, string(from)); err != nil {
			return fmt.Errorf("reap account: %w", err)
		}
	} else if _, err = tx.ExecContext(ctx,
		`UPDATE accounts SET balance = $1, version = version + 1 WHERE id=$2`, int64(remaining), string(from)); err != nil {
		return fmt.Errorf("debit account: %w", err)
	}

	if destExists {
		_, err = tx.ExecContext(ctx, `UPDATE accounts SET balance = balance + $1, version = version + 1 WHERE id=$2`, int64(amount), string(to))
	} else {
		_, err = tx.ExecContext(ctx, `INSERT INTO accounts(id, balance, version) VALUES($1,$2,1)`, string(to), int64(amount))
	}
	if err != nil {
		return fmt.Errorf("credit account: %w", err)
	}

	if err = p.journal(ctx, tx, string(from), to, amount, req.String(), reaped); err != nil {
		return err
	}
	return tx.Commit()
}

// lockAccounts trava as linhas em ordem de id para evitar deadlock entre transferências cruzadas
func lockAccounts(ctx context.Context, tx *sql.Tx, ids ...ledger.AccountID) (map[ledger.AccountID]ledger.Balance, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = string(id)
	}
	sort.Strings(keys)

	rows, err := tx.QueryContext(ctx,
		`SELECT id, balance FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("lock accounts: %w", err)
	}
	defer rows.Close()

	out := make(map[ledger.AccountID]ledger.Balance, len(ids))
	for rows.Next() {
		var id string
		var bal int64
		if err := rows.Scan(&id, &bal); err != nil {
			return nil, err
		}
		out[ledger.AccountID(id)] = ledger.Balance(bal)
	}
	return out, rows.Err()
}

func (p *Postgres) journal(ctx context.Context, tx *sql.Tx, from string, to ledger.AccountID, amount ledger.Balance, requirement string, reaped bool) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO account_transfers(id, from_account, to_account, amount, requirement, reaped)
		VALUES($1,$2,$3,$4,$5,$6)`,
		uuid.New().String(), from, string(to), int64(amount), requirement, reaped); err != nil {
		return fmt.Errorf("journal transfer: %w", err)
	}
	return nil
}
