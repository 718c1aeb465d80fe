package repo

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/lib/pq"

	"github.com/radieske/beton-ledger/internal/ledger"
)

// código de erro do Postgres para unique_violation
const uniqueViolation = "23505"

// Postgres implementa ledger.EventStore e ledger.BetStore
type Postgres struct{ db *sql.DB }

// NewPostgres retorna o repositório de eventos e apostas
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// GetOutcome retorna o outcome do evento e se ele existe
func (p *Postgres) GetOutcome(ctx context.Context, name ledger.EventName) (ledger.Outcome, bool, error) {
	var o int16
	err := p.db.QueryRowContext(ctx, `SELECT outcome FROM ledger_events WHERE name=$1`, []byte(name)).Scan(&o)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Unresolved, false, nil
	}
	if err != nil {
		return ledger.Unresolved, false, err
	}
	return ledger.Outcome(o), true, nil
}

// InsertEvent cria o evento com outcome 0
func (p *Postgres) InsertEvent(ctx context.Context, name ledger.EventName) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO ledger_events(name, outcome) VALUES($1, 0)`, []byte(name))
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ledger.ErrEventAlreadyExists
	}
	return err
}

// SetOutcome sobrescreve o outcome do evento
func (p *Postgres) SetOutcome(ctx context.Context, name ledger.EventName, outcome ledger.Outcome) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE ledger_events SET outcome=$1, updated_at=NOW() WHERE name=$2`, int16(outcome), []byte(name))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrEventDoesNotExist
	}
	return nil
}

// GetBet retorna a aposta da conta no evento
func (p *Postgres) GetBet(ctx context.Context, who ledger.AccountID, name ledger.EventName) (ledger.BetRecord, bool, error) {
	var team int16
	var amount int64
	err := p.db.QueryRowContext(ctx,
		`SELECT team, amount FROM ledger_bets WHERE account_id=$1 AND event_name=$2`,
		string(who), []byte(name)).Scan(&team, &amount)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.BetRecord{}, false, nil
	}
	if err != nil {
		return ledger.BetRecord{}, false, err
	}
	return ledger.BetRecord{Team: ledger.Team(team), Amount: ledger.Balance(amount)}, true, nil
}

// PutBet grava a aposta; a chave (conta, evento) é única
func (p *Postgres) PutBet(ctx context.Context, who ledger.AccountID, name ledger.EventName, bet ledger.BetRecord) error {
	if bet.Amount > math.MaxInt64 {
		return ledger.ErrArithmeticOverflow
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO ledger_bets(account_id, event_name, team, amount)
		VALUES($1,$2,$3,$4)`,
		string(who), []byte(name), int16(bet.Team), int64(bet.Amount))
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ledger.ErrAlreadyBet
	}
	return err
}

// TakeBet remove a aposta e devolve o registro removido em um único comando
func (p *Postgres) TakeBet(ctx context.Context, who ledger.AccountID, name ledger.EventName) (ledger.BetRecord, bool, error) {
	var team int16
	var amount int64
	err := p.db.QueryRowContext(ctx,
		`DELETE FROM ledger_bets WHERE account_id=$1 AND event_name=$2 RETURNING team, amount`,
		string(who), []byte(name)).Scan(&team, &amount)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.BetRecord{}, false, nil
	}
	if err != nil {
		return ledger.BetRecord{}, false, err
	}
	return ledger.BetRecord{Team: ledger.Team(team), Amount: ledger.Balance(amount)}, true, nil
}
