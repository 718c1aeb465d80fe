package ledger

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// Bets mantém as apostas por (conta, evento) e liquida contra o Registry
type Bets struct {
	store    BetStore
	registry *Registry
	currency Currency
	escrow   AccountID
	sink     Sink
	maxLen   int
	log      *zap.Logger
}

// NewBets cria o livro de apostas; escrow é a conta que custodia as apostas
func NewBets(store BetStore, registry *Registry, currency Currency, escrow AccountID, sink Sink, maxLen int, log *zap.Logger) *Bets {
	if sink == nil {
		sink = DiscardSink
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bets{
		store:    store,
		registry: registry,
		currency: currency,
		escrow:   escrow,
		sink:     sink,
		maxLen:   maxLen,
		log:      log,
	}
}

// Escrow retorna a conta que custodia as apostas
func (b *Bets) Escrow() AccountID { return b.escrow }

// PlaceBet valida as pré-condições na ordem abaixo, transfere o valor para o
// escrow e só então grava a aposta.
func (b *Bets) PlaceBet(ctx context.Context, caller AccountID, name EventName, team Team, amount Balance) error {
	if err := ValidateName(name, b.maxLen); err != nil {
		return err
	}
	outcome, found, err := b.registry.Query(ctx, name)
	if err != nil {
		return err
	}
	if !found {
		return ErrEventDoesNotExist
	}
	if outcome.Resolved() {
		return ErrEventAlreadyEnded
	}
	if team == 0 {
		return ErrCanNotBetOnZero
	}
	_, exists, err := b.store.GetBet(ctx, caller, name)
	if err != nil {
		return fmt.Errorf("get bet: %w", err)
	}
	if exists {
		return ErrAlreadyBet
	}

	// 1) move o valor para o escrow; falha aqui não deixa nenhuma escrita
	if err := b.currency.Transfer(ctx, caller, b.escrow, amount, AllowDeath); err != nil {
		return fmt.Errorf("transfer stake: %w", err)
	}

	// 2) grava a aposta; a transferência já aconteceu
	if err := b.store.PutBet(ctx, caller, name, BetRecord{Team: team, Amount: amount}); err != nil {
		b.log.Error("bet write failed after transfer",
			zap.String("who", string(caller)),
			zap.String("event", string(name)),
			zap.Uint64("amount", uint64(amount)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: put bet: %v", ErrInvariantViolation, err)
	}

	b.log.Info("bet placed",
		zap.String("who", string(caller)),
		zap.String("event", string(name)),
		zap.Uint8("team", uint8(team)),
		zap.Uint64("amount", uint64(amount)),
	)
	b.sink.Deposit(ctx, name, BetPlaced{Who: caller, Amount: amount, Escrow: b.escrow})
	return nil
}

// Settlement é o resultado da liquidação de uma aposta
type Settlement struct {
	Won    bool
	Payout Balance
}

// ClaimReward liquida a aposta do chamador. Aposta perdida só é removida;
// aposta vencedora recebe o dobro do valor a partir do escrow.
func (b *Bets) ClaimReward(ctx context.Context, caller AccountID, name EventName) (Settlement, error) {
	if err := ValidateName(name, b.maxLen); err != nil {
		return Settlement{}, err
	}
	bet, exists, err := b.store.GetBet(ctx, caller, name)
	if err != nil {
		return Settlement{}, fmt.Errorf("get bet: %w", err)
	}
	if !exists {
		return Settlement{}, ErrDidNotBet
	}
	outcome, found, err := b.registry.Query(ctx, name)
	if err != nil {
		return Settlement{}, err
	}
	if !found {
		return Settlement{}, ErrEventDoesNotExist
	}
	if !outcome.Resolved() {
		return Settlement{}, ErrEventHasNotEndedYet
	}

	if Outcome(bet.Team) != outcome {
		if _, _, err := b.store.TakeBet(ctx, caller, name); err != nil {
			return Settlement{}, fmt.Errorf("take bet: %w", err)
		}
		b.log.Info("bet lost",
			zap.String("who", string(caller)),
			zap.String("event", string(name)),
			zap.Uint8("team", uint8(bet.Team)),
			zap.Uint8("outcome", uint8(outcome)),
		)
		b.sink.Deposit(ctx, name, BetLost{Who: caller})
		return Settlement{Won: false}, nil
	}

	if bet.Amount > math.MaxUint64/2 {
		return Settlement{}, ErrArithmeticOverflow
	}
	payout := bet.Amount * 2

	// escrow sem saldo suficiente propaga o erro da moeda e mantém a aposta
	if err := b.currency.Transfer(ctx, b.escrow, caller, payout, AllowDeath); err != nil {
		return Settlement{}, fmt.Errorf("transfer reward: %w", err)
	}

	if _, taken, err := b.store.TakeBet(ctx, caller, name); err != nil || !taken {
		b.log.Error("bet removal failed after payout",
			zap.String("who", string(caller)),
			zap.String("event", string(name)),
			zap.Uint64("amount", uint64(payout)),
			zap.Error(err),
		)
		return Settlement{}, fmt.Errorf("%w: take bet after payout: %v", ErrInvariantViolation, err)
	}

	b.log.Info("reward claimed",
		zap.String("who", string(caller)),
		zap.String("event", string(name)),
		zap.Uint64("amount", uint64(payout)),
	)
	b.sink.Deposit(ctx, name, RewardClaimed{Who: caller, Amount: payout})
	return Settlement{Won: true, Payout: payout}, nil
}

// RemoveBet apaga a aposta sem devolver o valor em custódia
func (b *Bets) RemoveBet(ctx context.Context, caller AccountID, name EventName) error {
	if err := ValidateName(name, b.maxLen); err != nil {
		return err
	}
	bet, taken, err := b.store.TakeBet(ctx, caller, name)
	if err != nil {
		return fmt.Errorf("take bet: %w", err)
	}
	if !taken {
		return ErrDidNotBet
	}

	b.log.Info("bet removed",
		zap.String("who", string(caller)),
		zap.String("event", string(name)),
		zap.Uint64("forfeited", uint64(bet.Amount)),
	)
	b.sink.Deposit(ctx, name, BetRemoved{Who: caller})
	return nil
}

// GetBet retorna a aposta do próprio chamador, se existir
func (b *Bets) GetBet(ctx context.Context, caller AccountID, name EventName) (BetRecord, bool, error) {
	if err := ValidateName(name, b.maxLen); err != nil {
		return BetRecord{}, false, err
	}
	bet, found, err := b.store.GetBet(ctx, caller, name)
	if err != nil {
		return BetRecord{}, false, fmt.Errorf("get bet: %w", err)
	}
	return bet, found, nil
}
