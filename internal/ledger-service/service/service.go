package service

import (
	"context"

	"github.com/radieske/beton-ledger/internal/ledger"
	"github.com/radieske/beton-ledger/internal/ledger-service/sequencer"
)

// Nomes das operações (labels de métricas e logs)
const (
	OpRegisterEvent = "register_event"
	OpRecordOutcome = "record_outcome"
	OpQuery         = "query_event"
	OpPlaceBet      = "place_bet"
	OpClaimReward   = "claim_reward"
	OpRemoveBet     = "remove_bet"
	OpGetBet        = "get_bet"
)

// Service aplica as operações do ledger através do sequenciador.
// Leituras também passam por ele para nunca observar uma operação pela metade.
// Em caso de erro os valores capturados pela closure não são lidos: com o
// contexto do chamador cancelado a operação ainda pode estar rodando.
type Service struct {
	ledger *ledger.Ledger
	seq    *sequencer.Sequencer
}

func New(l *ledger.Ledger, seq *sequencer.Sequencer) *Service {
	return &Service{ledger: l, seq: seq}
}

func (s *Service) Escrow() ledger.AccountID { return s.ledger.Escrow() }

func (s *Service) RegisterEvent(ctx context.Context, caller ledger.AccountID, name ledger.EventName) error {
	return s.seq.Submit(ctx, OpRegisterEvent, func(ctx context.Context) error {
		return s.ledger.RegisterEvent(ctx, caller, name)
	})
}

func (s *Service) RecordOutcome(ctx context.Context, caller ledger.AccountID, name ledger.EventName, outcome ledger.Outcome) error {
	return s.seq.Submit(ctx, OpRecordOutcome, func(ctx context.Context) error {
		return s.ledger.RecordOutcome(ctx, caller, name, outcome)
	})
}

func (s *Service) Query(ctx context.Context, name ledger.EventName) (ledger.Outcome, bool, error) {
	var (
		outcome ledger.Outcome
		found   bool
	)
	err := s.seq.Submit(ctx, OpQuery, func(ctx context.Context) error {
		var err error
		outcome, found, err = s.ledger.Query(ctx, name)
		return err
	})
	if err != nil {
		return ledger.Unresolved, false, err
	}
	return outcome, found, nil
}

func (s *Service) PlaceBet(ctx context.Context, caller ledger.AccountID, name ledger.EventName, team ledger.Team, amount ledger.Balance) error {
	return s.seq.Submit(ctx, OpPlaceBet, func(ctx context.Context) error {
		return s.ledger.PlaceBet(ctx, caller, name, team, amount)
	})
}

func (s *Service) ClaimReward(ctx context.Context, caller ledger.AccountID, name ledger.EventName) (ledger.Settlement, error) {
	var st ledger.Settlement
	err := s.seq.Submit(ctx, OpClaimReward, func(ctx context.Context) error {
		var err error
		st, err = s.ledger.ClaimReward(ctx, caller, name)
		return err
	})
	if err != nil {
		return ledger.Settlement{}, err
	}
	return st, nil
}

func (s *Service) RemoveBet(ctx context.Context, caller ledger.AccountID, name ledger.EventName) error {
	return s.seq.Submit(ctx, OpRemoveBet, func(ctx context.Context) error {
		return s.ledger.RemoveBet(ctx, caller, name)
	})
}

func (s *Service) GetBet(ctx context.Context, caller ledger.AccountID, name ledger.EventName) (ledger.BetRecord, bool, error) {
	var (
		bet   ledger.BetRecord
		found bool
	)
	err := s.seq.Submit(ctx, OpGetBet, func(ctx context.Context) error {
		var err error
		bet, found, err = s.ledger.GetBet(ctx, caller, name)
		return err
	})
	if err != nil {
		return ledger.BetRecord{}, false, err
	}
	return bet, found, nil
}
