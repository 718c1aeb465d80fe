package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Registry é a fonte de verdade sobre eventos e seus resultados
type Registry struct {
	store  EventStore
	sink   Sink
	maxLen int
	log    *zap.Logger
}

// NewRegistry cria o registro de eventos sobre o store informado
func NewRegistry(store EventStore, sink Sink, maxLen int, log *zap.Logger) *Registry {
	if sink == nil {
		sink = DiscardSink
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{store: store, sink: sink, maxLen: maxLen, log: log}
}

// RegisterEvent cria o evento com outcome 0
func (r *Registry) RegisterEvent(ctx context.Context, caller AccountID, name EventName) error {
	if err := ValidateName(name, r.maxLen); err != nil {
		return err
	}
	_, found, err := r.store.GetOutcome(ctx, name)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	if found {
		return ErrEventAlreadyExists
	}

	if err := r.store.InsertEvent(ctx, name); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	r.log.Info("event registered", zap.String("who", string(caller)), zap.String("event", string(name)))
	r.sink.Deposit(ctx, name, EventInitialized{Who: caller, Event: name})
	return nil
}

// RecordOutcome sobrescreve o resultado do evento. Não há trava contra
// re-resolução: chamadas repetidas substituem o outcome anterior.
func (r *Registry) RecordOutcome(ctx context.Context, caller AccountID, name EventName, outcome Outcome) error {
	if err := ValidateName(name, r.maxLen); err != nil {
		return err
	}
	prev, found, err := r.store.GetOutcome(ctx, name)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	if !found {
		return ErrEventDoesNotExist
	}

	if err := r.store.SetOutcome(ctx, name, outcome); err != nil {
		return fmt.Errorf("set outcome: %w", err)
	}

	fields := []zap.Field{
		zap.String("who", string(caller)),
		zap.String("event", string(name)),
		zap.Uint8("outcome", uint8(outcome)),
	}
	if prev.Resolved() {
		r.log.Warn("outcome overwritten", append(fields, zap.Uint8("previous", uint8(prev)))...)
	} else {
		r.log.Info("outcome recorded", fields...)
	}
	r.sink.Deposit(ctx, name, OutcomeRecorded{Event: name, Outcome: outcome})
	return nil
}

// Query retorna o outcome atual e se o evento existe
func (r *Registry) Query(ctx context.Context, name EventName) (Outcome, bool, error) {
	if err := ValidateName(name, r.maxLen); err != nil {
		return Unresolved, false, err
	}
	o, found, err := r.store.GetOutcome(ctx, name)
	if err != nil {
		return Unresolved, false, fmt.Errorf("get event: %w", err)
	}
	return o, found, nil
}
