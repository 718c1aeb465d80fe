package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/beton-ledger/internal/ledger"
	"github.com/radieske/beton-ledger/internal/ledger-service/auth"
	"github.com/radieske/beton-ledger/internal/ledger-service/sequencer"
	"github.com/radieske/beton-ledger/pkg/contracts/commands"
)

// MessageReader é o subconjunto de *kafka.Reader usado pelo consumer
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// MessageWriter é o subconjunto de *kafka.Writer usado para a DLQ
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Ledger são as operações que um comando pode disparar
type Ledger interface {
	RegisterEvent(ctx context.Context, caller ledger.AccountID, name ledger.EventName) error
	RecordOutcome(ctx context.Context, caller ledger.AccountID, name ledger.EventName, outcome ledger.Outcome) error
	PlaceBet(ctx context.Context, caller ledger.AccountID, name ledger.EventName, team ledger.Team, amount ledger.Balance) error
	ClaimReward(ctx context.Context, caller ledger.AccountID, name ledger.EventName) (ledger.Settlement, error)
	RemoveBet(ctx context.Context, caller ledger.AccountID, name ledger.EventName) error
}

// Processor consome comandos do tópico ledger_commands e os aplica no ledger.
// Comandos rejeitados vão para a DLQ com o motivo nos headers.
type Processor struct {
	Log    *zap.Logger
	Reader MessageReader
	DLQ    MessageWriter // opcional
	Ledger Ledger
	Auth   auth.Authenticator

	OnConsumed func()       // métricas (counter++)
	OnApplied  func()       // métricas
	OnError    func(string) // métricas por fase

	validate *validator.Validate
}

// Run inicia o loop de consumo até o contexto ser cancelado ou o sequencer parar
func (p *Processor) Run(ctx context.Context) error {
	if p.validate == nil {
		p.validate = validator.New()
	}
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		if err := p.handle(ctx, m); err != nil {
			if errors.Is(err, sequencer.ErrStopped) {
				return err
			}
		}
	}
}

func (p *Processor) handle(ctx context.Context, m kafka.Message) error {
	var cmd commands.LedgerCommand
	if err := json.Unmarshal(m.Value, &cmd); err != nil {
		p.Log.Warn("invalid command", zap.Error(err))
		p.fail("decode")
		p.deadLetter(ctx, m, "decode", err)
		return err
	}
	if err := p.validate.Struct(cmd); err != nil {
		p.Log.Warn("command validation failed", zap.String("id", cmd.ID), zap.Error(err))
		p.fail("validate")
		p.deadLetter(ctx, m, "validate", err)
		return err
	}
	caller, err := p.Auth.Authenticate(cmd.Token)
	if err != nil {
		p.Log.Warn("command unauthenticated", zap.String("id", cmd.ID), zap.Error(err))
		p.fail("auth")
		p.deadLetter(ctx, m, "auth", err)
		return err
	}

	if err := p.apply(ctx, caller, cmd); err != nil {
		p.Log.Info("command rejected",
			zap.String("id", cmd.ID),
			zap.String("type", cmd.Type),
			zap.String("who", string(caller)),
			zap.String("event", cmd.Event),
			zap.String("code", ledger.Code(err)),
			zap.Error(err),
		)
		p.fail("apply")
		p.deadLetter(ctx, m, "apply", err)
		return err
	}

	p.Log.Debug("command applied", zap.String("id", cmd.ID), zap.String("type", cmd.Type))
	if p.OnApplied != nil {
		p.OnApplied()
	}
	return nil
}

func (p *Processor) apply(ctx context.Context, caller ledger.AccountID, cmd commands.LedgerCommand) error {
	name := ledger.EventName(cmd.Event)
	switch cmd.Type {
	case commands.RegisterEvent:
		return p.Ledger.RegisterEvent(ctx, caller, name)
	case commands.RecordOutcome:
		return p.Ledger.RecordOutcome(ctx, caller, name, ledger.Outcome(cmd.Outcome))
	case commands.PlaceBet:
		return p.Ledger.PlaceBet(ctx, caller, name, ledger.Team(cmd.Team), ledger.Balance(cmd.Amount))
	case commands.ClaimReward:
		_, err := p.Ledger.ClaimReward(ctx, caller, name)
		return err
	case commands.RemoveBet:
		return p.Ledger.RemoveBet(ctx, caller, name)
	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
}

// deadLetter reenvia a mensagem original para a DLQ; falha aqui só é logada
func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, stage string, cause error) {
	if p.DLQ == nil {
		return
	}
	msg := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: []kafka.Header{
			{Key: "stage", Value: []byte(stage)},
			{Key: "error", Value: []byte(cause.Error())},
			{Key: "code", Value: []byte(ledger.Code(cause))},
		},
		Time: time.Now(),
	}
	if err := p.DLQ.WriteMessages(ctx, msg); err != nil {
		p.Log.Warn("dlq write failed", zap.Error(err))
		p.fail("dlq")
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
