// Package simulator gera rodadas de comandos assinados para o tópico ledger_commands.
// Cada rodada cria um evento, apostas dos apostadores, o resultado e as liquidações.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/beton-ledger/internal/ledger"
	"github.com/radieske/beton-ledger/pkg/contracts/commands"
)

// MessageWriter é o subconjunto de *kafka.Writer usado pelo simulador
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Issuer assina o token de cada comando (auth.JWT)
type Issuer interface {
	Issue(who ledger.AccountID, ttl time.Duration) (string, error)
}

type Simulator struct {
	Log      *zap.Logger
	Writer   MessageWriter
	Issuer   Issuer
	Oracle   ledger.AccountID   // registra eventos e resultados
	Bettors  []ledger.AccountID // uma aposta por apostador por rodada
	Teams    int                // times possíveis (1..Teams)
	MaxStake uint64
	Rand     *rand.Rand

	OnPublished func(kind string) // métricas

	runID string
}

// New cria o simulador com um prefixo de execução para não repetir nomes de evento
func New(log *zap.Logger, w MessageWriter, issuer Issuer, oracle ledger.AccountID, bettors []ledger.AccountID) *Simulator {
	return &Simulator{
		Log:      log,
		Writer:   w,
		Issuer:   issuer,
		Oracle:   oracle,
		Bettors:  bettors,
		Teams:    3,
		MaxStake: 50,
		Rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		runID:    uuid.NewString()[:8],
	}
}

// EventName é o nome do evento da rodada n
func (s *Simulator) EventName(n int) string {
	return fmt.Sprintf("sim-%s-%d", s.runID, n)
}

// Round publica todos os comandos da rodada n numa única escrita, com a mesma chave
// (mesma partição, mesma ordem de aplicação)
func (s *Simulator) Round(ctx context.Context, n int) error {
	event := s.EventName(n)
	cmds := []commands.LedgerCommand{{Type: commands.RegisterEvent, Event: event}}
	who := []ledger.AccountID{s.Oracle}

	for _, b := range s.Bettors {
		cmds = append(cmds, commands.LedgerCommand{
			Type:   commands.PlaceBet,
			Event:  event,
			Team:   uint8(1 + s.Rand.Intn(s.Teams)),
			Amount: 1 + uint64(s.Rand.Int63n(int64(s.MaxStake))),
		})
		who = append(who, b)
	}

	cmds = append(cmds, commands.LedgerCommand{
		Type:    commands.RecordOutcome,
		Event:   event,
		Outcome: uint8(1 + s.Rand.Intn(s.Teams)),
	})
	who = append(who, s.Oracle)

	for _, b := range s.Bettors {
		cmds = append(cmds, commands.LedgerCommand{Type: commands.ClaimReward, Event: event})
		who = append(who, b)
	}

	msgs := make([]kafka.Message, 0, len(cmds))
	for i := range cmds {
		token, err := s.Issuer.Issue(who[i], 10*time.Minute)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		cmds[i].ID = uuid.NewString()
		cmds[i].Token = token
		b, err := json.Marshal(cmds[i])
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{Key: []byte(event), Value: b, Time: time.Now()})
	}

	if err := s.Writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish round %d: %w", n, err)
	}
	if s.OnPublished != nil {
		for _, c := range cmds {
			s.OnPublished(c.Type)
		}
	}
	s.Log.Info("round published", zap.String("event", event), zap.Int("commands", len(msgs)))
	return nil
}

// Run publica uma rodada a cada intervalo até o contexto ser cancelado
func (s *Simulator) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for n := 1; ; n++ {
		if err := s.Round(ctx, n); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.Log.Warn("round failed", zap.Int("round", n), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
