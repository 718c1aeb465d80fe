package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/beton-ledger/internal/ledger"
)

// MessageWriter é o subconjunto do *kafka.Writer usado pelo sink
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink publica as notificações no tópico ledger_notifications.
// A chave é o nome do evento, mantendo a ordem por evento na partição.
type KafkaSink struct {
	Writer MessageWriter
	Log    *zap.Logger
	Now    func() time.Time
}

func NewKafkaSink(w MessageWriter, log *zap.Logger) *KafkaSink {
	return &KafkaSink{Writer: w, Log: log, Now: time.Now}
}

func (s *KafkaSink) Deposit(ctx context.Context, subject ledger.EventName, n ledger.Notification) {
	env, err := Envelope(subject, n, s.Now())
	if err != nil {
		s.Log.Warn("encode notification", zap.String("kind", n.Kind()), zap.Error(err))
		return
	}
	b, _ := json.Marshal(env)
	msg := kafka.Message{Key: []byte(subject), Value: b, Time: s.Now()}
	if err := s.Writer.WriteMessages(ctx, msg); err != nil {
		s.Log.Warn("kafka publish notification failed",
			zap.String("kind", env.Kind),
			zap.String("id", env.ID),
			zap.Error(err),
		)
	}
}
