package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/beton-ledger/internal/ledger"
)

// Publisher é o subconjunto do *redis.Client usado pelo sink
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink faz broadcast das notificações no canal Pub/Sub lido pelo notification-gateway
type RedisSink struct {
	Client  Publisher
	Channel string
	Log     *zap.Logger
	Now     func() time.Time
}

func NewRedisSink(c Publisher, channel string, log *zap.Logger) *RedisSink {
	return &RedisSink{Client: c, Channel: channel, Log: log, Now: time.Now}
}

func (s *RedisSink) Deposit(ctx context.Context, subject ledger.EventName, n ledger.Notification) {
	env, err := Envelope(subject, n, s.Now())
	if err != nil {
		s.Log.Warn("encode notification", zap.String("kind", n.Kind()), zap.Error(err))
		return
	}
	b, _ := json.Marshal(env)

	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := s.Client.Publish(ctx, s.Channel, b).Err(); err != nil {
		s.Log.Warn("redis broadcast publish failed", zap.String("kind", env.Kind), zap.Error(err))
	}
}
