package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/beton-ledger/pkg/contracts/events"
)

// Dispatch decodifica uma mensagem do canal Pub/Sub e repassa ao hub
func (h *Hub) Dispatch(payload string) error {
	var n events.LedgerNotification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return err
	}
	h.Broadcast(n)
	return nil
}

// StartRedisSubscriber escuta o canal de notificações do ledger em uma goroutine
// e repassa cada mensagem para os clientes inscritos no evento correspondente
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close() // encerra a inscrição ao finalizar o contexto
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := hub.Dispatch(msg.Payload); err != nil {
					log.Warn("ws subscriber unmarshal error", zap.Error(err))
				}
			}
		}
	}()
}
