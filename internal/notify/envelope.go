// Package notify entrega as notificações de domínio do ledger (Kafka, Redis Pub/Sub, log).
// Todos os sinks são fire-and-forget: erros de entrega são logados e descartados.
package notify

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/beton-ledger/internal/ledger"
	"github.com/radieske/beton-ledger/pkg/contracts/events"
)

// Envelope converte uma notificação no contrato publicado
func Envelope(subject ledger.EventName, n ledger.Notification, now time.Time) (events.LedgerNotification, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return events.LedgerNotification{}, err
	}
	return events.LedgerNotification{
		ID:       uuid.NewString(),
		Kind:     n.Kind(),
		Event:    string(subject),
		Payload:  payload,
		TsUnixMs: now.UnixMilli(),
	}, nil
}
