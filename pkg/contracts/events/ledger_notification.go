package events

import "encoding/json"

// Evento publicado no tópico "ledger_notifications" e no canal Redis de broadcast
type LedgerNotification struct {
	ID       string          `json:"id"`
	Kind     string          `json:"kind"`  // EventInitialized | OutcomeRecorded | Bet | BetLost | RewardClaimed | BetRemoved
	Event    string          `json:"event"` // nome do evento de aposta ao qual a notificação se refere
	Payload  json.RawMessage `json:"payload"`
	TsUnixMs int64           `json:"ts_unix_ms"`
}
