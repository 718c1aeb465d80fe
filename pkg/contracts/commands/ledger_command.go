package commands

// Tipos de comando aceitos no tópico "ledger_commands"
const (
	RegisterEvent = "register_event"
	RecordOutcome = "record_outcome"
	PlaceBet      = "place_bet"
	ClaimReward   = "claim_reward"
	RemoveBet     = "remove_bet"
)

// LedgerCommand é uma operação assinada enviada ao ledger via Kafka.
// Token é o JWT do chamador; o consumer autentica antes de aplicar.
type LedgerCommand struct {
	ID      string `json:"id" validate:"required"`
	Type    string `json:"type" validate:"required,oneof=register_event record_outcome place_bet claim_reward remove_bet"`
	Token   string `json:"token" validate:"required"`
	Event   string `json:"event" validate:"required"`
	Team    uint8  `json:"team,omitempty"`
	Outcome uint8  `json:"outcome,omitempty"`
	Amount  uint64 `json:"amount,omitempty"`
}
