package ledger

// Notification é um evento de domínio entregue ao Sink após uma operação bem-sucedida
type Notification interface {
	Kind() string
}

type EventInitialized struct {
	Who   AccountID `json:"who"`
	Event EventName `json:"event"`
}

type OutcomeRecorded struct {
	Event   EventName `json:"event"`
	Outcome Outcome   `json:"outcome"`
}

// BetPlaced corresponde à notificação "Bet"
type BetPlaced struct {
	Who    AccountID `json:"who"`
	Amount Balance   `json:"amount"`
	Escrow AccountID `json:"treasury_id"`
}

type BetLost struct {
	Who AccountID `json:"who"`
}

type RewardClaimed struct {
	Who    AccountID `json:"who"`
	Amount Balance   `json:"amount"`
}

type BetRemoved struct {
	Who AccountID `json:"who"`
}

func (EventInitialized) Kind() string { return "EventInitialized" }
func (OutcomeRecorded) Kind() string  { return "OutcomeRecorded" }
func (BetPlaced) Kind() string        { return "Bet" }
func (BetLost) Kind() string          { return "BetLost" }
func (RewardClaimed) Kind() string    { return "RewardClaimed" }
func (BetRemoved) Kind() string       { return "BetRemoved" }
