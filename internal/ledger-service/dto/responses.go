package dto

type EventResponse struct {
	Name     string `json:"name"`
	Outcome  uint8  `json:"outcome"`
	Resolved bool   `json:"resolved"`
}

type BetResponse struct {
	Event  string `json:"event"`
	Team   uint8  `json:"team"`
	Amount uint64 `json:"amount"`
}

type PlaceBetResponse struct {
	Event  string `json:"event"`
	Team   uint8  `json:"team"`
	Amount uint64 `json:"amount"`
	Escrow string `json:"treasury_id"`
}

type ClaimRewardResponse struct {
	Event  string `json:"event"`
	Status string `json:"status"` // WON | LOST
	Payout uint64 `json:"payout"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
