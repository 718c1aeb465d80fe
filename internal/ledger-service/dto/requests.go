package dto

type RegisterEventRequest struct {
	Name string `json:"name" validate:"required"`
}

// RecordOutcomeRequest usa ponteiro para aceitar outcome 0 explícito
type RecordOutcomeRequest struct {
	Outcome *uint8 `json:"outcome" validate:"required"`
}

// PlaceBetRequest não valida team: team 0 chega ao ledger e vira CanNotBetOnZero
type PlaceBetRequest struct {
	Team   uint8  `json:"team"`
	Amount uint64 `json:"amount"`
}
