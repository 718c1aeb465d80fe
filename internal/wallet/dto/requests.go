package dto

// DepositRequest credita saldo novo (mint); só a conta privilegiada pode chamar
type DepositRequest struct {
	Amount uint64 `json:"amount" validate:"required,gt=0"`
}
