package ledger

import "errors"

var (
	ErrEventAlreadyExists   = errors.New("event already exists")
	ErrEventDoesNotExist    = errors.New("event does not exist")
	ErrEventAlreadyEnded    = errors.New("event already ended")
	ErrEventHasNotEndedYet  = errors.New("event has not ended yet")
	ErrCanNotBetOnZero      = errors.New("can not bet on team zero")
	ErrAlreadyBet           = errors.New("already bet on this event")
	ErrDidNotBet            = errors.New("did not bet on this event")
	ErrAlreadyClaimedReward = errors.New("reward already claimed") // reservado, nenhuma operação produz
	ErrNotEnoughFunds       = errors.New("not enough funds")       // reservado, a moeda usa ErrInsufficientFunds
	ErrTooLongName          = errors.New("event name too long")

	// Contrato da moeda: saldo insuficiente na origem de uma transferência
	ErrInsufficientFunds = errors.New("insufficient funds")

	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// Escrita falhou depois que a transferência já tinha sido aplicada
	ErrInvariantViolation = errors.New("ledger invariant violation")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrEventAlreadyExists, "EventAlreadyExists"},
	{ErrEventDoesNotExist, "EventDoesNotExist"},
	{ErrEventAlreadyEnded, "EventAlreadyEnded"},
	{ErrEventHasNotEndedYet, "EventHasNotEndedYet"},
	{ErrCanNotBetOnZero, "CanNotBetOnZero"},
	{ErrAlreadyBet, "AlreadyBet"},
	{ErrDidNotBet, "DidNotBet"},
	{ErrAlreadyClaimedReward, "AlreadyClaimedReward"},
	{ErrNotEnoughFunds, "NotEnoughFunds"},
	{ErrTooLongName, "TooLongName"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrArithmeticOverflow, "ArithmeticOverflow"},
	{ErrInvariantViolation, "InvariantViolation"},
}

// Code retorna o código estável de um erro do ledger ("" se não for um erro conhecido)
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ""
}
