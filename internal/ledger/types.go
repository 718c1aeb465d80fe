package ledger

// AccountID identifica uma conta já autenticada pelo chamador
type AccountID string

// EventName é o identificador (bytes) de um evento apostável
type EventName string

// Outcome é o time vencedor de um evento; 0 significa "ainda não decidido"
type Outcome uint8

// Unresolved é o outcome inicial de todo evento registrado
const Unresolved Outcome = 0

// Resolved indica se o evento já tem um vencedor registrado
func (o Outcome) Resolved() bool { return o != Unresolved }

// Team é o time escolhido em uma aposta; 0 não é permitido
type Team uint8

// Balance é a quantidade de moeda movimentada pelo ledger
type Balance uint64

// EventRecord é o estado persistido de um evento
type EventRecord struct {
	Name    EventName
	Outcome Outcome
}

// BetRecord é a aposta de uma conta em um evento, já em custódia na conta escrow
type BetRecord struct {
	Team   Team
	Amount Balance
}

// ExistenceRequirement define o que a moeda faz com a conta de origem
// quando uma transferência deixa o saldo abaixo do depósito existencial
type ExistenceRequirement uint8

const (
	// KeepAlive falha a transferência se a origem ficaria abaixo do depósito existencial
	KeepAlive ExistenceRequirement = iota
	// AllowDeath permite que a conta de origem seja removida
	AllowDeath
)

func (r ExistenceRequirement) String() string {
	if r == AllowDeath {
		return "allow_death"
	}
	return "keep_alive"
}

// ValidateName aplica o limite de tamanho configurado a um nome de evento
func ValidateName(name EventName, maxLen int) error {
	if len(name) > maxLen {
		return ErrTooLongName
	}
	return nil
}
