package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Event: obrigatório para subscribe/unsubscribe
type ClientMsg struct {
	Type  string `json:"type"`  // subscribe | unsubscribe | ping
	Event string `json:"event"` // nome do evento do ledger
}

// ServerMsg é a resposta de controle enviada ao cliente (pong, ack, erro)
type ServerMsg struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Error string `json:"error,omitempty"`
}
