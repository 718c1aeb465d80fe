package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/beton-ledger/pkg/contracts/events"
)

// client serializa as escritas na conexão; gorilla não aceita writers concorrentes
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *client) writeRaw(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub gerencia conexões WebSocket e assinaturas por nome de evento
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger
	maxLen   int

	mu sync.RWMutex
	// evento -> conjunto de clientes
	subs map[string]map[*client]struct{}

	OnConnect   func(delta int) // métricas (gauge de conexões)
	OnBroadcast func(kind string)
}

// NewHub cria o hub; maxLen limita o nome do evento aceito em subscribe (0 = sem limite)
func NewHub(log *zap.Logger, maxLen int, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		log:      log,
		maxLen:   maxLen,
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &client{conn: conn}
	h.connected(1)
	defer h.connected(-1)
	defer h.drop(c)

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if msg.Event == "" || (h.maxLen > 0 && len(msg.Event) > h.maxLen) {
				_ = c.write(ServerMsg{Type: "error", Event: msg.Event, Error: "invalid event name"})
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.Event]; !ok {
				h.subs[msg.Event] = make(map[*client]struct{})
			}
			h.subs[msg.Event][c] = struct{}{}
			h.mu.Unlock()
			_ = c.write(ServerMsg{Type: "subscribed", Event: msg.Event})
		case "unsubscribe":
			h.mu.Lock()
			if m, ok := h.subs[msg.Event]; ok {
				delete(m, c)
				if len(m) == 0 {
					delete(h.subs, msg.Event)
				}
			}
			h.mu.Unlock()
			_ = c.write(ServerMsg{Type: "unsubscribed", Event: msg.Event})
		case "ping":
			_ = c.write(ServerMsg{Type: "pong"})
		default:
			_ = c.write(ServerMsg{Type: "error", Error: "unknown message type"})
		}
	}
}

// drop remove o cliente de todas as assinaturas ao desconectar
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, name)
		}
	}
}

func (h *Hub) connected(delta int) {
	if h.OnConnect != nil {
		h.OnConnect(delta)
	}
}

// Subscribers retorna quantos clientes estão inscritos no evento
func (h *Hub) Subscribers(event string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[event])
}

// Broadcast envia a notificação para os clientes inscritos no evento dela
func (h *Hub) Broadcast(n events.LedgerNotification) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[n.Event]))
	for c := range h.subs[n.Event] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, err := json.Marshal(n)
	if err != nil {
		h.log.Warn("ws marshal failed", zap.Error(err))
		return
	}
	for _, c := range targets {
		if err := c.writeRaw(b); err != nil {
			h.log.Debug("ws write failed", zap.Error(err))
		}
	}
	if h.OnBroadcast != nil {
		h.OnBroadcast(n.Kind)
	}
}
