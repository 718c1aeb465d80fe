package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/beton-ledger/pkg/contracts/events"
)

func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg ClientMsg) ServerMsg {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp ServerMsg
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	return resp
}

func TestHubRoutesByEvent(t *testing.T) {
	hub := NewHub(zap.NewNop(), 32, func(*http.Request) bool { return true })
	kinds := []string{}
	hub.OnBroadcast = func(kind string) { kinds = append(kinds, kind) }
	conn := dial(t, hub)

	if resp := send(t, conn, ClientMsg{Type: "subscribe", Event: "match1"}); resp.Type != "subscribed" {
		t.Fatalf("expected subscribed, got %+v", resp)
	}
	if hub.Subscribers("match1") != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.Subscribers("match1"))
	}

	// evento sem inscritos não chega ao cliente
	hub.Broadcast(events.LedgerNotification{ID: "x", Kind: "Bet", Event: "other"})

	payload, _ := json.Marshal(events.LedgerNotification{
		ID:      "n1",
		Kind:    "OutcomeRecorded",
		Event:   "match1",
		Payload: json.RawMessage(`{"event":"match1","outcome":2}`),
	})
	if err := hub.Dispatch(string(payload)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	var got events.LedgerNotification
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read notification: %v", err)
	}
	if got.ID != "n1" || got.Kind != "OutcomeRecorded" {
		t.Fatalf("unexpected notification %+v", got)
	}
	if len(kinds) != 1 || kinds[0] != "OutcomeRecorded" {
		t.Fatalf("expected one broadcast, got %v", kinds)
	}

	if resp := send(t, conn, ClientMsg{Type: "unsubscribe", Event: "match1"}); resp.Type != "unsubscribed" {
		t.Fatalf("expected unsubscribed, got %+v", resp)
	}
	if hub.Subscribers("match1") != 0 {
		t.Fatalf("expected no subscribers")
	}
}

func TestHubControlMessages(t *testing.T) {
	hub := NewHub(zap.NewNop(), 4, func(*http.Request) bool { return true })
	conn := dial(t, hub)

	if resp := send(t, conn, ClientMsg{Type: "ping"}); resp.Type != "pong" {
		t.Fatalf("expected pong, got %+v", resp)
	}
	if resp := send(t, conn, ClientMsg{Type: "subscribe", Event: "too-long"}); resp.Type != "error" {
		t.Fatalf("expected error for long name, got %+v", resp)
	}
	if resp := send(t, conn, ClientMsg{Type: "dance"}); resp.Type != "error" {
		t.Fatalf("expected error for unknown type, got %+v", resp)
	}
}

func TestDispatchRejectsGarbage(t *testing.T) {
	hub := NewHub(zap.NewNop(), 0, nil)
	if err := hub.Dispatch("{nope"); err == nil {
		t.Fatalf("expected decode error")
	}
}
