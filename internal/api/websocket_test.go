package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-agents/internal/state"
)

func testClient(h *Hub, channels ...string) *WSClient {
	c := &WSClient{
		hub:           h,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	for _, ch := range channels {
		c.subscriptions[ch] = struct{}{}
	}
	return c
}

func readEvent(t *testing.T, c *WSClient) WSMessage {
	t.Helper()
	select {
	case data := <-c.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return WSMessage{}
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	env := testServer(t)
	hub := env.srv.hub

	client := testClient(hub, ChannelState)
	hub.Register(client)
	hub.Broadcast(ChannelState, map[string]any{"luces_activadas": true})

	if msg := readEvent(t, client); msg.EventType != ChannelState || msg.Type != WSTypeEvent {
		t.Errorf("message = %+v", msg)
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	env := testServer(t)
	hub := env.srv.hub

	client := testClient(hub, ChannelBus)
	hub.Register(client)
	hub.Broadcast(ChannelState, map[string]any{})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	env := testServer(t)
	hub := env.srv.hub

	client := testClient(hub)
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}
	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_PushOnlyOnChange(t *testing.T) {
	env := testServer(t)
	hub := env.srv.hub

	client := testClient(hub, ChannelState)
	hub.Register(client)

	hub.push()
	readEvent(t, client)

	hub.push()
	select {
	case <-client.send:
		t.Fatal("pushed an unchanged snapshot")
	default:
	}

	if err := env.store.SetBool(state.FieldSecurityAlert, true); err != nil {
		t.Fatal(err)
	}
	hub.push()
	msg := readEvent(t, client)
	payload, _ := msg.Payload.(map[string]any)
	if payload["alerta_seguridad"] != true {
		t.Errorf("payload = %v, want alert set", msg.Payload)
	}
}

func TestHub_RunClosesClients(t *testing.T) {
	env := testServer(t)
	hub := env.srv.hub

	client := testClient(hub, ChannelState)
	hub.Register(client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if hub.ClientCount() != 0 {
		t.Errorf("clients = %d after Run returned", hub.ClientCount())
	}
	for range client.send {
	}
}

func TestWebSocket_FullConnection(t *testing.T) {
	env := testServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go env.srv.hub.Run(ctx)

	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	defer ws.Close()

	// The current snapshot arrives at once.
	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var first WSMessage
	if err := ws.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.EventType != ChannelState {
		t.Errorf("first event = %q, want %q", first.EventType, ChannelState)
	}

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{ChannelBus}},
	}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	// State pushes may interleave with the response.
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			t.Fatalf("read response: %v", err)
		}
		if msg.Type == WSTypeResponse {
			if msg.ID != "sub-1" {
				t.Errorf("response ID = %s, want sub-1", msg.ID)
			}
			break
		}
	}

	// A state change is pushed without polling.
	if err := env.store.SetBool(state.FieldLightsOn, true); err != nil {
		t.Fatal(err)
	}
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			t.Fatalf("read push: %v", err)
		}
		if msg.EventType != ChannelState {
			continue
		}
		if payload, _ := msg.Payload.(map[string]any); payload["luces_activadas"] == true {
			break
		}
	}
}

func TestWebSocket_UnknownMessageType(t *testing.T) {
	env := testServer(t)
	client := testClient(env.srv.hub)

	client.handleMessage([]byte(`{"type":"dance","id":"x"}`))
	if msg := readEvent(t, client); msg.Type != WSTypeError || msg.ID != "x" {
		t.Errorf("message = %+v, want error for x", msg)
	}

	client.handleMessage([]byte(`not json`))
	if msg := readEvent(t, client); msg.Type != WSTypeError {
		t.Errorf("message = %+v, want error", msg)
	}

	client.handleMessage([]byte(`{"type":"ping","id":"p"}`))
	if msg := readEvent(t, client); msg.Type != WSTypePong {
		t.Errorf("message = %+v, want pong", msg)
	}
}
