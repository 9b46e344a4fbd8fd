package routes

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/mastermind-services/internal/comm"
	"github.com/avvvet/mastermind-services/internal/events"
	"github.com/avvvet/mastermind-services/internal/socketsvc/broker"
	"github.com/avvvet/mastermind-services/internal/socketsvc/ws"
)

type chanPublisher chan comm.WSMessage

func (c chanPublisher) Publish(topic string, payload []byte) error {
	var m comm.WSMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return err
	}
	c <- m
	return nil
}

type gateway struct {
	url    string
	auth   *jwtauth.JWTAuth
	ws     *ws.Ws
	broker *broker.Broker
	out    chanPublisher
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	auth := jwtauth.New("HS256", []byte("test-secret"), nil)
	s := ws.NewWs(auth)
	out := make(chanPublisher, 16)
	s.Broker = out

	r := chi.NewRouter()
	SetRoutes(r, s, "0")
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &gateway{
		url:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws",
		auth:   auth,
		ws:     s,
		broker: broker.NewBroker(nil, s.Send, s.GetPlayerSockets),
		out:    out,
	}
}

func (g *gateway) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(g.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (g *gateway) token(t *testing.T, player string) string {
	t.Helper()
	_, tok, err := g.auth.Encode(map[string]interface{}{"player": player})
	require.NoError(t, err)
	return tok
}

func (g *gateway) forwarded(t *testing.T) comm.WSMessage {
	t.Helper()
	select {
	case m := <-g.out:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("nothing forwarded")
	}
	return comm.WSMessage{}
}

func send(t *testing.T, conn *websocket.Conn, typ string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(comm.WSMessage{Type: typ, Data: raw}))
}

func read(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]interface{}
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestUnboundSocketIsRejected(t *testing.T) {
	g := newGateway(t)
	conn := g.dial(t)

	send(t, conn, "fold", comm.Command{GameID: 1})
	m := read(t, conn)
	assert.Equal(t, comm.TypeError, m["type"])

	send(t, conn, comm.TypeInit, comm.InitData{Token: "garbage"})
	m = read(t, conn)
	assert.Equal(t, "invalid token", m["error"])
}

func TestInitBindsAndForwards(t *testing.T) {
	g := newGateway(t)
	conn := g.dial(t)

	send(t, conn, comm.TypeInit, comm.InitData{Token: g.token(t, "alice")})
	init := g.forwarded(t)
	assert.Equal(t, comm.TypeInit, init.Type)
	assert.Equal(t, "alice", init.Player)
	assert.NotEmpty(t, init.SocketId)
	assert.NotContains(t, string(init.Data), "token")

	raw, _ := json.Marshal(comm.Command{GameID: 3, Guess: "RGBRG"})
	require.NoError(t, conn.WriteJSON(comm.WSMessage{Type: "try-guess", Data: raw, Player: "mallory"}))
	m := g.forwarded(t)
	assert.Equal(t, "try-guess", m.Type)
	assert.Equal(t, "alice", m.Player)
	assert.Equal(t, init.SocketId, m.SocketId)

	reply, _ := json.Marshal(comm.WSMessage{Type: "try-guess-response", SocketId: init.SocketId, Data: json.RawMessage(`{"ok":true}`)})
	g.broker.Route(reply)
	got := read(t, conn)
	assert.Equal(t, "try-guess-response", got["type"])

	ev, _ := json.Marshal(events.Event{Type: events.GuessSubmitted, GameID: 3, Players: []string{"alice", "bob"}})
	note, _ := json.Marshal(comm.WSMessage{Type: comm.TypeGameEvent, Data: ev})
	g.broker.Route(note)
	got = read(t, conn)
	assert.Equal(t, comm.TypeGameEvent, got["type"])

	assert.Equal(t, []string{init.SocketId}, g.ws.GetPlayerSockets("alice"))
	g.ws.HandleDisconnect(init.SocketId)
	assert.Empty(t, g.ws.GetPlayerSockets("alice"))
}
