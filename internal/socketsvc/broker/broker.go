package broker

import (
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/mastermind-services/internal/comm"
	"github.com/avvvet/mastermind-services/internal/events"
)

type Broker struct {
	Conn          *nats.Conn
	Send          func(socketId string, v interface{}) bool
	PlayerSockets func(player string) []string
}

func NewBroker(conn *nats.Conn, send func(string, interface{}) bool, playerSockets func(string) []string) *Broker {
	return &Broker{
		Conn:          conn,
		Send:          send,
		PlayerSockets: playerSockets,
	}
}

// consume message from game service
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// publish message to game service
func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

func (b *Broker) handleMessages(msgNats *nats.Msg) {
	b.Route(msgNats.Data)
}

// Route delivers a game service message: replies go to the socket that sent
// the command, game events to every socket of the game's players.
func (b *Broker) Route(raw []byte) {
	message := &comm.WSMessage{}
	if err := json.Unmarshal(raw, message); err != nil {
		log.Errorf("Error %s", err)
		return
	}

	switch {
	case message.Type == comm.TypeGameEvent:
		b.broadcast(message)
	case strings.HasSuffix(message.Type, "-response"):
		message.Player = ""
		b.Send(message.SocketId, message)
	default:
		log.Warnf("Unknown message %s", message.Type)
	}
}

func (b *Broker) broadcast(m *comm.WSMessage) {
	var e events.Event
	if err := json.Unmarshal(m.Data, &e); err != nil {
		log.Errorf("Error decoding game event: %s", err)
		return
	}
	for _, p := range e.Players {
		if p == "" {
			continue
		}
		for _, socketId := range b.PlayerSockets(p) {
			b.Send(socketId, m)
		}
	}
}
