package ws

import (
	"encoding/json"
	"sync"

	"github.com/go-chi/jwtauth"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/mastermind-services/internal/comm"
)

// Publisher forwards messages to the game service.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// client serializes writes to one websocket connection.
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) write(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type Ws struct {
	connMap   sync.Map // socketId -> *client
	playerMap sync.Map // socketId -> player bound by init
	tokenAuth *jwtauth.JWTAuth
	Broker    Publisher
}

func NewWs(tokenAuth *jwtauth.JWTAuth) *Ws {
	return &Ws{tokenAuth: tokenAuth}
}

// SocketMessage handles a message from a web client. Only init is accepted
// before the socket is bound to a player; every other message is forwarded
// to the game service on behalf of the bound player.
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	if message.Type == comm.TypeInit {
		s.handleInit(socketId, message)
		return
	}

	player, ok := s.GetPlayer(socketId)
	if !ok {
		log.Warnf("message %s from unbound socket %s", message.Type, socketId)
		s.SendError(socketId, "send init with a valid token first")
		return
	}
	s.forward(socketId, player, message)
}

func (s *Ws) handleInit(socketId string, msg *comm.WSMessage) {
	var payload comm.InitData
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("Error: invalid_init_data Malformed init payload %s", err)
		s.SendError(socketId, "malformed init payload")
		return
	}

	player, err := s.verify(payload.Token)
	if err != nil {
		log.Warnf("init rejected for socket %s: %s", socketId, err)
		s.SendError(socketId, "invalid token")
		return
	}

	s.playerMap.Store(socketId, player)
	log.Infof("socket %s bound to player %s", socketId, player)

	// the token stays on this side
	s.forward(socketId, player, &comm.WSMessage{Type: comm.TypeInit})
}

func (s *Ws) verify(tokenString string) (string, error) {
	token, err := jwtauth.VerifyToken(s.tokenAuth, tokenString)
	if err != nil {
		return "", err
	}
	v, _ := token.Get("player")
	player, _ := v.(string)
	if player == "" {
		return "", errMissingPlayer
	}
	return player, nil
}

type wsError string

func (e wsError) Error() string { return string(e) }

const errMissingPlayer = wsError("token carries no player claim")

func (s *Ws) forward(socketId, player string, msg *comm.WSMessage) {
	msg.SocketId = socketId
	msg.Player = player

	bytes, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to marshal WSMessage for NATS: %v", err)
		return
	}

	if err := s.Broker.Publish(comm.SocketSubject, bytes); err != nil {
		log.Errorf("Failed to publish to NATS topic %s: %v", comm.SocketSubject, err)
		s.SendError(socketId, "game service unavailable")
	}
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, &client{conn: conn})
}

// Send writes v to the socket; false when the socket is gone or the write
// failed.
func (s *Ws) Send(socketId string, v interface{}) bool {
	c, ok := s.connMap.Load(socketId)
	if !ok {
		return false
	}
	if err := c.(*client).write(v); err != nil {
		log.Errorf("write to socket %s: %s", socketId, err)
		return false
	}
	return true
}

func (s *Ws) SendError(socketId, errorMsg string) {
	s.Send(socketId, map[string]interface{}{
		"type":  comm.TypeError,
		"error": errorMsg,
	})
}

func (s *Ws) GetPlayer(socketId string) (string, bool) {
	p, ok := s.playerMap.Load(socketId)
	if !ok {
		return "", false
	}
	return p.(string), true
}

// GetPlayerSockets lists the sockets bound to player; a player may have
// several tabs open.
func (s *Ws) GetPlayerSockets(player string) []string {
	var sockets []string
	s.playerMap.Range(func(key, value interface{}) bool {
		if value.(string) == player {
			sockets = append(sockets, key.(string))
		}
		return true // continue iterating
	})
	return sockets
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
	if player, ok := s.GetPlayer(socketId); ok {
		log.Infof("player %s left socket %s", player, socketId)
	}
	s.playerMap.Delete(socketId)
}
