package comm

import (
	"encoding/json"

	"github.com/avvvet/mastermind-services/internal/mastermind"
)

// NATS subjects shared by the socket and game services.
const (
	SocketSubject = "socket.service" // socket service -> game service
	GameSubject   = "game.service"   // game service -> socket service
)

// Message types that are not commands.
const (
	TypeInit      = "init"
	TypeGameEvent = "game-event"
	TypeError     = "error"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "init", "try-guess"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid"`
	Player   string          `json:"player,omitempty"` // set by the socket service, never by clients
}

// Command carries the arguments of any game command; each type reads the
// fields it needs.
type Command struct {
	GameID     uint64 `json:"game_id"`
	Opponent   string `json:"opponent,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Commitment string `json:"commitment,omitempty"`
	Guess      string `json:"guess,omitempty"`
	CC         int    `json:"cc"`
	NC         int    `json:"nc"`
	Secret     string `json:"secret,omitempty"`
	Salt       string `json:"salt,omitempty"`
	Ref        int    `json:"ref"`
}

// Reply answers a command on the socket that sent it.
type Reply struct {
	OK      bool                 `json:"ok"`
	Error   string               `json:"error,omitempty"`
	Kind    string               `json:"kind,omitempty"`
	Game    *mastermind.Snapshot `json:"game,omitempty"`
	Open    []uint64             `json:"open,omitempty"`
	Balance string               `json:"balance,omitempty"`
}

type InitData struct {
	Token string `json:"token"`
}

type PlayerData struct {
	Player  string `json:"player"`
	Balance string `json:"balance"`
}
