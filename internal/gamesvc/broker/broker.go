package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/mastermind-services/internal/apperr"
	"github.com/avvvet/mastermind-services/internal/comm"
	"github.com/avvvet/mastermind-services/internal/events"
	"github.com/avvvet/mastermind-services/internal/gamesvc/service"
	"github.com/avvvet/mastermind-services/internal/mastermind"
)

type Broker struct {
	Conn           *nats.Conn
	GameService    *service.GameService
	BalanceService *service.BalanceService
	timeout        time.Duration
}

func NewBroker(nc *nats.Conn, gameService *service.GameService, balanceService *service.BalanceService) *Broker {
	return &Broker{
		Conn:           nc,
		GameService:    gameService,
		BalanceService: balanceService,
		timeout:        10 * time.Second,
	}
}

// handles message coming from socket
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := comm.WSMessage{}
	if err := json.Unmarshal(msgNat.Data, &msg); err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	reply, ok := b.Dispatch(ctx, msg)
	if !ok {
		log.Warnf("Unknown message %q from socket %s", msg.Type, msg.SocketId)
		return
	}
	b.publishReply(msg.Type+"-response", reply, msg.SocketId)
}

// Dispatch runs one command for the player bound to the message. The second
// result is false for unknown message types.
func (b *Broker) Dispatch(ctx context.Context, msg comm.WSMessage) (comm.Reply, bool) {
	if msg.Player == "" {
		return failure(mastermind.ErrNullPlayer), true
	}

	var cmd comm.Command
	if len(msg.Data) > 0 && string(msg.Data) != "null" {
		if err := json.Unmarshal(msg.Data, &cmd); err != nil {
			return failure(apperr.New(apperr.Validation, "malformed command")), true
		}
	}

	games, player := b.GameService, msg.Player
	var (
		snap mastermind.Snapshot
		err  error
	)
	switch msg.Type {
	case comm.TypeInit, "get-balance":
		balance, err := b.BalanceService.GetPlayerBalance(ctx, player)
		if err != nil {
			log.Errorf("Error [BalanceService.GetPlayerBalance] %s", err)
			return failure(err), true
		}
		return comm.Reply{OK: true, Balance: balance.StringFixed(2)}, true
	case "check-active-game":
		active, err := games.ActiveGame(player)
		if err != nil {
			return failure(err), true
		}
		return comm.Reply{OK: true, Game: active}, true
	case "open-games":
		return comm.Reply{OK: true, Open: games.OpenGames()}, true
	case "get-game":
		snap, err = games.GetGame(ctx, cmd.GameID)
	case "create-game":
		snap, err = games.CreateGame(ctx, player, cmd.Opponent)
	case "join-game":
		snap, err = games.JoinGame(ctx, player, cmd.GameID)
	case "quit-game":
		snap, err = games.QuitGame(ctx, player, cmd.GameID)
	case "bet":
		snap, err = games.Bet(ctx, player, cmd.GameID, cmd.Amount)
	case "fold":
		snap, err = games.Fold(ctx, player, cmd.GameID)
	case "emit-afk":
		snap, err = games.EmitAfk(ctx, player, cmd.GameID)
	case "redeem-afk":
		snap, err = games.RedeemAfterAfk(ctx, player, cmd.GameID)
	case "publish-secret":
		snap, err = games.PublishSecret(ctx, player, cmd.GameID, cmd.Commitment)
	case "try-guess":
		snap, err = games.TryGuess(ctx, player, cmd.GameID, cmd.Guess)
	case "publish-feedback":
		snap, err = games.PublishFeedback(ctx, player, cmd.GameID, cmd.CC, cmd.NC)
	case "reveal-secret":
		snap, err = games.RevealSecret(ctx, player, cmd.GameID, cmd.Secret, cmd.Salt)
	case "start-dispute":
		snap, err = games.StartDispute(ctx, player, cmd.GameID, cmd.Ref)
	case "change-turn":
		snap, err = games.ChangeTurn(ctx, player, cmd.GameID)
	default:
		return comm.Reply{}, false
	}

	if err != nil {
		if apperr.KindOf(err) == apperr.Internal {
			log.Errorf("Error [%s] player %s: %s", msg.Type, player, err)
		} else {
			log.Warnf("rejected %s from %s: %s", msg.Type, player, err)
		}
		return failure(err), true
	}
	return comm.Reply{OK: true, Game: &snap}, true
}

func failure(err error) comm.Reply {
	return comm.Reply{Error: err.Error(), Kind: apperr.KindOf(err).String()}
}

// Emit publishes a game event for the socket service to fan out to the
// players of the game.
func (b *Broker) Emit(e events.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		log.Errorf("Error marshal %s event: %s", e.Type, err)
		return
	}
	b.publishEnvelope(comm.WSMessage{Type: comm.TypeGameEvent, Data: data})
}

func (b *Broker) publishReply(typ string, r comm.Reply, socketId string) {
	data, err := json.Marshal(r)
	if err != nil {
		log.Errorf("[%s] unable to marshal reply for %s: %s", typ, socketId, err)
		return
	}
	b.publishEnvelope(comm.WSMessage{Type: typ, Data: data, SocketId: socketId})
}

func (b *Broker) publishEnvelope(msg comm.WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}
	b.Publish(comm.GameSubject, payload)
}

// consume message from socket service
func (b *Broker) SubscribSocketService(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
