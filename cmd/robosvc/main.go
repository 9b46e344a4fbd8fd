package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/mastermind-services/configs"
	"github.com/avvvet/mastermind-services/internal/comm"
	"github.com/avvvet/mastermind-services/internal/events"
	pg "github.com/avvvet/mastermind-services/internal/gamesvc/db"
	"github.com/avvvet/mastermind-services/internal/gamesvc/store"
	"github.com/avvvet/mastermind-services/internal/mastermind"
	natscli "github.com/avvvet/mastermind-services/internal/nats"
	"github.com/avvvet/mastermind-services/internal/robo"
)

const SERVICE_NAME = "robot"

const socketPrefix = "robo:"

func init() {
	config.Logging(SERVICE_NAME + "_service")
	config.LoadEnv(SERVICE_NAME)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	log.Printf("Starting Robot Service...")

	names := strings.Split(envOr("ROBOT_NAMES", "robo-abel,robo-meron"), ",")
	paletteSize, err := strconv.Atoi(envOr("PALETTE_SIZE", "6"))
	if err != nil {
		log.Fatalf("Invalid PALETTE_SIZE: %v", err)
	}
	palette, err := mastermind.NewPalette(paletteSize)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	maxStake, err := decimal.NewFromString(envOr("ROBOT_MAX_STAKE", "10"))
	if err != nil {
		log.Fatalf("Invalid ROBOT_MAX_STAKE: %v", err)
	}
	topUp, err := decimal.NewFromString(envOr("ROBOT_TOPUP", "2000"))
	if err != nil {
		log.Fatalf("Invalid ROBOT_TOPUP: %v", err)
	}

	// robot wallets get one initial deposit, keyed so restarts skip it
	if dsn := os.Getenv("POSTGRES_URL"); dsn != "" {
		dbpool, err := pg.Connect(dsn)
		if err != nil {
			log.Fatalf("Failed to connect to DB: %v", err)
		}
		defer pg.ClosePool()
		balances := store.NewBalanceStore(dbpool)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		for _, name := range names {
			if err := balances.RecordDeposit(ctx, name, topUp, "ROBOT-INIT-"+name); err != nil {
				log.Errorf("Failed to top-up robot %s: %v", name, err)
			}
		}
		cancel()
		log.Printf("Robot wallets top-up completed")
	}

	nc, err := natscli.Connect(SERVICE_NAME)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer nc.Conn.Close()
	log.Infof("NATS connected at %s", nc.Url)

	joinOpen := envOr("ROBOT_JOIN_OPEN", "true") == "true"
	robots := make([]*robo.Robot, 0, len(names))
	for i, name := range names {
		robots = append(robots, robo.New(robo.Config{
			Name:      name,
			Palette:   palette,
			MaxStake:  maxStake,
			JoinOpen:  joinOpen && i == 0,
			JoinDelay: 5 * time.Second,
		}, time.Now().UnixNano()+int64(i)))
	}

	_, err = nc.Conn.Subscribe(comm.GameSubject, func(m *nats.Msg) {
		handleGameServiceMessage(nc, robots, m)
	})
	if err != nil {
		log.Fatalf("Failed to subscribe to %s: %v", comm.GameSubject, err)
	}

	log.Printf("Robot Service fully operational with %d robots", len(robots))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop
	log.Printf("Robot Service stopped")
}

func handleGameServiceMessage(nc *natscli.Nats, robots []*robo.Robot, msg *nats.Msg) {
	var ws comm.WSMessage
	if err := json.Unmarshal(msg.Data, &ws); err != nil {
		log.Errorf("Failed to unmarshal WSMessage: %v", err)
		return
	}

	if strings.HasPrefix(ws.SocketId, socketPrefix) {
		logReply(ws)
		return
	}
	if ws.Type != comm.TypeGameEvent {
		return
	}

	var e events.Event
	if err := json.Unmarshal(ws.Data, &e); err != nil {
		log.Errorf("Failed to unmarshal game event: %v", err)
		return
	}
	for _, r := range robots {
		for _, a := range r.Handle(e) {
			send(nc, r.Name(), a)
		}
	}
}

func logReply(ws comm.WSMessage) {
	var reply comm.Reply
	if err := json.Unmarshal(ws.Data, &reply); err != nil {
		log.Errorf("Failed to unmarshal reply: %v", err)
		return
	}
	if !reply.OK {
		log.WithFields(log.Fields{
			"robot": strings.TrimPrefix(ws.SocketId, socketPrefix),
			"type":  ws.Type,
			"kind":  reply.Kind,
		}).Warnf("robot command rejected: %s", reply.Error)
	}
}

func send(nc *natscli.Nats, name string, a robo.Action) {
	publish := func() {
		data, err := json.Marshal(a.Command)
		if err != nil {
			log.Errorf("Failed to marshal %s command: %v", a.Type, err)
			return
		}
		payload, err := json.Marshal(comm.WSMessage{
			Type:     a.Type,
			Data:     data,
			SocketId: socketPrefix + name,
			Player:   name,
		})
		if err != nil {
			log.Errorf("Failed to marshal WSMessage: %v", err)
			return
		}
		if err := nc.Conn.Publish(comm.SocketSubject, payload); err != nil {
			log.Errorf("Failed to publish %s for %s: %v", a.Type, name, err)
			return
		}
		log.Debugf("robot %s sent %s for game %d", name, a.Type, a.Command.GameID)
	}

	if a.After > 0 {
		time.AfterFunc(a.After, publish)
		return
	}
	publish()
}
