package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/mastermind-services/configs"
	"github.com/avvvet/mastermind-services/internal/comm"
	"github.com/avvvet/mastermind-services/internal/db"
	"github.com/avvvet/mastermind-services/internal/escrow"
	"github.com/avvvet/mastermind-services/internal/events"
	"github.com/avvvet/mastermind-services/internal/gamesvc/archive"
	"github.com/avvvet/mastermind-services/internal/gamesvc/broker"
	gameconfig "github.com/avvvet/mastermind-services/internal/gamesvc/config"
	pg "github.com/avvvet/mastermind-services/internal/gamesvc/db"
	handlers "github.com/avvvet/mastermind-services/internal/gamesvc/handlers"
	"github.com/avvvet/mastermind-services/internal/gamesvc/service"
	"github.com/avvvet/mastermind-services/internal/gamesvc/store"
	"github.com/avvvet/mastermind-services/internal/mastermind"
	nats "github.com/avvvet/mastermind-services/internal/nats"
)

const SERVICE_NAME = "game"

func init() {
	config.Logging(SERVICE_NAME + "_service")
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	instanceId := config.CreateUniqueInstance(SERVICE_NAME)

	cfg, err := gameconfig.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	palette, err := mastermind.NewPalette(cfg.PaletteSize)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// pg connection
	dbpool, err := pg.Connect(cfg.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pg.ClosePool()
	log.Printf("pg connection established successfully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := pg.Migrate(ctx, dbpool); err != nil {
		log.Fatalf("Failed to migrate DB: %v", err)
	}

	balanceStore := store.NewBalanceStore(dbpool)
	balanceService := service.NewBalanceService(balanceStore)

	gameStore := store.NewGameStore(dbpool, cfg.EngineID)
	lastID, err := gameStore.LastGameID(ctx)
	if err != nil {
		log.Fatalf("Failed to read game ids: %v", err)
	}

	// mongo event archive
	mongoDB, err := db.ConnectToDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer db.Disconnect(mongoDB)
	eventArchive, err := archive.New(ctx, mongoDB, cfg.EventRetention)
	if err != nil {
		log.Fatalf("Failed to prepare event archive: %v", err)
	}

	// Connect to NATS
	n, err := nats.Connect(SERVICE_NAME + "-" + instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(0)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// engine, ledger and event fan-out
	var b *broker.Broker
	dispatcher := events.NewDispatcher(1024,
		balanceService.Sink(10*time.Second),
		eventArchive,
		events.SinkFunc(func(e events.Event) { b.Emit(e) }),
	)
	defer dispatcher.Close()

	ledger := escrow.NewLedger(cfg.EngineID, dispatcher, nil)
	engine := mastermind.NewEngine(mastermind.Options{
		ID:            cfg.EngineID,
		Escrow:        ledger,
		Sink:          dispatcher,
		Palette:       palette,
		AfkTimeout:    cfg.AfkTimeout,
		DisputeWindow: cfg.DisputeWindow,
		LastID:        lastID,
	})
	gameService := service.NewGameService(engine, gameStore, balanceService)

	// games of the previous run cannot be resumed; give their stakes back
	closed, err := gameService.Recover(ctx)
	if err != nil {
		log.Fatalf("Failed to close unfinished games: %v", err)
	}
	if closed > 0 {
		log.Warnf("Closed %d unfinished games from the previous run", closed)
	}

	// book the balance rows that could not be written when their event passed
	retryTicker := time.NewTicker(time.Minute)
	defer retryTicker.Stop()
	go func() {
		for range retryTicker.C {
			if balanceService.Parked() == 0 {
				continue
			}
			rctx, rcancel := context.WithTimeout(context.Background(), 30*time.Second)
			booked := balanceService.RetryFailed(rctx)
			rcancel()
			log.Infof("Booked %d parked balance events, %d still parked", booked, balanceService.Parked())
		}
	}()

	// init message broker
	b = broker.NewBroker(n.Conn, gameService, balanceService)

	// subscribe to socket service
	sub, err := b.SubscribSocketService(comm.SocketSubject)
	if err != nil {
		log.Errorf("Error: unable to subscribe to queue %v", err)
		os.Exit(0)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Init handlers and routes
	tokenAuth := handlers.NewTokenAuth(cfg.JWTSecret)
	h := handlers.NewHandler(tokenAuth, gameService, balanceService, eventArchive, cfg.Port)
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s, engine %s resuming after game %s",
		SERVICE_NAME, server.Addr, cfg.EngineID, strconv.FormatUint(lastID, 10))

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	sub.Unsubscribe()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
