package events

import (
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Event types emitted by the ledger and the game engine.
const (
	GameCreated        = "game-created"
	OpponentInvited    = "opponent-invited"
	PlayerJoined       = "player-joined"
	PlayerDisconnected = "player-disconnected"
	BettingOpened      = "betting-opened"
	Raise              = "raise"
	Call               = "call"
	Fold               = "fold"
	Payout             = "payout"
	CodeMakerSelected  = "codemaker-selected"
	SecretPublished    = "secret-published"
	GuessSubmitted     = "guess-submitted"
	FeedbackPublished  = "feedback-published"
	CodeBroken         = "code-broken"
	GuessesExhausted   = "guesses-exhausted"
	DisputeWindowOpen  = "dispute-window-opened"
	DishonestyDetected = "dishonesty-detected"
	DisputeResolved    = "dispute-resolved"
	NewTurn            = "new-turn"
	GameEnded          = "game-ended"
	AfkRaised          = "afk-raised"
	AfkRedeemed        = "afk-redeemed"
)

// Event is a signal for external observers. Nothing inside the engine consumes it.
type Event struct {
	Type       string            `json:"type" bson:"type"`
	GameID     uint64            `json:"game_id" bson:"game_id"`
	Players    []string          `json:"players" bson:"players"`
	At         time.Time         `json:"at" bson:"at"`
	Seq        uint64            `json:"seq" bson:"seq"` // per emitter, increasing
	Attributes map[string]string `json:"attributes" bson:"attributes"`
}

// Ref identifies the event for idempotent consumers.
func (e Event) Ref() string {
	return strconv.FormatUint(e.GameID, 10) + ":" + e.Type + ":" +
		strconv.FormatUint(e.Seq, 10) + ":" + strconv.FormatInt(e.At.UnixNano(), 10) + ":" +
		e.Attributes["player"]
}

type Sink interface {
	Emit(e Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(e Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Recorder keeps emitted events in memory, mostly for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events with the given type, in emission order.
func (r *Recorder) OfType(typ string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// Dispatcher fans events out to several sinks from a single goroutine so that
// slow sinks (database, broker) never block the caller that emitted them.
// Delivery order matches emission order.
type Dispatcher struct {
	ch    chan Event
	sinks []Sink
	done  chan struct{}
	once  sync.Once
}

func NewDispatcher(buffer int, sinks ...Sink) *Dispatcher {
	d := &Dispatcher{
		ch:    make(chan Event, buffer),
		sinks: sinks,
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) Emit(e Event) {
	d.ch <- e
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.ch {
		for _, s := range d.sinks {
			d.deliver(s, e)
		}
	}
}

func (d *Dispatcher) deliver(s Sink, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("event sink panicked on %s for game %d: %v", e.Type, e.GameID, r)
		}
	}()
	s.Emit(e)
}

// Close stops accepting events and waits until the queued ones are delivered.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.ch) })
	<-d.done
}
