// Package mastermind runs two-player, stake-backed Mastermind games: commit
// and reveal of secret codes, guess scoring, fraud disputes and AFK timeouts.
// Stakes are held by a separate escrow that trusts the engine as its only
// caller.
package mastermind

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"

	"github.com/avvvet/mastermind-services/internal/escrow"
	"github.com/avvvet/mastermind-services/internal/events"
)

// Escrow is the custody side of a game. The engine identifies itself with
// its ID on every call.
type Escrow interface {
	NewBetting(caller, p0, p1 string, idx uint64) error
	Bet(caller string, idx uint64, who string, amount decimal.Decimal) (bool, error)
	Fold(caller string, idx uint64, who string) (string, decimal.Decimal, error)
	Withdraw(caller string, idx uint64, winner string) (decimal.Decimal, error)
	WithdrawTie(caller string, idx uint64) (decimal.Decimal, error)
	NextMove(idx uint64) (string, error)
	Round(idx uint64) (escrow.Round, error)
}

const (
	DefaultAfkTimeout    = 5 * time.Minute
	DefaultDisputeWindow = 2 * time.Minute
)

type Options struct {
	ID            string
	Escrow        Escrow
	Sink          events.Sink
	Clock         clock.Clock
	Coin          Coin
	Palette       Palette
	AfkTimeout    time.Duration
	DisputeWindow time.Duration
	// LastID is the highest game id already handed out; numbering resumes after it.
	LastID uint64
}

type Engine struct {
	id            string
	escrow        Escrow
	sink          events.Sink
	clock         clock.Clock
	coin          Coin
	palette       Palette
	afkTimeout    time.Duration
	disputeWindow time.Duration

	mu      sync.Mutex
	lastID  uint64
	seq     uint64
	games   map[uint64]*Game
	open    []uint64          // unjoined open games, oldest first
	active  map[string]uint64 // player -> unfinished game
	pending []events.Event
}

func NewEngine(opts Options) *Engine {
	e := &Engine{
		id:            opts.ID,
		escrow:        opts.Escrow,
		sink:          opts.Sink,
		clock:         opts.Clock,
		coin:          opts.Coin,
		palette:       opts.Palette,
		afkTimeout:    opts.AfkTimeout,
		disputeWindow: opts.DisputeWindow,
		lastID:        opts.LastID,
		games:         make(map[uint64]*Game),
		active:        make(map[string]uint64),
	}
	if e.sink == nil {
		e.sink = events.Discard
	}
	if e.clock == nil {
		e.clock = clock.New()
	}
	if e.coin == nil {
		e.coin = KeccakCoin{}
	}
	if e.palette.colors == nil {
		e.palette = DefaultPalette()
	}
	if e.afkTimeout <= 0 {
		e.afkTimeout = DefaultAfkTimeout
	}
	if e.disputeWindow <= 0 {
		e.disputeWindow = DefaultDisputeWindow
	}
	return e
}

// ID is the identity the engine presents to the escrow.
func (e *Engine) ID() string { return e.id }

func (e *Engine) Palette() Palette { return e.palette }

// do runs fn under the engine lock. Events emitted by fn reach the sink only
// if fn succeeds, so a rejected call leaves no trace.
func (e *Engine) do(fn func(now time.Time) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending = e.pending[:0]
	err := fn(e.clock.Now())
	if err == nil {
		for _, ev := range e.pending {
			e.sink.Emit(ev)
		}
	}
	e.pending = e.pending[:0]
	return err
}

func (e *Engine) emit(g *Game, typ string, now time.Time, attrs map[string]string) {
	players := []string{g.Players[0]}
	if g.Players[1] != "" {
		players = append(players, g.Players[1])
	}
	e.seq++
	e.pending = append(e.pending, events.Event{
		Type:       typ,
		GameID:     g.ID,
		Players:    players,
		At:         now,
		Seq:        e.seq,
		Attributes: attrs,
	})
}

// Game returns a snapshot of the game, with the stakes held in escrow while
// its round is live.
func (e *Engine) Game(id uint64) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.games[id]
	if !ok {
		return Snapshot{}, ErrGameNotFound
	}
	s := g.snapshot()
	if r, err := e.escrow.Round(g.ID); err == nil {
		s.Stakes = []string{r.Stakes[0].String(), r.Stakes[1].String()}
	}
	return s, nil
}

// OpenGames lists the ids anyone may join, oldest first.
func (e *Engine) OpenGames() []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]uint64, len(e.open))
	copy(out, e.open)
	return out
}

// ActiveGame returns the unfinished game the player belongs to.
func (e *Engine) ActiveGame(player string) (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.active[player]
	return id, ok
}

// member loads a started, unfinished game the caller plays in.
func (e *Engine) member(id uint64, caller string) (*Game, error) {
	g, ok := e.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	if g.slot(caller) < 0 {
		return nil, ErrNotAMember
	}
	if g.finished() {
		return nil, ErrGameFinished
	}
	if !g.started() {
		return nil, ErrNotStarted
	}
	return g, nil
}

func (e *Engine) finish(g *Game, winner string, reason EndingReason, prize decimal.Decimal, now time.Time) {
	g.phase = PhaseFinished
	g.winner = winner
	g.reason = reason
	g.prize = prize
	g.afk = nil
	for _, p := range g.Players {
		if p != "" && e.active[p] == g.ID {
			delete(e.active, p)
		}
	}
	e.emit(g, events.GameEnded, now, map[string]string{
		"winner": winner,
		"reason": reason.String(),
		"tied":   boolString(g.tied),
		"prize":  prize.String(),
	})
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
