package mastermind

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avvvet/mastermind-services/internal/events"
)

// CreateGame opens a game any player may join.
func (e *Engine) CreateGame(caller string) (uint64, error) {
	var id uint64
	err := e.do(func(now time.Time) error {
		g, err := e.newGame(caller, now)
		if err != nil {
			return err
		}
		e.open = append(e.open, g.ID)
		id = g.ID
		return nil
	})
	return id, err
}

// CreateGameWith creates a game only the invited opponent can join.
func (e *Engine) CreateGameWith(caller, opponent string) (uint64, error) {
	var id uint64
	err := e.do(func(now time.Time) error {
		if opponent == "" {
			return ErrNullOpponent
		}
		if opponent == caller {
			return ErrSelfOpponent
		}
		g, err := e.newGame(caller, now)
		if err != nil {
			return err
		}
		g.Invited = opponent
		e.emit(g, events.OpponentInvited, now, map[string]string{"opponent": opponent})
		id = g.ID
		return nil
	})
	return id, err
}

func (e *Engine) newGame(caller string, now time.Time) (*Game, error) {
	if caller == "" {
		return nil, ErrNullPlayer
	}
	if _, busy := e.active[caller]; busy {
		return nil, ErrAlreadyPlaying
	}
	e.lastID++
	g := newGame(e.lastID, caller)
	e.games[g.ID] = g
	e.active[caller] = g.ID
	e.emit(g, events.GameCreated, now, map[string]string{"creator": caller})
	return g, nil
}

// JoinGame claims the oldest open game.
func (e *Engine) JoinGame(caller string) (uint64, error) {
	var id uint64
	err := e.do(func(now time.Time) error {
		if caller == "" {
			return ErrNullPlayer
		}
		if _, busy := e.active[caller]; busy {
			return ErrAlreadyPlaying
		}
		if len(e.open) == 0 {
			return ErrNoOpenGame
		}
		g := e.games[e.open[0]]
		if err := e.join(g, caller, now); err != nil {
			return err
		}
		id = g.ID
		return nil
	})
	return id, err
}

// JoinGameByID joins a game the caller was invited to.
func (e *Engine) JoinGameByID(caller string, id uint64) error {
	return e.do(func(now time.Time) error {
		g, ok := e.games[id]
		if !ok {
			return ErrGameNotFound
		}
		if g.finished() {
			return ErrGameFinished
		}
		if g.started() {
			return ErrGameStarted
		}
		if g.Invited == "" || g.Invited != caller {
			return ErrNotInvited
		}
		if _, busy := e.active[caller]; busy {
			return ErrAlreadyPlaying
		}
		return e.join(g, caller, now)
	})
}

func (e *Engine) join(g *Game, caller string, now time.Time) error {
	if err := e.escrow.NewBetting(e.id, g.Players[0], caller, g.ID); err != nil {
		return err
	}
	g.Players[1] = caller
	g.phase = PhaseBetting
	e.active[caller] = g.ID
	e.removeOpen(g.ID)
	e.emit(g, events.PlayerJoined, now, map[string]string{"player": caller})
	return nil
}

// QuitGame withdraws an unjoined game. Once an opponent joined the game can
// only end through play, fold or AFK.
func (e *Engine) QuitGame(caller string, id uint64) error {
	return e.do(func(now time.Time) error {
		g, ok := e.games[id]
		if !ok {
			return ErrGameNotFound
		}
		if g.Players[0] != caller {
			return ErrNotCreator
		}
		if g.finished() {
			return ErrGameFinished
		}
		if g.started() {
			return ErrGameStarted
		}
		e.removeOpen(id)
		e.emit(g, events.PlayerDisconnected, now, map[string]string{"player": caller})
		e.finish(g, "", ReasonNoPlayerJoined, decimal.Zero, now)
		return nil
	})
}

func (e *Engine) removeOpen(id uint64) {
	for i, o := range e.open {
		if o == id {
			e.open = append(e.open[:i], e.open[i+1:]...)
			return
		}
	}
}

// Bet forwards a raise or call to the escrow. When the stakes become equal
// the CodeMaker of the first turn is chosen.
func (e *Engine) Bet(caller string, id uint64, amount decimal.Decimal) error {
	return e.do(func(now time.Time) error {
		g, err := e.member(id, caller)
		if err != nil {
			return err
		}
		if g.phase != PhaseBetting {
			return ErrWrongPhase
		}
		if err := e.checkAfk(g, now); err != nil {
			return err
		}
		agreed, err := e.escrow.Bet(e.id, g.ID, caller, amount)
		if err != nil {
			return err
		}
		g.afk = nil
		if agreed {
			g.codeMakers[0] = e.coin.Flip(g.ID, g.Players, now) & 1
			g.phase = PhaseCommit
			e.emitCodeMaker(g, now)
		}
		return nil
	})
}

// Fold abandons the betting round; the opponent takes the escrowed stake.
func (e *Engine) Fold(caller string, id uint64) error {
	return e.do(func(now time.Time) error {
		g, err := e.member(id, caller)
		if err != nil {
			return err
		}
		if g.phase != PhaseBetting {
			return ErrWrongPhase
		}
		if err := e.checkAfk(g, now); err != nil {
			return err
		}
		winner, total, err := e.escrow.Fold(e.id, g.ID, caller)
		if err != nil {
			return err
		}
		e.finish(g, winner, ReasonFold, total, now)
		return nil
	})
}

func (e *Engine) emitCodeMaker(g *Game, now time.Time) {
	e.emit(g, events.CodeMakerSelected, now, map[string]string{
		"codemaker":   g.codeMaker(),
		"codebreaker": g.codeBreaker(),
		"turn":        strconv.Itoa(g.turn),
	})
}
