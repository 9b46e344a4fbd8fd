package mastermind

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/avvvet/mastermind-services/internal/events"
)

// checkAfk rejects any move once a raised AFK deadline has passed. The
// overdue player may still move before the deadline, which clears the AFK.
func (e *Engine) checkAfk(g *Game, now time.Time) error {
	if g.afk != nil && now.After(g.afk.deadline) {
		return ErrAfkElapsed
	}
	return nil
}

// mover returns the player expected to act next.
func (e *Engine) mover(g *Game, now time.Time) (string, error) {
	switch g.phase {
	case PhaseBetting:
		return e.escrow.NextMove(g.ID)
	case PhaseCommit, PhaseFeedback, PhaseReveal:
		return g.codeMaker(), nil
	case PhaseGuess:
		return g.codeBreaker(), nil
	case PhaseDispute:
		if !now.After(g.dispute) {
			return "", ErrInDisputeWindow
		}
		return g.codeMaker(), nil
	case PhaseFinished:
		return "", ErrGameFinished
	}
	return "", ErrNotStarted
}

// EmitAfk starts the clock on an opponent who holds the move.
func (e *Engine) EmitAfk(caller string, id uint64) error {
	return e.do(func(now time.Time) error {
		g, err := e.member(id, caller)
		if err != nil {
			return err
		}
		if g.afk != nil {
			return ErrAfkInProgress
		}
		mv, err := e.mover(g, now)
		if err != nil {
			return err
		}
		if mv == caller {
			return ErrYourTurn
		}
		g.afk = &afk{emitter: caller, deadline: now.Add(e.afkTimeout)}
		e.emit(g, events.AfkRaised, now, map[string]string{
			"player":   caller,
			"against":  mv,
			"deadline": g.afk.deadline.UTC().Format(time.RFC3339),
		})
		return nil
	})
}

// RedeemAfterAfk ends the game in the emitter's favour once the opponent let
// the AFK deadline pass without moving.
func (e *Engine) RedeemAfterAfk(caller string, id uint64) error {
	return e.do(func(now time.Time) error {
		g, err := e.member(id, caller)
		if err != nil {
			return err
		}
		if g.afk == nil {
			return ErrNoAfk
		}
		if g.afk.emitter != caller {
			return ErrNotAfkEmitter
		}
		mv, err := e.mover(g, now)
		if err != nil {
			return err
		}
		if mv == caller {
			return ErrYourTurn
		}
		if !now.After(g.afk.deadline) {
			return ErrAfkNotElapsed
		}

		var (
			winner = caller
			total  decimal.Decimal
		)
		if g.phase == PhaseBetting {
			// stakes were never agreed: the idle player folds
			winner, total, err = e.escrow.Fold(e.id, g.ID, mv)
		} else {
			total, err = e.escrow.Withdraw(e.id, g.ID, caller)
		}
		if err != nil {
			return err
		}
		e.emit(g, events.AfkRedeemed, now, map[string]string{
			"player": caller,
			"prize":  total.String(),
		})
		e.finish(g, winner, ReasonAfkRedeemed, total, now)
		return nil
	})
}
