package mastermind

import (
	"strconv"
	"time"

	"github.com/avvvet/mastermind-services/internal/events"
)

// PublishSecret records the CodeMaker's commitment for the current turn.
func (e *Engine) PublishSecret(caller string, id uint64, commitment Hash) error {
	return e.do(func(now time.Time) error {
		g, err := e.member(id, caller)
		if err != nil {
			return err
		}
		if g.phase != PhaseCommit {
			return ErrWrongPhase
		}
		if caller != g.codeMaker() {
			return ErrNotCodeMaker
		}
		if commitment.IsZero() {
			return ErrEmptyCommitment
		}
		if err := e.checkAfk(g, now); err != nil {
			return err
		}
		g.afk = nil
		g.commitment = commitment
		g.phase = PhaseGuess
		e.emit(g, events.SecretPublished, now, map[string]string{
			"commitment": commitment.Hex(),
			"turn":       strconv.Itoa(g.turn),
		})
		return nil
	})
}

// TryGuess submits the CodeBreaker's next guess.
func (e *Engine) TryGuess(caller string, id uint64, guess Code) error {
	return e.do(func(now time.Time) error {
		g, err := e.member(id, caller)
		if err != nil {
			return err
		}
		if g.phase == PhaseFeedback {
			return ErrAwaitingFeedback
		}
		if g.phase != PhaseGuess {
			return ErrWrongPhase
		}
		if caller != g.codeBreaker() {
			return ErrNotCodeBreaker
		}
		if err := e.palette.Check(guess); err != nil {
			return err
		}
		if err := e.checkAfk(g, now); err != nil {
			return err
		}
		g.afk = nil
		g.entries = append(g.entries, Entry{Guess: append(Code(nil), guess...)})
		g.phase = PhaseFeedback
		e.emit(g, events.GuessSubmitted, now, map[string]string{
			"guess": guess.String(),
			"index": strconv.Itoa(g.guess),
		})
		return nil
	})
}

// PublishFeedback scores the pending guess. A full match or the last allowed
// guess ends the guessing loop and the CodeMaker must reveal.
func (e *Engine) PublishFeedback(caller string, id uint64, cc, nc int) error {
	return e.do(func(now time.Time) error {
		g, err := e.member(id, caller)
		if err != nil {
			return err
		}
		if g.phase != PhaseFeedback {
			return ErrWrongPhase
		}
		if caller != g.codeMaker() {
			return ErrNotCodeMaker
		}
		if cc < 0 || nc < 0 || cc+nc > CodeLength {
			return ErrInvalidFeedback
		}
		if err := e.checkAfk(g, now); err != nil {
			return err
		}
		g.afk = nil
		entry := &g.entries[len(g.entries)-1]
		entry.CC, entry.NC, entry.Answered = cc, nc, true
		g.guess++
		e.emit(g, events.FeedbackPublished, now, map[string]string{
			"index": strconv.Itoa(g.guess - 1),
			"cc":    strconv.Itoa(cc),
			"nc":    strconv.Itoa(nc),
		})

		switch {
		case cc == CodeLength:
			g.phase = PhaseReveal
			e.emit(g, events.CodeBroken, now, map[string]string{"guesses": strconv.Itoa(g.guess)})
		case g.guess == GuessesPerTurn:
			g.phase = PhaseReveal
			e.emit(g, events.GuessesExhausted, now, nil)
		default:
			g.phase = PhaseGuess
		}
		return nil
	})
}

// RevealSecret discloses the secret of the turn. A secret that does not
// match the commitment ends the game in the CodeBreaker's favour; otherwise
// the CodeMaker scores and the dispute window opens.
func (e *Engine) RevealSecret(caller string, id uint64, secret Code, salt string) error {
	return e.do(func(now time.Time) error {
		g, err := e.member(id, caller)
		if err != nil {
			return err
		}
		if g.phase != PhaseReveal {
			return ErrWrongPhase
		}
		if caller != g.codeMaker() {
			return ErrNotCodeMaker
		}
		if err := e.checkAfk(g, now); err != nil {
			return err
		}

		if Commit(secret, salt) != g.commitment || e.palette.Check(secret) != nil {
			breaker := g.codeBreaker()
			total, err := e.escrow.Withdraw(e.id, g.ID, breaker)
			if err != nil {
				return err
			}
			e.emit(g, events.DishonestyDetected, now, map[string]string{
				"player": caller,
				"secret": secret.String(),
				"reason": ErrSecretMismatch.Error(),
			})
			e.finish(g, breaker, ReasonInvalidSecret, total, now)
			return nil
		}

		g.afk = nil
		g.secret = append(Code(nil), secret...)
		pts := TurnPoints(g.entries)
		g.points[g.codeMakers[g.turn]] += pts
		g.phase = PhaseDispute
		g.dispute = now.Add(e.disputeWindow)
		e.emit(g, events.DisputeWindowOpen, now, map[string]string{
			"secret":   secret.String(),
			"points":   strconv.Itoa(pts),
			"deadline": g.dispute.UTC().Format(time.RFC3339),
		})
		return nil
	})
}

// TurnPoints is what the CodeMaker earns for a turn: the 1-based index of the
// first full match, or GuessesPerTurn+UnbrokenBonus when the code held.
func TurnPoints(entries []Entry) int {
	for i, en := range entries {
		if en.Answered && en.CC == CodeLength {
			return i + 1
		}
	}
	return GuessesPerTurn + UnbrokenBonus
}

// StartDispute challenges the feedback given to one guess of the turn. The
// feedback is recomputed against the revealed secret; whoever was right
// takes the pot.
func (e *Engine) StartDispute(caller string, id uint64, ref int) error {
	return e.do(func(now time.Time) error {
		g, err := e.member(id, caller)
		if err != nil {
			return err
		}
		if g.phase != PhaseDispute {
			return ErrWrongPhase
		}
		if caller != g.codeBreaker() {
			return ErrNotCodeBreaker
		}
		if now.After(g.dispute) {
			return ErrDisputeWindowClosed
		}
		if ref < 0 || ref >= GuessesPerTurn || ref >= len(g.entries) {
			return ErrInvalidDispute
		}
		if err := e.checkAfk(g, now); err != nil {
			return err
		}

		entry := g.entries[ref]
		cc, nc := Score(g.secret, entry.Guess)
		cheated := cc != entry.CC || nc != entry.NC
		winner := g.codeMaker()
		if cheated {
			winner = g.codeBreaker()
		}
		total, err := e.escrow.Withdraw(e.id, g.ID, winner)
		if err != nil {
			return err
		}
		e.emit(g, events.DisputeResolved, now, map[string]string{
			"index":   strconv.Itoa(ref),
			"cheated": boolString(cheated),
			"winner":  winner,
		})
		e.finish(g, winner, ReasonDispute, total, now)
		return nil
	})
}

// ChangeTurn swaps roles once the dispute window passed. After the last turn
// it settles the game on points instead.
func (e *Engine) ChangeTurn(caller string, id uint64) error {
	return e.do(func(now time.Time) error {
		g, err := e.member(id, caller)
		if err != nil {
			return err
		}
		if g.phase != PhaseDispute {
			return ErrWrongPhase
		}
		if caller != g.codeMaker() {
			return ErrNotCodeMaker
		}
		if !now.After(g.dispute) {
			return ErrInDisputeWindow
		}
		if err := e.checkAfk(g, now); err != nil {
			return err
		}

		if g.turn == Turns-1 {
			return e.settle(g, now)
		}

		g.afk = nil
		prev := g.codeMakers[g.turn]
		g.turn++
		g.codeMakers[g.turn] = 1 - prev
		g.guess = 0
		g.entries = nil
		g.commitment = Hash{}
		g.secret = nil
		g.phase = PhaseCommit
		e.emit(g, events.NewTurn, now, map[string]string{"turn": strconv.Itoa(g.turn)})
		e.emitCodeMaker(g, now)
		return nil
	})
}

// settle pays the player with more points, or splits the pot on a tie.
func (e *Engine) settle(g *Game, now time.Time) error {
	p0, p1 := g.points[0], g.points[1]
	if p0 == p1 {
		total, err := e.escrow.WithdrawTie(e.id, g.ID)
		if err != nil {
			return err
		}
		g.tied = true
		e.finish(g, "", ReasonGameEnded, total, now)
		return nil
	}
	winner := g.Players[0]
	if p1 > p0 {
		winner = g.Players[1]
	}
	total, err := e.escrow.Withdraw(e.id, g.ID, winner)
	if err != nil {
		return err
	}
	e.finish(g, winner, ReasonGameEnded, total, now)
	return nil
}
