// Package escrow custodies the stakes of two-player games and enforces the
// raise/call/fold order between them. It knows nothing about game rules and
// accepts calls from a single trusted owner only.
package escrow

import (
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"

	"github.com/avvvet/mastermind-services/internal/events"
)

// Round is the stake state of one game.
type Round struct {
	Players  [2]string
	Stakes   [2]decimal.Decimal
	NextMove string // empty once both stakes are equal and non-zero
}

// Agreed reports whether both players staked the same non-zero amount.
func (r *Round) Agreed() bool {
	return r.NextMove == "" && r.Stakes[0].IsPositive() && r.Stakes[0].Equal(r.Stakes[1])
}

// Total is the combined stake held for the round.
func (r *Round) Total() decimal.Decimal {
	return r.Stakes[0].Add(r.Stakes[1])
}

func (r *Round) slot(who string) int {
	switch who {
	case r.Players[0]:
		return 0
	case r.Players[1]:
		return 1
	}
	return -1
}

// Ledger holds the stake rounds of all games, keyed by game index.
type Ledger struct {
	owner string
	sink  events.Sink
	clock clock.Clock

	mu     sync.Mutex
	seq    uint64
	rounds map[uint64]*Round
	used   map[uint64]struct{}
}

// NewLedger creates a ledger that only accepts calls from owner.
func NewLedger(owner string, sink events.Sink, clk clock.Clock) *Ledger {
	if sink == nil {
		sink = events.Discard
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Ledger{
		owner:  owner,
		sink:   sink,
		clock:  clk,
		rounds: make(map[uint64]*Round),
		used:   make(map[uint64]struct{}),
	}
}

// NewBetting opens an empty round for p0 and p1 under idx; p0 bets first.
func (l *Ledger) NewBetting(caller, p0, p1 string, idx uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrUnauthorized
	}
	if _, ok := l.used[idx]; ok {
		return ErrBetExists
	}
	if p0 == "" || p1 == "" {
		return ErrNullPlayer
	}
	if p0 == p1 {
		return ErrSamePlayer
	}

	l.used[idx] = struct{}{}
	l.rounds[idx] = &Round{
		Players:  [2]string{p0, p1},
		Stakes:   [2]decimal.Decimal{decimal.Zero, decimal.Zero},
		NextMove: p0,
	}
	l.emit(events.BettingOpened, idx, [2]string{p0, p1}, map[string]string{"next": p0})
	return nil
}

// Bet adds amount to who's stake. Matching the opponent exactly agrees the
// round; anything larger re-raises and hands the move to the opponent.
// It returns true when the round became agreed.
func (l *Ledger) Bet(caller string, idx uint64, who string, amount decimal.Decimal) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.round(caller, idx)
	if err != nil {
		return false, err
	}
	if r.NextMove == "" || who != r.NextMove {
		return false, ErrNotYourTurn
	}
	if !amount.IsPositive() {
		return false, ErrZeroStake
	}

	me := r.slot(who)
	other := 1 - me
	total := r.Stakes[me].Add(amount)
	if r.Stakes[other].IsPositive() && total.LessThan(r.Stakes[other]) {
		return false, ErrUnderCall
	}

	r.Stakes[me] = total
	if total.Equal(r.Stakes[other]) {
		r.NextMove = ""
		l.emit(events.Call, idx, r.Players, map[string]string{
			"player": who,
			"amount": amount.String(),
			"pot":    r.Total().String(),
		})
		return true, nil
	}

	r.NextMove = r.Players[other]
	l.emit(events.Raise, idx, r.Players, map[string]string{
		"player": who,
		"amount": amount.String(),
		"raise":  total.Sub(r.Stakes[other]).String(),
		"next":   r.NextMove,
	})
	return false, nil
}

// Fold gives up the round: the opponent receives the combined stake and the
// index stops existing. It returns the opponent and the amount paid.
func (l *Ledger) Fold(caller string, idx uint64, who string) (string, decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.round(caller, idx)
	if err != nil {
		return "", decimal.Zero, err
	}
	if r.NextMove == "" || who != r.NextMove {
		return "", decimal.Zero, ErrNotYourTurn
	}

	winner := r.Players[1-r.slot(who)]
	total := r.Total()
	l.emit(events.Fold, idx, r.Players, map[string]string{"player": who})
	l.pay(idx, r, winner, total)
	l.destroy(idx)
	return winner, total, nil
}

// Withdraw pays the whole agreed stake to winner and closes the round.
func (l *Ledger) Withdraw(caller string, idx uint64, winner string) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.round(caller, idx)
	if err != nil {
		return decimal.Zero, err
	}
	if !r.Agreed() {
		return decimal.Zero, ErrBetNotAgreed
	}
	if r.slot(winner) < 0 {
		return decimal.Zero, ErrNotAParticipant
	}

	total := r.Total()
	l.pay(idx, r, winner, total)
	l.destroy(idx)
	return total, nil
}

// WithdrawTie returns each player's stake and closes the round.
func (l *Ledger) WithdrawTie(caller string, idx uint64) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, err := l.round(caller, idx)
	if err != nil {
		return decimal.Zero, err
	}
	if !r.Agreed() {
		return decimal.Zero, ErrBetNotAgreed
	}

	total := r.Total()
	l.pay(idx, r, r.Players[0], r.Stakes[0])
	l.pay(idx, r, r.Players[1], r.Stakes[1])
	l.destroy(idx)
	return total, nil
}

// IsBetCreated reports whether idx has a live round.
func (l *Ledger) IsBetCreated(idx uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.rounds[idx]
	return ok
}

// IsBetFinished reports whether the round under idx has agreed stakes.
func (l *Ledger) IsBetFinished(idx uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rounds[idx]
	return ok && r.Agreed()
}

// NextMove returns the player expected to bet next, empty when agreed.
func (l *Ledger) NextMove(idx uint64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rounds[idx]
	if !ok {
		return "", ErrBetNotFound
	}
	return r.NextMove, nil
}

// Round returns a copy of the round state.
func (l *Ledger) Round(idx uint64) (Round, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rounds[idx]
	if !ok {
		return Round{}, ErrBetNotFound
	}
	return *r, nil
}

func (l *Ledger) round(caller string, idx uint64) (*Round, error) {
	if caller != l.owner {
		return nil, ErrUnauthorized
	}
	r, ok := l.rounds[idx]
	if !ok {
		return nil, ErrBetNotFound
	}
	return r, nil
}

func (l *Ledger) pay(idx uint64, r *Round, to string, amount decimal.Decimal) {
	l.emit(events.Payout, idx, r.Players, map[string]string{
		"player": to,
		"amount": amount.String(),
	})
}

func (l *Ledger) destroy(idx uint64) {
	r := l.rounds[idx]
	r.Stakes = [2]decimal.Decimal{decimal.Zero, decimal.Zero}
	r.Players = [2]string{}
	r.NextMove = ""
	delete(l.rounds, idx)
}

func (l *Ledger) emit(typ string, idx uint64, players [2]string, attrs map[string]string) {
	l.seq++
	l.sink.Emit(events.Event{
		Type:       typ,
		GameID:     idx,
		Players:    []string{players[0], players[1]},
		At:         l.clock.Now(),
		Seq:        l.seq,
		Attributes: attrs,
	})
}
