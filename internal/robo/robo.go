// Package robo is a computer opponent. It watches game events and answers
// with the commands an honest player would send: it calls raises up to a
// limit, commits random secrets, scores guesses truthfully, breaks codes with
// a consistent-candidate search and disputes feedback that turns out false.
package robo

import (
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avvvet/mastermind-services/internal/comm"
	"github.com/avvvet/mastermind-services/internal/events"
	"github.com/avvvet/mastermind-services/internal/mastermind"
)

// Action is a command the robot wants sent, optionally after a delay.
type Action struct {
	Type    string
	Command comm.Command
	After   time.Duration
}

type Config struct {
	Name     string
	Palette  mastermind.Palette
	MaxStake decimal.Decimal
	// JoinOpen makes the robot take open games, not only invitations.
	JoinOpen  bool
	JoinDelay time.Duration
}

type gameState struct {
	staked     decimal.Decimal
	secret     mastermind.Code
	salt       string
	candidates []mastermind.Code
	guesses    []mastermind.Code
	feedback   [][2]int
}

type Robot struct {
	cfg Config
	all []mastermind.Code

	mu    sync.Mutex
	rnd   *rand.Rand
	games map[uint64]*gameState
}

func New(cfg Config, seed int64) *Robot {
	if cfg.MaxStake.IsZero() {
		cfg.MaxStake = decimal.NewFromInt(10)
	}
	return &Robot{
		cfg:   cfg,
		all:   allCodes(cfg.Palette),
		rnd:   rand.New(rand.NewSource(seed)),
		games: make(map[uint64]*gameState),
	}
}

func (r *Robot) Name() string { return r.cfg.Name }

func allCodes(p mastermind.Palette) []mastermind.Code {
	colors := p.Colors()
	codes := []mastermind.Code{{}}
	for i := 0; i < mastermind.CodeLength; i++ {
		next := make([]mastermind.Code, 0, len(codes)*len(colors))
		for _, c := range codes {
			for _, col := range colors {
				code := make(mastermind.Code, len(c), len(c)+1)
				copy(code, c)
				next = append(next, append(code, col))
			}
		}
		codes = next
	}
	return codes
}

func (r *Robot) game(id uint64) *gameState {
	g, ok := r.games[id]
	if !ok {
		g = &gameState{staked: decimal.Zero}
		r.games[id] = g
	}
	return g
}

func (r *Robot) involved(e events.Event) bool {
	for _, p := range e.Players {
		if p == r.cfg.Name {
			return true
		}
	}
	return false
}

// Handle returns the robot's answer to one event.
func (r *Robot) Handle(e events.Event) []Action {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := e.Attributes
	me := r.cfg.Name
	switch e.Type {
	case events.GameCreated:
		if r.cfg.JoinOpen && a["creator"] != me {
			return []Action{{Type: "join-game", After: r.cfg.JoinDelay}}
		}
	case events.OpponentInvited:
		if a["opponent"] == me {
			return []Action{{Type: "join-game", Command: comm.Command{GameID: e.GameID}}}
		}
	}
	if !r.involved(e) {
		return nil
	}

	g := r.game(e.GameID)
	switch e.Type {
	case events.Raise, events.Call:
		if a["player"] == me {
			if amt, err := decimal.NewFromString(a["amount"]); err == nil {
				g.staked = g.staked.Add(amt)
			}
		}
		if e.Type == events.Raise && a["next"] == me {
			return r.answerRaise(e.GameID, g, a["raise"])
		}
	case events.BettingOpened:
		if a["next"] == me {
			return []Action{r.bet(e.GameID, decimal.NewFromInt(1))}
		}
	case events.CodeMakerSelected:
		g.guesses, g.feedback, g.secret = nil, nil, nil
		switch me {
		case a["codemaker"]:
			return []Action{r.commit(e.GameID, g)}
		case a["codebreaker"]:
			g.candidates = r.all
		}
	case events.SecretPublished:
		if g.secret == nil && g.candidates != nil {
			return []Action{r.guess(e.GameID, g)}
		}
	case events.GuessSubmitted:
		if g.secret != nil {
			cc, nc := mastermind.Score(g.secret, mastermind.ParseCode(a["guess"]))
			return []Action{{Type: "publish-feedback", Command: comm.Command{GameID: e.GameID, CC: cc, NC: nc}}}
		}
	case events.FeedbackPublished:
		return r.afterFeedback(e.GameID, g, a)
	case events.CodeBroken, events.GuessesExhausted:
		if g.secret != nil {
			return []Action{{Type: "reveal-secret", Command: comm.Command{GameID: e.GameID, Secret: g.secret.String(), Salt: g.salt}}}
		}
	case events.DisputeWindowOpen:
		return r.afterReveal(e, g)
	case events.GameEnded:
		delete(r.games, e.GameID)
	}
	return nil
}

func (r *Robot) answerRaise(id uint64, g *gameState, raise string) []Action {
	delta, err := decimal.NewFromString(raise)
	if err != nil || g.staked.Add(delta).GreaterThan(r.cfg.MaxStake) {
		return []Action{{Type: "fold", Command: comm.Command{GameID: id}}}
	}
	return []Action{r.bet(id, delta)}
}

func (r *Robot) bet(id uint64, amount decimal.Decimal) Action {
	return Action{Type: "bet", Command: comm.Command{GameID: id, Amount: amount.String()}}
}

func (r *Robot) commit(id uint64, g *gameState) Action {
	colors := r.cfg.Palette.Colors()
	g.secret = make(mastermind.Code, mastermind.CodeLength)
	for i := range g.secret {
		g.secret[i] = colors[r.rnd.Intn(len(colors))]
	}
	g.salt = uuid.NewString()
	h := mastermind.Commit(g.secret, g.salt)
	return Action{Type: "publish-secret", Command: comm.Command{GameID: id, Commitment: h.Hex()}}
}

func (r *Robot) guess(id uint64, g *gameState) Action {
	var next mastermind.Code
	if len(g.candidates) > 0 {
		next = g.candidates[0]
	} else {
		// feedback was inconsistent, the dispute comes after the reveal
		next = r.all[r.rnd.Intn(len(r.all))]
	}
	g.guesses = append(g.guesses, next)
	return Action{Type: "try-guess", Command: comm.Command{GameID: id, Guess: next.String()}}
}

func (r *Robot) afterFeedback(id uint64, g *gameState, a map[string]string) []Action {
	if g.secret != nil || len(g.guesses) == 0 {
		return nil
	}
	cc, _ := strconv.Atoi(a["cc"])
	nc, _ := strconv.Atoi(a["nc"])
	g.feedback = append(g.feedback, [2]int{cc, nc})

	last := g.guesses[len(g.guesses)-1]
	kept := g.candidates[:0:0]
	for _, c := range g.candidates {
		if x, y := mastermind.Score(c, last); x == cc && y == nc {
			kept = append(kept, c)
		}
	}
	g.candidates = kept

	if cc == mastermind.CodeLength || len(g.guesses) == mastermind.GuessesPerTurn {
		return nil
	}
	return []Action{r.guess(id, g)}
}

// afterReveal disputes the first false feedback as CodeBreaker, or changes
// the turn once the window passed as CodeMaker.
func (r *Robot) afterReveal(e events.Event, g *gameState) []Action {
	if g.secret != nil {
		wait := time.Second
		if deadline, err := time.Parse(time.RFC3339, e.Attributes["deadline"]); err == nil {
			wait += deadline.Sub(e.At)
		}
		return []Action{{Type: "change-turn", Command: comm.Command{GameID: e.GameID}, After: wait}}
	}

	secret := mastermind.ParseCode(e.Attributes["secret"])
	for i, guess := range g.guesses {
		if i >= len(g.feedback) {
			break
		}
		cc, nc := mastermind.Score(secret, guess)
		if cc != g.feedback[i][0] || nc != g.feedback[i][1] {
			return []Action{{Type: "start-dispute", Command: comm.Command{GameID: e.GameID, Ref: i}}}
		}
	}
	return nil
}
