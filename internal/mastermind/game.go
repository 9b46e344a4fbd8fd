package mastermind

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	Turns          = 4
	GuessesPerTurn = 5
	CodeLength     = 5
	// UnbrokenBonus is added to GuessesPerTurn when the CodeBreaker never hits.
	UnbrokenBonus = 3
)

type Phase uint8

const (
	PhaseWaiting  Phase = iota // created, no opponent yet
	PhaseBetting               // both joined, stakes not agreed
	PhaseCommit                // CodeMaker must publish the secret hash
	PhaseGuess                 // CodeBreaker must guess
	PhaseFeedback              // CodeMaker must score the last guess
	PhaseReveal                // CodeMaker must reveal secret and salt
	PhaseDispute               // dispute window, then CodeMaker changes turn
	PhaseFinished
)

var phaseNames = [...]string{"waiting", "betting", "commit", "guess", "feedback", "reveal", "dispute", "finished"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

type EndingReason uint8

const (
	ReasonNone EndingReason = iota
	ReasonFold
	ReasonDispute
	ReasonInvalidSecret
	ReasonAfkRedeemed
	ReasonNoPlayerJoined
	ReasonGameEnded
	// ReasonRestarted closes a game the service could not resume; stakes go
	// back to their owners.
	ReasonRestarted
)

func (r EndingReason) String() string {
	switch r {
	case ReasonFold:
		return "Fold"
	case ReasonDispute:
		return "Dispute"
	case ReasonInvalidSecret:
		return "Invalid secret revealed"
	case ReasonAfkRedeemed:
		return "AFK redeemed"
	case ReasonNoPlayerJoined:
		return "No player joined"
	case ReasonGameEnded:
		return "Game ended"
	case ReasonRestarted:
		return "Service restarted"
	}
	return ""
}

// Entry is one guess of the active turn and the feedback published for it.
type Entry struct {
	Guess    Code
	CC       int
	NC       int
	Answered bool
}

type afk struct {
	emitter  string
	deadline time.Time
}

// Game is owned by the Engine; callers only ever see a Snapshot.
type Game struct {
	ID      uint64
	Players [2]string
	Invited string

	phase      Phase
	turn       int
	guess      int
	codeMakers [Turns]int // slot of the CodeMaker per turn, -1 until chosen
	commitment Hash
	secret     Code
	entries    []Entry
	points     [2]int

	tied    bool
	winner  string
	prize   decimal.Decimal
	reason  EndingReason
	afk     *afk
	dispute time.Time
}

func newGame(id uint64, creator string) *Game {
	g := &Game{ID: id, Players: [2]string{creator, ""}, prize: decimal.Zero}
	for i := range g.codeMakers {
		g.codeMakers[i] = -1
	}
	return g
}

func (g *Game) finished() bool { return g.phase == PhaseFinished }

func (g *Game) started() bool { return g.Players[1] != "" }

func (g *Game) slot(player string) int {
	switch {
	case player == "":
		return -1
	case player == g.Players[0]:
		return 0
	case player == g.Players[1]:
		return 1
	}
	return -1
}

func (g *Game) codeMaker() string {
	s := g.codeMakers[g.turn]
	if s < 0 {
		return ""
	}
	return g.Players[s]
}

func (g *Game) codeBreaker() string {
	s := g.codeMakers[g.turn]
	if s < 0 {
		return ""
	}
	return g.Players[1-s]
}

func (g *Game) opponent(player string) string {
	return g.Players[1-g.slot(player)]
}

// Snapshot is a read-only copy of a game.
type Snapshot struct {
	ID              uint64          `json:"id"`
	Players         []string        `json:"players"`
	Invited         string          `json:"invited,omitempty"`
	Phase           string          `json:"phase"`
	Turn            int             `json:"turn"`
	Guess           int             `json:"guess"`
	CodeMakers      []string        `json:"codemakers"`
	CodeMaker       string          `json:"codemaker,omitempty"`
	CodeBreaker     string          `json:"codebreaker,omitempty"`
	Commitment      string          `json:"commitment,omitempty"`
	Secret          string          `json:"secret,omitempty"`
	Entries         []SnapshotEntry `json:"entries"`
	Points          []int           `json:"points"`
	Stakes          []string        `json:"stakes,omitempty"` // per player slot, while in escrow
	Finished        bool            `json:"finished"`
	Tied            bool            `json:"tied"`
	Winner          string          `json:"winner,omitempty"`
	Prize           string          `json:"prize"`
	EndingReason    string          `json:"ending_reason,omitempty"`
	AfkEmitter      string          `json:"afk_emitter,omitempty"`
	AfkDeadline     *time.Time      `json:"afk_deadline,omitempty"`
	DisputeDeadline *time.Time      `json:"dispute_deadline,omitempty"`
}

type SnapshotEntry struct {
	Guess    string `json:"guess"`
	CC       int    `json:"cc"`
	NC       int    `json:"nc"`
	Answered bool   `json:"answered"`
}

func (g *Game) snapshot() Snapshot {
	s := Snapshot{
		ID:           g.ID,
		Players:      []string{g.Players[0], g.Players[1]},
		Invited:      g.Invited,
		Phase:        g.phase.String(),
		Turn:         g.turn,
		Guess:        g.guess,
		CodeMakers:   make([]string, Turns),
		CodeMaker:    g.codeMaker(),
		CodeBreaker:  g.codeBreaker(),
		Entries:      make([]SnapshotEntry, len(g.entries)),
		Points:       []int{g.points[0], g.points[1]},
		Finished:     g.finished(),
		Tied:         g.tied,
		Winner:       g.winner,
		Prize:        g.prize.String(),
		EndingReason: g.reason.String(),
	}
	for i, slot := range g.codeMakers {
		if slot >= 0 {
			s.CodeMakers[i] = g.Players[slot]
		}
	}
	if !g.commitment.IsZero() {
		s.Commitment = g.commitment.Hex()
	}
	if g.secret != nil {
		s.Secret = g.secret.String()
	}
	for i, e := range g.entries {
		s.Entries[i] = SnapshotEntry{Guess: e.Guess.String(), CC: e.CC, NC: e.NC, Answered: e.Answered}
	}
	if g.afk != nil {
		s.AfkEmitter = g.afk.emitter
		at := g.afk.deadline
		s.AfkDeadline = &at
	}
	if g.phase == PhaseDispute {
		at := g.dispute
		s.DisputeDeadline = &at
	}
	return s
}
