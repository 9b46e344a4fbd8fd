package robo

import (
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/mastermind-services/internal/comm"
	"github.com/avvvet/mastermind-services/internal/escrow"
	"github.com/avvvet/mastermind-services/internal/events"
	"github.com/avvvet/mastermind-services/internal/mastermind"
)

const engineID = "engine"

type table struct {
	t      *testing.T
	eng    *mastermind.Engine
	rec    *events.Recorder
	clk    *clock.Mock
	robots []*Robot
	cursor int
}

func newTable(t *testing.T, robots ...*Robot) *table {
	rec := &events.Recorder{}
	clk := clock.NewMock()
	eng := mastermind.NewEngine(mastermind.Options{
		ID:     engineID,
		Escrow: escrow.NewLedger(engineID, rec, clk),
		Sink:   rec,
		Clock:  clk,
		Coin:   mastermind.FixedCoin(0),
	})
	return &table{t: t, eng: eng, rec: rec, clk: clk, robots: robots}
}

func robot(name string, joinOpen bool) *Robot {
	return New(Config{Name: name, Palette: mastermind.DefaultPalette(), JoinOpen: joinOpen}, 1)
}

// pump feeds every new event to the robots and plays their answers until
// nothing new happens.
func (tb *table) pump() {
	tb.t.Helper()
	for {
		all := tb.rec.Events()
		if tb.cursor == len(all) {
			return
		}
		e := all[tb.cursor]
		tb.cursor++
		for _, r := range tb.robots {
			for _, a := range r.Handle(e) {
				tb.play(r.Name(), a)
			}
		}
	}
}

func (tb *table) play(name string, a Action) {
	tb.t.Helper()
	tb.clk.Add(a.After)
	c := a.Command
	var err error
	switch a.Type {
	case "join-game":
		if c.GameID == 0 {
			_, err = tb.eng.JoinGame(name)
		} else {
			err = tb.eng.JoinGameByID(name, c.GameID)
		}
	case "bet":
		err = tb.eng.Bet(name, c.GameID, decimal.RequireFromString(c.Amount))
	case "fold":
		err = tb.eng.Fold(name, c.GameID)
	case "publish-secret":
		h, perr := mastermind.ParseHash(c.Commitment)
		require.NoError(tb.t, perr)
		err = tb.eng.PublishSecret(name, c.GameID, h)
	case "try-guess":
		err = tb.eng.TryGuess(name, c.GameID, mastermind.ParseCode(c.Guess))
	case "publish-feedback":
		err = tb.eng.PublishFeedback(name, c.GameID, c.CC, c.NC)
	case "reveal-secret":
		err = tb.eng.RevealSecret(name, c.GameID, mastermind.ParseCode(c.Secret), c.Salt)
	case "start-dispute":
		err = tb.eng.StartDispute(name, c.GameID, c.Ref)
	case "change-turn":
		err = tb.eng.ChangeTurn(name, c.GameID)
	default:
		tb.t.Fatalf("unexpected action %s", a.Type)
	}
	require.NoError(tb.t, err, "%s by %s", a.Type, name)
}

func TestRobotsPlayWholeGame(t *testing.T) {
	tb := newTable(t, robot("r1", false), robot("r2", true))

	id, err := tb.eng.CreateGame("r1")
	require.NoError(t, err)
	tb.pump()

	s, err := tb.eng.Game(id)
	require.NoError(t, err)
	assert.True(t, s.Finished)
	assert.Equal(t, mastermind.ReasonGameEnded.String(), s.EndingReason)
	assert.Equal(t, mastermind.Turns, s.Turn+1)
	assert.Len(t, tb.rec.OfType(events.DisputeWindowOpen), mastermind.Turns)
	assert.Empty(t, tb.rec.OfType(events.DisputeResolved))
	assert.Empty(t, tb.rec.OfType(events.DishonestyDetected))

	paid := decimal.Zero
	for _, e := range tb.rec.OfType(events.Payout) {
		paid = paid.Add(decimal.RequireFromString(e.Attributes["amount"]))
	}
	assert.True(t, paid.Equal(decimal.NewFromInt(2)), "paid %s", paid)
}

func TestRobotDisputesFalseFeedback(t *testing.T) {
	tb := newTable(t, robot("r2", true))
	secret, salt := mastermind.ParseCode("RGBRG"), "pepper"

	id, err := tb.eng.CreateGame("alice")
	require.NoError(t, err)
	tb.pump()
	require.NoError(t, tb.eng.Bet("alice", id, decimal.NewFromInt(3)))
	tb.pump()

	s, err := tb.eng.Game(id)
	require.NoError(t, err)
	require.Equal(t, "commit", s.Phase)
	require.Equal(t, "alice", s.CodeMaker)

	require.NoError(t, tb.eng.PublishSecret("alice", id, mastermind.Commit(secret, salt)))
	tb.pump()
	for k := 0; k < mastermind.GuessesPerTurn; k++ {
		require.NoError(t, tb.eng.PublishFeedback("alice", id, 0, 0))
		tb.pump()
	}
	require.NoError(t, tb.eng.RevealSecret("alice", id, secret, salt))
	tb.pump()

	resolved := tb.rec.OfType(events.DisputeResolved)
	require.Len(t, resolved, 1)
	assert.Equal(t, "r2", resolved[0].Attributes["winner"])
	assert.Equal(t, "true", resolved[0].Attributes["cheated"])

	s, err = tb.eng.Game(id)
	require.NoError(t, err)
	assert.True(t, s.Finished)
	assert.Equal(t, "r2", s.Winner)
}

func TestRobotFoldsAboveMaxStake(t *testing.T) {
	r := New(Config{Name: "r2", Palette: mastermind.DefaultPalette(), MaxStake: decimal.NewFromInt(5)}, 1)
	raise := func(amount string) []Action {
		return r.Handle(events.Event{
			Type:       events.Raise,
			GameID:     7,
			Players:    []string{"alice", "r2"},
			Attributes: map[string]string{"player": "alice", "amount": amount, "raise": amount, "next": "r2"},
		})
	}

	acts := raise("4")
	require.Len(t, acts, 1)
	assert.Equal(t, "bet", acts[0].Type)
	assert.Equal(t, "4", acts[0].Command.Amount)

	// the robot's own call is reported back before the next raise
	r.Handle(events.Event{
		Type:       events.Call,
		GameID:     7,
		Players:    []string{"alice", "r2"},
		Attributes: map[string]string{"player": "r2", "amount": "4"},
	})

	acts = raise("2")
	require.Len(t, acts, 1)
	assert.Equal(t, "fold", acts[0].Type)
	assert.Equal(t, comm.Command{GameID: 7}, acts[0].Command)
}

func TestRobotIgnoresOtherGames(t *testing.T) {
	r := robot("r1", false)
	assert.Empty(t, r.Handle(events.Event{
		Type:       events.CodeMakerSelected,
		GameID:     3,
		Players:    []string{"alice", "bob"},
		Attributes: map[string]string{"codemaker": "alice", "codebreaker": "bob"},
	}))
	assert.Empty(t, r.Handle(events.Event{Type: events.GameCreated, GameID: 4, Attributes: map[string]string{"creator": "alice"}}))

	acts := r.Handle(events.Event{Type: events.OpponentInvited, GameID: 5, Attributes: map[string]string{"opponent": "r1"}})
	require.Len(t, acts, 1)
	assert.Equal(t, "join-game", acts[0].Type)
	assert.Equal(t, uint64(5), acts[0].Command.GameID)
}

func TestAllCodesCoversPalette(t *testing.T) {
	codes := allCodes(mastermind.DefaultPalette())
	assert.Len(t, codes, 6*6*6*6*6)
	for _, c := range codes[:10] {
		assert.NoError(t, mastermind.DefaultPalette().Check(c))
	}
}
