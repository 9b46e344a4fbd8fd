package mastermind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/mastermind-services/internal/escrow"
	"github.com/avvvet/mastermind-services/internal/events"
)

func TestCreateAndJoinOpenGame(t *testing.T) {
	h := newHarness(t)

	_, err := h.eng.JoinGame(bob)
	assert.ErrorIs(t, err, ErrNoOpenGame)
	_, err = h.eng.CreateGame("")
	assert.ErrorIs(t, err, ErrNullPlayer)

	id, err := h.eng.CreateGame(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, []uint64{1}, h.eng.OpenGames())

	_, err = h.eng.CreateGame(alice)
	assert.ErrorIs(t, err, ErrAlreadyPlaying)
	assert.ErrorIs(t, h.eng.TryGuess(alice, id, secret), ErrNotStarted)

	joined, err := h.eng.JoinGame(bob)
	require.NoError(t, err)
	assert.Equal(t, id, joined)
	assert.Empty(t, h.eng.OpenGames())
	assert.True(t, h.ledger.IsBetCreated(id))

	s := h.snap(id)
	assert.Equal(t, []string{alice, bob}, s.Players)
	assert.Equal(t, "betting", s.Phase)

	_, err = h.eng.JoinGame("carol")
	assert.ErrorIs(t, err, ErrNoOpenGame)
}

func TestJoinOldestOpenGame(t *testing.T) {
	h := newHarness(t)
	first, err := h.eng.CreateGame("p1")
	require.NoError(t, err)
	second, err := h.eng.CreateGame("p2")
	require.NoError(t, err)

	id, err := h.eng.JoinGame("p3")
	require.NoError(t, err)
	assert.Equal(t, first, id)
	assert.Equal(t, []uint64{second}, h.eng.OpenGames())
}

func TestInvitedGame(t *testing.T) {
	h := newHarness(t)

	_, err := h.eng.CreateGameWith(alice, "")
	assert.ErrorIs(t, err, ErrNullOpponent)
	_, err = h.eng.CreateGameWith(alice, alice)
	assert.ErrorIs(t, err, ErrSelfOpponent)

	id, err := h.eng.CreateGameWith(alice, bob)
	require.NoError(t, err)
	assert.Empty(t, h.eng.OpenGames())
	assert.Len(t, h.rec.OfType(events.OpponentInvited), 1)

	_, err = h.eng.JoinGame(bob)
	assert.ErrorIs(t, err, ErrNoOpenGame)
	assert.ErrorIs(t, h.eng.JoinGameByID("carol", id), ErrNotInvited)
	assert.ErrorIs(t, h.eng.JoinGameByID(bob, 99), ErrGameNotFound)
	require.NoError(t, h.eng.JoinGameByID(bob, id))
	assert.ErrorIs(t, h.eng.JoinGameByID(bob, id), ErrGameStarted)

	assert.Equal(t, bob, h.snap(id).Invited)
}

func TestQuitGame(t *testing.T) {
	h := newHarness(t)
	id, err := h.eng.CreateGame(alice)
	require.NoError(t, err)

	assert.ErrorIs(t, h.eng.QuitGame(bob, id), ErrNotCreator)
	require.NoError(t, h.eng.QuitGame(alice, id))
	assert.ErrorIs(t, h.eng.QuitGame(alice, id), ErrGameFinished)

	s := h.snap(id)
	assert.True(t, s.Finished)
	assert.Equal(t, "No player joined", s.EndingReason)
	assert.Empty(t, h.eng.OpenGames())

	_, err = h.eng.CreateGame(alice)
	assert.NoError(t, err)
}

func TestQuitAfterJoinRejected(t *testing.T) {
	h := newHarness(t)
	id := h.start(1)
	assert.ErrorIs(t, h.eng.QuitGame(alice, id), ErrGameStarted)
}

func TestUntrustedEngineCannotOpenBetting(t *testing.T) {
	ledger := escrow.NewLedger("someone-else", nil, nil)
	eng := NewEngine(Options{ID: engineID, Escrow: ledger})

	id, err := eng.CreateGame(alice)
	require.NoError(t, err)
	_, err = eng.JoinGame(bob)
	assert.ErrorIs(t, err, escrow.ErrUnauthorized)

	assert.Equal(t, []uint64{id}, eng.OpenGames())
	_, busy := eng.ActiveGame(bob)
	assert.False(t, busy)
}

func TestCoinPicksFirstCodeMaker(t *testing.T) {
	h := newHarness(t)
	h.eng.coin = FixedCoin(1)
	id := h.start(1)

	s := h.snap(id)
	assert.Equal(t, bob, s.CodeMaker)
	require.Len(t, h.rec.OfType(events.CodeMakerSelected), 1)
}
