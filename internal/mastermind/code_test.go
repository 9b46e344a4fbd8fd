package mastermind

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreExample(t *testing.T) {
	cc, nc := Score(ParseCode("RGBRG"), ParseCode("BRYGG"))
	assert.Equal(t, 1, cc)
	assert.Equal(t, 4, nc)

	cc, nc = Score(ParseCode("RGBRG"), ParseCode("RGBRG"))
	assert.Equal(t, 5, cc)
	assert.Equal(t, 0, nc)

	cc, nc = Score(ParseCode("RRRRR"), ParseCode("GGGGG"))
	assert.Zero(t, cc)
	assert.Zero(t, nc)
}

func TestScoreBounds(t *testing.T) {
	p := DefaultPalette()
	colors := p.Colors()
	rnd := rand.New(rand.NewSource(7))
	random := func() Code {
		c := make(Code, CodeLength)
		for i := range c {
			c[i] = colors[rnd.Intn(len(colors))]
		}
		return c
	}

	for i := 0; i < 2000; i++ {
		secret, guess := random(), random()
		cc, nc := Score(secret, guess)
		require.LessOrEqual(t, cc+nc, CodeLength, "%s vs %s", secret, guess)
		require.Equal(t, secret.Equal(guess), cc == CodeLength, "%s vs %s", secret, guess)
	}
}

func TestPalette(t *testing.T) {
	p := DefaultPalette()
	assert.Len(t, p.Colors(), 6)
	assert.True(t, p.Admits('P'))
	assert.False(t, p.Admits('C'))

	assert.NoError(t, p.Check(ParseCode("RGBYO")))
	assert.ErrorIs(t, p.Check(ParseCode("RGBY")), ErrGuessLength)
	assert.ErrorIs(t, p.Check(ParseCode("RGBYX")), ErrInvalidColor)

	wide, err := NewPalette(8)
	require.NoError(t, err)
	assert.True(t, wide.Admits('W'))

	_, err = NewPalette(5)
	assert.Error(t, err)
	_, err = NewPalette(9)
	assert.Error(t, err)
}

func TestCommit(t *testing.T) {
	secret := ParseCode("RGBRG")
	h := Commit(secret, "pepper")

	assert.Equal(t, h, Commit(ParseCode("RGBRG"), "pepper"))
	assert.NotEqual(t, h, Commit(secret, "salt"))
	assert.NotEqual(t, h, Commit(ParseCode("RGBRR"), "pepper"))

	parsed, err := ParseHash("0x" + h.Hex())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	_, err = ParseHash("abcd")
	assert.Error(t, err)
	_, err = ParseHash("zz")
	assert.Error(t, err)
}

func TestTurnPoints(t *testing.T) {
	miss := Entry{Guess: ParseCode("YYYYY"), Answered: true}
	hit := Entry{Guess: ParseCode("RGBRG"), CC: 5, Answered: true}

	assert.Equal(t, 1, TurnPoints([]Entry{hit}))
	assert.Equal(t, 3, TurnPoints([]Entry{miss, miss, hit}))
	assert.Equal(t, 8, TurnPoints([]Entry{miss, miss, miss, miss, miss}))
}

func TestKeccakCoinIsDeterministic(t *testing.T) {
	var c KeccakCoin
	players := [2]string{"alice", "bob"}
	at := time.Unix(1700000000, 0)

	a := c.Flip(1, players, at)
	assert.Equal(t, a, c.Flip(1, players, at))
	assert.Contains(t, []int{0, 1}, a)
	assert.Equal(t, 1, FixedCoin(3).Flip(0, players, at))
}
