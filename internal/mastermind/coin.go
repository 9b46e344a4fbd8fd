package mastermind

import (
	"encoding/binary"
	"time"

	"golang.org/x/crypto/sha3"
)

// Coin picks the player slot (0 or 1) that makes the code on the first turn.
type Coin interface {
	Flip(gameID uint64, players [2]string, at time.Time) int
}

// KeccakCoin derives the slot from the parity of Keccak-256 over the game id,
// both players and the time the stakes were agreed. Anyone holding those
// values can recompute the choice.
type KeccakCoin struct{}

func (KeccakCoin) Flip(gameID uint64, players [2]string, at time.Time) int {
	var buf [8]byte
	k := sha3.NewLegacyKeccak256()
	binary.BigEndian.PutUint64(buf[:], gameID)
	k.Write(buf[:])
	k.Write([]byte(players[0]))
	k.Write([]byte(players[1]))
	binary.BigEndian.PutUint64(buf[:], uint64(at.UnixNano()))
	k.Write(buf[:])
	sum := k.Sum(nil)
	return int(sum[len(sum)-1] & 1)
}

// FixedCoin always lands on the same slot.
type FixedCoin int

func (c FixedCoin) Flip(uint64, [2]string, time.Time) int { return int(c) & 1 }
