package mastermind

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Color is the one-byte code of a palette color: the first byte of its name.
type Color byte

// Code is a sequence of colors, used for both secrets and guesses.
type Code []Color

// ParseCode turns "RGBRG" into a Code. It checks neither length nor palette.
func ParseCode(s string) Code {
	c := make(Code, len(s))
	for i := 0; i < len(s); i++ {
		c[i] = Color(s[i])
	}
	return c
}

func (c Code) String() string {
	var b strings.Builder
	for _, col := range c {
		b.WriteByte(byte(col))
	}
	return b.String()
}

func (c Code) Equal(o Code) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

// colorNames is the full ordered palette; a Palette admits a prefix of it.
var colorNames = []string{"Red", "Green", "Blue", "Yellow", "Orange", "Purple", "Cyan", "White"}

const (
	MinPaletteSize = 6
	MaxPaletteSize = 8
)

// Palette is the set of admissible colors.
type Palette struct {
	colors []Color
}

// NewPalette admits the first size colors of the full palette.
func NewPalette(size int) (Palette, error) {
	if size < MinPaletteSize || size > MaxPaletteSize {
		return Palette{}, fmt.Errorf("palette size %d out of range [%d, %d]", size, MinPaletteSize, MaxPaletteSize)
	}
	p := Palette{colors: make([]Color, size)}
	for i := 0; i < size; i++ {
		p.colors[i] = Color(colorNames[i][0])
	}
	return p, nil
}

// DefaultPalette admits Red, Green, Blue, Yellow, Orange and Purple.
func DefaultPalette() Palette {
	p, _ := NewPalette(MinPaletteSize)
	return p
}

func (p Palette) Colors() []Color {
	out := make([]Color, len(p.colors))
	copy(out, p.colors)
	return out
}

func (p Palette) Admits(c Color) bool {
	for _, col := range p.colors {
		if col == c {
			return true
		}
	}
	return false
}

// Check validates length and colors of a code.
func (p Palette) Check(c Code) error {
	if len(c) != CodeLength {
		return ErrGuessLength
	}
	for _, col := range c {
		if !p.Admits(col) {
			return ErrInvalidColor
		}
	}
	return nil
}

// Score computes the feedback for guess against secret. cc counts exact
// matches. nc counts the secret positions that are not exact matches whose
// color shows up at some non-exact guess position.
func Score(secret, guess Code) (cc, nc int) {
	n := len(secret)
	if len(guess) < n {
		n = len(guess)
	}
	exact := make([]bool, n)
	for i := 0; i < n; i++ {
		if secret[i] == guess[i] {
			exact[i] = true
			cc++
		}
	}
	for j := 0; j < n; j++ {
		if exact[j] {
			continue
		}
		for i := 0; i < n; i++ {
			if !exact[i] && guess[i] == secret[j] {
				nc++
				break
			}
		}
	}
	return cc, nc
}

// Hash is a Keccak-256 commitment.
type Hash [32]byte

func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

func (h Hash) IsZero() bool { return h == Hash{} }

// ParseHash decodes a hex commitment, with or without a 0x prefix.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return h, fmt.Errorf("decode commitment: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("commitment must be %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Commit hashes the secret colors followed by the salt.
func Commit(secret Code, salt string) Hash {
	k := sha3.NewLegacyKeccak256()
	for _, c := range secret {
		k.Write([]byte{byte(c)})
	}
	k.Write([]byte(salt))
	var h Hash
	copy(h[:], k.Sum(nil))
	return h
}
