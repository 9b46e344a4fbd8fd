// Package apperr classifies rejected calls. Every rejection carries a Kind so
// transports can map it without string matching.
package apperr

import "errors"

type Kind uint8

const (
	Internal      Kind = iota
	Identity           // game or escrow index not found, duplicate index
	Authorization      // not a member, wrong role, untrusted caller
	TurnOrder          // not your move, finished, AFK or dispute window elapsed
	Validation         // malformed guess, bad reference, bad stake, bad opponent
	Integrity          // revealed secret does not match the commitment
)

func (k Kind) String() string {
	switch k {
	case Identity:
		return "identity"
	case Authorization:
		return "authorization"
	case TurnOrder:
		return "turn-order"
	case Validation:
		return "validation"
	case Integrity:
		return "integrity"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	Msg  string
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func (e *Error) Error() string { return e.Msg }

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
