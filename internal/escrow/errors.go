package escrow

import "github.com/avvvet/mastermind-services/internal/apperr"

var (
	ErrUnauthorized    = apperr.New(apperr.Authorization, "caller is not the ledger owner")
	ErrBetExists       = apperr.New(apperr.Identity, "bet index already used")
	ErrBetNotFound     = apperr.New(apperr.Identity, "bet does not exist")
	ErrNullPlayer      = apperr.New(apperr.Validation, "player address is null")
	ErrSamePlayer      = apperr.New(apperr.Validation, "players must differ")
	ErrNotYourTurn     = apperr.New(apperr.TurnOrder, "not your turn to bet")
	ErrZeroStake       = apperr.New(apperr.Validation, "stake must be greater than zero")
	ErrUnderCall       = apperr.New(apperr.Validation, "stake must at least match the opponent")
	ErrBetNotAgreed    = apperr.New(apperr.TurnOrder, "stakes are not agreed")
	ErrNotAParticipant = apperr.New(apperr.Authorization, "winner is not part of the bet")
)
