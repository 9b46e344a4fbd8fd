package mastermind

import "github.com/avvvet/mastermind-services/internal/apperr"

var (
	ErrGameNotFound = apperr.New(apperr.Identity, "game not found")
	ErrNoOpenGame   = apperr.New(apperr.Identity, "no open game to join")

	ErrAlreadyPlaying = apperr.New(apperr.Authorization, "player already in an unfinished game")
	ErrNotInvited     = apperr.New(apperr.Authorization, "player was not invited to this game")
	ErrNotCreator     = apperr.New(apperr.Authorization, "only the creator may quit")
	ErrNotAMember     = apperr.New(apperr.Authorization, "player is not part of this game")
	ErrNotCodeMaker   = apperr.New(apperr.Authorization, "only the CodeMaker may do this")
	ErrNotCodeBreaker = apperr.New(apperr.Authorization, "only the CodeBreaker may do this")
	ErrNotAfkEmitter  = apperr.New(apperr.Authorization, "player did not raise the AFK")

	ErrGameFinished        = apperr.New(apperr.TurnOrder, "game already finished")
	ErrGameStarted         = apperr.New(apperr.TurnOrder, "game already has two players")
	ErrNotStarted          = apperr.New(apperr.TurnOrder, "game has not started")
	ErrWrongPhase          = apperr.New(apperr.TurnOrder, "move not allowed in the current phase")
	ErrAwaitingFeedback    = apperr.New(apperr.TurnOrder, "previous guess awaits feedback")
	ErrNotYourTurn         = apperr.New(apperr.TurnOrder, "not your turn")
	ErrYourTurn            = apperr.New(apperr.TurnOrder, "it is your own turn to move")
	ErrAfkInProgress       = apperr.New(apperr.TurnOrder, "AFK already in progress")
	ErrNoAfk               = apperr.New(apperr.TurnOrder, "no AFK was raised")
	ErrAfkNotElapsed       = apperr.New(apperr.TurnOrder, "AFK time has not elapsed")
	ErrAfkElapsed          = apperr.New(apperr.TurnOrder, "AFK elapsed, no move")
	ErrInDisputeWindow     = apperr.New(apperr.TurnOrder, "dispute window is open")
	ErrDisputeWindowClosed = apperr.New(apperr.TurnOrder, "dispute window closed")

	ErrNullPlayer      = apperr.New(apperr.Validation, "player address is null")
	ErrNullOpponent    = apperr.New(apperr.Validation, "opponent address is null")
	ErrSelfOpponent    = apperr.New(apperr.Validation, "cannot invite yourself")
	ErrGuessLength     = apperr.New(apperr.Validation, "code must have exactly 5 colors")
	ErrInvalidColor    = apperr.New(apperr.Validation, "color is not in the palette")
	ErrInvalidFeedback = apperr.New(apperr.Validation, "feedback counts out of range")
	ErrInvalidDispute  = apperr.New(apperr.Validation, "dispute references a guess that was not made")
	ErrEmptyCommitment = apperr.New(apperr.Validation, "commitment is empty")

	ErrSecretMismatch = apperr.New(apperr.Integrity, "revealed secret does not match the commitment")
)
