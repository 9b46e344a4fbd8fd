package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/mastermind-services/internal/apperr"
	"github.com/avvvet/mastermind-services/internal/mastermind"
)

var ErrBadAmount = apperr.New(apperr.Validation, "amount is not a decimal number")

// SnapshotStore persists game snapshots; store.GameStore implements it.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap mastermind.Snapshot) error
	GetSnapshot(ctx context.Context, id uint64) (*mastermind.Snapshot, error)
	GamesByPlayer(ctx context.Context, player string, limit int) ([]mastermind.Snapshot, error)
	Unfinished(ctx context.Context) ([]mastermind.Snapshot, error)
}

// Funds guards stakes against player balances; BalanceService implements it.
type Funds interface {
	Reserve(ctx context.Context, player string, amount decimal.Decimal) (release func(), err error)
	Refund(ctx context.Context, id uint64) (decimal.Decimal, error)
}

// GameService runs commands against the engine and persists the resulting
// snapshot.
type GameService struct {
	engine    *mastermind.Engine
	gameStore SnapshotStore
	funds     Funds
}

func NewGameService(engine *mastermind.Engine, gameStore SnapshotStore, funds Funds) *GameService {
	return &GameService{engine: engine, gameStore: gameStore, funds: funds}
}

func (s *GameService) Engine() *mastermind.Engine { return s.engine }

// apply runs cmd and saves the snapshot of game id when it succeeds.
func (s *GameService) apply(ctx context.Context, id uint64, cmd func() error) (mastermind.Snapshot, error) {
	if err := cmd(); err != nil {
		return mastermind.Snapshot{}, err
	}
	return s.persist(ctx, id)
}

// persist saves the current snapshot of a game. A failed save is logged; the
// engine state already moved on.
func (s *GameService) persist(ctx context.Context, id uint64) (mastermind.Snapshot, error) {
	snap, err := s.engine.Game(id)
	if err != nil {
		return mastermind.Snapshot{}, err
	}
	if err := s.gameStore.SaveSnapshot(ctx, snap); err != nil {
		log.Errorf("Error [GameService.SaveSnapshot] game %d: %s", id, err)
	}
	return snap, nil
}

// CreateGame opens a game, targeted when opponent is set.
func (s *GameService) CreateGame(ctx context.Context, player, opponent string) (mastermind.Snapshot, error) {
	var (
		id  uint64
		err error
	)
	if opponent == "" {
		id, err = s.engine.CreateGame(player)
	} else {
		id, err = s.engine.CreateGameWith(player, opponent)
	}
	if err != nil {
		return mastermind.Snapshot{}, err
	}
	return s.persist(ctx, id)
}

// JoinGame joins game id, or the oldest open game when id is 0.
func (s *GameService) JoinGame(ctx context.Context, player string, id uint64) (mastermind.Snapshot, error) {
	if id != 0 {
		return s.apply(ctx, id, func() error { return s.engine.JoinGameByID(player, id) })
	}
	joined, err := s.engine.JoinGame(player)
	if err != nil {
		return mastermind.Snapshot{}, err
	}
	return s.persist(ctx, joined)
}

func (s *GameService) QuitGame(ctx context.Context, player string, id uint64) (mastermind.Snapshot, error) {
	return s.apply(ctx, id, func() error { return s.engine.QuitGame(player, id) })
}

// Bet reserves the amount from the player's balance before forwarding the
// stake, so stakes still on their way to the books count against it too.
func (s *GameService) Bet(ctx context.Context, player string, id uint64, amount string) (mastermind.Snapshot, error) {
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return mastermind.Snapshot{}, ErrBadAmount
	}
	if s.funds == nil || !amt.IsPositive() {
		return s.apply(ctx, id, func() error { return s.engine.Bet(player, id, amt) })
	}

	release, err := s.funds.Reserve(ctx, player, amt)
	if err != nil {
		return mastermind.Snapshot{}, err
	}
	snap, err := s.apply(ctx, id, func() error { return s.engine.Bet(player, id, amt) })
	if err != nil {
		release()
	}
	return snap, err
}

func (s *GameService) Fold(ctx context.Context, player string, id uint64) (mastermind.Snapshot, error) {
	return s.apply(ctx, id, func() error { return s.engine.Fold(player, id) })
}

func (s *GameService) EmitAfk(ctx context.Context, player string, id uint64) (mastermind.Snapshot, error) {
	return s.apply(ctx, id, func() error { return s.engine.EmitAfk(player, id) })
}

func (s *GameService) RedeemAfterAfk(ctx context.Context, player string, id uint64) (mastermind.Snapshot, error) {
	return s.apply(ctx, id, func() error { return s.engine.RedeemAfterAfk(player, id) })
}

func (s *GameService) PublishSecret(ctx context.Context, player string, id uint64, commitment string) (mastermind.Snapshot, error) {
	h, err := mastermind.ParseHash(commitment)
	if err != nil {
		return mastermind.Snapshot{}, apperr.New(apperr.Validation, err.Error())
	}
	return s.apply(ctx, id, func() error { return s.engine.PublishSecret(player, id, h) })
}

func (s *GameService) TryGuess(ctx context.Context, player string, id uint64, guess string) (mastermind.Snapshot, error) {
	return s.apply(ctx, id, func() error { return s.engine.TryGuess(player, id, mastermind.ParseCode(guess)) })
}

func (s *GameService) PublishFeedback(ctx context.Context, player string, id uint64, cc, nc int) (mastermind.Snapshot, error) {
	return s.apply(ctx, id, func() error { return s.engine.PublishFeedback(player, id, cc, nc) })
}

func (s *GameService) RevealSecret(ctx context.Context, player string, id uint64, secret, salt string) (mastermind.Snapshot, error) {
	return s.apply(ctx, id, func() error {
		return s.engine.RevealSecret(player, id, mastermind.ParseCode(secret), salt)
	})
}

func (s *GameService) StartDispute(ctx context.Context, player string, id uint64, ref int) (mastermind.Snapshot, error) {
	return s.apply(ctx, id, func() error { return s.engine.StartDispute(player, id, ref) })
}

func (s *GameService) ChangeTurn(ctx context.Context, player string, id uint64) (mastermind.Snapshot, error) {
	return s.apply(ctx, id, func() error { return s.engine.ChangeTurn(player, id) })
}

// Recover closes the stored games a previous run left unfinished. The engine
// starts empty, so their stakes are refunded and the snapshots marked
// finished. It returns how many games were closed.
func (s *GameService) Recover(ctx context.Context) (int, error) {
	stale, err := s.gameStore.Unfinished(ctx)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, snap := range stale {
		if _, err := s.engine.Game(snap.ID); err == nil {
			continue
		}
		refunded := decimal.Zero
		if s.funds != nil {
			if refunded, err = s.funds.Refund(ctx, snap.ID); err != nil {
				return closed, fmt.Errorf("refund game %d: %w", snap.ID, err)
			}
		}

		snap.Phase = mastermind.PhaseFinished.String()
		snap.Finished = true
		snap.Winner = ""
		snap.Prize = refunded.String()
		snap.Stakes = nil
		snap.EndingReason = mastermind.ReasonRestarted.String()
		snap.AfkEmitter, snap.AfkDeadline, snap.DisputeDeadline = "", nil, nil
		if err := s.gameStore.SaveSnapshot(ctx, snap); err != nil {
			return closed, err
		}
		log.Warnf("game %d closed after restart, refunded %s", snap.ID, refunded)
		closed++
	}
	return closed, nil
}

// GetGame serves live games from the engine and older ones from the store.
func (s *GameService) GetGame(ctx context.Context, id uint64) (mastermind.Snapshot, error) {
	snap, err := s.engine.Game(id)
	if err == nil {
		return snap, nil
	}
	stored, serr := s.gameStore.GetSnapshot(ctx, id)
	if serr != nil {
		return mastermind.Snapshot{}, serr
	}
	if stored == nil {
		return mastermind.Snapshot{}, err
	}
	return *stored, nil
}

func (s *GameService) OpenGames() []uint64 {
	return s.engine.OpenGames()
}

// ActiveGame returns the unfinished game of the player, if any.
func (s *GameService) ActiveGame(player string) (*mastermind.Snapshot, error) {
	id, ok := s.engine.ActiveGame(player)
	if !ok {
		return nil, nil
	}
	snap, err := s.engine.Game(id)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *GameService) History(ctx context.Context, player string, limit int) ([]mastermind.Snapshot, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.gameStore.GamesByPlayer(ctx, player, limit)
}
