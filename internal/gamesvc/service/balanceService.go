package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lestrrat-go/backoff/v2"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/mastermind-services/internal/apperr"
	"github.com/avvvet/mastermind-services/internal/events"
)

var ErrInsufficientBalance = apperr.New(apperr.Validation, "insufficient balance")

// BalanceRepo is the persistence the balance service needs; store.BalanceStore
// implements it.
type BalanceRepo interface {
	GetBalanceByPlayer(ctx context.Context, player string) (decimal.Decimal, error)
	RecordStake(ctx context.Context, player string, id uint64, amount decimal.Decimal, tref string) (bool, error)
	RecordPayout(ctx context.Context, player string, id uint64, amount decimal.Decimal, tref string) error
	EscrowedByGame(ctx context.Context, id uint64) (map[string]decimal.Decimal, error)
}

// DefaultSettleRetry retries a failed booking for about half a minute before
// it is parked for RetryFailed.
var DefaultSettleRetry = backoff.Exponential(
	backoff.WithMinInterval(200*time.Millisecond),
	backoff.WithMaxInterval(10*time.Second),
	backoff.WithJitterFactor(0.1),
	backoff.WithMaxRetries(6),
)

type BalanceService struct {
	balanceStore BalanceRepo
	retry        backoff.Policy

	mu sync.Mutex
	// reserved holds stakes accepted by the escrow whose rows are not booked yet.
	reserved map[string]decimal.Decimal
	failed   []events.Event
}

func NewBalanceService(store BalanceRepo) *BalanceService {
	return &BalanceService{
		balanceStore: store,
		retry:        DefaultSettleRetry,
		reserved:     make(map[string]decimal.Decimal),
	}
}

// SetRetryPolicy replaces the backoff used when booking an event fails.
func (s *BalanceService) SetRetryPolicy(p backoff.Policy) {
	s.retry = p
}

func (s *BalanceService) GetPlayerBalance(ctx context.Context, player string) (decimal.Decimal, error) {
	return s.balanceStore.GetBalanceByPlayer(ctx, player)
}

// Reserve holds amount of the player's balance for a stake about to enter
// escrow. The hold ends when the stake row is booked; release drops it when
// the escrow rejects the stake.
func (s *BalanceService) Reserve(ctx context.Context, player string, amount decimal.Decimal) (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, err := s.balanceStore.GetBalanceByPlayer(ctx, player)
	if err != nil {
		return nil, err
	}
	if balance.Sub(s.reserved[player]).LessThan(amount) {
		return nil, ErrInsufficientBalance
	}
	s.reserved[player] = s.reserved[player].Add(amount)

	var once sync.Once
	return func() { once.Do(func() { s.unreserve(player, amount) }) }, nil
}

func (s *BalanceService) unreserve(player string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	left := s.reserved[player].Sub(amount)
	if !left.IsPositive() {
		delete(s.reserved, player)
		return
	}
	s.reserved[player] = left
}

// Settle books escrow events against player balances. Other events are
// ignored.
func (s *BalanceService) Settle(ctx context.Context, e events.Event) error {
	switch e.Type {
	case events.Raise, events.Call, events.Payout:
	default:
		return nil
	}

	player := e.Attributes["player"]
	amount, err := decimal.NewFromString(e.Attributes["amount"])
	if err != nil {
		return fmt.Errorf("bad amount in %s event of game %d: %w", e.Type, e.GameID, err)
	}

	if e.Type == events.Payout {
		return s.balanceStore.RecordPayout(ctx, player, e.GameID, amount, e.Ref())
	}
	booked, err := s.balanceStore.RecordStake(ctx, player, e.GameID, amount, e.Ref())
	if err != nil {
		return err
	}
	if booked {
		s.unreserve(player, amount)
	}
	return nil
}

// Sink settles every event it receives. Failures are retried with the retry
// policy, then parked until RetryFailed.
func (s *BalanceService) Sink(timeout time.Duration) events.Sink {
	return events.SinkFunc(func(e events.Event) {
		if err := s.settleWithRetry(e, timeout); err != nil {
			log.Errorf("Error [BalanceService.Settle] %s event of game %d parked: %s", e.Type, e.GameID, err)
			s.mu.Lock()
			s.failed = append(s.failed, e)
			s.mu.Unlock()
		}
	})
}

func (s *BalanceService) settleWithRetry(e events.Event, timeout time.Duration) error {
	rctx, stop := context.WithCancel(context.Background())
	defer stop()

	err := fmt.Errorf("no settle attempt for %s", e.Ref())
	b := s.retry.Start(rctx)
	for backoff.Continue(b) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err = s.Settle(ctx, e)
		cancel()
		if err == nil {
			return nil
		}
		log.Warnf("settle %s failed, retrying: %s", e.Ref(), err)
	}
	return err
}

// Parked returns how many events wait for RetryFailed.
func (s *BalanceService) Parked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failed)
}

// RetryFailed books the parked events once more and keeps those that still
// fail. It returns how many were booked.
func (s *BalanceService) RetryFailed(ctx context.Context) int {
	s.mu.Lock()
	parked := s.failed
	s.failed = nil
	s.mu.Unlock()

	var still []events.Event
	for _, e := range parked {
		if err := s.Settle(ctx, e); err != nil {
			still = append(still, e)
		}
	}

	s.mu.Lock()
	s.failed = append(still, s.failed...)
	s.mu.Unlock()
	return len(parked) - len(still)
}

// Refund pays every player of game id back what the game booked as stakes
// and never paid out. The refs are fixed per game and player, so a repeated
// refund books nothing new. It returns the total refunded.
func (s *BalanceService) Refund(ctx context.Context, id uint64) (decimal.Decimal, error) {
	escrowed, err := s.balanceStore.EscrowedByGame(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for player, amount := range escrowed {
		if !amount.IsPositive() {
			continue
		}
		ref := fmt.Sprintf("RESTART-%d-%s", id, player)
		if err := s.balanceStore.RecordPayout(ctx, player, id, amount, ref); err != nil {
			return total, err
		}
		total = total.Add(amount)
	}
	return total, nil
}
