package broker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/mastermind-services/internal/comm"
	"github.com/avvvet/mastermind-services/internal/escrow"
	"github.com/avvvet/mastermind-services/internal/gamesvc/service"
	"github.com/avvvet/mastermind-services/internal/mastermind"
)

type richBalances struct{}

func (richBalances) GetBalanceByPlayer(context.Context, string) (decimal.Decimal, error) {
	return decimal.NewFromInt(100), nil
}
func (richBalances) RecordStake(context.Context, string, uint64, decimal.Decimal, string) (bool, error) {
	return true, nil
}
func (richBalances) RecordPayout(context.Context, string, uint64, decimal.Decimal, string) error {
	return nil
}
func (richBalances) EscrowedByGame(context.Context, uint64) (map[string]decimal.Decimal, error) {
	return nil, nil
}

type nopSnapshots struct{}

func (nopSnapshots) SaveSnapshot(context.Context, mastermind.Snapshot) error { return nil }
func (nopSnapshots) GetSnapshot(context.Context, uint64) (*mastermind.Snapshot, error) {
	return nil, nil
}
func (nopSnapshots) GamesByPlayer(context.Context, string, int) ([]mastermind.Snapshot, error) {
	return nil, nil
}
func (nopSnapshots) Unfinished(context.Context) ([]mastermind.Snapshot, error) { return nil, nil }

func newTestBroker() *Broker {
	balances := service.NewBalanceService(richBalances{})
	engine := mastermind.NewEngine(mastermind.Options{
		ID:     "engine",
		Escrow: escrow.NewLedger("engine", nil, nil),
		Coin:   mastermind.FixedCoin(0),
	})
	return NewBroker(nil, service.NewGameService(engine, nopSnapshots{}, balances), balances)
}

func command(t *testing.T, typ, player string, c comm.Command) comm.WSMessage {
	t.Helper()
	data, err := json.Marshal(c)
	require.NoError(t, err)
	return comm.WSMessage{Type: typ, Data: data, SocketId: "sock-" + player, Player: player}
}

func TestDispatchPlaysCommands(t *testing.T) {
	b := newTestBroker()
	ctx := context.Background()

	r, ok := b.Dispatch(ctx, command(t, "create-game", "alice", comm.Command{}))
	require.True(t, ok)
	require.True(t, r.OK, r.Error)
	id := r.Game.ID

	r, _ = b.Dispatch(ctx, command(t, "open-games", "bob", comm.Command{}))
	assert.Equal(t, []uint64{id}, r.Open)

	r, _ = b.Dispatch(ctx, command(t, "join-game", "bob", comm.Command{}))
	require.True(t, r.OK, r.Error)
	assert.Equal(t, "betting", r.Game.Phase)

	r, _ = b.Dispatch(ctx, command(t, "bet", "alice", comm.Command{GameID: id, Amount: "1"}))
	require.True(t, r.OK, r.Error)
	r, _ = b.Dispatch(ctx, command(t, "bet", "bob", comm.Command{GameID: id, Amount: "1"}))
	require.True(t, r.OK, r.Error)
	assert.Equal(t, "alice", r.Game.CodeMaker)

	h := mastermind.Commit(mastermind.ParseCode("RGBRG"), "salt")
	r, _ = b.Dispatch(ctx, command(t, "publish-secret", "alice", comm.Command{GameID: id, Commitment: h.Hex()}))
	require.True(t, r.OK, r.Error)

	r, _ = b.Dispatch(ctx, command(t, "try-guess", "bob", comm.Command{GameID: id, Guess: "BRYGG"}))
	require.True(t, r.OK, r.Error)
	r, _ = b.Dispatch(ctx, command(t, "publish-feedback", "alice", comm.Command{GameID: id, CC: 1, NC: 4}))
	require.True(t, r.OK, r.Error)
	assert.Equal(t, 1, r.Game.Guess)

	r, _ = b.Dispatch(ctx, command(t, "check-active-game", "bob", comm.Command{}))
	require.NotNil(t, r.Game)
	assert.Equal(t, id, r.Game.ID)
}

func TestDispatchReportsRejections(t *testing.T) {
	b := newTestBroker()
	ctx := context.Background()

	r, ok := b.Dispatch(ctx, command(t, "fold", "alice", comm.Command{GameID: 9}))
	require.True(t, ok)
	assert.False(t, r.OK)
	assert.Equal(t, mastermind.ErrGameNotFound.Error(), r.Error)
	assert.Equal(t, "identity", r.Kind)

	r, _ = b.Dispatch(ctx, comm.WSMessage{Type: "fold", Data: json.RawMessage(`{`), Player: "alice"})
	assert.Equal(t, "validation", r.Kind)

	r, _ = b.Dispatch(ctx, comm.WSMessage{Type: "fold"})
	assert.False(t, r.OK)

	_, ok = b.Dispatch(ctx, comm.WSMessage{Type: "dance", Player: "alice"})
	assert.False(t, ok)
}

func TestDispatchBalance(t *testing.T) {
	b := newTestBroker()
	r, ok := b.Dispatch(context.Background(), comm.WSMessage{Type: comm.TypeInit, Player: "alice"})
	require.True(t, ok)
	assert.Equal(t, "100.00", r.Balance)
}

func TestRejectedCommandsLogWarnings(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()
	b := newTestBroker()

	r, ok := b.Dispatch(context.Background(), command(t, "try-guess", "alice", comm.Command{GameID: 99, Guess: "RGBRG"}))
	require.True(t, ok)
	require.False(t, r.OK)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.WarnLevel, entry.Level)
	assert.Contains(t, entry.Message, "rejected try-guess from alice")
}
