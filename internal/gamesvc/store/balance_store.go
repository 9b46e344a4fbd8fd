package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type BalanceStore struct {
	db *pgxpool.Pool
}

func NewBalanceStore(db *pgxpool.Pool) *BalanceStore {
	return &BalanceStore{db: db}
}

func (c *BalanceStore) GetBalanceByPlayer(ctx context.Context, player string) (decimal.Decimal, error) {
	var totalDr, totalCr decimal.Decimal

	err := c.db.QueryRow(ctx, `
        SELECT 
            COALESCE(SUM(dr), 0), 
            COALESCE(SUM(cr), 0)
        FROM balances
        WHERE player = $1 AND status = 'completed'
    `, player).Scan(&totalDr, &totalCr)

	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	balance := totalDr.Sub(totalCr)
	return balance, nil
}

// RecordStake debits a stake moved into escrow for game id. It reports false
// when tref was already booked.
func (c *BalanceStore) RecordStake(ctx context.Context, player string, id uint64, amount decimal.Decimal, tref string) (bool, error) {
	return c.insert(ctx, player, id, "stake", decimal.Zero, amount, tref)
}

// RecordPayout credits an escrow payout of game id. A repeated tref is ignored.
func (c *BalanceStore) RecordPayout(ctx context.Context, player string, id uint64, amount decimal.Decimal, tref string) error {
	_, err := c.insert(ctx, player, id, "payout", amount, decimal.Zero, tref)
	return err
}

// RecordDeposit credits funds from outside the game. A repeated tref is ignored.
func (c *BalanceStore) RecordDeposit(ctx context.Context, player string, amount decimal.Decimal, tref string) error {
	_, err := c.insert(ctx, player, 0, "deposit", amount, decimal.Zero, tref)
	return err
}

// EscrowedByGame returns, per player, what game id booked as stakes and has
// not paid back yet.
func (c *BalanceStore) EscrowedByGame(ctx context.Context, id uint64) (map[string]decimal.Decimal, error) {
	rows, err := c.db.Query(ctx, `
		SELECT player, COALESCE(SUM(cr), 0) - COALESCE(SUM(dr), 0)
		FROM balances
		WHERE game_id = $1 AND status = 'completed'
		GROUP BY player
	`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("failed to sum escrow of game %d: %w", id, err)
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var (
			player string
			net    decimal.Decimal
		)
		if err := rows.Scan(&player, &net); err != nil {
			return nil, fmt.Errorf("failed to scan escrow of game %d: %w", id, err)
		}
		out[player] = net
	}
	return out, rows.Err()
}

func (c *BalanceStore) insert(ctx context.Context, player string, id uint64, ttype string, dr, cr decimal.Decimal, tref string) (bool, error) {
	tag, err := c.db.Exec(ctx, `
		INSERT INTO balances (player, game_id, ttype, dr, cr, tref, status)
		VALUES ($1, NULLIF($2::BIGINT, 0), $3, $4, $5, $6, 'completed')
		ON CONFLICT (tref) DO NOTHING
	`, player, int64(id), ttype, dr, cr, tref)
	if err != nil {
		return false, fmt.Errorf("failed to record %s for %s: %w", ttype, player, err)
	}
	return tag.RowsAffected() == 1, nil
}
