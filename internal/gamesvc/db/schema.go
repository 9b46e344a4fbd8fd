package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS balances (
	id         BIGSERIAL PRIMARY KEY,
	player     TEXT NOT NULL,
	game_id    BIGINT,
	ttype      TEXT NOT NULL,
	dr         NUMERIC(20, 8) NOT NULL DEFAULT 0,
	cr         NUMERIC(20, 8) NOT NULL DEFAULT 0,
	tref       TEXT NOT NULL UNIQUE,
	status     TEXT NOT NULL DEFAULT 'completed',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
ALTER TABLE balances ADD COLUMN IF NOT EXISTS game_id BIGINT;
CREATE INDEX IF NOT EXISTS balances_player_idx ON balances (player);
CREATE INDEX IF NOT EXISTS balances_game_idx ON balances (game_id);

CREATE TABLE IF NOT EXISTS games (
	id         BIGINT PRIMARY KEY,
	engine_id  TEXT NOT NULL,
	players    TEXT[] NOT NULL,
	finished   BOOLEAN NOT NULL DEFAULT false,
	snapshot   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS games_players_idx ON games USING GIN (players);
CREATE INDEX IF NOT EXISTS games_unfinished_idx ON games (engine_id) WHERE NOT finished;
`

// Migrate creates the tables the game service writes to.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
