package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avvvet/mastermind-services/internal/mastermind"
)

type GameStore struct {
	db       *pgxpool.Pool
	engineID string
}

func NewGameStore(db *pgxpool.Pool, engineID string) *GameStore {
	return &GameStore{db: db, engineID: engineID}
}

// SaveSnapshot upserts the latest state of a game.
func (s *GameStore) SaveSnapshot(ctx context.Context, snap mastermind.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode game %d: %w", snap.ID, err)
	}

	players := make([]string, 0, len(snap.Players))
	for _, p := range snap.Players {
		if p != "" {
			players = append(players, p)
		}
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO games (id, engine_id, players, finished, snapshot)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET players = EXCLUDED.players,
		    finished = EXCLUDED.finished,
		    snapshot = EXCLUDED.snapshot,
		    updated_at = now()
	`, int64(snap.ID), s.engineID, players, snap.Finished, data)
	if err != nil {
		return fmt.Errorf("failed to save game %d: %w", snap.ID, err)
	}
	return nil
}

func (s *GameStore) GetSnapshot(ctx context.Context, id uint64) (*mastermind.Snapshot, error) {
	var data []byte
	err := s.db.QueryRow(ctx, `SELECT snapshot FROM games WHERE id = $1`, int64(id)).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Game not found
		}
		return nil, fmt.Errorf("failed to get game by ID: %w", err)
	}

	snap := &mastermind.Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("failed to decode game %d: %w", id, err)
	}
	return snap, nil
}

// GamesByPlayer returns the most recent games a player took part in.
func (s *GameStore) GamesByPlayer(ctx context.Context, player string, limit int) ([]mastermind.Snapshot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT snapshot FROM games
		WHERE $1 = ANY(players)
		ORDER BY updated_at DESC
		LIMIT $2
	`, player, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	return scanSnapshots(rows)
}

// Unfinished returns the games of this engine that never reached an end.
func (s *GameStore) Unfinished(ctx context.Context) ([]mastermind.Snapshot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT snapshot FROM games
		WHERE engine_id = $1 AND NOT finished
		ORDER BY id
	`, s.engineID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unfinished games: %w", err)
	}
	return scanSnapshots(rows)
}

func scanSnapshots(rows pgx.Rows) ([]mastermind.Snapshot, error) {
	defer rows.Close()

	var out []mastermind.Snapshot
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		var snap mastermind.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("failed to decode game: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// LastGameID is the highest id stored, 0 when there is none.
func (s *GameStore) LastGameID(ctx context.Context) (uint64, error) {
	var id int64
	if err := s.db.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM games`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read last game id: %w", err)
	}
	return uint64(id), nil
}
