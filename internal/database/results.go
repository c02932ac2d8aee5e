// Package database records finished matches in Postgres. It is write-only:
// nothing is read back to restore live games.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GameResult summarizes one finished game.
type GameResult struct {
	GameID     uuid.UUID
	RoomCode   string
	WinnerID   uuid.UUID
	WinnerName string
	Reason     string // "sepp", "forfeit", "abandoned"
	Turns      int
	StartedAt  time.Time
	FinishedAt time.Time
	Players    []ResultPlayer
}

// ResultPlayer is one seat's final standing.
type ResultPlayer struct {
	PlayerID  uuid.UUID
	Name      string
	IsAI      bool
	CardsLeft int
}

// execer is the subset of pgxpool.Pool the recorder needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Recorder writes GameResults.
type Recorder struct {
	db execer
}

// Connect opens a pool for url and checks it with Ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return pool, nil
}

// NewRecorder wraps a pool.
func NewRecorder(pool *pgxpool.Pool) *Recorder {
	return &Recorder{db: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS game_results (
	game_id     UUID PRIMARY KEY,
	room_code   TEXT NOT NULL,
	winner_id   UUID,
	winner_name TEXT,
	reason      TEXT NOT NULL,
	turns       INTEGER NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS game_result_players (
	game_id    UUID NOT NULL REFERENCES game_results(game_id) ON DELETE CASCADE,
	player_id  UUID NOT NULL,
	name       TEXT NOT NULL,
	is_ai      BOOLEAN NOT NULL,
	cards_left INTEGER NOT NULL,
	PRIMARY KEY (game_id, player_id)
);`

// EnsureSchema creates the tables if they do not exist.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Record inserts res and its players in one transaction.
func (r *Recorder) Record(ctx context.Context, res GameResult) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var winner *uuid.UUID
	if res.WinnerID != uuid.Nil {
		winner = &res.WinnerID
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO game_results (game_id, room_code, winner_id, winner_name, reason, turns, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (game_id) DO NOTHING`,
		res.GameID, res.RoomCode, winner, res.WinnerName, res.Reason, res.Turns, res.StartedAt, res.FinishedAt)
	if err != nil {
		return fmt.Errorf("inserting game %s: %w", res.GameID, err)
	}

	batch := &pgx.Batch{}
	for _, p := range res.Players {
		batch.Queue(`
			INSERT INTO game_result_players (game_id, player_id, name, is_ai, cards_left)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT DO NOTHING`,
			res.GameID, p.PlayerID, p.Name, p.IsAI, p.CardsLeft)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting players of game %s: %w", res.GameID, err)
	}
	return tx.Commit(ctx)
}
