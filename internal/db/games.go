package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrEmptyResult = errors.New("game result has no players")

type PlayerResult struct {
	Name  string
	Score int
	Rank  int
}

// GameResult is the archived outcome of one finished game.
type GameResult struct {
	RoomCode     string
	Category     string
	Mode         string
	TotalImages  int
	ImagesPlayed int
	StartedAt    time.Time
	EndedAt      time.Time
	Players      []PlayerResult
}

// RecordGame stores r and its standings in one transaction and returns
// the new game id.
func (d *DB) RecordGame(ctx context.Context, r GameResult) (string, error) {
	if len(r.Players) == 0 {
		return "", ErrEmptyResult
	}
	id := uuid.NewString()

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO games (id, room_code, category, mode, total_images, images_played, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, r.RoomCode, r.Category, r.Mode, r.TotalImages, r.ImagesPlayed, r.StartedAt, r.EndedAt)
	if err != nil {
		return "", fmt.Errorf("inserting game: %w", err)
	}

	for _, p := range r.Players {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO game_players (game_id, player_name, final_score, rank)
			VALUES ($1, $2, $3, $4)
		`, id, p.Name, p.Score, p.Rank)
		if err != nil {
			return "", fmt.Errorf("inserting player %q: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing game: %w", err)
	}
	return id, nil
}
