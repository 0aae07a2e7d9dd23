package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"picturebuzz/internal/db"
)

var (
	ErrUnknownCategory = errors.New("unknown leaderboard category")
	ErrNotFound        = errors.New("not found")
)

const MaxLeaderboardLimit = 100

type Queries struct {
	DB *db.DB
}

func NewQueries(database *db.DB) *Queries {
	return &Queries{DB: database}
}

// GetLeaderboard ranks player names by category: "score" (total points),
// "wins" (first places) or "best" (best single game).
func (q *Queries) GetLeaderboard(ctx context.Context, category string, limit int) ([]LeaderboardEntry, error) {
	var query string
	switch category {
	case "score", "":
		query = `
			SELECT player_name, COALESCE(SUM(final_score), 0) AS value
			FROM game_players
			GROUP BY player_name
			ORDER BY value DESC, player_name
			LIMIT $1`
	case "wins":
		query = `
			SELECT player_name, COUNT(*) FILTER (WHERE rank = 1) AS value
			FROM game_players
			GROUP BY player_name
			ORDER BY value DESC, player_name
			LIMIT $1`
	case "best":
		query = `
			SELECT player_name, COALESCE(MAX(final_score), 0) AS value
			FROM game_players
			GROUP BY player_name
			ORDER BY value DESC, player_name
			LIMIT $1`
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	if limit < 1 || limit > MaxLeaderboardLimit {
		limit = 10
	}

	rows, err := q.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("getting leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.PlayerName, &e.Value); err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q *Queries) GetPlayerLifetimeStats(ctx context.Context, name string) (*PlayerLifetimeStats, error) {
	stats := &PlayerLifetimeStats{PlayerName: name}

	err := q.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(*) AS games_played,
			COALESCE(SUM(final_score), 0) AS total_score,
			COALESCE(MAX(final_score), 0) AS best_game,
			COUNT(*) FILTER (WHERE rank = 1) AS win_count
		FROM game_players
		WHERE player_name = $1
	`, name).Scan(&stats.GamesPlayed, &stats.TotalScore, &stats.BestGame, &stats.WinCount)
	if err != nil {
		return nil, fmt.Errorf("getting lifetime stats: %w", err)
	}
	if stats.GamesPlayed == 0 {
		return nil, ErrNotFound
	}

	// most recent consecutive wins
	rows, err := q.DB.QueryContext(ctx, `
		SELECT gp.rank
		FROM game_players gp
		JOIN games g ON g.id = gp.game_id
		WHERE gp.player_name = $1
		ORDER BY g.ended_at DESC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("getting win streak: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rank int
		if err := rows.Scan(&rank); err != nil {
			return nil, err
		}
		if rank != 1 {
			break
		}
		stats.WinStreak++
	}

	stats.Badges = EvaluateLifetimeBadges(*stats)
	return stats, nil
}

func (q *Queries) GetGameRecap(ctx context.Context, gameID string) (*GameRecap, error) {
	recap := &GameRecap{GameID: gameID}

	err := q.DB.QueryRowContext(ctx, `
		SELECT room_code, category, mode, total_images, images_played, started_at, ended_at
		FROM games WHERE id::text = $1
	`, gameID).Scan(&recap.RoomCode, &recap.Category, &recap.Mode,
		&recap.TotalImages, &recap.ImagesPlayed, &recap.StartedAt, &recap.EndedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting game: %w", err)
	}

	rows, err := q.DB.QueryContext(ctx, `
		SELECT player_name, final_score, rank
		FROM game_players WHERE game_id::text = $1
		ORDER BY rank, player_name
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("getting game players: %w", err)
	}
	defer rows.Close()

	recap.Players = []PlayerGameStats{}
	for rows.Next() {
		var p PlayerGameStats
		if err := rows.Scan(&p.PlayerName, &p.Score, &p.Rank); err != nil {
			return nil, err
		}
		p.Badges = EvaluateGameBadges(p)
		recap.Players = append(recap.Players, p)
	}
	return recap, rows.Err()
}
