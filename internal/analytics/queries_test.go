package analytics

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picturebuzz/internal/db"
)

func getTestQueries(t *testing.T) *Queries {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}
	ctx := context.Background()
	database, err := db.Connect(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	t.Cleanup(func() { database.Close() })
	return NewQueries(database)
}

func record(t *testing.T, q *Queries, ended time.Time, players ...db.PlayerResult) string {
	t.Helper()
	id, err := q.DB.RecordGame(context.Background(), db.GameResult{
		RoomCode:     "TST234",
		Category:     "animals",
		TotalImages:  3,
		ImagesPlayed: 3,
		StartedAt:    ended.Add(-5 * time.Minute),
		EndedAt:      ended,
		Players:      players,
	})
	require.NoError(t, err)
	return id
}

func TestQueries(t *testing.T) {
	q := getTestQueries(t)
	ctx := context.Background()
	// names unique to this test so leftovers from other runs do not interfere
	ada := "ada-" + time.Now().Format("150405.000000")
	bob := "bob-" + time.Now().Format("150405.000000")
	base := time.Now().UTC()

	first := record(t, q, base.Add(-2*time.Hour),
		db.PlayerResult{Name: ada, Score: 180, Rank: 1},
		db.PlayerResult{Name: bob, Score: 60, Rank: 2})
	record(t, q, base.Add(-time.Hour),
		db.PlayerResult{Name: bob, Score: 100, Rank: 1},
		db.PlayerResult{Name: ada, Score: 40, Rank: 2})

	t.Run("GameRecap", func(t *testing.T) {
		recap, err := q.GetGameRecap(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, "TST234", recap.RoomCode)
		require.Len(t, recap.Players, 2)
		assert.Equal(t, ada, recap.Players[0].PlayerName)
		assert.True(t, hasBadge(recap.Players[0].Badges, BadgeChampion))
	})

	t.Run("GameRecap_NotFound", func(t *testing.T) {
		_, err := q.GetGameRecap(ctx, "not-a-game")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("LifetimeStats", func(t *testing.T) {
		stats, err := q.GetPlayerLifetimeStats(ctx, bob)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.GamesPlayed)
		assert.Equal(t, 160, stats.TotalScore)
		assert.Equal(t, 100, stats.BestGame)
		assert.Equal(t, 1, stats.WinCount)
		assert.Equal(t, 1, stats.WinStreak)
	})

	t.Run("LifetimeStats_NotFound", func(t *testing.T) {
		_, err := q.GetPlayerLifetimeStats(ctx, "nobody-"+ada)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Leaderboard_UnknownCategory", func(t *testing.T) {
		_, err := q.GetLeaderboard(ctx, "reaction", 10)
		assert.ErrorIs(t, err, ErrUnknownCategory)
	})

	t.Run("Leaderboard", func(t *testing.T) {
		entries, err := q.GetLeaderboard(ctx, "score", MaxLeaderboardLimit)
		require.NoError(t, err)
		for i, e := range entries {
			assert.Equal(t, i+1, e.Rank)
			if i > 0 {
				assert.LessOrEqual(t, e.Value, entries[i-1].Value)
			}
		}
	})
}
