package server

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"picturebuzz/internal/db"
	"picturebuzz/internal/metrics"
)

const (
	archiveRetryInterval = 5 * time.Second
	archiveMaxAttempts   = 3
	archiveWriteTimeout  = 10 * time.Second
)

// GameStore persists finished games.
type GameStore interface {
	RecordGame(ctx context.Context, r db.GameResult) (string, error)
}

type pendingGame struct {
	result   db.GameResult
	attempts int
}

// archiveWriter drains finished games from buffer into store. Failed
// writes are retried on the ticker until archiveMaxAttempts is reached.
func archiveWriter(ctx context.Context, store GameStore, buffer <-chan db.GameResult, retryEvery time.Duration, m *metrics.Metrics, log zerolog.Logger) {
	ticker := time.NewTicker(retryEvery)
	defer ticker.Stop()

	var pending []pendingGame

	write := func(p pendingGame) bool {
		wctx, cancel := context.WithTimeout(ctx, archiveWriteTimeout)
		defer cancel()
		id, err := store.RecordGame(wctx, p.result)
		if err != nil {
			log.Warn().Err(err).Str("room", p.result.RoomCode).Int("attempt", p.attempts).Msg("archive game")
			return false
		}
		log.Info().Str("room", p.result.RoomCode).Str("game", id).Msg("game archived")
		return true
	}

	for {
		select {
		case <-ctx.Done():
			if len(pending) > 0 {
				log.Warn().Int("games", len(pending)).Msg("shutting down with unarchived games")
			}
			return
		case r := <-buffer:
			p := pendingGame{result: r, attempts: 1}
			if !write(p) {
				pending = append(pending, p)
			}
		case <-ticker.C:
			kept := pending[:0]
			for _, p := range pending {
				p.attempts++
				if write(p) {
					continue
				}
				if p.attempts >= archiveMaxAttempts {
					log.Error().Str("room", p.result.RoomCode).Msg("giving up on archiving game")
					if m != nil {
						m.ArchiveErrors.Inc()
					}
					continue
				}
				kept = append(kept, p)
			}
			pending = kept
		}
	}
}
