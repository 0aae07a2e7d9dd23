package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"picturebuzz/internal/analytics"
	"picturebuzz/internal/broadcast"
	"picturebuzz/internal/config"
	"picturebuzz/internal/db"
	"picturebuzz/internal/events"
	"picturebuzz/internal/game"
	"picturebuzz/internal/metrics"
	"picturebuzz/internal/wshub"
)

const shutdownTimeout = 10 * time.Second

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.corsMiddleware)

	r.HandleFunc("/ws", s.handleWS)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/rooms/{code}", s.handleRoomSnapshot).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/rooms/{code}/qr", s.handleRoomQR).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/rooms/{code}/events", s.handleRoomEvents).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/leaderboard", s.handleLeaderboard).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/games/{id}", s.handleGameRecap).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/players/{name}", s.handlePlayerStats).Methods(http.MethodGet, http.MethodOptions)
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics.Handler()).Methods(http.MethodGet, http.MethodOptions)
	}

	return r
}

// corsMiddleware allows browser clients from the configured origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case slices.Contains(s.Config.AllowedOrigins, "*"):
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(s.Config.AllowedOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")

		// the websocket handshake checks origins itself
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Run wires every component from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := metrics.New()
	hub := wshub.NewHub(log)
	m.WatchDropped(hub.Dropped)

	bus := events.NewBus()
	spectators := broadcast.NewBroadcaster(bus)

	srv := &Server{
		Config:     cfg,
		Hub:        hub,
		Spectators: spectators,
		Metrics:    m,
		Log:        log.With().Str("component", "http").Logger(),
	}

	var archive chan db.GameResult
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("database unavailable, running without archive")
		} else {
			defer database.Close()
			if err := database.Migrate(); err != nil {
				return fmt.Errorf("migrating database: %w", err)
			}
			srv.DB = database
			srv.Analytics = analytics.NewQueries(database)
			archive = make(chan db.GameResult, 64)
			go archiveWriter(ctx, database, archive, archiveRetryInterval, m, log.With().Str("component", "archive").Logger())
			log.Info().Msg("database connected and migrations applied")
		}
	} else {
		log.Info().Msg("database-url not set, running without archive")
	}

	engine := game.NewEngine(game.WithPenaltyDuration(cfg.PenaltyDuration))
	opts := GatewayOptions{
		Bus:             bus,
		Metrics:         m,
		RoomMaxAge:      cfg.RoomMaxAge,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          log,
		Archive:         archive,
	}
	srv.Gateway = NewGateway(engine, hub, opts)
	go srv.Gateway.Run(ctx)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.RegisterRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		// long-lived websocket and event-stream requests end with ctx
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
