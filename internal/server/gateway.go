package server

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"picturebuzz/internal/db"
	"picturebuzz/internal/events"
	"picturebuzz/internal/game"
	"picturebuzz/internal/metrics"
	"picturebuzz/internal/players"
	"picturebuzz/internal/rooms"
	"picturebuzz/internal/scoring"
)

var ErrGatewayStopped = errors.New("gateway stopped")

// Transport delivers envelopes to connections and tracks which rooms a
// connection listens on. *wshub.Hub is the production implementation.
type Transport interface {
	SendTo(id rooms.ConnID, env events.Envelope) bool
	Broadcast(room string, env events.Envelope)
	Join(room string, id rooms.ConnID)
	Leave(room string, id rooms.ConnID)
	CloseRoom(room string)
}

// Inbound is one decoded client frame.
type Inbound struct {
	Conn     rooms.ConnID
	Envelope events.Envelope
}

// request is one unit of work for the gateway goroutine: a client frame,
// the disconnect of in.Conn, or a query.
type request struct {
	in         Inbound
	disconnect bool
	query      func(*game.Engine)
}

type GatewayOptions struct {
	Bus             *events.Bus          // nil disables the spectator mirror
	Archive         chan<- db.GameResult // nil disables archiving
	Metrics         *metrics.Metrics     // may be nil
	RoomMaxAge      time.Duration
	CleanupInterval time.Duration
	Logger          zerolog.Logger
}

// Gateway owns the game engine. All commands, disconnects, HTTP queries
// and the stale room sweep run on the goroutine inside Run, one at a
// time. Frames, disconnects and queries share one queue, so they are
// handled in the order they were submitted.
type Gateway struct {
	engine  *game.Engine
	out     Transport
	bus     *events.Bus
	archive chan<- db.GameResult
	metrics *metrics.Metrics
	log     zerolog.Logger

	maxAge       time.Duration
	cleanupEvery time.Duration

	inbox chan request
	done  chan struct{}
}

func NewGateway(engine *game.Engine, out Transport, opts GatewayOptions) *Gateway {
	if opts.RoomMaxAge <= 0 {
		opts.RoomMaxAge = time.Hour
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = 30 * time.Minute
	}
	return &Gateway{
		engine:       engine,
		out:          out,
		bus:          opts.Bus,
		archive:      opts.Archive,
		metrics:      opts.Metrics,
		log:          opts.Logger.With().Str("component", "gateway").Logger(),
		maxAge:       opts.RoomMaxAge,
		cleanupEvery: opts.CleanupInterval,
		inbox:        make(chan request, 256),
		done:         make(chan struct{}),
	}
}

// Run processes events until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) {
	defer close(g.done)

	ticker := time.NewTicker(g.cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-g.inbox:
			switch {
			case req.query != nil:
				req.query(g.engine)
			case req.disconnect:
				g.disconnect(req.in.Conn)
			default:
				g.handle(req.in)
			}
		case <-ticker.C:
			g.cleanup()
		}
		g.observeRooms()
	}
}

// Submit queues a client frame. It blocks while the inbox is full.
func (g *Gateway) Submit(ctx context.Context, in Inbound) error {
	return g.enqueue(ctx, request{in: in})
}

// Disconnect reports that conn is gone. It is queued behind any frames
// conn already submitted.
func (g *Gateway) Disconnect(conn rooms.ConnID) {
	_ = g.enqueue(context.Background(), request{in: Inbound{Conn: conn}, disconnect: true})
}

func (g *Gateway) enqueue(ctx context.Context, req request) error {
	select {
	case <-g.done:
		return ErrGatewayStopped
	default:
	}
	select {
	case g.inbox <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-g.done:
		return ErrGatewayStopped
	}
}

// query runs fn on the gateway goroutine, after everything submitted
// before it, and waits for it.
func (g *Gateway) query(ctx context.Context, fn func(*game.Engine)) error {
	finished := make(chan struct{})
	wrapped := func(e *game.Engine) {
		defer close(finished)
		fn(e)
	}
	if err := g.enqueue(ctx, request{query: wrapped}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-g.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrGatewayStopped
		}
	}
}

func (g *Gateway) Snapshot(ctx context.Context, code string) (game.Snapshot, error) {
	var snap game.Snapshot
	var err error
	if qerr := g.query(ctx, func(e *game.Engine) { snap, err = e.Snapshot(code) }); qerr != nil {
		return game.Snapshot{}, qerr
	}
	return snap, err
}

func (g *Gateway) RoomCount(ctx context.Context) (int, error) {
	var n int
	err := g.query(ctx, func(e *game.Engine) { n = e.Registry().Len() })
	return n, err
}

// RoomExists reports whether code names a live room.
func (g *Gateway) RoomExists(ctx context.Context, code string) (bool, error) {
	var ok bool
	err := g.query(ctx, func(e *game.Engine) { _, ok = e.Registry().Get(code) })
	return ok, err
}

func (g *Gateway) handle(in Inbound) {
	typ := in.Envelope.Type
	h, ok := commands[typ]
	if !ok {
		g.fail(in, events.ErrUnknownCommand)
		g.count("unknown", events.Reason(events.ErrUnknownCommand))
		return
	}

	err := h(g, in)
	switch {
	case err == nil:
		g.count(typ, "ok")
		g.log.Debug().Str("conn", string(in.Conn)).Str("command", typ).Msg("handled")
	case events.Structural(err):
		g.count(typ, "dropped")
		g.log.Debug().Str("conn", string(in.Conn)).Str("command", typ).Err(err).Msg("dropped stale command")
	default:
		g.count(typ, events.Reason(err))
		g.fail(in, err)
	}
}

// fail tells the caller, and only the caller, why its command was refused.
func (g *Gateway) fail(in Inbound, err error) {
	g.reply(in, events.EvtError, events.ErrorFor(in.Envelope.Type, err))
}

func (g *Gateway) envelope(typ string, data any) (events.Envelope, bool) {
	env, err := events.New(typ, data)
	if err != nil {
		g.log.Error().Err(err).Str("type", typ).Msg("encode event")
		return events.Envelope{}, false
	}
	return env, true
}

// reply answers the connection that sent in, echoing its ref.
func (g *Gateway) reply(in Inbound, typ string, data any) {
	env, ok := g.envelope(typ, data)
	if !ok {
		return
	}
	env.Ref = in.Envelope.Ref
	g.out.SendTo(in.Conn, env)
}

func (g *Gateway) send(conn rooms.ConnID, typ string, data any) {
	if conn == "" {
		return
	}
	if env, ok := g.envelope(typ, data); ok {
		g.out.SendTo(conn, env)
	}
}

// broadcast sends to everyone in room and mirrors the event to spectators.
func (g *Gateway) broadcast(room, typ string, data any) {
	env, ok := g.envelope(typ, data)
	if !ok {
		return
	}
	g.out.Broadcast(room, env)
	if g.bus != nil && !g.bus.Publish(room, env) {
		g.log.Warn().Str("room", room).Str("type", typ).Msg("spectator bus full, dropping event")
	}
}

func (g *Gateway) disconnect(conn rooms.ConnID) {
	d, ok := g.engine.Disconnect(conn)
	if !ok {
		return
	}
	switch d.Kind {
	case rooms.DisconnectHost:
		g.closeRoom(d.Code, "host_disconnected")
		g.log.Info().Str("room", d.Code).Int("players", len(d.Affected)).Msg("host left, room closed")
	case rooms.DisconnectPlayer:
		g.out.Leave(d.Code, conn)
		g.broadcast(d.Code, events.EvtPlayerLeft, events.PlayerLeft{
			PlayerID: d.PlayerID,
			Players:  d.Room.Players.Summaries(),
		})
		if d.QueueChanged {
			g.broadcastQueue(d.Room)
		}
		if d.WasSelected {
			g.broadcast(d.Code, events.EvtPlayerSelected, nil)
		}
		g.log.Info().Str("room", d.Code).Str("player", string(d.PlayerID)).Msg("player disconnected")
	}
}

func (g *Gateway) cleanup() {
	evicted := g.engine.Cleanup(g.maxAge)
	for _, ev := range evicted {
		g.closeRoom(ev.Code, "expired")
		if g.metrics != nil {
			g.metrics.RoomsEvicted.Inc()
		}
	}
	if len(evicted) > 0 {
		g.log.Info().Int("rooms", len(evicted)).Msg("swept stale rooms")
	}
}

func (g *Gateway) closeRoom(code, reason string) {
	g.broadcast(code, events.EvtRoomClosed, events.RoomClosed{RoomCode: code, Reason: reason})
	g.out.CloseRoom(code)
}

func (g *Gateway) broadcastQueue(room *rooms.Room) {
	g.broadcast(room.Code, events.EvtQueueUpdated, events.QueueUpdated{
		Queue:  append([]players.ID{}, room.Queue...),
		Locked: room.Locked,
	})
}

// archiveGame hands the finished game in code to the archive writer.
func (g *Gateway) archiveGame(code string, standings []scoring.Standing) {
	if g.metrics != nil {
		g.metrics.GamesFinished.Inc()
	}
	if g.archive == nil || len(standings) == 0 {
		return
	}
	room, ok := g.engine.Registry().Get(code)
	if !ok || room.StartedAt.IsZero() {
		return
	}
	result := db.GameResult{
		RoomCode:     room.Code,
		Category:     room.Category,
		Mode:         room.Mode,
		TotalImages:  room.TotalImages,
		ImagesPlayed: min(room.ImageIndex, room.TotalImages),
		StartedAt:    room.StartedAt,
		EndedAt:      room.EndedAt,
		Players:      make([]db.PlayerResult, 0, len(standings)),
	}
	for _, s := range standings {
		result.Players = append(result.Players, db.PlayerResult{Name: s.Name, Score: s.Score, Rank: s.Rank})
	}
	select {
	case g.archive <- result:
	default:
		g.log.Warn().Str("room", code).Msg("archive buffer full, dropping game result")
		if g.metrics != nil {
			g.metrics.ArchiveErrors.Inc()
		}
	}
}

func (g *Gateway) count(command, result string) {
	if g.metrics != nil {
		g.metrics.Commands.WithLabelValues(command, result).Inc()
	}
}

func (g *Gateway) observeRooms() {
	if g.metrics != nil {
		g.metrics.RoomsActive.Set(float64(g.engine.Registry().Len()))
	}
}
