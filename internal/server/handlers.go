package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	"picturebuzz/internal/analytics"
	"picturebuzz/internal/broadcast"
	"picturebuzz/internal/config"
	"picturebuzz/internal/db"
	"picturebuzz/internal/events"
	"picturebuzz/internal/metrics"
	"picturebuzz/internal/rooms"
	"picturebuzz/internal/wshub"
)

const (
	maxMessageSize = 16 << 10
	qrSize         = 320
	queryTimeout   = 5 * time.Second
)

type Server struct {
	Config     config.Config
	Gateway    *Gateway
	Hub        *wshub.Hub
	Spectators *broadcast.Broadcaster
	Metrics    *metrics.Metrics
	DB         *db.DB             // nil if no database configured
	Analytics  *analytics.Queries // nil if no database configured
	Log        zerolog.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	resp := map[string]any{"status": "ok"}
	status := http.StatusOK

	n, err := s.Gateway.RoomCount(ctx)
	if err != nil {
		resp["status"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	resp["rooms"] = n
	resp["connections"] = s.Hub.Connections()

	if s.DB != nil {
		if err := s.DB.Ping(ctx); err != nil {
			resp["database"] = "down"
			resp["status"] = "degraded"
		} else {
			resp["database"] = "ok"
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleRoomSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	snap, err := s.Gateway.Snapshot(ctx, mux.Vars(r)["code"])
	switch {
	case errors.Is(err, rooms.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "room not found")
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeJSON(w, http.StatusOK, snap)
	}
}

// handleRoomQR serves a PNG QR code of the link students open to join.
func (s *Server) handleRoomQR(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	code := rooms.NormalizeCode(mux.Vars(r)["code"])
	ok, err := s.Gateway.RoomExists(ctx, code)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	png, err := qrcode.Encode(s.Config.JoinURL(code), qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// handleRoomEvents streams a room's public events as server-sent events
// for read-only screens such as a projector.
func (s *Server) handleRoomEvents(w http.ResponseWriter, r *http.Request) {
	code := rooms.NormalizeCode(mux.Vars(r)["code"])

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	snap, err := s.Gateway.Snapshot(ctx, code)
	cancel()
	if errors.Is(err, rooms.ErrRoomNotFound) {
		http.Error(w, "Room not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	msgChan := s.Spectators.Subscribe(code)
	defer s.Spectators.Unsubscribe(code, msgChan)

	if data, err := json.Marshal(snap); err == nil {
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", events.EvtSyncState, data)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			data := msg.Data
			if len(data) == 0 {
				data = []byte("null")
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, data)
			flusher.Flush()
		}
	}
}

// handleWS upgrades the request and pumps client frames into the gateway
// until the connection drops.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.Config.AllowedOrigins,
	})
	if err != nil {
		s.Log.Warn().Err(err).Msg("websocket accept")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	id := rooms.ConnID(uuid.NewString())
	client := wshub.NewClient(id, conn, s.Config.SendBuffer, s.Config.MessageRate, s.Config.MessageBurst)
	s.Hub.Register(client)
	if s.Metrics != nil {
		s.Metrics.Connections.Inc()
	}
	log := s.Log.With().Str("conn", string(id)).Logger()
	log.Debug().Str("remote", r.RemoteAddr).Msg("client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		s.Gateway.Disconnect(id)
		s.Hub.Unregister(id)
		if s.Metrics != nil {
			s.Metrics.Connections.Dec()
		}
		conn.CloseNow()
		log.Debug().Msg("client disconnected")
	}()

	go client.WritePump(ctx)

	for {
		var env events.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				log.Debug().Err(err).Msg("read")
			}
			return
		}
		if !client.Allow() {
			if out, err := events.New(events.EvtError, events.ErrorFor(env.Type, events.ErrRateLimited)); err == nil {
				out.Ref = env.Ref
				s.Hub.SendTo(id, out)
			}
			continue
		}
		if err := s.Gateway.Submit(ctx, Inbound{Conn: id, Envelope: env}); err != nil {
			return
		}
	}
}
