package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picturebuzz/internal/broadcast"
	"picturebuzz/internal/config"
	"picturebuzz/internal/events"
	"picturebuzz/internal/game"
	"picturebuzz/internal/metrics"
	"picturebuzz/internal/wshub"
)

func testConfig() config.Config {
	return config.Config{
		Bind:            "127.0.0.1",
		Port:            8080,
		PenaltyDuration: 3 * time.Second,
		RoomMaxAge:      time.Hour,
		CleanupInterval: time.Hour,
		MessageRate:     0,
		MessageBurst:    20,
		SendBuffer:      32,
		AllowedOrigins:  []string{"*"},
	}
}

func newTestServer(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	log := zerolog.Nop()
	m := metrics.New()
	hub := wshub.NewHub(log)
	bus := events.NewBus()
	s := &Server{
		Config:     cfg,
		Hub:        hub,
		Spectators: broadcast.NewBroadcaster(bus),
		Metrics:    m,
		Log:        log,
	}
	s.Gateway = NewGateway(game.NewEngine(), hub, GatewayOptions{Bus: bus, Metrics: m, Logger: log})
	go s.Gateway.Run(ctx)

	ts := httptest.NewServer(s.RegisterRoutes())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ, ref string, data any) {
	t.Helper()
	env, err := events.New(typ, data)
	require.NoError(t, err)
	env.Ref = ref
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, env))
}

// readUntil reads frames until one of type typ arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) events.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		var env events.Envelope
		require.NoError(t, wsjson.Read(ctx, conn, &env), "waiting for %s", typ)
		if env.Type == typ {
			return env
		}
	}
}

func createRoom(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	send(t, conn, events.CmdCreateRoom, "c1", events.CreateRoomRequest{Category: "animals"})
	env := readUntil(t, conn, events.EvtRoomCreated)
	assert.Equal(t, "c1", env.Ref)
	var created events.RoomCreated
	require.NoError(t, env.Decode(&created))
	return created.RoomCode
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestWebSocket_RoomLifecycle(t *testing.T) {
	ts := newTestServer(t, testConfig())
	host := dial(t, ts)
	student := dial(t, ts)

	code := createRoom(t, host)

	send(t, student, events.CmdJoinRoom, "", events.JoinRoomRequest{RoomCode: strings.ToLower(code), PlayerName: "Ada"})
	var joined events.RoomJoined
	require.NoError(t, readUntil(t, student, events.EvtRoomJoined).Decode(&joined))
	assert.Equal(t, code, joined.RoomCode)
	assert.Equal(t, "Ada", joined.PlayerName)

	var list events.PlayerList
	require.NoError(t, readUntil(t, host, events.EvtPlayerJoined).Decode(&list))
	require.Len(t, list.Players, 1)
	assert.Equal(t, "Ada", list.Players[0].Name)

	var snap game.Snapshot
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/rooms/"+code, &snap))
	assert.Len(t, snap.Players, 1)

	send(t, host, events.CmdStartGame, "", events.StartGameRequest{RoomCode: code, TotalImages: 1})
	readUntil(t, student, events.EvtGameStarted)

	send(t, student, events.CmdBuzz, "", events.RoomRequest{RoomCode: code})
	var q events.QueueUpdated
	require.NoError(t, readUntil(t, host, events.EvtQueueUpdated).Decode(&q))
	assert.Len(t, q.Queue, 1)

	send(t, student, events.CmdBuzz, "b2", events.RoomRequest{RoomCode: code})
	errEnv := readUntil(t, student, events.EvtError)
	assert.Equal(t, "b2", errEnv.Ref)
	var e events.Error
	require.NoError(t, errEnv.Decode(&e))
	assert.Equal(t, "already_buzzed", e.Reason)

	host.Close(websocket.StatusNormalClosure, "")
	var closed events.RoomClosed
	require.NoError(t, readUntil(t, student, events.EvtRoomClosed).Decode(&closed))
	assert.Equal(t, "host_disconnected", closed.Reason)

	assert.Eventually(t, func() bool {
		return getJSON(t, ts.URL+"/rooms/"+code, nil) == http.StatusNotFound
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWebSocket_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.MessageRate = 0.001
	cfg.MessageBurst = 1
	ts := newTestServer(t, cfg)
	conn := dial(t, ts)

	createRoom(t, conn)
	send(t, conn, events.CmdSync, "s1", events.RoomRequest{RoomCode: "ABCDEF"})

	env := readUntil(t, conn, events.EvtError)
	assert.Equal(t, "s1", env.Ref)
	var e events.Error
	require.NoError(t, env.Decode(&e))
	assert.Equal(t, "rate_limited", e.Reason)
}

func TestRoomEvents_StreamsRoomActivity(t *testing.T) {
	ts := newTestServer(t, testConfig())
	host := dial(t, ts)
	code := createRoom(t, host)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/rooms/"+code+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	nextEvent := func() string {
		for {
			line, err := r.ReadString('\n')
			require.NoError(t, err)
			if name, ok := strings.CutPrefix(strings.TrimSpace(line), "event: "); ok {
				return name
			}
		}
	}
	assert.Equal(t, events.EvtSyncState, nextEvent())

	send(t, host, events.CmdRevealStep, "", events.RevealStepRequest{RoomCode: code, Step: 2})
	assert.Equal(t, events.EvtRevealUpdated, nextEvent())

	host.Close(websocket.StatusNormalClosure, "")
	assert.Equal(t, events.EvtRoomClosed, nextEvent())
}

func TestRoomEvents_UnknownRoom(t *testing.T) {
	ts := newTestServer(t, testConfig())

	resp, err := http.Get(ts.URL + "/rooms/ZZZZZZ/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleRoomQR(t *testing.T) {
	ts := newTestServer(t, testConfig())
	code := createRoom(t, dial(t, ts))

	resp, err := http.Get(ts.URL + "/rooms/" + code + "/qr")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "\x89PNG"))

	resp, err = http.Get(ts.URL + "/rooms/NOPE00/qr")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t, testConfig())
	createRoom(t, dial(t, ts))

	var body map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/health", &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["rooms"])
	assert.EqualValues(t, 1, body["connections"])
	assert.NotContains(t, body, "database")
}

func TestHandleRoomSnapshot_NotFound(t *testing.T) {
	ts := newTestServer(t, testConfig())
	var body map[string]string
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/rooms/NOPE00", &body))
	assert.Equal(t, "room not found", body["error"])
}

func TestAnalyticsWithoutDatabase(t *testing.T) {
	ts := newTestServer(t, testConfig())
	for _, path := range []string{"/api/leaderboard", "/api/games/abc", "/api/players/Ada"} {
		assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, ts.URL+path, nil), path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, testConfig())
	createRoom(t, dial(t, ts))

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "picturebuzz_rooms_created_total 1")
}

func TestCORS(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"https://class.example"}
	ts := newTestServer(t, cfg)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://class.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://class.example", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://elsewhere.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
