package ws

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"slether-arena/internal/config"
	"slether-arena/internal/game"
)

type testServer struct {
	url    string
	close  func()
	server *Server
}

func startServer(t *testing.T, mut func(*config.Config)) *testServer {
	t.Helper()
	return startServerPong(t, mut, readTimeout)
}

func startServerPong(t *testing.T, mut func(*config.Config), pongWait time.Duration) *testServer {
	t.Helper()
	cfg := config.Defaults()
	cfg.Bot.Count = 2
	cfg.Food.FoodCount = 20
	cfg.World.TickRateHz = 50
	cfg.Server.IPCooldown = 0
	if mut != nil {
		mut(cfg)
	}
	logger := log.New(io.Discard)
	hub := NewHub(logger, 64)
	world := game.New(cfg, game.Options{Logger: logger, Rand: rand.New(rand.NewSource(7)), Publisher: hub})
	srv := NewServer(world, hub, cfg.Server, logger)
	srv.pongWait = pongWait

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	go world.Run(ctx)
	hs := httptest.NewServer(srv.Handler())
	return &testServer{
		url:    "ws" + strings.TrimPrefix(hs.URL, "http"),
		server: srv,
		close: func() {
			hs.Close()
			cancel()
		},
	}
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return m
}

func TestHandshakeThenSnapshots(t *testing.T) {
	ts := startServer(t, nil)
	defer ts.close()

	conn, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for _, want := range []string{"c", "f", "w"} {
		if m := readJSON(t, conn); m["t"] != want {
			t.Fatalf("init message: got %v want type %s", m["t"], want)
		}
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"t":"h","a":1.0}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The connection survives malformed frames and keeps streaming ticks.
	for i := 0; i < 3; i++ {
		m := readJSON(t, conn)
		if m["t"] != "s" {
			t.Fatalf("tick message: got %v want s", m["t"])
		}
		agents, ok := m["p"].(map[string]any)
		if !ok || len(agents) != 3 {
			t.Fatalf("agents: got %v want 2 bots + us", m["p"])
		}
	}
}

func TestMsgPackConnection(t *testing.T) {
	ts := startServer(t, nil)
	defer ts.close()

	conn, _, err := websocket.DefaultDialer.Dial(ts.url+"?enc=msgpack", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for _, want := range []string{"c", "f", "w", "s"} {
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		kind, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if kind != websocket.BinaryMessage {
			t.Fatalf("frame type: got %d want binary", kind)
		}
		var m map[string]any
		if err := msgpack.Unmarshal(raw, &m); err != nil {
			t.Fatalf("msgpack decode: %v", err)
		}
		if m["t"] != want {
			t.Fatalf("message: got %v want %s", m["t"], want)
		}
	}
}

func TestUnknownEncodingRejected(t *testing.T) {
	ts := startServer(t, nil)
	defer ts.close()

	_, resp, err := websocket.DefaultDialer.Dial(ts.url+"?enc=xml", nil)
	if err == nil {
		t.Fatalf("dial with unknown encoding succeeded")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("response: %+v", resp)
	}
}

func TestServerFullClosesConnection(t *testing.T) {
	ts := startServer(t, func(c *config.Config) { c.Server.MaxPlayers = 0 })
	defer ts.close()

	conn, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseTryAgainLater) {
		t.Fatalf("read: got %v want close 1013", err)
	}
}

func TestIPRateLimiter(t *testing.T) {
	rl := newIPRateLimiter(2 * time.Second)
	now := time.Now()
	if !rl.allow("1.2.3.4", now) {
		t.Fatalf("first connect refused")
	}
	if rl.allow("1.2.3.4", now.Add(time.Second)) {
		t.Fatalf("connect inside cooldown allowed")
	}
	if !rl.allow("5.6.7.8", now.Add(time.Second)) {
		t.Fatalf("other ip refused")
	}
	if !rl.allow("1.2.3.4", now.Add(3*time.Second)) {
		t.Fatalf("connect after cooldown refused")
	}
}

func TestSilentSpectatorKeptAliveByPings(t *testing.T) {
	const pongWait = 200 * time.Millisecond
	ts := startServerPong(t, nil, pongWait)
	defer ts.close()

	conn, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"t":"x"}`)); err != nil {
		t.Fatalf("spectate: %v", err)
	}

	// The client never writes again; its default ping handler answers
	// with pongs while it reads.
	deadline := time.Now().Add(5 * pongWait)
	snapshots := 0
	for time.Now().Before(deadline) {
		if m := readJSON(t, conn); m["t"] == "s" {
			snapshots++
		}
	}
	if snapshots == 0 {
		t.Fatalf("spectator received no snapshots")
	}
}
