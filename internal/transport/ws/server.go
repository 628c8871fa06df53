// Package ws serves the arena over websockets: one reader loop and one
// writer goroutine per connection, with the Hub fanning out world output.
package ws

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"slether-arena/internal/config"
	"slether-arena/internal/game"
	"slether-arena/internal/protocol"
)

const (
	writeTimeout = 5 * time.Second
	// A client is dropped when neither a frame nor a pong arrives for this long.
	readTimeout = 60 * time.Second
)

// ipRateLimiter tracks last connection time per IP to prevent abuse
type ipRateLimiter struct {
	mu       sync.Mutex
	cooldown time.Duration
	times    map[string]time.Time
}

func newIPRateLimiter(cooldown time.Duration) *ipRateLimiter {
	return &ipRateLimiter{cooldown: cooldown, times: make(map[string]time.Time)}
}

// allow returns true if this IP can connect, and records the attempt
func (rl *ipRateLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if last, ok := rl.times[ip]; ok && now.Sub(last) < rl.cooldown {
		return false
	}
	rl.times[ip] = now
	if len(rl.times) > 4096 {
		for k, t := range rl.times {
			if now.Sub(t) >= rl.cooldown {
				delete(rl.times, k)
			}
		}
	}
	return true
}

// Server upgrades HTTP requests and attaches each connection to the World.
type Server struct {
	world *game.World
	hub   *Hub
	cfg   config.ServerConfig
	log   *log.Logger

	limiter  *ipRateLimiter
	upgrader websocket.Upgrader
	pongWait time.Duration
}

// NewServer returns a Server admitting players into w and registering their
// outbound queues with hub.
func NewServer(w *game.World, hub *Hub, cfg config.ServerConfig, logger *log.Logger) *Server {
	return &Server{
		world:    w,
		hub:      hub,
		cfg:      cfg,
		log:      logger,
		limiter:  newIPRateLimiter(cfg.IPCooldown),
		pongWait: readTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow all origins for development; tighten in production
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Enable per-message deflate compression (RFC 7692)
			EnableCompression: true,
		},
	}
}

func clientIP(r *http.Request) string {
	// Handle X-Forwarded-For for reverse proxies
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func frameType(enc protocol.Encoding) int {
	if enc == protocol.MsgPack {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	conn.Close()
}

// Handler upgrades requests to websocket sessions. The optional ?enc=msgpack
// query selects binary frames.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		enc, err := protocol.ParseEncoding(r.URL.Query().Get("enc"))
		if err != nil {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		ip := clientIP(r)

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.log.Debug("ws upgrade failed", "ip", ip, "err", err)
			return
		}

		// Check limits after upgrade so client can receive the close reason
		if s.hub.Count() >= s.cfg.MaxPlayers {
			closeWith(conn, websocket.CloseTryAgainLater, "server full")
			return
		}
		if !s.limiter.allow(ip, time.Now()) {
			closeWith(conn, websocket.ClosePolicyViolation, "too many connections")
			return
		}
		defer conn.Close()
		conn.EnableWriteCompression(true)

		c := newClient(uuid.New().String(), enc, s.cfg.OutboundQueue)
		if err := s.handshake(conn, c); err != nil {
			s.log.Debug("handshake failed", "id", c.id, "err", err)
			s.leave(c)
			return
		}
		s.log.Info("player connected", "id", c.id, "ip", ip, "enc", enc)

		stop := make(chan struct{})
		var writer sync.WaitGroup
		writer.Add(1)
		go func() {
			defer writer.Done()
			s.writeLoop(conn, c, stop)
		}()

		s.readLoop(conn, c)

		close(stop)
		writer.Wait()
		s.leave(c)
		s.log.Info("player disconnected", "id", c.id)
	}
}

func (s *Server) leave(c *client) {
	s.hub.Unregister(c.id)
	select {
	case s.world.Leave() <- c.id:
	case <-s.world.Done():
	}
}

var errWorldStopped = errors.New("world stopped")

// handshake joins the World and writes the init messages directly, before
// the writer goroutine starts draining snapshots.
func (s *Server) handshake(conn *websocket.Conn, c *client) error {
	resp := make(chan game.JoinResponse, 1)
	req := game.JoinRequest{
		ID:     c.id,
		Attach: func() { s.hub.Register(c) },
		Resp:   resp,
	}
	select {
	case s.world.Join() <- req:
	case <-s.world.Done():
		return errWorldStopped
	}

	var jr game.JoinResponse
	select {
	case jr = <-resp:
	case <-s.world.Done():
		return errWorldStopped
	}
	for _, msg := range jr.Messages {
		b, err := protocol.Encode(msg, c.enc)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(frameType(c.enc), b); err != nil {
			return err
		}
	}
	return nil
}

// writeLoop drains the client queue and pings often enough that a silent
// client, such as a spectator, is not timed out.
func (s *Server) writeLoop(conn *websocket.Conn, c *client, stop <-chan struct{}) {
	ping := time.NewTicker(s.pongWait * 9 / 10)
	defer ping.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				s.log.Debug("ws ping failed", "id", c.id, "err", err)
				conn.Close()
				return
			}
		case b := <-c.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(frameType(c.enc), b); err != nil {
				s.log.Debug("ws write failed", "id", c.id, "err", err)
				// Unblock the reader.
				conn.Close()
				return
			}
		}
	}
}

// readLoop forwards decoded intents to the World until the connection drops.
// Malformed and unknown frames are dropped.
func (s *Server) readLoop(conn *websocket.Conn, c *client) {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.pongWait))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("ws read error", "id", c.id, "err", err)
			}
			return
		}
		intent, err := protocol.DecodeIntent(raw, c.enc)
		if err != nil {
			s.log.Debug("bad message", "id", c.id, "err", err)
			continue
		}
		select {
		case s.world.Inbox() <- protocol.Envelope{PlayerID: c.id, Intent: intent}:
		case <-s.world.Done():
			return
		}
	}
}
