package ws

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"slether-arena/internal/protocol"
)

// client is one connected viewer's outbound side.
type client struct {
	id  string
	enc protocol.Encoding
	out chan []byte
}

func newClient(id string, enc protocol.Encoding, queue int) *client {
	if queue <= 0 {
		queue = 8
	}
	return &client{id: id, enc: enc, out: make(chan []byte, queue)}
}

type outbound struct {
	msg protocol.Message
	to  []*client
}

// Hub fans messages out to connected clients. It implements
// game.Publisher: Broadcast and Send fix the recipient set and return
// immediately; encoding and delivery happen on the Run goroutine.
type Hub struct {
	log *log.Logger

	mu      sync.RWMutex
	clients map[string]*client

	queue   chan outbound
	dropped atomic.Uint64
}

// NewHub creates a hub whose internal queue holds up to depth messages.
func NewHub(logger *log.Logger, depth int) *Hub {
	if depth <= 0 {
		depth = 256
	}
	return &Hub{
		log:     logger,
		clients: make(map[string]*client),
		queue:   make(chan outbound, depth),
	}
}

// Register adds c as a recipient of future broadcasts.
func (h *Hub) Register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

// Unregister removes a client. Queued messages for it are discarded.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded so far.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Broadcast queues msg for every client registered at the time of the call.
func (h *Hub) Broadcast(msg protocol.Message) {
	h.mu.RLock()
	to := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		to = append(to, c)
	}
	h.mu.RUnlock()
	if len(to) == 0 {
		return
	}
	h.enqueue(outbound{msg: msg, to: to})
}

// Send queues msg for one client. Unknown ids are ignored.
func (h *Hub) Send(id string, msg protocol.Message) {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.enqueue(outbound{msg: msg, to: []*client{c}})
}

func (h *Hub) enqueue(o outbound) {
	select {
	case h.queue <- o:
	default:
		h.dropped.Add(1)
		h.log.Debug("hub queue full, dropping message", "type", o.msg.MsgType())
	}
}

// Run encodes and delivers queued messages until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-h.queue:
			h.deliver(o)
		}
	}
}

func (h *Hub) deliver(o outbound) {
	// Each message is encoded at most once per wire format. A format that
	// fails to encode is skipped; clients on the other format still get it.
	var (
		encoded [2][]byte
		failed  [2]bool
	)
	for _, c := range o.to {
		if failed[c.enc] {
			h.dropped.Add(1)
			continue
		}
		b := encoded[c.enc]
		if b == nil {
			var err error
			b, err = protocol.Encode(o.msg, c.enc)
			if err != nil {
				h.log.Error("encode failed", "type", o.msg.MsgType(), "enc", c.enc, "err", err)
				failed[c.enc] = true
				h.dropped.Add(1)
				continue
			}
			encoded[c.enc] = b
		}
		if !sendLatest(c.out, b) {
			h.dropped.Add(1)
		}
	}
}

// sendLatest enqueues b, discarding the oldest queued frame when full.
func sendLatest(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}
