package game

import (
	"time"

	"slether-arena/internal/protocol"
)

// Publisher delivers outbound messages. Implementations must not block the
// tick loop and swallow their own delivery failures.
type Publisher interface {
	Broadcast(msg protocol.Message)
	Send(playerID string, msg protocol.Message)
}

// Publishers fans every message out to several publishers.
type Publishers []Publisher

// Broadcast forwards msg to each publisher in order.
func (ps Publishers) Broadcast(msg protocol.Message) {
	for _, p := range ps {
		p.Broadcast(msg)
	}
}

// Send forwards msg for playerID to each publisher in order.
func (ps Publishers) Send(playerID string, msg protocol.Message) {
	for _, p := range ps {
		p.Send(playerID, msg)
	}
}

// DeathEvent describes one finished life.
type DeathEvent struct {
	Tick   uint64    `json:"tick"`
	At     time.Time `json:"at"`
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	IsBot  bool      `json:"is_bot"`
	Score  int       `json:"score"`
	Cause  string    `json:"cause"`
	Killer string    `json:"killer,omitempty"`
	Drops  int       `json:"drops"`
}

// DeathSink receives every death. RecordDeath is called on the tick
// goroutine and must return quickly.
type DeathSink interface {
	RecordDeath(ev DeathEvent)
}
