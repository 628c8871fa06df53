// Package natsbridge mirrors the world's outbound messages onto NATS so
// other services (spectator relays, stats consumers) can follow a match
// without holding a websocket.
package natsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"slether-arena/internal/protocol"
)

// LeaderboardKey is the KV key holding the latest leaderboard.
const LeaderboardKey = "leaderboard"

type outbound struct {
	subject string
	msg     protocol.Message
}

// Publisher implements game.Publisher on top of a NATS connection.
// Snapshots go to "<prefix>.tick", direct messages to
// "<prefix>.player.<id>", other broadcasts to "<prefix>.<type>".
type Publisher struct {
	prefix  string
	log     *log.Logger
	publish func(subject string, data []byte) error
	kv      jetstream.KeyValue
	nc      *nats.Conn

	queue   chan outbound
	dropped atomic.Uint64
}

// Connect dials url and prepares a publisher. When bucket is not empty the
// latest leaderboard is also kept in that JetStream KV bucket.
func Connect(ctx context.Context, url, prefix, bucket string, logger *log.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("slether-arena"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	p := newPublisher(prefix, logger, nc.Publish)
	p.nc = nc

	if bucket != "" {
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("creating jetstream context: %w", err)
		}
		kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:  bucket,
			History: 1,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("creating kv bucket %s: %w", bucket, err)
		}
		p.kv = kv
	}
	logger.Info("nats bridge connected", "url", nc.ConnectedUrl(), "prefix", prefix, "bucket", bucket)
	return p, nil
}

func newPublisher(prefix string, logger *log.Logger, publish func(string, []byte) error) *Publisher {
	return &Publisher{
		prefix:  prefix,
		log:     logger,
		publish: publish,
		queue:   make(chan outbound, 256),
	}
}

func (p *Publisher) subjectFor(msg protocol.Message) string {
	if msg.MsgType() == protocol.MsgState {
		return p.prefix + ".tick"
	}
	return p.prefix + "." + msg.MsgType()
}

func (p *Publisher) Broadcast(msg protocol.Message) {
	p.enqueue(outbound{subject: p.subjectFor(msg), msg: msg})
}

func (p *Publisher) Send(playerID string, msg protocol.Message) {
	p.enqueue(outbound{subject: p.prefix + ".player." + playerID, msg: msg})
}

func (p *Publisher) enqueue(o outbound) {
	select {
	case p.queue <- o:
	default:
		p.dropped.Add(1)
	}
}

// Dropped returns how many messages were not published.
func (p *Publisher) Dropped() uint64 { return p.dropped.Load() }

// Run publishes queued messages until ctx is done, then drains the
// connection.
func (p *Publisher) Run(ctx context.Context) {
	defer func() {
		if p.nc != nil {
			if err := p.nc.Drain(); err != nil {
				p.log.Warn("nats drain failed", "err", err)
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-p.queue:
			p.handle(ctx, o)
		}
	}
}

func (p *Publisher) handle(ctx context.Context, o outbound) {
	data, err := protocol.Encode(o.msg, protocol.JSON)
	if err != nil {
		p.log.Error("nats encode failed", "subject", o.subject, "err", err)
		return
	}
	if err := p.publish(o.subject, data); err != nil {
		p.dropped.Add(1)
		p.log.Debug("nats publish failed", "subject", o.subject, "err", err)
		return
	}
	snap, ok := o.msg.(protocol.TickSnapshot)
	if !ok || p.kv == nil {
		return
	}
	lb, err := json.Marshal(snap.Leaderboard)
	if err != nil {
		return
	}
	if _, err := p.kv.Put(ctx, LeaderboardKey, lb); err != nil {
		p.log.Debug("kv put failed", "key", LeaderboardKey, "err", err)
	}
}
