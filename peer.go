package relaychat

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shazow/relay-chat/chat/message"
	"github.com/shazow/relay-chat/netd"
)

const (
	defaultOutboundBuffer = 64

	// HELLO alone queues four lines for the new peer.
	minOutboundBuffer = 8
)

// The error returned when a message is sent to a peer that is closed.
var ErrPeerClosed = errors.New("peer closed")

// Peer is the outbound side of one connection. Messages are queued by Send,
// which never blocks, and written in order by Consume.
type Peer struct {
	id     string
	conn   netd.Connection
	joined time.Time
	msg    chan message.Message
	done   chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewPeer creates a peer writing to conn, holding up to buffer queued
// messages. Zero picks a default, anything else is raised to at least
// minOutboundBuffer.
func NewPeer(conn netd.Connection, buffer int) *Peer {
	if buffer <= 0 {
		buffer = defaultOutboundBuffer
	} else if buffer < minOutboundBuffer {
		buffer = minOutboundBuffer
	}
	return &Peer{
		id:     uuid.NewString(),
		conn:   conn,
		joined: time.Now(),
		msg:    make(chan message.Message, buffer),
		done:   make(chan struct{}),
	}
}

// ID is unique to this connection, for logging.
func (p *Peer) ID() string {
	return p.id
}

// Joined is when the connection was accepted.
func (p *Peer) Joined() time.Time {
	return p.joined
}

// Send queues m. A peer that has fallen a whole buffer behind is considered
// stalled and its connection is closed instead, which also ends its session.
// Send never blocks, it is called with the registry locked.
func (p *Peer) Send(m message.Message) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPeerClosed
	}
	select {
	case p.msg <- m:
		p.mu.RUnlock()
		return nil
	default:
	}
	p.mu.RUnlock()

	logger.Warningf("[%s] Msg buffer full, closing", p.id)
	p.Close()
	// The writer may be blocked on this connection, holding it.
	go p.conn.Close()
	return ErrPeerClosed
}

// Consume writes queued messages to the connection until the peer is closed
// and the queue drained, then shuts the connection down. Will block, should
// be called in a goroutine.
func (p *Peer) Consume() {
	defer close(p.done)
	for m := range p.msg {
		if _, err := p.conn.Write(message.Line(m)); err != nil {
			logger.Debugf("[%s] Write failed, closing: %s", p.id, err)
			p.Close()
			break
		}
	}
	p.conn.Shutdown()
}

// Wait blocks until Consume has returned.
func (p *Peer) Wait() {
	<-p.done
}

// Done is closed once Consume has returned.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Close stops accepting messages. Whatever is already queued is still
// written before the connection is shut down.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.msg)
		p.mu.Unlock()
	})
	return nil
}
