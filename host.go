package relaychat

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shazow/rateio"
	"github.com/shazow/relay-chat/chat"
	"github.com/shazow/relay-chat/chat/message"
	"github.com/shazow/relay-chat/netd"
)

const (
	readBufferSize = 2048

	// flushTimeout bounds how long a closing session waits for its queued
	// output to be written.
	flushTimeout = 5 * time.Second
)

// fingerprinter is implemented by connections whose client offered a public
// key, such as SSH.
type fingerprinter interface {
	Fingerprint() string
}

// identify describes the remote end of conn for logging.
func identify(conn netd.Connection) string {
	addr := conn.RemoteAddr().String()
	if c, ok := conn.(interface{ User() string }); ok && c.User() != "" {
		addr = c.User() + "@" + addr
	}
	id := conn.Transport() + " " + addr
	if c, ok := conn.(fingerprinter); ok {
		if fp := c.Fingerprint(); fp != "" {
			id += " " + fp
		}
	}
	return id
}

// Host is the bridge between netd and chat modules: it runs one session per
// connection against a shared chat.Hub.
type Host struct {
	*chat.Hub

	// OutboundBuffer is how many messages may wait for a slow peer before it
	// is disconnected. Zero picks a default.
	OutboundBuffer int

	// MaxLineLength rejects longer lines and disconnects peers whose partial
	// line grows past it. Zero means unbounded.
	MaxLineLength int

	// LineLimit, if set, makes a limiter per connection that is counted once
	// per line.
	LineLimit func() rateio.Limiter

	mu    sync.Mutex
	count int
}

// NewHost creates a Host with an empty registry.
func NewHost() *Host {
	return &Host{
		Hub: chat.NewHub(),
	}
}

// Serve runs a session for every connection the listener accepts, until it
// is closed.
func (h *Host) Serve(listener netd.Listener) error {
	return listener.Serve(h.Connect)
}

// Connect runs the session of one connection: lines are read, reassembled
// and handled in order until the connection ends, then the peer's handle is
// released. Will block until then.
func (h *Host) Connect(conn netd.Connection) {
	peer := NewPeer(conn, h.OutboundBuffer)
	go peer.Consume()

	h.mu.Lock()
	h.count++
	h.mu.Unlock()

	addr := identify(conn)
	logger.Debugf("[%s] Connected: %s", addr, peer.ID())

	var read uint64
	defer func() {
		peer.Close()
		select {
		case <-peer.Done():
		case <-time.After(flushTimeout):
			logger.Debugf("[%s] Output not flushed after %s, dropping it", addr, flushTimeout)
		}
		conn.Close()
	}()
	defer func() {
		name, ok := h.Disconnect(peer)
		if !ok {
			logger.Debugf("[%s] Left without a handle after reading %s", addr, humanize.Bytes(read))
			return
		}
		logger.Infof("[%s] %s disconnected, joined %s, read %s", addr, name, humanize.Time(peer.Joined()), humanize.Bytes(read))
	}()

	var limiter rateio.Limiter
	if h.LineLimit != nil {
		limiter = h.LineLimit()
	}

	framer := message.Framer{}
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		read += uint64(n)
		for _, line := range framer.Feed(buf[:n]) {
			if !h.handleLine(peer, limiter, line) {
				return
			}
		}
		if err == io.EOF {
			// Closed
			return
		} else if errors.Is(err, net.ErrClosed) {
			return
		} else if err != nil {
			logger.Debugf("[%s] Read error: %s", addr, err)
			return
		}
		if h.MaxLineLength > 0 && framer.Buffered() > h.MaxLineLength {
			logger.Warningf("[%s] Line exceeds %d bytes, closing", addr, h.MaxLineLength)
			return
		}
	}
}

// handleLine runs one line and reports whether the session should go on.
func (h *Host) handleLine(peer *Peer, limiter rateio.Limiter, line string) bool {
	if line == "" {
		// Silently ignore empty lines.
		return true
	}
	if limiter != nil {
		if err := limiter.Count(1); err != nil {
			peer.Send(message.NewErrorMsg("Message rejected: Rate limiting is in effect."))
			return true
		}
	}
	if h.MaxLineLength > 0 && len(line) > h.MaxLineLength {
		peer.Send(message.NewErrorMsg("Message rejected: Input too long."))
		return true
	}
	if err := h.HandleLine(peer, line); err != nil {
		logger.Errorf("[%s] Failed to handle %q: %s", peer.ID(), line, err)
		return false
	}
	return true
}

// Count returns the number of connections served since the host started.
func (h *Host) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}
