package netd

import (
	"io"
	"net"
)

// Connection is a bidirectional byte stream to one peer. Read returns io.EOF
// once the peer or a Shutdown closed the stream.
type Connection interface {
	io.ReadWriteCloser

	// Shutdown stops reads and writes in both directions without releasing
	// the connection. Close must still be called.
	Shutdown() error

	RemoteAddr() net.Addr

	// Transport names the kind of connection, such as "tcp", for logging.
	Transport() string
}

// Handler serves one connection. It runs in its own goroutine and owns the
// connection until it returns.
type Handler func(Connection)

// Listener accepts connections of one transport.
type Listener interface {
	// Serve accepts connections until the listener is closed, running handler
	// in a new goroutine for each.
	Serve(handler Handler) error
	Addr() net.Addr
	Close() error
}

type halfCloser interface {
	CloseRead() error
	CloseWrite() error
}

// netConnection adapts a net.Conn.
type netConnection struct {
	net.Conn
	raw       net.Conn
	transport string
}

func (c *netConnection) Shutdown() error {
	hc, ok := c.raw.(halfCloser)
	if !ok {
		return c.Conn.Close()
	}
	errs := MultiError{}
	if err := hc.CloseRead(); err != nil {
		errs = append(errs, err)
	}
	if err := hc.CloseWrite(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func (c *netConnection) Transport() string {
	return c.transport
}
