package netd

import (
	"errors"
	"net"

	"github.com/shazow/rateio"
)

// TCPListener serves raw TCP connections.
type TCPListener struct {
	net.Listener
	RateLimit func() rateio.Limiter
}

// ListenTCP makes a TCP listener socket.
func ListenTCP(laddr string) (*TCPListener, error) {
	socket, err := net.Listen("tcp", laddr)
	if err != nil {
		return nil, err
	}
	return &TCPListener{Listener: socket}, nil
}

// Serve accepts connections until the listener is closed. It returns nil
// after Close.
func (l *TCPListener) Serve(handler Handler) error {
	defer l.Close()

	for {
		conn, err := l.Accept()
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		if err != nil {
			logger.Printf("Failed to accept connection: %v", err)
			return err
		}

		c := &netConnection{Conn: conn, raw: conn, transport: "tcp"}
		if l.RateLimit != nil {
			c.Conn = ReadLimitConn(conn, l.RateLimit())
		}
		go handler(c)
	}
}
