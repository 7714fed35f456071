package netd

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/shazow/rateio"
	"golang.org/x/crypto/ssh"
)

// SSHListener serves the line protocol over the session channel of SSH
// connections.
type SSHListener struct {
	net.Listener
	config    *ssh.ServerConfig
	RateLimit func() rateio.Limiter
}

// ListenSSH makes an SSH listener socket.
func ListenSSH(laddr string, config *ssh.ServerConfig) (*SSHListener, error) {
	socket, err := net.Listen("tcp", laddr)
	if err != nil {
		return nil, err
	}
	l := SSHListener{Listener: socket, config: config}
	return &l, nil
}

func (l *SSHListener) handleConn(conn net.Conn) (*sshConnection, error) {
	if l.RateLimit != nil {
		conn = ReadLimitConn(conn, l.RateLimit())
	}

	// Upgrade TCP connection to SSH connection
	sshConn, channels, requests, err := ssh.NewServerConn(conn, l.config)
	if err != nil {
		return nil, err
	}

	go ssh.DiscardRequests(requests)
	c, err := newSession(sshConn, channels)
	if err != nil {
		sshConn.Close()
		return nil, err
	}
	go keepAlive(c, 30*time.Second)
	return c, nil
}

// Serve accepts connections until the listener is closed. Handshakes run in
// their own goroutine so a slow client does not hold up the others.
func (l *SSHListener) Serve(handler Handler) error {
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

		go func() {
			c, err := l.handleConn(conn)
			if err != nil {
				logger.Printf("[%s] Failed to handshake: %v", conn.RemoteAddr(), err)
				conn.Close()
				return
			}
			handler(c)
		}()
	}
}

// sshConnection is the first session channel of an SSH connection.
type sshConnection struct {
	ssh.Channel
	conn *ssh.ServerConn
}

// newSession accepts the first session channel and rejects everything else.
func newSession(conn *ssh.ServerConn, channels <-chan ssh.NewChannel) (*sshConnection, error) {
	for ch := range channels {
		if t := ch.ChannelType(); t != "session" {
			ch.Reject(ssh.UnknownChannelType, fmt.Sprintf("unknown channel type: %s", t))
			continue
		}

		channel, requests, err := ch.Accept()
		if err != nil {
			return nil, err
		}
		go acceptShell(requests)
		go func() {
			for ch := range channels {
				ch.Reject(ssh.Prohibited, "only one session allowed")
			}
		}()
		return &sshConnection{Channel: channel, conn: conn}, nil
	}
	return nil, errors.New("connection closed before a session was opened")
}

// acceptShell agrees to start a shell or allocate a pty, which is what
// interactive clients ask for first, and refuses the rest.
func acceptShell(requests <-chan *ssh.Request) {
	for req := range requests {
		ok := false
		switch req.Type {
		case "shell", "pty-req", "window-change":
			ok = true
		}
		if req.WantReply {
			req.Reply(ok, nil)
		}
	}
}

// keepAlive pings the client every interval until a ping fails.
func keepAlive(c *sshConnection, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for range tick.C {
		if _, _, err := c.conn.SendRequest("keepalive@openssh.com", true, nil); err != nil {
			return
		}
	}
}

// Shutdown closes the channel, which the client sees as end of session.
func (c *sshConnection) Shutdown() error {
	c.Channel.CloseWrite()
	return c.Channel.Close()
}

// Close closes the whole SSH connection.
func (c *sshConnection) Close() error {
	return c.conn.Close()
}

func (c *sshConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *sshConnection) Transport() string {
	return "ssh"
}

// User is the name the client authenticated as.
func (c *sshConnection) User() string {
	return c.conn.User()
}

// Fingerprint of the client's public key, empty if it did not offer one.
func (c *sshConnection) Fingerprint() string {
	if c.conn.Permissions == nil {
		return ""
	}
	return c.conn.Permissions.Extensions["fingerprint"]
}
