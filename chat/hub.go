package chat

import (
	"errors"

	"github.com/shazow/relay-chat/chat/message"
)

// Hub interprets protocol lines against a shared Registry. It is safe for
// concurrent use by every connection's session.
type Hub struct {
	*Registry
	commands Commands
}

// NewHub creates a Hub with an empty registry and the default commands.
func NewHub() *Hub {
	h := Hub{
		Registry: NewRegistry(),
		commands: Commands{},
	}
	InitCommands(&h.commands)
	return &h
}

// SetCommands replaces the hub's command handlers.
func (h *Hub) SetCommands(commands Commands) {
	h.commands = commands
}

// HandleLine parses and runs one line received from conn. Protocol errors are
// reported back to conn and swallowed. Any other error means the registry
// and the connection disagree; the connection is closed and the error
// returned so the caller can stop reading from it.
func (h *Hub) HandleLine(conn Conn, line string) error {
	msg := message.ParseInput(line)
	if msg.IsEmpty() {
		return nil
	}

	name, _ := h.Handle(conn)
	err := h.commands.Run(h, Request{CommandMsg: msg, Conn: conn, Name: name})
	if err == nil {
		return nil
	}

	var perr ProtocolError
	if errors.As(err, &perr) {
		if err := conn.Send(message.NewErrorMsg(perr.Error())); err != nil {
			logger.Printf("[%s] Failed to send error: %s", name, err)
		}
		return nil
	}

	logger.Printf("[%s] Closing after %q: %s", name, msg.Command(), err)
	conn.Close()
	return err
}

// Disconnect releases conn's handle and room memberships and tells everyone
// else. It returns the released handle, if conn had one.
func (h *Hub) Disconnect(conn Conn) (string, bool) {
	name, ok := h.Handle(conn)
	if !ok {
		return "", false
	}
	return h.Deregister(conn, announce(name+" disconnected", usersOnly))
}
