package chat

import (
	"errors"
	"fmt"

	"github.com/shazow/relay-chat/chat/message"
)

// Request is a parsed line together with the connection that sent it.
type Request struct {
	*message.CommandMsg

	Conn Conn
	// Name is the sender's handle, empty until it sends HELLO.
	Name string
}

// Command is a definition of a handler for a command.
type Command struct {
	// The command's name, such as JOIN
	Name string
	// Argument summary, for documentation
	Usage string
	// Command may be run before the sender has a handle
	Anonymous bool
	Handler   func(*Hub, Request) error
}

// Commands is a registry of available commands.
type Commands map[string]*Command

// Add will register a command.
func (c Commands) Add(cmd Command) error {
	if cmd.Name == "" {
		return ErrMissingName
	}

	c[cmd.Name] = &cmd
	return nil
}

// Alias will add another name for the same handler.
func (c Commands) Alias(command string, alias string) error {
	cmd, ok := c[command]
	if !ok {
		return ErrInvalidCommand
	}
	c[alias] = cmd
	return nil
}

// Run executes a command. Senders without a handle may only run Anonymous
// commands; anything else, including unknown commands, asks them to HELLO.
func (c Commands) Run(hub *Hub, req Request) error {
	cmd, ok := c[req.Command()]
	if req.Name == "" && (!ok || !cmd.Anonymous) {
		return ErrNotRegistered
	}
	if !ok {
		return ErrInvalidCommand
	}
	return cmd.Handler(hub, req)
}

// usersAndRooms renders the USERS and ROOMS listings, in that order.
func usersAndRooms(s Snapshot) []message.Message {
	return []message.Message{
		message.NewUsersMsg(s.Users),
		message.NewRoomsMsg(s.Rooms),
	}
}

// announce renders an INFO line followed by the listings picked by extra.
func announce(body string, extra func(Snapshot) []message.Message) Renderer {
	return func(s Snapshot) []message.Message {
		msgs := []message.Message{message.NewInfoMsg(body)}
		if extra != nil {
			msgs = append(msgs, extra(s)...)
		}
		return msgs
	}
}

func roomsOnly(s Snapshot) []message.Message {
	return []message.Message{message.NewRoomsMsg(s.Rooms)}
}

func usersOnly(s Snapshot) []message.Message {
	return []message.Message{message.NewUsersMsg(s.Users)}
}

// InitCommands adds the protocol commands to a Commands container.
func InitCommands(c *Commands) {
	c.Add(Command{
		Name:      "HELLO",
		Usage:     "HELLO|<name>",
		Anonymous: true,
		Handler: func(hub *Hub, req Request) error {
			if req.Name != "" {
				return ErrAlreadyRegistered
			}
			name := req.Arg(0)
			if name == "" {
				return ErrUsernameRequired
			}
			return hub.Register(name, req.Conn,
				message.NewWelcomeMsg(name),
				announce(name+" joined", usersAndRooms),
			)
		},
	})

	c.Add(Command{
		Name:  "MSG",
		Usage: "MSG|<to>|<text>",
		Handler: func(hub *Hub, req Request) error {
			return hub.SendTo(req.Arg(0), message.NewPrivateMsg(req.Arg(1), req.Name))
		},
	})

	c.Add(Command{
		Name:  "JOIN",
		Usage: "JOIN|<room>",
		Handler: func(hub *Hub, req Request) error {
			room := req.Arg(0)
			if room == "" {
				return ErrRoomRequired
			}
			hub.Join(room, req.Name, announce(req.Name+" joined room "+room, roomsOnly))
			return nil
		},
	})

	c.Add(Command{
		Name:  "LEAVE",
		Usage: "LEAVE|<room>",
		Handler: func(hub *Hub, req Request) error {
			room := req.Arg(0)
			if room == "" {
				return ErrRoomRequired
			}
			hub.Leave(room, req.Name, announce(req.Name+" left room "+room, roomsOnly))
			return nil
		},
	})

	c.Add(Command{
		Name:  "ROOMMSG",
		Usage: "ROOMMSG|<room>|<text>",
		Handler: func(hub *Hub, req Request) error {
			room := req.Arg(0)
			return hub.SendRoom(room, req.Name, message.NewRoomMsg(req.Arg(1), room, req.Name))
		},
	})

	c.Add(Command{
		Name:  "LIST",
		Usage: "LIST",
		Handler: func(hub *Hub, req Request) error {
			hub.Broadcast(usersAndRooms)
			return nil
		},
	})

	c.Add(Command{
		Name:  "EXIT",
		Usage: "EXIT",
		Handler: func(hub *Hub, req Request) error {
			if err := req.Conn.Close(); err != nil {
				logger.Printf("[%s] Failed to close on exit: %s", req.Name, err)
			}
			return nil
		},
	})

	c.Add(Command{
		Name:  "FILE",
		Usage: "FILE|dm|<user>|<filename>|<data>, FILE|room|<room>|<filename>|<data>",
		Handler: func(hub *Hub, req Request) error {
			if len(req.Args()) < 4 {
				// Malformed shares are dropped without a reply.
				return nil
			}
			target, filename, data := req.Arg(1), req.Arg(2), req.Rest(3)
			switch req.Arg(0) {
			case "dm":
				err := hub.SendTo(target, message.NewFileMsg(req.Name, filename, data))
				if errors.Is(err, ErrNotOnline) {
					return ProtocolError(fmt.Sprintf("User %s not found or offline", target))
				}
				return err
			case "room":
				err := hub.ShareRoom(target, req.Name, message.NewRoomFileMsg(target, req.Name, filename, data))
				if errors.Is(err, ErrNoRoom) {
					return ProtocolError(fmt.Sprintf("Room %s not found", target))
				}
				return err
			}
			return nil
		},
	})
}
