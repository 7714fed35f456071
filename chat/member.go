package chat

import "github.com/shazow/relay-chat/chat/message"

// Conn is the outbound side of a connected peer, as seen by the chat package.
// Implementations must be comparable, since the registry keys on them.
type Conn interface {
	// Send queues a message for delivery. It must not block, as it is called
	// while the registry is locked.
	Send(message.Message) error

	// Close shuts the connection down in both directions. The session reading
	// from it observes end-of-stream and disconnects.
	Close() error
}
