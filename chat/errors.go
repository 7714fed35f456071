package chat

import "errors"

// ProtocolError is reported to the offending peer as an ERROR line. Its text
// is sent verbatim.
type ProtocolError string

func (e ProtocolError) Error() string {
	return string(e)
}

var (
	ErrUsernameRequired  = ProtocolError("Username required")
	ErrHandleTaken       = ProtocolError("Username already in use")
	ErrAlreadyRegistered = ProtocolError("Already registered")
	ErrNotRegistered     = ProtocolError("Send HELLO|<username> first")
	ErrNotOnline         = ProtocolError("User not online")
	ErrRoomRequired      = ProtocolError("Room name required")
	ErrNotMember         = ProtocolError("Join the room first")
	ErrInvalidCommand    = ProtocolError("Unknown command")
)

// The error returned when a connection that already holds a handle is
// registered again.
var ErrConnBound = errors.New("connection already registered")

// The error returned when a room that was never joined is addressed.
var ErrNoRoom = errors.New("room does not exist")

// The error returned when a command is added without a name.
var ErrMissingName = errors.New("command missing name")
