package message

import (
	"fmt"
	"strings"
)

// Newline terminates every line on the wire.
const Newline = "\n"

// Delimiter separates the fields of a line.
const Delimiter = "|"

// Message is a single line sent to a peer, rendered without its trailing
// Newline.
type Message interface {
	String() string
}

// Line renders m as it is written to the wire.
func Line(m Message) []byte {
	return []byte(m.String() + Newline)
}

// Msg is a base type for messages that carry a free-form body.
type Msg struct {
	body string
}

// WelcomeMsg acknowledges a successful HELLO to the new user only.
type WelcomeMsg struct {
	name string
}

func NewWelcomeMsg(name string) *WelcomeMsg {
	return &WelcomeMsg{name: name}
}

func (m WelcomeMsg) String() string {
	return "WELCOME|" + m.name + "|"
}

// UsersMsg lists every registered handle.
type UsersMsg struct {
	names []string
}

func NewUsersMsg(names []string) *UsersMsg {
	return &UsersMsg{names: names}
}

func (m UsersMsg) String() string {
	return "USERS|" + strings.Join(m.names, ",") + "|"
}

// RoomsMsg lists every room that was ever joined, including empty ones.
type RoomsMsg struct {
	rooms []string
}

func NewRoomsMsg(rooms []string) *RoomsMsg {
	return &RoomsMsg{rooms: rooms}
}

func (m RoomsMsg) String() string {
	return "ROOMS|" + strings.Join(m.rooms, ",") + "|"
}

// InfoMsg is an announcement, usually broadcast to everyone.
type InfoMsg struct {
	Msg
}

func NewInfoMsg(body string) *InfoMsg {
	return &InfoMsg{Msg{body}}
}

func (m InfoMsg) String() string {
	return "INFO||" + m.body
}

// ErrorMsg is sent to the peer that caused it and nobody else.
type ErrorMsg struct {
	Msg
}

func NewErrorMsg(body string) *ErrorMsg {
	return &ErrorMsg{Msg{body}}
}

func (m ErrorMsg) String() string {
	return "ERROR||" + m.body
}

// PrivateMsg is a direct message, delivered to the recipient only.
type PrivateMsg struct {
	Msg
	from string
}

func NewPrivateMsg(body string, from string) *PrivateMsg {
	return &PrivateMsg{Msg: Msg{body}, from: from}
}

func (m PrivateMsg) String() string {
	return "FROM|" + m.from + "|" + m.body
}

// RoomMsg is a message fanned out to the members of a room.
type RoomMsg struct {
	Msg
	room string
	from string
}

func NewRoomMsg(body string, room string, from string) *RoomMsg {
	return &RoomMsg{Msg: Msg{body}, room: room, from: from}
}

func (m RoomMsg) String() string {
	return fmt.Sprintf("ROOMFROM|%s|%s: %s", m.room, m.from, m.body)
}

// FileMsg carries an encoded file to a single user.
type FileMsg struct {
	from     string
	filename string
	data     string
}

func NewFileMsg(from, filename, data string) *FileMsg {
	return &FileMsg{from: from, filename: filename, data: data}
}

func (m FileMsg) String() string {
	return strings.Join([]string{"FILE_FROM", m.from, m.filename, m.data}, Delimiter)
}

// RoomFileMsg carries an encoded file to the members of a room.
type RoomFileMsg struct {
	room     string
	from     string
	filename string
	data     string
}

func NewRoomFileMsg(room, from, filename, data string) *RoomFileMsg {
	return &RoomFileMsg{room: room, from: from, filename: filename, data: data}
}

func (m RoomFileMsg) String() string {
	return strings.Join([]string{"ROOM_FILE_FROM", m.room, m.from, m.filename, m.data}, Delimiter)
}
