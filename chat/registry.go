package chat

import (
	"errors"
	"sort"
	"sync"

	"github.com/shazow/relay-chat/chat/message"
	"github.com/shazow/relay-chat/set"
)

// Snapshot is a consistent view of the registry taken while it is locked.
type Snapshot struct {
	Users []string
	Rooms []string
}

// Renderer builds the messages of a broadcast from the state it is sent in.
type Renderer func(Snapshot) []message.Message

// Registry is the authoritative mapping between handles, connections and room
// memberships. Every operation holds the same lock for its whole duration,
// including the sends it performs, so a broadcast always reaches exactly the
// connections registered at that moment.
type Registry struct {
	mu    sync.Mutex
	users *set.Set // handle -> Conn
	conns map[Conn]string
	rooms map[string]*set.Set
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		users: set.New(),
		conns: map[Conn]string{},
		rooms: map[string]*set.Set{},
	}
}

// Register binds handle to conn. On success the reply is sent to conn and the
// announcement is broadcast to everyone, conn included, before any other
// operation observes the new handle.
func (r *Registry) Register(handle string, conn Conn, reply message.Message, announce Renderer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn]; ok {
		return ErrConnBound
	}
	if err := r.users.AddNew(set.Itemize(handle, conn)); err != nil {
		if errors.Is(err, set.ErrCollision) {
			return ErrHandleTaken
		}
		return err
	}
	r.conns[conn] = handle

	if reply != nil {
		r.send(conn, reply)
	}
	r.broadcast(announce)
	return nil
}

// Deregister removes the handle bound to conn from the registry and from
// every room, then broadcasts the announcement to the remaining connections.
// It returns the removed handle, if any.
func (r *Registry) Deregister(conn Conn, announce Renderer) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle, ok := r.conns[conn]
	if !ok {
		return "", false
	}
	delete(r.conns, conn)
	r.users.Remove(handle)
	for _, members := range r.rooms {
		members.Remove(handle)
	}

	r.broadcast(announce)
	return handle, true
}

// Handle returns the handle bound to conn.
func (r *Registry) Handle(conn Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle, ok := r.conns[conn]
	return handle, ok
}

// Conn returns the connection bound to handle.
func (r *Registry) Conn(handle string) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.conn(handle)
}

func (r *Registry) conn(handle string) (Conn, bool) {
	item, err := r.users.Get(handle)
	if err != nil {
		return nil, false
	}
	conn, ok := item.Value().(Conn)
	return conn, ok
}

// Join adds handle to room, creating the room if needed, then broadcasts the
// announcement. Joining twice is a no-op on membership.
func (r *Registry) Join(room string, handle string, announce Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = set.New()
		r.rooms[room] = members
	}
	members.Add(set.StringItem(handle))

	r.broadcast(announce)
}

// Leave removes handle from room, then broadcasts the announcement. The
// announcement is sent even if handle was not a member. Rooms are never
// deleted.
func (r *Registry) Leave(room string, handle string, announce Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if members, ok := r.rooms[room]; ok {
		members.Remove(handle)
	}

	r.broadcast(announce)
}

// InRoom reports whether handle is a member of room.
func (r *Registry) InRoom(room string, handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	return ok && members.In(handle)
}

// Members returns the handles in room, or nil if the room does not exist.
func (r *Registry) Members(room string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		return nil
	}
	return members.Keys()
}

// Users returns every registered handle.
func (r *Registry) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.users.Keys()
}

// Rooms returns every room name, including empty rooms.
func (r *Registry) Rooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.roomNames()
}

func (r *Registry) roomNames() []string {
	names := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.users.Len()
}

// Broadcast renders the messages once and sends each of them to every
// registered connection.
func (r *Registry) Broadcast(render Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.broadcast(render)
}

func (r *Registry) broadcast(render Renderer) {
	if render == nil {
		return
	}
	users := r.users.Keys()
	msgs := render(Snapshot{Users: users, Rooms: r.roomNames()})
	for _, m := range msgs {
		for _, handle := range users {
			if conn, ok := r.conn(handle); ok {
				r.send(conn, m)
			}
		}
	}
}

// SendTo delivers m to the connection bound to handle.
func (r *Registry) SendTo(handle string, m message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conn(handle)
	if !ok {
		return ErrNotOnline
	}
	r.send(conn, m)
	return nil
}

// SendRoom delivers m to every online member of room, from included. It fails
// with ErrNotMember unless from is a member.
func (r *Registry) SendRoom(room string, from string, m message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok || !members.In(from) {
		return ErrNotMember
	}
	r.sendMembers(members, "", m)
	return nil
}

// ShareRoom delivers m to every online member of room except from. Unlike
// SendRoom, from does not need to be a member.
func (r *Registry) ShareRoom(room string, from string, m message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		return ErrNoRoom
	}
	r.sendMembers(members, from, m)
	return nil
}

// sendMembers sends m to every member with a live connection, skipping the
// member named skip.
func (r *Registry) sendMembers(members *set.Set, skip string, m message.Message) {
	for _, handle := range members.Keys() {
		if handle == skip {
			continue
		}
		if conn, ok := r.conn(handle); ok {
			r.send(conn, m)
		}
	}
}

func (r *Registry) send(conn Conn, m message.Message) {
	if err := conn.Send(m); err != nil {
		logger.Printf("Failed to send to %s: %s", r.conns[conn], err)
	}
}
