package chat

import (
	"sort"
	"strings"
	"sync"

	"github.com/shazow/relay-chat/chat/message"
)

// MockConn records every line sent to it.
type MockConn struct {
	mu     sync.Mutex
	lines  []string
	closed bool
}

func (c *MockConn) Send(m message.Message) error {
	c.mu.Lock()
	c.lines = append(c.lines, m.String())
	c.mu.Unlock()
	return nil
}

func (c *MockConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Read returns the lines received since the last Read.
func (c *MockConn) Read() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := c.lines
	c.lines = nil
	return lines
}

func (c *MockConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// listing returns the sorted names of a USERS|...| or ROOMS|...| line.
func listing(line string) []string {
	parts := strings.Split(line, "|")
	if len(parts) != 3 || parts[1] == "" {
		return []string{}
	}
	names := strings.Split(parts[1], ",")
	sort.Strings(names)
	return names
}
