package netd

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	socketBufferSize = 1024

	// closeGracePeriod is how long a client has to answer a close frame.
	closeGracePeriod = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  socketBufferSize,
	WriteBufferSize: socketBufferSize,
	// Browsers connect from wherever the UI is hosted.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WebSocketHandler upgrades HTTP requests and serves each socket as a
// Connection. Every frame received is one or more lines; every line written
// is sent as its own text frame, without the newline.
type WebSocketHandler struct {
	Handler Handler
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	ws, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		logger.Printf("[%s] Failed to upgrade: %v", req.RemoteAddr, err)
		return
	}
	h.Handler(&wsConnection{ws: ws})
}

// WebSocketListener serves WebSocket connections on every path of an HTTP
// listener.
type WebSocketListener struct {
	net.Listener
	server *http.Server
}

// ListenWebSocket makes a WebSocket listener socket.
func ListenWebSocket(laddr string) (*WebSocketListener, error) {
	socket, err := net.Listen("tcp", laddr)
	if err != nil {
		return nil, err
	}
	return &WebSocketListener{Listener: socket, server: &http.Server{}}, nil
}

// Serve accepts connections until the listener is closed. It returns nil
// after Close.
func (l *WebSocketListener) Serve(handler Handler) error {
	l.server.Handler = &WebSocketHandler{Handler: handler}
	err := l.server.Serve(l.Listener)
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Close stops the HTTP server and its listener. Upgraded sockets are
// hijacked and stay open until their handlers return.
func (l *WebSocketListener) Close() error {
	return l.server.Close()
}

type wsConnection struct {
	ws      *websocket.Conn
	pending []byte

	mu sync.Mutex
}

// Read returns the next frame's bytes, terminated by a newline.
func (c *wsConnection) Read(p []byte) (int, error) {
	for len(c.pending) == 0 {
		_, data, err := c.ws.ReadMessage()
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
		if !bytes.HasSuffix(data, []byte("\n")) {
			data = append(data, '\n')
		}
		c.pending = data
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write sends each complete line of p as a text frame. A trailing partial
// line is sent as a frame of its own.
func (c *wsConnection) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for n < len(p) {
		line := p[n:]
		next := len(p)
		if i := bytes.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
			next = n + i + 1
		}
		if err := c.ws.WriteMessage(websocket.TextMessage, line); err != nil {
			return n, err
		}
		n = next
	}
	return n, nil
}

// Shutdown sends a close frame, after which the peer closes its side and Read
// returns io.EOF. A peer that does not answer within closeGracePeriod fails
// Read with a timeout instead. Safe to call while a Write is blocked.
func (c *wsConnection) Shutdown() error {
	deadline := time.Now().Add(closeGracePeriod)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
	if derr := c.ws.UnderlyingConn().SetReadDeadline(deadline); err == nil {
		err = derr
	}
	return err
}

func (c *wsConnection) Close() error {
	return c.ws.Close()
}

func (c *wsConnection) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

func (c *wsConnection) Transport() string {
	return "ws"
}
