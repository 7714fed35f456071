package relaychat

import (
	"bufio"
	"errors"
	"io"
	"net"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shazow/rateio"
	"github.com/shazow/relay-chat/netd"
)

type testClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dial(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	return &testClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *testClient) Write(s string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(s)); err != nil {
		c.t.Fatal(err)
	}
}

func (c *testClient) Expect(lines ...string) {
	c.t.Helper()
	for _, expected := range lines {
		c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		actual, err := c.r.ReadString('\n')
		if err != nil {
			c.t.Fatalf("Expected %q, got error: %s", expected, err)
		}
		if actual != expected+"\n" {
			c.t.Errorf("Got: %q; Expected: %q", actual, expected+"\n")
		}
	}
}

// ExpectClosed reads until the server ends the connection.
func (c *testClient) ExpectClosed() {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := c.r.ReadString('\n')
	if err == nil {
		c.t.Errorf("Got: %q; Expected connection to be closed", line)
	} else if errors.Is(err, os.ErrDeadlineExceeded) {
		c.t.Errorf("Connection was not closed: %s", err)
	}
}

func serveTCP(t *testing.T, host *Host) string {
	t.Helper()
	s, err := netd.ListenTCP("localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	go host.Serve(s)
	return s.Addr().String()
}

func TestHostSession(t *testing.T) {
	host := NewHost()
	addr := serveTCP(t, host)

	alice := dial(t, addr)
	defer alice.conn.Close()
	alice.Write("HELLO|alice\r\n")
	alice.Expect("WELCOME|alice|", "INFO||alice joined", "USERS|alice|", "ROOMS||")

	bob := dial(t, addr)
	defer bob.conn.Close()
	bob.Write("LIST\n")
	bob.Expect("ERROR||Send HELLO|<username> first")
	bob.Write("HELLO|alice\n")
	bob.Expect("ERROR||Username already in use")
	bob.Write("HELLO|bob\n")
	bob.Expect("WELCOME|bob|", "INFO||bob joined", "USERS|alice,bob|", "ROOMS||")
	alice.Expect("INFO||bob joined", "USERS|alice,bob|", "ROOMS||")

	alice.Write("MSG|bob|hi\n")
	bob.Expect("FROM|alice|hi")

	// A command split across writes.
	alice.Write("JOIN|gen")
	time.Sleep(10 * time.Millisecond)
	alice.Write("eral\nROOMMSG|general|hello\n")
	alice.Expect("INFO||alice joined room general", "ROOMS|general|", "ROOMFROM|general|alice: hello")
	bob.Expect("INFO||alice joined room general", "ROOMS|general|")

	bob.Write("ROOMMSG|general|me too\n")
	bob.Expect("ERROR||Join the room first")
}

func TestHostDisconnect(t *testing.T) {
	host := NewHost()
	addr := serveTCP(t, host)

	alice := dial(t, addr)
	defer alice.conn.Close()
	alice.Write("HELLO|alice\n")
	alice.Expect("WELCOME|alice|", "INFO||alice joined", "USERS|alice|", "ROOMS||")

	bob := dial(t, addr)
	bob.Write("HELLO|bob\nJOIN|general\n")
	bob.Expect("WELCOME|bob|", "INFO||bob joined", "USERS|alice,bob|", "ROOMS||")
	bob.Expect("INFO||bob joined room general", "ROOMS|general|")
	alice.Expect("INFO||bob joined", "USERS|alice,bob|", "ROOMS||")
	alice.Expect("INFO||bob joined room general", "ROOMS|general|")

	bob.conn.Close()
	alice.Expect("INFO||bob disconnected", "USERS|alice|")
	if host.InRoom("general", "bob") {
		t.Error("bob is still in general")
	}

	// The handle is free again.
	bob = dial(t, addr)
	defer bob.conn.Close()
	bob.Write("HELLO|bob\n")
	bob.Expect("WELCOME|bob|", "INFO||bob joined", "USERS|alice,bob|", "ROOMS|general|")
}

func TestHostExit(t *testing.T) {
	host := NewHost()
	addr := serveTCP(t, host)

	alice := dial(t, addr)
	defer alice.conn.Close()
	alice.Write("HELLO|alice\n")
	alice.Expect("WELCOME|alice|", "INFO||alice joined", "USERS|alice|", "ROOMS||")

	bob := dial(t, addr)
	defer bob.conn.Close()
	bob.Write("HELLO|bob\n")
	bob.Expect("WELCOME|bob|", "INFO||bob joined", "USERS|alice,bob|", "ROOMS||")
	alice.Expect("INFO||bob joined", "USERS|alice,bob|", "ROOMS||")

	bob.Write("EXIT\n")
	bob.ExpectClosed()
	alice.Expect("INFO||bob disconnected", "USERS|alice|")

	if host.Count() != 2 {
		t.Errorf("Got: %d; Expected: 2", host.Count())
	}
}

func TestHostMaxLineLength(t *testing.T) {
	host := NewHost()
	host.MaxLineLength = 16
	addr := serveTCP(t, host)

	alice := dial(t, addr)
	defer alice.conn.Close()
	alice.Write("HELLO|alice\n")
	alice.Expect("WELCOME|alice|", "INFO||alice joined", "USERS|alice|", "ROOMS||")

	alice.Write("MSG|alice|" + strings.Repeat("x", 16) + "\n")
	alice.Expect("ERROR||Message rejected: Input too long.")

	// The reply to the last complete line is flushed before the overlong
	// partial line ends the session.
	alice.Write("LIST\n" + strings.Repeat("x", 17))
	alice.Expect("USERS|alice|", "ROOMS||")
	alice.ExpectClosed()
}

func TestHostLineLimit(t *testing.T) {
	host := NewHost()
	host.LineLimit = func() rateio.Limiter {
		return rateio.NewSimpleLimiter(2, time.Minute)
	}
	addr := serveTCP(t, host)

	alice := dial(t, addr)
	defer alice.conn.Close()
	alice.Write("HELLO|alice\nLIST\nLIST\n")
	alice.Expect("WELCOME|alice|", "INFO||alice joined", "USERS|alice|", "ROOMS||")
	alice.Expect("USERS|alice|", "ROOMS||")
	alice.Expect("ERROR||Message rejected: Rate limiting is in effect.")
}

func TestHostWebSocket(t *testing.T) {
	host := NewHost()
	tcpAddr := serveTCP(t, host)

	s, err := netd.ListenWebSocket("localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	go host.Serve(s)

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr().String()+"/", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	expect := func(lines ...string) {
		t.Helper()
		for _, expected := range lines {
			ws.SetReadDeadline(time.Now().Add(5 * time.Second))
			_, data, err := ws.ReadMessage()
			if err != nil {
				t.Fatal(err)
			}
			if actual := string(data); actual != expected {
				t.Errorf("Got: %q; Expected: %q", actual, expected)
			}
		}
	}

	ws.WriteMessage(websocket.TextMessage, []byte("HELLO|web"))
	expect("WELCOME|web|", "INFO||web joined", "USERS|web|", "ROOMS||")

	// Peers on different transports share one registry.
	alice := dial(t, tcpAddr)
	defer alice.conn.Close()
	alice.Write("HELLO|alice\nMSG|web|hi there\n")
	alice.Expect("WELCOME|alice|", "INFO||alice joined", "USERS|alice,web|", "ROOMS||")
	expect("INFO||alice joined", "USERS|alice,web|", "ROOMS||", "FROM|alice|hi there")

	ws.WriteMessage(websocket.TextMessage, []byte("FILE|dm|alice|a.txt|aGk="))
	alice.Expect("FILE_FROM|web|a.txt|aGk=")

	ws.WriteMessage(websocket.TextMessage, []byte("EXIT"))
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := ws.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("Got: %v; Expected: normal closure", err)
	}
	alice.Expect("INFO||web disconnected", "USERS|alice|")
}

func TestHostSSH(t *testing.T) {
	signer, err := netd.NewRandomSigner()
	if err != nil {
		t.Fatal(err)
	}
	config := netd.MakeNoAuth()
	config.AddHostKey(signer)

	s, err := netd.ListenSSH("localhost:0", config)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	host := NewHost()
	go host.Serve(s)

	err = netd.ConnectShell(s.Addr().String(), "foo", func(r io.Reader, w io.WriteCloser) error {
		scanner := bufio.NewScanner(r)
		w.Write([]byte("HELLO|foo\n"))

		for _, expected := range []string{"WELCOME|foo|", "INFO||foo joined", "USERS|foo|", "ROOMS||"} {
			if !scanner.Scan() {
				t.Fatalf("Expected %q, got: %v", expected, scanner.Err())
			}
			if actual := scanner.Text(); actual != expected {
				t.Errorf("Got: %q; Expected: %q", actual, expected)
			}
		}

		w.Write([]byte("EXIT\n"))
		for scanner.Scan() {
			t.Errorf("Unexpected line after EXIT: %q", scanner.Text())
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestHostSmallOutboundBuffer(t *testing.T) {
	host := NewHost()
	host.OutboundBuffer = 2
	addr := serveTCP(t, host)

	bob := dial(t, addr)
	defer bob.conn.Close()
	bob.Write("HELLO|bob\n")
	bob.Expect("WELCOME|bob|", "INFO||bob joined", "USERS|bob|", "ROOMS||")
}

func TestHostStalledWebSocket(t *testing.T) {
	host := NewHost()
	host.OutboundBuffer = minOutboundBuffer
	tcpAddr := serveTCP(t, host)

	s, err := netd.ListenWebSocket("localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	go host.Serve(s)

	// Registers, then never reads again.
	ws, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr().String()+"/", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()
	ws.WriteMessage(websocket.TextMessage, []byte("HELLO|stalled"))
	for i := 0; ; i++ {
		if _, ok := host.Conn("stalled"); ok {
			break
		}
		if i == 100 {
			t.Fatal("stalled was never registered")
		}
		time.Sleep(50 * time.Millisecond)
	}

	alice := dial(t, tcpAddr)
	defer alice.conn.Close()
	alice.Write("HELLO|alice\n")
	alice.Expect("WELCOME|alice|", "INFO||alice joined", "USERS|alice,stalled|", "ROOMS||")

	done := make(chan struct{})
	defer close(done)
	go func() {
		line := []byte("FILE|dm|stalled|f|" + strings.Repeat("x", 512<<10) + "\n")
		for i := 0; i < 64; i++ {
			select {
			case <-done:
				return
			default:
			}
			if _, err := alice.conn.Write(line); err != nil {
				return
			}
		}
	}()

	deadline := time.Now().Add(10 * time.Second)
	for {
		users := make(chan []string, 1)
		go func() { users <- host.Users() }()
		select {
		case u := <-users:
			if !slices.Contains(u, "stalled") {
				return
			}
		case <-time.After(5 * time.Second):
			t.Fatal("registry stayed locked behind a stalled peer")
		}
		if time.Now().After(deadline) {
			t.Fatal("stalled peer was never disconnected")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// keyConnection is a connection whose client authenticated with a key.
type keyConnection struct {
	*stubConnection
}

func (keyConnection) Fingerprint() string { return "SHA256:abc" }
func (keyConnection) User() string        { return "foo" }

func TestIdentify(t *testing.T) {
	conn := newStubConnection()
	if actual, expected := identify(conn), "stub :0"; actual != expected {
		t.Errorf("Got: %q; Expected: %q", actual, expected)
	}
	if actual, expected := identify(keyConnection{conn}), "stub foo@:0 SHA256:abc"; actual != expected {
		t.Errorf("Got: %q; Expected: %q", actual, expected)
	}
}
