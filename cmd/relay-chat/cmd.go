package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"strings"
	"time"

	"github.com/alexcesaro/log"
	"github.com/alexcesaro/log/golog"
	flags "github.com/jessevdk/go-flags"
	"github.com/shazow/rateio"

	relaychat "github.com/shazow/relay-chat"
	"github.com/shazow/relay-chat/chat"
	"github.com/shazow/relay-chat/netd"

	_ "net/http/pprof"
)

// Version of the binary, assigned during build.
var Version string = "dev"

// Options contains the flag options
type Options struct {
	Verbose        []bool `short:"v" long:"verbose" description:"Show verbose logging."`
	Version        bool   `long:"version" description:"Print version and exit."`
	Bind           string `long:"bind" description:"Host and port to listen on for raw TCP." default:"0.0.0.0:8080"`
	WSBind         string `long:"ws-bind" description:"Optional host and port to listen on for WebSocket clients."`
	SSHBind        string `long:"ssh-bind" description:"Optional host and port to listen on for SSH clients."`
	Identity       string `short:"i" long:"identity" description:"Private key to identify the SSH server with." default:"~/.ssh/id_rsa"`
	RateLimit      bool   `long:"ratelimit" description:"Throttle bytes and lines read from each connection."`
	MaxLineLength  int    `long:"max-line" description:"Reject lines longer than this many bytes, 0 for unbounded." default:"0"`
	OutboundBuffer int    `long:"outbound-buffer" description:"Messages queued for a slow client before it is dropped, at least 8." default:"64"`
	Pprof          int    `long:"pprof" description:"Enable pprof http server for profiling."`
}

var logLevels = []log.Level{
	log.Warning,
	log.Info,
	log.Debug,
}

func fail(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(code)
}

func main() {
	options := Options{}
	parser := flags.NewParser(&options, flags.Default)
	p, err := parser.Parse()
	if err != nil {
		if p == nil {
			fmt.Print(err)
		}
		return
	}

	if options.Pprof != 0 {
		go func() {
			fmt.Println(http.ListenAndServe(fmt.Sprintf("localhost:%d", options.Pprof), nil))
		}()
	}

	if options.Version {
		fmt.Println(Version)
		return
	}

	// Figure out the log level
	numVerbose := len(options.Verbose)
	if numVerbose >= len(logLevels) {
		numVerbose = len(logLevels) - 1
	}

	logLevel := logLevels[numVerbose]
	logger := golog.New(os.Stderr, logLevel)
	relaychat.SetLogger(logger)

	if logLevel == log.Debug {
		// Enable logging from submodules
		chat.SetLogger(os.Stderr)
		netd.SetLogger(os.Stderr)
	}

	host := relaychat.NewHost()
	host.OutboundBuffer = options.OutboundBuffer
	host.MaxLineLength = options.MaxLineLength
	if options.RateLimit {
		host.LineLimit = func() rateio.Limiter {
			return rateio.NewSimpleLimiter(3, time.Second*3)
		}
	}

	var listeners netd.MultiCloser
	serve := func(s netd.Listener) {
		listeners = append(listeners, s)
		fmt.Printf("Listening for connections on %v\n", s.Addr().String())
		go func() {
			if err := host.Serve(s); err != nil {
				logger.Errorf("Listener on %s stopped: %s", s.Addr(), err)
			}
		}()
	}

	s, err := netd.ListenTCP(options.Bind)
	if err != nil {
		fail(4, "Failed to listen on socket: %v\n", err)
	}
	if options.RateLimit {
		s.RateLimit = netd.NewInputLimiter
	}
	serve(s)

	if options.WSBind != "" {
		ws, err := netd.ListenWebSocket(options.WSBind)
		if err != nil {
			fail(5, "Failed to listen for websockets: %v\n", err)
		}
		serve(ws)
	}

	if options.SSHBind != "" {
		privateKeyPath := options.Identity
		if strings.HasPrefix(privateKeyPath, "~/") {
			user, err := user.Current()
			if err == nil {
				privateKeyPath = strings.Replace(privateKeyPath, "~", user.HomeDir, 1)
			}
		}

		signer, err := ReadPrivateKey(privateKeyPath)
		if err != nil {
			fail(2, "Couldn't read private key: %v\n", err)
		}

		config := netd.MakeNoAuth()
		config.AddHostKey(signer)
		config.ServerVersion = "SSH-2.0-Go relay-chat"

		ss, err := netd.ListenSSH(options.SSHBind, config)
		if err != nil {
			fail(6, "Failed to listen for ssh: %v\n", err)
		}
		if options.RateLimit {
			ss.RateLimit = netd.NewInputLimiter
		}
		serve(ss)
	}

	// Construct interrupt handler
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	<-sig // Wait for ^C signal
	fmt.Fprintln(os.Stderr, "Interrupt signal detected, shutting down.")
	if err := listeners.Close(); err != nil {
		logger.Warningf("Failed to close listeners: %s", err)
	}
	logger.Infof("Served %d connections, %d still registered.", host.Count(), host.Len())
}
