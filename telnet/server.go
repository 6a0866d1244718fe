// Package telnet serves the simulated DX cluster over raw telnet.
//
// The server accepts TCP connections and runs one Session per client. A
// session negotiates echo and suppress-go-ahead, writes the welcome banner,
// then streams one spot per tick while answering commands typed on the same
// connection.
//
// Key features:
//   - Negotiation and IAC stripping in framer.go, line assembly across reads
//   - Two-path session loop: ticker-driven spots, event-driven input
//   - Write deadlines so a stalled client only stalls its own session
//   - Optional connection cap with a "Server full" notice
//   - Native or github.com/ziutek/telnet read path
//   - Bounded graceful shutdown that force-closes stragglers
package telnet

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	ztelnet "github.com/ziutek/telnet"

	"dxsim/internal/ratelimit"
)

const (
	DefaultPort             = 2323
	defaultNegotiationDelay = 500 * time.Millisecond
	defaultWelcomeDelay     = time.Second
	defaultSpotInterval     = 125 * time.Millisecond
	defaultSendDeadline     = 2 * time.Second
	defaultReadChunk        = 1024
	defaultCommandLineLimit = 256
	defaultShutdownGrace    = 3 * time.Second
	defaultKeepAlivePeriod  = 2 * time.Minute
	failureLogWindow        = 5 * time.Second
	spotLatencySamples      = 1024

	TransportNative = "native"
	TransportZiutek = "ziutek"

	serverFullMessage = "Server full. Try again later.\r\n"
)

// DefaultWelcomeLines is the banner written before the first prompt.
var DefaultWelcomeLines = []string{
	"Welcome to Simple Telnet Server!",
	"Available commands: help, time, echo <message>, bye",
}

// ServerStats receives server and session counters. Implemented by
// stats.Tracker.
type ServerStats interface {
	SessionStats
	SessionOpened()
	SessionClosed(bytesSent uint64)
	SessionRejected()
}

// ServerOptions configures the telnet server instance.
type ServerOptions struct {
	// Address overrides Port when set, e.g. "127.0.0.1:0".
	Address          string
	Port             int
	MaxConnections   int
	Transport        string
	ReadChunk        int
	CommandLineLimit int
	NegotiationDelay time.Duration
	WelcomeDelay     time.Duration
	SpotInterval     time.Duration
	SendDeadline     time.Duration
	ShutdownGrace    time.Duration
	WelcomeLines     []string
}

// Server accepts connections and runs one Session per client.
type Server struct {
	opts      ServerOptions
	cfg       sessionConfig
	useZiutek bool

	spots    SpotSource
	commands CommandHandler
	stats    ServerStats

	listener net.Listener
	shutdown chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*Session
	stopping bool

	acceptLog *ratelimit.Throttle
	failLog   *ratelimit.Throttle
}

// NewServer creates a telnet server. stats may be nil.
func NewServer(opts ServerOptions, spots SpotSource, commands CommandHandler, stats ServerStats) *Server {
	config := normalizeServerOptions(opts)
	return &Server{
		opts:      config,
		useZiutek: config.Transport == TransportZiutek,
		cfg: sessionConfig{
			negotiationDelay: config.NegotiationDelay,
			welcomeDelay:     config.WelcomeDelay,
			spotInterval:     config.SpotInterval,
			sendDeadline:     config.SendDeadline,
			readChunk:        config.ReadChunk,
			lineLimit:        config.CommandLineLimit,
			welcomeLines:     config.WelcomeLines,
			spotLatency:      newLatencyWindow(spotLatencySamples),
		},
		spots:     spots,
		commands:  commands,
		stats:     stats,
		shutdown:  make(chan struct{}),
		sessions:  make(map[string]*Session),
		acceptLog: ratelimit.NewThrottle(failureLogWindow),
		failLog:   ratelimit.NewThrottle(failureLogWindow),
	}
}

// normalizeServerOptions fills defaults. Negative delays disable the delay.
func normalizeServerOptions(opts ServerOptions) ServerOptions {
	config := opts
	if config.Port <= 0 {
		config.Port = DefaultPort
	}
	config.Transport = strings.ToLower(strings.TrimSpace(config.Transport))
	if config.Transport == "" {
		config.Transport = TransportNative
	}
	if config.ReadChunk <= 0 {
		config.ReadChunk = defaultReadChunk
	}
	if config.CommandLineLimit <= 0 {
		config.CommandLineLimit = defaultCommandLineLimit
	}
	config.NegotiationDelay = durationOrDefault(config.NegotiationDelay, defaultNegotiationDelay)
	config.WelcomeDelay = durationOrDefault(config.WelcomeDelay, defaultWelcomeDelay)
	if config.SpotInterval <= 0 {
		config.SpotInterval = defaultSpotInterval
	}
	if config.SendDeadline <= 0 {
		config.SendDeadline = defaultSendDeadline
	}
	if config.ShutdownGrace <= 0 {
		config.ShutdownGrace = defaultShutdownGrace
	}
	if len(config.WelcomeLines) == 0 {
		config.WelcomeLines = append([]string(nil), DefaultWelcomeLines...)
	}
	return config
}

func durationOrDefault(d, def time.Duration) time.Duration {
	switch {
	case d == 0:
		return def
	case d < 0:
		return 0
	default:
		return d
	}
}

// Start binds the listener and begins accepting connections.
func (s *Server) Start() error {
	addr := s.opts.Address
	if strings.TrimSpace(addr) == "" {
		addr = fmt.Sprintf(":%d", s.opts.Port)
	}
	listener, err := listenWithReuse(addr)
	if err != nil {
		return fmt.Errorf("failed to start telnet server: %w", err)
	}
	s.listener = listener
	log.Printf("Telnet server listening on %s (transport=%s)", listener.Addr(), s.opts.Transport)

	go s.acceptConnections()
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if dropped, ok := s.acceptLog.Allow(); ok {
				log.Printf("Error accepting connection: %v (suppressed %d, %d total)", err, dropped, s.acceptLog.Total())
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if s.opts.MaxConnections > 0 && s.SessionCount() >= s.opts.MaxConnections {
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.sendDeadline))
			_, _ = conn.Write([]byte(serverFullMessage))
			conn.Close()
			if s.stats != nil {
				s.stats.SessionRejected()
			}
			log.Printf("Rejected connection from %s: max connections reached (%d)", conn.RemoteAddr(), s.opts.MaxConnections)
			continue
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetKeepAlive(true)
			_ = tcp.SetKeepAlivePeriod(defaultKeepAlivePeriod)
		}

		session, err := s.newSession(conn)
		if err != nil {
			log.Printf("telnet: failed to wrap connection from %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			continue
		}
		if !s.register(session) {
			conn.Close()
			return
		}
		go s.runSession(session)
	}
}

func (s *Server) newSession(conn net.Conn) (*Session, error) {
	var stats SessionStats
	if s.stats != nil {
		stats = s.stats
	}
	session := newSession(conn, nil, s.cfg, s.spots, s.commands, stats, s.shutdown, s.failLog)
	if s.useZiutek {
		// ziutek answers the client's option replies itself; writes stay on
		// the raw connection so the negotiation bytes go out unescaped.
		tconn, err := ztelnet.NewConn(newControlFilterConn(conn))
		if err != nil {
			return nil, err
		}
		session.reader = tconn
	}
	return session, nil
}

// register tracks session unless Stop has begun. wg.Add happens under mu so
// it is ordered before Stop's wait.
func (s *Server) register(session *Session) bool {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return false
	}
	s.sessions[session.ID()] = session
	s.wg.Add(1)
	s.mu.Unlock()
	if s.stats != nil {
		s.stats.SessionOpened()
	}
	log.Printf("Client connected from: %s (session %s)", session.address, session.shortID())
	return true
}

func (s *Server) runSession(session *Session) {
	defer s.wg.Done()
	defer s.unregister(session)
	session.Run()
}

func (s *Server) unregister(session *Session) {
	s.mu.Lock()
	delete(s.sessions, session.ID())
	s.mu.Unlock()
	if s.stats != nil {
		s.stats.SessionClosed(session.BytesSent())
	}
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SpotLatency reports how long spots took from tick to written, across the
// most recent samples of all sessions.
func (s *Server) SpotLatency() LatencySnapshot {
	return s.cfg.spotLatency.Snapshot()
}

// Stop closes the listener, signals every session and waits up to the
// shutdown grace period before force-closing the remaining connections.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		log.Println("Stopping telnet server...")
		s.mu.Lock()
		s.stopping = true
		s.mu.Unlock()
		close(s.shutdown)
		if s.listener != nil {
			s.listener.Close()
		}
		if s.waitSessions(s.opts.ShutdownGrace) {
			return
		}
		s.mu.Lock()
		remaining := len(s.sessions)
		for _, session := range s.sessions {
			session.conn.Close()
		}
		s.mu.Unlock()
		log.Printf("telnet: force-closed %d session(s) after %s", remaining, s.opts.ShutdownGrace)
		s.wg.Wait()
	})
}

func (s *Server) waitSessions(grace time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
