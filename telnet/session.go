package telnet

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"dxsim/internal/ratelimit"
	"dxsim/spot"
)

// SessionState tracks where a connection is in its lifecycle.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateNegotiating
	StateWelcome
	StateActive
	StateClosing
	StateClosed
)

var sessionStateNames = [...]string{
	StateConnecting:  "CONNECTING",
	StateNegotiating: "NEGOTIATING",
	StateWelcome:     "WELCOME",
	StateActive:      "ACTIVE",
	StateClosing:     "CLOSING",
	StateClosed:      "CLOSED",
}

func (s SessionState) String() string {
	if s < 0 || int(s) >= len(sessionStateNames) {
		return fmt.Sprintf("STATE(%d)", int32(s))
	}
	return sessionStateNames[s]
}

// SpotSource produces the next spot for a session.
type SpotSource interface {
	Generate() spot.Spot
}

// CommandHandler answers one cleaned input line. quit ends the session after
// the response is written.
type CommandHandler interface {
	Process(line string) (response string, quit bool)
}

// SessionStats receives per-session counters. Implemented by stats.Tracker.
type SessionStats interface {
	IncrementSpot(band string, own bool)
	WriteFailure()
}

// sessionConfig is the resolved per-session timing and framing, shared
// read-only by every session of a server.
type sessionConfig struct {
	negotiationDelay time.Duration
	welcomeDelay     time.Duration
	spotInterval     time.Duration
	sendDeadline     time.Duration
	readChunk        int
	lineLimit        int
	welcomeLines     []string
	// spotLatency collects tick-to-written delay for every session; may be nil.
	spotLatency *latencyWindow
}

const prompt = "> "

// Session drives one client connection. All session output is written by the
// goroutine that calls Run. A second goroutine reads input; on the ziutek
// transport that reader also writes ziutek's own option replies.
type Session struct {
	id        string
	address   string
	conn      net.Conn
	reader    io.Reader
	connected time.Time

	cfg      sessionConfig
	spots    SpotSource
	commands CommandHandler
	stats    SessionStats
	framer   *LineFramer
	shutdown <-chan struct{}
	failLog  *ratelimit.Throttle

	state     atomic.Int32
	bytesSent atomic.Uint64
	spotsSent atomic.Uint64
}

type readResult struct {
	data []byte
	err  error
}

var errClientQuit = errors.New("client quit")

func newSession(conn net.Conn, reader io.Reader, cfg sessionConfig, spots SpotSource, commands CommandHandler, stats SessionStats, shutdown <-chan struct{}, failLog *ratelimit.Throttle) *Session {
	if reader == nil {
		reader = conn
	}
	s := &Session{
		id:        uuid.NewString(),
		address:   conn.RemoteAddr().String(),
		conn:      conn,
		reader:    reader,
		connected: time.Now().UTC(),
		cfg:       cfg,
		spots:     spots,
		commands:  commands,
		stats:     stats,
		framer:    NewLineFramer(cfg.lineLimit),
		shutdown:  shutdown,
		failLog:   failLog,
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// ID returns the session UUID.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// BytesSent returns the number of bytes written so far.
func (s *Session) BytesSent() uint64 { return s.bytesSent.Load() }

func (s *Session) shortID() string {
	if len(s.id) >= 8 {
		return s.id[:8]
	}
	return s.id
}

func (s *Session) setState(state SessionState) {
	s.state.Store(int32(state))
}

// Run negotiates, greets, then streams spots and answers commands until the
// client quits, the connection fails, or the server stops. The connection is
// closed before Run returns.
func (s *Session) Run() {
	defer s.close()

	s.setState(StateNegotiating)
	if err := Negotiate(s.conn, s.cfg.sendDeadline); err != nil {
		s.logFailure("negotiation", err)
		return
	}
	if !s.pause(s.cfg.negotiationDelay) {
		return
	}

	s.setState(StateWelcome)
	if err := s.sendWelcome(); err != nil {
		s.logFailure("welcome", err)
		return
	}
	if !s.pause(s.cfg.welcomeDelay) {
		return
	}

	s.setState(StateActive)
	if err := s.serve(); err != nil && !errors.Is(err, errClientQuit) {
		s.logFailure("session", err)
	}
}

func (s *Session) sendWelcome() error {
	var welcome string
	for _, line := range s.cfg.welcomeLines {
		welcome += line + "\r\n"
	}
	return s.write(welcome + prompt)
}

// serve multiplexes the spot ticker with input from the reader goroutine.
// Input is handled between ticks so it never delays a spot.
func (s *Session) serve() error {
	chunks := make(chan readResult)
	done := make(chan struct{})
	defer close(done)
	go s.readLoop(chunks, done)

	ticker := time.NewTicker(s.cfg.spotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return nil
		case tick := <-ticker.C:
			if err := s.sendSpot(tick); err != nil {
				return fmt.Errorf("write spot: %w", err)
			}
		case res := <-chunks:
			if len(res.data) > 0 {
				if err := s.handleInput(res.data); err != nil {
					return err
				}
			}
			if res.err != nil {
				if errors.Is(res.err, io.EOF) {
					return errClientQuit
				}
				return fmt.Errorf("read: %w", res.err)
			}
		}
	}
}

// readLoop hands each chunk to serve. A zero-byte read is reported as EOF.
func (s *Session) readLoop(out chan<- readResult, done <-chan struct{}) {
	for {
		buf := make([]byte, s.cfg.readChunk)
		n, err := s.reader.Read(buf)
		if n == 0 && err == nil {
			err = io.EOF
		}
		select {
		case out <- readResult{data: buf[:n], err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

// handleInput answers each complete line in chunk. A chunk that completes no
// line, such as one carrying only option replies, gets no prompt; only an
// empty completed line is re-prompted.
func (s *Session) handleInput(chunk []byte) error {
	for _, raw := range s.framer.Feed(chunk) {
		line := CleanInput(raw)
		if line == "" {
			if err := s.write(prompt); err != nil {
				return fmt.Errorf("write prompt: %w", err)
			}
			continue
		}
		log.Printf("Received: %s (session %s)", line, s.shortID())
		response, quit := s.commands.Process(line)
		if quit {
			s.setState(StateClosing)
			if err := s.write(response + "\r\n"); err != nil {
				return fmt.Errorf("write goodbye: %w", err)
			}
			return errClientQuit
		}
		if err := s.write(response + "\r\n" + prompt); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	return nil
}

func (s *Session) sendSpot(tick time.Time) error {
	sp := s.spots.Generate()
	if err := s.write(sp.Line()); err != nil {
		return err
	}
	s.cfg.spotLatency.Observe(time.Since(tick))
	s.spotsSent.Add(1)
	if s.stats != nil {
		s.stats.IncrementSpot(sp.Band(), sp.Own)
	}
	return nil
}

// write sends msg under the configured write deadline.
func (s *Session) write(msg string) error {
	if s.State() >= StateClosed {
		return net.ErrClosed
	}
	if s.cfg.sendDeadline > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.sendDeadline)); err != nil {
			return err
		}
	}
	n, err := io.WriteString(s.conn, msg)
	s.bytesSent.Add(uint64(n))
	if err != nil {
		if s.stats != nil {
			s.stats.WriteFailure()
		}
		return err
	}
	return nil
}

// pause waits for d unless the server stops first.
func (s *Session) pause(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.shutdown:
		return false
	}
}

func (s *Session) logFailure(stage string, err error) {
	if errors.Is(err, net.ErrClosed) {
		return
	}
	if dropped, ok := s.failLog.Allow(); ok {
		if dropped > 0 {
			log.Printf("telnet: %s %s error: %v (%d similar suppressed, %d total)", s.shortID(), stage, err, dropped, s.failLog.Total())
			return
		}
		log.Printf("telnet: %s %s error: %v", s.shortID(), stage, err)
	}
}

func (s *Session) close() {
	s.setState(StateClosing)
	_ = s.conn.Close()
	s.setState(StateClosed)
	log.Printf("Client disconnected: %s (session %s, %s spots, %s sent, up %s)",
		s.address, s.shortID(),
		humanize.Comma(int64(s.spotsSent.Load())),
		humanize.Bytes(s.bytesSent.Load()),
		time.Since(s.connected).Round(time.Second))
}
