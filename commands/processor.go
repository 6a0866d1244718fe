// Package commands implements the command processor used by telnet sessions.
// Each input line is split into a verb and arguments and answered with a
// single response string; own/notown additionally retarget the shared spot
// mode for every connected session.
package commands

import (
	"fmt"
	"log"
	"strings"
	"time"

	lev "github.com/agnivade/levenshtein"
)

const (
	// TimeLayout renders the local server time for the time verb.
	TimeLayout = "2006-01-02 15:04:05"

	DefaultOwnResponse    = "Producing own spots"
	DefaultNotOwnResponse = "Producing random spots"
	DefaultGoodbye        = "Goodbye!"

	emptyCommandMsg = "Type 'help' for available commands"
	noEchoMessage   = "(no message provided)"
	maxSuggestDist  = 2
)

const helpText = "Available commands:\r\n" +
	"  help           - Show this help message\r\n" +
	"  time           - Show current server time\r\n" +
	"  echo <message> - Echo back your message\r\n" +
	"  uptime         - Show server uptime\r\n" +
	"  own            - Produce own spots\r\n" +
	"  notown         - Produce random spots\r\n" +
	"  bye            - Disconnect from server"

// verbs lists every recognised verb, used for "did you mean" hints.
var verbs = []string{"help", "time", "echo", "uptime", "own", "notown", "bye"}

// ModeSetter flips the shared own/random spot mode.
type ModeSetter interface {
	SetOwnSpots(own bool) bool
}

// CommandRecorder counts processed verbs.
type CommandRecorder interface {
	IncrementCommand(verb string)
}

// Options configures a Processor. Zero values select defaults.
type Options struct {
	Mode           ModeSetter
	Stats          CommandRecorder
	StartTime      time.Time
	Now            func() time.Time
	OwnResponse    string
	NotOwnResponse string
	Goodbye        string
}

// Processor answers telnet commands. It carries no per-session state and is
// shared by all sessions.
type Processor struct {
	mode           ModeSetter
	stats          CommandRecorder
	startTime      time.Time
	now            func() time.Time
	ownResponse    string
	notOwnResponse string
	goodbye        string
}

// Command is a parsed input line.
type Command struct {
	Verb string
	Args []string
}

// NewProcessor builds a processor from opts.
func NewProcessor(opts Options) *Processor {
	p := &Processor{
		mode:           opts.Mode,
		stats:          opts.Stats,
		startTime:      opts.StartTime,
		now:            opts.Now,
		ownResponse:    opts.OwnResponse,
		notOwnResponse: opts.NotOwnResponse,
		goodbye:        opts.Goodbye,
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.startTime.IsZero() {
		p.startTime = p.now()
	}
	if p.ownResponse == "" {
		p.ownResponse = DefaultOwnResponse
	}
	if p.notOwnResponse == "" {
		p.notOwnResponse = DefaultNotOwnResponse
	}
	if p.goodbye == "" {
		p.goodbye = DefaultGoodbye
	}
	return p
}

// Parse splits line on single spaces, dropping empty tokens. The verb is
// lower-cased; arguments keep their case.
func Parse(line string) Command {
	parts := strings.Split(line, " ")
	tokens := parts[:0]
	for _, part := range parts {
		if part != "" {
			tokens = append(tokens, part)
		}
	}
	if len(tokens) == 0 {
		return Command{}
	}
	return Command{Verb: strings.ToLower(tokens[0]), Args: tokens[1:]}
}

// Process answers a single cleaned input line. The response never ends with a
// line terminator. quit is true only for bye, whose response is the goodbye
// text.
func (p *Processor) Process(line string) (response string, quit bool) {
	cmd := Parse(line)
	if cmd.Verb == "" {
		return emptyCommandMsg, false
	}

	switch cmd.Verb {
	case "help":
		p.record(cmd.Verb)
		return helpText, false
	case "time":
		p.record(cmd.Verb)
		return "Current server time: " + p.now().Format(TimeLayout), false
	case "uptime":
		p.record(cmd.Verb)
		return "Server uptime: " + FormatUptime(p.now().Sub(p.startTime)), false
	case "own":
		p.record(cmd.Verb)
		p.setMode(true)
		return p.ownResponse, false
	case "notown":
		p.record(cmd.Verb)
		p.setMode(false)
		return p.notOwnResponse, false
	case "echo":
		p.record(cmd.Verb)
		if len(cmd.Args) > 0 {
			return "Echo: " + strings.Join(cmd.Args, " "), false
		}
		return "Echo: " + noEchoMessage, false
	case "bye":
		p.record(cmd.Verb)
		return p.goodbye, true
	default:
		p.record("unknown")
		return unknownCommand(line, cmd.Verb), false
	}
}

func (p *Processor) setMode(own bool) {
	if p.mode == nil {
		return
	}
	prev := p.mode.SetOwnSpots(own)
	if prev != own {
		log.Printf("Spot mode changed to %s", modeLabel(own))
	}
}

func (p *Processor) record(verb string) {
	if p.stats != nil {
		p.stats.IncrementCommand(verb)
	}
}

func modeLabel(own bool) string {
	if own {
		return "own"
	}
	return "random"
}

func unknownCommand(line, verb string) string {
	msg := fmt.Sprintf("Unknown command: '%s'. Type 'help' for available commands.", line)
	if hint := suggestVerb(verb); hint != "" {
		msg += fmt.Sprintf(" Did you mean '%s'?", hint)
	}
	return msg
}

// suggestVerb returns the closest known verb within maxSuggestDist edits.
func suggestVerb(verb string) string {
	best := ""
	bestDist := maxSuggestDist + 1
	for _, candidate := range verbs {
		d := lev.ComputeDistance(verb, candidate)
		if d < bestDist {
			best = candidate
			bestDist = d
		}
	}
	return best
}

// FormatUptime renders d as "{d}d {h}h {m}m {s}s".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	total -= days * 86400
	hours := total / 3600
	total -= hours * 3600
	minutes := total / 60
	seconds := total - minutes*60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}
