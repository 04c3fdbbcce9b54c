/*
Package irc defines the line type shared by every other package in the proxy
together with the per-network capability table, hostmask helpers and the
protocol constants. It is small and comprised mostly of helper like types.
*/
package irc

import (
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/pkg/errors"
)

// Direction tells which way a line travelled through the proxy.
type Direction uint8

// Directions a line can take.
const (
	// FromServer lines were received from the upstream network.
	FromServer Direction = iota
	// ToServer lines were sent by a client to the upstream network.
	ToServer
)

// String returns the arrow used in dumps: "<" for incoming, ">" for outgoing.
func (d Direction) String() string {
	if d == ToServer {
		return ">"
	}
	return "<"
}

// Line is one IRC protocol message.
type Line struct {
	// Origin is the server or nick!user@host that sent the line, may be empty.
	Origin string
	// Command is the upper case command name or numeric.
	Command string
	// Args are the parameters, the last one may contain spaces.
	Args []string
	// HadColon is set when the last argument was written with a leading ':'.
	HadColon bool
	// Direction is the way the line travelled.
	Direction Direction
	// Time is when the line was seen by the proxy.
	Time time.Time
}

// NewLine constructs a server line stamped with the current time. The last
// argument is marked as trailing when the wire format requires it.
func NewLine(origin, command string, args ...string) *Line {
	var setArgs []string
	if len(args) > 0 {
		setArgs = make([]string, len(args))
		copy(setArgs, args)
	}

	l := &Line{
		Origin:  origin,
		Command: strings.ToUpper(command),
		Args:    setArgs,
		Time:    time.Now().UTC(),
	}
	l.HadColon = len(setArgs) > 0 && requiresTrailing(setArgs[len(setArgs)-1])
	return l
}

// Clone returns a deep copy of the line.
func (l *Line) Clone() *Line {
	c := *l
	if l.Args != nil {
		c.Args = make([]string, len(l.Args))
		copy(c.Args, l.Args)
	}
	return &c
}

// Nick returns the nick of the origin. Will be the server name for lines
// sent by servers.
func (l *Line) Nick() string {
	return Nick(l.Origin)
}

// Host returns the origin as a Host.
func (l *Line) Host() Host {
	return Host(l.Origin)
}

// Arg returns the argument at index i, or empty string if there is none.
func (l *Line) Arg(i int) string {
	if i < 0 || i >= len(l.Args) {
		return ""
	}
	return l.Args[i]
}

// Target retrieves the channel or user this line was sent to.
func (l *Line) Target() string {
	return l.Arg(0)
}

// Message retrieves the text of a PRIVMSG or NOTICE.
func (l *Line) Message() string {
	return l.Arg(1)
}

// Is checks the command name case insensitively.
func (l *Line) Is(command string) bool {
	return strings.EqualFold(l.Command, command)
}

// IsMessage is true for PRIVMSG and NOTICE lines carrying text.
func (l *Line) IsMessage() bool {
	return (l.Is(PRIVMSG) || l.Is(NOTICE)) && len(l.Args) >= 2
}

// IsCTCP checks if this line is a CTCP request or reply.
func (l *Line) IsCTCP() bool {
	return l.IsMessage() && IsCTCPString(l.Args[1])
}

// UnpackCTCP retrieves a tag and data from a CTCP line.
func (l *Line) UnpackCTCP() (tag, data string) {
	return CTCPunpackString(l.Args[1])
}

// Trailing reports whether the last argument goes on the wire with a colon.
func (l *Line) Trailing() bool {
	if len(l.Args) == 0 {
		return false
	}
	return l.HadColon || requiresTrailing(l.Args[len(l.Args)-1])
}

// Serialize renders the line with a terminating CRLF.
func (l *Line) Serialize() (string, error) {
	if len(l.Command) == 0 {
		return "", errors.New("irc: line has no command")
	}
	if strings.ContainsAny(l.Origin, " \r\n\x00") {
		return "", errors.Errorf("irc: bad origin %q", l.Origin)
	}

	msg := ircmsg.MakeMessage(nil, l.Origin, l.Command, l.Args...)
	if l.Trailing() {
		msg.ForceTrailing()
	}
	out, err := msg.Line()
	if err != nil {
		return "", errors.Wrapf(err, "irc: serializing %s", l.Command)
	}
	return out, nil
}

// String turns this back into an IRC style message without CRLF. Lines that
// can not be serialized render as an empty string.
func (l *Line) String() string {
	s, err := l.Serialize()
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(s, "\r\n")
}

// Bytes is the CRLF terminated wire form, nil when it can not be serialized.
func (l *Line) Bytes() []byte {
	s, err := l.Serialize()
	if err != nil {
		return nil
	}
	return []byte(s)
}

// Equal compares two lines by what goes on the wire. Direction and time are
// not part of the comparison.
func (l *Line) Equal(o *Line) bool {
	if l == nil || o == nil {
		return l == o
	}
	if l.Origin != o.Origin || !strings.EqualFold(l.Command, o.Command) {
		return false
	}
	if len(l.Args) != len(o.Args) {
		return false
	}
	for i := range l.Args {
		if l.Args[i] != o.Args[i] {
			return false
		}
	}
	return l.Trailing() == o.Trailing()
}

func requiresTrailing(arg string) bool {
	return len(arg) == 0 || arg[0] == ':' || strings.IndexByte(arg, ' ') >= 0
}
