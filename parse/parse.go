/*
Package parse deals with parsing the irc protocol into irc.Line values.
*/
package parse

import (
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/jelmer/ctrlproxy-sub000/irc"
)

const (
	// errMsgParseFailure is given when the tokenizer rejects the line.
	errMsgParseFailure = "parse: Unable to parse received irc protocol"
	// errMsgEmpty is given for lines without a command.
	errMsgEmpty = "parse: Empty irc protocol line"
)

// ParseError is generated when a line can not be tokenized, it contains the
// invalid seeming irc protocol string.
type ParseError struct {
	// The message
	Msg string
	// The invalid irc encountered.
	Irc string
}

// Error satisfies the Error interface for ParseError.
func (p ParseError) Error() string {
	return p.Msg
}

// Parse produces a server to client Line from one line of irc protocol. A
// trailing CRLF is tolerated, any other CR, LF or NUL is an error.
func Parse(raw string) (*irc.Line, error) {
	return ParseDirected(raw, irc.FromServer)
}

// ParseBytes is Parse for byte slices.
func ParseBytes(raw []byte) (*irc.Line, error) {
	return ParseDirected(string(raw), irc.FromServer)
}

// ParseDirected produces a Line tagged with the given direction.
func ParseDirected(raw string, dir irc.Direction) (*irc.Line, error) {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(raw, "\n"), "\r")
	if len(strings.TrimLeft(trimmed, " ")) == 0 {
		return nil, ParseError{Msg: errMsgEmpty, Irc: raw}
	}

	msg, err := ircmsg.ParseLine(trimmed)
	if err != nil {
		return nil, ParseError{Msg: errMsgParseFailure + ": " + err.Error(), Irc: raw}
	}
	if len(msg.Command) == 0 {
		return nil, ParseError{Msg: errMsgEmpty, Irc: raw}
	}

	l := &irc.Line{
		Origin:    msg.Source,
		Command:   msg.Command,
		Args:      msg.Params,
		Direction: dir,
		Time:      time.Now().UTC(),
	}
	if n := len(msg.Params); n > 0 {
		l.HadColon = strings.HasSuffix(trimmed, " :"+msg.Params[n-1])
	}
	return l, nil
}
