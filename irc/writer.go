package irc

import (
	"io"
	"strings"

	"github.com/pkg/errors"
)

const (
	// IRC_MAX_LENGTH is the maximum length for an irc message without the
	// terminating crlf.
	IRC_MAX_LENGTH = 510
	// SPLIT_BACKWARD is the maximum number of characters split will search
	// backwards from IRC_MAX_LENGTH for a space when splitting a message too
	// long to fit on one line.
	SPLIT_BACKWARD = 20
)

// Writer accepts whole lines, a client connection or a server connection.
type Writer interface {
	WriteLine(*Line) error
}

// WriterFunc adapts a function to the Writer interface.
type WriterFunc func(*Line) error

// WriteLine calls f.
func (f WriterFunc) WriteLine(l *Line) error {
	return f(l)
}

// LineWriter serializes lines onto an io.Writer.
type LineWriter struct {
	io.Writer
}

// WriteLine writes the CRLF terminated line.
func (w LineWriter) WriteLine(l *Line) error {
	s, err := l.Serialize()
	if err != nil {
		return err
	}
	_, err = io.WriteString(w.Writer, s)
	return errors.Wrap(err, "irc: write")
}

// Helper builds lines and hands them to the embedded Writer. Origin is put
// on every line it creates, usually the server name for lines sent to
// clients, empty for lines sent to servers.
type Helper struct {
	Writer
	Origin string
}

// SendArgs sends a command from the helper's origin.
func (h Helper) SendArgs(cmd string, args ...string) error {
	return h.WriteLine(NewLine(h.Origin, cmd, args...))
}

// SendFrom sends a command from another origin, a nick!user@host usually.
func (h Helper) SendFrom(origin, cmd string, args ...string) error {
	return h.WriteLine(NewLine(origin, cmd, args...))
}

// SendResponse sends a numeric reply addressed to nick.
func (h Helper) SendResponse(nick, numeric string, args ...string) error {
	full := make([]string, 0, len(args)+1)
	full = append(full, nick)
	full = append(full, args...)
	return h.SendArgs(numeric, full...)
}

// SendNames sends the 353 replies for a channel followed by the 366. Names
// already carry their status prefixes. Replies are split so that no line
// exceeds IRC_MAX_LENGTH.
func (h Helper) SendNames(nick, chanType, channel string, names []string) error {
	if len(chanType) == 0 {
		chanType = "="
	}

	header := 0
	if len(h.Origin) > 0 {
		header += len(h.Origin) + 2
	}
	header += len(RPL_NAMREPLY) + len(nick) + len(chanType) + len(channel) + 5

	var b strings.Builder
	flush := func() error {
		if b.Len() == 0 {
			return nil
		}
		err := h.SendResponse(nick, RPL_NAMREPLY, chanType, channel, b.String())
		b.Reset()
		return err
	}

	for _, name := range names {
		if b.Len() > 0 && header+b.Len()+1+len(name) > IRC_MAX_LENGTH {
			if err := flush(); err != nil {
				return err
			}
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(name)
	}
	if err := flush(); err != nil {
		return err
	}

	return h.SendResponse(nick, RPL_ENDOFNAMES, channel, "End of /NAMES list")
}

// Privmsg sends a message, split over several lines when it is too long.
func (h Helper) Privmsg(target, msg string) error {
	return h.splitSend(PRIVMSG, target, msg)
}

// Notice sends a notice, split over several lines when it is too long.
func (h Helper) Notice(target, msg string) error {
	return h.splitSend(NOTICE, target, msg)
}

// splitSend breaks a message down into irc-digestable chunks based on
// IRC_MAX_LENGTH. Will also use SPLIT_BACKWARD character look-back to see if
// it can split on a space instead of in the middle of a word. If it can, it
// will eliminate the space from the following message.
func (h Helper) splitSend(cmd, target, msg string) error {
	header := len(cmd) + len(target) + 3
	if len(h.Origin) > 0 {
		header += len(h.Origin) + 2
	}
	msgMax := IRC_MAX_LENGTH - header
	if msgMax <= 0 {
		return errors.Errorf("irc: target %q too long", target)
	}

	for {
		if len(msg) <= msgMax {
			return h.SendArgs(cmd, target, msg)
		}

		size, skip := msgMax, 0
		for i := msgMax; i > 0 && i > msgMax-SPLIT_BACKWARD; i-- {
			if msg[i] == ' ' {
				size, skip = i, 1
				break
			}
		}

		if err := h.SendArgs(cmd, target, msg[:size]); err != nil {
			return err
		}
		msg = msg[size+skip:]
	}
}
