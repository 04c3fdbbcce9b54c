package linestack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jelmer/ctrlproxy-sub000/irc"
	"github.com/pkg/errors"
)

// Command is an inspection command run against a linestack by a Session.
type Command int

// Commands a Session understands.
const (
	// CmdMark remembers the current end.
	CmdMark Command = iota
	// CmdReplay prints the lines since the mark, everything without one.
	CmdReplay
	// CmdDumpState prints the state as of the mark, now without one.
	CmdDumpState
)

var commandNames = map[Command]string{
	CmdMark:      "mark",
	CmdReplay:    "replay",
	CmdDumpState: "dump-state",
}

// String returns the name ParseCommand accepts.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// ParseCommand looks up a command by name.
func ParseCommand(name string) (Command, error) {
	for c, n := range commandNames {
		if strings.EqualFold(n, name) {
			return c, nil
		}
	}
	return 0, errors.Errorf("linestack: unknown command %q", name)
}

// Session runs commands against a linestack, holding the mark between
// them.
type Session struct {
	ls   *Linestack
	mark *Marker
}

// NewSession starts a session without a mark.
func NewSession(ls *Linestack) *Session {
	return &Session{ls: ls}
}

// Run executes one command, writing its output to w.
func (s *Session) Run(ctx context.Context, cmd Command, w io.Writer) error {
	switch cmd {
	case CmdMark:
		if s.mark != nil {
			s.ls.Free(s.mark)
		}
		s.mark = s.ls.Marker()
		_, err := fmt.Fprintf(w, "marked %d\n", s.mark.Pos())
		return err

	case CmdReplay:
		return s.ls.Traverse(ctx, s.mark, nil, func(l *irc.Line) error {
			_, err := fmt.Fprintf(w, "%s %s %s\n",
				l.Time.Format("2006-01-02 15:04:05"), l.Direction, l)
			return err
		})

	case CmdDumpState:
		st, err := s.ls.State(ctx, s.mark)
		if err != nil {
			return err
		}
		doc, err := st.Marshal()
		if err != nil {
			return err
		}
		var out bytes.Buffer
		if err = json.Indent(&out, doc, "", "  "); err != nil {
			return errors.Wrap(err, "linestack: indent state")
		}
		out.WriteByte('\n')
		_, err = out.WriteTo(w)
		return err
	}

	return errors.Errorf("linestack: unknown command %v", cmd)
}

// Close frees the mark.
func (s *Session) Close() {
	if s.mark != nil {
		s.ls.Free(s.mark)
		s.mark = nil
	}
}
