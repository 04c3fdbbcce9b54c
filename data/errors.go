package data

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	errMissingModeArg = errors.New("data: Mode argument missing")

	// ErrNoMe is returned when a snapshot does not describe our own nick.
	ErrNoMe = errors.New("data: Snapshot has no own nick")
)

// StateError is returned by Update when a line is recognized but can not be
// applied without breaking the state, a MODE whose letters need more
// arguments than were given for example. The state is left untouched.
type StateError struct {
	// Command of the offending line.
	Command string
	// Msg describes the problem.
	Msg string
}

// Error satisfies the error interface.
func (s StateError) Error() string {
	return fmt.Sprintf("data: %s: %s", s.Command, s.Msg)
}
