package data

import (
	"strings"
)

const (
	// modeFirst and modeLast bound the letters a ModeBits can hold.
	modeFirst = 'A'
	modeLast  = 'z'
)

// ModeBits is a set of mode letters. It holds every byte in 'A'..'z', which
// covers the letters servers use for user, channel and membership modes.
type ModeBits uint64

// ParseModeBits builds a set from a string of letters, ignoring a leading
// '+' and any byte that can not be held.
func ParseModeBits(letters string) ModeBits {
	var m ModeBits
	for i := 0; i < len(letters); i++ {
		m = m.Set(letters[i])
	}
	return m
}

func modeBit(mode byte) (ModeBits, bool) {
	if mode < modeFirst || mode > modeLast {
		return 0, false
	}
	return 1 << (mode - modeFirst), true
}

// Set returns the set with mode added.
func (m ModeBits) Set(mode byte) ModeBits {
	if bit, ok := modeBit(mode); ok {
		return m | bit
	}
	return m
}

// Unset returns the set with mode removed.
func (m ModeBits) Unset(mode byte) ModeBits {
	if bit, ok := modeBit(mode); ok {
		return m &^ bit
	}
	return m
}

// IsSet checks for a mode.
func (m ModeBits) IsSet(mode byte) bool {
	bit, ok := modeBit(mode)
	return ok && m&bit != 0
}

// String returns the letters in ascending byte order, without a '+'.
func (m ModeBits) String() string {
	var b strings.Builder
	for c := byte(modeFirst); c <= modeLast; c++ {
		if m.IsSet(c) {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Highest returns the first letter of ranked that is set, or 0. It is used
// to pick the status prefix shown in front of a member's nick.
func (m ModeBits) Highest(ranked string) byte {
	for i := 0; i < len(ranked); i++ {
		if m.IsSet(ranked[i]) {
			return ranked[i]
		}
	}
	return 0
}

// modeChange is one letter of a MODE command with its argument.
type modeChange struct {
	set  bool
	mode byte
	arg  string
	// hasArg distinguishes an empty argument from none at all.
	hasArg bool
}

// splitModes pairs the letters of a mode string like "+ov-b" with their
// arguments. takesArg tells whether a letter consumes an argument when set
// or unset. An error is returned when arguments run out.
func splitModes(modestr string, args []string, takesArg func(mode byte, set bool) bool) ([]modeChange, error) {
	var changes []modeChange
	set := true
	argi := 0

	for i := 0; i < len(modestr); i++ {
		switch c := modestr[i]; c {
		case '+':
			set = true
		case '-':
			set = false
		default:
			ch := modeChange{set: set, mode: c}
			if takesArg(c, set) {
				if argi >= len(args) {
					return nil, errMissingModeArg
				}
				ch.arg, ch.hasArg = args[argi], true
				argi++
			}
			changes = append(changes, ch)
		}
	}

	return changes, nil
}
