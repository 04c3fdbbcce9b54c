package irc

import "strings"

// CTCP framing and quoting characters.
const (
	CTCPDelim     = '\x01'
	CTCPLowQuote  = '\x10'
	CTCPHighQuote = '\x5C'
	CTCPSep       = '\x20'
)

var (
	// M-QUOTE level: NUL, NL and CR may not appear on the wire.
	ctcpLowEscaper = strings.NewReplacer(
		"\x10", "\x10\x10",
		"\x00", "\x100",
		"\n", "\x10n",
		"\r", "\x10r",
	)
	ctcpLowUnescaper = strings.NewReplacer(
		"\x10\x10", "\x10",
		"\x100", "\x00",
		"\x10n", "\n",
		"\x10r", "\r",
	)

	// X-QUOTE level: the delimiter may not appear inside the message.
	ctcpHighEscaper = strings.NewReplacer(
		"\\", "\\\\",
		"\x01", "\\a",
	)
	ctcpHighUnescaper = strings.NewReplacer(
		"\\\\", "\\",
		"\\a", "\x01",
	)
)

// IsCTCP checks that msg is delimited by CTCPDelim on both ends.
func IsCTCP(msg []byte) bool {
	return IsCTCPString(string(msg))
}

// IsCTCPString checks that msg is delimited by CTCPDelim on both ends.
func IsCTCPString(msg string) bool {
	return len(msg) >= 2 && msg[0] == CTCPDelim && msg[len(msg)-1] == CTCPDelim
}

// CTCPunpack unpacks a CTCP message.
func CTCPunpack(msg []byte) (tag []byte, data []byte) {
	t, d, hasData := ctcpUnpack(string(msg))
	tag = []byte(t)
	if hasData {
		data = []byte(d)
	}
	return tag, data
}

// CTCPpack packs a message into CTCP format.
func CTCPpack(tag, data []byte) []byte {
	return []byte(CTCPpackString(string(tag), string(data)))
}

// CTCPunpackString unpacks a CTCP message to strings.
func CTCPunpackString(msg string) (tag, data string) {
	tag, data, _ = ctcpUnpack(msg)
	return tag, data
}

// CTCPpackString packs a message into CTCP format from strings.
func CTCPpackString(tag, data string) string {
	var b strings.Builder
	b.WriteString(ctcpHighEscaper.Replace(tag))
	if len(data) > 0 {
		b.WriteByte(CTCPSep)
		b.WriteString(ctcpHighEscaper.Replace(data))
	}
	return string(CTCPDelim) + ctcpLowEscaper.Replace(b.String()) + string(CTCPDelim)
}

// ctcpUnpack strips the delimiters, removes both quoting levels and splits
// the tag from the data at the first space.
func ctcpUnpack(msg string) (tag, data string, hasData bool) {
	if IsCTCPString(msg) {
		msg = msg[1 : len(msg)-1]
	}
	msg = ctcpLowUnescaper.Replace(msg)

	if i := strings.IndexByte(msg, CTCPSep); i >= 0 {
		tag, data, hasData = msg[:i], msg[i+1:], true
	} else {
		tag = msg
	}

	tag = ctcpHighUnescaper.Replace(tag)
	data = ctcpHighUnescaper.Replace(data)
	return tag, data, hasData
}
