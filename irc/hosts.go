package irc

import (
	"strings"

	"github.com/ergochat/irc-go/ircmsg"
)

// Host is a type that represents an irc hostname. nickname!username@hostname
type Host string

// NewHost joins the three parts of a hostmask.
func NewHost(nick, user, hostname string) Host {
	nuh := ircmsg.NUH{Name: nick, User: user, Host: hostname}
	return Host(nuh.Canonical())
}

// Nick returns the nick of the host.
func (h Host) Nick() string {
	return Nick(string(h))
}

// Username returns the username of the host.
func (h Host) Username() string {
	_, user, _ := h.Split()
	return user
}

// Hostname returns the host of the host.
func (h Host) Hostname() string {
	_, _, hostname := h.Split()
	return hostname
}

// Split splits a host into its fragments: nick, user, and hostname. If the
// format is not acceptable empty string is returned for everything.
func (h Host) Split() (nick, user, hostname string) {
	return Split(string(h))
}

// String returns the fullhost of this host.
func (h Host) String() string {
	return string(h)
}

// IsValid checks that all three parts are present and free of separators.
func (h Host) IsValid() bool {
	nick, _, _ := h.Split()
	return len(nick) > 0
}

// Match checks if a given mask is satisfied by the host.
func (h Host) Match(m Mask) bool {
	return m.Match(h)
}

// Mask is an irc hostmask that contains wildcard characters ? and *
type Mask string

// Match checks if the mask satisfies the given host. Matching ignores ascii
// case, as servers do for ban masks.
func (m Mask) Match(h Host) bool {
	return wildcardMatch(strings.ToLower(string(m)), strings.ToLower(string(h)))
}

// IsValid checks that the mask has all three parts.
func (m Mask) IsValid() bool {
	nick, _, _ := m.Split()
	return len(nick) > 0
}

// Split splits a mask into its fragments: nick, user, and host. If the
// format is not acceptable empty string is returned for everything.
func (m Mask) Split() (nick, user, host string) {
	return Split(string(m))
}

// Nick returns the part of a hostmask before any '!' or '@'.
func Nick(host string) string {
	if i := strings.IndexAny(host, "!@"); i >= 0 {
		return host[:i]
	}
	return host
}

// Split splits a host into its fragments: nick, user, and hostname. If the
// format is not acceptable empty string is returned for everything.
func Split(host string) (nick, user, hostname string) {
	if strings.ContainsAny(host, " \x00") {
		return
	}
	nuh, err := ircmsg.ParseNUH(host)
	if err != nil {
		return
	}
	if len(nuh.Name) == 0 || len(nuh.User) == 0 || len(nuh.Host) == 0 ||
		strings.ContainsAny(nuh.Name, "!@") ||
		strings.ContainsAny(nuh.User, "!@") ||
		strings.ContainsRune(nuh.Host, '!') {
		return
	}
	return nuh.Name, nuh.User, nuh.Host
}

// wildcardMatch reports whether s satisfies pattern, where '*' matches any
// run of bytes and '?' matches exactly one.
func wildcardMatch(pattern, s string) bool {
	p, i := 0, 0
	star, mark := -1, 0

	for i < len(s) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == s[i]):
			p++
			i++
		case p < len(pattern) && pattern[p] == '*':
			star, mark = p, i
			p++
		case star >= 0:
			p = star + 1
			mark++
			i = mark
		default:
			return false
		}
	}

	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
