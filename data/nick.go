package data

import (
	"github.com/jelmer/ctrlproxy-sub000/irc"
)

// NickID addresses a Nick inside the State that owns it. IDs are reused
// after a nick is forgotten, so they must not be kept across updates.
type NickID int

// Nick is a user known to the network.
type Nick struct {
	Name     string
	Username string
	Hostname string
	Fullname string
	Server   string
	Hops     int
	// Modes are the user modes, only known for ourselves usually.
	Modes ModeBits
	// Query is set for nicks that sent us a private message. They are kept
	// even when they share no channel with us.
	Query bool

	id       NickID
	channels []ChannelID
}

// ID returns the arena index of the nick.
func (n *Nick) ID() NickID {
	return n.id
}

// Hostmask returns nick!user@host, or as much of it as is known.
func (n *Nick) Hostmask() irc.Host {
	return irc.NewHost(n.Name, n.Username, n.Hostname)
}

// NumChannels is the number of channels the nick shares with us.
func (n *Nick) NumChannels() int {
	return len(n.channels)
}

// setHostmask learns the user and host parts of an origin.
func (n *Nick) setHostmask(origin string) {
	_, user, host := irc.Split(origin)
	if len(user) > 0 {
		n.Username = user
	}
	if len(host) > 0 {
		n.Hostname = host
	}
}

func (n *Nick) addChannel(id ChannelID) {
	for _, c := range n.channels {
		if c == id {
			return
		}
	}
	n.channels = append(n.channels, id)
}

func (n *Nick) removeChannel(id ChannelID) {
	for i, c := range n.channels {
		if c == id {
			n.channels = append(n.channels[:i], n.channels[i+1:]...)
			return
		}
	}
}
