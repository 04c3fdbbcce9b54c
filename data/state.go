/*
Package data turns irc lines into the state of one network: the channels we
are on, the nicks we can see, their modes and the topics.

A State owns its nicks and channels in two slabs addressed by NickID and
ChannelID. Memberships are stored as indices on both sides, lookups by name
go through case-folded index maps built with the network's casemapping.
*/
package data

import (
	"sort"

	"github.com/jelmer/ctrlproxy-sub000/irc"
	"github.com/pkg/errors"
	log "gopkg.in/inconshreveable/log15.v2"
)

// State is the main data container. It represents the state on a network
// including all channels, nicks and ourselves. It is not safe for concurrent
// use, one goroutine applies lines to it.
type State struct {
	info *irc.NetworkInfo
	me   NickID
	away bool

	nicks        []*Nick
	freeNicks    []NickID
	channels     []*Channel
	freeChannels []ChannelID

	nickIndex map[string]NickID
	chanIndex map[string]ChannelID

	log log.Logger
}

// NewState creates a state where we are nick!username@hostname. A nil info
// gets the default capability table.
func NewState(info *irc.NetworkInfo, nick, username, hostname string) *State {
	if info == nil {
		info = irc.NewNetworkInfo()
	}

	s := &State{
		info:      info,
		nickIndex: make(map[string]NickID),
		chanIndex: make(map[string]ChannelID),
		log:       discardLogger(),
	}

	me := s.addNick(nick)
	me.Username = username
	me.Hostname = hostname
	me.Query = true
	s.me = me.id
	return s
}

func discardLogger() log.Logger {
	l := log.New()
	l.SetHandler(log.DiscardHandler())
	return l
}

// SetLogger makes the state report oddities in the lines it is fed.
func (s *State) SetLogger(l log.Logger) {
	if l == nil {
		l = discardLogger()
	}
	s.log = l
}

// Info returns the capability table names are compared with.
func (s *State) Info() *irc.NetworkInfo {
	return s.info
}

// Me returns our own nick.
func (s *State) Me() *Nick {
	return s.nicks[s.me]
}

// IsAway reports whether the server considers us away.
func (s *State) IsAway() bool {
	return s.away
}

// IsMe checks a nick or origin against our own nick.
func (s *State) IsMe(nickorhost string) bool {
	return s.info.Equal(irc.Nick(nickorhost), s.Me().Name)
}

// Nick finds a nick by name or full origin.
func (s *State) Nick(nickorhost string) *Nick {
	if id, ok := s.nickIndex[s.info.Casefold(irc.Nick(nickorhost))]; ok {
		return s.nicks[id]
	}
	return nil
}

// Channel finds a channel by name.
func (s *State) Channel(name string) *Channel {
	if id, ok := s.chanIndex[s.info.Casefold(name)]; ok {
		return s.channels[id]
	}
	return nil
}

// NickByID returns the nick stored at id, nil for free slots.
func (s *State) NickByID(id NickID) *Nick {
	if id < 0 || int(id) >= len(s.nicks) {
		return nil
	}
	return s.nicks[id]
}

// ChannelByID returns the channel stored at id, nil for free slots.
func (s *State) ChannelByID(id ChannelID) *Channel {
	if id < 0 || int(id) >= len(s.channels) {
		return nil
	}
	return s.channels[id]
}

// Channels returns all channels ordered by folded name.
func (s *State) Channels() []*Channel {
	out := make([]*Channel, 0, len(s.chanIndex))
	for _, c := range s.channels {
		if c != nil {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.info.Compare(out[i].Name, out[j].Name) < 0
	})
	return out
}

// Nicks returns all known nicks ordered by folded name.
func (s *State) Nicks() []*Nick {
	out := make([]*Nick, 0, len(s.nickIndex))
	for _, n := range s.nicks {
		if n != nil {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.info.Compare(out[i].Name, out[j].Name) < 0
	})
	return out
}

// NumChannels returns the number of channels in the state.
func (s *State) NumChannels() int {
	return len(s.chanIndex)
}

// NumNicks returns the number of nicks in the state.
func (s *State) NumNicks() int {
	return len(s.nickIndex)
}

// Members returns a copy of a channel's nick list in join order.
func (s *State) Members(c *Channel) []Member {
	out := make([]Member, len(c.members))
	copy(out, c.members)
	return out
}

// Membership returns the membership of a nick on a channel, or nil.
func (s *State) Membership(c *Channel, n *Nick) *Member {
	m := c.member(n.id)
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}

// NickChannels returns the channels a nick is on.
func (s *State) NickChannels(n *Nick) []*Channel {
	out := make([]*Channel, 0, len(n.channels))
	for _, id := range n.channels {
		out = append(out, s.channels[id])
	}
	return out
}

// Names renders a channel's nick list the way NAMES does, each nick behind
// the prefix of its highest status mode.
func (s *State) Names(c *Channel) []string {
	ranked := s.info.PrefixModes()
	out := make([]string, 0, len(c.members))
	for _, m := range c.members {
		name := s.nicks[m.Nick].Name
		if mode := m.Modes.Highest(ranked); mode != 0 {
			name = string(s.info.PrefixForMode(mode)) + name
		}
		out = append(out, name)
	}
	return out
}

// CheckMembership verifies that memberships agree on both sides, that
// every index entry points at a live slot and that no nick other than ours
// or a query lingers without channels.
func (s *State) CheckMembership() error {
	for key, id := range s.nickIndex {
		n := s.NickByID(id)
		if n == nil {
			return errors.Errorf("data: index %q points at free nick slot %d", key, id)
		}
		if s.info.Casefold(n.Name) != key {
			return errors.Errorf("data: nick %q indexed as %q", n.Name, key)
		}
	}
	for key, id := range s.chanIndex {
		c := s.ChannelByID(id)
		if c == nil {
			return errors.Errorf("data: index %q points at free channel slot %d", key, id)
		}
		if s.info.Casefold(c.Name) != key {
			return errors.Errorf("data: channel %q indexed as %q", c.Name, key)
		}
	}

	for _, c := range s.channels {
		if c == nil {
			continue
		}
		for _, m := range c.members {
			n := s.NickByID(m.Nick)
			if n == nil {
				return errors.Errorf("data: %s lists free nick slot %d", c.Name, m.Nick)
			}
			if !containsChannel(n.channels, c.id) {
				return errors.Errorf("data: %s lists %s without back reference", c.Name, n.Name)
			}
		}
	}

	for _, n := range s.nicks {
		if n == nil {
			continue
		}
		for _, cid := range n.channels {
			c := s.ChannelByID(cid)
			if c == nil || c.member(n.id) == nil {
				return errors.Errorf("data: %s claims channel slot %d it is not on", n.Name, cid)
			}
		}
		if n.id != s.me && !n.Query && len(n.channels) == 0 {
			return errors.Errorf("data: %s is on no channel", n.Name)
		}
	}

	return nil
}

func containsChannel(ids []ChannelID, id ChannelID) bool {
	for _, c := range ids {
		if c == id {
			return true
		}
	}
	return false
}

// addNick stores a new nick in the first free slot.
func (s *State) addNick(name string) *Nick {
	n := &Nick{Name: name}
	if l := len(s.freeNicks); l > 0 {
		n.id = s.freeNicks[l-1]
		s.freeNicks = s.freeNicks[:l-1]
		s.nicks[n.id] = n
	} else {
		n.id = NickID(len(s.nicks))
		s.nicks = append(s.nicks, n)
	}
	s.nickIndex[s.info.Casefold(name)] = n.id
	return n
}

// findAddNick returns the nick of an origin, creating it if unknown, and
// learns its hostmask.
func (s *State) findAddNick(nickorhost string) *Nick {
	n := s.Nick(nickorhost)
	if n == nil {
		n = s.addNick(irc.Nick(nickorhost))
	}
	n.setHostmask(nickorhost)
	return n
}

func (s *State) freeNick(n *Nick) {
	for _, cid := range n.channels {
		s.channels[cid].removeMember(n.id)
	}
	n.channels = nil
	delete(s.nickIndex, s.info.Casefold(n.Name))
	s.nicks[n.id] = nil
	s.freeNicks = append(s.freeNicks, n.id)
}

// gcNick forgets a nick that is no longer visible to us.
func (s *State) gcNick(n *Nick) {
	if n.id == s.me || n.Query || len(n.channels) > 0 {
		return
	}
	s.freeNick(n)
}

func (s *State) renameNick(n *Nick, name string) {
	delete(s.nickIndex, s.info.Casefold(n.Name))
	n.Name = name
	s.nickIndex[s.info.Casefold(name)] = n.id
}

func (s *State) addChannel(name string) *Channel {
	var id ChannelID
	if l := len(s.freeChannels); l > 0 {
		id = s.freeChannels[l-1]
		s.freeChannels = s.freeChannels[:l-1]
	} else {
		id = ChannelID(len(s.channels))
		s.channels = append(s.channels, nil)
	}
	c := newChannel(id, name)
	s.channels[id] = c
	s.chanIndex[s.info.Casefold(name)] = id
	return c
}

func (s *State) findAddChannel(name string) *Channel {
	if c := s.Channel(name); c != nil {
		return c
	}
	return s.addChannel(name)
}

// freeChannel drops a channel and every membership in it.
func (s *State) freeChannel(c *Channel) {
	members := c.members
	c.members = nil
	for _, m := range members {
		n := s.nicks[m.Nick]
		n.removeChannel(c.id)
		s.gcNick(n)
	}
	delete(s.chanIndex, s.info.Casefold(c.Name))
	s.channels[c.id] = nil
	s.freeChannels = append(s.freeChannels, c.id)
}

func (s *State) join(c *Channel, n *Nick) *Member {
	n.addChannel(c.id)
	return c.addMember(n.id)
}

// leave removes a membership and forgets the nick if that was its last one.
func (s *State) leave(c *Channel, n *Nick) bool {
	if !c.removeMember(n.id) {
		return false
	}
	n.removeChannel(c.id)
	s.gcNick(n)
	return true
}

// reindex rebuilds the lookup maps, needed when the casemapping changes.
func (s *State) reindex() {
	s.nickIndex = make(map[string]NickID, len(s.nickIndex))
	for _, n := range s.nicks {
		if n != nil {
			s.nickIndex[s.info.Casefold(n.Name)] = n.id
		}
	}
	s.chanIndex = make(map[string]ChannelID, len(s.chanIndex))
	for _, c := range s.channels {
		if c != nil {
			s.chanIndex[s.info.Casefold(c.Name)] = c.id
		}
	}
}
