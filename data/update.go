package data

import (
	"strconv"
	"strings"

	"github.com/jelmer/ctrlproxy-sub000/irc"
)

// handler applies one kind of line. minArgs is checked before it runs and
// needOrigin demands a sender.
type handler struct {
	minArgs    int
	needOrigin bool
	fn         func(s *State, l *irc.Line) error
}

var handlers = map[string]handler{
	irc.JOIN:    {1, true, (*State).handleJoin},
	irc.PART:    {1, true, (*State).handlePart},
	irc.KICK:    {2, true, (*State).handleKick},
	irc.QUIT:    {0, true, (*State).handleQuit},
	irc.TOPIC:   {1, true, (*State).handleTopic},
	irc.NICK:    {1, true, (*State).handleNick},
	irc.PRIVMSG: {2, true, (*State).handlePrivmsg},
	irc.MODE:    {2, false, (*State).handleMode},

	irc.RPL_WELCOME:         {1, false, (*State).handleWelcome},
	irc.RPL_MYINFO:          {5, false, (*State).handleMyInfo},
	irc.RPL_ISUPPORT:        {2, false, (*State).handleISupport},
	irc.RPL_UMODEIS:         {2, false, (*State).handleUmodeIs},
	irc.RPL_USERHOST:        {2, false, (*State).handleUserhost},
	irc.RPL_UNAWAY:          {1, false, (*State).handleUnaway},
	irc.RPL_NOWAWAY:         {1, false, (*State).handleNowAway},
	irc.RPL_CHANNELMODEIS:   {3, false, (*State).handleChannelModeIs},
	irc.RPL_CREATIONTIME:    {3, false, (*State).handleCreationTime},
	irc.RPL_NOTOPIC:         {2, false, (*State).handleNoTopic},
	irc.RPL_TOPIC:           {3, false, (*State).handleTopicReply},
	irc.RPL_TOPICWHOTIME:    {3, false, (*State).handleTopicWhoTime},
	irc.RPL_NAMREPLY:        {4, false, (*State).handleNamReply},
	irc.RPL_ENDOFNAMES:      {2, false, (*State).handleEndOfNames},
	irc.RPL_BANLIST:         {3, false, listEntryHandler('b')},
	irc.RPL_ENDOFBANLIST:    {2, false, listEndHandler('b')},
	irc.RPL_EXCEPTLIST:      {3, false, listEntryHandler('e')},
	irc.RPL_ENDOFEXCEPTLIST: {2, false, listEndHandler('e')},
	irc.RPL_INVITELIST:      {3, false, listEntryHandler('I')},
	irc.RPL_ENDOFINVITELIST: {2, false, listEndHandler('I')},
	irc.RPL_WHOREPLY:        {8, false, (*State).handleWhoReply},
	irc.RPL_ENDOFWHO:        {1, false, nil},
}

// Update applies one line received from the server. It reports whether the
// line was one the state tracks. Lines sent to the server, unknown commands
// and lines without effect return false and no error. A StateError means the
// line was recognized but could not be applied, the state is unchanged.
func (s *State) Update(l *irc.Line) (bool, error) {
	if l == nil || l.Direction != irc.FromServer {
		return false, nil
	}

	h, ok := handlers[strings.ToUpper(l.Command)]
	if !ok {
		return false, nil
	}
	if len(l.Args) < h.minArgs {
		return false, StateError{Command: l.Command, Msg: "not enough arguments"}
	}
	if h.needOrigin && len(l.Origin) == 0 {
		return false, StateError{Command: l.Command, Msg: "no origin"}
	}
	if h.fn == nil {
		return true, nil
	}

	if err := h.fn(s, l); err != nil {
		return false, err
	}
	return true, nil
}

// unixTime is the line time in unix seconds, 0 for unstamped lines.
func unixTime(l *irc.Line) int64 {
	if l.Time.IsZero() {
		return 0
	}
	return l.Time.Unix()
}

func splitList(arg string) []string {
	var out []string
	for _, part := range strings.Split(arg, ",") {
		if len(part) > 0 {
			out = append(out, part)
		}
	}
	return out
}

func (s *State) handleJoin(l *irc.Line) error {
	for _, name := range splitList(l.Args[0]) {
		c := s.findAddChannel(name)
		n := s.findAddNick(l.Origin)
		s.join(c, n)
	}
	return nil
}

func (s *State) handlePart(l *irc.Line) error {
	for _, name := range splitList(l.Args[0]) {
		c := s.Channel(name)
		if c == nil {
			s.log.Warn("Can't part channel we are not on", "channel", name)
			continue
		}

		if s.IsMe(l.Origin) {
			s.freeChannel(c)
			continue
		}

		n := s.Nick(l.Origin)
		if n == nil || !s.leave(c, n) {
			s.log.Warn("Nick parted channel it was not on",
				"nick", irc.Nick(l.Origin), "channel", name)
		}
	}
	return nil
}

func (s *State) handleKick(l *irc.Line) error {
	channels := splitList(l.Args[0])
	nicks := splitList(l.Args[1])

	kick := func(chanName, nick string) {
		if s.IsMe(nick) {
			if c := s.Channel(chanName); c != nil {
				s.freeChannel(c)
			}
			return
		}

		c := s.findAddChannel(chanName)
		n := s.Nick(nick)
		if n == nil || !s.leave(c, n) {
			s.log.Debug("Kicked nick was not on channel", "nick", nick, "channel", chanName)
		}
	}

	if len(channels) == 1 {
		for _, nick := range nicks {
			kick(channels[0], nick)
		}
		return nil
	}

	for i := 0; i < len(channels) && i < len(nicks); i++ {
		kick(channels[i], nicks[i])
	}
	return nil
}

func (s *State) handleQuit(l *irc.Line) error {
	n := s.Nick(l.Origin)
	if n == nil {
		s.log.Debug("Unknown nick quit", "nick", irc.Nick(l.Origin))
		return nil
	}

	if n.id == s.me {
		for _, c := range s.channels {
			if c != nil {
				s.freeChannel(c)
			}
		}
		return nil
	}

	s.freeNick(n)
	return nil
}

func (s *State) handleNick(l *irc.Line) error {
	n := s.findAddNick(l.Origin)
	newName := l.Args[0]

	if other := s.Nick(newName); other != nil && other != n {
		if other.id == s.me {
			return StateError{Command: l.Command, Msg: "nick change onto our own nick"}
		}
		s.log.Warn("Dropping stale nick", "nick", other.Name)
		s.freeNick(other)
	}

	s.renameNick(n, newName)
	// A fresh nick is kept alive only by its memberships.
	s.gcNick(n)
	return nil
}

func (s *State) handlePrivmsg(l *irc.Line) error {
	if !s.IsMe(l.Args[0]) {
		return nil
	}
	s.findAddNick(l.Origin).Query = true
	return nil
}

func (s *State) handleMode(l *irc.Line) error {
	target := l.Args[0]

	if s.info.IsChannel(target) {
		return s.applyChannelModes(l, target, l.Args[1], l.Args[2:], false)
	}

	n := s.Nick(target)
	if n == nil {
		s.log.Debug("Mode for unknown nick", "nick", target)
		return nil
	}
	n.Modes = applyUserModes(n.Modes, l.Args[1])
	return nil
}

func applyUserModes(m ModeBits, modestr string) ModeBits {
	set := true
	for i := 0; i < len(modestr); i++ {
		switch c := modestr[i]; c {
		case '+':
			set = true
		case '-':
			set = false
		default:
			if set {
				m = m.Set(c)
			} else {
				m = m.Unset(c)
			}
		}
	}
	return m
}

// applyChannelModes validates every letter's argument before touching the
// channel, so a short MODE line leaves the state alone.
func (s *State) applyChannelModes(l *irc.Line, target, modestr string, args []string, reset bool) error {
	changes, err := splitModes(modestr, args, func(mode byte, set bool) bool {
		return s.info.ClassifyChannelMode(mode).HasParam(set)
	})
	if err != nil {
		return StateError{Command: l.Command, Msg: err.Error() + " for " + modestr}
	}

	c := s.findAddChannel(target)
	if reset {
		c.Modes = 0
		c.ModeOptions = make(map[byte]string)
		c.ModeReceived = true
	}

	setter := irc.Nick(l.Origin)
	for _, ch := range changes {
		switch class := s.info.ClassifyChannelMode(ch.mode); class {
		case irc.ModePrefix:
			n := s.findAddNick(ch.arg)
			m := s.join(c, n)
			if ch.set {
				m.Modes = m.Modes.Set(ch.mode)
			} else {
				m.Modes = m.Modes.Unset(ch.mode)
			}
		case irc.ModeList:
			if ch.set {
				c.addListEntry(ch.mode, ListEntry{Hostmask: ch.arg, SetBy: setter, SetTime: unixTime(l)})
			} else {
				c.removeListEntry(ch.mode, ch.arg)
			}
		case irc.ModeAlwaysParam, irc.ModeSetParam:
			if ch.set {
				c.Modes = c.Modes.Set(ch.mode)
				c.ModeOptions[ch.mode] = ch.arg
			} else {
				c.Modes = c.Modes.Unset(ch.mode)
				delete(c.ModeOptions, ch.mode)
			}
		default:
			if class == irc.ModeUnknown {
				s.log.Warn("Unknown channel mode", "mode", string(ch.mode), "channel", c.Name)
			}
			if ch.set {
				c.Modes = c.Modes.Set(ch.mode)
			} else {
				c.Modes = c.Modes.Unset(ch.mode)
			}
		}
	}
	return nil
}

func (s *State) handleTopic(l *irc.Line) error {
	c := s.Channel(l.Args[0])
	if c == nil {
		s.log.Warn("Topic for channel we are not on", "channel", l.Args[0])
		return nil
	}

	if len(l.Args) < 2 || len(l.Args[1]) == 0 {
		c.Topic, c.HasTopic = "", false
	} else {
		c.Topic, c.HasTopic = l.Args[1], true
	}
	c.TopicSetBy = irc.Nick(l.Origin)
	c.TopicSetTime = unixTime(l)
	return nil
}

func (s *State) handleWelcome(l *irc.Line) error {
	me := s.Me()
	if nick := l.Args[0]; nick != me.Name {
		if other := s.Nick(nick); other != nil && other != me {
			s.freeNick(other)
		}
		s.renameNick(me, nick)
	}

	// "Welcome to the network nick!user@host"
	if fields := strings.Fields(l.Arg(len(l.Args) - 1)); len(fields) > 0 {
		host := fields[len(fields)-1]
		if n, _, _ := irc.Split(host); len(n) > 0 && s.info.Equal(n, me.Name) {
			me.setHostmask(host)
		}
	}
	return nil
}

func (s *State) handleMyInfo(l *irc.Line) error {
	s.info.ParseMyInfo(l)
	return nil
}

func (s *State) handleISupport(l *irc.Line) error {
	before := s.info.Casemapping()
	s.info.ParseISupport(l)
	if s.info.Casemapping() != before {
		s.reindex()
	}
	return nil
}

func (s *State) handleUmodeIs(l *irc.Line) error {
	s.Me().Modes = ParseModeBits(l.Args[1])
	return nil
}

// handleUserhost learns hostmasks from "nick*=+user@host" entries.
func (s *State) handleUserhost(l *irc.Line) error {
	for _, entry := range strings.Fields(l.Args[1]) {
		eq := strings.IndexByte(entry, '=')
		if eq <= 0 || eq+2 > len(entry) {
			continue
		}
		nick := strings.TrimSuffix(entry[:eq], "*")
		if n := s.Nick(nick); n != nil {
			n.setHostmask(nick + "!" + entry[eq+2:])
		}
	}
	return nil
}

func (s *State) handleUnaway(l *irc.Line) error {
	s.away = false
	return nil
}

func (s *State) handleNowAway(l *irc.Line) error {
	s.away = true
	return nil
}

func (s *State) handleChannelModeIs(l *irc.Line) error {
	return s.applyChannelModes(l, l.Args[1], l.Args[2], l.Args[3:], true)
}

func (s *State) handleCreationTime(l *irc.Line) error {
	c := s.Channel(l.Args[1])
	if c == nil {
		return nil
	}
	if t, err := strconv.ParseInt(l.Args[2], 10, 64); err == nil {
		c.CreationTime = t
	}
	return nil
}

func (s *State) handleNoTopic(l *irc.Line) error {
	if c := s.Channel(l.Args[1]); c != nil {
		c.Topic, c.HasTopic = "", false
	}
	return nil
}

func (s *State) handleTopicReply(l *irc.Line) error {
	c := s.findAddChannel(l.Args[1])
	c.Topic, c.HasTopic = l.Args[2], true
	return nil
}

func (s *State) handleTopicWhoTime(l *irc.Line) error {
	c := s.Channel(l.Args[1])
	if c == nil {
		return nil
	}
	c.TopicSetBy = l.Args[2]
	if len(l.Args) > 3 {
		if t, err := strconv.ParseInt(l.Args[3], 10, 64); err == nil {
			c.TopicSetTime = t
		}
	}
	return nil
}

// handleNamReply collects the nick list being sent. Members are added or
// confirmed as replies arrive, 366 drops the ones no reply mentioned.
func (s *State) handleNamReply(l *irc.Line) error {
	c := s.findAddChannel(l.Args[2])
	if len(l.Args[1]) > 0 {
		c.Type = l.Args[1][0]
	}

	if !c.namesStarted {
		c.namesStarted = true
		c.namesSeen = make(map[NickID]bool, len(c.members))
	}

	for _, name := range strings.Fields(l.Args[3]) {
		var modes ModeBits
		for len(name) > 0 && s.info.IsPrefix(name[0]) {
			modes = modes.Set(s.info.ModeForPrefix(name[0]))
			name = name[1:]
		}
		if len(name) == 0 {
			continue
		}

		n := s.findAddNick(name)
		m := s.join(c, n)
		m.Modes = modes
		c.namesSeen[n.id] = true
	}
	return nil
}

func (s *State) handleEndOfNames(l *irc.Line) error {
	c := s.Channel(l.Args[1])
	if c == nil || !c.namesStarted {
		return nil
	}

	var stale []*Nick
	for _, m := range c.members {
		if !c.namesSeen[m.Nick] {
			stale = append(stale, s.nicks[m.Nick])
		}
	}
	for _, n := range stale {
		s.leave(c, n)
	}

	c.namesStarted = false
	c.namesSeen = nil
	return nil
}

func listEntryHandler(mode byte) func(*State, *irc.Line) error {
	return func(s *State, l *irc.Line) error {
		c := s.findAddChannel(l.Args[1])
		if !c.listStarted[mode] {
			delete(c.Lists, mode)
			c.listStarted[mode] = true
		}

		e := ListEntry{Hostmask: l.Args[2]}
		if len(l.Args) > 3 {
			e.SetBy = l.Args[3]
		}
		if len(l.Args) > 4 {
			e.SetTime, _ = strconv.ParseInt(l.Args[4], 10, 64)
		}
		c.addListEntry(mode, e)
		return nil
	}
}

func listEndHandler(mode byte) func(*State, *irc.Line) error {
	return func(s *State, l *irc.Line) error {
		if c := s.Channel(l.Args[1]); c != nil {
			c.listStarted[mode] = false
		}
		return nil
	}
}

// handleWhoReply parses "me #chan user host server nick flags :hops name".
func (s *State) handleWhoReply(l *irc.Line) error {
	n := s.findAddNick(l.Args[5])
	n.Username = l.Args[2]
	n.Hostname = l.Args[3]
	n.Server = l.Args[4]

	hops, fullname := l.Args[7], ""
	if i := strings.IndexByte(hops, ' '); i >= 0 {
		hops, fullname = hops[:i], hops[i+1:]
	}
	if h, err := strconv.Atoi(hops); err == nil {
		n.Hops = h
	}
	if len(n.Fullname) == 0 {
		n.Fullname = fullname
	}

	c := s.Channel(l.Args[1])
	if c == nil {
		s.gcNick(n)
		return nil
	}
	m := c.member(n.id)
	if m == nil {
		s.log.Warn("Nick in WHO reply not on channel", "nick", n.Name, "channel", c.Name)
		s.gcNick(n)
		return nil
	}
	m.LastFlags = l.Args[6]
	return nil
}
