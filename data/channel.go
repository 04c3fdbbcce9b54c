package data

// ChannelID addresses a Channel inside the State that owns it.
type ChannelID int

// ListEntry is one ban, exception or invite exception.
type ListEntry struct {
	Hostmask string `json:"hostmask"`
	SetBy    string `json:"set_by,omitempty"`
	SetTime  int64  `json:"set_time,omitempty"`
}

// Member is a nick on a channel with its status modes.
type Member struct {
	Nick  NickID
	Modes ModeBits
	// LastFlags are the flags of the last WHO reply, H@ for example.
	LastFlags string
}

// Channel is a channel we are on.
type Channel struct {
	Name string
	// Type is the NAMES channel type: '=' public, '*' private, '@' secret.
	Type byte

	Topic        string
	HasTopic     bool
	TopicSetBy   string
	TopicSetTime int64
	CreationTime int64

	Modes ModeBits
	// ModeOptions holds the arguments of parameter modes, the key for 'k'.
	ModeOptions map[byte]string
	// ModeReceived is set once the server sent the full mode string.
	ModeReceived bool
	// Lists holds the entries of list modes, bans under 'b'.
	Lists map[byte][]ListEntry

	id      ChannelID
	members []Member

	// Partial reply tracking. Each flag is raised by the first reply line
	// and lowered by the end-of-list numeric. namesSeen collects the members
	// confirmed by the NAMES reply in progress.
	namesStarted bool
	namesSeen    map[NickID]bool
	listStarted  map[byte]bool
}

func newChannel(id ChannelID, name string) *Channel {
	return &Channel{
		Name:        name,
		Type:        '=',
		ModeOptions: make(map[byte]string),
		Lists:       make(map[byte][]ListEntry),
		id:          id,
		listStarted: make(map[byte]bool),
	}
}

// ID returns the arena index of the channel.
func (c *Channel) ID() ChannelID {
	return c.id
}

// NumMembers is the size of the nick list.
func (c *Channel) NumMembers() int {
	return len(c.members)
}

// Key returns the channel key, empty when none is set.
func (c *Channel) Key() string {
	return c.ModeOptions['k']
}

// List returns a copy of the entries of a list mode.
func (c *Channel) List(mode byte) []ListEntry {
	entries := c.Lists[mode]
	if len(entries) == 0 {
		return nil
	}
	out := make([]ListEntry, len(entries))
	copy(out, entries)
	return out
}

func (c *Channel) member(id NickID) *Member {
	for i := range c.members {
		if c.members[i].Nick == id {
			return &c.members[i]
		}
	}
	return nil
}

// addMember returns the existing membership or appends an empty one.
func (c *Channel) addMember(id NickID) *Member {
	if m := c.member(id); m != nil {
		return m
	}
	c.members = append(c.members, Member{Nick: id})
	return &c.members[len(c.members)-1]
}

func (c *Channel) removeMember(id NickID) bool {
	delete(c.namesSeen, id)
	for i := range c.members {
		if c.members[i].Nick == id {
			c.members = append(c.members[:i], c.members[i+1:]...)
			return true
		}
	}
	return false
}

// addListEntry appends unless an entry with the same hostmask exists. List
// entries compare literally, they are masks not names.
func (c *Channel) addListEntry(mode byte, e ListEntry) {
	for _, old := range c.Lists[mode] {
		if old.Hostmask == e.Hostmask {
			return
		}
	}
	c.Lists[mode] = append(c.Lists[mode], e)
}

func (c *Channel) removeListEntry(mode byte, hostmask string) {
	entries := c.Lists[mode]
	for i, old := range entries {
		if old.Hostmask == hostmask {
			c.Lists[mode] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(c.Lists[mode]) == 0 {
		delete(c.Lists, mode)
	}
}
