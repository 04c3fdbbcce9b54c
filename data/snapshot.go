package data

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/jelmer/ctrlproxy-sub000/irc"
	"github.com/pkg/errors"
)

// snapshotDoc is the stored form of a State. Nicks, channels and members are
// sorted by folded name so that equal states produce equal documents.
type snapshotDoc struct {
	Me       string       `json:"me"`
	Away     bool         `json:"away,omitempty"`
	Info     infoDoc      `json:"info"`
	Nicks    []nickDoc    `json:"nicks"`
	Channels []channelDoc `json:"channels"`
}

type infoDoc struct {
	Server    string   `json:"server,omitempty"`
	Version   string   `json:"version,omitempty"`
	Usermodes string   `json:"usermodes,omitempty"`
	Chanmodes string   `json:"chanmodes,omitempty"`
	Tokens    []string `json:"tokens,omitempty"`
}

type nickDoc struct {
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	Fullname string `json:"fullname,omitempty"`
	Server   string `json:"server,omitempty"`
	Hops     int    `json:"hops,omitempty"`
	Modes    string `json:"modes,omitempty"`
	Query    bool   `json:"query,omitempty"`
}

type memberDoc struct {
	Nick      string `json:"nick"`
	Modes     string `json:"modes,omitempty"`
	LastFlags string `json:"last_flags,omitempty"`
}

type channelDoc struct {
	Name         string                 `json:"name"`
	Type         string                 `json:"type"`
	Topic        string                 `json:"topic,omitempty"`
	HasTopic     bool                   `json:"has_topic,omitempty"`
	TopicSetBy   string                 `json:"topic_set_by,omitempty"`
	TopicSetTime int64                  `json:"topic_set_time,omitempty"`
	CreationTime int64                  `json:"creation_time,omitempty"`
	Modes        string                 `json:"modes,omitempty"`
	ModeOptions  map[string]string      `json:"mode_options,omitempty"`
	ModeReceived bool                   `json:"mode_received,omitempty"`
	Lists        map[string][]ListEntry `json:"lists,omitempty"`
	Members      []memberDoc            `json:"members,omitempty"`

	// Replies in progress, so that a replay resumes them.
	NamesPending bool     `json:"names_pending,omitempty"`
	NamesSeen    []string `json:"names_seen,omitempty"`
	ListsPending string   `json:"lists_pending,omitempty"`
}

// document builds the snapshot document, with the partial reply flags when
// transient is set.
func (s *State) document(transient bool) snapshotDoc {
	doc := snapshotDoc{
		Me:   s.Me().Name,
		Away: s.away,
		Info: infoDoc{
			Server:    s.info.ServerName(),
			Version:   s.info.IrcdVersion(),
			Usermodes: s.info.Usermodes(),
			Chanmodes: s.info.LegacyChanmodes(),
			Tokens:    s.info.Tokens(),
		},
		Nicks:    []nickDoc{},
		Channels: []channelDoc{},
	}

	for _, n := range s.Nicks() {
		doc.Nicks = append(doc.Nicks, nickDoc{
			Name:     n.Name,
			Username: n.Username,
			Hostname: n.Hostname,
			Fullname: n.Fullname,
			Server:   n.Server,
			Hops:     n.Hops,
			Modes:    n.Modes.String(),
			Query:    n.Query,
		})
	}

	for _, c := range s.Channels() {
		cd := channelDoc{
			Name:         c.Name,
			Type:         string(c.Type),
			Topic:        c.Topic,
			HasTopic:     c.HasTopic,
			TopicSetBy:   c.TopicSetBy,
			TopicSetTime: c.TopicSetTime,
			CreationTime: c.CreationTime,
			Modes:        c.Modes.String(),
			ModeReceived: c.ModeReceived,
		}
		if len(c.ModeOptions) > 0 {
			cd.ModeOptions = make(map[string]string, len(c.ModeOptions))
			for m, v := range c.ModeOptions {
				cd.ModeOptions[string(m)] = v
			}
		}
		if len(c.Lists) > 0 {
			cd.Lists = make(map[string][]ListEntry, len(c.Lists))
			for m := range c.Lists {
				cd.Lists[string(m)] = c.List(m)
			}
		}
		for _, m := range c.members {
			cd.Members = append(cd.Members, memberDoc{
				Nick:      s.nicks[m.Nick].Name,
				Modes:     m.Modes.String(),
				LastFlags: m.LastFlags,
			})
		}
		sort.Slice(cd.Members, func(i, j int) bool {
			return s.info.Compare(cd.Members[i].Nick, cd.Members[j].Nick) < 0
		})
		if transient {
			s.documentPartial(c, &cd)
		}
		doc.Channels = append(doc.Channels, cd)
	}

	return doc
}

func (s *State) documentPartial(c *Channel, cd *channelDoc) {
	if c.namesStarted {
		cd.NamesPending = true
		for id := range c.namesSeen {
			cd.NamesSeen = append(cd.NamesSeen, s.nicks[id].Name)
		}
		sort.Strings(cd.NamesSeen)
	}
	var pending []byte
	for mode, started := range c.listStarted {
		if started {
			pending = append(pending, mode)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i] < pending[j] })
	cd.ListsPending = string(pending)
}

// Marshal serializes the state into the document stored in snapshots,
// replies in progress included.
func (s *State) Marshal() ([]byte, error) {
	b, err := json.Marshal(s.document(true))
	return b, errors.Wrap(err, "data: marshal state")
}

// Unmarshal rebuilds a state from a Marshal document. The state gets a
// NetworkInfo of its own built from the stored tokens.
func Unmarshal(b []byte) (*State, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrap(err, "data: unmarshal state")
	}
	if len(doc.Me) == 0 {
		return nil, ErrNoMe
	}

	info := irc.NewNetworkInfo()
	for _, tok := range doc.Info.Tokens {
		info.ApplyISupport(tok)
	}
	if len(doc.Info.Server) > 0 {
		info.SetMyInfo(doc.Info.Server, doc.Info.Version, doc.Info.Usermodes, doc.Info.Chanmodes)
	}

	s := &State{
		info:      info,
		away:      doc.Away,
		nickIndex: make(map[string]NickID, len(doc.Nicks)),
		chanIndex: make(map[string]ChannelID, len(doc.Channels)),
		log:       discardLogger(),
	}

	for _, nd := range doc.Nicks {
		n := s.addNick(nd.Name)
		n.Username = nd.Username
		n.Hostname = nd.Hostname
		n.Fullname = nd.Fullname
		n.Server = nd.Server
		n.Hops = nd.Hops
		n.Modes = ParseModeBits(nd.Modes)
		n.Query = nd.Query
	}

	me := s.Nick(doc.Me)
	if me == nil {
		return nil, ErrNoMe
	}
	s.me = me.id

	for _, cd := range doc.Channels {
		c := s.addChannel(cd.Name)
		if len(cd.Type) > 0 {
			c.Type = cd.Type[0]
		}
		c.Topic = cd.Topic
		c.HasTopic = cd.HasTopic
		c.TopicSetBy = cd.TopicSetBy
		c.TopicSetTime = cd.TopicSetTime
		c.CreationTime = cd.CreationTime
		c.Modes = ParseModeBits(cd.Modes)
		c.ModeReceived = cd.ModeReceived
		for m, v := range cd.ModeOptions {
			if len(m) == 1 {
				c.ModeOptions[m[0]] = v
			}
		}
		for m, entries := range cd.Lists {
			if len(m) == 1 && len(entries) > 0 {
				c.Lists[m[0]] = entries
			}
		}
		for _, md := range cd.Members {
			n := s.Nick(md.Nick)
			if n == nil {
				return nil, errors.Errorf("data: member %s of %s is not a known nick", md.Nick, cd.Name)
			}
			m := s.join(c, n)
			m.Modes = ParseModeBits(md.Modes)
			m.LastFlags = md.LastFlags
		}

		if cd.NamesPending {
			c.namesStarted = true
			c.namesSeen = make(map[NickID]bool, len(cd.NamesSeen))
			for _, name := range cd.NamesSeen {
				if n := s.Nick(name); n != nil {
					c.namesSeen[n.id] = true
				}
			}
		}
		for i := 0; i < len(cd.ListsPending); i++ {
			c.listStarted[cd.ListsPending[i]] = true
		}
	}

	return s, nil
}

// Clone returns an independent copy of the state with its own NetworkInfo.
func (s *State) Clone() (*State, error) {
	b, err := s.Marshal()
	if err != nil {
		return nil, err
	}
	c, err := Unmarshal(b)
	if err != nil {
		return nil, err
	}
	c.log = s.log
	return c, nil
}

// Equal compares two states by their snapshot documents, leaving out the
// replies in progress and the order nicks were learned in.
func (s *State) Equal(o *State) bool {
	a, errA := json.Marshal(s.document(false))
	b, errB := json.Marshal(o.document(false))
	return errA == nil && errB == nil && bytes.Equal(a, b)
}
