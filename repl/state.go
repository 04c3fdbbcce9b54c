package repl

import (
	"strconv"

	"github.com/jelmer/ctrlproxy-sub000/data"
	"github.com/jelmer/ctrlproxy-sub000/irc"
)

// StateOptions describe the client a state is sent to.
type StateOptions struct {
	// Origin is the server name numerics are sent from.
	Origin string
	// ClientNick is the nick the client currently uses, empty when it has
	// none yet. A NICK is sent first when it differs from the state's.
	ClientNick string
}

// SendState makes a client's view match st: a NICK when the client's nick
// differs, then for every channel a JOIN, the topic and the names, and last
// the user modes.
func SendState(w irc.Writer, st *data.State, opts StateOptions) error {
	me := st.Me()
	h := irc.Helper{Writer: w, Origin: opts.Origin}

	if len(opts.ClientNick) > 0 && !st.Info().Equal(opts.ClientNick, me.Name) {
		old := irc.NewHost(opts.ClientNick, me.Username, me.Hostname)
		if err := h.SendFrom(string(old), irc.NICK, me.Name); err != nil {
			return err
		}
	}

	own := string(me.Hostmask())
	for _, c := range st.Channels() {
		// Names and ban lists create channels we are not on.
		if st.Membership(c, me) == nil {
			continue
		}
		if err := sendChannel(h, st, own, me.Name, c); err != nil {
			return err
		}
	}

	if modes := me.Modes.String(); len(modes) > 0 {
		return h.SendFrom(me.Name, irc.MODE, me.Name, "+"+modes)
	}
	return nil
}

func sendChannel(h irc.Helper, st *data.State, own, nick string, c *data.Channel) error {
	if err := h.SendFrom(own, irc.JOIN, c.Name); err != nil {
		return err
	}

	if c.HasTopic && len(c.Topic) > 0 {
		if err := h.SendResponse(nick, irc.RPL_TOPIC, c.Name, c.Topic); err != nil {
			return err
		}
	}
	if c.TopicSetTime != 0 && len(c.TopicSetBy) > 0 {
		err := h.SendResponse(nick, irc.RPL_TOPICWHOTIME, c.Name, c.TopicSetBy,
			strconv.FormatInt(c.TopicSetTime, 10))
		if err != nil {
			return err
		}
	}

	chanType := ""
	if c.Type != 0 {
		chanType = string(c.Type)
	}
	return h.SendNames(nick, chanType, c.Name, st.Names(c))
}
