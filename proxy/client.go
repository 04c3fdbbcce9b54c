package proxy

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/jelmer/ctrlproxy-sub000/config"
	"github.com/jelmer/ctrlproxy-sub000/data"
	"github.com/jelmer/ctrlproxy-sub000/inet"
	"github.com/jelmer/ctrlproxy-sub000/irc"
	"github.com/jelmer/ctrlproxy-sub000/linestack"
	"github.com/jelmer/ctrlproxy-sub000/parse"
	"github.com/jelmer/ctrlproxy-sub000/repl"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	log "gopkg.in/inconshreveable/log15.v2"
)

const (
	// proxyName is the origin of numerics while no server name is known.
	proxyName = "ctrlproxy"
	// allModes is sent in 004 while the network didn't tell its modes.
	allModes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// loginTimeout is how long a client has to send NICK and USER.
	loginTimeout = time.Minute
	// isupportPerLine is how many tokens a 005 reply carries.
	isupportPerLine = 13
)

var (
	errLoginTimeout = errors.New("proxy: client did not log in in time")
	errClientQuit   = errors.New("proxy: client quit")
	errClientGone   = errors.New("proxy: client connection lost")
	errBadPassword  = errors.New("proxy: bad password")
	errNoNetwork    = errors.New("proxy: no network selected")
)

// Client is one connection of an IRC client to the proxy.
type Client struct {
	id    uint64
	proxy *Proxy
	conn  *inet.Conn
	log   log.Logger
	host  string

	username string
	realname string
	password string

	protect sync.Mutex
	nick    string
}

// ServeConn runs a client session on conn until the client leaves or ctx
// is done.
func (p *Proxy) ServeConn(ctx context.Context, conn net.Conn) {
	c := p.newClient(conn)
	c.conn.Start()
	defer c.conn.Close()

	n, err := c.login(ctx)
	if err != nil {
		c.log.Info("Client not logged in", "err", err)
		return
	}

	if !n.attach(ctx, c) {
		c.closeLink("Refused by client connect hook")
		return
	}
	defer n.detach(c)

	c.readLoop(ctx, n)
}

func (p *Proxy) newClient(conn net.Conn) *Client {
	id := p.clientIDs.Add(1)
	host := conn.RemoteAddr().String()
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	c := &Client{
		id:    id,
		proxy: p,
		host:  host,
		log:   p.log.New("client", id, "addr", conn.RemoteAddr()),
	}
	c.conn = inet.NewConn(conn, inet.Options{
		Name:      "client",
		Keepalive: p.clientKeepalive,
		Log:       c.log,
	})
	return c
}

// ID implements dispatch.Client.
func (c *Client) ID() uint64 {
	return c.id
}

// Nick is the nick the client believes it has.
func (c *Client) Nick() string {
	c.protect.Lock()
	defer c.protect.Unlock()
	return c.nick
}

func (c *Client) setNick(nick string) {
	c.protect.Lock()
	c.nick = nick
	c.protect.Unlock()
}

// Description names the client in logs.
func (c *Client) Description() string {
	return c.username + "@" + c.host
}

// WriteLine implements irc.Writer.
func (c *Client) WriteLine(l *irc.Line) error {
	return c.conn.WriteLine(l)
}

// noteNick follows our nick changes so Nick stays right.
func (c *Client) noteNick(l *irc.Line) {
	if l.Is(irc.NICK) && len(l.Args) > 0 && irc.Nick(l.Origin) == c.Nick() {
		c.setNick(l.Args[0])
	}
}

// helper writes numerics from origin, the server the client is on.
func (c *Client) helper(st *data.State) irc.Helper {
	origin := proxyName
	if st != nil && len(st.Info().ServerName()) > 0 {
		origin = st.Info().ServerName()
	}
	return irc.Helper{Writer: c, Origin: origin}
}

// closeLink says goodbye and makes sure the client got it.
func (c *Client) closeLink(reason string) {
	c.WriteLine(irc.NewLine("", irc.ERROR, "Closing Link: "+reason))
	c.conn.Flush()
}

// login reads until the client has sent NICK and USER, checks its password
// and finds the network it wants.
func (c *Client) login(ctx context.Context) (*Network, error) {
	timeout := time.After(loginTimeout)
	h := c.helper(nil)

	for len(c.Nick()) == 0 || len(c.realname) == 0 {
		var raw []byte
		var ok bool
		select {
		case raw, ok = <-c.conn.Lines():
			if !ok {
				return nil, errClientGone
			}
		case <-timeout:
			c.closeLink("Login timeout")
			return nil, errLoginTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		l, err := parse.ParseDirected(string(raw), irc.ToServer)
		if err != nil {
			continue
		}

		nick := c.Nick()
		if len(nick) == 0 {
			nick = "*"
		}
		switch l.Command {
		case irc.NICK:
			if len(l.Args) < 1 {
				h.SendResponse(nick, irc.ERR_NONICKNAMEGIVEN, "No nickname given")
				continue
			}
			c.setNick(l.Args[0])
		case irc.USER:
			if len(l.Args) < 4 {
				h.SendResponse(nick, irc.ERR_NEEDMOREPARAMS, irc.USER, "Not enough parameters")
				continue
			}
			c.username = l.Args[0]
			c.realname = l.Args[3]
		case irc.PASS:
			c.password = l.Arg(0)
		case irc.PING:
			h.SendArgs(irc.PONG, append([]string{proxyName}, l.Args...)...)
		case irc.CAP:
		case irc.QUIT:
			return nil, errClientQuit
		default:
			h.SendResponse(nick, irc.ERR_NOTREGISTERED, "Register first")
		}
	}

	user, network := splitUsername(c.username)
	c.username = user
	if !c.authenticate(user) {
		c.log.Warn("Client sent a bad password", "user", user)
		h.SendResponse(c.Nick(), irc.ERR_PASSWDMISMATCH, "Password incorrect")
		c.closeLink("Bad password")
		return nil, errBadPassword
	}

	n := c.proxy.pickNetwork(network)
	if n == nil {
		c.closeLink("Please select a network first, or specify one in your configuration file")
		return nil, errNoNetwork
	}
	c.log = c.log.New("network", n.name)
	return n, nil
}

// splitUsername splits "user/network" into its parts.
func splitUsername(username string) (user, network string) {
	if i := strings.IndexByte(username, '/'); i >= 0 {
		return username[:i], username[i+1:]
	}
	return username, ""
}

// authenticate checks the password the client gave. With user accounts
// configured the client must name one of them and match its masks,
// otherwise the listener password is checked if there is one.
func (c *Client) authenticate(user string) bool {
	if users := c.proxy.conf.Users(); len(users) > 0 {
		for _, u := range users {
			if u.Name == user {
				return checkPassword(u.Password, c.password) && c.matchesMasks(u)
			}
		}
		return false
	}

	if l, ok := c.proxy.conf.Listener(); ok {
		return checkPassword(l.Password, c.password)
	}
	return true
}

func (c *Client) matchesMasks(u config.User) bool {
	if len(u.Masks) == 0 {
		return true
	}
	host := irc.NewHost(c.Nick(), c.username, c.host)
	for _, m := range u.Masks {
		if irc.Mask(m).Match(host) {
			return true
		}
	}
	return false
}

// checkPassword compares pass with a bcrypt hash, an empty hash lets
// everyone in.
func checkPassword(hash, pass string) bool {
	if len(hash) == 0 {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass)) == nil
}

// pickNetwork finds the network called name, or the default one.
func (p *Proxy) pickNetwork(name string) *Network {
	if len(name) > 0 {
		return p.networks[name]
	}
	if l, ok := p.conf.Listener(); ok && len(l.DefaultNetwork) > 0 {
		return p.networks[l.DefaultNetwork]
	}
	if len(p.names) == 1 {
		return p.networks[p.names[0]]
	}
	return nil
}

// welcome sends the registration burst: 001 to 005 and the MOTD. st is the
// live state, nil while the network is disconnected.
func (c *Client) welcome(st *data.State) {
	h := c.helper(st)
	nick := c.Nick()

	info := irc.NewNetworkInfo()
	if st != nil {
		info = st.Info()
	}
	name := info.Name()
	if len(name) == 0 {
		name = h.Origin
	}
	usermodes, chanmodes := info.Usermodes(), info.LegacyChanmodes()
	if len(usermodes) == 0 {
		usermodes = allModes
	}
	if len(chanmodes) == 0 {
		chanmodes = allModes
	}

	h.SendResponse(nick, irc.RPL_WELCOME, "Welcome to the ctrlproxy")
	h.SendResponse(nick, irc.RPL_YOURHOST, "Host "+h.Origin+" is running ctrlproxy")
	h.SendResponse(nick, irc.RPL_CREATED, "Ctrlproxy "+Version)
	h.SendResponse(nick, irc.RPL_MYINFO, name, Version, usermodes, chanmodes)

	tokens := info.Tokens()
	for len(tokens) > 0 {
		count := isupportPerLine
		if count > len(tokens) {
			count = len(tokens)
		}
		args := append(tokens[:count:count], "are supported on this server")
		h.SendResponse(nick, irc.RPL_ISUPPORT, args...)
		tokens = tokens[count:]
	}

	h.SendResponse(nick, irc.ERR_NOMOTD, "No MOTD file")
}

// replicate brings the client up to date with the backend configured for
// the network. Must be called with the network's lock held.
func (c *Client) replicate(ctx context.Context, n *Network) {
	timed := n.proxy.conf.ReportTime() != config.ReportTimeNever
	t := &repl.Target{
		Network: n.name,
		Client:  c,
		State: repl.StateOptions{
			Origin:     c.helper(n.state).Origin,
			ClientNick: c.Nick(),
		},
		Live:    n.state,
		History: n.history,
		Send: linestack.SendOptions{
			Timed:      timed,
			TimeOffset: n.conf.ReportTimeOffset(),
		},
		Log: c.log,
	}
	if err := n.proxy.repl.Replicate(ctx, n.conf.Replication(), t); err != nil {
		c.log.Warn("Replication incomplete", "err", err)
	}
	if n.state != nil {
		c.setNick(n.state.Me().Name)
	}
}

// syncState sends the state to a client that was attached while the
// network was down.
func (c *Client) syncState(st *data.State) {
	opts := repl.StateOptions{Origin: c.helper(st).Origin, ClientNick: c.Nick()}
	if err := repl.SendState(c, st, opts); err != nil {
		c.log.Debug("Sending state failed", "err", err)
	}
	c.setNick(st.Me().Name)
}

// readLoop handles the lines of a logged in client.
func (c *Client) readLoop(ctx context.Context, n *Network) {
	for {
		var raw []byte
		var ok bool
		select {
		case raw, ok = <-c.conn.Lines():
			if !ok {
				return
			}
		case <-ctx.Done():
			c.closeLink("Proxy shutting down")
			return
		}

		l, err := parse.ParseDirected(string(raw), irc.ToServer)
		if err != nil {
			c.log.Debug("Dropping malformed line", "line", string(raw), "err", err)
			continue
		}
		if !c.handle(n, l) {
			return
		}
	}
}

// handle deals with one line, false means the client quit.
func (c *Client) handle(n *Network, l *irc.Line) bool {
	h := c.helper(nil)

	switch l.Command {
	case irc.QUIT:
		c.log.Info("Client exiting")
		return false
	case irc.PING:
		h.SendArgs(irc.PONG, append([]string{proxyName}, l.Args...)...)
	case irc.PONG:
		if len(l.Args) < 1 {
			h.SendResponse(c.Nick(), irc.ERR_NEEDMOREPARAMS, irc.PONG, "Not enough parameters")
		}
	case irc.USER, irc.PASS:
		h.SendResponse(c.Nick(), irc.ERR_ALREADYREGISTRED, "Please register only once per session")
	default:
		if !n.fromClient(c, l) {
			h.SendArgs(irc.NOTICE, c.Nick(), "Currently not connected to server...")
		}
	}
	return true
}
