package proxy

import (
	"context"
	"crypto/tls"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jelmer/ctrlproxy-sub000/config"
	"github.com/jelmer/ctrlproxy-sub000/data"
	"github.com/jelmer/ctrlproxy-sub000/dispatch"
	"github.com/jelmer/ctrlproxy-sub000/inet"
	"github.com/jelmer/ctrlproxy-sub000/irc"
	"github.com/jelmer/ctrlproxy-sub000/linestack"
	"github.com/jelmer/ctrlproxy-sub000/metrics"
	"github.com/jelmer/ctrlproxy-sub000/parse"
	"github.com/jelmer/ctrlproxy-sub000/redirect"
	log "gopkg.in/inconshreveable/log15.v2"
)

const (
	// proxyToken marks requests the proxy made itself, their replies are
	// kept from clients. Client ids start at 1.
	proxyToken = 0

	// queryTimeout is how long a request waits for its replies.
	queryTimeout = 5 * time.Minute

	disconnectReason = "Network disconnected"
)

// Network is the connection to one IRC network along with its state,
// history and the clients attached to it.
type Network struct {
	proxy   *Proxy
	name    string
	conf    *config.NetCtx
	log     log.Logger
	history *linestack.Linestack
	queries *redirect.Stack[uint64]

	conn atomic.Pointer[inet.Conn]

	// protect guards everything below and serializes the lines of a
	// network, hooks run with it held.
	protect    sync.Mutex
	state      *data.State
	registered bool
	nickvalue  int
	server     int
	clients    map[uint64]*Client
}

func newNetwork(p *Proxy, name string, conf *config.NetCtx) *Network {
	return &Network{
		proxy:   p,
		name:    name,
		conf:    conf,
		log:     p.log.New("network", name),
		queries: redirect.New[uint64](),
		clients: make(map[uint64]*Client),
	}
}

// Name of the network.
func (n *Network) Name() string {
	return n.name
}

// IsConnected is true once the proxy has registered with the server.
func (n *Network) IsConnected() bool {
	n.protect.Lock()
	defer n.protect.Unlock()
	return n.registered
}

// NumClients is the number of attached clients.
func (n *Network) NumClients() int {
	n.protect.Lock()
	defer n.protect.Unlock()
	return len(n.clients)
}

// UsingState calls fn with the live state when the network is connected.
// The returned boolean is whether or not the function was called.
func (n *Network) UsingState(fn func(*data.State)) bool {
	n.protect.Lock()
	defer n.protect.Unlock()
	if n.state == nil {
		return false
	}
	fn(n.state)
	return true
}

// History is the linestack of the network, nil when it keeps none.
func (n *Network) History() *linestack.Linestack {
	return n.history
}

// WriteLine sends l to the server as is, it bypasses hooks and history.
func (n *Network) WriteLine(l *irc.Line) error {
	c := n.conn.Load()
	if c == nil {
		return errNotConnected
	}
	return c.WriteLine(l)
}

// send is WriteLine for lines the proxy makes up, failures are logged.
func (n *Network) send(cmd string, args ...string) {
	if err := n.WriteLine(irc.NewLine("", cmd, args...)); err != nil {
		n.log.Debug("Write to server failed", "command", cmd, "err", err)
	}
}

// request sends a query whose replies no client asked for.
func (n *Network) request(cmd string, args ...string) {
	l := irc.NewLine("", cmd, args...)
	l.Direction = irc.ToServer
	n.queries.Record(proxyToken, l)
	n.send(cmd, args...)
}

// hookContext must be called with protect held.
func (n *Network) hookContext() *dispatch.HookContext {
	return &dispatch.HookContext{
		Network: n.name,
		State:   n.state,
		Server:  n,
		History: n.history,
		Log:     n.log,
	}
}

// run keeps the network connected until ctx is done or reconnecting is
// turned off. It returns why the network stopped.
func (n *Network) run(ctx context.Context) error {
	for {
		err := n.connect(ctx)
		if err == nil {
			err = n.serve(ctx)
			n.disconnected()
		} else {
			n.log.Warn("Failed to connect", "err", err)
		}

		if ctx.Err() != nil {
			return errNetworkKilled
		}
		if n.conf.NoReconnect() {
			if err == nil {
				err = errNotConnected
			}
			return err
		}

		wait := n.conf.ReconnectTimeout() / time.Second * n.proxy.reconnScale
		n.log.Info("Reconnecting", "in", wait)
		select {
		case <-ctx.Done():
			return errNetworkKilledReconn
		case <-time.After(wait):
		}
	}
}

// connect dials the next server and sends the login.
func (n *Network) connect(ctx context.Context) error {
	servers, _ := n.conf.Servers()
	if len(servers) == 0 {
		return errNotConnected
	}
	addr := servers[n.server%len(servers)]
	n.server++

	tlsOn, _ := n.conf.TLS()
	noVerify, _ := n.conf.NoVerifyCert()
	socks, _ := n.conf.SOCKS5()
	opts := inet.DialOptions{
		TLS:     tlsOn,
		SOCKS5:  socks,
		Timeout: dialTimeout,
	}
	if noVerify {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	n.log.Info("Connecting", "server", addr)
	conn, err := n.proxy.connProvider(ctx, addr, opts)
	if err != nil {
		return err
	}

	c := inet.NewConn(conn, inet.Options{
		Name:            n.name,
		FloodLenPenalty: int(n.conf.FloodLenPenalty()),
		FloodTimeout:    n.conf.FloodTimeout(),
		FloodStep:       n.conf.FloodStep(),
		Keepalive:       n.conf.KeepAlive(),
		Scale:           n.proxy.floodScale,
		Log:             n.log,
	})

	nick, _ := n.conf.Nick()
	username, _ := n.conf.Username()
	realname, _ := n.conf.Realname()

	n.protect.Lock()
	n.state = data.NewState(irc.NewNetworkInfo(), nick, username, "")
	n.state.SetLogger(n.log.New("component", "state"))
	n.registered = false
	n.nickvalue = 0
	n.queries.Clear()
	if n.history != nil {
		if err := n.history.Reset(n.state); err != nil {
			n.log.Warn("Unable to start a new history epoch", "err", err)
		}
	}
	n.conn.Store(c)
	n.protect.Unlock()

	c.Start()
	if pass, ok := n.conf.Password(); ok && len(pass) > 0 {
		n.send(irc.PASS, pass)
	}
	n.send(irc.NICK, nick)
	n.send(irc.USER, username, "0", "*", realname)
	return nil
}

// serve reads the server until it goes away or ctx is done.
func (n *Network) serve(ctx context.Context) error {
	c := n.conn.Load()
	lines := c.Lines()
	for {
		select {
		case raw, ok := <-lines:
			if !ok {
				if err := c.Err(); err != nil {
					n.log.Warn("Connection lost", "err", err)
				} else {
					n.log.Warn("Server closed the connection")
				}
				return nil
			}
			n.handleServerLine(raw)
		case <-ctx.Done():
			n.send(irc.QUIT, "Proxy shutting down")
			return ctx.Err()
		}
	}
}

// disconnected tells the clients the channels are gone and forgets the
// connection.
func (n *Network) disconnected() {
	n.protect.Lock()
	c := n.conn.Swap(nil)
	if st := n.state; st != nil && n.registered {
		me := st.Me()
		own := string(me.Hostmask())
		for _, cl := range n.clients {
			h := irc.Helper{Writer: cl}
			for _, ch := range st.Channels() {
				h.SendFrom(own, irc.PART, ch.Name, disconnectReason)
			}
			for _, nick := range st.Nicks() {
				if nick.Query && nick != me {
					h.SendFrom(string(nick.Hostmask()), irc.QUIT, disconnectReason)
				}
			}
		}
	}
	n.state = nil
	n.registered = false
	n.queries.Clear()
	n.protect.Unlock()

	if c != nil {
		c.Close()
	}
	n.log.Info("Disconnected")
}

// handleServerLine passes one line from the server through hooks, history
// and state before it goes to the clients.
func (n *Network) handleServerLine(raw []byte) {
	l, err := parse.ParseBytes(raw)
	if err != nil {
		metrics.ParseErrors.WithLabelValues(n.name).Inc()
		n.log.Warn("Dropping malformed line", "line", string(raw), "err", err)
		return
	}
	l.Time = time.Now()

	n.protect.Lock()
	defer n.protect.Unlock()

	if n.state == nil {
		return
	}

	ctx := n.hookContext()
	if !n.proxy.hooks.Server.Run(ctx, l) {
		return
	}

	if n.history != nil {
		if err := n.history.Insert(l, n.state); err != nil {
			n.log.Warn("Unable to store line", "err", err)
		}
	}
	if _, err := n.state.Update(l); err != nil {
		metrics.StateErrors.WithLabelValues(n.name).Inc()
		n.log.Debug("Unable to apply line to state", "line", l, "err", err)
	}

	if !n.handleCore(l) || !n.registered {
		return
	}
	if !n.proxy.hooks.Replication.Run(ctx, l) {
		return
	}
	n.route(l)
}

// handleCore deals with the lines that keep the connection going. It
// returns false for lines that must not reach clients.
func (n *Network) handleCore(l *irc.Line) bool {
	switch l.Command {
	case irc.PING:
		n.send(irc.PONG, l.Args...)
		n.queries.Expire(l.Time.Add(-queryTimeout))
		return false

	case irc.PONG:
		return false

	case irc.ERROR:
		n.log.Error("Server error", "msg", l.Message())
		return false

	case irc.ERR_NICKNAMEINUSE, irc.ERR_ERRONEUSNICKNAME:
		if n.registered {
			return true
		}
		nick := n.nextNick()
		n.log.Warn("Nick not accepted, trying another", "nick", nick)
		n.send(irc.NICK, nick)
		return false

	case irc.JOIN:
		if n.state.IsMe(l.Origin) && len(l.Args) > 0 {
			n.request(irc.WHO, l.Args[0])
			n.request(irc.MODE, l.Args[0])
		}

	case irc.RPL_ENDOFMOTD, irc.ERR_NOMOTD:
		if !n.registered {
			n.loggedIn()
			return false
		}
	}
	return true
}

// nextNick picks the nick to try after the last was refused: the altnick
// first, then the nick with more and more underscores.
func (n *Network) nextNick() string {
	nick, _ := n.conf.Nick()
	altnick, _ := n.conf.Altnick()
	if n.nickvalue == 0 && len(altnick) > 0 && altnick != nick {
		n.nickvalue++
		return altnick
	}
	if n.nickvalue == 0 {
		n.nickvalue++
	}
	nick += strings.Repeat("_", n.nickvalue)
	n.nickvalue++
	return nick
}

// loggedIn runs when the MOTD is over: attached clients are brought up to
// date and the channels are joined.
func (n *Network) loggedIn() {
	n.registered = true
	me := n.state.Me()
	n.log.Info("Successfully logged in", "nick", me.Name)

	for _, c := range n.clients {
		c.syncState(n.state)
	}

	n.request(irc.USERHOST, me.Name)
	for _, channel := range n.conf.Autojoin() {
		n.send(irc.JOIN, channel)
	}
}

// route sends l to the client that asked for it, or to everyone.
func (n *Network) route(l *irc.Line) {
	if token, ok := n.queries.MatchResponse(l); ok {
		if token == proxyToken {
			return
		}
		if c, ok := n.clients[token]; ok {
			c.WriteLine(l)
		}
		return
	}

	if l.Command != "" && l.Command[0] >= '0' && l.Command[0] <= '9' {
		switch redirect.Unclaimed(l.Command) {
		case redirect.RouteNone:
			return
		case redirect.RouteLogin:
			n.log.Error("Server refused login", "numeric", l.Command, "msg", l.Message())
			return
		}
	}

	n.broadcast(l, 0)
}

// broadcast writes l to every client except the one with id skip.
func (n *Network) broadcast(l *irc.Line, skip uint64) {
	if n.proxy.conf.ReportTime() == config.ReportTimeAlways {
		l = linestack.Stamp(l, n.conf.ReportTimeOffset(), nil)
	}
	for id, c := range n.clients {
		if id == skip {
			continue
		}
		c.noteNick(l)
		if err := c.WriteLine(l); err != nil {
			c.log.Debug("Write to client failed", "err", err)
		}
	}
}

// fromClient handles a line a client sent that the proxy does not answer
// itself. It returns false when the network is not connected.
func (n *Network) fromClient(c *Client, l *irc.Line) bool {
	n.protect.Lock()
	defer n.protect.Unlock()

	if !n.registered {
		return false
	}

	l.Origin = string(n.state.Me().Hostmask())
	l.Direction = irc.ToServer
	l.Time = time.Now()

	if !n.proxy.hooks.Server.Run(n.hookContext(), l) {
		return true
	}
	if n.history != nil {
		if err := n.history.Insert(l, n.state); err != nil {
			n.log.Warn("Unable to store line", "err", err)
		}
	}

	if l.IsMessage() {
		echo := l.Clone()
		echo.Direction = irc.FromServer
		n.broadcast(echo, c.id)
	}

	n.queries.Record(c.id, l)

	up := l.Clone()
	up.Origin = ""
	if err := n.WriteLine(up); err != nil {
		n.log.Debug("Write to server failed", "err", err)
	}
	return true
}

// attach runs the welcome, hooks and replication for a logged in client
// and adds it to the network. False means a hook refused it.
func (n *Network) attach(ctx context.Context, c *Client) bool {
	n.protect.Lock()
	defer n.protect.Unlock()

	c.welcome(n.state)

	if !n.proxy.hooks.Clients.New(n.hookContext(), c) {
		return false
	}

	// The whole backlog goes out under the lock, lines from the server wait
	// until it is done.
	c.replicate(ctx, n)

	n.clients[c.id] = c
	metrics.Clients.WithLabelValues(n.name).Inc()
	c.log.Info("New client")
	return true
}

// detach removes the client and forgets what it asked the server.
func (n *Network) detach(c *Client) {
	n.protect.Lock()
	defer n.protect.Unlock()

	if _, ok := n.clients[c.id]; !ok {
		return
	}
	delete(n.clients, c.id)
	metrics.Clients.WithLabelValues(n.name).Dec()
	n.queries.Forget(func(id uint64) bool { return id == c.id })
	n.proxy.hooks.Clients.Lose(n.hookContext(), c)
	c.log.Info("Client left")
}

// close releases the linestack.
func (n *Network) close() error {
	if n.history == nil {
		return nil
	}
	return n.history.Close()
}
