/*
Package proxy joins the other packages into a running proxy. It keeps one
connection per configured network alive, listens for clients and passes
lines between the two sides, keeping the history and state of every
network as it goes.
*/
package proxy

import (
	"context"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jelmer/ctrlproxy-sub000/config"
	"github.com/jelmer/ctrlproxy-sub000/dispatch"
	"github.com/jelmer/ctrlproxy-sub000/inet"
	"github.com/jelmer/ctrlproxy-sub000/linestack"
	"github.com/jelmer/ctrlproxy-sub000/metrics"
	"github.com/jelmer/ctrlproxy-sub000/repl"
	"github.com/pkg/errors"
	log "gopkg.in/inconshreveable/log15.v2"
)

const (
	// Version is reported to clients in the welcome burst.
	Version = "ctrlproxy-3.0-go"

	// defaultReconnScale is how the config's reconnecttimeout is scaled.
	defaultReconnScale = time.Second
	// dialTimeout bounds connecting to a server, proxies and TLS included.
	dialTimeout = 30 * time.Second
)

var (
	// errInvalidConfig is when New was given an invalid configuration.
	errInvalidConfig = errors.New("proxy: invalid configuration")
	// errNetworkKilled occurs when the network is stopped while connected.
	errNetworkKilled = errors.New("proxy: network killed")
	// errNetworkKilledReconn occurs when the network is stopped during a
	// reconnection pause.
	errNetworkKilledReconn = errors.New("proxy: network reconnection aborted")
	// errNotConnected happens when a write occurs to a disconnected network.
	errNotConnected = errors.New("proxy: network not connected")
	// errAlreadyStarted is returned by a second Start.
	errAlreadyStarted = errors.New("proxy: already started")
)

// ConnProvider opens the connection to a "server:port" address.
type ConnProvider func(ctx context.Context, addr string, opts inet.DialOptions) (net.Conn, error)

// Proxy owns the networks and the clients attached to them.
type Proxy struct {
	conf  *config.Config
	log   log.Logger
	hooks *dispatch.Hooks
	repl  *repl.Registry
	store repl.MarkerStore

	networks map[string]*Network
	names    []string

	// IoC components mostly for testing.
	connProvider    ConnProvider
	reconnScale     time.Duration
	floodScale      time.Duration
	clientKeepalive time.Duration

	clientIDs atomic.Uint64

	protect   sync.Mutex
	cancel    context.CancelFunc
	listener  net.Listener
	networkWG sync.WaitGroup
	clientWG  sync.WaitGroup
}

// New validates conf and creates a proxy from it.
func New(conf *config.Config, logger log.Logger) (*Proxy, error) {
	if logger == nil {
		logger = log.Root()
	}
	if errs := conf.Validate(); len(errs) > 0 {
		conf.DisplayErrors(logger)
		return nil, errInvalidConfig
	}
	return createProxy(conf, logger, nil)
}

// createProxy creates a proxy from the given configuration, using the
// provider given to create server connections.
func createProxy(conf *config.Config, logger log.Logger, connProv ConnProvider) (*Proxy, error) {
	if logger == nil {
		logger = log.New()
		logger.SetHandler(log.DiscardHandler())
	}

	p := &Proxy{
		conf:            conf,
		log:             logger,
		hooks:           dispatch.NewHooks(),
		networks:        make(map[string]*Network),
		connProvider:    connProv,
		reconnScale:     defaultReconnScale,
		clientKeepalive: conf.Network("").KeepAlive(),
	}
	if p.connProvider == nil {
		p.connProvider = inet.Dial
	}

	var err error
	if path := conf.MarkerDB(); len(path) > 0 {
		if p.store, err = repl.OpenBuntStore(path); err != nil {
			return nil, err
		}
	} else {
		p.store = repl.NewMemoryStore()
	}

	p.repl = repl.NewDefaultRegistry(logger.New("component", "repl"), p.store, conf.Match())
	p.repl.Install(p.hooks)

	for _, name := range conf.Networks() {
		p.networks[name] = p.createNetwork(name)
		p.names = append(p.names, name)
	}

	return p, nil
}

// createNetwork sets up a network and opens its linestack. A network whose
// linestack can't be opened runs without history.
func (p *Proxy) createNetwork(name string) *Network {
	netConf := p.conf.Network(name)
	n := newNetwork(p, name, netConf)

	ls, err := linestack.Open(p.conf.Linestack(), linestack.Options{
		Dir:              filepath.Join(p.conf.StateDir(), name),
		Sync:             p.conf.LinestackSync(),
		SnapshotInterval: int(netConf.SnapshotInterval()),
		Log:              n.log.New("component", "linestack"),
	})
	if err != nil {
		n.log.Error("Unable to open linestack, history is disabled", "err", err)
	} else {
		n.history = ls
	}
	return n
}

// Start runs the proxy. Every time a network stops permanently its error is
// sent on the returned channel. The channel is closed once no network is
// left running.
func (p *Proxy) Start(ctx context.Context) (<-chan error, error) {
	p.protect.Lock()
	defer p.protect.Unlock()

	if p.cancel != nil {
		return nil, errAlreadyStarted
	}
	ctx, p.cancel = context.WithCancel(ctx)

	if l, ok := p.conf.Listener(); ok {
		ln, err := net.Listen("tcp", l.Listen)
		if err != nil {
			p.cancel()
			return nil, errors.Wrapf(err, "proxy: listen on %s", l.Listen)
		}
		p.listener = ln
		p.log.Info("Listening for clients", "addr", ln.Addr())
		go p.acceptLoop(ctx, ln)
	}

	if addr := p.conf.MetricsListen(); len(addr) > 0 {
		go func() {
			if err := metrics.Serve(ctx, addr); err != nil {
				p.log.Error("Metrics server stopped", "err", err)
			}
		}()
	}

	end := make(chan error, len(p.names))
	for _, name := range p.names {
		n := p.networks[name]
		p.networkWG.Add(1)
		go func() {
			defer p.networkWG.Done()
			end <- n.run(ctx)
		}()
	}
	go func() {
		p.networkWG.Wait()
		close(end)
	}()

	return end, nil
}

// Stop disconnects every network and client and waits for them to finish.
func (p *Proxy) Stop() {
	p.protect.Lock()
	cancel, ln := p.cancel, p.listener
	p.listener = nil
	p.protect.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if ln != nil {
		ln.Close()
	}

	p.networkWG.Wait()
	p.clientWG.Wait()
}

// Close releases the linestacks and the marker store. The proxy must be
// stopped.
func (p *Proxy) Close() error {
	var first error
	for _, name := range p.names {
		if err := p.networks[name].close(); err != nil && first == nil {
			first = err
		}
	}
	if err := p.store.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Network returns the network called name, nil if there is none.
func (p *Proxy) Network(name string) *Network {
	return p.networks[name]
}

// Networks returns the networks sorted by name.
func (p *Proxy) Networks() []*Network {
	nets := make([]*Network, len(p.names))
	for i, name := range p.names {
		nets[i] = p.networks[name]
	}
	return nets
}

// Hooks returns the hook lists, registering on them is safe while running.
func (p *Proxy) Hooks() *dispatch.Hooks {
	return p.hooks
}

// Replication returns the registry of replication backends.
func (p *Proxy) Replication() *repl.Registry {
	return p.repl
}
