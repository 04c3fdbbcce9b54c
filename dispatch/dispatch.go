/*
Package dispatch holds the ordered hook lists the proxy calls out to: filters
that see every line passing through a network and callbacks for clients
coming and going. Hooks are registered on a value owned by the proxy and get
everything they need passed in a HookContext.
*/
package dispatch

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/jelmer/ctrlproxy-sub000/data"
	"github.com/jelmer/ctrlproxy-sub000/irc"
	"github.com/jelmer/ctrlproxy-sub000/linestack"
	"github.com/pkg/errors"
	log "gopkg.in/inconshreveable/log15.v2"
)

// HookContext is handed to every hook.
type HookContext struct {
	// Network is the name of the network the hook runs for.
	Network string
	// State is the live state of the network, nil while disconnected.
	State *data.State
	// Server writes lines to the network.
	Server irc.Writer
	// History is the network's linestack, nil when it keeps none.
	History *linestack.Linestack
	// Log is the network's logger.
	Log log.Logger
}

// Logger returns the context's logger, a discarding one when it has none.
func (c *HookContext) Logger() log.Logger {
	if c != nil && c.Log != nil {
		return c.Log
	}
	l := log.New()
	l.SetHandler(log.DiscardHandler())
	return l
}

type hook[F any] struct {
	id       uint64
	name     string
	priority int
	fn       F
}

// list is a priority ordered list of hooks, hooks of equal priority keep
// the order they were registered in. Lower priorities run first.
type list[F any] struct {
	mut   sync.RWMutex
	hooks []hook[F]
}

func (l *list[F]) register(id uint64, name string, priority int, fn F) uint64 {
	l.mut.Lock()
	defer l.mut.Unlock()

	h := hook[F]{id: id, name: name, priority: priority, fn: fn}
	i := sort.Search(len(l.hooks), func(i int) bool {
		return l.hooks[i].priority > priority
	})
	l.hooks = append(l.hooks, hook[F]{})
	copy(l.hooks[i+1:], l.hooks[i:])
	l.hooks[i] = h
	return h.id
}

func (l *list[F]) unregister(id uint64) bool {
	l.mut.Lock()
	defer l.mut.Unlock()

	for i, h := range l.hooks {
		if h.id == id {
			l.hooks = append(l.hooks[:i], l.hooks[i+1:]...)
			return true
		}
	}
	return false
}

// snapshot copies the hooks so that they run without the lock held and may
// register or unregister hooks themselves.
func (l *list[F]) snapshot() []hook[F] {
	l.mut.RLock()
	defer l.mut.RUnlock()
	out := make([]hook[F], len(l.hooks))
	copy(out, l.hooks)
	return out
}

func (l *list[F]) names() []string {
	l.mut.RLock()
	defer l.mut.RUnlock()
	out := make([]string, len(l.hooks))
	for i, h := range l.hooks {
		out[i] = h.name
	}
	return out
}

// call runs fn, turning a panic into an error.
func call(name string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("dispatch: hook %s panicked: %v", name, r)
		}
	}()
	fn()
	return nil
}

// FilterFunc inspects a line. Returning false stops the line: later filters
// do not see it and the proxy drops it.
type FilterFunc func(ctx *HookContext, l *irc.Line) bool

// Filters is an ordered list of line filters.
type Filters struct {
	ids  atomic.Uint64
	list list[FilterFunc]
}

// NewFilters creates an empty filter list.
func NewFilters() *Filters {
	return &Filters{}
}

// Register adds a filter and returns the id to pass to Unregister.
func (f *Filters) Register(name string, priority int, fn FilterFunc) uint64 {
	return f.list.register(f.ids.Add(1), name, priority, fn)
}

// Unregister removes a filter, false if it was not registered.
func (f *Filters) Unregister(id uint64) bool {
	return f.list.unregister(id)
}

// Names lists the filters in the order they run.
func (f *Filters) Names() []string {
	return f.list.names()
}

// Run passes the line through the filters in order and reports whether it
// made it through all of them. A filter that panics is logged and skipped.
func (f *Filters) Run(ctx *HookContext, l *irc.Line) bool {
	for _, h := range f.list.snapshot() {
		pass := true
		err := call(h.name, func() { pass = h.fn(ctx, l) })
		if err != nil {
			ctx.Logger().Error("Filter failed", "filter", h.name, "err", err)
			continue
		}
		if !pass {
			ctx.Logger().Debug("Line stopped", "filter", h.name, "command", l.Command)
			return false
		}
	}
	return true
}

// Client is what client hooks get to see of a client session.
type Client interface {
	irc.Writer
	// ID is unique among the clients of the proxy.
	ID() uint64
	// Nick is the nick the client believes it has.
	Nick() string
	// Description names the client in logs, usually its address.
	Description() string
}

// NewClientFunc is called when a client attached. Returning false refuses
// the client.
type NewClientFunc func(ctx *HookContext, c Client) bool

// LoseClientFunc is called when a client went away.
type LoseClientFunc func(ctx *HookContext, c Client)

// ClientHooks holds the callbacks for clients attaching and detaching.
type ClientHooks struct {
	ids   atomic.Uint64
	added list[NewClientFunc]
	lost  list[LoseClientFunc]
}

// NewClientHooks creates empty client hook lists.
func NewClientHooks() *ClientHooks {
	return &ClientHooks{}
}

// OnNew registers a callback for attaching clients.
func (c *ClientHooks) OnNew(name string, priority int, fn NewClientFunc) uint64 {
	return c.added.register(c.ids.Add(1), name, priority, fn)
}

// OnLose registers a callback for detached clients.
func (c *ClientHooks) OnLose(name string, priority int, fn LoseClientFunc) uint64 {
	return c.lost.register(c.ids.Add(1), name, priority, fn)
}

// Unregister removes a callback of either kind.
func (c *ClientHooks) Unregister(id uint64) bool {
	return c.added.unregister(id) || c.lost.unregister(id)
}

// New runs the attach callbacks, stopping at the first that refuses the
// client.
func (c *ClientHooks) New(ctx *HookContext, cl Client) bool {
	for _, h := range c.added.snapshot() {
		accept := true
		err := call(h.name, func() { accept = h.fn(ctx, cl) })
		if err != nil {
			ctx.Logger().Error("Client hook failed", "hook", h.name, "err", err)
			continue
		}
		if !accept {
			ctx.Logger().Info("Client refused", "hook", h.name, "client", cl.Description())
			return false
		}
	}
	return true
}

// Lose runs the detach callbacks.
func (c *ClientHooks) Lose(ctx *HookContext, cl Client) {
	for _, h := range c.lost.snapshot() {
		err := call(h.name, func() { h.fn(ctx, cl) })
		if err != nil {
			ctx.Logger().Error("Client hook failed", "hook", h.name, "err", err)
		}
	}
}

// Hooks bundles the hook lists of a proxy.
type Hooks struct {
	// Server sees lines from the network before the state is updated, and
	// lines from clients before they are sent upstream.
	Server *Filters
	// Replication sees lines from the network after the state was updated,
	// before clients get them.
	Replication *Filters
	// Clients are the attach and detach callbacks.
	Clients *ClientHooks
}

// NewHooks creates empty hook lists.
func NewHooks() *Hooks {
	return &Hooks{
		Server:      NewFilters(),
		Replication: NewFilters(),
		Clients:     NewClientHooks(),
	}
}
