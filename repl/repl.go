/*
Package repl decides what a client attaching to a network gets to see: the
current state of the network and, depending on the backend configured, the
history it missed.
*/
package repl

import (
	"context"
	"sort"
	"sync"

	"github.com/jelmer/ctrlproxy-sub000/data"
	"github.com/jelmer/ctrlproxy-sub000/dispatch"
	"github.com/jelmer/ctrlproxy-sub000/irc"
	"github.com/jelmer/ctrlproxy-sub000/linestack"
	"github.com/jelmer/ctrlproxy-sub000/metrics"
	"github.com/pkg/errors"
	log "gopkg.in/inconshreveable/log15.v2"
)

var (
	// ErrUnknownBackend is returned by Lookup for names nothing registered.
	ErrUnknownBackend = errors.New("repl: unknown replication backend")
)

// Target is one replication run: the client and what it can be sent.
type Target struct {
	Network string
	// Client receives the state and history.
	Client irc.Writer
	// State describes the client.
	State StateOptions
	// Live is the current state of the network. It is only read.
	Live *data.State
	// History is the network's linestack, nil when it keeps none.
	History *linestack.Linestack
	// Send are the options history is replayed with.
	Send linestack.SendOptions
	Log  log.Logger

	stateSent bool
}

func (t *Target) logger() log.Logger {
	if t.Log != nil {
		return t.Log
	}
	l := log.New()
	l.SetHandler(log.DiscardHandler())
	return l
}

// sendState sends st and remembers that the client has a state.
func (t *Target) sendState(st *data.State) error {
	if st == nil {
		return nil
	}
	t.stateSent = true
	return SendState(t.Client, st, t.State)
}

// Backend is a replication policy.
type Backend interface {
	Name() string
	Replicate(ctx context.Context, t *Target) error
}

// Installer is implemented by backends that need to watch the network
// between replications.
type Installer interface {
	Install(h *dispatch.Hooks)
}

// Registry holds the known backends.
type Registry struct {
	mut      sync.RWMutex
	backends map[string]Backend
	log      log.Logger
}

// NewRegistry creates a registry holding the none backend.
func NewRegistry(logger log.Logger) *Registry {
	if logger == nil {
		logger = log.New()
		logger.SetHandler(log.DiscardHandler())
	}
	r := &Registry{
		backends: make(map[string]Backend),
		log:      logger,
	}
	r.Register(None{})
	return r
}

// NewDefaultRegistry creates a registry with every built-in backend.
// Highlight replays messages containing one of matches.
func NewDefaultRegistry(logger log.Logger, store MarkerStore, matches []string) *Registry {
	r := NewRegistry(logger)
	r.Register(NewSimple(store))
	r.Register(NewLastDisconnect(store))
	r.Register(NewHighlight(store, matches))
	return r
}

// Register adds a backend, replacing one of the same name.
func (r *Registry) Register(b Backend) {
	r.mut.Lock()
	r.backends[b.Name()] = b
	r.mut.Unlock()
}

// Names lists the registered backends.
func (r *Registry) Names() []string {
	r.mut.RLock()
	defer r.mut.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the backend called name, the none backend for an empty
// name.
func (r *Registry) Lookup(name string) (Backend, error) {
	if len(name) == 0 {
		name = NoneName
	}
	r.mut.RLock()
	b, ok := r.backends[name]
	r.mut.RUnlock()
	if !ok {
		return nil, errors.Wrap(ErrUnknownBackend, name)
	}
	return b, nil
}

// Find is Lookup falling back to the none backend.
func (r *Registry) Find(name string) Backend {
	b, err := r.Lookup(name)
	if err != nil {
		r.log.Warn("Unable to find replication backend", "backend", name)
		return None{}
	}
	return b
}

// Install lets every backend that watches the network register its hooks.
func (r *Registry) Install(h *dispatch.Hooks) {
	r.mut.RLock()
	defer r.mut.RUnlock()
	for _, name := range sortedKeys(r.backends) {
		if i, ok := r.backends[name].(Installer); ok {
			i.Install(h)
		}
	}
}

func sortedKeys(m map[string]Backend) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Replicate runs the backend called name against t. Without a linestack
// only the live state is sent. When the backend fails before the client got
// any state, the live state is sent after all; the error is returned either
// way.
func (r *Registry) Replicate(ctx context.Context, name string, t *Target) error {
	b := r.Find(name)
	if t.History == nil {
		b = None{}
	}

	err := b.Replicate(ctx, t)
	if err == nil {
		metrics.Replications.WithLabelValues(b.Name(), "ok").Inc()
		return nil
	}

	metrics.Replications.WithLabelValues(b.Name(), "failed").Inc()
	t.logger().Warn("Replication failed", "backend", b.Name(), "err", err)
	if !t.stateSent && errors.Cause(err) != context.Canceled {
		if serr := t.sendState(t.Live); serr != nil {
			t.logger().Warn("Sending live state failed", "err", serr)
		}
	}
	return err
}

// marker turns a stored position back into a marker, nil when there is no
// usable one.
func marker(t *Target, store MarkerStore, backend string) (*linestack.Marker, error) {
	pos, ok, err := store.Get(t.Network, backend)
	if err != nil || !ok {
		return nil, err
	}
	if epoch := t.History.Epoch(); pos < epoch {
		t.logger().Debug("Stored marker is from an earlier connection", "backend", backend, "pos", pos)
		pos = epoch
	}
	m, err := t.History.MarkerAt(pos)
	if err != nil {
		t.logger().Warn("Stored marker no longer valid", "backend", backend, "pos", pos)
		return nil, nil
	}
	return m, nil
}

// replay sends the state as of m followed by the history since m.
func replay(ctx context.Context, t *Target, m *linestack.Marker) error {
	st, err := t.History.State(ctx, m)
	if err != nil {
		return err
	}
	if err = t.sendState(st); err != nil {
		return err
	}
	return t.History.Send(ctx, m, nil, t.Client, t.Send)
}
