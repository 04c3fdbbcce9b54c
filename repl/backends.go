package repl

import (
	"context"
	"strings"

	"github.com/jelmer/ctrlproxy-sub000/dispatch"
	"github.com/jelmer/ctrlproxy-sub000/irc"
)

// Names of the built-in backends, as used in the replication option.
const (
	NoneName           = "none"
	SimpleName         = "simple"
	LastDisconnectName = "lastdisconnect"
	HighlightName      = "highlight"
)

// None sends the live state and no history.
type None struct{}

// Name implements Backend.
func (None) Name() string { return NoneName }

// Replicate implements Backend.
func (None) Replicate(ctx context.Context, t *Target) error {
	return t.sendState(t.Live)
}

// Simple replays everything since the last message a client sent to the
// network. Without such a message the attach itself becomes the mark, so
// the first client gets no history and later ones get what came since.
type Simple struct {
	store MarkerStore
}

// NewSimple creates the backend.
func NewSimple(store MarkerStore) *Simple {
	return &Simple{store: store}
}

// Name implements Backend.
func (s *Simple) Name() string { return SimpleName }

// Install registers the filter that moves the mark on outgoing messages.
func (s *Simple) Install(h *dispatch.Hooks) {
	h.Server.Register("repl_simple", 200, s.filter)
}

func (s *Simple) filter(ctx *dispatch.HookContext, l *irc.Line) bool {
	if l.Direction != irc.ToServer || !l.IsMessage() || ctx.History == nil {
		return true
	}
	m := ctx.History.Marker()
	defer ctx.History.Free(m)
	if err := s.store.Set(ctx.Network, SimpleName, m.Pos()); err != nil {
		ctx.Logger().Warn("Storing marker failed", "backend", SimpleName, "err", err)
	}
	return true
}

// Replicate implements Backend.
func (s *Simple) Replicate(ctx context.Context, t *Target) error {
	m, err := marker(t, s.store, SimpleName)
	if err != nil {
		return err
	}
	if m == nil {
		m = t.History.Marker()
		if err = s.store.Set(t.Network, SimpleName, m.Pos()); err != nil {
			t.logger().Warn("Storing marker failed", "backend", SimpleName, "err", err)
		}
	}
	defer t.History.Free(m)
	return replay(ctx, t, m)
}

// LastDisconnect replays everything since a client last left the network.
// Until one has, it only sends the live state.
type LastDisconnect struct {
	store MarkerStore
}

// NewLastDisconnect creates the backend.
func NewLastDisconnect(store MarkerStore) *LastDisconnect {
	return &LastDisconnect{store: store}
}

// Name implements Backend.
func (b *LastDisconnect) Name() string { return LastDisconnectName }

// Install registers the hook marking departing clients.
func (b *LastDisconnect) Install(h *dispatch.Hooks) {
	h.Clients.OnLose("repl_lastdisconnect", 0, b.lose)
}

func (b *LastDisconnect) lose(ctx *dispatch.HookContext, c dispatch.Client) {
	if ctx.History == nil {
		return
	}
	m := ctx.History.Marker()
	defer ctx.History.Free(m)
	if err := b.store.Set(ctx.Network, LastDisconnectName, m.Pos()); err != nil {
		ctx.Logger().Warn("Storing marker failed", "backend", LastDisconnectName, "err", err)
	}
}

// Replicate implements Backend.
func (b *LastDisconnect) Replicate(ctx context.Context, t *Target) error {
	m, err := marker(t, b.store, LastDisconnectName)
	if err != nil {
		return err
	}
	if m == nil {
		return t.sendState(t.Live)
	}
	defer t.History.Free(m)
	return replay(ctx, t, m)
}

// Highlight sends the live state and the messages since its last run that
// contain one of its match strings. The first run looks at the whole
// history.
type Highlight struct {
	store   MarkerStore
	matches []string
}

// NewHighlight creates the backend. Matching is case sensitive.
func NewHighlight(store MarkerStore, matches []string) *Highlight {
	m := make([]string, 0, len(matches))
	for _, s := range matches {
		if len(s) > 0 {
			m = append(m, s)
		}
	}
	return &Highlight{store: store, matches: m}
}

// Name implements Backend.
func (h *Highlight) Name() string { return HighlightName }

// Matches reports whether l is a message containing a match string.
func (h *Highlight) Matches(l *irc.Line) bool {
	if !l.IsMessage() || len(l.Args) < 2 {
		return false
	}
	msg := l.Message()
	for _, s := range h.matches {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Replicate implements Backend.
func (h *Highlight) Replicate(ctx context.Context, t *Target) error {
	if err := t.sendState(t.Live); err != nil {
		return err
	}

	from, err := marker(t, h.store, HighlightName)
	if err != nil {
		return err
	}
	if from != nil {
		defer t.History.Free(from)
	}
	to := t.History.Marker()
	defer t.History.Free(to)

	err = t.History.Traverse(ctx, from, to, func(l *irc.Line) error {
		if h.Matches(l) {
			return t.Client.WriteLine(l)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return h.store.Set(t.Network, HighlightName, to.Pos())
}
