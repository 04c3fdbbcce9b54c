/*
Package linestack keeps the history of a network: every line that passed
through the proxy and, every so often, a snapshot of the network state.
Markers point into the history, the state as of a marker is rebuilt from the
snapshot before it and the lines in between.

A Linestack has one writer, the goroutine running the network, and any
number of readers replaying history to clients.
*/
package linestack

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jelmer/ctrlproxy-sub000/data"
	"github.com/jelmer/ctrlproxy-sub000/irc"
	"github.com/jelmer/ctrlproxy-sub000/metrics"
	"github.com/jelmer/ctrlproxy-sub000/parse"
	"github.com/pkg/errors"
	log "gopkg.in/inconshreveable/log15.v2"
)

const (
	// DefaultSnapshotInterval is the number of lines between snapshots.
	DefaultSnapshotInterval = 1000
)

var (
	// ErrForeignMarker is returned for markers of another linestack.
	ErrForeignMarker = errors.New("linestack: marker belongs to another linestack")
	// ErrFreedMarker is returned for markers that were already freed.
	ErrFreedMarker = errors.New("linestack: marker was freed")
	// ErrBadMarker is returned by MarkerAt for positions outside the store.
	ErrBadMarker = errors.New("linestack: position outside of linestack")
)

// Options configure a linestack and its backend.
type Options struct {
	// Dir holds the backend files. The kv backend stays in memory without.
	Dir string
	// Sync flushes every append to disk before it is acknowledged.
	Sync bool
	// SnapshotInterval is the number of lines between snapshots.
	SnapshotInterval int
	// Info compares object names in TraverseObject.
	Info *irc.NetworkInfo
	// Log receives warnings, nil discards them.
	Log log.Logger
}

func (o Options) logger() log.Logger {
	if o.Log != nil {
		return o.Log
	}
	l := log.New()
	l.SetHandler(log.DiscardHandler())
	return l
}

// Marker is a position in a linestack. Markers are handed out by one
// linestack and must be given back with Free.
type Marker struct {
	ls  *Linestack
	pos int64
}

// Pos returns the backend position, which can be stored and turned back
// into a marker with MarkerAt.
func (m *Marker) Pos() int64 {
	return m.pos
}

// Linestack is the history of one network.
type Linestack struct {
	backend  Backend
	interval int
	info     *irc.NetworkInfo
	log      log.Logger

	wmu           sync.Mutex
	hasSnapshot   bool
	sinceSnapshot int
	epoch         atomic.Int64

	mmu     sync.Mutex
	markers map[*Marker]struct{}
}

// New wraps an open backend.
func New(b Backend, opts Options) *Linestack {
	ls := &Linestack{
		backend:  b,
		interval: opts.SnapshotInterval,
		info:     opts.Info,
		log:      opts.logger(),
		markers:  make(map[*Marker]struct{}),
	}
	if ls.interval <= 0 {
		ls.interval = DefaultSnapshotInterval
	}
	if ls.info == nil {
		ls.info = irc.NewNetworkInfo()
	}

	// Whatever is on disk belongs to an earlier session, the first insert
	// of this one needs its own snapshot.
	ls.epoch.Store(b.End())
	return ls
}

// Reset starts a new epoch, for a new connection to the network. st is
// written as a snapshot right away, a nil st postpones it to the next
// insert. Lines from before the epoch never contribute to a state rebuilt
// after it.
func (ls *Linestack) Reset(st *data.State) error {
	ls.wmu.Lock()
	defer ls.wmu.Unlock()

	// Until a snapshot is written the next insert has to write one.
	ls.hasSnapshot = false
	ls.epoch.Store(ls.backend.End())
	if st == nil {
		return nil
	}

	doc, err := st.Marshal()
	if err != nil {
		return err
	}
	if _, err = ls.backend.Append(Record{Kind: KindSnapshot, Time: time.Now(), Data: doc}); err != nil {
		ls.log.Error("Linestack append failed", "err", err)
		return err
	}
	ls.hasSnapshot = true
	ls.sinceSnapshot = 0
	metrics.Records.WithLabelValues("snapshot").Inc()
	return nil
}

// Epoch is the position the current epoch starts at. Markers before it
// point into a previous connection.
func (ls *Linestack) Epoch() int64 {
	return ls.epoch.Load()
}

// Recorded reports whether Insert keeps l. Lines a client sent are kept
// when they are messages to someone other than services, lines from the
// server unless they only keep the connection alive.
func (ls *Linestack) Recorded(l *irc.Line) bool {
	if l.Direction == irc.ToServer {
		if !l.IsMessage() {
			return false
		}
		if !plainOrAction(l) {
			return false
		}
		for _, svc := range services {
			if ls.info.Equal(l.Arg(0), svc) {
				return false
			}
		}
		return true
	}
	switch l.Command {
	case irc.PING, irc.PONG:
		return false
	}
	return true
}

var services = []string{"NickServ", "ChanServ"}

// plainOrAction is false for CTCP requests and replies other than ACTION.
func plainOrAction(l *irc.Line) bool {
	if !l.IsCTCP() {
		return true
	}
	tag, _ := l.UnpackCTCP()
	return tag == "ACTION"
}

// replayed are the commands Send gives back to clients.
var replayed = map[string]bool{
	irc.NICK:              true,
	irc.JOIN:              true,
	irc.QUIT:              true,
	irc.PART:              true,
	irc.PRIVMSG:           true,
	irc.NOTICE:            true,
	irc.KICK:              true,
	irc.MODE:              true,
	irc.TOPIC:             true,
	irc.RPL_NAMREPLY:      true,
	irc.RPL_ENDOFNAMES:    true,
	irc.RPL_NOTOPIC:       true,
	irc.RPL_TOPICWHOTIME:  true,
	irc.RPL_TOPIC:         true,
	irc.RPL_CHANNELMODEIS: true,
	irc.RPL_CREATIONTIME:  true,
}

// Insert appends a line. st is the state before the line is applied; it is
// written as a snapshot ahead of the line on the first insert of an epoch
// and after every SnapshotInterval lines. st may be nil once a snapshot
// exists, the snapshot is then postponed. Lines that are not Recorded are
// dropped. A failed insert leaves the linestack as it was.
func (ls *Linestack) Insert(l *irc.Line, st *data.State) error {
	if l == nil {
		return errors.New("linestack: nil line")
	}
	if !ls.Recorded(l) {
		return nil
	}
	raw, err := l.Serialize()
	if err != nil {
		return errors.Wrap(err, "linestack: insert")
	}
	raw = strings.TrimSuffix(raw, "\r\n")

	t := l.Time
	if t.IsZero() {
		t = time.Now()
	}

	ls.wmu.Lock()
	defer ls.wmu.Unlock()

	recs := make([]Record, 0, 2)
	snapshot := st != nil && (!ls.hasSnapshot || ls.sinceSnapshot >= ls.interval)
	if snapshot {
		doc, err := st.Marshal()
		if err != nil {
			return err
		}
		recs = append(recs, Record{Kind: KindSnapshot, Time: t, Data: doc})
	} else if !ls.hasSnapshot {
		return ErrNoSnapshot
	}
	recs = append(recs, Record{
		Kind:      KindLine,
		Time:      t,
		Direction: l.Direction,
		Data:      []byte(raw),
	})

	if _, err = ls.backend.Append(recs...); err != nil {
		ls.log.Error("Linestack append failed", "err", err)
		return err
	}

	if snapshot {
		ls.hasSnapshot = true
		ls.sinceSnapshot = 0
		metrics.Records.WithLabelValues("snapshot").Inc()
	}
	ls.sinceSnapshot++
	metrics.Records.WithLabelValues("line").Inc()
	return nil
}

// Marker returns a marker for the current end.
func (ls *Linestack) Marker() *Marker {
	return ls.track(ls.backend.End())
}

// MarkerAt returns a marker for a position obtained from Marker.Pos.
func (ls *Linestack) MarkerAt(pos int64) (*Marker, error) {
	if pos < 0 || pos > ls.backend.End() {
		return nil, ErrBadMarker
	}
	return ls.track(pos), nil
}

func (ls *Linestack) track(pos int64) *Marker {
	m := &Marker{ls: ls, pos: pos}
	ls.mmu.Lock()
	ls.markers[m] = struct{}{}
	ls.mmu.Unlock()
	return m
}

// Free releases a marker. Using it afterwards is an error.
func (ls *Linestack) Free(m *Marker) error {
	if err := ls.check(m); err != nil {
		return err
	}
	ls.mmu.Lock()
	delete(ls.markers, m)
	ls.mmu.Unlock()
	return nil
}

// NumMarkers is the number of markers not yet freed.
func (ls *Linestack) NumMarkers() int {
	ls.mmu.Lock()
	defer ls.mmu.Unlock()
	return len(ls.markers)
}

func (ls *Linestack) check(m *Marker) error {
	if m == nil {
		return nil
	}
	if m.ls != ls {
		return ErrForeignMarker
	}
	ls.mmu.Lock()
	_, ok := ls.markers[m]
	ls.mmu.Unlock()
	if !ok {
		return ErrFreedMarker
	}
	return nil
}

// bounds turns a marker pair into backend positions, nil meaning the start
// and the current end.
func (ls *Linestack) bounds(from, to *Marker) (int64, int64, error) {
	if err := ls.check(from); err != nil {
		return 0, 0, err
	}
	if err := ls.check(to); err != nil {
		return 0, 0, err
	}

	start, end := int64(0), ls.backend.End()
	if from != nil {
		start = from.pos
	}
	if to != nil {
		end = to.pos
	}
	return start, end, nil
}

// decodeLine turns a line record back into a line.
func decodeLine(pos int64, r Record) (*irc.Line, error) {
	l, err := parse.ParseDirected(string(r.Data), r.Direction)
	if err != nil {
		return nil, &Error{Op: "decode", Offset: pos, Err: err}
	}
	l.Time = r.Time
	return l, nil
}

// State rebuilds the network state as of a marker, nil meaning now. The
// result is a fresh state owned by the caller.
func (ls *Linestack) State(ctx context.Context, m *Marker) (*data.State, error) {
	if err := ls.check(m); err != nil {
		return nil, err
	}
	pos := ls.backend.End()
	if m != nil {
		pos = m.pos
	}

	snapPos, rec, err := ls.backend.SnapshotAt(pos)
	if err != nil {
		return nil, err
	}
	st, err := data.Unmarshal(rec.Data)
	if err != nil {
		return nil, &Error{Op: "decode snapshot", Offset: snapPos, Err: err}
	}
	st.SetLogger(ls.log)

	err = ls.backend.Scan(ctx, snapPos, pos, func(p int64, r Record) error {
		if r.Kind != KindLine {
			return nil
		}
		l, err := decodeLine(p, r)
		if err != nil {
			return err
		}
		if _, err = st.Update(l); err != nil {
			ls.log.Debug("Replayed line not applied", "pos", p, "err", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Traverse calls fn for every line after from up to and including the last
// line before to. A nil from is the start of the history, a nil to is now.
// Snapshots are skipped. An error from fn stops the traversal and is
// returned.
func (ls *Linestack) Traverse(ctx context.Context, from, to *Marker, fn func(*irc.Line) error) error {
	start, end, err := ls.bounds(from, to)
	if err != nil {
		return err
	}

	return ls.backend.Scan(ctx, start, end, func(p int64, r Record) error {
		if r.Kind != KindLine {
			return nil
		}
		l, err := decodeLine(p, r)
		if err != nil {
			return err
		}
		metrics.Replayed.Inc()
		return fn(l)
	})
}

// TraverseObject is Traverse restricted to the lines about one channel or
// nick: lines whose first argument lists it, and private messages from it.
func (ls *Linestack) TraverseObject(ctx context.Context, object string, from, to *Marker, fn func(*irc.Line) error) error {
	return ls.Traverse(ctx, from, to, func(l *irc.Line) error {
		if ls.concerns(l, object) {
			return fn(l)
		}
		return nil
	})
}

func (ls *Linestack) concerns(l *irc.Line, object string) bool {
	for _, target := range strings.Split(l.Arg(0), ",") {
		if ls.info.Equal(target, object) {
			return true
		}
	}
	return l.IsMessage() && l.Direction == irc.FromServer && ls.info.Equal(l.Nick(), object)
}

// SendOptions change how Send forwards history.
type SendOptions struct {
	// Timed prefixes messages with the time they were seen at.
	Timed bool
	// DataOnly skips everything but PRIVMSG and NOTICE.
	DataOnly bool
	// TimeOffset is added to the line times shown by Timed.
	TimeOffset time.Duration
	// Location the times shown by Timed are in, nil is local time.
	Location *time.Location
}

// Send replays the lines between two markers to w. Only channel and
// message traffic is replayed: of the lines a client sent just its
// messages, and no CTCP but ACTION. Lines already written stay written when
// an error stops the replay.
func (ls *Linestack) Send(ctx context.Context, from, to *Marker, w irc.Writer, opts SendOptions) error {
	return ls.Traverse(ctx, from, to, func(l *irc.Line) error {
		if !replayed[l.Command] {
			return nil
		}
		if !plainOrAction(l) {
			return nil
		}
		if !l.IsMessage() {
			if opts.DataOnly || l.Direction == irc.ToServer {
				return nil
			}
			return w.WriteLine(l)
		}
		if opts.Timed {
			l = Stamp(l, opts.TimeOffset, opts.Location)
		}
		return w.WriteLine(l)
	})
}

// Stamp prefixes the text of a message with the time it was seen, shifted
// by offset and shown in loc, nil meaning local time. Lines that are not
// plain messages come back unchanged.
func Stamp(l *irc.Line, offset time.Duration, loc *time.Location) *irc.Line {
	if !l.IsMessage() || l.IsCTCP() || len(l.Args) < 2 {
		return l
	}
	if loc == nil {
		loc = time.Local
	}
	l = l.Clone()
	last := len(l.Args) - 1
	l.Args[last] = "[" + l.Time.Add(offset).In(loc).Format("15:04:05") + "] " + l.Args[last]
	return l
}

// Close closes the backend. Markers become useless.
func (ls *Linestack) Close() error {
	ls.mmu.Lock()
	if n := len(ls.markers); n > 0 {
		ls.log.Debug("Closing with unfreed markers", "count", n)
	}
	ls.markers = make(map[*Marker]struct{})
	ls.mmu.Unlock()
	return ls.backend.Close()
}
