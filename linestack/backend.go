package linestack

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jelmer/ctrlproxy-sub000/irc"
	"github.com/pkg/errors"
)

var (
	// ErrNoSnapshot is returned when no snapshot precedes a position, and
	// by the first insert into an empty linestack when no state is given.
	ErrNoSnapshot = errors.New("linestack: no snapshot before position")
	// ErrCorrupt is the cause of errors about records that can not be read.
	ErrCorrupt = errors.New("linestack: corrupt record")
	// ErrLocked is returned when another process holds the linestack.
	ErrLocked = errors.New("linestack: directory is locked by another process")
	// ErrBadMagic is returned for files that are not linestacks.
	ErrBadMagic = errors.New("linestack: not a linestack file")
	// ErrFull is returned when a record would not be addressable.
	ErrFull = errors.New("linestack: file size limit reached")
	// ErrUnknownBackend is returned by Open for unregistered names.
	ErrUnknownBackend = errors.New("linestack: unknown backend")
)

// Error describes a failed read or write of the record at Offset.
type Error struct {
	Op     string
	Offset int64
	Err    error
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("linestack: %s at %d: %v", e.Op, e.Offset, e.Err)
}

// Cause lets errors.Cause see the underlying error.
func (e *Error) Cause() error {
	return e.Err
}

// Kind tells line records and snapshots apart.
type Kind uint8

// Record kinds.
const (
	KindLine Kind = iota + 1
	KindSnapshot
)

// Record is one entry of a linestack. Times are kept to the second.
type Record struct {
	Kind      Kind
	Time      time.Time
	Direction irc.Direction
	// Data is the wire form of a line without CRLF, or a state document.
	Data []byte
}

// Backend stores records. Positions are opaque, strictly increasing and
// stable for the lifetime of the store. One goroutine appends while any
// number of others scan; scans never see a partly written record.
type Backend interface {
	// Append stores the records as a unit, either all of them or none, and
	// returns the new end position. Every line record refers back to the
	// last snapshot written before it.
	Append(recs ...Record) (int64, error)
	// End is the position following the last complete record.
	End() int64
	// Scan calls fn for every record that starts in [from, to), in order.
	// A negative to means the current end.
	Scan(ctx context.Context, from, to int64, fn func(pos int64, r Record) error) error
	// SnapshotAt returns the last snapshot starting at or before pos.
	SnapshotAt(pos int64) (int64, Record, error)
	// Close releases the store.
	Close() error
}

// Factory opens a backend.
type Factory func(opts Options) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		"file": OpenFile,
		"kv":   OpenKV,
	}
)

// Register makes a backend available to Open under name, replacing any
// backend registered before under it.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Backends lists the registered backend names.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the backend registered as name and wraps it.
func Open(name string, opts Options) (*Linestack, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Wrap(ErrUnknownBackend, name)
	}

	b, err := f(opts)
	if err != nil {
		return nil, err
	}
	return New(b, opts), nil
}
