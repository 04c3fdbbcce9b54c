package repl

import (
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/tidwall/buntdb"
)

// MarkerStore remembers linestack positions per network and backend.
type MarkerStore interface {
	// Get returns the stored position, ok is false when there is none.
	Get(network, backend string) (pos int64, ok bool, err error)
	Set(network, backend string, pos int64) error
	Delete(network, backend string) error
	Close() error
}

type markerKey struct {
	network string
	backend string
}

// MemoryStore keeps markers until the process exits.
type MemoryStore struct {
	mut     sync.RWMutex
	markers map[markerKey]int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{markers: make(map[markerKey]int64)}
}

// Get implements MarkerStore.
func (m *MemoryStore) Get(network, backend string) (int64, bool, error) {
	m.mut.RLock()
	defer m.mut.RUnlock()
	pos, ok := m.markers[markerKey{network, backend}]
	return pos, ok, nil
}

// Set implements MarkerStore.
func (m *MemoryStore) Set(network, backend string, pos int64) error {
	m.mut.Lock()
	m.markers[markerKey{network, backend}] = pos
	m.mut.Unlock()
	return nil
}

// Delete implements MarkerStore.
func (m *MemoryStore) Delete(network, backend string) error {
	m.mut.Lock()
	delete(m.markers, markerKey{network, backend})
	m.mut.Unlock()
	return nil
}

// Close implements MarkerStore.
func (m *MemoryStore) Close() error {
	return nil
}

// InMemory is the path that keeps a BuntStore in memory.
const InMemory = ":memory:"

// Markers are stored under "marker <network> <backend>".
const keyMarkerPrefix = "marker "

// BuntStore keeps markers in a buntdb file so that replication resumes
// where it left off after a restart.
type BuntStore struct {
	db *buntdb.DB
}

// OpenBuntStore opens or creates the database at path.
func OpenBuntStore(path string) (*BuntStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "repl: open marker db %s", path)
	}
	return &BuntStore{db: db}, nil
}

func markerDBKey(network, backend string) string {
	return keyMarkerPrefix + network + " " + backend
}

// Get implements MarkerStore.
func (b *BuntStore) Get(network, backend string) (pos int64, ok bool, err error) {
	err = b.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(markerDBKey(network, backend))
		if err == buntdb.ErrNotFound {
			return nil
		} else if err != nil {
			return err
		}
		pos, err = strconv.ParseInt(val, 10, 64)
		ok = err == nil
		return err
	})
	if err != nil {
		return 0, false, errors.Wrap(err, "repl: get marker")
	}
	return pos, ok, nil
}

// Set implements MarkerStore.
func (b *BuntStore) Set(network, backend string, pos int64) error {
	err := b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(markerDBKey(network, backend), strconv.FormatInt(pos, 10), nil)
		return err
	})
	return errors.Wrap(err, "repl: set marker")
}

// Delete implements MarkerStore.
func (b *BuntStore) Delete(network, backend string) error {
	err := b.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(markerDBKey(network, backend))
		if err == buntdb.ErrNotFound {
			return nil
		}
		return err
	})
	return errors.Wrap(err, "repl: delete marker")
}

// Networks lists the networks that have markers stored.
func (b *BuntStore) Networks() ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(keyMarkerPrefix+"*", func(key, value string) bool {
			fields := strings.Fields(strings.TrimPrefix(key, keyMarkerPrefix))
			if len(fields) == 2 && !seen[fields[0]] {
				seen[fields[0]] = true
				out = append(out, fields[0])
			}
			return true
		})
	})
	return out, errors.Wrap(err, "repl: list markers")
}

// Close implements MarkerStore.
func (b *BuntStore) Close() error {
	return b.db.Close()
}
