package linestack

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cznic/kv"
	"github.com/jelmer/ctrlproxy-sub000/irc"
	"github.com/pkg/errors"
)

// The kv backend stores every record under its sequence number, encoded big
// endian so that keys sort in insertion order. Values are a kind byte, the
// unix time, the sequence number of the snapshot a line follows, the
// direction byte and the payload.
const (
	// KVName is the database file inside the directory.
	KVName = "linestack.kv"

	kvValueHeader = 1 + 8 + 8 + 1
	firstSeq      = 1
)

type kvBackend struct {
	db *kv.DB

	wmu      sync.Mutex
	end      atomic.Int64
	lastSnap int64
}

// OpenKV opens or creates a kv linestack in opts.Dir, or an in-memory one
// when opts.Dir is empty.
func OpenKV(opts Options) (Backend, error) {
	var db *kv.DB
	var err error

	if len(opts.Dir) == 0 {
		db, err = kv.CreateMem(&kv.Options{})
	} else {
		if err = os.MkdirAll(opts.Dir, 0700); err != nil {
			return nil, errors.Wrap(err, "linestack: create directory")
		}
		path := filepath.Join(opts.Dir, KVName)
		if _, serr := os.Stat(path); serr == nil {
			db, err = kv.Open(path, &kv.Options{})
		} else {
			db, err = kv.Create(path, &kv.Options{})
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "linestack: open kv")
	}

	b := &kvBackend{db: db}
	if err = b.load(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// load finds the end and the last snapshot from the last record.
func (b *kvBackend) load() error {
	b.end.Store(firstSeq)

	enum, err := b.db.SeekLast()
	if err == io.EOF {
		return nil
	} else if err != nil {
		return errors.Wrap(err, "linestack: seek last")
	}

	k, v, err := enum.Next()
	if err == io.EOF {
		return nil
	} else if err != nil {
		return errors.Wrap(err, "linestack: read last")
	}

	seq, err := decodeKey(k)
	if err != nil {
		return err
	}
	rec, snap, err := decodeValue(v)
	if err != nil {
		return &Error{Op: "load", Offset: seq, Err: err}
	}
	if rec.Kind == KindSnapshot {
		snap = seq
	}
	b.lastSnap = snap
	b.end.Store(seq + 1)
	return nil
}

func encodeKey(seq int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(seq))
	return k
}

func decodeKey(k []byte) (int64, error) {
	if len(k) != 8 {
		return 0, &Error{Op: "read key", Err: ErrCorrupt}
	}
	return int64(binary.BigEndian.Uint64(k)), nil
}

func encodeValue(rec Record, snap int64) []byte {
	v := make([]byte, kvValueHeader+len(rec.Data))
	v[0] = byte(rec.Kind)
	binary.BigEndian.PutUint64(v[1:9], uint64(rec.Time.Unix()))
	binary.BigEndian.PutUint64(v[9:17], uint64(snap))
	v[17] = byte(rec.Direction)
	copy(v[kvValueHeader:], rec.Data)
	return v
}

// decodeValue returns the record and the snapshot it refers back to.
func decodeValue(v []byte) (Record, int64, error) {
	var rec Record
	if len(v) < kvValueHeader {
		return rec, 0, ErrCorrupt
	}
	rec.Kind = Kind(v[0])
	if rec.Kind != KindLine && rec.Kind != KindSnapshot {
		return rec, 0, ErrCorrupt
	}
	rec.Time = time.Unix(int64(binary.BigEndian.Uint64(v[1:9])), 0).UTC()
	snap := int64(binary.BigEndian.Uint64(v[9:17]))
	rec.Direction = irc.Direction(v[17])
	rec.Data = v[kvValueHeader:]
	return rec, snap, nil
}

func (b *kvBackend) Append(recs ...Record) (int64, error) {
	b.wmu.Lock()
	defer b.wmu.Unlock()

	start := b.end.Load()
	seq, last := start, b.lastSnap

	if err := b.db.BeginTransaction(); err != nil {
		return start, &Error{Op: "append", Offset: start, Err: err}
	}
	for _, rec := range recs {
		switch rec.Kind {
		case KindSnapshot:
			last = seq
		case KindLine:
			if last == 0 {
				b.db.Rollback()
				return start, ErrNoSnapshot
			}
		default:
			b.db.Rollback()
			return start, &Error{Op: "append", Offset: seq, Err: errors.Errorf("bad record kind %d", rec.Kind)}
		}

		if err := b.db.Set(encodeKey(seq), encodeValue(rec, last)); err != nil {
			b.db.Rollback()
			return start, &Error{Op: "append", Offset: seq, Err: err}
		}
		seq++
	}
	if err := b.db.Commit(); err != nil {
		return start, &Error{Op: "append", Offset: start, Err: err}
	}

	b.lastSnap = last
	b.end.Store(seq)
	return seq, nil
}

func (b *kvBackend) End() int64 {
	return b.end.Load()
}

func (b *kvBackend) Scan(ctx context.Context, from, to int64, fn func(int64, Record) error) error {
	end := b.end.Load()
	if to < 0 || to > end {
		to = end
	}
	if from < firstSeq {
		from = firstSeq
	}
	if from >= to {
		return nil
	}

	enum, _, err := b.db.Seek(encodeKey(from))
	if err == io.EOF {
		return nil
	} else if err != nil {
		return &Error{Op: "seek", Offset: from, Err: err}
	}

	for {
		if err = ctx.Err(); err != nil {
			return err
		}

		k, v, err := enum.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return &Error{Op: "read", Offset: from, Err: err}
		}

		seq, err := decodeKey(k)
		if err != nil {
			return err
		}
		if seq >= to {
			return nil
		}
		rec, _, err := decodeValue(v)
		if err != nil {
			return &Error{Op: "read", Offset: seq, Err: err}
		}
		if err = fn(seq, rec); err != nil {
			return err
		}
	}
}

func (b *kvBackend) get(seq int64) (Record, int64, error) {
	v, err := b.db.Get(nil, encodeKey(seq))
	if err != nil {
		return Record{}, 0, &Error{Op: "get", Offset: seq, Err: err}
	}
	if v == nil {
		return Record{}, 0, &Error{Op: "get", Offset: seq, Err: ErrCorrupt}
	}
	rec, snap, err := decodeValue(v)
	if err != nil {
		return Record{}, 0, &Error{Op: "get", Offset: seq, Err: err}
	}
	return rec, snap, nil
}

// SnapshotAt looks at the record at pos, and at the one before it, to
// follow the back reference every line carries.
func (b *kvBackend) SnapshotAt(pos int64) (int64, Record, error) {
	end := b.end.Load()
	if pos >= firstSeq && pos < end {
		rec, _, err := b.get(pos)
		if err != nil {
			return 0, Record{}, err
		}
		if rec.Kind == KindSnapshot {
			return pos, rec, nil
		}
	}

	prev := pos - 1
	if prev >= end {
		prev = end - 1
	}
	if prev < firstSeq {
		return 0, Record{}, ErrNoSnapshot
	}

	rec, snap, err := b.get(prev)
	if err != nil {
		return 0, Record{}, err
	}
	if rec.Kind == KindSnapshot {
		return prev, rec, nil
	}
	if snap < firstSeq {
		return 0, Record{}, ErrNoSnapshot
	}

	rec, _, err = b.get(snap)
	if err != nil {
		return 0, Record{}, err
	}
	if rec.Kind != KindSnapshot {
		return 0, Record{}, &Error{Op: "get snapshot", Offset: snap, Err: ErrCorrupt}
	}
	return snap, rec, nil
}

func (b *kvBackend) Close() error {
	return errors.Wrap(b.db.Close(), "linestack: close kv")
}
