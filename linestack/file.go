package linestack

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/jelmer/ctrlproxy-sub000/irc"
	"github.com/pkg/errors"
	log "gopkg.in/inconshreveable/log15.v2"
)

// The file backend keeps one file per linestack: an 8 byte magic followed by
// records of a 12 byte little endian header {offset, time, length} and
// length bytes of payload. An offset of 0 marks a snapshot whose payload is
// the state document. Any other offset marks a line and points back at the
// snapshot the line follows; the line payload is a direction byte and the
// line itself.
const (
	fileMagic        = "CTRLLS\x00\x01"
	recordHeaderSize = 12
	maxFileSize      = math.MaxUint32

	// FileName is the name of the record file inside the directory.
	FileName = "linestack"
	// LockName is the name of the lock file inside the directory.
	LockName = "linestack.lock"

	scanBufferSize = 64 * 1024
)

type fileBackend struct {
	f    *os.File
	lock *flock.Flock
	sync bool
	log  log.Logger

	// wmu serializes appends, end is published after every write so that
	// readers never go past a complete record.
	wmu      sync.Mutex
	end      atomic.Int64
	lastSnap int64

	smu       sync.RWMutex
	snapshots []int64
}

// OpenFile opens or creates the file linestack in opts.Dir. The directory
// is locked for as long as the backend is open. A torn record at the end of
// the file, left by a crash during a write, is cut off.
func OpenFile(opts Options) (Backend, error) {
	if len(opts.Dir) == 0 {
		return nil, errors.New("linestack: file backend needs a directory")
	}
	if err := os.MkdirAll(opts.Dir, 0700); err != nil {
		return nil, errors.Wrap(err, "linestack: create directory")
	}

	lock := flock.New(filepath.Join(opts.Dir, LockName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "linestack: lock directory")
	} else if !ok {
		return nil, ErrLocked
	}

	b, err := openLocked(filepath.Join(opts.Dir, FileName), opts)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	b.lock = lock
	return b, nil
}

func openLocked(path string, opts Options) (*fileBackend, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "linestack: open")
	}

	b := &fileBackend{
		f:    f,
		sync: opts.Sync,
		log:  opts.logger().New("backend", "file"),
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "linestack: stat")
	}

	size := fi.Size()
	if size < int64(len(fileMagic)) {
		// Empty, or a crash before the magic made it out.
		if err = f.Truncate(0); err == nil {
			_, err = f.WriteAt([]byte(fileMagic), 0)
		}
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "linestack: write header")
		}
		b.end.Store(int64(len(fileMagic)))
		return b, nil
	}

	magic := make([]byte, len(fileMagic))
	if _, err = f.ReadAt(magic, 0); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "linestack: read header")
	}
	if string(magic) != fileMagic {
		f.Close()
		return nil, ErrBadMagic
	}

	end, err := b.recover(size)
	if err != nil {
		f.Close()
		return nil, err
	}
	if end < size {
		b.log.Warn("Cutting off torn records", "valid", end, "size", size)
		if err = f.Truncate(end); err != nil {
			f.Close()
			return nil, errors.Wrap(err, "linestack: truncate")
		}
	}
	b.end.Store(end)
	return b, nil
}

// recover walks the record headers, collecting snapshot positions, and
// returns the end of the last consistent record.
func (b *fileBackend) recover(size int64) (int64, error) {
	r := bufio.NewReaderSize(io.NewSectionReader(b.f, 0, size), scanBufferSize)
	if _, err := r.Discard(len(fileMagic)); err != nil {
		return 0, errors.Wrap(err, "linestack: recover")
	}

	hdr := make([]byte, recordHeaderSize)
	pos := int64(len(fileMagic))
	for pos+recordHeaderSize <= size {
		if _, err := io.ReadFull(r, hdr); err != nil {
			return 0, errors.Wrap(err, "linestack: recover")
		}
		offset, _, length := decodeHeader(hdr)
		next := pos + recordHeaderSize + int64(length)
		if next > size {
			break
		}

		if offset == 0 {
			b.snapshots = append(b.snapshots, pos)
			b.lastSnap = pos
		} else if int64(offset) != b.lastSnap || length == 0 {
			b.log.Warn("Record does not follow its snapshot", "pos", pos, "offset", offset)
			break
		}

		if _, err := r.Discard(int(length)); err != nil {
			return 0, errors.Wrap(err, "linestack: recover")
		}
		pos = next
	}
	return pos, nil
}

func decodeHeader(hdr []byte) (offset, t, length uint32) {
	return binary.LittleEndian.Uint32(hdr[0:4]),
		binary.LittleEndian.Uint32(hdr[4:8]),
		binary.LittleEndian.Uint32(hdr[8:12])
}

func unixSeconds(t time.Time) uint32 {
	sec := t.Unix()
	if sec < 0 {
		return 0
	}
	if sec > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(sec)
}

func (b *fileBackend) Append(recs ...Record) (int64, error) {
	b.wmu.Lock()
	defer b.wmu.Unlock()

	start := b.end.Load()
	last := b.lastSnap
	var snaps []int64
	var buf []byte

	for _, rec := range recs {
		pos := start + int64(len(buf))
		var hdr [recordHeaderSize]byte
		payload := rec.Data

		switch rec.Kind {
		case KindSnapshot:
			last = pos
			snaps = append(snaps, pos)
		case KindLine:
			if last == 0 {
				return start, ErrNoSnapshot
			}
			binary.LittleEndian.PutUint32(hdr[0:4], uint32(last))
			payload = append([]byte{byte(rec.Direction)}, rec.Data...)
		default:
			return start, &Error{Op: "append", Offset: pos, Err: errors.Errorf("bad record kind %d", rec.Kind)}
		}

		binary.LittleEndian.PutUint32(hdr[4:8], unixSeconds(rec.Time))
		binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(payload)))
		buf = append(buf, hdr[:]...)
		buf = append(buf, payload...)
	}

	end := start + int64(len(buf))
	if end > maxFileSize {
		return start, &Error{Op: "append", Offset: start, Err: ErrFull}
	}

	_, err := b.f.WriteAt(buf, start)
	if err == nil && b.sync {
		err = b.f.Sync()
	}
	if err != nil {
		if terr := b.f.Truncate(start); terr != nil {
			b.log.Error("Could not cut off failed write", "pos", start, "err", terr)
		}
		return start, &Error{Op: "append", Offset: start, Err: err}
	}

	if len(snaps) > 0 {
		b.smu.Lock()
		b.snapshots = append(b.snapshots, snaps...)
		b.smu.Unlock()
	}
	b.lastSnap = last
	b.end.Store(end)
	return end, nil
}

func (b *fileBackend) End() int64 {
	return b.end.Load()
}

func (b *fileBackend) Scan(ctx context.Context, from, to int64, fn func(int64, Record) error) error {
	end := b.end.Load()
	if to < 0 || to > end {
		to = end
	}
	if from < int64(len(fileMagic)) {
		from = int64(len(fileMagic))
	}
	if from >= to {
		return nil
	}

	r := bufio.NewReaderSize(io.NewSectionReader(b.f, from, end-from), scanBufferSize)
	pos := from
	for pos < to {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, n, err := readRecord(r, end-pos)
		if err != nil {
			return &Error{Op: "read", Offset: pos, Err: err}
		}
		if err = fn(pos, rec); err != nil {
			return err
		}
		pos += n
	}
	return nil
}

// readRecord reads one record from r, which holds avail bytes at most.
func readRecord(r io.Reader, avail int64) (Record, int64, error) {
	var rec Record
	hdr := make([]byte, recordHeaderSize)
	if avail < recordHeaderSize {
		return rec, 0, ErrCorrupt
	}
	if _, err := io.ReadFull(r, hdr); err != nil {
		return rec, 0, err
	}

	offset, t, length := decodeHeader(hdr)
	n := recordHeaderSize + int64(length)
	if n > avail {
		return rec, 0, ErrCorrupt
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return rec, 0, err
	}

	rec.Time = time.Unix(int64(t), 0).UTC()
	if offset == 0 {
		rec.Kind = KindSnapshot
		rec.Data = payload
		return rec, n, nil
	}
	if length == 0 {
		return rec, 0, ErrCorrupt
	}
	rec.Kind = KindLine
	rec.Direction = irc.Direction(payload[0])
	rec.Data = payload[1:]
	return rec, n, nil
}

func (b *fileBackend) SnapshotAt(pos int64) (int64, Record, error) {
	// Append lists a snapshot before it publishes the end that covers it,
	// so only snapshots below an end loaded first are complete.
	end := b.end.Load()
	if pos >= end {
		pos = end - 1
	}

	b.smu.RLock()
	i := sort.Search(len(b.snapshots), func(i int) bool {
		return b.snapshots[i] > pos
	}) - 1
	var snap int64
	if i >= 0 {
		snap = b.snapshots[i]
	}
	b.smu.RUnlock()

	if i < 0 {
		return 0, Record{}, ErrNoSnapshot
	}

	r := io.NewSectionReader(b.f, snap, end-snap)
	rec, _, err := readRecord(r, end-snap)
	if err != nil {
		return 0, Record{}, &Error{Op: "read snapshot", Offset: snap, Err: err}
	}
	if rec.Kind != KindSnapshot {
		return 0, Record{}, &Error{Op: "read snapshot", Offset: snap, Err: ErrCorrupt}
	}
	return snap, rec, nil
}

func (b *fileBackend) Close() error {
	err := b.f.Close()
	if b.lock != nil {
		if uerr := b.lock.Unlock(); err == nil {
			err = uerr
		}
	}
	return errors.Wrap(err, "linestack: close")
}
