/*
Package inet moves IRC lines over a network connection: a reader splitting
the stream into lines and a writer that paces lines to servers so that the
proxy is not kicked for flooding, pinging them when the connection is idle.
*/
package inet

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"

	"github.com/jelmer/ctrlproxy-sub000/irc"
	"github.com/jelmer/ctrlproxy-sub000/metrics"
	"github.com/pkg/errors"
	log "gopkg.in/inconshreveable/log15.v2"
)

const (
	// bufferSize is the size of the read buffer, longer lines are dropped.
	bufferSize = 16384
	// defaultTimeScale is the default scale of the sleeps and timeouts.
	defaultTimeScale = time.Second
)

var (
	// pong lines skip flood protection.
	pong = []byte("PONG")
	// ping is sent to keep an idle connection alive.
	ping = []byte("PING :ctrlproxy\r\n")
)

// ErrClosed is returned when writing to a closed connection.
var ErrClosed = errors.New("inet: connection closed")

// Options configure a Conn.
type Options struct {
	// Name identifies the connection in logs and metrics, the network name
	// for servers.
	Name string
	// FloodLenPenalty is the number of bytes that cost one time unit, zero
	// disables the length penalty.
	FloodLenPenalty int
	// FloodTimeout is how far ahead the penalty may run before writes are
	// held back.
	FloodTimeout time.Duration
	// FloodStep is the penalty every line costs.
	FloodStep time.Duration
	// Keepalive is the interval of the PINGs, zero disables them.
	Keepalive time.Duration
	// Scale rounds sleeps and scales the length penalty, defaults to a
	// second. Tests shrink it.
	Scale time.Duration
	Log   log.Logger
}

// Conn is a line based connection, to a server or from a client.
type Conn struct {
	conn net.Conn
	name string
	log  log.Logger

	lines   chan []byte
	writes  chan []byte
	flushes chan chan struct{}
	done    chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	errMut sync.Mutex
	err    error

	queue Queue

	// write throttling, only touched by the pump
	lastwrite        time.Time
	penalty          time.Time
	timeout          time.Duration
	basestep         time.Duration
	lenPenaltyFactor float64
	scale            time.Duration
	keepalive        time.Duration
}

// NewConn wraps conn. Start must be called before lines flow.
func NewConn(conn net.Conn, opts Options) *Conn {
	c := &Conn{
		conn:      conn,
		name:      opts.Name,
		log:       opts.Log,
		lines:     make(chan []byte),
		writes:    make(chan []byte),
		flushes:   make(chan chan struct{}),
		done:      make(chan struct{}),
		timeout:   opts.FloodTimeout,
		basestep:  opts.FloodStep,
		keepalive: opts.Keepalive,
		scale:     opts.Scale,
	}
	if c.log == nil {
		c.log = log.New()
		c.log.SetHandler(log.DiscardHandler())
	}
	if c.scale == 0 {
		c.scale = defaultTimeScale
	}
	if opts.FloodLenPenalty > 0 {
		c.lenPenaltyFactor = 1.0 / float64(opts.FloodLenPenalty)
	}
	return c
}

// Start spawns the reading and writing goroutines.
func (c *Conn) Start() {
	c.wg.Add(2)
	go c.pump()
	go c.siphon()
}

// throttled reports whether flood protection is configured.
func (c *Conn) throttled() bool {
	return c.timeout > 0 || c.basestep > 0 || c.lenPenaltyFactor > 0
}

// calcSleepTime calculates the sleep time required by the flood protection
// given a time of write.
func (c *Conn) calcSleepTime(t time.Time, msgLen int) time.Duration {
	roundToScale := func(in time.Duration) time.Duration {
		return ((in + (c.scale / 2)) / c.scale) * c.scale
	}

	if c.lastwrite.After(c.penalty) {
		c.penalty = c.lastwrite
	}

	applyPenalty := roundToScale(c.penalty.Sub(t)) >= c.timeout
	c.penalty = c.penalty.Add(c.basestep + roundToScale(
		time.Duration(float64(c.scale)*float64(msgLen)*c.lenPenaltyFactor)))

	if applyPenalty {
		sleep := roundToScale(c.penalty.Sub(t) - c.timeout)
		if sleep > c.timeout {
			sleep = c.timeout
		}
		return sleep
	}

	return 0
}

// pump writes the lines given to Write, sleeping a don't-get-glined amount
// of time between them.
func (c *Conn) pump() {
	defer c.wg.Done()

	var err error
	var sleeper <-chan time.Time
	var pinger <-chan time.Time
	if c.keepalive > 0 {
		pinger = time.After(c.keepalive)
	}
	var flushed []chan struct{}
	release := func() {
		for _, f := range flushed {
			close(f)
		}
		flushed = nil
	}

	for err == nil {
		select {
		case msg := <-c.writes:
			switch {
			case !c.throttled() || bytes.HasPrefix(msg, pong):
				err = c.writeMessage(msg)
			case sleeper != nil:
				c.queue.Enqueue(msg)
			default:
				if sleep := c.calcSleepTime(time.Now(), len(msg)); sleep <= 0 {
					err = c.writeMessage(msg)
				} else {
					c.queue.Enqueue(msg)
					sleeper = time.After(sleep)
				}
			}
		case <-sleeper:
			msg := c.queue.Dequeue()
			if err = c.writeMessage(msg); err != nil {
				break
			}
			sleeper = nil
			if c.queue.Len() > 0 {
				sleeper = time.After(c.calcSleepTime(time.Now(), len(msg)))
			} else {
				release()
			}
		case f := <-c.flushes:
			flushed = append(flushed, f)
			if sleeper == nil {
				release()
			}
		case <-pinger:
			if sleeper != nil {
				c.queue.Enqueue(ping)
			} else {
				err = c.writeMessage(ping)
			}
			pinger = time.After(c.keepalive)
		case <-c.done:
			if n := c.queue.Clear(); n > 0 {
				c.log.Debug("Discarded queued lines", "conn", c.name, "count", n)
			}
			release()
			return
		}
	}

	release()

	c.log.Warn("Write failed", "conn", c.name, "err", err)
	c.shutdown(err)
}

// writeMessage writes one CRLF terminated line to the socket.
func (c *Conn) writeMessage(msg []byte) error {
	var n int
	var err error
	for written := 0; written < len(msg); written += n {
		n, err = c.conn.Write(msg[written:])
		if err != nil {
			return errors.Wrapf(err, "inet: write to %s", c.name)
		}
	}
	c.lastwrite = time.Now()
	c.log.Debug("<-", "conn", c.name, "line", string(bytes.TrimRight(msg, "\r\n")))
	metrics.Lines.WithLabelValues(c.name, "out").Inc()
	return nil
}

// siphon reads the connection and hands the lines to Lines until the
// connection fails or is closed.
func (c *Conn) siphon() {
	defer c.wg.Done()
	defer close(c.lines)

	buf := make([]byte, bufferSize)
	pos := 0
	skipping := false

	for {
		n, err := c.conn.Read(buf[pos:])
		if n > 0 && skipping {
			// Still inside an over-long line, drop up to its end.
			if i := bytes.IndexByte(buf[:n], '\n'); i < 0 {
				n = 0
			} else {
				n = copy(buf, buf[i+1:n])
				skipping = false
			}
		}
		if n > 0 {
			var stop bool
			pos, stop = c.extractMessages(buf[:pos+n])
			if stop {
				return
			}
			if pos == len(buf) {
				c.log.Warn("Line too long, discarded", "conn", c.name)
				pos = 0
				skipping = true
			}
		}
		if err != nil {
			if err == io.EOF {
				err = nil
			} else {
				c.log.Info("Read failed", "conn", c.name, "err", err)
			}
			c.shutdown(err)
			return
		}
	}
}

// extractMessages hands every complete line in buf to Lines, moves the
// incomplete rest to the front and returns its length. Lines end in LF with
// an optional CR before it. A copy is made of each line since buf is reused
// as soon as this returns.
func (c *Conn) extractMessages(buf []byte) (int, bool) {
	start := 0
	for {
		i := bytes.IndexByte(buf[start:], '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(buf[start:start+i], "\r")
		start += i + 1
		if len(line) == 0 {
			continue
		}

		cpy := make([]byte, len(line))
		copy(cpy, line)
		select {
		case c.lines <- cpy:
			c.log.Debug("->", "conn", c.name, "line", string(cpy))
			metrics.Lines.WithLabelValues(c.name, "in").Inc()
		case <-c.done:
			return 0, true
		}
	}

	rest := copy(buf, buf[start:])
	return rest, false
}

// Lines delivers the lines read, without line endings. It is closed when
// the connection is.
func (c *Conn) Lines() <-chan []byte {
	return c.lines
}

// ReadLine waits for the next line, false once the connection is closed.
func (c *Conn) ReadLine() ([]byte, bool) {
	line, ok := <-c.lines
	return line, ok
}

// Write queues every line in buf, the last one may lack its line ending.
// It fails with ErrClosed once the connection is closed.
func (c *Conn) Write(buf []byte) (int, error) {
	for _, line := range bytes.Split(buf, []byte{'\n'}) {
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			continue
		}
		msg := make([]byte, len(line), len(line)+2)
		copy(msg, line)
		msg = append(msg, '\r', '\n')

		select {
		case c.writes <- msg:
		case <-c.done:
			return 0, ErrClosed
		}
	}
	return len(buf), nil
}

// WriteLine implements irc.Writer.
func (c *Conn) WriteLine(l *irc.Line) error {
	s, err := l.Serialize()
	if err != nil {
		return err
	}
	_, err = c.Write([]byte(s))
	return err
}

// Flush waits until every line written before it is on the wire, or the
// connection is closed.
func (c *Conn) Flush() {
	f := make(chan struct{})
	select {
	case c.flushes <- f:
	case <-c.done:
		return
	}
	select {
	case <-f:
	case <-c.done:
	}
}

// shutdown closes the connection once, remembering why.
func (c *Conn) shutdown(cause error) {
	c.once.Do(func() {
		c.errMut.Lock()
		c.err = cause
		c.errMut.Unlock()
		close(c.done)
		if err := c.conn.Close(); err != nil {
			c.log.Debug("Close failed", "conn", c.name, "err", err)
		}
	})
}

// Close closes the connection and waits for the goroutines to finish.
// Lines still queued by flood protection are dropped.
func (c *Conn) Close() error {
	c.shutdown(nil)
	c.wg.Wait()
	return nil
}

// Done is closed when the connection is.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns what broke the connection, nil for a clean close or EOF.
func (c *Conn) Err() error {
	c.errMut.Lock()
	defer c.errMut.Unlock()
	return c.err
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// RemoteAddr is the address of the other end.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
