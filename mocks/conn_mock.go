// Package mocks has a scriptable net.Conn for tests of the code talking to
// servers and clients.
package mocks

import (
	"io"
	"net"
	"sync"
	"time"
)

// Addr is the address both ends of a mock Conn report.
type Addr string

func (a Addr) Network() string { return "mock" }
func (a Addr) String() string  { return string(a) }

// Conn is a net.Conn fed by Send and drained by Receive. Close unblocks
// both ends.
type Conn struct {
	writechan chan []byte
	readchan  chan []byte
	readerr   chan error
	closed    chan struct{}
	once      sync.Once

	mut     sync.Mutex
	pending []byte
}

// CreateConn makes a connection nothing has been sent on.
func CreateConn() *Conn {
	return &Conn{
		writechan: make(chan []byte),
		readchan:  make(chan []byte),
		readerr:   make(chan error),
		closed:    make(chan struct{}),
	}
}

// Send hands buf to the reader, it blocks until a Read takes it and returns
// false if the connection was closed first.
func (m *Conn) Send(buf []byte) bool {
	select {
	case m.readchan <- buf:
		return true
	case <-m.closed:
		return false
	}
}

// SendString is Send for a string.
func (m *Conn) SendString(s string) bool {
	return m.Send([]byte(s))
}

// Fail makes the pending or next Read return err.
func (m *Conn) Fail(err error) {
	select {
	case m.readerr <- err:
	case <-m.closed:
	}
}

// Receive returns what the next Write wrote, nil once the connection is
// closed.
func (m *Conn) Receive() []byte {
	select {
	case b := <-m.writechan:
		return b
	case <-m.closed:
		return nil
	}
}

// ReceiveTimeout is Receive giving up after d.
func (m *Conn) ReceiveTimeout(d time.Duration) ([]byte, bool) {
	select {
	case b := <-m.writechan:
		return b, true
	case <-m.closed:
		return nil, false
	case <-time.After(d):
		return nil, false
	}
}

func (m *Conn) Read(buf []byte) (int, error) {
	m.mut.Lock()
	if len(m.pending) > 0 {
		n := copy(buf, m.pending)
		m.pending = m.pending[n:]
		m.mut.Unlock()
		return n, nil
	}
	m.mut.Unlock()

	select {
	case b := <-m.readchan:
		n := copy(buf, b)
		if n < len(b) {
			m.mut.Lock()
			m.pending = append(m.pending, b[n:]...)
			m.mut.Unlock()
		}
		return n, nil
	case err := <-m.readerr:
		return 0, err
	case <-m.closed:
		return 0, io.EOF
	}
}

func (m *Conn) Write(buf []byte) (int, error) {
	cpy := make([]byte, len(buf))
	copy(cpy, buf)
	select {
	case m.writechan <- cpy:
		return len(buf), nil
	case <-m.closed:
		return 0, net.ErrClosed
	}
}

// Close never fails, closing twice is allowed.
func (m *Conn) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

// WaitForDeath blocks until the connection is closed.
func (m *Conn) WaitForDeath() {
	<-m.closed
}

// IsClosed reports if Close was called.
func (m *Conn) IsClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

func (m *Conn) LocalAddr() net.Addr  { return Addr("local") }
func (m *Conn) RemoteAddr() net.Addr { return Addr("remote") }

func (m *Conn) SetDeadline(time.Time) error      { return nil }
func (m *Conn) SetReadDeadline(time.Time) error  { return nil }
func (m *Conn) SetWriteDeadline(time.Time) error { return nil }
