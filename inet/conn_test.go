package inet

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/jelmer/ctrlproxy-sub000/irc"
	"github.com/jelmer/ctrlproxy-sub000/mocks"
)

func TestConn_Siphon(t *testing.T) {
	t.Parallel()

	conn := mocks.CreateConn()
	c := NewConn(conn, Options{Name: "test"})
	c.Start()
	defer c.Close()

	go func() {
		conn.SendString("PRIVMSG #chan :msg\r\nNOTICE :msg\n\r\nPRIV")
		conn.SendString("MSG #other :x\r\n")
	}()

	for _, exp := range []string{"PRIVMSG #chan :msg", "NOTICE :msg", "PRIVMSG #other :x"} {
		line, ok := c.ReadLine()
		if !ok {
			t.Fatal("Connection closed early")
		}
		if string(line) != exp {
			t.Error("Unexpected:", string(line), "should be:", exp)
		}
	}
}

func TestConn_SiphonEOF(t *testing.T) {
	t.Parallel()

	conn := mocks.CreateConn()
	c := NewConn(conn, Options{})
	c.Start()

	conn.Close()
	if _, ok := c.ReadLine(); ok {
		t.Error("Lines should be closed")
	}
	<-c.Done()
	if err := c.Err(); err != nil {
		t.Error("Unexpected error:", err)
	}
	if !c.IsClosed() {
		t.Error("Should be closed")
	}
	c.Close()
}

func TestConn_SiphonError(t *testing.T) {
	t.Parallel()

	conn := mocks.CreateConn()
	c := NewConn(conn, Options{})
	c.Start()

	boom := errors.New("boom")
	conn.Fail(boom)
	<-c.Done()
	if err := c.Err(); err != boom {
		t.Error("Unexpected:", err, "should be:", boom)
	}
	c.Close()
	if !conn.IsClosed() {
		t.Error("The socket should be closed")
	}
}

func TestConn_LongLine(t *testing.T) {
	t.Parallel()

	conn := mocks.CreateConn()
	c := NewConn(conn, Options{})
	c.Start()
	defer c.Close()

	long := make([]byte, bufferSize+10)
	for i := range long {
		long[i] = 'a'
	}
	go func() {
		conn.Send(long)
		conn.SendString("\r\nPING :x\r\n")
	}()

	line, ok := c.ReadLine()
	if !ok {
		t.Fatal("Connection closed early")
	}
	if string(line) != "PING :x" {
		t.Error("Over-long line should have been dropped, got:", len(line))
	}
}

func TestConn_Write(t *testing.T) {
	t.Parallel()

	conn := mocks.CreateConn()
	c := NewConn(conn, Options{Name: "test"})
	c.Start()

	go func() {
		if _, err := c.Write([]byte("NICK me\nUSER a b c :d")); err != nil {
			t.Error("Unexpected error:", err)
		}
		l := irc.NewLine("", irc.PRIVMSG, "#chan", "hello there")
		if err := c.WriteLine(l); err != nil {
			t.Error("Unexpected error:", err)
		}
	}()

	for _, exp := range []string{
		"NICK me\r\n",
		"USER a b c :d\r\n",
		"PRIVMSG #chan :hello there\r\n",
	} {
		if got := string(conn.Receive()); got != exp {
			t.Errorf("Unexpected: %q should be: %q", got, exp)
		}
	}

	c.Close()
	if _, err := c.Write([]byte("QUIT\r\n")); err != ErrClosed {
		t.Error("Unexpected:", err, "should be:", ErrClosed)
	}
}

func TestConn_Flush(t *testing.T) {
	t.Parallel()

	conn := mocks.CreateConn()
	c := NewConn(conn, Options{Name: "test"})
	c.Start()

	flushed := make(chan struct{})
	go func() {
		c.Write([]byte("ERROR :Closing link\r\n"))
		c.Flush()
		close(flushed)
	}()

	if got := string(conn.Receive()); got != "ERROR :Closing link\r\n" {
		t.Error("Unexpected:", got)
	}
	select {
	case <-flushed:
	case <-time.After(time.Second):
		t.Error("Flush did not return")
	}

	c.Close()
	c.Flush()
}

func TestConn_FloodProtect(t *testing.T) {
	t.Parallel()

	conn := mocks.CreateConn()
	c := NewConn(conn, Options{
		FloodTimeout: 10 * time.Millisecond,
		FloodStep:    2 * time.Millisecond,
		Scale:        time.Millisecond,
	})
	c.Start()
	defer c.Close()

	const n = 10
	go func() {
		for i := 0; i < n; i++ {
			if _, err := c.Write([]byte("PRIVMSG #a :spam\r\n")); err != nil {
				t.Error("Unexpected error:", err)
			}
		}
	}()

	for i := 0; i < n; i++ {
		if _, ok := conn.ReceiveTimeout(time.Second); !ok {
			t.Fatal("Line", i, "never arrived")
		}
	}
}

func TestConn_Keepalive(t *testing.T) {
	t.Parallel()

	conn := mocks.CreateConn()
	c := NewConn(conn, Options{Keepalive: 5 * time.Millisecond})
	c.Start()
	defer c.Close()

	got, ok := conn.ReceiveTimeout(time.Second)
	if !ok {
		t.Fatal("No ping was sent")
	}
	if string(got) != string(ping) {
		t.Errorf("Unexpected: %q should be: %q", got, ping)
	}
}

func TestConn_calcSleepTime(t *testing.T) {
	t.Parallel()

	c := NewConn(nil, Options{})
	if sleep := c.calcSleepTime(time.Now(), 0); sleep != 0 {
		t.Error("Unexpected:", sleep)
	}

	c = NewConn(nil, Options{
		FloodTimeout: 10 * time.Millisecond,
		FloodStep:    2 * time.Millisecond,
		Scale:        time.Millisecond,
	})
	now := time.Now()
	c.lastwrite = now
	for i := 1; i <= 5; i++ {
		if sleep := c.calcSleepTime(now, 0); sleep != 0 {
			t.Error(i, "Unexpected:", sleep)
		}
	}
	if sleep := c.calcSleepTime(now, 0); sleep != 2*time.Millisecond {
		t.Error("Unexpected:", sleep, "should be:", 2*time.Millisecond)
	}

	// Long lines cost more.
	c = NewConn(nil, Options{
		FloodLenPenalty: 10,
		FloodTimeout:    10 * time.Millisecond,
		Scale:           time.Millisecond,
	})
	c.lastwrite = now
	if sleep := c.calcSleepTime(now, 100); sleep != 0 {
		t.Error("Unexpected:", sleep)
	}
	if sleep := c.calcSleepTime(now, 100); sleep != 10*time.Millisecond {
		t.Error("Unexpected:", sleep, "should be:", 10*time.Millisecond)
	}
}

func TestDial(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Write([]byte(":srv NOTICE * :hello\r\n"))
		conn.Close()
	}()

	raw, err := Dial(context.Background(), ln.Addr().String(), DialOptions{Timeout: time.Second})
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	c := NewConn(raw, Options{})
	c.Start()
	defer c.Close()

	line, ok := c.ReadLine()
	if !ok || string(line) != ":srv NOTICE * :hello" {
		t.Error("Unexpected:", string(line), ok)
	}
}

func TestDial_Refused(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	if _, err = Dial(context.Background(), addr, DialOptions{Timeout: time.Second}); err == nil {
		t.Error("Expected an error")
	}
}
