package linestack

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jelmer/ctrlproxy-sub000/data"
	"github.com/jelmer/ctrlproxy-sub000/irc"
	"github.com/jelmer/ctrlproxy-sub000/parse"
	"github.com/pkg/errors"
)

var baseTime = time.Unix(1700000000, 0).UTC()

type opener func(t *testing.T, interval int) *Linestack

var backends = map[string]opener{
	"file": func(t *testing.T, interval int) *Linestack {
		b, err := OpenFile(Options{Dir: t.TempDir()})
		if err != nil {
			t.Fatal("Unexpected error:", err)
		}
		return New(b, Options{SnapshotInterval: interval})
	},
	"kv": func(t *testing.T, interval int) *Linestack {
		b, err := OpenKV(Options{})
		if err != nil {
			t.Fatal("Unexpected error:", err)
		}
		return New(b, Options{SnapshotInterval: interval})
	},
}

func newState() *data.State {
	return data.NewState(nil, "me", "u", "h")
}

func privmsg(i int) *irc.Line {
	l := irc.NewLine("nick!u@h", irc.PRIVMSG, "#chan", strconv.Itoa(i))
	l.Time = baseTime.Add(time.Duration(i) * time.Second)
	return l
}

func collect(t *testing.T, ls *Linestack, from, to *Marker) []*irc.Line {
	t.Helper()
	var lines []*irc.Line
	err := ls.Traverse(context.Background(), from, to, func(l *irc.Line) error {
		lines = append(lines, l)
		return nil
	})
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	return lines
}

func TestLinestack_TenThousand(t *testing.T) {
	t.Parallel()

	for name, open := range backends {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ls := open(t, 0)
			defer ls.Close()

			st := newState()
			start := ls.Marker()
			for i := 0; i < 10000; i++ {
				if err := ls.Insert(privmsg(i), st); err != nil {
					t.Fatal("Unexpected error:", err)
				}
			}

			lines := collect(t, ls, start, nil)
			if len(lines) != 10000 {
				t.Fatal("Unexpected line count:", len(lines))
			}
			for i, l := range lines {
				if exp, val := strconv.Itoa(i), l.Message(); exp != val {
					t.Fatal("Unexpected:", val, "should be:", exp)
				}
				if !l.Time.Equal(baseTime.Add(time.Duration(i) * time.Second)) {
					t.Fatal("Unexpected time:", l.Time)
				}
				if l.Direction != irc.FromServer {
					t.Fatal("Unexpected direction:", l.Direction)
				}
			}
		})
	}
}

func TestLinestack_Markers(t *testing.T) {
	t.Parallel()

	for name, open := range backends {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ls := open(t, 5)
			defer ls.Close()

			st := newState()
			var markers []*Marker
			for i := 0; i < 30; i++ {
				markers = append(markers, ls.Marker())
				if err := ls.Insert(privmsg(i), st); err != nil {
					t.Fatal("Unexpected error:", err)
				}
			}
			markers = append(markers, ls.Marker())

			for i := 1; i < len(markers); i++ {
				if markers[i].Pos() <= markers[i-1].Pos() {
					t.Error("Markers must increase:", markers[i-1].Pos(), markers[i].Pos())
				}
			}

			for _, pair := range [][2]int{{0, 30}, {3, 17}, {12, 13}, {20, 20}, {29, 30}} {
				from, to := markers[pair[0]], markers[pair[1]]
				lines := collect(t, ls, from, to)
				if exp, val := pair[1]-pair[0], len(lines); exp != val {
					t.Error("Unexpected:", val, "should be:", exp)
					continue
				}
				for j, l := range lines {
					if exp, val := strconv.Itoa(pair[0]+j), l.Message(); exp != val {
						t.Error("Unexpected:", val, "should be:", exp)
					}
				}
			}

			if exp, val := 31, ls.NumMarkers(); exp != val {
				t.Error("Unexpected:", val, "should be:", exp)
			}
			for _, m := range markers {
				if err := ls.Free(m); err != nil {
					t.Error("Unexpected error:", err)
				}
			}
			if ls.NumMarkers() != 0 {
				t.Error("Markers left:", ls.NumMarkers())
			}
		})
	}
}

func TestLinestack_MarkerErrors(t *testing.T) {
	t.Parallel()

	a := backends["kv"](t, 0)
	b := backends["kv"](t, 0)
	defer a.Close()
	defer b.Close()

	m := a.Marker()
	if err := b.Free(m); err != ErrForeignMarker {
		t.Error("Unexpected error:", err)
	}
	if err := b.Traverse(context.Background(), m, nil, func(*irc.Line) error { return nil }); err != ErrForeignMarker {
		t.Error("Unexpected error:", err)
	}
	if err := a.Free(m); err != nil {
		t.Error("Unexpected error:", err)
	}
	if err := a.Free(m); err != ErrFreedMarker {
		t.Error("Unexpected error:", err)
	}
	if _, err := a.State(context.Background(), m); err != ErrFreedMarker {
		t.Error("Unexpected error:", err)
	}

	if _, err := a.MarkerAt(a.Marker().Pos() + 1); err != ErrBadMarker {
		t.Error("Unexpected error:", err)
	}
	if _, err := a.MarkerAt(-1); err != ErrBadMarker {
		t.Error("Unexpected error:", err)
	}
}

func TestLinestack_NeedsState(t *testing.T) {
	t.Parallel()

	for name, open := range backends {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ls := open(t, 0)
			defer ls.Close()

			if err := ls.Insert(privmsg(0), nil); err != ErrNoSnapshot {
				t.Error("Unexpected error:", err)
			}
			if _, err := ls.State(context.Background(), nil); errors.Cause(err) != ErrNoSnapshot {
				t.Error("Unexpected error:", err)
			}
			if err := ls.Insert(privmsg(0), newState()); err != nil {
				t.Error("Unexpected error:", err)
			}
			// Once a snapshot exists the state may be left out.
			if err := ls.Insert(privmsg(1), nil); err != nil {
				t.Error("Unexpected error:", err)
			}
			if n := len(collect(t, ls, nil, nil)); n != 2 {
				t.Error("Unexpected line count:", n)
			}
		})
	}
}

var history = []string{
	":me!u@h JOIN #chan",
	":srv 353 me = #chan :@me a b",
	":srv 366 me #chan :End of /NAMES list.",
	":a!x@y NICK c",
	":srv 332 me #chan :the topic",
	":op!o@p MODE #chan +k key",
	"> PRIVMSG #chan :said by a client",
	":b!u@h PART #chan",
	":c!x@y PRIVMSG #chan :hi",
	":me!u@h JOIN #two",
	":srv 353 me = #two :me d",
	":srv 353 me = #two :e",
	":srv 366 me #two :End of /NAMES list.",
	":d!u@h QUIT :gone",
	":srv 367 me #chan *!*@x op 5",
	":srv 367 me #chan *!*@y op 6",
	":srv 368 me #chan :End of channel ban list",
	":friend!f@h PRIVMSG me :psst",
	":srv 005 me CASEMAPPING=ascii PREFIX=(qov)~@+ :are supported",
	":op!o@p MODE #chan +q me",
	":op!o@p KICK #two me :bye",
	":srv 306 me :away",
}

func historyLine(t *testing.T, i int, raw string) *irc.Line {
	dir := irc.FromServer
	if strings.HasPrefix(raw, "> ") {
		raw, dir = raw[2:], irc.ToServer
	}
	l, err := parse.ParseDirected(raw, dir)
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	l.Time = baseTime.Add(time.Duration(i) * time.Second)
	return l
}

func TestLinestack_State(t *testing.T) {
	t.Parallel()

	for name, open := range backends {
		for _, interval := range []int{1, 2, 3, 7, 1000} {
			open, interval := open, interval
			t.Run(name+"/"+strconv.Itoa(interval), func(t *testing.T) {
				t.Parallel()
				ls := open(t, interval)
				defer ls.Close()

				live := newState()
				var markers []*Marker
				var states []*data.State
				snap := func() {
					c, err := live.Clone()
					if err != nil {
						t.Fatal("Unexpected error:", err)
					}
					markers = append(markers, ls.Marker())
					states = append(states, c)
				}

				for i, raw := range history {
					l := historyLine(t, i, raw)
					if i > 0 {
						snap()
					}
					if err := ls.Insert(l, live); err != nil {
						t.Fatal("Unexpected error:", err)
					}
					if _, err := live.Update(l); err != nil {
						t.Fatal("Unexpected error:", err)
					}
				}
				snap()

				for i, m := range markers {
					st, err := ls.State(context.Background(), m)
					if err != nil {
						t.Fatalf("%d) Unexpected error: %v", i, err)
					}
					if !st.Equal(states[i]) {
						a, _ := st.Marshal()
						b, _ := states[i].Marshal()
						t.Errorf("%d) States differ:\n%s\n%s", i, a, b)
					}
					if err = st.CheckMembership(); err != nil {
						t.Errorf("%d) Unexpected error: %v", i, err)
					}
				}

				now, err := ls.State(context.Background(), nil)
				if err != nil {
					t.Fatal("Unexpected error:", err)
				}
				if !now.Equal(live) {
					t.Error("Current state differs from the live one.")
				}
			})
		}
	}
}

func TestLinestack_TraverseObject(t *testing.T) {
	t.Parallel()

	ls := backends["kv"](t, 0)
	defer ls.Close()

	st := newState()
	for i, raw := range history {
		if err := ls.Insert(historyLine(t, i, raw), st); err != nil {
			t.Fatal("Unexpected error:", err)
		}
	}

	var got []string
	err := ls.TraverseObject(context.Background(), "#CHAN", nil, nil, func(l *irc.Line) error {
		got = append(got, l.Command)
		return nil
	})
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	// Numerics carry the channel second, only lines naming it first count.
	exp := []string{irc.JOIN, irc.MODE, irc.PRIVMSG, irc.PART, irc.PRIVMSG, irc.MODE}
	if strings.Join(got, " ") != strings.Join(exp, " ") {
		t.Error("Unexpected:", got, "should be:", exp)
	}

	got = nil
	err = ls.TraverseObject(context.Background(), "friend", nil, nil, func(l *irc.Line) error {
		got = append(got, l.Message())
		return nil
	})
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	if len(got) != 1 || got[0] != "psst" {
		t.Error("Unexpected:", got)
	}
}

type lineSink struct {
	lines []*irc.Line
}

func (s *lineSink) WriteLine(l *irc.Line) error {
	s.lines = append(s.lines, l)
	return nil
}

func TestLinestack_Send(t *testing.T) {
	t.Parallel()

	ls := backends["kv"](t, 0)
	defer ls.Close()

	st := newState()
	from := ls.Marker()
	for i, raw := range []string{
		":me!u@h JOIN #chan",
		":a!u@h PRIVMSG #chan :hello there",
		":a!u@h PRIVMSG #chan :\x01ACTION waves\x01",
		":srv NOTICE me :notice",
		":a!u@h PRIVMSG me :\x01VERSION\x01",
		":srv 474 me #banned :Cannot join channel (+b)",
		":srv 332 me #chan :the topic",
	} {
		if err := ls.Insert(historyLine(t, i, raw), st); err != nil {
			t.Fatal("Unexpected error:", err)
		}
	}

	tests := []struct {
		Opts SendOptions
		Exp  []string
	}{
		{SendOptions{}, []string{
			":me!u@h JOIN #chan",
			":a!u@h PRIVMSG #chan :hello there",
			":a!u@h PRIVMSG #chan :\x01ACTION waves\x01",
			":srv NOTICE me :notice",
			":srv 332 me #chan :the topic",
		}},
		{SendOptions{DataOnly: true}, []string{
			":a!u@h PRIVMSG #chan :hello there",
			":a!u@h PRIVMSG #chan :\x01ACTION waves\x01",
			":srv NOTICE me :notice",
		}},
		{SendOptions{Timed: true, DataOnly: true, TimeOffset: time.Hour, Location: time.UTC}, []string{
			":a!u@h PRIVMSG #chan :[23:13:21] hello there",
			":a!u@h PRIVMSG #chan :\x01ACTION waves\x01",
			":srv NOTICE me :[23:13:23] notice",
		}},
		{SendOptions{Timed: true, DataOnly: true, Location: time.FixedZone("CET", 3600)}, []string{
			":a!u@h PRIVMSG #chan :[23:13:21] hello there",
			":a!u@h PRIVMSG #chan :\x01ACTION waves\x01",
			":srv NOTICE me :[23:13:23] notice",
		}},
	}

	for i, test := range tests {
		sink := &lineSink{}
		if err := ls.Send(context.Background(), from, nil, sink, test.Opts); err != nil {
			t.Errorf("%d) Unexpected error: %v", i, err)
			continue
		}
		if len(sink.lines) != len(test.Exp) {
			t.Errorf("%d) Unexpected lines: %v", i, sink.lines)
			continue
		}
		for j, exp := range test.Exp {
			if val := sink.lines[j].String(); val != exp {
				t.Errorf("%d) Unexpected: %q should be: %q", i, val, exp)
			}
		}
	}
}

func TestLinestack_SendCancel(t *testing.T) {
	t.Parallel()

	ls := backends["kv"](t, 0)
	defer ls.Close()

	st := newState()
	for i := 0; i < 10; i++ {
		if err := ls.Insert(privmsg(i), st); err != nil {
			t.Fatal("Unexpected error:", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	err := ls.Send(ctx, nil, nil, irc.WriterFunc(func(*irc.Line) error {
		n++
		if n == 3 {
			cancel()
		}
		return nil
	}), SendOptions{})
	if err != context.Canceled {
		t.Error("Unexpected error:", err)
	}
	if n != 3 {
		t.Error("Replay should stop once cancelled:", n)
	}
}

func TestLinestack_Session(t *testing.T) {
	t.Parallel()

	ls := backends["kv"](t, 0)
	defer ls.Close()

	st := newState()
	if err := ls.Insert(privmsg(0), st); err != nil {
		t.Fatal(err)
	}

	s := NewSession(ls)
	defer s.Close()

	var out bytes.Buffer
	ctx := context.Background()
	if err := s.Run(ctx, CmdMark, &out); err != nil {
		t.Fatal("Unexpected error:", err)
	}
	if err := ls.Insert(privmsg(1), st); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	if err := s.Run(ctx, CmdReplay, &out); err != nil {
		t.Fatal("Unexpected error:", err)
	}
	if !strings.Contains(out.String(), "PRIVMSG #chan 1") || strings.Contains(out.String(), "#chan 0") {
		t.Error("Unexpected replay:", out.String())
	}

	out.Reset()
	if err := s.Run(ctx, CmdDumpState, &out); err != nil {
		t.Fatal("Unexpected error:", err)
	}
	if !strings.Contains(out.String(), `"me": "me"`) {
		t.Error("Unexpected dump:", out.String())
	}

	for _, name := range []string{"mark", "REPLAY", "dump-state"} {
		if c, err := ParseCommand(name); err != nil || !strings.EqualFold(c.String(), name) {
			t.Error("Unexpected:", c, err)
		}
	}
	if _, err := ParseCommand("shell"); err == nil {
		t.Error("Expected an error.")
	}
}

func TestLinestack_Registry(t *testing.T) {
	t.Parallel()

	names := Backends()
	if len(names) < 2 || names[0] != "file" || names[1] != "kv" {
		t.Error("Unexpected backends:", names)
	}

	if _, err := Open("sqlite", Options{}); errors.Cause(err) != ErrUnknownBackend {
		t.Error("Unexpected error:", err)
	}

	ls, err := Open("kv", Options{})
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	ls.Close()
}

func TestFile_Reopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ls, err := Open("file", Options{Dir: dir, Sync: true, SnapshotInterval: 4})
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	st := newState()
	for i := 0; i < 10; i++ {
		if err = ls.Insert(privmsg(i), st); err != nil {
			t.Fatal("Unexpected error:", err)
		}
	}
	end := ls.Marker().Pos()

	if _, err = Open("file", Options{Dir: dir}); err != ErrLocked {
		t.Error("Unexpected error:", err)
	}
	if err = ls.Close(); err != nil {
		t.Fatal("Unexpected error:", err)
	}

	// A crash in the middle of a write leaves a torn record behind.
	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		t.Fatal(err)
	}
	f.Write([]byte{0x08, 0, 0, 0, 1, 2, 3, 4, 0xff, 0, 0, 0, 'x'})
	f.Close()

	ls, err = Open("file", Options{Dir: dir, SnapshotInterval: 4})
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	defer ls.Close()

	m := ls.Marker()
	if exp, val := end, m.Pos(); exp != val {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if n := len(collect(t, ls, nil, nil)); n != 10 {
		t.Error("Unexpected line count:", n)
	}
	if exp, val := end, ls.Epoch(); exp != val {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	// The snapshot on disk is from the last session.
	if err = ls.Insert(privmsg(10), nil); err != ErrNoSnapshot {
		t.Error("Unexpected error:", err)
	}
	if err = ls.Insert(privmsg(10), newState()); err != nil {
		t.Error("Unexpected error:", err)
	}
	if n := len(collect(t, ls, m, nil)); n != 1 {
		t.Error("Unexpected line count:", n)
	}

	restored, err := ls.MarkerAt(end)
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	if _, err = ls.State(context.Background(), restored); err != nil {
		t.Error("Unexpected error:", err)
	}
}

func TestFile_BadMagic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("not a linestack"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFile(Options{Dir: dir}); err != ErrBadMagic {
		t.Error("Unexpected error:", err)
	}
	if _, err := OpenFile(Options{}); err == nil {
		t.Error("Expected an error without a directory.")
	}
}

func TestKV_Reopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ls, err := Open("kv", Options{Dir: dir, SnapshotInterval: 3})
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	live := newState()
	for i, raw := range history[:9] {
		l := historyLine(t, i, raw)
		if err = ls.Insert(l, live); err != nil {
			t.Fatal("Unexpected error:", err)
		}
		live.Update(l)
	}
	end := ls.Marker().Pos()
	if err = ls.Close(); err != nil {
		t.Fatal("Unexpected error:", err)
	}

	ls, err = Open("kv", Options{Dir: dir, SnapshotInterval: 3})
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	defer ls.Close()

	if exp, val := end, ls.Marker().Pos(); exp != val {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	st, err := ls.State(context.Background(), nil)
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	if !st.Equal(live) {
		t.Error("Reopened state differs.")
	}
	if err = ls.Insert(historyLine(t, 9, history[9]), nil); err != ErrNoSnapshot {
		t.Error("Unexpected error:", err)
	}
	if err = ls.Insert(historyLine(t, 9, history[9]), st); err != nil {
		t.Error("Unexpected error:", err)
	}
}

func TestLinestack_Recorded(t *testing.T) {
	t.Parallel()

	ls := backends["kv"](t, 0)
	defer ls.Close()

	st := newState()
	for i, raw := range []string{
		":me!u@h JOIN #chan",
		"> JOIN #banned",
		":srv 474 me #banned :Cannot join channel (+b)",
		":srv PING :srv",
		"> PONG :srv",
		"> PRIVMSG nickserv :IDENTIFY hunter2",
		"> PRIVMSG a :\x01VERSION\x01",
		"> PRIVMSG #chan :\x01ACTION waves\x01",
		"> PRIVMSG #chan :hello",
	} {
		if err := ls.Insert(historyLine(t, i, raw), st); err != nil {
			t.Fatal("Unexpected error:", err)
		}
	}

	var stored []string
	for _, l := range collect(t, ls, nil, nil) {
		stored = append(stored, l.Command)
	}
	exp := []string{irc.JOIN, "474", irc.PRIVMSG, irc.PRIVMSG}
	if strings.Join(stored, " ") != strings.Join(exp, " ") {
		t.Error("Unexpected:", stored, "should be:", exp)
	}

	sink := &lineSink{}
	if err := ls.Send(context.Background(), nil, nil, sink, SendOptions{}); err != nil {
		t.Fatal("Unexpected error:", err)
	}
	var sent []string
	for _, l := range sink.lines {
		sent = append(sent, l.Command+" "+l.Arg(0))
	}
	exp = []string{"JOIN #chan", "PRIVMSG #chan", "PRIVMSG #chan"}
	if strings.Join(sent, ",") != strings.Join(exp, ",") {
		t.Error("Unexpected:", sent, "should be:", exp)
	}
}

func TestLinestack_Reset(t *testing.T) {
	t.Parallel()

	for name, open := range backends {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ls := open(t, 1000)
			defer ls.Close()

			old := newState()
			l := historyLine(t, 0, ":me!u@h JOIN #old")
			if err := ls.Insert(l, old); err != nil {
				t.Fatal("Unexpected error:", err)
			}
			old.Update(l)
			before := ls.Marker()

			live := newState()
			if err := ls.Reset(live); err != nil {
				t.Fatal("Unexpected error:", err)
			}
			if exp, val := before.Pos(), ls.Epoch(); exp != val {
				t.Error("Unexpected:", val, "should be:", exp)
			}
			l = historyLine(t, 1, ":me!u@h JOIN #new")
			if err := ls.Insert(l, nil); err != nil {
				t.Fatal("Unexpected error:", err)
			}
			live.Update(l)

			st, err := ls.State(context.Background(), nil)
			if err != nil {
				t.Fatal("Unexpected error:", err)
			}
			if !st.Equal(live) {
				t.Error("Rebuilt state differs from the live one:", st.Channels())
			}
			if st.Channel("#old") != nil {
				t.Error("Channel of the last connection came back.")
			}

			st, err = ls.State(context.Background(), before)
			if err != nil {
				t.Fatal("Unexpected error:", err)
			}
			if st.Channel("#old") != nil || st.Channel("#new") != nil {
				t.Error("The epoch should start out empty:", st.Channels())
			}

			if err = ls.Reset(nil); err != nil {
				t.Fatal("Unexpected error:", err)
			}
			if err = ls.Insert(historyLine(t, 2, ":me!u@h JOIN #x"), nil); err != ErrNoSnapshot {
				t.Error("Unexpected error:", err)
			}
		})
	}
}

func TestFile_UnpublishedSnapshot(t *testing.T) {
	t.Parallel()

	ls := backends["file"](t, 0)
	defer ls.Close()

	if err := ls.Insert(privmsg(0), newState()); err != nil {
		t.Fatal("Unexpected error:", err)
	}

	// A concurrent append lists its snapshot before it moves the end.
	b := ls.backend.(*fileBackend)
	end := b.End()
	b.smu.Lock()
	b.snapshots = append(b.snapshots, end)
	b.smu.Unlock()

	pos, rec, err := b.SnapshotAt(end)
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	if exp := b.snapshots[0]; pos != exp {
		t.Error("Unexpected:", pos, "should be:", exp)
	}
	if rec.Kind != KindSnapshot {
		t.Error("Unexpected kind:", rec.Kind)
	}
	if _, err = ls.State(context.Background(), nil); err != nil {
		t.Error("Unexpected error:", err)
	}
}

func TestStamp(t *testing.T) {
	t.Parallel()

	at := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	zone := time.FixedZone("UTC+2", 2*3600)
	tests := []struct {
		Line *irc.Line
		Loc  *time.Location
		Exp  string
	}{
		{irc.NewLine("a!b@c", irc.PRIVMSG, "#chan", "hi"), time.UTC, "[04:04:05] hi"},
		{irc.NewLine("a!b@c", irc.NOTICE, "me", "hi"), zone, "[06:04:05] hi"},
		{irc.NewLine("a!b@c", irc.PRIVMSG, "#chan", "hi"), nil,
			"[" + at.Add(time.Hour).In(time.Local).Format("15:04:05") + "] hi"},
		{irc.NewLine("a!b@c", irc.PRIVMSG, "#chan", "\x01ACTION waves\x01"), zone, "\x01ACTION waves\x01"},
		{irc.NewLine("a!b@c", irc.TOPIC, "#chan", "hi"), zone, "hi"},
	}

	for _, test := range tests {
		test.Line.Time = at
		got := Stamp(test.Line, time.Hour, test.Loc)
		if msg := got.Args[len(got.Args)-1]; msg != test.Exp {
			t.Errorf("Expected: %q, got: %q", test.Exp, msg)
		}
		if test.Line.Args[len(test.Line.Args)-1] == test.Exp && got != test.Line {
			t.Error("Unchanged lines should not be copied.")
		}
	}
}
