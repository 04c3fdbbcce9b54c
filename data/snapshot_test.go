package data

import (
	"testing"
)

func busyState(t *testing.T) *State {
	s := newState()
	feed(t, s,
		":srv 004 me srv.example.org ircd-1.0 iow beIklmnost",
		":srv 005 me CASEMAPPING=ascii PREFIX=(qov)~@+ NETWORK=Example :are supported",
		":"+selfHost+" JOIN #chan",
		":"+selfHost+" JOIN #Quiet",
		":srv 353 me = #chan :~me @op +voice plain",
		":srv 366 me #chan :End of /NAMES list.",
		":srv 332 me #chan :hello world",
		":srv 333 me #chan op 1500",
		":srv 324 me #chan +ntk key",
		":srv 367 me #chan *!*@bad op 1000",
		":srv 368 me #chan :End of channel ban list",
		":srv 352 me #chan u h s plain H :2 Plain Person",
		":friend!u@h PRIVMSG me :hi",
		":srv 306 me :away",
	)
	return s
}

func TestSnapshot_RoundTrip(t *testing.T) {
	t.Parallel()

	s := busyState(t)
	b, err := s.Marshal()
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}

	r, err := Unmarshal(b)
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	if err = r.CheckMembership(); err != nil {
		t.Error("Unexpected error:", err)
	}
	if !s.Equal(r) {
		again, _ := r.Marshal()
		t.Errorf("Restored state differs:\n%s\n%s", b, again)
	}

	if exp, val := "ascii", r.Info().Casemapping(); exp != val {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := "Example", r.Info().Name(); exp != val {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if exp, val := "srv.example.org", r.Info().ServerName(); exp != val {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	if !r.IsAway() {
		t.Error("Away flag lost.")
	}

	c := r.Channel(channel)
	if c == nil {
		t.Fatal("Channel missing.")
	}
	if exp, val := "key", c.Key(); exp != val {
		t.Error("Unexpected:", val, "should be:", exp)
	}
	names := r.Names(c)
	if len(names) != 4 {
		t.Fatal("Unexpected names:", names)
	}
	found := false
	for _, n := range names {
		if n == "~me" {
			found = true
		}
	}
	if !found {
		t.Error("Owner prefix lost:", names)
	}
	if f := r.Nick("friend"); f == nil || !f.Query {
		t.Error("Query nick lost.")
	}
	if bans := c.List('b'); len(bans) != 1 || bans[0].SetTime != 1000 {
		t.Error("Unexpected bans:", bans)
	}
}

func TestSnapshot_Clone(t *testing.T) {
	t.Parallel()

	s := busyState(t)
	c, err := s.Clone()
	if err != nil {
		t.Fatal("Unexpected error:", err)
	}
	if !s.Equal(c) {
		t.Error("Clone should equal the original.")
	}

	feed(t, c, ":op!u@h PART #chan")
	if s.Equal(c) {
		t.Error("Changing the clone should not touch the original.")
	}
	if s.Nick("op") == nil {
		t.Error("Original lost a nick.")
	}
	if c.Info() == s.Info() {
		t.Error("Clone should have its own network info.")
	}
}

func TestSnapshot_Equal(t *testing.T) {
	t.Parallel()

	a := newState()
	b := newState()
	feed(t, a, ":"+selfHost+" JOIN #chan", ":x!u@h JOIN #chan", ":y!u@h JOIN #chan")
	feed(t, b, ":"+selfHost+" JOIN #chan", ":y!u@h JOIN #chan", ":x!u@h JOIN #chan")

	if !a.Equal(b) {
		t.Error("Join order should not matter.")
	}

	feed(t, b, ":x!u@h PART #chan")
	if a.Equal(b) {
		t.Error("States should differ.")
	}
}

func TestSnapshot_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		Doc string
		Err error
	}{
		{`not json`, nil},
		{`{}`, ErrNoMe},
		{`{"me":"me","nicks":[]}`, ErrNoMe},
		{`{"me":"me","nicks":[{"name":"me"}],` +
			`"channels":[{"name":"#a","type":"=","members":[{"nick":"who"}]}]}`, nil},
	}

	for i, test := range tests {
		s, err := Unmarshal([]byte(test.Doc))
		if err == nil || s != nil {
			t.Errorf("%d) Expected an error", i)
			continue
		}
		if test.Err != nil && err != test.Err {
			t.Errorf("%d) Unexpected error: %v", i, err)
		}
	}
}
