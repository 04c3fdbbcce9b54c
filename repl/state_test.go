package repl

import (
	"testing"

	"github.com/jelmer/ctrlproxy-sub000/data"
	"github.com/jelmer/ctrlproxy-sub000/irc"
	"github.com/jelmer/ctrlproxy-sub000/parse"
)

func stateFrom(t *testing.T, raws ...string) *data.State {
	t.Helper()
	st := data.NewState(nil, "me", "user", "host")
	for _, raw := range raws {
		l, err := parse.Parse(raw)
		if err != nil {
			t.Fatal("Unexpected error:", err)
		}
		if _, err = st.Update(l); err != nil {
			t.Fatal("Unexpected error:", err)
		}
	}
	return st
}

func sendState(t *testing.T, st *data.State, opts StateOptions) []string {
	t.Helper()
	var got []string
	w := irc.WriterFunc(func(l *irc.Line) error {
		got = append(got, l.String())
		return nil
	})
	if err := SendState(w, st, opts); err != nil {
		t.Fatal("Unexpected error:", err)
	}
	return got
}

func TestSendState(t *testing.T) {
	t.Parallel()

	st := stateFrom(t,
		":me!user@host JOIN #chan",
		":srv 332 me #chan :the topic",
		":srv 333 me #chan setter 1600000000",
		":srv 353 me @ #chan :me @op +voice",
		":srv 366 me #chan :End",
		":srv 221 me +iw",
	)

	got := sendState(t, st, StateOptions{Origin: "proxy"})
	check(t, got, []string{
		":me!user@host JOIN #chan",
		":proxy 332 me #chan :the topic",
		":proxy 333 me #chan setter 1600000000",
		":proxy 353 me @ #chan :me @op +voice",
		":proxy 366 me #chan :End of /NAMES list",
		":me MODE me +iw",
	})
}

func TestSendState_Nick(t *testing.T) {
	t.Parallel()

	st := stateFrom(t, ":me!user@host JOIN #a")

	tests := []struct {
		ClientNick string
		First      string
	}{
		{"", ":me!user@host JOIN #a"},
		{"me", ":me!user@host JOIN #a"},
		{"ME", ":me!user@host JOIN #a"},
		{"oldnick", ":oldnick!user@host NICK me"},
	}

	for _, test := range tests {
		got := sendState(t, st, StateOptions{Origin: "proxy", ClientNick: test.ClientNick})
		if len(got) == 0 || got[0] != test.First {
			t.Errorf("%q: Unexpected: %q should be: %q", test.ClientNick, got, test.First)
		}
	}
}

func TestSendState_NotJoined(t *testing.T) {
	t.Parallel()

	st := stateFrom(t,
		":me!user@host JOIN #a",
		":srv 353 me = #other :alice bob",
		":srv 366 me #other :End",
		":srv 367 me #elsewhere *!*@x op 5",
		":srv 368 me #elsewhere :End of channel ban list",
	)

	got := sendState(t, st, StateOptions{Origin: "proxy"})
	check(t, got, []string{
		":me!user@host JOIN #a",
		":proxy 353 me = #a me",
		":proxy 366 me #a :End of /NAMES list",
	})
}

func TestSendState_Empty(t *testing.T) {
	t.Parallel()

	got := sendState(t, data.NewState(nil, "me", "", ""), StateOptions{})
	if len(got) != 0 {
		t.Error("Unexpected:", got)
	}
}
