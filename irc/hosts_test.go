package irc

import (
	"testing"
)

func TestHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		Host     Host
		Nick     string
		User     string
		Hostname string
	}{
		{"nick!user@host", "nick", "user", "host"},
		{"nick@user!host", "nick", "", ""},
		{"nick", "nick", "", ""},
		{"irc.server.net", "irc.server.net", "", ""},
	}

	for _, test := range tests {
		if s := test.Host.Nick(); s != test.Nick {
			t.Errorf("Expected: %s, got: %s", test.Nick, s)
		}
		if s := test.Host.Username(); s != test.User {
			t.Errorf("Expected: %s, got: %s", test.User, s)
		}
		if s := test.Host.Hostname(); s != test.Hostname {
			t.Errorf("Expected: %s, got: %s", test.Hostname, s)
		}
		if s := test.Host.String(); s != string(test.Host) {
			t.Errorf("Expected: %v, got: %s", string(test.Host), s)
		}
	}
}

func TestNewHost(t *testing.T) {
	t.Parallel()

	if h := NewHost("nick", "user", "host"); h != "nick!user@host" {
		t.Error("Unexpected:", h, "should be:", "nick!user@host")
	}
	if h := NewHost("nick", "", ""); h != "nick" {
		t.Error("Unexpected:", h, "should be:", "nick")
	}
}

func TestHost_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		Host    Host
		IsValid bool
	}{
		{"", false},
		{"!@", false},
		{"nick", false},
		{"nick!", false},
		{"nick@", false},
		{"nick@host!user", false},
		{"ni ck!user@host", false},
		{"nick!user@host", true},
	}

	for _, test := range tests {
		if result := test.Host.IsValid(); result != test.IsValid {
			t.Errorf("Expected '%v'.IsValid() to be %v.", test.Host, test.IsValid)
		}
	}
}

func TestMask_Split(t *testing.T) {
	t.Parallel()

	nick, user, host := Mask("n?i*ck!u*ser@h*o?st").Split()
	if nick != "n?i*ck" || user != "u*ser" || host != "h*o?st" {
		t.Error("Unexpected:", nick, user, host)
	}

	nick, user, host = Mask("n?i* ck!u*ser@h*o?st").Split()
	if len(nick) != 0 || len(user) != 0 || len(host) != 0 {
		t.Error("Expected empty fragments, got:", nick, user, host)
	}
}

func TestMask_Match(t *testing.T) {
	t.Parallel()

	var mask Mask
	var host Host
	if !mask.Match(host) {
		t.Error("Expected empty case to evaluate true.")
	}

	if !Mask("nick!*@*").Match("nick!@") {
		t.Error("Expected trivial case to evaluate true.")
	}

	host = "nick!user@host"

	positiveMasks := []Mask{
		`nick!user@host`, `NICK!User@HOST`,
		`*`, `*!*@*`, `**!**@**`, `*@host`, `**@host`,
		`nick!*`, `*nick!user@host`, `nick!user@host*`,
		`ni?k!us?r@ho?t`, `????!????@????`, `?ick!user@host`,
		`*nick!us*@host`, `*?ick!user@host`, `nick!u*?r@host`,
		`nick!user@hos?*`,
	}

	for _, m := range positiveMasks {
		if !m.Match(host) {
			t.Errorf("Expected: %v to match %v", m, host)
		}
		if !host.Match(m) {
			t.Errorf("Expected: %v to match %v", host, m)
		}
	}

	negativeMasks := []Mask{
		``, `?nq******c?!*@*`, `nick2!*@*`, `*!*@hostfail`, `*!*@failhost`,
		`?nick!user@host`, `nick!user@host?`,
	}

	for _, m := range negativeMasks {
		if m.Match(host) {
			t.Errorf("Expected: %v not to match %v", m, host)
		}
	}
}
