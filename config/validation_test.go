package config

import (
	"strings"
	"testing"
)

const badconfig = `
loglevel = 5
linestack_sync = "yes"
match = "me"

nick = 6
floodtimeout = "anarchy"
snapshot_interval = -1

[listener]
	listen = 5

[[users]]
	name = false
	masks = [1]

[networks.ircnet]
	servers = 10
	tls = "destroy"
	keepalive = "what"
	reconnecttimeout = 20.0
	report_time_offset = "soon"
	autojoin = "#a"
`

func TestValidation(t *testing.T) {
	t.Parallel()

	c := New().FromString(configuration)
	if ers := c.Validate(); ers != nil {
		t.Error("Unexpected errors:", ers)
	}
}

func TestValidation_Types(t *testing.T) {
	t.Parallel()

	c := New().FromString(badconfig)
	ers := c.Validate()

	expErrs := []string{
		"(global) loglevel",
		"(global) linestack_sync",
		"(global) match",
		"(global) nick",
		"(global) floodtimeout",
		"(global) snapshot_interval",
		"(listener) listen",
		"(users 1) name",
		"(users 1) masks 1",
		"(ircnet) servers",
		"(ircnet) tls",
		"(ircnet) keepalive",
		"(ircnet) reconnecttimeout",
		"(ircnet) report_time_offset",
		"(ircnet) autojoin",
	}

	if len(ers) != len(expErrs) {
		t.Errorf("Expected %d errors, got %d: %v", len(expErrs), len(ers), ers)
	}
	for _, exp := range expErrs {
		found := false
		for _, err := range ers {
			if strings.HasPrefix(err.Error(), exp) {
				found = true
				break
			}
		}
		if !found {
			t.Error("Expected an error starting with:", exp)
		}
	}

	if len(c.Errors()) != len(ers) {
		t.Error("Errors should be kept, got:", c.Errors())
	}
}

func TestValidation_Required(t *testing.T) {
	t.Parallel()

	tests := []struct {
		Config string
		Error  string
	}{
		{``, "Expected at least one network."},
		{`[networks.a]
		nick = "n"
		username = "u"
		realname = "r"`, "(a) Expected at least one server."},
		{`[networks.a]
		servers = ["s"]`, "(a) Nickname is required."},
		{`nick = "n"
		realname = "r"
		[networks.a]
		servers = ["s"]`, "(a) Username is required."},
		{`nick = "n"
		username = "u"
		[networks.a]
		servers = ["s"]`, "(a) Realname is required."},
	}

	for _, test := range tests {
		ers := New().FromString(test.Config).Validate()
		found := false
		for _, err := range ers {
			if err.Error() == test.Error {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected %q among: %v", test.Error, ers)
		}
	}
}

func TestValidation_Values(t *testing.T) {
	t.Parallel()

	const base = `
nick = "n"
username = "u"
realname = "r"
[networks.a]
	servers = ["s"]
`

	tests := []struct {
		Config string
		Error  string
	}{
		{`linestack = "sqlite"`, "(global) linestack must be"},
		{`report_time = "sometimes"`, "(global) report_time must be"},
		{`[listener]
		listen = ":6680"
		password = "plain"`, "(listener) password is not a bcrypt hash"},
		{`[listener]
		password = ""`, "(listener) listen is required."},
		{`[listener]
		listen = ":6680"
		default_network = "b"`, "(listener) default_network b"},
		{`[[users]]
		name = "x"
		password = "plain"`, "(users 1) password is not a bcrypt hash"},
	}

	for _, test := range tests {
		// Tables must come after the top level keys of base.
		var conf string
		if strings.HasPrefix(test.Config, "[") {
			conf = base + test.Config
		} else {
			conf = test.Config + base
		}

		ers := New().FromString(conf).Validate()
		found := false
		for _, err := range ers {
			if strings.HasPrefix(err.Error(), test.Error) {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected %q among: %v", test.Error, ers)
		}
	}
}
