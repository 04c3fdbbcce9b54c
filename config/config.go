/*
Package config reads the proxy configuration from toml.

An example configuration looks like this:
	# Values at the top level are fallbacks for every network, except for
	# the global-only ones directly below.
	loglevel = "info"
	statedir = "/var/lib/ctrlproxy"
	linestack = "file"          # or "kv"
	linestack_sync = false
	report_time = "replication" # "never", "replication" or "always"
	match = ["mynick", "urgent"]
	markerdb = "/var/lib/ctrlproxy/markers.db" # empty keeps markers in memory
	metrics_listen = "localhost:9121"

	replication = "simple"
	snapshot_interval = 200
	report_time_offset = 0

	nick = "Nick"
	altnick = "Nick_"
	username = "user"
	realname = "Real Name"

	floodlenpenalty = 120
	floodtimeout = 10.0
	floodstep = 2.0
	keepalive = 60.0
	noreconnect = false
	reconnecttimeout = 20

	[listener]
		listen = "localhost:6680"
		password = "$2a$10$..." # ctrlpasswd output
		default_network = "ircnet"

	[[users]]
		name = "me"
		password = "$2a$10$..."
		masks = ["*!*@my.home"]

	[networks.ircnet]
		servers = ["irc.example.org:6697"]
		tls = true
		noverifycert = false
		password = "serverpass"
		socks5 = "localhost:1080"
		autojoin = ["#channel1", "#channel2"]
		replication = "highlight"

Every value of the network tables falls back to the top level, so common
settings are written once.
*/
package config

import (
	"sort"
	"sync"
	"time"

	log "gopkg.in/inconshreveable/log15.v2"
)

const (
	// defaultConfigFileName is the file the proxy reads when none is given.
	defaultConfigFileName = "config.toml"
	// defaultStateDir is where linestacks are kept when not overridden.
	defaultStateDir = "./state"
	// defaultLinestack is the linestack backend used by default.
	defaultLinestack = "file"
	// defaultReplication is the replication backend used by default.
	defaultReplication = "simple"
	// defaultReportTime is the default of report_time.
	defaultReportTime = ReportTimeNever
	// defaultSnapshotInterval is how many lines go between state snapshots.
	defaultSnapshotInterval = uint(200)
	// defaultIrcPort is appended to servers given without a port.
	defaultIrcPort = "6667"
	// defaultFloodLenPenalty is how many characters in a message by default
	// warrant an extra second wait time.
	defaultFloodLenPenalty = uint(120)
	// defaultFloodTimeout is how many seconds worth of penalty must accumulate
	// before setting penalties.
	defaultFloodTimeout = 10.0
	// defaultFloodStep is the default number of seconds between messages once
	// flood protection has been activated.
	defaultFloodStep = 2.0
	// defaultKeepAlive is the default number of seconds to wait on an idle
	// connection before sending a ping.
	defaultKeepAlive = 60.0
	// defaultReconnectTimeout is how many seconds to wait between reconns.
	defaultReconnectTimeout = uint(20)
)

// Values of report_time.
const (
	ReportTimeNever       = "never"
	ReportTimeReplication = "replication"
	ReportTimeAlways      = "always"
)

// Config holds all the information related to the proxy including global
// settings, fallback settings and network specific settings.
type Config struct {
	values mp

	errors   errList
	invalid  errList
	filename string
	protect  sync.RWMutex
}

// New initializes a Config object.
func New() *Config {
	c := &Config{}
	c.clear()

	return c
}

// Clear re-initializes all memory in the configuration.
func (c *Config) Clear() {
	c.protect.Lock()
	defer c.protect.Unlock()

	c.clear()
}

// clear re-initializes all memory in the configuration without locking first.
func (c *Config) clear() {
	c.values = make(mp)
	c.errors = nil
	c.invalid = nil
	c.filename = ""
}

// Network returns the context to read the values of a network with. Leave
// name blank for the global context. Nil when there is no such network.
func (c *Config) Network(name string) *NetCtx {
	c.protect.RLock()
	defer c.protect.RUnlock()

	globalCtx := &NetCtx{mutex: &c.protect, network: c.values}
	if len(name) == 0 {
		return globalCtx
	}

	if net := c.values.get("networks").get(name); net != nil {
		return &NetCtx{name: name, mutex: &c.protect, parent: c.values, network: net}
	}
	return nil
}

// Networks returns the names of the configured networks, sorted.
func (c *Config) Networks() []string {
	c.protect.RLock()
	defer c.protect.RUnlock()

	nets := c.values.get("networks")
	if len(nets) == 0 {
		return nil
	}

	names := make([]string, 0, len(nets))
	for name := range nets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DisplayErrors logs every error collected while loading and validating.
func (c *Config) DisplayErrors(logger log.Logger) {
	c.protect.RLock()
	defer c.protect.RUnlock()

	for _, e := range c.errors {
		logger.Error(e.Error())
	}
	for _, e := range c.invalid {
		logger.Error(e.Error())
	}
}

// Filename returns the name of the file read, or the default.
func (c *Config) Filename() string {
	c.protect.RLock()
	defer c.protect.RUnlock()

	if len(c.filename) > 0 {
		return c.filename
	}
	return defaultConfigFileName
}

func (c *Config) global() *NetCtx {
	return &NetCtx{mutex: &c.protect, network: c.values}
}

// LogLevel is the name of the lowest level logged, "info" by default.
func (c *Config) LogLevel() string {
	if val, ok := getStr(c.global(), "loglevel", false); ok {
		return val
	}
	return "info"
}

// StateDir is the directory linestacks are kept in.
func (c *Config) StateDir() string {
	if val, ok := getStr(c.global(), "statedir", false); ok {
		return val
	}
	return defaultStateDir
}

// Linestack is the linestack backend name.
func (c *Config) Linestack() string {
	if val, ok := getStr(c.global(), "linestack", false); ok {
		return val
	}
	return defaultLinestack
}

// LinestackSync makes linestacks flush every line to disk.
func (c *Config) LinestackSync() bool {
	val, _ := getBool(c.global(), "linestack_sync", false)
	return val
}

// ReportTime says when replayed lines carry their time.
func (c *Config) ReportTime() string {
	if val, ok := getStr(c.global(), "report_time", false); ok {
		return val
	}
	return defaultReportTime
}

// Match is the list of substrings the highlight replication looks for.
func (c *Config) Match() []string {
	val, _ := getStrArr(c.global(), "match", false)
	return val
}

// MarkerDB is the buntdb file replication markers persist in, empty keeps
// them in memory.
func (c *Config) MarkerDB() string {
	val, _ := getStr(c.global(), "markerdb", false)
	return val
}

// MetricsListen is the address to serve prometheus metrics on, empty
// disables it.
func (c *Config) MetricsListen() string {
	val, _ := getStr(c.global(), "metrics_listen", false)
	return val
}

// seconds turns a number of seconds in a float into a duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
