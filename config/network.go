package config

import (
	"net"
	"sync"
	"time"
)

// NetCtx is a context for network parts of the config, values missing from
// the network come from the top level.
type NetCtx struct {
	name    string
	mutex   *sync.RWMutex
	parent  mp
	network mp
}

func (n *NetCtx) rlock()   { n.mutex.RLock() }
func (n *NetCtx) runlock() { n.mutex.RUnlock() }

func (n *NetCtx) get(key string) (interface{}, bool) {
	v, ok := n.network[key]
	return v, ok
}

func (n *NetCtx) getParent(key string) (interface{}, bool) {
	if n.parent == nil {
		return nil, false
	}

	v, ok := n.parent[key]
	return v, ok
}

// Name of the network, empty for the global context.
func (n *NetCtx) Name() string {
	return n.name
}

func (n *NetCtx) Nick() (string, bool) {
	return getStr(n, "nick", true)
}

func (n *NetCtx) Altnick() (string, bool) {
	return getStr(n, "altnick", true)
}

func (n *NetCtx) Username() (string, bool) {
	return getStr(n, "username", true)
}

func (n *NetCtx) Realname() (string, bool) {
	return getStr(n, "realname", true)
}

// Password is the server password, it has no fallback.
func (n *NetCtx) Password() (string, bool) {
	return getStr(n, "password", false)
}

func (n *NetCtx) TLS() (bool, bool) {
	return getBool(n, "tls", true)
}

func (n *NetCtx) NoVerifyCert() (bool, bool) {
	return getBool(n, "noverifycert", true)
}

// SOCKS5 is the host:port of a socks5 proxy to connect through.
func (n *NetCtx) SOCKS5() (string, bool) {
	return getStr(n, "socks5", true)
}

func (n *NetCtx) FloodLenPenalty() uint {
	if val, ok := getUint(n, "floodlenpenalty", true); ok {
		return val
	}
	return defaultFloodLenPenalty
}

func (n *NetCtx) FloodTimeout() time.Duration {
	if val, ok := getFloat64(n, "floodtimeout", true); ok {
		return seconds(val)
	}
	return seconds(defaultFloodTimeout)
}

func (n *NetCtx) FloodStep() time.Duration {
	if val, ok := getFloat64(n, "floodstep", true); ok {
		return seconds(val)
	}
	return seconds(defaultFloodStep)
}

func (n *NetCtx) KeepAlive() time.Duration {
	if val, ok := getFloat64(n, "keepalive", true); ok {
		return seconds(val)
	}
	return seconds(defaultKeepAlive)
}

func (n *NetCtx) NoReconnect() bool {
	val, _ := getBool(n, "noreconnect", true)
	return val
}

func (n *NetCtx) ReconnectTimeout() time.Duration {
	if val, ok := getUint(n, "reconnecttimeout", true); ok {
		return time.Duration(val) * time.Second
	}
	return time.Duration(defaultReconnectTimeout) * time.Second
}

// SnapshotInterval is the number of lines between linestack snapshots.
func (n *NetCtx) SnapshotInterval() uint {
	if val, ok := getUint(n, "snapshot_interval", true); ok {
		return val
	}
	return defaultSnapshotInterval
}

// Replication is the name of the replication backend for the network.
func (n *NetCtx) Replication() string {
	if val, ok := getStr(n, "replication", true); ok {
		return val
	}
	return defaultReplication
}

// ReportTimeOffset shifts the times shown on replayed lines.
func (n *NetCtx) ReportTimeOffset() time.Duration {
	val, _ := getInt(n, "report_time_offset", true)
	return time.Duration(val) * time.Second
}

// Autojoin lists the channels joined after registering.
func (n *NetCtx) Autojoin() []string {
	val, _ := getStrArr(n, "autojoin", false)
	return val
}

// Servers returns the list of servers for the network with a port on each.
func (n *NetCtx) Servers() ([]string, bool) {
	srvs, ok := getStrArr(n, "servers", false)
	if !ok {
		return nil, false
	}
	for i, srv := range srvs {
		if _, _, err := net.SplitHostPort(srv); err != nil {
			srvs[i] = net.JoinHostPort(srv, defaultIrcPort)
		}
	}
	return srvs, true
}
