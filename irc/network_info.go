package irc

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// These constants are the 005 token names that get a typed spot inside the
// NetworkInfo type. Everything else is kept as an extra.
const (
	INFO_CASEMAPPING = "CASEMAPPING"
	INFO_PREFIX      = "PREFIX"
	INFO_CHANTYPES   = "CHANTYPES"
	INFO_CHANMODES   = "CHANMODES"
	INFO_CHANLIMIT   = "CHANLIMIT"
	INFO_CHANNELLEN  = "CHANNELLEN"
	INFO_NICKLEN     = "NICKLEN"
	INFO_TOPICLEN    = "TOPICLEN"
	INFO_AWAYLEN     = "AWAYLEN"
	INFO_KICKLEN     = "KICKLEN"
	INFO_MODES       = "MODES"
	INFO_MAXTARGETS  = "MAXTARGETS"
	INFO_NETWORK     = "NETWORK"
)

// These constants are the values used before a server ever announced the
// matching token.
const (
	INFO_DEFAULT_SERVERNAME  = "unknown"
	INFO_DEFAULT_IRCDVERSION = "unknown"
	INFO_DEFAULT_USERMODES   = "iowsx"
	INFO_DEFAULT_LCHANMODES  = "beIklimnopstav"

	INFO_DEFAULT_CASEMAPPING = CasemapRFC1459
	INFO_DEFAULT_PREFIX      = "(ov)@+"
	INFO_DEFAULT_CHANTYPES   = "#&"
	INFO_DEFAULT_CHANMODES   = "beI,k,l,imnpsta"
	INFO_DEFAULT_MODES       = 3
	INFO_DEFAULT_MAXTARGETS  = 1
)

// NoPrefix is what PrefixForMode returns for letters without a status prefix.
const NoPrefix = ' '

// ModeClass says how a channel mode letter treats its argument.
type ModeClass int

// Channel mode classes. ModeList through ModeBoolean follow the four
// CHANMODES groups, ModePrefix is a membership status letter from PREFIX.
const (
	ModeUnknown ModeClass = iota
	ModeList
	ModeAlwaysParam
	ModeSetParam
	ModeBoolean
	ModePrefix
)

// String names the class.
func (m ModeClass) String() string {
	switch m {
	case ModeList:
		return "list"
	case ModeAlwaysParam:
		return "always-param"
	case ModeSetParam:
		return "set-param"
	case ModeBoolean:
		return "boolean"
	case ModePrefix:
		return "prefix"
	}
	return "unknown"
}

// HasParam tells whether a mode of this class consumes an argument when
// being set (set is true) or unset.
func (m ModeClass) HasParam(set bool) bool {
	switch m {
	case ModeList, ModeAlwaysParam, ModePrefix:
		return true
	case ModeSetParam:
		return set
	}
	return false
}

// NetworkInfo is used to record the server capabilities, this later aids in
// comparing names and classifying modes. Values are only ever added or
// replaced by the server, never retracted.
type NetworkInfo struct {
	// The server's self-defined name.
	serverName string
	// The ircd's version.
	ircdVersion string
	// The user modes
	usermodes string
	// The legacy chanmodes from 004.
	lchanmodes string

	casemapping string
	fold        func(string) string
	// modes and prefixes are the two halves of PREFIX, matched by index.
	modes     string
	prefixes  string
	chantypes string
	// chanmodes are the four CHANMODES groups.
	chanmodes [4]string

	chanlimit  int
	channellen int
	nicklen    int
	topiclen   int
	awaylen    int
	kicklen    int
	maxmodes   int
	maxtargets int

	// tokens holds every 005 token seen, by name.
	tokens map[string]string

	protect *sync.RWMutex
}

// NewNetworkInfo initializes a networkinfo struct.
func NewNetworkInfo() *NetworkInfo {
	p := &NetworkInfo{
		serverName:  INFO_DEFAULT_SERVERNAME,
		ircdVersion: INFO_DEFAULT_IRCDVERSION,
		usermodes:   INFO_DEFAULT_USERMODES,
		lchanmodes:  INFO_DEFAULT_LCHANMODES,
		casemapping: INFO_DEFAULT_CASEMAPPING,
		fold:        casefolder(INFO_DEFAULT_CASEMAPPING),
		chantypes:   INFO_DEFAULT_CHANTYPES,
		maxmodes:    INFO_DEFAULT_MODES,
		maxtargets:  INFO_DEFAULT_MAXTARGETS,
		tokens:      make(map[string]string),

		protect: new(sync.RWMutex),
	}
	p.modes, p.prefixes, _ = parsePrefix(INFO_DEFAULT_PREFIX)
	p.chanmodes, _ = parseChanmodes(INFO_DEFAULT_CHANMODES)
	return p
}

// Clone safely clones this networkinfo instance.
func (p *NetworkInfo) Clone() *NetworkInfo {
	p.protect.RLock()
	defer p.protect.RUnlock()
	clone := *p
	clone.tokens = make(map[string]string, len(p.tokens))
	for k, v := range p.tokens {
		clone.tokens[k] = v
	}
	clone.protect = new(sync.RWMutex)
	return &clone
}

// ServerName gets the servername from the NetworkInfo.
func (p *NetworkInfo) ServerName() string {
	p.protect.RLock()
	defer p.protect.RUnlock()
	return p.serverName
}

// IrcdVersion gets the irc version from the NetworkInfo.
func (p *NetworkInfo) IrcdVersion() string {
	p.protect.RLock()
	defer p.protect.RUnlock()
	return p.ircdVersion
}

// Usermodes gets the usermodes from the NetworkInfo.
func (p *NetworkInfo) Usermodes() string {
	p.protect.RLock()
	defer p.protect.RUnlock()
	return p.usermodes
}

// LegacyChanmodes gets the channel modes announced in 004.
func (p *NetworkInfo) LegacyChanmodes() string {
	p.protect.RLock()
	defer p.protect.RUnlock()
	return p.lchanmodes
}

// Casemapping gets the casemapping from the NetworkInfo.
func (p *NetworkInfo) Casemapping() string {
	p.protect.RLock()
	defer p.protect.RUnlock()
	return p.casemapping
}

// Prefix gets the prefix in its 005 form, e.g. (ov)@+
func (p *NetworkInfo) Prefix() string {
	p.protect.RLock()
	defer p.protect.RUnlock()
	return "(" + p.modes + ")" + p.prefixes
}

// Chantypes gets the chantypes from the NetworkInfo.
func (p *NetworkInfo) Chantypes() string {
	p.protect.RLock()
	defer p.protect.RUnlock()
	return p.chantypes
}

// Chanmodes gets the chanmodes in their 005 form.
func (p *NetworkInfo) Chanmodes() string {
	p.protect.RLock()
	defer p.protect.RUnlock()
	return strings.Join(p.chanmodes[:], ",")
}

// Chanlimit gets the chanlimit from the NetworkInfo, 0 when unlimited.
func (p *NetworkInfo) Chanlimit() int {
	p.protect.RLock()
	defer p.protect.RUnlock()
	return p.chanlimit
}

// Channellen gets the channellen from the NetworkInfo, 0 when unknown.
func (p *NetworkInfo) Channellen() int {
	p.protect.RLock()
	defer p.protect.RUnlock()
	return p.channellen
}

// Nicklen gets the nicklen from the NetworkInfo, 0 when unknown.
func (p *NetworkInfo) Nicklen() int {
	p.protect.RLock()
	defer p.protect.RUnlock()
	return p.nicklen
}

// Topiclen gets the topiclen from the NetworkInfo, 0 when unknown.
func (p *NetworkInfo) Topiclen() int {
	p.protect.RLock()
	defer p.protect.RUnlock()
	return p.topiclen
}

// Awaylen gets the awaylen from the NetworkInfo, 0 when unknown.
func (p *NetworkInfo) Awaylen() int {
	p.protect.RLock()
	defer p.protect.RUnlock()
	return p.awaylen
}

// Kicklen gets the kicklen from the NetworkInfo, 0 when unknown.
func (p *NetworkInfo) Kicklen() int {
	p.protect.RLock()
	defer p.protect.RUnlock()
	return p.kicklen
}

// Modes gets the number of modes allowed per MODE command.
func (p *NetworkInfo) Modes() int {
	p.protect.RLock()
	defer p.protect.RUnlock()
	return p.maxmodes
}

// MaxTargets gets the number of targets allowed per message.
func (p *NetworkInfo) MaxTargets() int {
	p.protect.RLock()
	defer p.protect.RUnlock()
	return p.maxtargets
}

// Name is the NETWORK token, empty if the server never sent it.
func (p *NetworkInfo) Name() string {
	return p.Extra(INFO_NETWORK)
}

// Extra gets the raw value of any token. Bare tokens have the value "true".
func (p *NetworkInfo) Extra(key string) string {
	p.protect.RLock()
	defer p.protect.RUnlock()
	return p.tokens[strings.ToUpper(key)]
}

// Extras clones the internal token map and returns it
func (p *NetworkInfo) Extras() map[string]string {
	p.protect.RLock()
	defer p.protect.RUnlock()

	cloned := make(map[string]string, len(p.tokens))
	for k, v := range p.tokens {
		cloned[k] = v
	}

	return cloned
}

// Tokens returns every token applied so far in 005 form, sorted by name.
// Feeding them back through ApplyISupport rebuilds an equivalent table.
func (p *NetworkInfo) Tokens() []string {
	p.protect.RLock()
	defer p.protect.RUnlock()

	out := make([]string, 0, len(p.tokens))
	for k, v := range p.tokens {
		if v == "true" {
			out = append(out, k)
		} else {
			out = append(out, k+"="+v)
		}
	}
	sort.Strings(out)
	return out
}

// ApplyISupport adds one KEY=VALUE or bare KEY token from a 005 line.
// Unknown keys are stored as extras, negated and malformed tokens are
// ignored.
func (p *NetworkInfo) ApplyISupport(token string) {
	if len(token) == 0 || token[0] == '-' || strings.ContainsAny(token, " \r\n") {
		return
	}

	name, value := token, ""
	if i := strings.IndexByte(token, '='); i >= 0 {
		name, value = token[:i], token[i+1:]
	}
	name = strings.ToUpper(name)
	if len(name) == 0 {
		return
	}

	p.protect.Lock()
	defer p.protect.Unlock()

	switch name {
	case INFO_CASEMAPPING:
		p.casemapping = strings.ToLower(value)
		p.fold = casefolder(p.casemapping)
	case INFO_PREFIX:
		modes, prefixes, ok := parsePrefix(value)
		if !ok {
			return
		}
		p.modes, p.prefixes = modes, prefixes
	case INFO_CHANTYPES:
		p.chantypes = value
	case INFO_CHANMODES:
		groups, ok := parseChanmodes(value)
		if !ok {
			return
		}
		p.chanmodes = groups
	case INFO_CHANLIMIT:
		// #&:20,+:10 style, the smallest limit wins.
		limit := 0
		for _, part := range strings.Split(value, ",") {
			if i := strings.IndexByte(part, ':'); i >= 0 {
				if n, err := strconv.Atoi(part[i+1:]); err == nil && (limit == 0 || n < limit) {
					limit = n
				}
			}
		}
		p.chanlimit = limit
	case INFO_CHANNELLEN:
		setInt(&p.channellen, value)
	case INFO_NICKLEN:
		setInt(&p.nicklen, value)
	case INFO_TOPICLEN:
		setInt(&p.topiclen, value)
	case INFO_AWAYLEN:
		setInt(&p.awaylen, value)
	case INFO_KICKLEN:
		setInt(&p.kicklen, value)
	case INFO_MODES:
		setInt(&p.maxmodes, value)
	case INFO_MAXTARGETS:
		setInt(&p.maxtargets, value)
	}

	if value == "" {
		value = "true"
	}
	p.tokens[name] = value
}

// ParseISupport applies all tokens of a 005 line. The first argument is our
// nick and the last one the human readable trailer, neither are tokens.
func (p *NetworkInfo) ParseISupport(l *Line) {
	if len(l.Args) < 2 {
		return
	}
	end := len(l.Args)
	if l.Trailing() || strings.ContainsRune(l.Args[end-1], ' ') {
		end--
	}
	for _, arg := range l.Args[1:end] {
		p.ApplyISupport(arg)
	}
}

// ParseMyInfo records the server name, version and supported modes of a 004.
func (p *NetworkInfo) ParseMyInfo(l *Line) {
	if len(l.Args) < 5 {
		return
	}

	p.protect.Lock()
	defer p.protect.Unlock()

	p.serverName = l.Args[1]
	p.ircdVersion = l.Args[2]
	p.usermodes = l.Args[3]
	p.lchanmodes = l.Args[4]
}

// SetMyInfo sets the values ParseMyInfo would, used when restoring snapshots.
func (p *NetworkInfo) SetMyInfo(server, version, usermodes, chanmodes string) {
	p.protect.Lock()
	defer p.protect.Unlock()

	p.serverName = server
	p.ircdVersion = version
	p.usermodes = usermodes
	p.lchanmodes = chanmodes
}

// IsChannel checks to see if the target is a channel based on this instances
// chantypes.
func (p *NetworkInfo) IsChannel(target string) (isChan bool) {
	if len(target) > 0 {
		p.protect.RLock()
		isChan = strings.IndexByte(p.chantypes, target[0]) >= 0
		p.protect.RUnlock()
	}
	return
}

// Casefold maps a nick or channel name to its lookup key.
func (p *NetworkInfo) Casefold(name string) string {
	p.protect.RLock()
	fold := p.fold
	p.protect.RUnlock()
	return fold(name)
}

// Compare orders two names under the casemapping, returning -1, 0 or 1.
func (p *NetworkInfo) Compare(a, b string) int {
	return strings.Compare(p.Casefold(a), p.Casefold(b))
}

// Equal checks two names for equality under the casemapping.
func (p *NetworkInfo) Equal(a, b string) bool {
	return p.Compare(a, b) == 0
}

// ClassifyChannelMode tells how the channel mode letter takes arguments.
func (p *NetworkInfo) ClassifyChannelMode(mode byte) ModeClass {
	p.protect.RLock()
	defer p.protect.RUnlock()

	if strings.IndexByte(p.modes, mode) >= 0 {
		return ModePrefix
	}
	for i, group := range p.chanmodes {
		if strings.IndexByte(group, mode) >= 0 {
			return ModeClass(i + 1)
		}
	}
	return ModeUnknown
}

// PrefixForMode returns the status prefix of a mode letter, '@' for 'o' in
// the default table, or NoPrefix.
func (p *NetworkInfo) PrefixForMode(mode byte) byte {
	p.protect.RLock()
	defer p.protect.RUnlock()

	if i := strings.IndexByte(p.modes, mode); i >= 0 {
		return p.prefixes[i]
	}
	return NoPrefix
}

// ModeForPrefix returns the mode letter of a status prefix, or 0.
func (p *NetworkInfo) ModeForPrefix(prefix byte) byte {
	p.protect.RLock()
	defer p.protect.RUnlock()

	if i := strings.IndexByte(p.prefixes, prefix); i >= 0 {
		return p.modes[i]
	}
	return 0
}

// IsPrefix checks if c is one of the status prefixes.
func (p *NetworkInfo) IsPrefix(c byte) bool {
	return p.ModeForPrefix(c) != 0
}

// PrefixModes returns the status mode letters, highest rank first.
func (p *NetworkInfo) PrefixModes() string {
	p.protect.RLock()
	defer p.protect.RUnlock()
	return p.modes
}

// parsePrefix splits (ov)@+ into "ov" and "@+". An empty value is a valid
// table without any prefixes.
func parsePrefix(value string) (modes, prefixes string, ok bool) {
	if len(value) == 0 {
		return "", "", true
	}
	if value[0] != '(' {
		return "", "", false
	}
	end := strings.IndexByte(value, ')')
	if end < 0 {
		return "", "", false
	}
	modes, prefixes = value[1:end], value[end+1:]
	if len(modes) != len(prefixes) {
		return "", "", false
	}
	return modes, prefixes, true
}

// parseChanmodes splits the CHANMODES value into its four groups. Servers may
// send more groups than four, those are ignored.
func parseChanmodes(value string) (groups [4]string, ok bool) {
	parts := strings.Split(value, ",")
	if len(parts) < 4 {
		return groups, false
	}
	copy(groups[:], parts)
	return groups, true
}

func setInt(field *int, value string) {
	if i, err := strconv.Atoi(value); err == nil {
		*field = i
	}
}
