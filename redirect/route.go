package redirect

import "github.com/jelmer/ctrlproxy-sub000/irc"

// Route says what to do with a numeric no request claimed.
type Route int

const (
	// RouteAll sends the reply to every client.
	RouteAll Route = iota
	// RouteNone keeps the reply from clients.
	RouteNone
	// RouteLogin marks a reply about the proxy's own registration, it is
	// logged and kept from clients.
	RouteLogin
)

var unclaimed = map[string]Route{
	irc.RPL_ENDOFMOTD: RouteNone,
	irc.ERR_NOMOTD:    RouteNone,

	irc.ERR_PASSWDMISMATCH:   RouteLogin,
	irc.ERR_ALREADYREGISTRED: RouteLogin,
	irc.ERR_NOPERMFORHOST:    RouteLogin,
	irc.ERR_NOTREGISTERED:    RouteLogin,
	irc.ERR_YOUREBANNEDCREEP: RouteLogin,
}

// Unclaimed routes a numeric that MatchResponse found no request for.
// Anything not listed goes to all clients.
func Unclaimed(numeric string) Route {
	if r, ok := unclaimed[numeric]; ok {
		return r
	}
	return RouteAll
}
