package redirect

import (
	"github.com/jelmer/ctrlproxy-sub000/irc"
)

// Numerics without a name elsewhere.
const (
	rplWhoisIdentified = "307"
	rplStatsConn       = "250"
	rplLocalUsers      = "265"
	rplGlobalUsers     = "266"
)

var privmsgQuery = &query{
	ends: []string{irc.RPL_AWAY, irc.RPL_TRYAGAIN},
	errors: []string{
		irc.ERR_NORECIPIENT, irc.ERR_NOTEXTTOSEND, irc.ERR_CANNOTSENDTOCHAN,
		irc.ERR_NOTOPLEVEL, irc.ERR_TOOMANYTARGETS, irc.ERR_WILDTOPLEVEL,
		irc.ERR_NOSUCHNICK, irc.ERR_NOSUCHCHANNEL,
	},
}

var serviceQuery = &query{
	ends:   []string{irc.RPL_TRYAGAIN},
	errors: []string{irc.ERR_NOTEXTTOSEND},
}

var operOnlyQuery = &query{
	ends:   []string{irc.RPL_TRYAGAIN},
	errors: []string{irc.ERR_NOPRIVILEGES},
}

// queries maps commands to the replies they can get.
var queries = map[string]*query{
	irc.WHOIS: {
		replies: []string{
			irc.RPL_WHOISUSER, irc.RPL_WHOISCHANNELS, irc.RPL_AWAY,
			irc.RPL_WHOISIDLE, irc.RPL_WHOISIP, irc.RPL_WHOISSERVER,
			irc.RPL_WHOISOPERATOR, irc.RPL_WHOISACTUALLY, irc.RPL_WHOISSECURE,
			irc.RPL_WHOISACCOUNT, irc.RPL_WHOISHOST, rplWhoisIdentified,
			irc.ERR_NOSUCHNICK,
		},
		ends:   []string{irc.RPL_ENDOFWHOIS, irc.RPL_TRYAGAIN},
		errors: []string{irc.ERR_NOSUCHSERVER, irc.ERR_NONICKNAMEGIVEN},
	},
	irc.WHO: {
		replies: []string{irc.RPL_WHOREPLY, irc.RPL_WHOSPCRPL},
		ends:    []string{irc.RPL_ENDOFWHO, irc.RPL_TRYAGAIN},
		errors:  []string{irc.ERR_NOSUCHSERVER},
	},
	irc.NAMES: {
		replies: []string{irc.RPL_NAMREPLY},
		ends:    []string{irc.RPL_ENDOFNAMES, irc.RPL_TRYAGAIN},
		errors:  []string{irc.ERR_TOOMANYMATCHES, irc.ERR_NOSUCHSERVER},
	},
	irc.LIST: {
		replies: []string{irc.RPL_LIST, irc.RPL_LISTSTART},
		ends:    []string{irc.RPL_LISTEND, irc.RPL_TRYAGAIN},
		errors:  []string{irc.ERR_TOOMANYMATCHES, irc.ERR_NOSUCHSERVER},
	},
	irc.TOPIC: {
		ends: []string{irc.RPL_NOTOPIC, irc.RPL_TOPIC, irc.RPL_TRYAGAIN},
		errors: []string{
			irc.ERR_NOTONCHANNEL, irc.ERR_NEEDMOREPARAMS,
			irc.ERR_CHANOPRIVSNEEDED, irc.ERR_NOCHANMODES,
		},
		// Setting a topic is answered with a TOPIC everyone sees.
		record: func(l *irc.Line) bool { return len(l.Args) < 2 },
	},
	irc.WHOWAS: {
		replies: []string{irc.RPL_WHOWASUSER, irc.RPL_WHOISSERVER, irc.ERR_WASNOSUCHNICK},
		ends:    []string{irc.RPL_ENDOFWHOWAS, irc.RPL_TRYAGAIN},
		errors:  []string{irc.ERR_NONICKNAMEGIVEN},
	},
	irc.STATS: {
		replies: []string{
			irc.RPL_STATSLINKINFO, irc.RPL_STATSCOMMANDS, irc.RPL_STATSCLINE,
			irc.RPL_STATSNLINE, irc.RPL_STATSILINE, irc.RPL_STATSKLINE,
			irc.RPL_STATSQLINE, irc.RPL_STATSLLINE, irc.RPL_STATSUPTIME,
			irc.RPL_STATSOLINE, irc.RPL_STATSHLINE, irc.RPL_STATSTLINE,
			irc.RPL_STATSPLINE, rplStatsConn,
		},
		ends:   []string{irc.RPL_TRYAGAIN, irc.RPL_ENDOFSTATS},
		errors: []string{irc.ERR_NOSUCHSERVER},
	},
	irc.VERSION: {
		ends:   []string{irc.RPL_VERSION, irc.RPL_TRYAGAIN},
		errors: []string{irc.ERR_NOSUCHSERVER},
	},
	irc.LINKS: {
		replies: []string{irc.RPL_LINKS},
		ends:    []string{irc.RPL_ENDOFLINKS, irc.RPL_TRYAGAIN},
		errors:  []string{irc.ERR_NOSUCHSERVER},
	},
	irc.TIME: {
		ends:   []string{irc.RPL_TIME, irc.RPL_TRYAGAIN},
		errors: []string{irc.ERR_NOSUCHSERVER},
	},
	irc.TRACE: {
		replies: []string{
			irc.RPL_TRACELINK, irc.RPL_TRACECONNECTING, irc.RPL_TRACEHANDSHAKE,
			irc.RPL_TRACEUNKNOWN, irc.RPL_TRACEOPERATOR, irc.RPL_TRACEUSER,
			irc.RPL_TRACESERVER, irc.RPL_TRACENEWTYPE, irc.RPL_TRACECLASS,
		},
		ends:   []string{irc.RPL_TRYAGAIN},
		errors: []string{irc.ERR_NOSUCHSERVER},
	},
	irc.SUMMON: {
		ends: []string{irc.RPL_SUMMONING, irc.RPL_TRYAGAIN},
		errors: []string{
			irc.ERR_NORECIPIENT, irc.ERR_FILEERROR, irc.ERR_NOLOGIN,
			irc.ERR_NOSUCHSERVER,
		},
	},
	irc.USERS: {
		replies: []string{irc.RPL_USERSSTART, irc.RPL_USERS, irc.RPL_NOUSERS},
		ends:    []string{irc.RPL_ENDOFUSERS, irc.RPL_TRYAGAIN},
		errors:  []string{irc.ERR_NOSUCHSERVER, irc.ERR_FILEERROR, irc.ERR_USERSDISABLED},
	},
	irc.USERHOST: {
		ends:   []string{irc.RPL_USERHOST, irc.RPL_TRYAGAIN},
		errors: []string{irc.ERR_NEEDMOREPARAMS},
	},
	irc.ISON: {
		ends:   []string{irc.RPL_ISON, irc.RPL_TRYAGAIN},
		errors: []string{irc.ERR_NEEDMOREPARAMS},
	},
	irc.JOIN: {
		ends: []string{irc.RPL_TRYAGAIN},
		errors: []string{
			irc.ERR_NEEDMOREPARAMS, irc.ERR_BANNEDFROMCHAN, irc.ERR_INVITEONLYCHAN,
			irc.ERR_BADCHANNELKEY, irc.ERR_CHANNELISFULL, irc.ERR_BADCHANMASK,
			irc.ERR_FORWARDING, irc.ERR_NOSUCHCHANNEL, irc.ERR_ILLEGALCHANNELNAME,
			irc.ERR_TOOMANYCHANNELS,
		},
	},
	irc.PART: {
		ends:   []string{irc.RPL_TRYAGAIN},
		errors: []string{irc.ERR_NEEDMOREPARAMS, irc.ERR_NOSUCHCHANNEL, irc.ERR_NOTONCHANNEL},
	},
	irc.NICK: {
		ends: []string{irc.RPL_TRYAGAIN},
		errors: []string{
			irc.ERR_NONICKNAMEGIVEN, irc.ERR_ERRONEUSNICKNAME, irc.ERR_NICKNAMEINUSE,
			irc.ERR_UNAVAILRESOURCE, irc.ERR_RESTRICTED, irc.ERR_NICKCOLLISION,
			irc.ERR_NICKTOOFAST,
		},
	},
	irc.PASS: {
		errors: []string{irc.ERR_NEEDMOREPARAMS, irc.ERR_ALREADYREGISTRED},
	},
	irc.USER: {
		ends:   []string{irc.RPL_TRYAGAIN},
		errors: []string{irc.ERR_NEEDMOREPARAMS, irc.ERR_ALREADYREGISTRED},
	},
	irc.QUIT: {
		ends: []string{irc.RPL_TRYAGAIN},
	},
	irc.OPER: {
		ends:   []string{irc.RPL_YOUREOPER, irc.RPL_TRYAGAIN},
		errors: []string{irc.ERR_NEEDMOREPARAMS, irc.ERR_NOOPERHOST, irc.ERR_PASSWDMISMATCH},
	},
	irc.MODE: {
		replies: []string{irc.RPL_BANLIST, irc.RPL_EXCEPTLIST, irc.RPL_INVITELIST},
		ends: []string{
			irc.RPL_UMODEIS, irc.RPL_CHANNELMODEIS, irc.RPL_ENDOFBANLIST,
			irc.RPL_ENDOFEXCEPTLIST, irc.RPL_ENDOFINVITELIST, irc.RPL_UNIQOPIS,
			irc.RPL_TRYAGAIN,
		},
		errors: []string{
			irc.ERR_NEEDMOREPARAMS, irc.ERR_UMODEUNKNOWNFLAG, irc.ERR_USERSDONTMATCH,
			irc.ERR_USERNOTINCHANNEL, irc.ERR_KEYSET, irc.ERR_CHANOPRIVSNEEDED,
			irc.ERR_UNKNOWNMODE, irc.ERR_NOCHANMODES, irc.ERR_NOSUCHCHANNEL,
			irc.ERR_ILLEGALCHANNELNAME,
		},
	},
	irc.SERVICE: {
		ends: []string{irc.RPL_YOURESERVICE, irc.RPL_YOURHOST, irc.RPL_MYINFO, irc.RPL_TRYAGAIN},
		errors: []string{
			irc.ERR_ALREADYREGISTRED, irc.ERR_NEEDMOREPARAMS, irc.ERR_ERRONEUSNICKNAME,
		},
	},
	irc.SQUIT: {
		ends:   []string{irc.RPL_TRYAGAIN},
		errors: []string{irc.ERR_NOPRIVILEGES, irc.ERR_NEEDMOREPARAMS, irc.ERR_NOSUCHSERVER},
	},
	irc.INVITE: {
		ends: []string{irc.RPL_INVITING, irc.RPL_AWAY, irc.RPL_TRYAGAIN},
		errors: []string{
			irc.ERR_NEEDMOREPARAMS, irc.ERR_NOTONCHANNEL, irc.ERR_NOSUCHNICK,
			irc.ERR_CHANOPRIVSNEEDED, irc.ERR_USERONCHANNEL,
		},
	},
	irc.KICK: {
		ends: []string{irc.RPL_TRYAGAIN},
		errors: []string{
			irc.ERR_NEEDMOREPARAMS, irc.ERR_BADCHANMASK, irc.ERR_USERNOTINCHANNEL,
			irc.ERR_NOSUCHCHANNEL, irc.ERR_CHANOPRIVSNEEDED, irc.ERR_NOTONCHANNEL,
		},
	},
	irc.PRIVMSG: privmsgQuery,
	irc.SQUERY:  privmsgQuery,
	"NICKSERV":  serviceQuery,
	"CHANSERV":  serviceQuery,
	irc.MOTD: {
		replies: []string{irc.RPL_MOTDSTART, irc.RPL_MOTD},
		ends:    []string{irc.RPL_ENDOFMOTD, irc.RPL_TRYAGAIN},
		errors:  []string{irc.ERR_NOMOTD},
	},
	irc.LUSERS: {
		replies: []string{
			irc.RPL_LUSERCLIENT, irc.RPL_LUSEROP, irc.RPL_LUSERUNKNOWN,
			irc.RPL_LUSERCHANNELS, irc.RPL_LUSERME, irc.RPL_STATSTLINE,
			rplStatsConn, rplLocalUsers, rplGlobalUsers,
		},
		ends:   []string{irc.RPL_TRYAGAIN},
		errors: []string{irc.ERR_NOSUCHSERVER},
	},
	irc.CONNECT: {
		ends:   []string{irc.RPL_TRYAGAIN},
		errors: []string{irc.ERR_NOSUCHSERVER, irc.ERR_NEEDMOREPARAMS, irc.ERR_NOPRIVILEGES},
	},
	irc.ADMIN: {
		replies: []string{irc.RPL_ADMINME, irc.RPL_ADMINLOC1, irc.RPL_ADMINLOC2, irc.RPL_ADMINEMAIL},
		ends:    []string{irc.RPL_TRYAGAIN},
		errors:  []string{irc.ERR_NOSUCHSERVER},
	},
	irc.INFO: {
		replies: []string{irc.RPL_INFO},
		ends:    []string{irc.RPL_TRYAGAIN, irc.RPL_ENDOFINFO},
		errors:  []string{irc.ERR_NOSUCHSERVER},
	},
	irc.SERVLIST: {
		replies: []string{irc.RPL_SERVLIST},
		ends:    []string{irc.RPL_TRYAGAIN, irc.RPL_SERVLISTEND},
	},
	irc.KILL: {
		ends: []string{irc.RPL_TRYAGAIN},
		errors: []string{
			irc.ERR_NOPRIVILEGES, irc.ERR_NEEDMOREPARAMS, irc.ERR_NOSUCHNICK,
			irc.ERR_CANTKILLSERVER,
		},
	},
	irc.AWAY: {
		ends: []string{irc.RPL_UNAWAY, irc.RPL_NOWAWAY, irc.RPL_TRYAGAIN},
	},
	irc.REHASH: {
		ends:   []string{irc.RPL_REHASHING, irc.RPL_TRYAGAIN},
		errors: []string{irc.ERR_NOPRIVILEGES},
	},
	irc.DIE:     operOnlyQuery,
	irc.RESTART: operOnlyQuery,
	irc.PING: {
		ends:   []string{irc.RPL_TRYAGAIN},
		errors: []string{irc.ERR_NOORIGIN},
	},
	irc.PONG: {
		ends:   []string{irc.RPL_TRYAGAIN},
		errors: []string{irc.ERR_NOORIGIN, irc.ERR_NOSUCHSERVER},
	},
	irc.WALLOPS: {
		ends:   []string{irc.RPL_TRYAGAIN},
		errors: []string{irc.ERR_NEEDMOREPARAMS},
	},
	irc.NOTICE: {
		ends: []string{irc.RPL_TRYAGAIN},
	},
}
